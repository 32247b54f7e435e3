// Package config loads runtime settings: built-in defaults, then an
// optional YAML file, then environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/obiente/translate/livetranslate/internal/emit"
	"github.com/obiente/translate/livetranslate/internal/pipeline"
)

type Config struct {
	LogLevel string `yaml:"log_level"`
	// Addr is the listen address of the serve command.
	Addr string `yaml:"addr"`

	Source      SourceConfig      `yaml:"source"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Translation TranslationConfig `yaml:"translation"`
	Output      OutputConfig      `yaml:"output"`
	Metrics     MetricsConfig     `yaml:"metrics"`

	Pipeline pipeline.Config `yaml:",inline"`
}

type SourceConfig struct {
	// Kind is "device" or "file".
	Kind   string `yaml:"kind"`
	Device int    `yaml:"device"`
	File   string `yaml:"file"`
	// Realtime paces file input at wall-clock speed.
	Realtime   bool `yaml:"realtime"`
	SampleRate int  `yaml:"sample_rate"`
	Channels   int  `yaml:"channels"`
}

type RecognitionConfig struct {
	// Backend is "whisper" (local whisper.cpp) or "openai".
	Backend   string `yaml:"backend"`
	ModelPath string `yaml:"model_path"`
	ModelURL  string `yaml:"model_url"`
	AutoFetch bool   `yaml:"auto_fetch"`
	Language  string `yaml:"language"`
	Threads   int    `yaml:"threads"`
	// Workers defaults to 1. The local whisper engine runs one utterance at
	// a time, so extra workers only queue on it and spend their Timeout
	// waiting; raise it for the openai backend.
	Workers int           `yaml:"workers"`
	Timeout time.Duration `yaml:"timeout"`
	OpenAI  OpenAIConfig  `yaml:"openai"`
}

type TranslationConfig struct {
	// Backend is "libretranslate", "openai" or "none".
	Backend     string        `yaml:"backend"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Source      string        `yaml:"source"`
	Target      string        `yaml:"target"`
	Workers     int           `yaml:"workers"`
	Timeout     time.Duration `yaml:"timeout"`
	EnglishOnly bool          `yaml:"english_only"`
	OpenAI      OpenAIConfig  `yaml:"openai"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

type OutputConfig struct {
	Console     bool   `yaml:"console"`
	ShowErrors  bool   `yaml:"show_errors"`
	ShowSilence bool   `yaml:"show_silence"`
	JSONL       string `yaml:"jsonl"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		LogLevel: "info",
		Addr:     ":8080",
		Source: SourceConfig{
			Kind:   "device",
			Device: -1,
		},
		Recognition: RecognitionConfig{
			Backend:   "whisper",
			ModelPath: "./models/ggml-base.en.bin",
			ModelURL:  "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base.en.bin",
			Language:  "en",
			Workers:   1,
			Timeout:   30 * time.Second,
		},
		Translation: TranslationConfig{
			Backend: "libretranslate",
			BaseURL: "https://libretranslate.obiente.cloud",
			Source:  "en",
			Target:  "zh",
			Workers: 4,
			Timeout: 8 * time.Second,
		},
		Output: OutputConfig{
			Console: true,
		},
		Pipeline: pipeline.DefaultConfig(),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch v {
		case "0", "false", "no", "off", "False", "FALSE":
			return false
		default:
			return true
		}
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// getenvDuration accepts Go durations ("750ms") or whole seconds ("8").
func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return def
}

// Load builds the configuration. path may be empty to skip the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: open %q: %w", path, err)
		}
		defer f.Close()
		if err := decode(f, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFromReader decodes YAML over the defaults without consulting the
// environment.
func LoadFromReader(r io.Reader) (Config, error) {
	cfg := Default()
	if err := decode(r, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: decode yaml: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.LogLevel = getenv("LOG_LEVEL", c.LogLevel)
	c.Addr = getenv("LIVETRANSLATE_ADDR", c.Addr)

	c.Source.Kind = getenv("LIVETRANSLATE_SOURCE", c.Source.Kind)
	c.Source.Device = getenvInt("LIVETRANSLATE_DEVICE", c.Source.Device)
	c.Source.File = getenv("LIVETRANSLATE_FILE", c.Source.File)

	c.Recognition.Backend = getenv("RECOGNITION_BACKEND", c.Recognition.Backend)
	c.Recognition.ModelPath = getenv("WHISPER_MODEL_PATH", c.Recognition.ModelPath)
	c.Recognition.Language = getenv("WHISPER_LANGUAGE", c.Recognition.Language)
	c.Recognition.Threads = getenvInt("WHISPER_THREADS", c.Recognition.Threads)
	c.Recognition.Workers = getenvInt("RECOGNITION_WORKERS", c.Recognition.Workers)
	c.Recognition.Timeout = getenvDuration("RECOGNITION_TIMEOUT", c.Recognition.Timeout)

	c.Translation.Backend = getenv("TRANSLATION_BACKEND", c.Translation.Backend)
	c.Translation.BaseURL = getenv("TRANSLATION_BASE_URL", c.Translation.BaseURL)
	c.Translation.APIKey = getenv("TRANSLATION_API_KEY", c.Translation.APIKey)
	c.Translation.Target = getenv("TRANSLATION_TARGET", c.Translation.Target)
	c.Translation.Workers = getenvInt("TRANSLATION_WORKERS", c.Translation.Workers)
	c.Translation.Timeout = getenvDuration("TRANSLATION_TIMEOUT", c.Translation.Timeout)
	c.Translation.EnglishOnly = getenvBool("TRANSLATION_ENGLISH_ONLY", c.Translation.EnglishOnly)

	key := os.Getenv("OPENAI_API_KEY")
	if c.Recognition.OpenAI.APIKey == "" {
		c.Recognition.OpenAI.APIKey = key
	}
	if c.Translation.OpenAI.APIKey == "" {
		c.Translation.OpenAI.APIKey = key
	}

	c.Pipeline.Emit.StallPolicy = emitPolicy(getenv("EMIT_STALL_POLICY", string(c.Pipeline.Emit.StallPolicy)))
	c.Pipeline.Emit.StallTimeout = getenvDuration("EMIT_STALL_TIMEOUT", c.Pipeline.Emit.StallTimeout)

	c.Metrics.Enabled = getenvBool("LIVETRANSLATE_METRICS", c.Metrics.Enabled)
}

func emitPolicy(s string) emit.StallPolicy { return emit.StallPolicy(strings.ToLower(s)) }

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level %q is invalid", c.LogLevel))
	}
	switch c.Source.Kind {
	case "device":
	case "file":
		if c.Source.File == "" {
			errs = append(errs, errors.New("source.file is required when source.kind is file"))
		}
	default:
		errs = append(errs, fmt.Errorf("source.kind %q must be device or file", c.Source.Kind))
	}

	switch c.Recognition.Backend {
	case "whisper":
		if c.Recognition.ModelPath == "" {
			errs = append(errs, errors.New("recognition.model_path is required for the whisper backend"))
		}
	case "openai":
		if c.Recognition.OpenAI.APIKey == "" && c.Recognition.OpenAI.BaseURL == "" {
			errs = append(errs, errors.New("recognition.openai.api_key (or OPENAI_API_KEY) is required for the openai backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("recognition.backend %q must be whisper or openai", c.Recognition.Backend))
	}
	if c.Recognition.Workers < 1 {
		errs = append(errs, fmt.Errorf("recognition.workers must be at least 1, got %d", c.Recognition.Workers))
	}

	switch c.Translation.Backend {
	case "none":
	case "libretranslate":
		if c.Translation.BaseURL == "" {
			errs = append(errs, errors.New("translation.base_url is required for the libretranslate backend"))
		}
	case "openai":
		if c.Translation.OpenAI.APIKey == "" && c.Translation.OpenAI.BaseURL == "" {
			errs = append(errs, errors.New("translation.openai.api_key (or OPENAI_API_KEY) is required for the openai backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("translation.backend %q must be libretranslate, openai or none", c.Translation.Backend))
	}
	if c.Translation.Backend != "none" && strings.TrimSpace(c.Translation.Target) == "" {
		errs = append(errs, errors.New("translation.target is required"))
	}
	if c.Translation.Workers < 1 {
		errs = append(errs, fmt.Errorf("translation.workers must be at least 1, got %d", c.Translation.Workers))
	}

	if err := c.Pipeline.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
