package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/livetranslate/internal/config"
	"github.com/obiente/translate/livetranslate/internal/model"
	"github.com/obiente/translate/livetranslate/internal/observe"
	"github.com/obiente/translate/livetranslate/internal/sink"
	"github.com/obiente/translate/livetranslate/internal/stage"
	"github.com/obiente/translate/livetranslate/internal/transcript"
	"github.com/obiente/translate/livetranslate/internal/translation"
	"github.com/obiente/translate/livetranslate/internal/whisper"
)

// newRecognition builds the recognition stage. The returned closer releases
// the model.
func newRecognition(ctx context.Context, cfg config.RecognitionConfig) (*stage.Recognition, func() error, error) {
	st := &stage.Recognition{
		Backend: cfg.Backend,
		Workers: cfg.Workers,
		Timeout: cfg.Timeout,
	}
	switch cfg.Backend {
	case "openai":
		st.Recognizer = whisper.NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model, cfg.Language)
		return st, func() error { return nil }, nil
	default:
		if cfg.AutoFetch {
			if _, err := model.NewDownloader().Ensure(ctx, cfg.ModelPath, cfg.ModelURL); err != nil {
				return nil, nil, fmt.Errorf("fetch model: %w", err)
			}
		}
		eng, err := whisper.NewEngine(whisper.Options{
			ModelPath: cfg.ModelPath,
			Language:  cfg.Language,
			Threads:   cfg.Threads,
		})
		if err != nil {
			return nil, nil, err
		}
		if cfg.Workers > 1 {
			log.Warn().
				Int("workers", cfg.Workers).
				Dur("timeout", cfg.Timeout).
				Msg("whisper runs one utterance at a time; extra recognition workers wait on it and the wait counts against the timeout")
		}
		st.Recognizer = eng
		return st, eng.Close, nil
	}
}

func newTranslation(cfg config.TranslationConfig) *stage.Translation {
	st := &stage.Translation{
		Backend: cfg.Backend,
		Workers: cfg.Workers,
		Timeout: cfg.Timeout,
	}
	var tr transcript.Translator
	switch cfg.Backend {
	case "none":
		tr = transcript.TranslatorFunc(func(context.Context, string) (string, error) { return "", nil })
	case "openai":
		tr = translation.NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model, cfg.Source, cfg.Target)
	default:
		tr = translation.New(cfg.BaseURL, cfg.Source, cfg.Target, cfg.Timeout, translation.WithAPIKey(cfg.APIKey))
	}
	if cfg.EnglishOnly {
		tr = translation.EnglishOnly(tr)
	}
	st.Translator = tr
	return st
}

// newSinks builds the configured outputs. extra sinks are appended.
func newSinks(cfg config.OutputConfig, extra ...sink.Sink) (sink.Sink, func() error, error) {
	var sinks sink.Multi
	closers := []func() error{}
	if cfg.Console {
		c := sink.NewConsole(os.Stdout, cfg.ShowErrors)
		c.ShowSilence = cfg.ShowSilence
		sinks = append(sinks, c)
	}
	if cfg.JSONL != "" {
		f, err := os.OpenFile(cfg.JSONL, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open jsonl output: %w", err)
		}
		sinks = append(sinks, sink.NewJSONL(f))
		closers = append(closers, f.Close)
	}
	sinks = append(sinks, extra...)
	return sinks, func() error {
		for _, c := range closers {
			if err := c(); err != nil {
				return err
			}
		}
		return nil
	}, nil
}

// setupMetrics installs the Prometheus-backed provider when enabled and
// returns the instruments plus a shutdown func.
func setupMetrics(ctx context.Context, cfg config.MetricsConfig) (*observe.Metrics, func(), error) {
	if !cfg.Enabled {
		return nil, func() {}, nil
	}
	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "livetranslate"})
	if err != nil {
		return nil, nil, fmt.Errorf("init metrics: %w", err)
	}
	return observe.DefaultMetrics(), func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			log.Warn().Err(err).Msg("metrics shutdown")
		}
	}, nil
}
