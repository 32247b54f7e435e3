package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/obiente/translate/livetranslate/internal/emit"
)

func TestDefault_IsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestDefault_SingleRecognitionWorker(t *testing.T) {
	if got := Default().Recognition.Workers; got != 1 {
		t.Errorf("recognition workers = %d, want 1 for the serialised whisper engine", got)
	}
}

func TestLoadFromReader(t *testing.T) {
	const doc = `
log_level: debug
source:
  kind: file
  file: talk.wav
recognition:
  backend: openai
  openai:
    api_key: sk-test
translation:
  target: ja
  english_only: true
queue_size: 4
segment:
  silence: 700ms
  max_duration: 15s
emit:
  max_pending: 8
  stall_policy: skip
`
	cfg, err := LoadFromReader(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Source.File != "talk.wav" || cfg.Recognition.Backend != "openai" {
		t.Errorf("source/recognition = %+v / %+v", cfg.Source, cfg.Recognition)
	}
	if cfg.Translation.Target != "ja" || !cfg.Translation.EnglishOnly {
		t.Errorf("translation = %+v", cfg.Translation)
	}
	if cfg.Pipeline.QueueSize != 4 {
		t.Errorf("queue_size = %d", cfg.Pipeline.QueueSize)
	}
	if cfg.Pipeline.Segment.Silence != 700*time.Millisecond || cfg.Pipeline.Segment.MaxDuration != 15*time.Second {
		t.Errorf("segment = %+v", cfg.Pipeline.Segment)
	}
	// Fields absent from the document keep their defaults.
	if cfg.Pipeline.Segment.PreRoll != 200*time.Millisecond {
		t.Errorf("pre_roll = %v, want default", cfg.Pipeline.Segment.PreRoll)
	}
	if cfg.Pipeline.Emit.StallPolicy != emit.StallSkip || cfg.Pipeline.Emit.MaxPending != 8 {
		t.Errorf("emit = %+v", cfg.Pipeline.Emit)
	}
}

func TestLoadFromReader_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want []string
	}{
		{"unknown field", "colour: blue\n", []string{"colour"}},
		{"several problems", `
log_level: loud
source:
  kind: file
recognition:
  workers: 0
emit:
  stall_policy: drop
`, []string{"log_level", "source.file", "recognition.workers", "stall_policy"}},
		{"bad backend", "translation:\n  backend: deepl\n", []string{"translation.backend"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromReader(strings.NewReader(tt.doc))
			if err == nil {
				t.Fatal("expected error")
			}
			for _, w := range tt.want {
				if !strings.Contains(err.Error(), w) {
					t.Errorf("error %q does not mention %q", err, w)
				}
			}
		})
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "livetranslate.yaml")
	if err := os.WriteFile(path, []byte("translation:\n  target: fr\n  workers: 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TRANSLATION_TARGET", "de")
	t.Setenv("TRANSLATION_TIMEOUT", "3")
	t.Setenv("EMIT_STALL_TIMEOUT", "1500ms")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Translation.Target != "de" {
		t.Errorf("target = %q, want env override", cfg.Translation.Target)
	}
	if cfg.Translation.Workers != 2 {
		t.Errorf("workers = %d, want file value", cfg.Translation.Workers)
	}
	if cfg.Translation.Timeout != 3*time.Second {
		t.Errorf("timeout = %v", cfg.Translation.Timeout)
	}
	if cfg.Pipeline.Emit.StallTimeout != 1500*time.Millisecond {
		t.Errorf("stall_timeout = %v", cfg.Pipeline.Emit.StallTimeout)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
