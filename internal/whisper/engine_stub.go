//go:build !whisper_cpp

package whisper

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/livetranslate/internal/transcript"
)

// Default stub (no cgo) so the project builds without whisper_cpp tag.
// Every utterance is reported as no speech.
type stubEngine struct{}

func NewEngine(opts Options) (Engine, error) {
	log.Warn().
		Str("component", "whisper").
		Str("model", opts.ModelPath).
		Msg("built without whisper_cpp tag; local recognition returns no speech")
	return &stubEngine{}, nil
}

func (e *stubEngine) Close() error { return nil }

func (e *stubEngine) Recognize(context.Context, []float32) (transcript.Recognition, error) {
	return transcript.Recognition{}, nil
}
