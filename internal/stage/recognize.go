package stage

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/livetranslate/internal/observe"
	"github.com/obiente/translate/livetranslate/internal/transcript"
)

// Recognition wraps a Recognizer as a pipeline stage.
type Recognition struct {
	Recognizer transcript.Recognizer
	// Backend labels metrics and logs, e.g. "whisper".
	Backend string
	Workers int
	// Timeout bounds a single Recognize call; zero means no limit. It runs
	// from the moment a worker picks the utterance up, so time spent queued
	// inside a recognizer that serialises calls counts against it.
	Timeout time.Duration
	Metrics *observe.Metrics
}

// Process recognizes one utterance. It never fails: errors travel inside
// the result so that the emitter can report them in sequence.
func (r *Recognition) Process(ctx context.Context, u transcript.Utterance) transcript.Recognized {
	res := transcript.Recognized{Seq: u.Seq, Start: u.Start, End: u.End}

	callCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	started := time.Now()
	rec, err := r.Recognizer.Recognize(callCtx, u.PCM)
	res.Elapsed = time.Since(started)
	if r.Metrics != nil {
		r.Metrics.RecordRecognition(ctx, r.Backend, res.Elapsed)
	}

	if err != nil {
		res.Err = transcript.NewStageError(transcript.ErrRecognition, u.Seq, err)
		log.Warn().
			Str("component", "recognition").
			Str("backend", r.Backend).
			Uint64("seq", u.Seq).
			Err(err).
			Msg("recognition failed")
		return res
	}

	text := strings.TrimSpace(rec.Text)
	if transcript.IsAnnotation(text) {
		text = ""
	}
	res.Text = text
	res.Language = rec.Language

	log.Debug().
		Str("component", "recognition").
		Uint64("seq", u.Seq).
		Dur("audio", u.Duration()).
		Dur("elapsed", res.Elapsed).
		Str("text", text).
		Msg("recognized")
	return res
}

// Run drives the worker pool until in is closed.
func (r *Recognition) Run(ctx context.Context, in <-chan transcript.Utterance, out chan<- transcript.Recognized) error {
	return Run(ctx, "recognition", r.Workers, in, out, r.Process)
}
