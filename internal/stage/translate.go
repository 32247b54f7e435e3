package stage

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/livetranslate/internal/observe"
	"github.com/obiente/translate/livetranslate/internal/transcript"
)

// Translation wraps a Translator as a pipeline stage.
type Translation struct {
	Translator transcript.Translator
	Backend    string
	Workers    int
	Timeout    time.Duration
	Metrics    *observe.Metrics
}

// Process translates one recognized record. Failed and no-speech records
// pass through without touching the translator.
func (t *Translation) Process(ctx context.Context, r transcript.Recognized) transcript.Translated {
	res := transcript.Translated{Recognized: r}
	if r.Err != nil || r.NoSpeech() {
		return res
	}

	callCtx := ctx
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	started := time.Now()
	out, err := t.Translator.Translate(callCtx, r.Text)
	elapsed := time.Since(started)
	if t.Metrics != nil {
		t.Metrics.RecordTranslation(ctx, t.Backend, elapsed)
	}
	if err != nil {
		res.TranslateErr = transcript.NewStageError(transcript.ErrTranslation, r.Seq, err)
		log.Warn().
			Str("component", "translation").
			Str("backend", t.Backend).
			Uint64("seq", r.Seq).
			Err(err).
			Msg("translation failed")
		return res
	}
	res.Translation = out

	log.Debug().
		Str("component", "translation").
		Uint64("seq", r.Seq).
		Dur("elapsed", elapsed).
		Msg("translated")
	return res
}

// Run drives the worker pool until in is closed.
func (t *Translation) Run(ctx context.Context, in <-chan transcript.Recognized, out chan<- transcript.Translated) error {
	return Run(ctx, "translation", t.Workers, in, out, t.Process)
}
