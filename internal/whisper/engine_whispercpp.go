//go:build whisper_cpp

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	whisperpkg "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/livetranslate/internal/transcript"
)

// EngineCPP is the whisper.cpp-backed Engine. The model is shared and
// whisper.cpp is not safe for concurrent inference on one model, so calls
// are serialised; extra recognition workers only queue here.
type EngineCPP struct {
	model    whisperpkg.Model
	threads  uint
	language string
	mu       sync.Mutex
}

func NewEngine(opts Options) (Engine, error) {
	m, err := whisperpkg.New(opts.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	e := &EngineCPP{
		model:    m,
		threads:  opts.threads(),
		language: opts.language(),
	}
	log.Info().
		Str("component", "whisper").
		Str("model", opts.ModelPath).
		Uint("threads", e.threads).
		Str("language", e.language).
		Bool("multilingual", m.IsMultilingual()).
		Msg("whisper: model loaded")
	return e, nil
}

func (e *EngineCPP) Close() error {
	if e.model != nil {
		return e.model.Close()
	}
	return nil
}

// Recognize runs a full transcription of pcm with greedy decoding and joins
// the segments. Cancelling ctx aborts before the encoder starts.
func (e *EngineCPP) Recognize(ctx context.Context, pcm []float32) (transcript.Recognition, error) {
	if len(pcm) == 0 {
		return transcript.Recognition{}, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return transcript.Recognition{}, err
	}

	wctx, err := e.model.NewContext()
	if err != nil {
		return transcript.Recognition{}, fmt.Errorf("create context: %w", err)
	}
	wctx.SetThreads(e.threads)
	if err := wctx.SetLanguage(e.language); err != nil {
		return transcript.Recognition{}, fmt.Errorf("set language %q: %w", e.language, err)
	}
	wctx.SetTranslate(false)
	wctx.SetSplitOnWord(true)
	wctx.SetMaxSegmentLength(0)
	wctx.SetMaxTokensPerSegment(0)

	encoderBegin := func() bool { return ctx.Err() == nil }
	if err := wctx.Process(pcm, encoderBegin, nil, nil); err != nil {
		if ctx.Err() != nil {
			return transcript.Recognition{}, ctx.Err()
		}
		return transcript.Recognition{}, fmt.Errorf("process audio: %w", err)
	}

	var segments []string
	for {
		seg, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Warn().Str("component", "whisper").Err(err).Msg("whisper: error reading segment")
			break
		}
		if text := strings.TrimSpace(seg.Text); text != "" {
			segments = append(segments, text)
		}
	}

	lang := wctx.Language()
	if lang == "" || lang == "auto" {
		lang = wctx.DetectedLanguage()
	}
	full := strings.TrimSpace(strings.Join(segments, " "))

	log.Debug().
		Str("component", "whisper").
		Int("segments", len(segments)).
		Int("samples", len(pcm)).
		Str("lang", lang).
		Msg("whisper: transcription complete")
	return transcript.Recognition{Text: full, Language: lang}, nil
}
