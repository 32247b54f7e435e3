// Package pipeline wires a source through resampling, capture, segmentation,
// recognition, translation and ordered emission.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/obiente/translate/livetranslate/internal/audio"
	"github.com/obiente/translate/livetranslate/internal/capture"
	"github.com/obiente/translate/livetranslate/internal/emit"
	"github.com/obiente/translate/livetranslate/internal/observe"
	"github.com/obiente/translate/livetranslate/internal/segment"
	"github.com/obiente/translate/livetranslate/internal/sink"
	"github.com/obiente/translate/livetranslate/internal/source"
	"github.com/obiente/translate/livetranslate/internal/stage"
	"github.com/obiente/translate/livetranslate/internal/transcript"
)

// Config holds the buffering and stage settings shared by every run.
type Config struct {
	// CaptureBuffer is how much canonical audio the capture ring holds.
	CaptureBuffer time.Duration `yaml:"capture_buffer"`
	// QueueSize bounds each inter-stage channel.
	QueueSize int `yaml:"queue_size"`

	Segment segment.Config `yaml:"segment"`
	Emit    emit.Config    `yaml:"emit"`
}

// DefaultConfig returns the default buffering.
func DefaultConfig() Config {
	return Config{
		CaptureBuffer: 60 * time.Second,
		QueueSize:     16,
		Segment:       segment.DefaultConfig(),
		Emit:          emit.DefaultConfig(),
	}
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.CaptureBuffer < c.Segment.Window {
		errs = append(errs, fmt.Errorf("capture_buffer %s must hold at least one analysis window", c.CaptureBuffer))
	}
	if c.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("queue_size must be at least 1, got %d", c.QueueSize))
	}
	if err := c.Segment.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("segment: %w", err))
	}
	if err := c.Emit.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("emit: %w", err))
	}
	return errors.Join(errs...)
}

// Pipeline is a single run from one source to one sink.
type Pipeline struct {
	cfg         Config
	source      source.Source
	recognition *stage.Recognition
	translation *stage.Translation
	sink        sink.Sink
	metrics     *observe.Metrics

	// OnStall receives backpressure diagnostics from the emitter.
	OnStall func(error)
}

// New assembles a pipeline. metrics may be nil. The stages' Metrics fields
// default to the pipeline's.
func New(cfg Config, src source.Source, rec *stage.Recognition, tr *stage.Translation, s sink.Sink, metrics *observe.Metrics) *Pipeline {
	if rec.Metrics == nil {
		rec.Metrics = metrics
	}
	if tr.Metrics == nil {
		tr.Metrics = metrics
	}
	return &Pipeline{
		cfg:         cfg,
		source:      src,
		recognition: rec,
		translation: tr,
		sink:        s,
		metrics:     metrics,
	}
}

// Run blocks until the source ends and every utterance has been emitted, or
// until ctx is cancelled. Closing the source stops capture gracefully. A
// device failure ends capture the same way and is returned once the
// remaining records have been delivered.
func (p *Pipeline) Run(ctx context.Context) error {
	buf := capture.New(transcript.DurationToSamples(p.cfg.CaptureBuffer))
	seg := segment.New(p.cfg.Segment)
	em := emit.New(p.cfg.Emit, p.metrics)
	em.OnStall = p.OnStall
	em.Epoch = time.Now()

	utterances := make(chan transcript.Utterance, p.cfg.QueueSize)
	recognized := make(chan transcript.Recognized, p.cfg.QueueSize)
	translated := make(chan transcript.Translated, p.cfg.QueueSize)

	log.Info().
		Str("component", "pipeline").
		Str("format", p.source.Format().String()).
		Int("capture_samples", buf.Cap()).
		Int("recognition_workers", p.recognition.Workers).
		Int("translation_workers", p.translation.Workers).
		Msg("pipeline starting")

	var deviceErr error
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := p.source.Start(gctx, p.pusher(gctx, buf))
		buf.Close()
		if errors.Is(err, transcript.ErrDevice) {
			log.Error().Str("component", "pipeline").Err(err).Msg("capture failed; draining")
			deviceErr = err
			return nil
		}
		return err
	})
	g.Go(func() error { return seg.Run(gctx, buf, utterances) })
	g.Go(func() error { return p.recognition.Run(gctx, utterances, recognized) })
	g.Go(func() error { return p.translation.Run(gctx, recognized, translated) })
	g.Go(func() error { return em.Run(gctx, translated, p.sink) })

	err := g.Wait()
	written, evicted := buf.Stats()
	log.Info().
		Str("component", "pipeline").
		Int64("samples", written).
		Int64("evicted", evicted).
		Uint64("utterances", seg.NextSeq()).
		Int("discarded", seg.Discarded()).
		Err(err).
		Msg("pipeline stopped")
	if err != nil {
		return err
	}
	return deviceErr
}

// pusher returns the callback handed to the source. Frames are resampled
// inline and written to the overwrite-on-overflow buffer. For live sources
// it never blocks; replay sources wait for room so nothing is evicted.
func (p *Pipeline) pusher(ctx context.Context, buf *capture.Buffer) func(audio.SampleFrame) {
	rs := audio.NewResampler()
	wait := source.CanBlock(p.source)
	var (
		mu          sync.Mutex
		lastEvicted int64
		lastWarn    time.Time
	)
	return func(f audio.SampleFrame) {
		mu.Lock()
		defer mu.Unlock()

		pcm, err := rs.Resample(f)
		if err != nil {
			if p.metrics != nil {
				p.metrics.DroppedFrames.Add(ctx, 1)
			}
			if time.Since(lastWarn) > time.Second {
				lastWarn = time.Now()
				log.Warn().Str("component", "pipeline").Err(err).Msg("dropping frame")
			}
			return
		}
		if wait {
			if err := buf.WaitRoom(ctx, len(pcm)); err != nil {
				return
			}
		}
		buf.Push(pcm)

		if _, evicted := buf.Stats(); evicted > lastEvicted {
			if p.metrics != nil {
				p.metrics.EvictedSamples.Add(ctx, evicted-lastEvicted)
			}
			if time.Since(lastWarn) > time.Second {
				lastWarn = time.Now()
				log.Warn().
					Str("component", "pipeline").
					Int64("evicted", evicted).
					Msg("capture buffer overflow; oldest audio overwritten")
			}
			lastEvicted = evicted
		}
	}
}
