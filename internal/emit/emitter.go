// Package emit restores sequence order after the unordered worker pools and
// delivers exactly one record per utterance to the sink.
package emit

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/livetranslate/internal/observe"
	"github.com/obiente/translate/livetranslate/internal/sink"
	"github.com/obiente/translate/livetranslate/internal/transcript"
)

// StallPolicy decides what happens when the holding set grows past its
// bound because an earlier sequence number has not completed.
type StallPolicy string

const (
	// StallWait keeps holding records until the missing one arrives.
	StallWait StallPolicy = "wait"
	// StallSkip gives up on the missing record after the stall timeout and
	// emits a backpressure error in its place.
	StallSkip StallPolicy = "skip"
)

// Config bounds the emitter.
type Config struct {
	// MaxPending is how many out-of-order records may be held before a
	// stall is raised. Zero or less disables the bound.
	MaxPending   int           `yaml:"max_pending"`
	StallPolicy  StallPolicy   `yaml:"stall_policy"`
	StallTimeout time.Duration `yaml:"stall_timeout"`
}

// DefaultConfig returns the default bound and policy.
func DefaultConfig() Config {
	return Config{
		MaxPending:   64,
		StallPolicy:  StallWait,
		StallTimeout: 10 * time.Second,
	}
}

// Validate checks the policy and timeout.
func (c Config) Validate() error {
	switch c.StallPolicy {
	case StallWait, StallSkip:
	default:
		return fmt.Errorf("stall_policy %q must be %q or %q", c.StallPolicy, StallWait, StallSkip)
	}
	if c.StallTimeout <= 0 {
		return fmt.Errorf("stall_timeout must be positive, got %s", c.StallTimeout)
	}
	return nil
}

// Emitter holds completed records keyed by sequence number and releases
// them in order. It is owned by a single goroutine.
type Emitter struct {
	cfg     Config
	metrics *observe.Metrics

	// OnStall, when set, receives every backpressure diagnostic.
	OnStall func(error)

	// Epoch is the wall-clock time of stream sample zero. When set, the
	// emit latency of each record is measured against it.
	Epoch time.Time

	next    uint64
	pending map[uint64]transcript.Translated
	highest uint64 // one past the highest seq seen

	stallSince time.Time
	lastDiag   time.Time

	now func() time.Time
}

// New returns an Emitter expecting sequence number zero first. metrics may
// be nil.
func New(cfg Config, metrics *observe.Metrics) *Emitter {
	return &Emitter{
		cfg:     cfg,
		metrics: metrics,
		pending: make(map[uint64]transcript.Translated),
		now:     time.Now,
	}
}

// Next returns the sequence number the emitter is waiting for.
func (e *Emitter) Next() uint64 { return e.next }

// Pending returns how many records are held.
func (e *Emitter) Pending() int { return len(e.pending) }

// Add inserts a completed record and returns every record that became
// releasable, in sequence order.
func (e *Emitter) Add(t transcript.Translated) []transcript.Record {
	if t.Seq < e.next {
		log.Warn().
			Str("component", "emitter").
			Uint64("seq", t.Seq).
			Uint64("next", e.next).
			Msg("dropping record for a sequence number already emitted")
		return nil
	}
	if _, dup := e.pending[t.Seq]; dup {
		log.Warn().
			Str("component", "emitter").
			Uint64("seq", t.Seq).
			Msg("dropping duplicate record")
		return nil
	}
	e.pending[t.Seq] = t
	e.highest = max(e.highest, t.Seq+1)
	e.addPending(1)

	out := e.release()
	return append(out, e.checkStall()...)
}

// Tick re-evaluates the stall policy against the clock. Run calls it
// periodically so a skip can happen without new arrivals.
func (e *Emitter) Tick() []transcript.Record {
	return e.checkStall()
}

// Close ends the stream. Gaps still open are reported as backpressure
// errors so nothing held is silently lost.
func (e *Emitter) Close() []transcript.Record {
	var out []transcript.Record
	for e.next < e.highest {
		if _, ok := e.pending[e.next]; !ok {
			log.Warn().
				Str("component", "emitter").
				Uint64("seq", e.next).
				Msg("input ended with sequence number missing")
			out = append(out, e.stallRecord(e.next))
			e.next++
		}
		out = append(out, e.release()...)
	}
	return out
}

// Run consumes in until it is closed, delivering records to s in order,
// then closes the stream.
func (e *Emitter) Run(ctx context.Context, in <-chan transcript.Translated, s sink.Sink) error {
	interval := max(e.cfg.StallTimeout/4, 10*time.Millisecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t, ok := <-in:
			if !ok {
				e.deliver(ctx, s, e.Close())
				log.Debug().
					Str("component", "emitter").
					Uint64("emitted", e.next).
					Msg("input closed")
				return nil
			}
			e.deliver(ctx, s, e.Add(t))
		case <-ticker.C:
			e.deliver(ctx, s, e.Tick())
		}
	}
}

func (e *Emitter) deliver(ctx context.Context, s sink.Sink, recs []transcript.Record) {
	for _, r := range recs {
		if e.metrics != nil {
			e.metrics.RecordUtterance(ctx, r.Kind.String())
			if !e.Epoch.IsZero() && r.End > 0 {
				e.metrics.EmitLatency.Record(ctx, e.now().Sub(e.Epoch.Add(r.End)).Seconds())
			}
		}
		if err := s.Emit(r); err != nil {
			log.Error().
				Str("component", "emitter").
				Uint64("seq", r.Seq).
				Err(err).
				Msg("sink rejected record")
		}
	}
}

func (e *Emitter) release() []transcript.Record {
	var out []transcript.Record
	for {
		t, ok := e.pending[e.next]
		if !ok {
			return out
		}
		delete(e.pending, e.next)
		e.addPending(-1)
		out = append(out, transcript.NewRecord(t))
		e.next++
		e.stallSince = time.Time{}
	}
}

func (e *Emitter) checkStall() []transcript.Record {
	if e.cfg.MaxPending <= 0 || len(e.pending) <= e.cfg.MaxPending {
		e.stallSince = time.Time{}
		return nil
	}
	now := e.now()
	if e.stallSince.IsZero() {
		e.stallSince = now
	}
	if e.lastDiag.IsZero() || now.Sub(e.lastDiag) >= e.cfg.StallTimeout {
		e.lastDiag = now
		e.diagnose(now)
	}
	if e.cfg.StallPolicy != StallSkip || now.Sub(e.stallSince) < e.cfg.StallTimeout {
		return nil
	}

	log.Warn().
		Str("component", "emitter").
		Uint64("seq", e.next).
		Dur("waited", now.Sub(e.stallSince)).
		Msg("skipping stalled sequence number")
	out := []transcript.Record{e.stallRecord(e.next)}
	e.next++
	e.stallSince = time.Time{}
	out = append(out, e.release()...)
	return append(out, e.checkStall()...)
}

func (e *Emitter) diagnose(now time.Time) {
	err := transcript.NewStageError(transcript.ErrBackpressureStall, e.next,
		fmt.Errorf("%d records held, bound %d", len(e.pending), e.cfg.MaxPending))
	log.Warn().
		Str("component", "emitter").
		Uint64("waiting_for", e.next).
		Int("pending", len(e.pending)).
		Dur("stalled", now.Sub(e.stallSince)).
		Str("policy", string(e.cfg.StallPolicy)).
		Msg("backpressure stall")
	if e.metrics != nil {
		e.metrics.BackpressureStalls.Add(context.Background(), 1)
	}
	if e.OnStall != nil {
		e.OnStall(err)
	}
}

func (e *Emitter) stallRecord(seq uint64) transcript.Record {
	err := transcript.NewStageError(transcript.ErrBackpressureStall, seq, nil)
	return transcript.Record{
		Seq:  seq,
		Kind: transcript.KindOf(err),
		Err:  err,
	}
}

func (e *Emitter) addPending(n int64) {
	if e.metrics != nil {
		e.metrics.PendingRecords.Add(context.Background(), n)
	}
}
