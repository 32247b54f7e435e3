// Package segment turns the continuous canonical PCM stream into bounded
// utterance windows using a short-time energy and duration policy, and
// assigns each window its sequence number.
package segment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/livetranslate/internal/capture"
	"github.com/obiente/translate/livetranslate/internal/transcript"
)

// Config holds the segmentation thresholds. They are tuning choices rather
// than correctness constraints.
type Config struct {
	// Window is the analysis window for short-time energy.
	Window time.Duration `yaml:"window"`

	// EnergyThreshold is the RMS level (normalised samples, 0..1) at or
	// above which a window counts as speech.
	EnergyThreshold float64 `yaml:"energy_threshold"`

	// Silence is how much consecutive low-energy audio closes an utterance
	// once speech has been heard.
	Silence time.Duration `yaml:"silence"`

	// MinDuration is the shortest voiced span worth recognising. Shorter
	// utterances are dropped before they get a sequence number.
	MinDuration time.Duration `yaml:"min_duration"`

	// MaxDuration forces a cut when no silence boundary shows up in time.
	MaxDuration time.Duration `yaml:"max_duration"`

	// PreRoll is how much leading silence is kept in front of speech.
	PreRoll time.Duration `yaml:"pre_roll"`
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		Window:          100 * time.Millisecond,
		EnergyThreshold: 0.01,
		Silence:         500 * time.Millisecond,
		MinDuration:     200 * time.Millisecond,
		MaxDuration:     20 * time.Second,
		PreRoll:         200 * time.Millisecond,
	}
}

// Validate checks that the thresholds are coherent.
func (c Config) Validate() error {
	var errs []error
	if c.Window <= 0 {
		errs = append(errs, fmt.Errorf("window must be positive, got %s", c.Window))
	}
	if c.EnergyThreshold < 0 || c.EnergyThreshold > 1 {
		errs = append(errs, fmt.Errorf("energy_threshold %.4f is out of range [0, 1]", c.EnergyThreshold))
	}
	if c.Silence < c.Window {
		errs = append(errs, fmt.Errorf("silence %s must be at least one window (%s)", c.Silence, c.Window))
	}
	if c.MinDuration < 0 {
		errs = append(errs, fmt.Errorf("min_duration must not be negative, got %s", c.MinDuration))
	}
	if c.MaxDuration <= c.MinDuration || c.MaxDuration < c.Window {
		errs = append(errs, fmt.Errorf("max_duration %s must exceed min_duration %s and window %s", c.MaxDuration, c.MinDuration, c.Window))
	}
	if c.PreRoll < 0 || c.PreRoll >= c.MaxDuration {
		errs = append(errs, fmt.Errorf("pre_roll %s must be in [0, max_duration)", c.PreRoll))
	}
	return errors.Join(errs...)
}

// Segmenter is owned by a single goroutine; it is not safe for concurrent
// use. The sequence counter lives here and nowhere else.
type Segmenter struct {
	cfg Config

	win, silence, minVoiced, max, preRoll int // in samples

	nextSeq uint64
	started bool

	acc      []float32
	accStart int64 // absolute sample index of acc[0]
	analyzed int   // samples of acc already classified

	hadSpeech   bool
	silenceRun  int
	firstVoiced int
	lastVoiced  int

	discarded int
}

// New returns a Segmenter. The config must be valid.
func New(cfg Config) *Segmenter {
	win := max(transcript.DurationToSamples(cfg.Window), 1)
	return &Segmenter{
		cfg:       cfg,
		win:       win,
		silence:   transcript.DurationToSamples(cfg.Silence),
		minVoiced: transcript.DurationToSamples(cfg.MinDuration),
		max:       max(transcript.DurationToSamples(cfg.MaxDuration), win),
		preRoll:   transcript.DurationToSamples(cfg.PreRoll),
	}
}

// NextSeq returns the sequence number the next utterance will receive.
func (s *Segmenter) NextSeq() uint64 { return s.nextSeq }

// Discarded returns how many candidate utterances were dropped as noise.
func (s *Segmenter) Discarded() int { return s.discarded }

// Feed appends a drained chunk and returns every utterance it closes.
func (s *Segmenter) Feed(c capture.Chunk) []transcript.Utterance {
	if len(c.Samples) == 0 {
		return nil
	}
	var out []transcript.Utterance
	switch {
	case !s.started:
		s.started = true
		s.accStart = c.Start
	case c.Start != s.accStart+int64(len(s.acc)):
		gap := c.Start - (s.accStart + int64(len(s.acc)))
		log.Warn().
			Str("component", "segmenter").
			Int64("gap_samples", gap).
			Dur("gap", transcript.SamplesToDuration(gap)).
			Msg("capture overflow: closing pending utterance at discontinuity")
		out = append(out, s.closeTail()...)
		s.accStart = c.Start
	}
	s.acc = append(s.acc, c.Samples...)
	return append(out, s.scan()...)
}

// Flush closes whatever is pending at end of stream. The result is kept
// only if its voiced span meets MinDuration.
func (s *Segmenter) Flush() []transcript.Utterance {
	if len(s.acc) == 0 {
		return nil
	}
	return s.closeTail()
}

// closeTail closes everything accumulated, including samples not yet
// analyzed. Audio beyond MaxDuration is cut first so no utterance exceeds it.
func (s *Segmenter) closeTail() []transcript.Utterance {
	var out []transcript.Utterance
	for s.hadSpeech && len(s.acc) > s.max {
		out = append(out, s.forceCut())
	}
	return append(out, s.closeAt(len(s.acc))...)
}

// Run drains buf until it is closed, sending utterances to out in sequence
// order. out is closed on return.
func (s *Segmenter) Run(ctx context.Context, buf *capture.Buffer, out chan<- transcript.Utterance) error {
	defer close(out)
	send := func(us []transcript.Utterance) error {
		for _, u := range us {
			select {
			case out <- u:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}
	for {
		err := buf.Wait(ctx)
		if errors.Is(err, capture.ErrClosed) {
			us := s.Flush()
			log.Debug().
				Str("component", "segmenter").
				Int("flushed", len(us)).
				Uint64("next_seq", s.nextSeq).
				Msg("capture closed")
			return send(us)
		}
		if err != nil {
			return err
		}
		if err := send(s.Feed(buf.Drain())); err != nil {
			return err
		}
	}
}

func (s *Segmenter) scan() []transcript.Utterance {
	var out []transcript.Utterance
	for s.analyzed+s.win <= len(s.acc) {
		end := s.analyzed + s.win
		voiced := rms(s.acc[s.analyzed:end]) >= s.cfg.EnergyThreshold
		s.analyzed = end

		switch {
		case voiced:
			if !s.hadSpeech {
				s.hadSpeech = true
				s.firstVoiced = end - s.win
			}
			s.lastVoiced = end
			s.silenceRun = 0
		case s.hadSpeech:
			s.silenceRun += s.win
		default:
			if drop := s.analyzed - s.preRoll; drop > 0 {
				s.discard(drop)
			}
			continue
		}

		if s.silenceRun >= s.silence && end <= s.max {
			out = append(out, s.closeAt(end)...)
			continue
		}
		if end >= s.max {
			out = append(out, s.forceCut())
		}
	}
	return out
}

// closeAt ends the current utterance at acc[cut] and resets the speech
// state for whatever follows.
func (s *Segmenter) closeAt(cut int) []transcript.Utterance {
	var out []transcript.Utterance
	if s.hadSpeech && s.lastVoiced-s.firstVoiced >= s.minVoiced {
		out = append(out, s.emit(cut))
	} else if s.hadSpeech {
		s.discarded++
		log.Debug().
			Str("component", "segmenter").
			Dur("voiced", transcript.SamplesToDuration(int64(s.lastVoiced-s.firstVoiced))).
			Msg("discarding short utterance")
	}
	s.discard(cut)
	s.hadSpeech = false
	s.silenceRun = 0
	s.firstVoiced, s.lastVoiced = 0, 0
	return out
}

// forceCut closes exactly MaxDuration of audio; the rest continues as the
// next utterance, which is still mid-speech.
func (s *Segmenter) forceCut() transcript.Utterance {
	u := s.emit(s.max)
	last := s.lastVoiced - s.max
	s.discard(s.max)
	s.hadSpeech = true
	s.firstVoiced = 0
	s.lastVoiced = max(last, 0)
	log.Debug().
		Str("component", "segmenter").
		Uint64("seq", u.Seq).
		Dur("max", s.cfg.MaxDuration).
		Msg("forced cut at max duration")
	return u
}

func (s *Segmenter) emit(cut int) transcript.Utterance {
	u := transcript.Utterance{
		Seq:   s.nextSeq,
		PCM:   s.acc[:cut:cut],
		Start: transcript.SamplesToDuration(s.accStart),
		End:   transcript.SamplesToDuration(s.accStart + int64(cut)),
	}
	s.nextSeq++
	return u
}

// discard drops the first n samples. The remainder is copied so emitted
// utterances never share a backing array with the accumulator.
func (s *Segmenter) discard(n int) {
	s.acc = append([]float32(nil), s.acc[n:]...)
	s.accStart += int64(n)
	s.analyzed = max(s.analyzed-n, 0)
}

func rms(w []float32) float64 {
	if len(w) == 0 {
		return 0
	}
	var sum float64
	for _, v := range w {
		f := float64(v)
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(w)))
}
