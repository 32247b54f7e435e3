package audio

import (
	"fmt"

	"github.com/obiente/translate/livetranslate/internal/transcript"
)

// Resampler retargets a single stream to canonical 16 kHz mono using linear
// interpolation. The last input sample and the fractional read position are
// carried between calls so consecutive frames join without a click.
// Frames must be supplied in arrival order; not safe for concurrent use.
type Resampler struct {
	target int

	rate   int     // native rate the carried state belongs to
	pos    float64 // read position; index 0 is prev when primed
	prev   float32
	primed bool
}

// NewResampler returns a Resampler targeting the canonical sample rate.
func NewResampler() *Resampler {
	return &Resampler{target: transcript.SampleRate}
}

// Resample converts one frame. Canonical input is returned unchanged.
// Frames with a non-positive rate or channel count fail with
// transcript.ErrResample and leave the carried state untouched.
func (r *Resampler) Resample(f SampleFrame) ([]float32, error) {
	if f.Channels <= 0 || f.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: %d channels at %d Hz", transcript.ErrResample, f.Channels, f.SampleRate)
	}
	mono := Downmix(f.Data, f.Channels)

	if f.SampleRate == r.target {
		r.reset(f.SampleRate)
		return mono, nil
	}
	if f.SampleRate != r.rate {
		r.reset(f.SampleRate)
	}
	if len(mono) == 0 {
		return nil, nil
	}

	n := len(mono)
	if r.primed {
		n++
	}
	at := func(i int) float32 {
		if r.primed {
			if i == 0 {
				return r.prev
			}
			return mono[i-1]
		}
		return mono[i]
	}

	step := float64(f.SampleRate) / float64(r.target)
	out := make([]float32, 0, int(float64(len(mono))/step)+1)
	pos := r.pos
	for {
		i := int(pos)
		if i+1 >= n {
			break
		}
		frac := float32(pos - float64(i))
		s0, s1 := at(i), at(i+1)
		out = append(out, s0+(s1-s0)*frac)
		pos += step
	}

	r.prev = mono[len(mono)-1]
	r.pos = pos - float64(n-1)
	r.primed = true
	return out, nil
}

func (r *Resampler) reset(rate int) {
	r.rate = rate
	r.pos = 0
	r.prev = 0
	r.primed = false
}
