package source

import (
	"context"
	"sync"
	"time"

	"github.com/obiente/translate/livetranslate/internal/audio"
)

// Memory replays pre-built frames. With Realtime set it sleeps between
// frames so the stream runs at wall-clock speed.
type Memory struct {
	format   audio.Format
	frames   []audio.SampleFrame
	err      error
	Realtime bool

	once sync.Once
	done chan struct{}
}

// NewMemory returns a source that replays frames. If err is non-nil Start
// returns it after the last frame, simulating a device failure.
func NewMemory(format audio.Format, frames []audio.SampleFrame, err error) *Memory {
	return &Memory{format: format, frames: frames, err: err, done: make(chan struct{})}
}

// Split cuts interleaved samples into frames of frameLen per channel.
func Split(data []float32, format audio.Format, frameLen int) []audio.SampleFrame {
	step := max(frameLen, 1) * max(format.Channels, 1)
	var out []audio.SampleFrame
	for off := 0; off < len(data); off += step {
		end := min(off+step, len(data))
		out = append(out, audio.SampleFrame{Data: data[off:end], SampleRate: format.SampleRate, Channels: format.Channels})
	}
	return out
}

func (m *Memory) Format() audio.Format { return m.format }

func (m *Memory) Start(ctx context.Context, push func(audio.SampleFrame)) error {
	for _, f := range m.frames {
		select {
		case <-ctx.Done():
			return nil
		case <-m.done:
			return nil
		default:
		}
		push(f)
		if m.Realtime && f.SampleRate > 0 && f.Channels > 0 {
			d := time.Duration(len(f.Data)/f.Channels) * time.Second / time.Duration(f.SampleRate)
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return nil
			case <-m.done:
				return nil
			}
		}
	}
	return m.err
}

// Backpressure reports whether push may block: only when not replaying in
// real time.
func (m *Memory) Backpressure() bool { return !m.Realtime }

func (m *Memory) Close() error {
	m.once.Do(func() { close(m.done) })
	return nil
}
