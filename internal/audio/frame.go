// Package audio converts native device audio into the canonical 16 kHz mono
// float32 PCM used by the rest of the pipeline.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Format is the native sample rate and channel count of a stream. It is
// declared once at stream start and assumed constant afterwards.
type Format struct {
	SampleRate int
	Channels   int
}

func (f Format) String() string {
	ch := "mono"
	if f.Channels == 2 {
		ch = "stereo"
	} else if f.Channels > 2 {
		ch = fmt.Sprintf("%dch", f.Channels)
	}
	return fmt.Sprintf("%dHz %s", f.SampleRate, ch)
}

// SampleFrame is a block of interleaved samples normalised to [-1, 1].
type SampleFrame struct {
	Data       []float32
	SampleRate int
	Channels   int
}

// Format returns the frame's native format.
func (f SampleFrame) Format() Format {
	return Format{SampleRate: f.SampleRate, Channels: f.Channels}
}

// FrameFromInt16 normalises signed 16-bit samples into a SampleFrame.
func FrameFromInt16(samples []int16, format Format) SampleFrame {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768.0
	}
	return SampleFrame{Data: out, SampleRate: format.SampleRate, Channels: format.Channels}
}

// FrameFromPCM16LE decodes little-endian PCM16 bytes into a SampleFrame.
func FrameFromPCM16LE(b []byte, format Format) (SampleFrame, error) {
	pcm, err := DecodePCM16LE(b)
	if err != nil {
		return SampleFrame{}, err
	}
	return SampleFrame{Data: pcm, SampleRate: format.SampleRate, Channels: format.Channels}, nil
}

// DecodePCM16LE converts little-endian PCM16 bytes into float32 samples.
func DecodePCM16LE(b []byte) ([]float32, error) {
	if len(b)%2 != 0 {
		return nil, errors.New("pcm16 length must be even")
	}
	out := make([]float32, len(b)/2)
	for i := range out {
		v := int16(binary.LittleEndian.Uint16(b[2*i:]))
		out[i] = float32(v) / 32768.0
	}
	return out, nil
}

// Downmix averages interleaved channels into mono. A trailing partial frame
// is ignored. Mono input is returned as is.
func Downmix(data []float32, channels int) []float32 {
	if channels <= 1 {
		return data
	}
	frames := len(data) / channels
	out := make([]float32, frames)
	for i := range frames {
		var sum float32
		for ch := range channels {
			sum += data[i*channels+ch]
		}
		out[i] = sum / float32(channels)
	}
	return out
}

// ToInt16 converts normalised samples back to signed 16-bit with clamping.
func ToInt16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		v := s * 32767.0
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		out[i] = int16(v)
	}
	return out
}
