package audio

import (
	"bytes"
	"errors"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// DecodeWAV decodes a small WAV blob into a normalised SampleFrame. The
// native channel layout is preserved; callers resample afterwards.
func DecodeWAV(b []byte) (SampleFrame, error) {
	dec := wav.NewDecoder(bytes.NewReader(b))
	if !dec.IsValidFile() {
		return SampleFrame{}, errors.New("invalid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil && err != io.EOF {
		return SampleFrame{}, err
	}
	if buf == nil {
		return SampleFrame{}, errors.New("empty wav buffer")
	}
	f := Format{SampleRate: int(dec.SampleRate), Channels: int(dec.NumChans)}
	if f.SampleRate == 0 && buf.Format != nil {
		f.SampleRate = buf.Format.SampleRate
	}
	if f.Channels == 0 && buf.Format != nil {
		f.Channels = buf.Format.NumChannels
	}
	return SampleFrame{
		Data:       intsToFloat(buf.Data, buf.SourceBitDepth),
		SampleRate: f.SampleRate,
		Channels:   f.Channels,
	}, nil
}

// ReadWAVFormat reads only the header of a WAV stream.
func ReadWAVFormat(r io.ReadSeeker) (Format, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return Format{}, errors.New("invalid wav file")
	}
	return Format{SampleRate: int(dec.SampleRate), Channels: int(dec.NumChans)}, nil
}

// ReadWAVFrames streams a WAV file as frames of at most frameLen samples per
// channel and calls fn for each one. It stops at the first error from fn.
func ReadWAVFrames(r io.ReadSeeker, frameLen int, fn func(SampleFrame) error) (Format, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return Format{}, errors.New("invalid wav file")
	}
	f := Format{SampleRate: int(dec.SampleRate), Channels: int(dec.NumChans)}
	if f.Channels <= 0 {
		f.Channels = 1
	}
	if frameLen <= 0 {
		frameLen = 1024
	}
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{NumChannels: f.Channels, SampleRate: f.SampleRate},
		Data:   make([]int, frameLen*f.Channels),
	}
	for {
		n, err := dec.PCMBuffer(buf)
		if err != nil {
			return f, err
		}
		if n == 0 {
			return f, nil
		}
		frame := SampleFrame{
			Data:       intsToFloat(buf.Data[:n], int(dec.BitDepth)),
			SampleRate: f.SampleRate,
			Channels:   f.Channels,
		}
		if err := fn(frame); err != nil {
			return f, err
		}
	}
}

// EncodeWAV encodes canonical mono samples as a 16-bit PCM WAV blob.
func EncodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	ints := ToInt16(samples)
	data := make([]int, len(ints))
	for i, v := range ints {
		data[i] = int(v)
	}
	w := &memFile{}
	enc := wav.NewEncoder(w, sampleRate, 16, 1, 1)
	if err := enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return w.buf, nil
}

func intsToFloat(in []int, bitDepth int) []float32 {
	if bitDepth <= 0 {
		bitDepth = 16
	}
	maxInt := 1 << (bitDepth - 1)
	if maxInt <= 0 {
		maxInt = 32768
	}
	max := float32(maxInt)
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v) / max
	}
	return out
}

// memFile is the in-memory io.WriteSeeker the wav encoder needs to patch
// its header after the data chunk is written.
type memFile struct {
	buf []byte
	off int
}

func (m *memFile) Write(p []byte) (int, error) {
	if need := m.off + len(p); need > len(m.buf) {
		m.buf = append(m.buf, make([]byte, need-len(m.buf))...)
	}
	copy(m.buf[m.off:], p)
	m.off += len(p)
	return len(p), nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(m.off) + offset
	case io.SeekEnd:
		abs = int64(len(m.buf)) + offset
	default:
		return 0, errors.New("memfile: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("memfile: negative position")
	}
	m.off = int(abs)
	return abs, nil
}
