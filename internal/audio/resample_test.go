package audio

import (
	"errors"
	"testing"

	"github.com/obiente/translate/livetranslate/internal/transcript"
)

func ramp(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i) / float32(n)
	}
	return out
}

func TestResample_CanonicalIsIdentity(t *testing.T) {
	r := NewResampler()
	in := ramp(1600)
	out, err := r.Resample(SampleFrame{Data: in, SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("length mismatch: got %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("sample %d: got %v, want %v", i, out[i], in[i])
		}
	}
}

func TestResample_Downmix(t *testing.T) {
	r := NewResampler()
	stereo := []float32{0.5, 0.1, -0.5, -0.1, 1, 0}
	out, err := r.Resample(SampleFrame{Data: stereo, SampleRate: 16000, Channels: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []float32{0.3, -0.3, 0.5}
	if len(out) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(out), len(want))
	}
	for i := range want {
		if d := out[i] - want[i]; d > 1e-6 || d < -1e-6 {
			t.Errorf("sample %d: got %v, want %v", i, out[i], want[i])
		}
	}
}

func TestResample_48kDecimates(t *testing.T) {
	r := NewResampler()
	in := ramp(4800)
	out, err := r.Resample(SampleFrame{Data: in, SampleRate: 48000, Channels: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1600 {
		t.Fatalf("expected 1600 samples, got %d", len(out))
	}
	for k := range out {
		if out[k] != in[3*k] {
			t.Fatalf("sample %d: got %v, want %v", k, out[k], in[3*k])
		}
	}
}

func TestResample_SplitFramesMatchSingleFrame(t *testing.T) {
	in := ramp(48000)

	whole, err := NewResampler().Resample(SampleFrame{Data: in, SampleRate: 48000, Channels: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r := NewResampler()
	var split []float32
	for _, size := range []int{1000, 7, 4093, 480, 20000} {
		chunk := in[:size]
		in = in[size:]
		out, err := r.Resample(SampleFrame{Data: chunk, SampleRate: 48000, Channels: 1})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		split = append(split, out...)
	}
	out, _ := r.Resample(SampleFrame{Data: in, SampleRate: 48000, Channels: 1})
	split = append(split, out...)

	if len(split) != len(whole) {
		t.Fatalf("length mismatch: split %d, whole %d", len(split), len(whole))
	}
	for i := range whole {
		if split[i] != whole[i] {
			t.Fatalf("sample %d: split %v, whole %v", i, split[i], whole[i])
		}
	}
}

func TestResample_44100Length(t *testing.T) {
	out, err := NewResampler().Resample(SampleFrame{Data: make([]float32, 44100), SampleRate: 44100, Channels: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) < 15999 || len(out) > 16001 {
		t.Errorf("expected ~16000 samples, got %d", len(out))
	}
}

func TestResample_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		frame SampleFrame
	}{
		{"zero channels", SampleFrame{Data: []float32{1}, SampleRate: 48000}},
		{"zero rate", SampleFrame{Data: []float32{1}, Channels: 1}},
		{"negative rate", SampleFrame{Data: []float32{1}, SampleRate: -1, Channels: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewResampler().Resample(tt.frame)
			if !errors.Is(err, transcript.ErrResample) {
				t.Errorf("expected ErrResample, got %v", err)
			}
		})
	}
}
