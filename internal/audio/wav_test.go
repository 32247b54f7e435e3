package audio

import (
	"bytes"
	"testing"
)

func TestEncodeWAV_DecodesBack(t *testing.T) {
	in := []float32{0, 0.25, -0.25, 0.5}
	blob, err := EncodeWAV(in, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	frame, err := DecodeWAV(blob)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if frame.SampleRate != 16000 || frame.Channels != 1 {
		t.Fatalf("format: got %s", frame.Format())
	}
	if len(frame.Data) != len(in) {
		t.Fatalf("length mismatch: got %d, want %d", len(frame.Data), len(in))
	}
	for i := range in {
		if d := frame.Data[i] - in[i]; d > 1e-3 || d < -1e-3 {
			t.Errorf("sample %d: got %v, want %v", i, frame.Data[i], in[i])
		}
	}
}

func TestReadWAVFrames_Chunks(t *testing.T) {
	blob, err := EncodeWAV(make([]float32, 2500), 16000)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	var sizes []int
	f, err := ReadWAVFrames(bytes.NewReader(blob), 1000, func(fr SampleFrame) error {
		sizes = append(sizes, len(fr.Data))
		return nil
	})
	if err != nil {
		t.Fatalf("ReadWAVFrames: %v", err)
	}
	if f.SampleRate != 16000 || f.Channels != 1 {
		t.Errorf("format: got %s", f)
	}
	total := 0
	for _, n := range sizes {
		if n > 1000 {
			t.Errorf("frame larger than requested: %d", n)
		}
		total += n
	}
	if total != 2500 {
		t.Errorf("total samples: got %d, want 2500", total)
	}
}

func TestDecodeWAV_Invalid(t *testing.T) {
	if _, err := DecodeWAV([]byte("not a wav")); err == nil {
		t.Error("expected error for invalid input")
	}
}
