package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/obiente/translate/livetranslate/internal/audio"
	"github.com/obiente/translate/livetranslate/internal/transcript"
)

func TestMemory_ReplaysThenReturnsError(t *testing.T) {
	format := audio.Format{SampleRate: 48000, Channels: 2}
	frames := Split(make([]float32, 48000*2), format, 960)
	if len(frames) != 50 {
		t.Fatalf("Split produced %d frames, want 50", len(frames))
	}

	src := NewMemory(format, frames, transcript.ErrDevice)
	var n int
	err := src.Start(context.Background(), func(audio.SampleFrame) { n++ })
	if !errors.Is(err, transcript.ErrDevice) {
		t.Errorf("err = %v, want device error", err)
	}
	if n != 50 {
		t.Errorf("pushed %d frames, want 50", n)
	}
}

func TestMemory_CloseStops(t *testing.T) {
	format := audio.Format{SampleRate: 16000, Channels: 1}
	src := NewMemory(format, Split(make([]float32, 16000*10), format, 1600), nil)
	src.Realtime = true

	done := make(chan error, 1)
	go func() { done <- src.Start(context.Background(), func(audio.SampleFrame) {}) }()
	time.Sleep(20 * time.Millisecond)
	src.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start after Close = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Close")
	}
}

func TestFile_StreamsWAV(t *testing.T) {
	pcm := make([]float32, 16000)
	for i := range pcm {
		pcm[i] = 0.25
	}
	blob, err := audio.EncodeWAV(pcm, 16000)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "in.wav")
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		t.Fatal(err)
	}

	src, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer src.Close()
	if got := src.Format(); got.SampleRate != 16000 || got.Channels != 1 {
		t.Fatalf("format = %v", got)
	}

	var total, frames int
	err = src.Start(context.Background(), func(f audio.SampleFrame) {
		frames++
		total += len(f.Data)
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if total != 16000 {
		t.Errorf("streamed %d samples, want 16000", total)
	}
	if frames != 50 {
		t.Errorf("frames = %d, want 50 at 20ms", frames)
	}
}

func TestOpenFile_Missing(t *testing.T) {
	_, err := OpenFile(filepath.Join(t.TempDir(), "nope.wav"))
	if !errors.Is(err, transcript.ErrDevice) {
		t.Errorf("err = %v, want device error", err)
	}
}

func TestFile_CloseDuringReplayIsGraceful(t *testing.T) {
	blob, err := audio.EncodeWAV(make([]float32, 16000*5), 16000)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "long.wav")
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		t.Fatal(err)
	}
	src, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if !src.Backpressure() {
		t.Error("non-realtime file should accept a blocking push")
	}
	var frames int
	err = src.Start(context.Background(), func(audio.SampleFrame) {
		frames++
		if frames == 3 {
			src.Close()
		}
	})
	if err != nil {
		t.Fatalf("Start after Close = %v, want graceful stop", err)
	}
	if frames != 3 {
		t.Errorf("frames = %d, want 3", frames)
	}
	if _, err := src.f.Stat(); err == nil {
		t.Error("file still open after Start returned")
	}
}

func TestFile_CloseBeforeStart(t *testing.T) {
	blob, err := audio.EncodeWAV(make([]float32, 1600), 16000)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "short.wav")
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		t.Fatal(err)
	}
	src, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	var frames int
	if err := src.Start(context.Background(), func(audio.SampleFrame) { frames++ }); err != nil || frames != 0 {
		t.Errorf("Start after Close: frames=%d err=%v", frames, err)
	}
}

func TestCanBlock(t *testing.T) {
	format := audio.Format{SampleRate: 16000, Channels: 1}
	m := NewMemory(format, nil, nil)
	if !CanBlock(m) {
		t.Error("replayed memory should accept a blocking push")
	}
	m.Realtime = true
	if CanBlock(m) {
		t.Error("realtime memory must not block")
	}
}
