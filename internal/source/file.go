package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/livetranslate/internal/audio"
	"github.com/obiente/translate/livetranslate/internal/transcript"
)

var errStopped = errors.New("stopped")

// File streams a WAV file in frames of FrameDuration. With Realtime set
// frames are paced at wall-clock speed, like a live device; otherwise the
// file is read as fast as the pipeline accepts it and no audio is lost.
type File struct {
	path   string
	f      *os.File
	format audio.Format

	FrameDuration time.Duration
	Realtime      bool

	mu        sync.Mutex
	started   bool
	once      sync.Once
	closeOnce sync.Once
	done      chan struct{}
}

// OpenFile opens path and reads its header.
func OpenFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", transcript.ErrDevice, path, err)
	}
	format, err := audio.ReadWAVFormat(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: %v", transcript.ErrDevice, path, err)
	}
	return &File{
		path:          path,
		f:             f,
		format:        format,
		FrameDuration: 20 * time.Millisecond,
		done:          make(chan struct{}),
	}, nil
}

func (s *File) Format() audio.Format { return s.format }

func (s *File) Start(ctx context.Context, push func(audio.SampleFrame)) error {
	s.mu.Lock()
	select {
	case <-s.done:
		s.mu.Unlock()
		return nil
	default:
	}
	s.started = true
	s.mu.Unlock()
	// The reader owns the file from here on; Close only signals it.
	defer s.closeFile()

	frameLen := max(int(int64(s.format.SampleRate)*int64(s.FrameDuration)/int64(time.Second)), 1)
	frameDur := s.FrameDuration
	if _, err := s.f.Seek(0, 0); err != nil {
		return fmt.Errorf("%w: seek %s: %v", transcript.ErrDevice, s.path, err)
	}

	next := time.Now()
	_, err := audio.ReadWAVFrames(s.f, frameLen, func(f audio.SampleFrame) error {
		select {
		case <-ctx.Done():
			return errStopped
		case <-s.done:
			return errStopped
		default:
		}
		push(f)
		if !s.Realtime {
			return nil
		}
		next = next.Add(frameDur)
		select {
		case <-time.After(time.Until(next)):
			return nil
		case <-ctx.Done():
			return errStopped
		case <-s.done:
			return errStopped
		}
	})
	if errors.Is(err, errStopped) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", transcript.ErrDevice, s.path, err)
	}
	log.Debug().Str("component", "source").Str("file", s.path).Msg("end of file")
	return nil
}

// Backpressure reports whether push may block: only when not paced like a
// live device.
func (s *File) Backpressure() bool { return !s.Realtime }

// Close stops Start at the next frame boundary. The file is released by
// Start when it returns, or here if Start never ran.
func (s *File) Close() error {
	s.once.Do(func() { close(s.done) })
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return s.closeFile()
	}
	return nil
}

func (s *File) closeFile() error {
	var err error
	s.closeOnce.Do(func() { err = s.f.Close() })
	return err
}
