// Package source produces raw audio frames for the pipeline: from a capture
// device, a WAV file, or memory.
package source

import (
	"context"

	"github.com/obiente/translate/livetranslate/internal/audio"
)

// Source is a stream of audio frames in a fixed native format.
//
// Start blocks, calling push from a single goroutine for every frame, until
// the stream ends, ctx is cancelled or Close is called. It returns nil on a
// normal end and an error wrapping transcript.ErrDevice when capture
// failed. push does not block unless the source is Backpressured.
type Source interface {
	Format() audio.Format
	Start(ctx context.Context, push func(audio.SampleFrame)) error
	Close() error
}

// Backpressured is implemented by sources that are not bound to a device
// clock. When Backpressure returns true, push waits for the pipeline to
// catch up instead of letting the capture buffer overwrite unread audio.
type Backpressured interface {
	Backpressure() bool
}

// CanBlock reports whether src accepts a blocking push.
func CanBlock(src Source) bool {
	b, ok := src.(Backpressured)
	return ok && b.Backpressure()
}

// Device describes an input device that can be selected by ID.
type Device struct {
	ID                int
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64
	IsDefault         bool
}
