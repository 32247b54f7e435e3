// Package capture decouples the real-time audio goroutine from downstream
// processing with a bounded, overwrite-on-overflow ring of canonical samples.
package capture

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Wait once the writer has closed the buffer and
// every sample has been drained.
var ErrClosed = errors.New("capture buffer closed")

// Chunk is a contiguous run of canonical samples. Start is the absolute
// index of Samples[0] since the stream began, so gaps left by eviction are
// visible to the reader.
type Chunk struct {
	Start   int64
	Samples []float32
}

// End returns the absolute index one past the last sample.
func (c Chunk) End() int64 { return c.Start + int64(len(c.Samples)) }

// Buffer is a single-producer/single-consumer ring holding the most recent
// capacity samples. Push never blocks: when the reader falls behind the
// oldest unread samples are overwritten.
type Buffer struct {
	mu      sync.Mutex
	ring    []float32
	written int64 // absolute count of samples ever pushed
	read    int64 // absolute index of the next unread sample
	evicted int64
	closed  bool

	ready chan struct{}
	room  chan struct{}
}

// New returns a buffer holding at most capacity samples.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer{
		ring:  make([]float32, capacity),
		ready: make(chan struct{}, 1),
		room:  make(chan struct{}, 1),
	}
}

// Cap returns the capacity in samples.
func (b *Buffer) Cap() int { return len(b.ring) }

// Push appends samples, evicting the oldest unread ones on overflow.
// Pushing after Close is a no-op.
func (b *Buffer) Push(samples []float32) {
	if len(samples) == 0 {
		return
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	n := int64(len(b.ring))
	if int64(len(samples)) > n {
		// Only the tail can survive; account for the skipped head directly.
		skip := int64(len(samples)) - n
		b.written += skip
		samples = samples[skip:]
	}
	for _, s := range samples {
		b.ring[b.written%n] = s
		b.written++
	}
	if lag := b.written - b.read; lag > n {
		b.evicted += lag - n
		b.read = b.written - n
	}
	b.mu.Unlock()

	select {
	case b.ready <- struct{}{}:
	default:
	}
}

// Drain removes and returns everything currently buffered, oldest first.
func (b *Buffer) Drain() Chunk {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := Chunk{Start: b.read}
	size := b.written - b.read
	if size == 0 {
		return c
	}
	n := int64(len(b.ring))
	c.Samples = make([]float32, size)
	for i := range size {
		c.Samples[i] = b.ring[(b.read+i)%n]
	}
	b.read = b.written
	select {
	case b.room <- struct{}{}:
	default:
	}
	return c
}

// Wait blocks until samples are available, the buffer is closed and empty
// (ErrClosed), or ctx is done.
func (b *Buffer) Wait(ctx context.Context) error {
	for {
		b.mu.Lock()
		avail := b.written > b.read
		closed := b.closed
		b.mu.Unlock()
		if avail {
			return nil
		}
		if closed {
			return ErrClosed
		}
		select {
		case <-b.ready:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// WaitRoom blocks until n samples can be pushed without evicting unread
// ones, the buffer is closed (ErrClosed), or ctx is done. n is capped at the
// capacity. Live producers never call it; replay producers use it to slow
// down to the reader's pace instead of losing audio.
func (b *Buffer) WaitRoom(ctx context.Context, n int) error {
	n = min(n, len(b.ring))
	for {
		b.mu.Lock()
		free := int64(len(b.ring)) - (b.written - b.read)
		closed := b.closed
		b.mu.Unlock()
		if closed {
			return ErrClosed
		}
		if free >= int64(n) {
			return nil
		}
		select {
		case <-b.room:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close marks the end of the stream. Buffered samples stay readable.
func (b *Buffer) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	select {
	case b.ready <- struct{}{}:
	default:
	}
	select {
	case b.room <- struct{}{}:
	default:
	}
}

// Stats reports lifetime counters.
func (b *Buffer) Stats() (written, evicted int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.written, b.evicted
}
