// Package sink defines where ordered transcript records end up and ships
// the console, JSON-lines and fan-out implementations.
package sink

import (
	"errors"
	"sync"

	"github.com/obiente/translate/livetranslate/internal/transcript"
)

// Sink receives records in sequence order from a single goroutine.
type Sink interface {
	Emit(transcript.Record) error
}

// Func adapts a function to the Sink interface.
type Func func(transcript.Record) error

func (f Func) Emit(r transcript.Record) error { return f(r) }

// Multi fans every record out to all sinks and joins their errors.
type Multi []Sink

func (m Multi) Emit(r transcript.Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Collector keeps every record in memory. It is safe for concurrent use.
type Collector struct {
	mu      sync.Mutex
	records []transcript.Record
}

func (c *Collector) Emit(r transcript.Record) error {
	c.mu.Lock()
	c.records = append(c.records, r)
	c.mu.Unlock()
	return nil
}

// Records returns a copy of what has been collected.
func (c *Collector) Records() []transcript.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]transcript.Record(nil), c.records...)
}
