// Package stage runs the recognition and translation steps as pools of
// long-lived workers reading a shared FIFO queue.
package stage

import (
	"context"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Run starts workers goroutines that apply fn to every item from in and
// send the result to out. It returns once in is closed and drained, or when
// ctx is cancelled, and closes out in either case. Results are not ordered.
func Run[I, O any](ctx context.Context, name string, workers int, in <-chan I, out chan<- O, fn func(context.Context, I) O) error {
	defer close(out)
	if workers < 1 {
		workers = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		worker := i
		g.Go(func() error {
			log.Debug().Str("component", name).Int("worker", worker).Msg("worker started")
			defer log.Debug().Str("component", name).Int("worker", worker).Msg("worker stopped")
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case item, ok := <-in:
					if !ok {
						return nil
					}
					res := fn(ctx, item)
					select {
					case out <- res:
					case <-ctx.Done():
						return ctx.Err()
					}
				}
			}
		})
	}
	return g.Wait()
}
