// Package parallel runs index-range workers over a fixed number of goroutines.
package parallel

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ErrInvalidThreads is returned for a thread count below one.
var ErrInvalidThreads = errors.New("parallel: thread count must be at least 1")

// Worker processes the half-open index range [start, end) as thread t.
type Worker func(ctx context.Context, t, start, end int) error

// Chunks returns the number of threads Map would use for n items on threads
// goroutines, and the size of every chunk but the last.
func Chunks(n, threads int) (t, size int) {
	t = threads
	size = n / t
	for size == 0 && t > 1 {
		t /= 2
		size = n / t
	}
	return t, size
}

// Map splits [0, n) into contiguous chunks and runs worker on each one
// concurrently. Chunk t covers [t*size, (t+1)*size); the last chunk also takes
// the remainder n%t. When n is smaller than threads the thread count is halved
// until every chunk is non-empty.
//
// The first worker error cancels ctx for the others and is returned once every
// worker has finished.
func Map(ctx context.Context, n, threads int, worker Worker) error {
	if threads < 1 {
		return ErrInvalidThreads
	}
	if n <= 0 {
		return nil
	}

	t, size := Chunks(n, threads)
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < t; i++ {
		start := i * size
		end := start + size
		if i == t-1 {
			end = n
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := worker(ctx, i, start, end); err != nil {
				return fmt.Errorf("chunk %d [%d, %d): %w", i, start, end, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Reduce folds equally long per-worker partial results element by element with
// op and applies finalize, when set, to every folded element. Empty partials
// are skipped.
func Reduce[E any](partials [][]E, op func(a, b E) E, finalize func(E) E) []E {
	var out []E
	for _, p := range partials {
		if len(p) == 0 {
			continue
		}
		if out == nil {
			out = make([]E, len(p))
			copy(out, p)
			continue
		}
		for i := range out {
			if i < len(p) {
				out[i] = op(out[i], p[i])
			}
		}
	}
	if finalize != nil {
		for i := range out {
			out[i] = finalize(out[i])
		}
	}
	return out
}
