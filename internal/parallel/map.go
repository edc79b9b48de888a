package parallel

import (
	"context"
	"iter"
	"slices"

	"golang.org/x/sync/errgroup"
)

type result[D any] struct {
	d D
	e error
}

// Map is a parallel mapping function backed by a fixed number of workers
// reading from a bounded queue. The input and output are represented as
// iterators, so the typical usage is
//
//	for result, err := range parallel.NewMap(ctx, 30, probe).Iter(slices.Values(input)) {}
//
// Map is context aware: once ctx is canceled no new element is handed to
// mapFunc, while calls already running finish and their results are still
// yielded.
type Map[E, D any] struct {
	ctx     context.Context
	limit   int
	mapFunc func(context.Context, E) (D, error)
}

func NewMap[E, D any](ctx context.Context, limit int, mapFunc func(context.Context, E) (D, error)) *Map[E, D] {
	if limit < 1 {
		limit = 1
	}
	return &Map[E, D]{
		ctx:     ctx,
		limit:   limit,
		mapFunc: mapFunc,
	}
}

func (m *Map[E, D]) Iter(seq iter.Seq[E]) iter.Seq2[D, error] {
	return func(yield func(D, error) bool) {
		ctx, cancel := context.WithCancel(m.ctx)
		defer cancel()

		// closed when the consumer stops reading
		done := make(chan struct{})
		defer close(done)

		jobs := make(chan E, m.limit)
		mapped := make(chan result[D], m.limit)

		var g errgroup.Group
		g.Go(func() error {
			defer close(jobs)
			for e := range seq {
				select {
				case <-ctx.Done():
					return nil
				case jobs <- e:
				}
			}
			return nil
		})

		for range m.limit {
			g.Go(func() error {
				for e := range jobs {
					if ctx.Err() != nil {
						continue
					}
					d, err := m.mapFunc(ctx, e)
					select {
					case <-done:
						return nil
					case mapped <- result[D]{d: d, e: err}:
					}
				}
				return nil
			})
		}

		go func() {
			_ = g.Wait()
			close(mapped)
		}()

		for r := range mapped {
			if !yield(r.d, r.e) {
				return
			}
		}
	}
}

// Collect runs mapFunc over all elements of s and returns the successful
// results in completion order. Errors are dropped.
func Collect[E, D any](ctx context.Context, limit int, s []E, mapFunc func(context.Context, E) (D, error)) []D {
	var ret []D
	for d, err := range NewMap(ctx, limit, mapFunc).Iter(slices.Values(s)) {
		if err != nil {
			continue
		}
		ret = append(ret, d)
	}
	return ret
}
