package asyncx

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Result holds the outcome of a single settled operation.
type Result[T any] struct {
	Value T
	Err   error
}

// OK reports whether the result carries no error.
func (r Result[T]) OK() bool { return r.Err == nil }

// ForEachLimit calls fn(ctx, i, items[i]) for every item with at most limit
// calls in flight and blocks until all of them have returned.
func ForEachLimit[T any](ctx context.Context, limit int, items []T, fn func(context.Context, int, T)) {
	if len(items) == 0 {
		return
	}

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			fn(ctx, i, item)
			return nil
		})
	}

	_ = g.Wait()
}

// Settle applies fn to every item with at most limit calls in flight and
// returns one Result per item, in input order.
func Settle[T any, R any](ctx context.Context, limit int, items []T, fn func(context.Context, T) (R, error)) []Result[R] {
	results := make([]Result[R], len(items))
	ForEachLimit(ctx, limit, items, func(ctx context.Context, i int, item T) {
		v, err := fn(ctx, item)
		results[i] = Result[R]{Value: v, Err: err}
	})
	return results
}
