// Package executor runs per-item work across a bounded worker pool and
// performs partition-parallel associative reductions.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Executor bounds the number of items processed concurrently.
type Executor struct {
	workers int
	logger  *slog.Logger
}

// New returns an Executor running at most workers items at once. A
// non-positive value means runtime.NumCPU().
func New(workers int) *Executor {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Executor{
		workers: workers,
		logger:  slog.Default().With("component", "executor"),
	}
}

func (e *Executor) Workers() int { return e.workers }

// Map applies fn to every item exactly once and returns results in input
// order. The first error cancels the remaining items and is returned.
func Map[T, R any](ctx context.Context, e *Executor, items []T, fn func(ctx context.Context, item T) (R, error)) ([]R, error) {
	results := make([]R, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, item := range items {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			r, err := fn(gctx, item)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// Result is the outcome of one item under MapAll.
type Result[T, R any] struct {
	Item  T
	Value R
	Err   error
}

// MapAll applies fn to every item exactly once, continuing past failures.
// Results are in input order. Only cancellation of ctx stops new items from
// starting; those report ctx.Err().
func MapAll[T, R any](ctx context.Context, e *Executor, items []T, fn func(ctx context.Context, item T) (R, error)) []Result[T, R] {
	results := make([]Result[T, R], len(items))
	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, item := range items {
		results[i].Item = item
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		g.Go(func() error {
			results[i].Value, results[i].Err = fn(ctx, item)
			return nil
		})
	}
	g.Wait()
	return results
}

// Repartition splits items into n contiguous parts of near-equal size. Parts
// may be empty when n exceeds len(items).
func Repartition[T any](items []T, n int) [][]T {
	if n <= 0 {
		n = 1
	}
	parts := make([][]T, n)
	size, rem := len(items)/n, len(items)%n
	start := 0
	for i := range parts {
		end := start + size
		if i < rem {
			end++
		}
		parts[i] = items[start:end:end]
		start = end
	}
	return parts
}

// GroupAndCombine groups items by key and folds each group with combine.
// Items are split into partitions folded in parallel; the partial results
// are then merged with the same combine. project is applied exactly once per
// item, and combine only ever sees values produced by project or combine, so
// the result is independent of partitioning and order provided combine is
// associative and commutative.
func GroupAndCombine[T any, K comparable, V any](
	ctx context.Context,
	e *Executor,
	items []T,
	partitions int,
	key func(T) K,
	project func(T) V,
	combine func(a, b V) V,
) (map[K]V, error) {
	parts := Repartition(items, partitions)
	partials, err := Map(ctx, e, parts, func(ctx context.Context, part []T) (map[K]V, error) {
		acc := make(map[K]V)
		for i, item := range part {
			if i%1024 == 0 && ctx.Err() != nil {
				return nil, ctx.Err()
			}
			k := key(item)
			v := project(item)
			if prev, ok := acc[k]; ok {
				v = combine(prev, v)
			}
			acc[k] = v
		}
		return acc, nil
	})
	if err != nil {
		return nil, fmt.Errorf("folding partitions: %w", err)
	}

	merged := make(map[K]V)
	for _, partial := range partials {
		for k, v := range partial {
			if prev, ok := merged[k]; ok {
				v = combine(prev, v)
			}
			merged[k] = v
		}
	}
	e.logger.Debug("group and combine finished",
		"items", len(items),
		"partitions", len(parts),
		"groups", len(merged),
	)
	return merged, nil
}
