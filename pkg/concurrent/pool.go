package concurrent

import (
	"context"
	"sync"
)

const defaultConcurrency = 10

// ParallelMap runs fn over every item with bounded concurrency and
// returns the results in input order. The first error observed is
// returned after all workers finish.
func ParallelMap[T, R any](ctx context.Context, items []T, fn func(T) (R, error), maxConcurrency int) ([]R, error) {
	if len(items) == 0 {
		return nil, nil
	}
	if maxConcurrency <= 0 {
		maxConcurrency = defaultConcurrency
	}

	results := make([]R, len(items))
	errs := make([]error, len(items))

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxConcurrency)
	for i, item := range items {
		wg.Add(1)
		go func(idx int, val T) {
			defer wg.Done()
			select {
			case <-ctx.Done():
				errs[idx] = ctx.Err()
			case sem <- struct{}{}:
				defer func() { <-sem }()
				results[idx], errs[idx] = fn(val)
			}
		}(i, item)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// ParallelForEach runs fn over every item with bounded concurrency,
// discarding results. The first error observed is returned after all
// workers finish.
func ParallelForEach[T any](ctx context.Context, items []T, fn func(T) error, maxConcurrency int) error {
	_, err := ParallelMap(ctx, items, func(val T) (struct{}, error) {
		return struct{}{}, fn(val)
	}, maxConcurrency)
	return err
}
