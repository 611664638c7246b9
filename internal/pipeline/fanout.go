package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ForEach runs fn over items with at most concurrency in flight. Errors
// are isolated per item: the returned slice is index-aligned with items
// and nil entries mark successes. Context cancellation surfaces as the
// error for every item not yet started.
func ForEach[T any](ctx context.Context, items []T, concurrency int, fn func(ctx context.Context, item T) error) []error {
	if concurrency < 1 {
		concurrency = 1
	}

	sem := semaphore.NewWeighted(int64(concurrency))
	errs := make([]error, len(items))
	var wg sync.WaitGroup

	for i := range items {
		if err := sem.Acquire(ctx, 1); err != nil {
			errs[i] = err
			continue
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.Release(1)
			errs[i] = fn(ctx, items[i])
		}(i)
	}

	wg.Wait()
	return errs
}
