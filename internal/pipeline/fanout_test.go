package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForEachIsolatesErrorsPerItem(t *testing.T) {
	items := []int{0, 1, 2, 3, 4}

	errs := ForEach(context.Background(), items, 2, func(_ context.Context, item int) error {
		if item%2 == 1 {
			return fmt.Errorf("item %d failed", item)
		}
		return nil
	})

	require.Len(t, errs, len(items))
	assert.NoError(t, errs[0])
	assert.ErrorContains(t, errs[1], "item 1 failed")
	assert.NoError(t, errs[2])
	assert.ErrorContains(t, errs[3], "item 3 failed")
	assert.NoError(t, errs[4])
}

func TestForEachHonorsConcurrencyBound(t *testing.T) {
	var inFlight, peak atomic.Int32
	var mu sync.Mutex

	items := make([]int, 50)
	errs := ForEach(context.Background(), items, 4, func(context.Context, int) error {
		n := inFlight.Add(1)
		mu.Lock()
		if n > peak.Load() {
			peak.Store(n)
		}
		mu.Unlock()
		defer inFlight.Add(-1)
		return nil
	})

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.LessOrEqual(t, peak.Load(), int32(4))
	assert.Greater(t, peak.Load(), int32(0))
}

func TestForEachEmptyInput(t *testing.T) {
	errs := ForEach(context.Background(), nil, 4, func(context.Context, int) error {
		t.Error("must not be called")
		return nil
	})
	assert.Empty(t, errs)
}

func TestForEachCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	errs := ForEach(ctx, []int{1, 2, 3}, 1, func(context.Context, int) error {
		return nil
	})

	for i, err := range errs {
		assert.ErrorIs(t, err, context.Canceled, "item %d", i)
	}
}

func TestForEachMinimumConcurrency(t *testing.T) {
	errs := ForEach(context.Background(), []int{1, 2}, 0, func(context.Context, int) error {
		return nil
	})
	assert.Equal(t, []error{nil, nil}, errs)
}
