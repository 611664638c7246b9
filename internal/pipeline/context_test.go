package pipeline

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunContextStats(t *testing.T) {
	rc := newTestRunContext()
	require.NotEmpty(t, rc.RunID)

	rc.SetStat("p1a_patents", map[string]int{"fetched": 12})
	assert.Equal(t, map[string]int{"fetched": 12}, rc.Stat("p1a_patents"))
	assert.Nil(t, rc.Stat("p1b_news"))
}

func TestRunContextErrors(t *testing.T) {
	rc := newTestRunContext()
	assert.Equal(t, 0, rc.ErrorCount())

	rc.AddError("p2_relevance", "US-1", "oracle transport")
	rc.AddError("p2_relevance", "US-2", "oracle transport")

	errs := rc.Errors()
	require.Len(t, errs, 2)
	assert.Equal(t, "US-1", errs[0].ItemID)
	assert.Equal(t, 2, rc.ErrorCount())

	// The returned slice is a copy.
	errs[0].ItemID = "mutated"
	assert.Equal(t, "US-1", rc.Errors()[0].ItemID)
}

func TestRunContextConcurrentErrorRecording(t *testing.T) {
	rc := newTestRunContext()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rc.AddError("p3_extraction", "item", "failed")
		}()
	}
	wg.Wait()
	assert.Equal(t, 32, rc.ErrorCount())
}

func TestRunContextSummary(t *testing.T) {
	rc := newTestRunContext()
	rc.SetStat("p1a_patents", map[string]int{"fetched": 3})
	rc.AddError("p2_relevance", "US-1", "x")

	s := rc.Summary()
	assert.Equal(t, rc.RunID, s["run_id"])
	assert.Equal(t, "incremental", s["mode"])
	assert.Equal(t, "2026-08-22", s["window_start"])
	assert.Equal(t, "2026-08-24", s["window_end"])
	assert.Equal(t, 1, s["errors"])

	stages, ok := s["stages"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, stages, "p1a_patents")
}

func TestRunContextsHaveDistinctIDs(t *testing.T) {
	assert.NotEqual(t, newTestRunContext().RunID, newTestRunContext().RunID)
}
