// Package monitoring - metrics.go provides simple counters.
//
// DESIGN: Lightweight in-memory counters for operational metrics:
//   - items/successes:   Items processed per run and how many succeeded
//   - llm_calls:         Oracle round trips actually made
//   - cache_hits/misses: Classification cache performance
//   - fallbacks:         Heuristic fallbacks after oracle failures
//   - rows_written:      Rows persisted across all tables
//
// For production, export these to Prometheus or similar.
package monitoring

import "sync/atomic"

// MetricsCollector collects operational metrics for one run.
type MetricsCollector struct {
	items       atomic.Int64
	successes   atomic.Int64
	llmCalls    atomic.Int64
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
	fallbacks   atomic.Int64
	rowsWritten atomic.Int64
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{}
}

// RecordItem records one processed item.
func (mc *MetricsCollector) RecordItem(success bool) {
	mc.items.Add(1)
	if success {
		mc.successes.Add(1)
	}
}

// RecordLLMCall records one oracle round trip.
func (mc *MetricsCollector) RecordLLMCall() { mc.llmCalls.Add(1) }

// RecordCacheHit records a classification cache hit.
func (mc *MetricsCollector) RecordCacheHit() { mc.cacheHits.Add(1) }

// RecordCacheMiss records a classification cache miss.
func (mc *MetricsCollector) RecordCacheMiss() { mc.cacheMisses.Add(1) }

// RecordFallback records a heuristic fallback.
func (mc *MetricsCollector) RecordFallback() { mc.fallbacks.Add(1) }

// RecordRows records rows persisted.
func (mc *MetricsCollector) RecordRows(n int) { mc.rowsWritten.Add(int64(n)) }

// Stats returns current metrics.
func (mc *MetricsCollector) Stats() map[string]int64 {
	return map[string]int64{
		"items":        mc.items.Load(),
		"successes":    mc.successes.Load(),
		"llm_calls":    mc.llmCalls.Load(),
		"cache_hits":   mc.cacheHits.Load(),
		"cache_misses": mc.cacheMisses.Load(),
		"fallbacks":    mc.fallbacks.Load(),
		"rows_written": mc.rowsWritten.Load(),
	}
}
