// Package pipeline orchestrates the ingestion and enrichment stages as
// a dependency graph.
//
// DESIGN: Stages run sequentially in topological order; parallelism
// lives inside a stage (fan-out over items). A RunContext carries the
// correlation ID, per-stage stats, and the run-level error list; the
// process exit code depends on that list being empty.
package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunError is one recoverable failure recorded during a run.
type RunError struct {
	Node      string    `json:"node"`
	ItemID    string    `json:"item_id,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// RunContext carries correlation and accounting for one pipeline run.
type RunContext struct {
	RunID       string
	Mode        string
	WindowStart time.Time
	WindowEnd   time.Time
	StartedAt   time.Time

	mu     sync.Mutex
	stats  map[string]any
	errors []RunError
}

// NewRunContext mints a run with a fresh correlation ID.
func NewRunContext(mode string, windowStart, windowEnd time.Time) *RunContext {
	return &RunContext{
		RunID:       uuid.NewString(),
		Mode:        mode,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		StartedAt:   time.Now().UTC(),
		stats:       make(map[string]any),
	}
}

// SetStat records a stage's stats payload under its node name.
func (rc *RunContext) SetStat(node string, v any) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.stats[node] = v
}

// Stat returns the stats payload for a node, or nil.
func (rc *RunContext) Stat(node string) any {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.stats[node]
}

// AddError records a recoverable failure. Safe for concurrent use from
// fan-out workers.
func (rc *RunContext) AddError(node, itemID, message string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.errors = append(rc.errors, RunError{
		Node:      node,
		ItemID:    itemID,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

// Errors returns a copy of the recorded failures.
func (rc *RunContext) Errors() []RunError {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	out := make([]RunError, len(rc.errors))
	copy(out, rc.errors)
	return out
}

// ErrorCount reports how many failures were recorded.
func (rc *RunContext) ErrorCount() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return len(rc.errors)
}

// Duration reports elapsed time since the run started.
func (rc *RunContext) Duration() time.Duration {
	return time.Since(rc.StartedAt)
}

// Summary flattens the run into a loggable map.
func (rc *RunContext) Summary() map[string]any {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	stats := make(map[string]any, len(rc.stats))
	for k, v := range rc.stats {
		stats[k] = v
	}
	return map[string]any{
		"run_id":       rc.RunID,
		"mode":         rc.Mode,
		"window_start": rc.WindowStart.Format("2006-01-02"),
		"window_end":   rc.WindowEnd.Format("2006-01-02"),
		"duration":     time.Since(rc.StartedAt).String(),
		"errors":       len(rc.errors),
		"stages":       stats,
	}
}
