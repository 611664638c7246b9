// Package storage persists pipeline outputs through idempotent upserts.
//
// DESIGN: A single Store interface fronts two backends: the Supabase
// PostgREST API for production and an embedded SQLite database for
// local runs and tests. Rows travel as generic maps so one upsert path
// serves every table; the Writer maps domain models onto those rows
// and owns the per-table conflict keys.
package storage

import "context"

const (
	// BatchSize is the default rows-per-request chunk.
	BatchSize = 500

	// MaxBatchSize is the hard per-request row limit; larger batches
	// are split before they reach a backend.
	MaxBatchSize = 1000
)

// Store is an idempotent row sink.
type Store interface {
	// Upsert writes rows to table, resolving conflicts on the
	// onConflict column list. Returns the number of rows written.
	Upsert(ctx context.Context, table string, rows []map[string]any, onConflict string) (int, error)

	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// UpsertResult reports one persistence call.
type UpsertResult struct {
	Table   string `json:"table"`
	Count   int    `json:"count"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// batches splits rows into chunks of at most size.
func batches(rows []map[string]any, size int) [][]map[string]any {
	if size <= 0 {
		size = BatchSize
	}
	if size > MaxBatchSize {
		size = MaxBatchSize
	}
	var out [][]map[string]any
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		out = append(out, rows[start:end])
	}
	return out
}
