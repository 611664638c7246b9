package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// sqliteSchema mirrors the production tables closely enough for local
// runs and tests. Array-valued columns are stored as JSON text.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS patents (
    publication_number TEXT PRIMARY KEY,
    title              TEXT NOT NULL,
    abstract           TEXT NOT NULL,
    assignees          TEXT NOT NULL DEFAULT '[]',
    cpc_codes          TEXT NOT NULL DEFAULT '[]',
    country            TEXT,
    publication_date   TEXT
);

CREATE TABLE IF NOT EXISTS news_articles (
    id           TEXT NOT NULL,
    source       TEXT NOT NULL,
    title        TEXT NOT NULL,
    link         TEXT PRIMARY KEY,
    published_at TEXT,
    summary      TEXT,
    categories   TEXT NOT NULL DEFAULT '[]',
    content_text TEXT,
    funding_related BOOLEAN NOT NULL DEFAULT 0,
    funding_reason  TEXT
);

CREATE TABLE IF NOT EXISTS relevance_results (
    item_id       TEXT NOT NULL,
    source_type   TEXT NOT NULL,
    is_relevant   BOOLEAN NOT NULL,
    score         REAL NOT NULL,
    category      TEXT NOT NULL,
    reasons       TEXT NOT NULL DEFAULT '[]',
    content_hash  TEXT,
    model         TEXT NOT NULL,
    model_version TEXT NOT NULL,
    timestamp     TEXT NOT NULL,
    PRIMARY KEY (item_id, source_type, model, model_version, timestamp)
);

CREATE TABLE IF NOT EXISTS extraction_results (
    item_id       TEXT NOT NULL,
    source_type   TEXT NOT NULL,
    companies     TEXT NOT NULL DEFAULT '[]',
    sector        TEXT NOT NULL,
    technologies  TEXT NOT NULL DEFAULT '[]',
    novelty_score REAL NOT NULL,
    rationale     TEXT NOT NULL DEFAULT '[]',
    content_hash  TEXT,
    model         TEXT NOT NULL,
    model_version TEXT NOT NULL,
    timestamp     TEXT NOT NULL,
    PRIMARY KEY (item_id, source_type, model, model_version, timestamp)
);

CREATE TABLE IF NOT EXISTS entities (
    entity_id      TEXT PRIMARY KEY,
    canonical_name TEXT NOT NULL,
    sources        TEXT NOT NULL DEFAULT '[]',
    confidence     REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS entity_aliases (
    raw_name      TEXT PRIMARY KEY,
    entity_id     TEXT NOT NULL,
    score         REAL NOT NULL,
    rules_applied TEXT NOT NULL DEFAULT '[]'
);
`

// SQLiteStore is the embedded backend for local runs and tests.
type SQLiteStore struct {
	db  *sql.DB
	log zerolog.Logger
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at path and applies
// the schema. Use ":memory:" for an ephemeral store.
func NewSQLiteStore(path string, log zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// modernc sqlite is single-writer; serialize access.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db, log: log}, nil
}

// Upsert writes rows inside a single transaction per batch using
// INSERT ... ON CONFLICT DO UPDATE on the given conflict columns.
func (s *SQLiteStore) Upsert(ctx context.Context, table string, rows []map[string]any, onConflict string) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	total := 0
	for _, batch := range batches(rows, BatchSize) {
		n, err := s.upsertBatch(ctx, table, batch, onConflict)
		total += n
		if err != nil {
			return total, fmt.Errorf("upsert %s: %w", table, err)
		}
	}
	s.log.Debug().Str("table", table).Int("rows", total).Msg("sqlite upsert complete")
	return total, nil
}

func (s *SQLiteStore) upsertBatch(ctx context.Context, table string, batch []map[string]any, onConflict string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	written := 0
	for _, row := range batch {
		query, args := buildUpsertSQL(table, row, onConflict)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return written, fmt.Errorf("row %d: %w", written, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return written, nil
}

// buildUpsertSQL renders one INSERT ... ON CONFLICT statement from a
// row map. Columns are sorted so statements are deterministic.
func buildUpsertSQL(table string, row map[string]any, onConflict string) (string, []any) {
	cols := make([]string, 0, len(row))
	for col := range row {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	conflictCols := map[string]bool{}
	for _, c := range strings.Split(onConflict, ",") {
		conflictCols[strings.TrimSpace(c)] = true
	}

	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	var updates []string
	for i, col := range cols {
		placeholders[i] = "?"
		args[i] = toSQLiteValue(row[col])
		if !conflictCols[col] {
			updates = append(updates, col+" = excluded."+col)
		}
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) DO ",
		table, strings.Join(cols, ", "), strings.Join(placeholders, ", "), onConflict)
	if len(updates) == 0 {
		query += "NOTHING"
	} else {
		query += "UPDATE SET " + strings.Join(updates, ", ")
	}
	return query, args
}

// toSQLiteValue flattens values the driver cannot bind directly:
// slices and maps become JSON, times become RFC 3339 strings.
func toSQLiteValue(v any) any {
	switch val := v.(type) {
	case nil, string, int, int64, float64, bool, []byte:
		return val
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	default:
		encoded, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(encoded)
	}
}

// HealthCheck pings the database.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite health check: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
