package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/supabase-community/postgrest-go"
)

const (
	postgrestMaxRetries      = 3
	postgrestInitialInterval = 500 * time.Millisecond
	postgrestMaxInterval     = 10 * time.Second
)

// PostgrestStore writes to a Supabase project over the PostgREST API
// with the service role key, which bypasses row level security.
type PostgrestStore struct {
	client    *postgrest.Client
	batchSize int
	log       zerolog.Logger
}

var _ Store = (*PostgrestStore)(nil)

// NewPostgrestStore connects to the project's REST endpoint. batchSize
// defaults to BatchSize when <= 0 and is clamped to MaxBatchSize.
func NewPostgrestStore(projectURL, serviceKey string, batchSize int, log zerolog.Logger) (*PostgrestStore, error) {
	if projectURL == "" || serviceKey == "" {
		return nil, fmt.Errorf("supabase url and service key are required")
	}
	if batchSize <= 0 {
		batchSize = BatchSize
	}
	if batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}

	headers := map[string]string{
		"apikey":        serviceKey,
		"Authorization": "Bearer " + serviceKey,
	}
	client := postgrest.NewClient(projectURL+"/rest/v1", "public", headers)
	if client.ClientError != nil {
		return nil, fmt.Errorf("create postgrest client: %w", client.ClientError)
	}

	return &PostgrestStore{client: client, batchSize: batchSize, log: log}, nil
}

// Upsert writes rows in batches, retrying each batch on transient
// failures with exponential backoff.
func (s *PostgrestStore) Upsert(ctx context.Context, table string, rows []map[string]any, onConflict string) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	total := 0
	for _, batch := range batches(rows, s.batchSize) {
		if err := s.upsertBatch(ctx, table, batch, onConflict); err != nil {
			return total, fmt.Errorf("upsert %d rows to %s: %w", len(batch), table, err)
		}
		total += len(batch)
		s.log.Debug().Str("table", table).Int("rows", len(batch)).Msg("batch upserted")
	}

	s.log.Info().Str("table", table).Int("rows", total).Msg("upsert complete")
	return total, nil
}

func (s *PostgrestStore) upsertBatch(ctx context.Context, table string, batch []map[string]any, onConflict string) error {
	op := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		_, _, err := s.client.From(table).
			Upsert(batch, onConflict, "minimal", "").
			Execute()
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			s.log.Error().Str("table", table).Err(err).Msg("upsert failed permanently, not retrying")
			return backoff.Permanent(err)
		}
		s.log.Warn().Str("table", table).Err(err).Msg("upsert attempt failed")
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = postgrestInitialInterval
	bo.MaxInterval = postgrestMaxInterval

	return backoff.Retry(op, backoff.WithContext(
		backoff.WithMaxRetries(bo, postgrestMaxRetries), ctx))
}

// HealthCheck runs a minimal select against the entities table.
func (s *PostgrestStore) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, err := s.client.From("entities").
		Select("entity_id", "", false).
		Limit(1, "").
		Execute()
	if err != nil {
		return fmt.Errorf("postgrest health check: %w", err)
	}
	return nil
}

// Close is a no-op; PostgREST connections are per-request.
func (s *PostgrestStore) Close() error { return nil }

// pgErrCodeRe captures the error code PostgREST prefixes its messages
// with, e.g. "(23502) null value in column ...".
var pgErrCodeRe = regexp.MustCompile(`^\((\w+)\)`)

// IsPermanent reports whether err cannot be fixed by retrying: either it
// was already wrapped as non-retryable, or it carries a PostgREST error
// code from the data-exception (22), constraint-violation (23), or
// syntax/undefined-object (42) classes, or a PGRST schema-cache /
// request-shape error. Those fail identically on every attempt.
func IsPermanent(err error) bool {
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return true
	}

	m := pgErrCodeRe.FindStringSubmatch(err.Error())
	if m == nil {
		return false
	}
	code := m[1]
	for _, class := range []string{"22", "23", "42"} {
		if strings.HasPrefix(code, class) {
			return true
		}
	}
	// PGRST1xx are request/parse errors, PGRST2xx schema-cache lookups
	// (unknown table or column); PGRST0xx connection errors stay retryable.
	return strings.HasPrefix(code, "PGRST1") || strings.HasPrefix(code, "PGRST2")
}
