package storage

import (
	"fmt"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPostgrestStoreRequiresCredentials(t *testing.T) {
	_, err := NewPostgrestStore("", "service-key", 0, zerolog.Nop())
	assert.ErrorContains(t, err, "required")

	_, err = NewPostgrestStore("https://proj.supabase.co", "", 0, zerolog.Nop())
	assert.ErrorContains(t, err, "required")

	s, err := NewPostgrestStore("https://proj.supabase.co", "service-key", 0, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, BatchSize, s.batchSize, "batch size defaults when unset")

	s, err = NewPostgrestStore("https://proj.supabase.co", "service-key", MaxBatchSize*10, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, MaxBatchSize, s.batchSize, "batch size is clamped")
}

func TestIsPermanent(t *testing.T) {
	permanent := []error{
		fmt.Errorf("(23502) null value in column violates not-null constraint"),
		fmt.Errorf("(22P02) invalid input syntax for type json"),
		fmt.Errorf("(42P01) relation does not exist"),
		fmt.Errorf("(PGRST102) empty or invalid json"),
		fmt.Errorf("(PGRST204) column not found in schema cache"),
		backoff.Permanent(fmt.Errorf("context canceled")),
	}
	for _, err := range permanent {
		assert.True(t, IsPermanent(err), "%v must not be retried", err)
	}

	retryable := []error{
		fmt.Errorf("(PGRST001) could not connect with the database"),
		fmt.Errorf("(08006) connection failure"),
		fmt.Errorf("dial tcp: connection refused"),
		fmt.Errorf("(57014) canceling statement due to statement timeout"),
	}
	for _, err := range retryable {
		assert.False(t, IsPermanent(err), "%v should stay retryable", err)
	}
}
