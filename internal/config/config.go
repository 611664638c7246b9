// Package config loads and validates the pipeline run configuration.
//
// DESIGN: Runtime knobs come from environment variables with sensible
// defaults, so a bare `pipeline run` works against a configured
// project. Feed lists come from YAML with ${VAR:-default} expansion.
//
// FILES:
//   - config.go: Config struct, FromEnv(), Validate(), date windows
//   - feeds.go:  YAML feed list loading
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Run modes.
const (
	ModeIncremental = "incremental"
	ModeBackfill    = "backfill"
	ModeDryRun      = "dry-run"
)

const (
	defaultLookbackDays  = 2
	defaultConcurrency   = 4
	defaultGeminiMaxRPM  = 15
	defaultBudgetMinutes = 15
	defaultDLQDir        = "dlq"

	dateLayout = "2006-01-02"
)

// Config is the resolved run configuration.
type Config struct {
	Mode         string
	LookbackDays int
	StartDate    string // backfill only, YYYY-MM-DD
	EndDate      string // backfill only, YYYY-MM-DD

	P2Concurrency int
	P3Concurrency int
	GeminiMaxRPM  int

	LiveIntegration   bool
	DLQDir            string
	DLQEnabled        bool
	LogLevel          string
	TimeBudgetMinutes int

	GeminiAPIKey       string
	SupabaseURL        string
	SupabaseServiceKey string
	GoogleCredentials  string
	BigQueryProject    string
}

// FromEnv builds a Config from the environment, applying defaults for
// anything unset. Call Validate before use.
func FromEnv() Config {
	return Config{
		Mode:         envOr("RUN_MODE", ModeIncremental),
		LookbackDays: envInt("LOOKBACK_DAYS", defaultLookbackDays),
		StartDate:    os.Getenv("START_DATE"),
		EndDate:      os.Getenv("END_DATE"),

		P2Concurrency: envInt("P2_CONCURRENCY", defaultConcurrency),
		P3Concurrency: envInt("P3_CONCURRENCY", defaultConcurrency),
		GeminiMaxRPM:  envInt("GEMINI_MAX_RPM", defaultGeminiMaxRPM),

		LiveIntegration:   envBool("LIVE_INTEGRATION", false),
		DLQDir:            envOr("DLQ_DIR", defaultDLQDir),
		DLQEnabled:        envBool("DLQ_ENABLED", true),
		LogLevel:          envOr("LOG_LEVEL", "info"),
		TimeBudgetMinutes: envInt("TIME_BUDGET_MINUTES", defaultBudgetMinutes),

		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		SupabaseURL:        os.Getenv("SUPABASE_URL"),
		SupabaseServiceKey: os.Getenv("SUPABASE_SERVICE_KEY"),
		GoogleCredentials:  os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		BigQueryProject:    os.Getenv("BIGQUERY_PROJECT"),
	}
}

// Validate checks mode, dates, and concurrency settings.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeIncremental, ModeBackfill, ModeDryRun:
	default:
		return fmt.Errorf("invalid run mode %q (want %s, %s, or %s)",
			c.Mode, ModeIncremental, ModeBackfill, ModeDryRun)
	}

	if c.Mode == ModeBackfill {
		if c.StartDate == "" || c.EndDate == "" {
			return fmt.Errorf("backfill mode requires START_DATE and END_DATE")
		}
		start, err := time.Parse(dateLayout, c.StartDate)
		if err != nil {
			return fmt.Errorf("invalid START_DATE %q: %w", c.StartDate, err)
		}
		end, err := time.Parse(dateLayout, c.EndDate)
		if err != nil {
			return fmt.Errorf("invalid END_DATE %q: %w", c.EndDate, err)
		}
		if end.Before(start) {
			return fmt.Errorf("END_DATE %s is before START_DATE %s", c.EndDate, c.StartDate)
		}
	}

	if c.LookbackDays < 1 {
		return fmt.Errorf("LOOKBACK_DAYS must be >= 1, got %d", c.LookbackDays)
	}
	if c.P2Concurrency < 1 {
		return fmt.Errorf("P2_CONCURRENCY must be >= 1, got %d", c.P2Concurrency)
	}
	if c.P3Concurrency < 1 {
		return fmt.Errorf("P3_CONCURRENCY must be >= 1, got %d", c.P3Concurrency)
	}
	if c.GeminiMaxRPM < 1 {
		return fmt.Errorf("GEMINI_MAX_RPM must be >= 1, got %d", c.GeminiMaxRPM)
	}
	if c.TimeBudgetMinutes < 1 {
		return fmt.Errorf("TIME_BUDGET_MINUTES must be >= 1, got %d", c.TimeBudgetMinutes)
	}

	return nil
}

// Warnings flags settings that validate but deserve operator attention.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.P2Concurrency+c.P3Concurrency > c.GeminiMaxRPM {
		warnings = append(warnings, fmt.Sprintf(
			"combined classifier concurrency %d exceeds GEMINI_MAX_RPM %d; expect rate limiter stalls",
			c.P2Concurrency+c.P3Concurrency, c.GeminiMaxRPM))
	}
	if c.Mode != ModeDryRun && c.SupabaseURL == "" {
		warnings = append(warnings, "SUPABASE_URL unset; falling back to local sqlite storage")
	}
	return warnings
}

// IsDryRun reports whether this run should skip external side effects.
func (c *Config) IsDryRun() bool { return c.Mode == ModeDryRun }

// DateRange resolves the ingestion window for this run. Incremental
// looks back LookbackDays from now, dry-run uses a single day, and
// backfill uses the explicit dates.
func (c *Config) DateRange(now time.Time) (time.Time, time.Time, error) {
	now = now.UTC()
	switch c.Mode {
	case ModeBackfill:
		start, err := time.Parse(dateLayout, c.StartDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse START_DATE: %w", err)
		}
		end, err := time.Parse(dateLayout, c.EndDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse END_DATE: %w", err)
		}
		return start, end, nil
	case ModeDryRun:
		return now.AddDate(0, 0, -1), now, nil
	default:
		return now.AddDate(0, 0, -c.LookbackDays), now, nil
	}
}

// TimeBudget returns the wall clock budget for the whole run.
func (c *Config) TimeBudget() time.Duration {
	return time.Duration(c.TimeBudgetMinutes) * time.Minute
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
