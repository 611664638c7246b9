package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"

	"github.com/ballisticintel/pipeline/internal/classify"
	"github.com/ballisticintel/pipeline/internal/config"
	"github.com/ballisticintel/pipeline/internal/ingest"
	"github.com/ballisticintel/pipeline/internal/monitoring"
	"github.com/ballisticintel/pipeline/internal/oracle"
	"github.com/ballisticintel/pipeline/internal/pipeline"
	"github.com/ballisticintel/pipeline/internal/resolve"
	"github.com/ballisticintel/pipeline/internal/storage"
)

// relevanceThreshold is the score at or above which an item counts as
// cybersecurity-relevant.
const relevanceThreshold = 0.5

// localDBPath is the sqlite fallback used when Supabase is not
// configured.
const localDBPath = "pipeline.db"

// runCommand executes one pipeline run and returns the process exit
// code: 0 only when no errors were recorded.
func runCommand(args []string) int {
	loadEnvFiles()

	fs := flag.NewFlagSet("run", flag.ExitOnError)
	mode := fs.String("mode", "", "incremental, backfill, or dry-run")
	lookback := fs.Int("lookback", 0, "days of lookback for incremental mode")
	startDate := fs.String("start", "", "backfill window start (YYYY-MM-DD)")
	endDate := fs.String("end", "", "backfill window end (YYYY-MM-DD)")
	feedsPath := fs.String("feeds", "", "path to a YAML feeds file")
	p2Concurrency := fs.Int("p2-concurrency", 0, "relevance classification workers")
	p3Concurrency := fs.Int("p3-concurrency", 0, "extraction workers")
	logLevel := fs.String("log-level", "", "debug, info, warn, or error")
	_ = fs.Parse(args) // ExitOnError handles errors

	cfg := config.FromEnv()
	applyFlag(&cfg.Mode, *mode)
	applyFlag(&cfg.StartDate, *startDate)
	applyFlag(&cfg.EndDate, *endDate)
	applyFlag(&cfg.LogLevel, *logLevel)
	applyIntFlag(&cfg.LookbackDays, *lookback)
	applyIntFlag(&cfg.P2Concurrency, *p2Concurrency)
	applyIntFlag(&cfg.P3Concurrency, *p3Concurrency)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return 2
	}

	monitoring.Global(monitoring.LoggerConfig{
		Level:  cfg.LogLevel,
		Format: "console",
		Output: "stderr",
	})
	logger := log.Logger

	for _, warning := range cfg.Warnings() {
		logger.Warn().Msg(warning)
	}

	ctx, stop := signalContext()
	defer stop()

	runner, cleanup, err := buildRunner(ctx, cfg, *feedsPath, logger)
	if err != nil {
		logger.Error().Err(err).Msg("pipeline setup failed")
		return 1
	}
	defer cleanup()

	rc, err := runner.Run(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("pipeline run failed")
		return 1
	}
	if n := rc.ErrorCount(); n > 0 {
		logger.Error().Int("errors", n).Msg("pipeline run completed with errors")
		return 1
	}

	logger.Info().Str("run_id", rc.RunID).Msg("pipeline run completed cleanly")
	return 0
}

// buildRunner assembles all stage dependencies. In dry-run mode the
// external clients are left nil; the runner never touches them.
func buildRunner(ctx context.Context, cfg config.Config, feedsPath string, logger zerolog.Logger) (*pipeline.Runner, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		return nil, cleanup, err
	}
	writer := storage.NewWriter(store, logger)
	cleanups = append(cleanups, func() { writer.Close() })

	metrics := monitoring.NewMetricsCollector()
	dlq := pipeline.NewDLQ(cfg.DLQDir, cfg.DLQEnabled, logger)
	resolver := resolve.NewResolver(resolve.StrategyLongest, logger)

	var (
		patentSrc  pipeline.PatentFetcher
		feedSrc    pipeline.ArticleFetcher
		relevance  pipeline.RelevanceClassifier
		extraction pipeline.ExtractionClassifier
	)

	if cfg.IsDryRun() {
		// A dry run keeps every external dependency nil except, when
		// BigQuery is configured, the patent source: its dry-run query
		// prices the scan without reading a row.
		if cfg.BigQueryProject != "" {
			bqClient, err := openBigQuery(ctx, cfg)
			if err != nil {
				return nil, cleanup, err
			}
			cleanups = append(cleanups, func() { bqClient.Close() })
			patentSrc = ingest.NewPatentSource(bqClient, ingest.PatentConfig{
				Project: cfg.BigQueryProject,
			}, logger)
		}
	} else {
		bqClient, err := openBigQuery(ctx, cfg)
		if err != nil {
			return nil, cleanup, err
		}
		cleanups = append(cleanups, func() { bqClient.Close() })
		patentSrc = ingest.NewPatentSource(bqClient, ingest.PatentConfig{
			Project: cfg.BigQueryProject,
		}, logger)

		feeds, maxPerFeed, err := loadFeedList(feedsPath)
		if err != nil {
			return nil, cleanup, err
		}
		fetcher := ingest.NewContentFetcher(ingest.DefaultUserAgent)
		feedSrc = ingest.NewFeedSource(feeds, maxPerFeed, fetcher, logger)

		limiter := oracle.NewLimiter(cfg.GeminiMaxRPM)
		client, err := oracle.NewClient(oracle.Config{APIKey: cfg.GeminiAPIKey}, limiter, logger)
		if err != nil {
			return nil, cleanup, fmt.Errorf("oracle client: %w", err)
		}

		rel := classify.NewRelevanceClassifier(client, relevanceThreshold, metrics, logger)
		cleanups = append(cleanups, rel.Close)
		ext := classify.NewExtractionClassifier(client, metrics, logger)
		cleanups = append(cleanups, ext.Close)
		relevance, extraction = rel, ext
	}

	runner := pipeline.NewRunner(cfg, writer, patentSrc, feedSrc, relevance, extraction, resolver, dlq, metrics, logger)
	return runner, cleanup, nil
}

// openStore prefers Supabase and falls back to the local sqlite file.
// Dry runs always use an in-memory database.
func openStore(cfg config.Config, logger zerolog.Logger) (storage.Store, error) {
	if cfg.IsDryRun() {
		return storage.NewSQLiteStore(":memory:", logger)
	}
	if cfg.SupabaseURL != "" {
		return storage.NewPostgrestStore(cfg.SupabaseURL, cfg.SupabaseServiceKey, storage.BatchSize, logger)
	}
	return storage.NewSQLiteStore(localDBPath, logger)
}

func openBigQuery(ctx context.Context, cfg config.Config) (*bigquery.Client, error) {
	if cfg.BigQueryProject == "" {
		return nil, fmt.Errorf("BIGQUERY_PROJECT is required outside dry-run mode")
	}
	var opts []option.ClientOption
	if cfg.GoogleCredentials != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.GoogleCredentials))
	}
	client, err := bigquery.NewClient(ctx, cfg.BigQueryProject, opts...)
	if err != nil {
		return nil, fmt.Errorf("bigquery client: %w", err)
	}
	return client, nil
}

// loadFeedList resolves the feed set: explicit file, or the built-ins.
func loadFeedList(path string) ([]ingest.FeedConfig, int, error) {
	file, err := config.LoadFeeds(path)
	if err != nil {
		return nil, 0, err
	}
	feeds := make([]ingest.FeedConfig, len(file.Feeds))
	for i, f := range file.Feeds {
		feeds[i] = ingest.FeedConfig{URL: f.URL, SourceName: f.SourceName}
	}
	return feeds, file.MaxPerFeed, nil
}

func applyFlag(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func applyIntFlag(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}
