// Package ingest pulls raw items into the pipeline: patents from the
// BigQuery public patents dataset and news articles from RSS feeds.
//
// DESIGN: Sources return their items plus a stats struct the run context
// absorbs. Partial failure is tolerated where the data allows it (a dead
// feed skips, a thin patent window widens); total failure is an error.
package ingest

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"

	"github.com/ballisticintel/pipeline/internal/models"
)

const (
	// fallbackWindowDays is the widened window used when the primary
	// window returns too few patents.
	fallbackWindowDays = 30

	// defaultMinPatents is the result floor below which the fallback
	// window kicks in.
	defaultMinPatents = 50
)

// PatentConfig configures the patent source.
type PatentConfig struct {
	Project    string
	Countries  []string
	MaxRows    int
	MinPatents int
}

// PatentStats describes one fetch, including both date windows when the
// fallback fired; the original window is kept so the run report shows
// what was asked for as well as what was used.
type PatentStats struct {
	Fetched        int           `json:"patents_fetched"`
	BytesProcessed int64         `json:"bytes_processed"`
	QueryTime      time.Duration `json:"query_time"`
	OriginalStart  string        `json:"original_start"`
	OriginalEnd    string        `json:"original_end"`
	FallbackStart  string        `json:"fallback_start,omitempty"`
	FallbackEnd    string        `json:"fallback_end,omitempty"`
	UsedFallback   bool          `json:"used_fallback"`
}

// patentRow is the BigQuery result shape.
type patentRow struct {
	PublicationNumber string              `bigquery:"publication_number"`
	Title             bigquery.NullString `bigquery:"title"`
	Abstract          bigquery.NullString `bigquery:"abstract"`
	FilingDate        int64               `bigquery:"filing_date"`
	PublicationDate   int64               `bigquery:"publication_date"`
	CountryCode       string              `bigquery:"country_code"`
	KindCode          string              `bigquery:"kind_code"`
	Assignees         []string            `bigquery:"assignees"`
	CPCCodes          []string            `bigquery:"cpc_codes"`
}

// PatentSource fetches and validates security patents.
type PatentSource struct {
	cfg     PatentConfig
	builder *PatentQueryBuilder
	log     zerolog.Logger

	// runQuery executes SQL and returns rows plus bytes processed.
	// Injected in tests; production wiring goes through BigQuery.
	runQuery func(ctx context.Context, sql string) ([]patentRow, int64, error)

	// estimate dry-runs SQL and returns the bytes it would scan.
	estimate func(ctx context.Context, sql string) (int64, error)

	now func() time.Time
}

// NewPatentSource builds a source over an existing BigQuery client.
func NewPatentSource(client *bigquery.Client, cfg PatentConfig, log zerolog.Logger) *PatentSource {
	if cfg.MinPatents <= 0 {
		cfg.MinPatents = defaultMinPatents
	}
	s := &PatentSource{
		cfg:     cfg,
		builder: NewPatentQueryBuilder(cfg.Countries, cfg.MaxRows),
		log:     log,
		now:     time.Now,
	}
	s.runQuery = func(ctx context.Context, sql string) ([]patentRow, int64, error) {
		return runBigQuery(ctx, client, sql)
	}
	s.estimate = func(ctx context.Context, sql string) (int64, error) {
		return dryRunBigQuery(ctx, client, sql)
	}
	return s
}

// Fetch queries the warehouse for [start, end]. When fewer than
// MinPatents valid rows come back, the window is widened to the trailing
// 30 days and retried once; both windows are preserved in the stats.
func (s *PatentSource) Fetch(ctx context.Context, start, end time.Time) ([]models.Patent, PatentStats, error) {
	stats := PatentStats{
		OriginalStart: start.UTC().Format("2006-01-02"),
		OriginalEnd:   end.UTC().Format("2006-01-02"),
	}

	patents, bytesProcessed, elapsed, err := s.fetchWindow(ctx, start, end)
	stats.BytesProcessed += bytesProcessed
	stats.QueryTime += elapsed
	if err != nil {
		return nil, stats, fmt.Errorf("patent query failed: %w", err)
	}

	if len(patents) < s.cfg.MinPatents {
		fbEnd := s.now().UTC()
		fbStart := fbEnd.AddDate(0, 0, -fallbackWindowDays)
		stats.UsedFallback = true
		stats.FallbackStart = fbStart.Format("2006-01-02")
		stats.FallbackEnd = fbEnd.Format("2006-01-02")

		s.log.Info().
			Int("fetched", len(patents)).
			Int("min", s.cfg.MinPatents).
			Str("fallback_start", stats.FallbackStart).
			Msg("thin patent window, widening to 30 days")

		patents, bytesProcessed, elapsed, err = s.fetchWindow(ctx, fbStart, fbEnd)
		stats.BytesProcessed += bytesProcessed
		stats.QueryTime += elapsed
		if err != nil {
			return nil, stats, fmt.Errorf("fallback patent query failed: %w", err)
		}
	}

	if len(patents) == 0 {
		return nil, stats, fmt.Errorf("no patents retrieved from warehouse")
	}

	stats.Fetched = len(patents)
	return patents, stats, nil
}

func (s *PatentSource) fetchWindow(ctx context.Context, start, end time.Time) ([]models.Patent, int64, time.Duration, error) {
	sql := s.builder.Build(start, end)

	t0 := time.Now()
	rows, bytesProcessed, err := s.runQuery(ctx, sql)
	elapsed := time.Since(t0)
	if err != nil {
		return nil, bytesProcessed, elapsed, err
	}

	patents := make([]models.Patent, 0, len(rows))
	for _, row := range rows {
		p := row.toPatent()
		if p.Valid() {
			patents = append(patents, p)
		}
	}
	return patents, bytesProcessed, elapsed, nil
}

func (r *patentRow) toPatent() models.Patent {
	return models.Patent{
		PublicationNumber: r.PublicationNumber,
		Title:             r.Title.StringVal,
		Abstract:          r.Abstract.StringVal,
		Assignees:         r.Assignees,
		CPCCodes:          r.CPCCodes,
		CountryCode:       r.CountryCode,
		PublicationDate:   yyyymmddToTime(r.PublicationDate),
	}
}

func yyyymmddToTime(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	t, err := time.Parse("20060102", strconv.FormatInt(v, 10))
	if err != nil {
		return time.Time{}
	}
	return t
}

// runBigQuery executes sql as a job and drains the iterator, reporting
// total bytes processed from the job statistics.
func runBigQuery(ctx context.Context, client *bigquery.Client, sql string) ([]patentRow, int64, error) {
	q := client.Query(sql)
	job, err := q.Run(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("run query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("wait for query: %w", err)
	}
	if err := status.Err(); err != nil {
		return nil, 0, fmt.Errorf("query failed: %w", err)
	}

	var bytesProcessed int64
	if last := job.LastStatus(); last != nil && last.Statistics != nil {
		bytesProcessed = last.Statistics.TotalBytesProcessed
	}

	it, err := job.Read(ctx)
	if err != nil {
		return nil, bytesProcessed, fmt.Errorf("read results: %w", err)
	}

	var rows []patentRow
	for {
		var row patentRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, bytesProcessed, fmt.Errorf("iterate results: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, bytesProcessed, nil
}

// EstimateCost dry-runs the query for [start, end] and returns the bytes
// BigQuery would scan.
func (s *PatentSource) EstimateCost(ctx context.Context, start, end time.Time) (int64, error) {
	return s.estimate(ctx, s.builder.Build(start, end))
}

func dryRunBigQuery(ctx context.Context, client *bigquery.Client, sql string) (int64, error) {
	q := client.Query(sql)
	q.DryRun = true
	job, err := q.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("dry run: %w", err)
	}
	last := job.LastStatus()
	if last == nil || last.Statistics == nil {
		return 0, fmt.Errorf("dry run returned no statistics")
	}
	return last.Statistics.TotalBytesProcessed, nil
}
