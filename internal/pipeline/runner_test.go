package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ballisticintel/pipeline/internal/config"
	"github.com/ballisticintel/pipeline/internal/ingest"
	"github.com/ballisticintel/pipeline/internal/models"
	"github.com/ballisticintel/pipeline/internal/monitoring"
	"github.com/ballisticintel/pipeline/internal/resolve"
	"github.com/ballisticintel/pipeline/internal/storage"
)

type fakePatents struct {
	patents []models.Patent
	err     error
}

func (f *fakePatents) Fetch(context.Context, time.Time, time.Time) ([]models.Patent, ingest.PatentStats, error) {
	return f.patents, ingest.PatentStats{Fetched: len(f.patents)}, f.err
}

type fakeArticles struct {
	articles []models.Article
	err      error
}

func (f *fakeArticles) Fetch(context.Context, time.Time) ([]models.Article, ingest.FeedStats, error) {
	return f.articles, ingest.FeedStats{ItemsKept: len(f.articles)}, f.err
}

// fakeRelevance marks everything relevant except IDs in failIDs, which
// error out.
type fakeRelevance struct {
	failIDs map[string]bool
}

func (f *fakeRelevance) classify(itemID, sourceType string) (models.RelevanceResult, error) {
	if f.failIDs[itemID] {
		return models.RelevanceResult{}, fmt.Errorf("oracle transport")
	}
	return models.NewRelevanceResult(itemID, sourceType, true, 0.9, "network", nil, "fake", "v1"), nil
}

func (f *fakeRelevance) ClassifyPatent(_ context.Context, p *models.Patent) (models.RelevanceResult, error) {
	return f.classify(p.PublicationNumber, models.SourceTypePatent)
}

func (f *fakeRelevance) ClassifyArticle(_ context.Context, a *models.Article) (models.RelevanceResult, error) {
	return f.classify(a.ID, models.SourceTypeNews)
}

// fakeExtraction names one company per item, derived from the item ID.
type fakeExtraction struct{}

func (fakeExtraction) extract(itemID, sourceType string) (models.ExtractionResult, error) {
	return models.NewExtractionResult(itemID, sourceType, []string{"Acme " + itemID}, "network", 0.5, nil, nil, "fake", "v1"), nil
}

func (f fakeExtraction) ExtractPatent(_ context.Context, p *models.Patent) (models.ExtractionResult, error) {
	return f.extract(p.PublicationNumber, models.SourceTypePatent)
}

func (f fakeExtraction) ExtractArticle(_ context.Context, a *models.Article) (models.ExtractionResult, error) {
	return f.extract(a.ID, models.SourceTypeNews)
}

// estimatingPatents is a fetcher that can also price the query window.
type estimatingPatents struct {
	fakePatents
	bytes int64
	err   error
	calls int
}

func (f *estimatingPatents) EstimateCost(context.Context, time.Time, time.Time) (int64, error) {
	f.calls++
	return f.bytes, f.err
}

func testPatent(pub string) models.Patent {
	return models.Patent{
		PublicationNumber: pub,
		Title:             "Network intrusion detection system",
		Abstract:          strings.Repeat("Detects anomalous flows across segments. ", 3),
		CPCCodes:          []string{"H04L63/14"},
	}
}

func testArticle(id string) models.Article {
	return models.Article{
		ID:        id,
		Source:    "FeedA",
		Title:     "Breach disclosed",
		Link:      "https://example.com/" + id,
		Published: time.Now().UTC(),
	}
}

func newTestRunner(t *testing.T, cfg config.Config, patents PatentFetcher, articles ArticleFetcher,
	relevance RelevanceClassifier) (*Runner, *storage.SQLiteStore) {
	t.Helper()

	store, err := storage.NewSQLiteStore(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return NewRunner(cfg,
		storage.NewWriter(store, zerolog.Nop()),
		patents, articles, relevance, fakeExtraction{},
		resolve.NewResolver(resolve.StrategyLongest, zerolog.Nop()),
		NewDLQ(t.TempDir(), true, zerolog.Nop()),
		monitoring.NewMetricsCollector(),
		zerolog.Nop(),
	), store
}

func runnerConfig() config.Config {
	return config.Config{
		Mode:              config.ModeIncremental,
		LookbackDays:      2,
		P2Concurrency:     2,
		P3Concurrency:     2,
		GeminiMaxRPM:      15,
		TimeBudgetMinutes: 15,
	}
}

func TestRunnerEndToEnd(t *testing.T) {
	patents := &fakePatents{patents: []models.Patent{testPatent("US-1"), testPatent("US-2")}}
	articles := &fakeArticles{articles: []models.Article{testArticle("aa11")}}

	r, _ := newTestRunner(t, runnerConfig(), patents, articles, &fakeRelevance{})
	rc, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, rc.ErrorCount())

	// Every stage reported stats.
	for _, node := range []string{NodePatents, NodeNews, NodeRelevance, NodeExtraction, NodeEntities} {
		assert.NotNil(t, rc.Stat(node), "missing stats for %s", node)
	}

	rel, ok := rc.Stat(NodeRelevance).(relevanceStageStats)
	require.True(t, ok)
	assert.Equal(t, 3, rel.Classified)
	assert.Equal(t, 3, rel.Relevant)
	assert.Equal(t, 0, rel.ItemsFailed)

	ext, ok := rc.Stat(NodeExtraction).(extractionStageStats)
	require.True(t, ok)
	assert.Equal(t, 3, ext.Extracted)
	assert.Equal(t, 3, ext.Companies)
}

func TestRunnerRecordsItemFailuresWithoutFailingRun(t *testing.T) {
	patents := &fakePatents{patents: []models.Patent{testPatent("US-1"), testPatent("US-2")}}
	articles := &fakeArticles{}
	relevance := &fakeRelevance{failIDs: map[string]bool{"US-2": true}}

	r, _ := newTestRunner(t, runnerConfig(), patents, articles, relevance)
	rc, err := r.Run(context.Background())
	require.NoError(t, err, "a failed item degrades the run, it does not abort it")

	assert.Equal(t, 1, rc.ErrorCount())
	errs := rc.Errors()
	assert.Equal(t, NodeRelevance, errs[0].Node)
	assert.Equal(t, "US-2", errs[0].ItemID)

	// The failed item landed in the dead letter queue.
	paths, listErr := r.dlq.List(NodeRelevance)
	require.NoError(t, listErr)
	require.Len(t, paths, 1)
	entry, readErr := r.dlq.Read(paths[0])
	require.NoError(t, readErr)
	assert.Equal(t, "US-2", entry.ItemID)

	rel := rc.Stat(NodeRelevance).(relevanceStageStats)
	assert.Equal(t, 1, rel.Classified)
	assert.Equal(t, 1, rel.ItemsFailed)
}

func TestRunnerStageFailureSkipsDownstream(t *testing.T) {
	patents := &fakePatents{err: fmt.Errorf("warehouse unavailable")}
	articles := &fakeArticles{articles: []models.Article{testArticle("aa11")}}

	r, _ := newTestRunner(t, runnerConfig(), patents, articles, &fakeRelevance{})
	rc, err := r.Run(context.Background())
	require.Error(t, err)

	assert.GreaterOrEqual(t, rc.ErrorCount(), 1)
	assert.Nil(t, rc.Stat(NodeRelevance), "relevance never ran behind the failed fetch")
	assert.Nil(t, rc.Stat(NodeEntities))
}

func TestRunnerDryRunTouchesNothing(t *testing.T) {
	cfg := runnerConfig()
	cfg.Mode = config.ModeDryRun

	// nil fetchers and classifiers: dry run must never dereference them.
	r, _ := newTestRunner(t, cfg, nil, nil, nil)
	rc, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, rc.ErrorCount())
}

func TestRunnerDryRunReportsEstimatedCost(t *testing.T) {
	cfg := runnerConfig()
	cfg.Mode = config.ModeDryRun

	patents := &estimatingPatents{bytes: 2_500_000}
	r, _ := newTestRunner(t, cfg, patents, nil, nil)
	rc, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, patents.calls)
	stat, ok := rc.Stat(NodePatents).(map[string]any)
	require.True(t, ok, "dry run records the estimate as stage stats")
	assert.Equal(t, int64(2_500_000), stat["estimated_bytes"])
	assert.Equal(t, true, stat["dry_run"])
}

func TestRunnerDryRunToleratesEstimateFailure(t *testing.T) {
	cfg := runnerConfig()
	cfg.Mode = config.ModeDryRun

	patents := &estimatingPatents{err: fmt.Errorf("permission denied")}
	r, _ := newTestRunner(t, cfg, patents, nil, nil)
	rc, err := r.Run(context.Background())
	require.NoError(t, err, "a failed estimate must not fail the dry run")
	assert.Equal(t, 0, rc.ErrorCount())
	assert.Nil(t, rc.Stat(NodePatents))
}
