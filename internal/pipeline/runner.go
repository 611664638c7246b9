package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ballisticintel/pipeline/internal/config"
	"github.com/ballisticintel/pipeline/internal/ingest"
	"github.com/ballisticintel/pipeline/internal/models"
	"github.com/ballisticintel/pipeline/internal/monitoring"
	"github.com/ballisticintel/pipeline/internal/resolve"
	"github.com/ballisticintel/pipeline/internal/storage"
)

// Node names. p1a and p1b are independent roots; p2 needs both, p3
// needs p2, p4 needs p3.
const (
	NodePatents    = "p1a_patents"
	NodeNews       = "p1b_news"
	NodeRelevance  = "p2_relevance"
	NodeExtraction = "p3_extraction"
	NodeEntities   = "p4_entities"
)

// PatentFetcher pulls patents for a date window.
type PatentFetcher interface {
	Fetch(ctx context.Context, start, end time.Time) ([]models.Patent, ingest.PatentStats, error)
}

// ArticleFetcher pulls news articles published since a cutoff.
type ArticleFetcher interface {
	Fetch(ctx context.Context, since time.Time) ([]models.Article, ingest.FeedStats, error)
}

// RelevanceClassifier is the tier-one classification dependency.
type RelevanceClassifier interface {
	ClassifyPatent(ctx context.Context, p *models.Patent) (models.RelevanceResult, error)
	ClassifyArticle(ctx context.Context, a *models.Article) (models.RelevanceResult, error)
}

// ExtractionClassifier is the tier-two classification dependency.
type ExtractionClassifier interface {
	ExtractPatent(ctx context.Context, p *models.Patent) (models.ExtractionResult, error)
	ExtractArticle(ctx context.Context, a *models.Article) (models.ExtractionResult, error)
}

// CostEstimator is implemented by patent fetchers that can price a query
// window without running it; dry runs use it to report the scan cost.
type CostEstimator interface {
	EstimateCost(ctx context.Context, start, end time.Time) (int64, error)
}

// EntityResolver deduplicates extracted company names.
type EntityResolver interface {
	Resolve(names []string, sources map[string][]string) ([]models.ResolvedEntity, []models.AliasLink, resolve.Stats)
}

// Runner executes the whole pipeline for one run.
type Runner struct {
	cfg        config.Config
	writer     *storage.Writer
	patents    PatentFetcher
	articles   ArticleFetcher
	relevance  RelevanceClassifier
	extraction ExtractionClassifier
	resolver   EntityResolver
	dlq        *DLQ
	metrics    *monitoring.MetricsCollector
	log        zerolog.Logger

	// intermediate state; stages run sequentially so plain fields are
	// safe here (fan-out mutates only index-aligned slices).
	fetchedPatents   []models.Patent
	fetchedArticles  []models.Article
	relevantPatents  []models.Patent
	relevantArticles []models.Article
	companyNames     []string
	companySources   map[string][]string
}

// NewRunner wires the stages together.
func NewRunner(cfg config.Config, writer *storage.Writer, patents PatentFetcher, articles ArticleFetcher,
	relevance RelevanceClassifier, extraction ExtractionClassifier, resolver EntityResolver,
	dlq *DLQ, metrics *monitoring.MetricsCollector, log zerolog.Logger) *Runner {
	return &Runner{
		cfg:        cfg,
		writer:     writer,
		patents:    patents,
		articles:   articles,
		relevance:  relevance,
		extraction: extraction,
		resolver:   resolver,
		dlq:        dlq,
		metrics:    metrics,
		log:        log,
	}
}

// Run executes one pipeline run end to end. The returned RunContext
// carries stats and recorded errors; callers derive the exit code from
// ErrorCount.
func (r *Runner) Run(ctx context.Context) (*RunContext, error) {
	start, end, err := r.cfg.DateRange(time.Now())
	if err != nil {
		return nil, fmt.Errorf("resolve date range: %w", err)
	}

	rc := NewRunContext(r.cfg.Mode, start, end)
	ctx = monitoring.WithRunIDContext(ctx, rc.RunID)

	ctx, cancel := context.WithTimeout(ctx, r.cfg.TimeBudget())
	defer cancel()

	log := r.log.With().Str("run_id", rc.RunID).Str("mode", rc.Mode).Logger()
	log.Info().
		Str("window_start", start.Format("2006-01-02")).
		Str("window_end", end.Format("2006-01-02")).
		Msg("pipeline run starting")

	if !r.cfg.IsDryRun() {
		if err := r.writer.HealthCheck(ctx); err != nil {
			return rc, fmt.Errorf("storage preflight failed: %w", err)
		}
	}

	dag := NewDAG(log)
	nodes := []*Node{
		{Name: NodePatents, Run: r.runPatents},
		{Name: NodeNews, Run: r.runNews},
		{Name: NodeRelevance, Deps: []string{NodePatents, NodeNews}, Run: r.runRelevance},
		{Name: NodeExtraction, Deps: []string{NodeRelevance}, Run: r.runExtraction},
		{Name: NodeEntities, Deps: []string{NodeExtraction}, Run: r.runEntities},
	}
	for _, n := range nodes {
		run := n.Run
		n.Run = func(ctx context.Context, rc *RunContext) error {
			if rc.Duration() > r.cfg.TimeBudget() {
				return ErrBudgetExceeded
			}
			return run(ctx, rc)
		}
		if err := dag.Add(n); err != nil {
			return rc, err
		}
	}

	_, execErr := dag.Execute(ctx, rc, ExecuteOptions{})

	log.Info().
		Fields(rc.Summary()).
		Interface("metrics", r.metrics.Stats()).
		Msg("pipeline run finished")
	return rc, execErr
}

func (r *Runner) runPatents(ctx context.Context, rc *RunContext) error {
	if r.cfg.IsDryRun() {
		r.log.Info().
			Str("window_start", rc.WindowStart.Format("2006-01-02")).
			Str("window_end", rc.WindowEnd.Format("2006-01-02")).
			Msg("dry run: would query patent warehouse")
		if est, ok := r.patents.(CostEstimator); ok {
			bytes, err := est.EstimateCost(ctx, rc.WindowStart, rc.WindowEnd)
			if err != nil {
				r.log.Warn().Err(err).Msg("dry run: cost estimate failed")
				return nil
			}
			rc.SetStat(NodePatents, map[string]any{"estimated_bytes": bytes, "dry_run": true})
			r.log.Info().Int64("estimated_bytes", bytes).Msg("dry run: patent query cost")
		}
		return nil
	}

	patents, stats, err := r.patents.Fetch(ctx, rc.WindowStart, rc.WindowEnd)
	if err != nil {
		return fmt.Errorf("fetch patents: %w", err)
	}
	rc.SetStat(NodePatents, stats)

	result := r.writer.PersistPatents(ctx, patents)
	if !result.Success {
		return fmt.Errorf("persist patents: %s", result.Error)
	}
	r.metrics.RecordRows(result.Count)

	r.fetchedPatents = patents
	return nil
}

func (r *Runner) runNews(ctx context.Context, rc *RunContext) error {
	if r.cfg.IsDryRun() {
		r.log.Info().Msg("dry run: would poll news feeds")
		return nil
	}

	articles, stats, err := r.articles.Fetch(ctx, rc.WindowStart)
	if err != nil {
		return fmt.Errorf("fetch news: %w", err)
	}
	rc.SetStat(NodeNews, stats)

	result := r.writer.PersistArticles(ctx, articles)
	if !result.Success {
		return fmt.Errorf("persist articles: %s", result.Error)
	}
	r.metrics.RecordRows(result.Count)

	r.fetchedArticles = articles
	return nil
}

// relevanceStageStats summarizes tier-one classification.
type relevanceStageStats struct {
	Classified  int `json:"classified"`
	Relevant    int `json:"relevant"`
	ItemsFailed int `json:"items_failed"`
}

func (r *Runner) runRelevance(ctx context.Context, rc *RunContext) error {
	if r.cfg.IsDryRun() {
		r.log.Info().Msg("dry run: would classify relevance")
		return nil
	}

	results := make([]models.RelevanceResult, len(r.fetchedPatents)+len(r.fetchedArticles))
	var stats relevanceStageStats

	patentErrs := ForEach(ctx, indices(len(r.fetchedPatents)), r.cfg.P2Concurrency, func(ctx context.Context, i int) error {
		res, err := r.relevance.ClassifyPatent(ctx, &r.fetchedPatents[i])
		if err != nil {
			return err
		}
		results[i] = res
		return nil
	})
	articleErrs := ForEach(ctx, indices(len(r.fetchedArticles)), r.cfg.P2Concurrency, func(ctx context.Context, i int) error {
		res, err := r.relevance.ClassifyArticle(ctx, &r.fetchedArticles[i])
		if err != nil {
			return err
		}
		results[len(r.fetchedPatents)+i] = res
		return nil
	})

	var kept []models.RelevanceResult
	for i, p := range r.fetchedPatents {
		if err := patentErrs[i]; err != nil {
			stats.ItemsFailed++
			rc.AddError(NodeRelevance, p.PublicationNumber, err.Error())
			r.dlq.Write(NodeRelevance, p.PublicationNumber, err, p)
			r.metrics.RecordItem(false)
			continue
		}
		r.metrics.RecordItem(true)
		kept = append(kept, results[i])
		if results[i].IsRelevant {
			r.relevantPatents = append(r.relevantPatents, p)
		}
	}
	for i, a := range r.fetchedArticles {
		if err := articleErrs[i]; err != nil {
			stats.ItemsFailed++
			rc.AddError(NodeRelevance, a.ID, err.Error())
			r.dlq.Write(NodeRelevance, a.ID, err, a)
			r.metrics.RecordItem(false)
			continue
		}
		r.metrics.RecordItem(true)
		res := results[len(r.fetchedPatents)+i]
		kept = append(kept, res)
		if res.IsRelevant {
			r.relevantArticles = append(r.relevantArticles, a)
		}
	}

	stats.Classified = len(kept)
	stats.Relevant = len(r.relevantPatents) + len(r.relevantArticles)
	rc.SetStat(NodeRelevance, stats)

	result := r.writer.PersistRelevance(ctx, kept)
	if !result.Success {
		return fmt.Errorf("persist relevance: %s", result.Error)
	}
	r.metrics.RecordRows(result.Count)
	return nil
}

// extractionStageStats summarizes tier-two classification.
type extractionStageStats struct {
	Extracted   int `json:"extracted"`
	Companies   int `json:"companies"`
	ItemsFailed int `json:"items_failed"`
}

func (r *Runner) runExtraction(ctx context.Context, rc *RunContext) error {
	if r.cfg.IsDryRun() {
		r.log.Info().Msg("dry run: would extract structured data")
		return nil
	}

	results := make([]models.ExtractionResult, len(r.relevantPatents)+len(r.relevantArticles))
	var stats extractionStageStats

	patentErrs := ForEach(ctx, indices(len(r.relevantPatents)), r.cfg.P3Concurrency, func(ctx context.Context, i int) error {
		res, err := r.extraction.ExtractPatent(ctx, &r.relevantPatents[i])
		if err != nil {
			return err
		}
		results[i] = res
		return nil
	})
	articleErrs := ForEach(ctx, indices(len(r.relevantArticles)), r.cfg.P3Concurrency, func(ctx context.Context, i int) error {
		res, err := r.extraction.ExtractArticle(ctx, &r.relevantArticles[i])
		if err != nil {
			return err
		}
		results[len(r.relevantPatents)+i] = res
		return nil
	})

	r.companySources = make(map[string][]string)
	var kept []models.ExtractionResult
	collect := func(res models.ExtractionResult) {
		kept = append(kept, res)
		for _, name := range res.CompanyNames {
			if len(r.companySources[name]) == 0 {
				r.companyNames = append(r.companyNames, name)
			}
			r.companySources[name] = appendUnique(r.companySources[name], res.SourceType)
		}
	}

	for i, p := range r.relevantPatents {
		if err := patentErrs[i]; err != nil {
			stats.ItemsFailed++
			rc.AddError(NodeExtraction, p.PublicationNumber, err.Error())
			r.dlq.Write(NodeExtraction, p.PublicationNumber, err, p)
			r.metrics.RecordItem(false)
			continue
		}
		r.metrics.RecordItem(true)
		collect(results[i])
	}
	for i, a := range r.relevantArticles {
		if err := articleErrs[i]; err != nil {
			stats.ItemsFailed++
			rc.AddError(NodeExtraction, a.ID, err.Error())
			r.dlq.Write(NodeExtraction, a.ID, err, a)
			r.metrics.RecordItem(false)
			continue
		}
		r.metrics.RecordItem(true)
		collect(results[len(r.relevantPatents)+i])
	}

	stats.Extracted = len(kept)
	stats.Companies = len(r.companyNames)
	rc.SetStat(NodeExtraction, stats)

	result := r.writer.PersistExtractions(ctx, kept)
	if !result.Success {
		return fmt.Errorf("persist extractions: %s", result.Error)
	}
	r.metrics.RecordRows(result.Count)
	return nil
}

func (r *Runner) runEntities(ctx context.Context, rc *RunContext) error {
	if r.cfg.IsDryRun() {
		r.log.Info().Msg("dry run: would resolve entities")
		return nil
	}

	entities, aliases, stats := r.resolver.Resolve(r.companyNames, r.companySources)
	rc.SetStat(NodeEntities, stats)

	result := r.writer.PersistEntities(ctx, entities, aliases)
	if !result.Success {
		return fmt.Errorf("persist entities: entities=%s aliases=%s",
			result.Entities.Error, result.Aliases.Error)
	}
	r.metrics.RecordRows(result.TotalCount)
	return nil
}

func indices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
