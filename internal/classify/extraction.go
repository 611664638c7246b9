package classify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/ballisticintel/pipeline/internal/models"
	"github.com/ballisticintel/pipeline/internal/monitoring"
	"github.com/ballisticintel/pipeline/internal/oracle"
)

// ExtractionClassifier is the tier-two classifier.
type ExtractionClassifier struct {
	oracle     *oracle.Client
	heuristics *Heuristics
	cache      *Cache[models.ExtractionResult]
	fallback   bool
	metrics    *monitoring.MetricsCollector
	log        zerolog.Logger
}

// NewExtractionClassifier builds a classifier. The cache is owned by the
// classifier; Close releases it. A nil metrics collector gets a private
// one so callers that don't report metrics can pass nil.
func NewExtractionClassifier(client *oracle.Client, metrics *monitoring.MetricsCollector, log zerolog.Logger) *ExtractionClassifier {
	if metrics == nil {
		metrics = monitoring.NewMetricsCollector()
	}
	return &ExtractionClassifier{
		oracle:     client,
		heuristics: NewHeuristics(0.5),
		cache:      NewCache[models.ExtractionResult](DefaultCacheTTL),
		fallback:   true,
		metrics:    metrics,
		log:        log,
	}
}

// Close releases the classifier cache.
func (c *ExtractionClassifier) Close() { c.cache.Close() }

// CacheLen reports the number of cached results.
func (c *ExtractionClassifier) CacheLen() int { return c.cache.Len() }

// ExtractPatent extracts structured data from one patent.
func (c *ExtractionClassifier) ExtractPatent(ctx context.Context, p *models.Patent) (models.ExtractionResult, error) {
	return c.extract(ctx, p.PublicationNumber, models.SourceTypePatent, PatentExtractionContext(p),
		func() models.ExtractionResult { return c.heuristics.ExtractPatent(p) })
}

// ExtractArticle extracts structured data from one news article.
func (c *ExtractionClassifier) ExtractArticle(ctx context.Context, a *models.Article) (models.ExtractionResult, error) {
	return c.extract(ctx, a.ID, models.SourceTypeNews, NewsExtractionContext(a),
		func() models.ExtractionResult { return c.heuristics.ExtractNews(a) })
}

func (c *ExtractionClassifier) extract(ctx context.Context, itemID, sourceType, promptCtx string, heuristic func() models.ExtractionResult) (models.ExtractionResult, error) {
	fp := Fingerprint(promptCtx)
	if cached, ok := c.cache.Get(fp); ok {
		c.metrics.RecordCacheHit()
		c.log.Debug().Str("item", itemID).Str("fingerprint", fp).Msg("extraction cache hit")
		return cached, nil
	}
	c.metrics.RecordCacheMiss()

	result, err := c.extractLLM(ctx, itemID, sourceType, promptCtx, fp)
	if err != nil {
		if !c.fallback {
			return models.ExtractionResult{}, err
		}
		c.metrics.RecordFallback()
		c.log.Warn().Str("item", itemID).Err(err).Msg("extraction LLM failed, using heuristics")
		result = heuristic()
	}

	c.cache.Set(fp, result)
	return result, nil
}

func (c *ExtractionClassifier) extractLLM(ctx context.Context, itemID, sourceType, promptCtx, fp string) (models.ExtractionResult, error) {
	prompt := extractionPromptTemplate + "\n\n" + promptCtx
	c.metrics.RecordLLMCall()
	payload, err := c.oracle.GenerateJSON(ctx, prompt)
	if err != nil {
		return models.ExtractionResult{}, err
	}

	for _, field := range []string{"company_names", "sector", "novelty_score", "tech_keywords", "rationale"} {
		if !gjson.Get(payload, field).Exists() {
			return models.ExtractionResult{}, fmt.Errorf("missing required field %q in extraction response", field)
		}
	}

	var companies []string
	for _, v := range gjson.Get(payload, "company_names").Array() {
		companies = append(companies, v.String())
	}
	var keywords []string
	for _, v := range gjson.Get(payload, "tech_keywords").Array() {
		keywords = append(keywords, v.String())
	}
	var rationale []string
	for _, v := range gjson.Get(payload, "rationale").Array() {
		rationale = append(rationale, v.String())
	}

	result := models.NewExtractionResult(
		itemID, sourceType,
		companies,
		gjson.Get(payload, "sector").String(),
		gjson.Get(payload, "novelty_score").Float(),
		keywords,
		rationale,
		c.oracle.Model(), LLMVersion,
	)
	result.ContentHash = fp
	return result, nil
}
