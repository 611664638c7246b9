// Package classify implements the two classification tiers: relevance
// (is this item cybersecurity-related) and extraction (companies, sector,
// novelty, keywords).
//
// DESIGN: Each classifier asks the oracle first and falls back to the
// deterministic heuristics when the call fails for any reason other than
// a guard rejection of our own making. Results are cached by a fingerprint
// of the prepared context so duplicate content never costs a second API
// call within the TTL.
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

// LLMVersion tags oracle-produced results.
const LLMVersion = "v1"

// RelevanceClassifier is the tier-one classifier.
type RelevanceClassifier struct {
	oracle     *oracle.Client
	heuristics *Heuristics
	cache      *Cache[models.RelevanceResult]
	fallback   bool
	metrics    *monitoring.MetricsCollector
	log        zerolog.Logger
}

// NewRelevanceClassifier builds a classifier. The cache is owned by the
// classifier; Close releases it. A nil metrics collector gets a private
// one so callers that don't report metrics can pass nil.
func NewRelevanceClassifier(client *oracle.Client, minScore float64, metrics *monitoring.MetricsCollector, log zerolog.Logger) *RelevanceClassifier {
	if metrics == nil {
		metrics = monitoring.NewMetricsCollector()
	}
	return &RelevanceClassifier{
		oracle:     client,
		heuristics: NewHeuristics(minScore),
		cache:      NewCache[models.RelevanceResult](DefaultCacheTTL),
		fallback:   true,
		metrics:    metrics,
		log:        log,
	}
}

// Close releases the classifier cache.
func (c *RelevanceClassifier) Close() { c.cache.Close() }

// CacheLen reports the number of cached results.
func (c *RelevanceClassifier) CacheLen() int { return c.cache.Len() }

// ClassifyPatent classifies one patent, serving repeats from cache.
func (c *RelevanceClassifier) ClassifyPatent(ctx context.Context, p *models.Patent) (models.RelevanceResult, error) {
	return c.classify(ctx, p.PublicationNumber, models.SourceTypePatent, PatentRelevanceContext(p),
		func() models.RelevanceResult { return c.heuristics.ClassifyPatent(p) })
}

// ClassifyArticle classifies one news article, serving repeats from cache.
func (c *RelevanceClassifier) ClassifyArticle(ctx context.Context, a *models.Article) (models.RelevanceResult, error) {
	return c.classify(ctx, a.ID, models.SourceTypeNews, NewsRelevanceContext(a),
		func() models.RelevanceResult { return c.heuristics.ClassifyNews(a) })
}

func (c *RelevanceClassifier) classify(ctx context.Context, itemID, sourceType, promptCtx string, heuristic func() models.RelevanceResult) (models.RelevanceResult, error) {
	fp := Fingerprint(promptCtx)
	if cached, ok := c.cache.Get(fp); ok {
		c.metrics.RecordCacheHit()
		c.log.Debug().Str("item", itemID).Str("fingerprint", fp).Msg("relevance cache hit")
		return cached, nil
	}
	c.metrics.RecordCacheMiss()

	result, err := c.classifyLLM(ctx, itemID, sourceType, promptCtx, fp)
	if err != nil {
		if !c.fallback {
			return models.RelevanceResult{}, err
		}
		c.metrics.RecordFallback()
		c.log.Warn().Str("item", itemID).Err(err).Msg("relevance LLM failed, using heuristics")
		result = heuristic()
	}

	c.cache.Set(fp, result)
	return result, nil
}

func (c *RelevanceClassifier) classifyLLM(ctx context.Context, itemID, sourceType, promptCtx, fp string) (models.RelevanceResult, error) {
	prompt := relevancePromptTemplate + "\n\n" + promptCtx
	c.metrics.RecordLLMCall()
	payload, err := c.oracle.GenerateJSON(ctx, prompt)
	if err != nil {
		return models.RelevanceResult{}, err
	}

	for _, field := range []string{"is_relevant", "score", "category", "reasons"} {
		if !gjson.Get(payload, field).Exists() {
			return models.RelevanceResult{}, fmt.Errorf("missing required field %q in relevance response", field)
		}
	}

	var reasons []string
	for _, r := range gjson.Get(payload, "reasons").Array() {
		reasons = append(reasons, r.String())
	}

	result := models.NewRelevanceResult(
		itemID, sourceType,
		gjson.Get(payload, "is_relevant").Bool(),
		gjson.Get(payload, "score").Float(),
		gjson.Get(payload, "category").String(),
		reasons,
		c.oracle.Model(), LLMVersion,
	)
	result.ContentHash = fp
	return result, nil
}
