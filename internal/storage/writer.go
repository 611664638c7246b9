package storage

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ballisticintel/pipeline/internal/models"
)

// Table names and conflict keys. Classification tables have no single
// key column; the composite matches their unique constraint.
const (
	TablePatents     = "patents"
	TableNews        = "news_articles"
	TableRelevance   = "relevance_results"
	TableExtractions = "extraction_results"
	TableEntities    = "entities"
	TableAliases     = "entity_aliases"

	conflictPatents  = "publication_number"
	conflictNews     = "link"
	conflictClassify = "item_id,source_type,model,model_version,timestamp"
	conflictEntities = "entity_id"
	conflictAliases  = "raw_name"
)

// Writer maps domain models onto table rows and drives the Store.
type Writer struct {
	store Store
	log   zerolog.Logger
}

// NewWriter wraps a store.
func NewWriter(store Store, log zerolog.Logger) *Writer {
	return &Writer{store: store, log: log}
}

// HealthCheck proxies to the underlying store.
func (w *Writer) HealthCheck(ctx context.Context) error {
	return w.store.HealthCheck(ctx)
}

// Close proxies to the underlying store.
func (w *Writer) Close() error { return w.store.Close() }

// PersistPatents upserts patents keyed on publication number.
func (w *Writer) PersistPatents(ctx context.Context, patents []models.Patent) UpsertResult {
	rows := make([]map[string]any, len(patents))
	for i, p := range patents {
		rows[i] = map[string]any{
			"publication_number": p.PublicationNumber,
			"title":              p.Title,
			"abstract":           p.Abstract,
			"assignees":          emptyIfNil(p.Assignees),
			"cpc_codes":          emptyIfNil(p.CPCCodes),
			"country":            p.CountryCode,
			"publication_date":   dateString(p.PublicationDate),
		}
	}
	return w.persist(ctx, TablePatents, rows, conflictPatents)
}

// PersistArticles upserts news articles keyed on link.
func (w *Writer) PersistArticles(ctx context.Context, articles []models.Article) UpsertResult {
	rows := make([]map[string]any, len(articles))
	for i, a := range articles {
		rows[i] = map[string]any{
			"id":              a.ID,
			"source":          a.Source,
			"title":           a.Title,
			"link":            a.Link,
			"published_at":    a.Published.UTC().Format(time.RFC3339),
			"summary":         a.Summary,
			"categories":      emptyIfNil(a.Categories),
			"content_text":    a.ContentText,
			"funding_related": a.FundingRelated,
			"funding_reason":  a.FundingReason,
		}
	}
	return w.persist(ctx, TableNews, rows, conflictNews)
}

// PersistRelevance upserts relevance results on their composite key.
func (w *Writer) PersistRelevance(ctx context.Context, results []models.RelevanceResult) UpsertResult {
	rows := make([]map[string]any, len(results))
	for i, r := range results {
		rows[i] = map[string]any{
			"item_id":       r.ItemID,
			"source_type":   r.SourceType,
			"is_relevant":   r.IsRelevant,
			"score":         r.Score,
			"category":      r.Category,
			"reasons":       emptyIfNil(r.Reasons),
			"content_hash":  r.ContentHash,
			"model":         r.Model,
			"model_version": r.ModelVersion,
			"timestamp":     r.Timestamp.UTC().Format(time.RFC3339),
		}
	}
	return w.persist(ctx, TableRelevance, rows, conflictClassify)
}

// PersistExtractions upserts extraction results on their composite key.
func (w *Writer) PersistExtractions(ctx context.Context, results []models.ExtractionResult) UpsertResult {
	rows := make([]map[string]any, len(results))
	for i, r := range results {
		rows[i] = map[string]any{
			"item_id":       r.ItemID,
			"source_type":   r.SourceType,
			"companies":     emptyIfNil(r.CompanyNames),
			"sector":        r.Sector,
			"technologies":  emptyIfNil(r.TechKeywords),
			"novelty_score": r.NoveltyScore,
			"rationale":     emptyIfNil(r.Rationale),
			"content_hash":  r.ContentHash,
			"model":         r.Model,
			"model_version": r.ModelVersion,
			"timestamp":     r.Timestamp.UTC().Format(time.RFC3339),
		}
	}
	return w.persist(ctx, TableExtractions, rows, conflictClassify)
}

// EntitiesResult combines the two writes entity resolution produces.
// Entities go first because aliases reference them.
type EntitiesResult struct {
	Entities   UpsertResult `json:"entities"`
	Aliases    UpsertResult `json:"aliases"`
	Success    bool         `json:"success"`
	TotalCount int          `json:"total_count"`
}

// PersistEntities upserts resolved entities and then their alias links.
func (w *Writer) PersistEntities(ctx context.Context, entities []models.ResolvedEntity, aliases []models.AliasLink) EntitiesResult {
	entityRows := make([]map[string]any, len(entities))
	for i, e := range entities {
		entityRows[i] = map[string]any{
			"entity_id":      e.EntityID,
			"canonical_name": e.CanonicalName,
			"sources":        emptyIfNil(e.Sources),
			"confidence":     e.Confidence,
		}
	}
	entitiesRes := w.persist(ctx, TableEntities, entityRows, conflictEntities)

	aliasRows := make([]map[string]any, len(aliases))
	for i, a := range aliases {
		aliasRows[i] = map[string]any{
			"raw_name":      a.RawName,
			"entity_id":     a.EntityID,
			"score":         a.Score,
			"rules_applied": emptyIfNil(a.MatchRules),
		}
	}
	aliasesRes := w.persist(ctx, TableAliases, aliasRows, conflictAliases)

	return EntitiesResult{
		Entities:   entitiesRes,
		Aliases:    aliasesRes,
		Success:    entitiesRes.Success && aliasesRes.Success,
		TotalCount: entitiesRes.Count + aliasesRes.Count,
	}
}

func (w *Writer) persist(ctx context.Context, table string, rows []map[string]any, onConflict string) UpsertResult {
	if len(rows) == 0 {
		w.log.Warn().Str("table", table).Msg("persist called with no rows")
		return UpsertResult{Table: table, Count: 0, Success: true}
	}

	count, err := w.store.Upsert(ctx, table, rows, onConflict)
	if err != nil {
		w.log.Error().Str("table", table).Err(err).Msg("persist failed")
		return UpsertResult{Table: table, Count: count, Success: false, Error: err.Error()}
	}

	w.log.Info().Str("table", table).Int("rows", count).Msg("persisted")
	return UpsertResult{Table: table, Count: count, Success: true}
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func dateString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}
