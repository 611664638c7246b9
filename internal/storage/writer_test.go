package storage_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ballisticintel/pipeline/internal/models"
	"github.com/ballisticintel/pipeline/internal/storage"
)

// recordingStore captures every upsert for assertion.
type recordingStore struct {
	calls []upsertCall
	fail  map[string]error
}

type upsertCall struct {
	table      string
	rows       []map[string]any
	onConflict string
}

func (s *recordingStore) Upsert(_ context.Context, table string, rows []map[string]any, onConflict string) (int, error) {
	if err := s.fail[table]; err != nil {
		return 0, err
	}
	s.calls = append(s.calls, upsertCall{table: table, rows: rows, onConflict: onConflict})
	return len(rows), nil
}

func (s *recordingStore) HealthCheck(context.Context) error { return nil }
func (s *recordingStore) Close() error                      { return nil }

func TestPersistPatents(t *testing.T) {
	store := &recordingStore{}
	w := storage.NewWriter(store, zerolog.Nop())

	res := w.PersistPatents(context.Background(), []models.Patent{{
		PublicationNumber: "US-1",
		Title:             "Network intrusion detection",
		Abstract:          "Long enough abstract for the warehouse row.",
		CPCCodes:          []string{"H04L63/14"},
		CountryCode:       "US",
		PublicationDate:   time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
	}})

	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, storage.TablePatents, res.Table)

	require.Len(t, store.calls, 1)
	call := store.calls[0]
	assert.Equal(t, "publication_number", call.onConflict)
	assert.Equal(t, "US-1", call.rows[0]["publication_number"])
	assert.Equal(t, "2026-08-10", call.rows[0]["publication_date"])
	assert.Equal(t, []string{}, call.rows[0]["assignees"], "nil slices are sent as empty arrays")
}

func TestPersistArticles(t *testing.T) {
	store := &recordingStore{}
	w := storage.NewWriter(store, zerolog.Nop())

	res := w.PersistArticles(context.Background(), []models.Article{{
		ID:             "abc123",
		Source:         "DarkReading",
		Title:          "Breach disclosed",
		Link:           "https://example.com/breach",
		Published:      time.Date(2026, 8, 24, 9, 30, 0, 0, time.UTC),
		FundingRelated: true,
		FundingReason:  "action:raised; money:$30 million",
	}})

	assert.True(t, res.Success)
	require.Len(t, store.calls, 1)
	call := store.calls[0]
	assert.Equal(t, storage.TableNews, call.table)
	assert.Equal(t, "link", call.onConflict)
	assert.Equal(t, "2026-08-24T09:30:00Z", call.rows[0]["published_at"])
	assert.Equal(t, true, call.rows[0]["funding_related"])
}

func TestPersistRelevanceCompositeConflict(t *testing.T) {
	store := &recordingStore{}
	w := storage.NewWriter(store, zerolog.Nop())

	r := models.NewRelevanceResult("US-1", models.SourceTypePatent, true, 0.8, "network", []string{"cpc"}, "gemini-2.5-flash", "v1")
	res := w.PersistRelevance(context.Background(), []models.RelevanceResult{r})

	assert.True(t, res.Success)
	require.Len(t, store.calls, 1)
	assert.Equal(t, "item_id,source_type,model,model_version,timestamp", store.calls[0].onConflict)
}

func TestPersistExtractionsCarriesSectorAndRationale(t *testing.T) {
	store := &recordingStore{}
	w := storage.NewWriter(store, zerolog.Nop())

	r := models.NewExtractionResult("US-1", models.SourceTypePatent,
		[]string{"Acme Security"}, "cloud", 0.7,
		[]string{"sase"}, []string{"assignee is a security vendor"},
		"gemini-2.5-flash", "v1")
	res := w.PersistExtractions(context.Background(), []models.ExtractionResult{r})

	assert.True(t, res.Success)
	require.Len(t, store.calls, 1)
	row := store.calls[0].rows[0]
	assert.Equal(t, "cloud", row["sector"])
	assert.Equal(t, []string{"assignee is a security vendor"}, row["rationale"])
	assert.Equal(t, []string{"Acme Security"}, row["companies"])

	empty := models.NewExtractionResult("US-2", models.SourceTypePatent,
		nil, "unknown", 0.5, nil, nil, "heuristic-v1", "1.0")
	w.PersistExtractions(context.Background(), []models.ExtractionResult{empty})
	require.Len(t, store.calls, 2)
	assert.Equal(t, []string{}, store.calls[1].rows[0]["rationale"], "nil rationale is sent as an empty array")
}

func TestPersistEmptyInputSucceedsWithoutCall(t *testing.T) {
	store := &recordingStore{}
	w := storage.NewWriter(store, zerolog.Nop())

	res := w.PersistRelevance(context.Background(), nil)
	assert.True(t, res.Success)
	assert.Equal(t, 0, res.Count)
	assert.Empty(t, store.calls, "nothing to write means no backend call")
}

func TestPersistReportsStoreFailure(t *testing.T) {
	store := &recordingStore{fail: map[string]error{
		storage.TablePatents: fmt.Errorf("connection reset"),
	}}
	w := storage.NewWriter(store, zerolog.Nop())

	res := w.PersistPatents(context.Background(), []models.Patent{{PublicationNumber: "US-1"}})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "connection reset")
}

func TestPersistEntitiesWritesEntitiesBeforeAliases(t *testing.T) {
	store := &recordingStore{}
	w := storage.NewWriter(store, zerolog.Nop())

	res := w.PersistEntities(context.Background(),
		[]models.ResolvedEntity{{
			EntityID:      "e1",
			CanonicalName: "Acme Security",
			Sources:       []string{"news"},
			Confidence:    0.9,
		}},
		[]models.AliasLink{
			{RawName: "Acme Security Inc.", EntityID: "e1", Score: 0.75, MatchRules: []string{"soft_match_with_high_token_overlap"}},
			{RawName: "Acme Security", EntityID: "e1", Score: 1.0, MatchRules: []string{"canonical"}},
		})

	assert.True(t, res.Success)
	assert.Equal(t, 3, res.TotalCount)

	require.Len(t, store.calls, 2)
	assert.Equal(t, storage.TableEntities, store.calls[0].table, "aliases reference entities, so entities go first")
	assert.Equal(t, storage.TableAliases, store.calls[1].table)
	assert.Equal(t, "raw_name", store.calls[1].onConflict)
}

func TestPersistEntitiesPartialFailure(t *testing.T) {
	store := &recordingStore{fail: map[string]error{
		storage.TableAliases: fmt.Errorf("constraint violation"),
	}}
	w := storage.NewWriter(store, zerolog.Nop())

	res := w.PersistEntities(context.Background(),
		[]models.ResolvedEntity{{EntityID: "e1", CanonicalName: "Acme"}},
		[]models.AliasLink{{RawName: "Acme", EntityID: "e1"}})

	assert.True(t, res.Entities.Success)
	assert.False(t, res.Aliases.Success)
	assert.False(t, res.Success)
	assert.Equal(t, 1, res.TotalCount)
}
