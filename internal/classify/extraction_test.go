package classify_test

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ballisticintel/pipeline/internal/classify"
)

func TestExtractionClassifierUsesOracle(t *testing.T) {
	client := newFakeOracle(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(modelAnswer(t, `{"company_names": ["Acme Security"], "sector": "cloud", "novelty_score": 0.7, "tech_keywords": ["SASE"], "rationale": ["cloud perimeter replacement", "assignee is a security vendor"]}`))
	})
	c := classify.NewExtractionClassifier(client, nil, zerolog.Nop())
	defer c.Close()

	p := securityPatent()
	res, err := c.ExtractPatent(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, []string{"Acme Security"}, res.CompanyNames)
	assert.Equal(t, "cloud", res.Sector)
	assert.Equal(t, 0.7, res.NoveltyScore)
	assert.Equal(t, []string{"sase"}, res.TechKeywords, "keywords are lowercased")
	assert.Equal(t, []string{"cloud perimeter replacement", "assignee is a security vendor"}, res.Rationale)
	assert.Equal(t, client.Model(), res.Model)
	assert.Equal(t, classify.Fingerprint(classify.PatentExtractionContext(p)), res.ContentHash)
}

func TestExtractionClassifierServesRepeatsFromCache(t *testing.T) {
	var calls atomic.Int32
	client := newFakeOracle(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write(modelAnswer(t, `{"company_names": [], "sector": "unknown", "novelty_score": 0.5, "tech_keywords": [], "rationale": []}`))
	})
	c := classify.NewExtractionClassifier(client, nil, zerolog.Nop())
	defer c.Close()

	p := securityPatent()
	_, err := c.ExtractPatent(context.Background(), p)
	require.NoError(t, err)
	_, err = c.ExtractPatent(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
}

func TestExtractionClassifierFallsBackOnOracleFailure(t *testing.T) {
	client := newFakeOracle(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	c := classify.NewExtractionClassifier(client, nil, zerolog.Nop())
	defer c.Close()

	p := securityPatent()
	res, err := c.ExtractPatent(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, classify.HeuristicModel, res.Model)
	assert.Contains(t, res.CompanyNames, "Acme Security", "assignees survive the heuristic path")
}
