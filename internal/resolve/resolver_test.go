package resolve_test

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ballisticintel/pipeline/internal/models"
	"github.com/ballisticintel/pipeline/internal/resolve"
)

func newTestResolver() *resolve.Resolver {
	return resolve.NewResolver(resolve.StrategyLongest, zerolog.Nop())
}

func TestResolveFoldsNameVariants(t *testing.T) {
	r := newTestResolver()

	names := []string{
		"Palo Alto Networks, Inc.",
		"Palo Alto Networks",
		"Zscaler",
	}
	entities, links, stats := r.Resolve(names, map[string][]string{
		"Palo Alto Networks": {"patent"},
		"Zscaler":            {"news"},
	})

	require.Len(t, entities, 2)
	require.Len(t, links, 3)
	assert.Equal(t, 3, stats.TotalNames)
	assert.Equal(t, 2, stats.ClustersFormed)

	var palo *models.ResolvedEntity
	for i := range entities {
		if entities[i].NormalizedName == "palo alto networks" {
			palo = &entities[i]
		}
	}
	require.NotNil(t, palo, "variants should fold into one entity")
	assert.Equal(t, 2, palo.ClusterSize)
	assert.Contains(t, palo.Sources, "patent")

	// Every alias resolves to an existing entity.
	ids := map[string]bool{}
	for _, e := range entities {
		ids[e.EntityID] = true
	}
	for _, l := range links {
		assert.True(t, ids[l.EntityID], "alias %q points at unknown entity", l.RawName)
	}
}

func TestResolveDeterministic(t *testing.T) {
	r := newTestResolver()

	names := []string{"CrowdStrike", "Fortinet", "Palo Alto Networks", "Palo Alto Networks, Inc."}
	reversed := []string{"Palo Alto Networks, Inc.", "Palo Alto Networks", "Fortinet", "CrowdStrike"}

	e1, l1, _ := r.Resolve(names, nil)
	e2, l2, _ := r.Resolve(reversed, nil)

	assert.Equal(t, l1, l2, "links must not depend on input order")
	require.Len(t, e2, len(e1))
	for i := range e1 {
		assert.Equal(t, e1[i].EntityID, e2[i].EntityID)
		assert.Equal(t, e1[i].CanonicalName, e2[i].CanonicalName)
		assert.ElementsMatch(t, e1[i].Aliases, e2[i].Aliases,
			"alias sets agree; only their first-appearance order tracks the input")
	}
}

func TestResolveAliasOrderFollowsInput(t *testing.T) {
	r := newTestResolver()

	entities, _, _ := r.Resolve([]string{"Palo Alto Networks, Inc.", "Palo Alto Networks", "Zscaler"}, nil)
	palo := findEntity(t, entities, "palo alto networks")
	assert.Equal(t, []string{"Palo Alto Networks, Inc.", "Palo Alto Networks"}, palo.Aliases)

	entities, _, _ = r.Resolve([]string{"Palo Alto Networks", "Zscaler", "Palo Alto Networks, Inc."}, nil)
	palo = findEntity(t, entities, "palo alto networks")
	assert.Equal(t, []string{"Palo Alto Networks", "Palo Alto Networks, Inc."}, palo.Aliases)
}

func findEntity(t *testing.T, entities []models.ResolvedEntity, normalized string) *models.ResolvedEntity {
	t.Helper()
	for i := range entities {
		if entities[i].NormalizedName == normalized {
			return &entities[i]
		}
	}
	t.Fatalf("no entity with normalized name %q", normalized)
	return nil
}

func TestResolveStableEntityIDs(t *testing.T) {
	r := newTestResolver()

	e1, _, _ := r.Resolve([]string{"Fortinet", "Zscaler"}, nil)
	e2, _, _ := r.Resolve([]string{"Zscaler", "Fortinet"}, nil)

	require.Len(t, e1, 2)
	require.Len(t, e2, 2)
	assert.Equal(t, e1[0].EntityID, e2[0].EntityID)
	assert.Equal(t, e1[1].EntityID, e2[1].EntityID)
	assert.Equal(t, models.NewEntityID("Fortinet"), e1[0].EntityID)
}

func TestResolveSingletonRules(t *testing.T) {
	r := newTestResolver()

	_, links, _ := r.Resolve([]string{"Zscaler"}, nil)
	require.Len(t, links, 1)
	assert.Equal(t, []string{"singleton"}, links[0].MatchRules)
	assert.Equal(t, 1.0, links[0].Score)
}

func TestResolveOversizedClusterSplits(t *testing.T) {
	r := newTestResolver()

	// 25 suffix variants of one name all normalize to "acme", so every
	// pair matches and the cluster exceeds the size guardrail. It must
	// split back into singletons instead of forming a mega-entity.
	suffixes := []string{
		"Inc", "Incorporated", "Corp", "Corporation", "Ltd", "Limited",
		"LLC", "Co", "Company", "PLC", "SA", "AG", "GmbH", "BV", "NV",
		"Pte", "Pty", "Oy", "KK", "Kft", "SRL", "AB", "AS", "SpA", "KG",
	}
	var names []string
	for _, s := range suffixes {
		names = append(names, fmt.Sprintf("Acme %s", s))
	}

	entities, _, _ := r.Resolve(names, nil)
	require.Len(t, entities, len(suffixes))
	for _, e := range entities {
		assert.Equal(t, 1, e.ClusterSize)
	}
}

func TestResolveEmptyInput(t *testing.T) {
	r := newTestResolver()

	entities, links, stats := r.Resolve(nil, nil)
	assert.Empty(t, entities)
	assert.Empty(t, links)
	assert.Equal(t, 0, stats.TotalNames)
}
