package resolve_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ballisticintel/pipeline/internal/resolve"
)

// Pairwise quality floors over a hand-labeled corpus: every pair of
// input names is labeled same-company or not, and the resolver's entity
// assignments are scored against those labels. Bare tickers and trailing
// descriptors are known misses the recall floor absorbs.
func TestResolverPairwiseQuality(t *testing.T) {
	goldClusters := [][]string{
		{"Palo Alto Networks", "Palo Alto Networks, Inc.", "PANW"},
		{"Fortinet", "Fortinet, Inc."},
		{"Acme Security", "Acme Security Solutions", "Acme Security, Inc."},
		{"Zscaler", "Zscaler Inc"},
		{"Cloudflare"},
	}

	label := make(map[string]int)
	var names []string
	for id, cluster := range goldClusters {
		for _, name := range cluster {
			label[name] = id
			names = append(names, name)
		}
	}

	r := resolve.NewResolver(resolve.StrategyLongest, zerolog.Nop())
	_, links, _ := r.Resolve(names, nil)

	entityOf := make(map[string]string, len(links))
	for _, l := range links {
		entityOf[l.RawName] = l.EntityID
	}
	for _, name := range names {
		require.Contains(t, entityOf, name, "every input name gets an entity")
	}

	var tp, fp, fn int
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			same := label[names[i]] == label[names[j]]
			predicted := entityOf[names[i]] == entityOf[names[j]]
			switch {
			case predicted && same:
				tp++
			case predicted && !same:
				fp++
			case !predicted && same:
				fn++
			}
		}
	}

	require.Positive(t, tp+fp, "the corpus must produce predicted pairs")
	precision := float64(tp) / float64(tp+fp)
	recall := float64(tp) / float64(tp+fn)
	assert.GreaterOrEqual(t, precision, 0.90,
		"pairwise precision floor (tp=%d fp=%d)", tp, fp)
	assert.GreaterOrEqual(t, recall, 0.70,
		"pairwise recall floor (tp=%d fn=%d)", tp, fn)
}
