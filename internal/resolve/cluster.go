package resolve

import "sort"

// maxClusterSize is the guardrail against blocking/matching pathologies:
// any cluster larger than this is split back into singletons rather than
// merged into one low-confidence mega-entity.
const maxClusterSize = 20

// Canonical selection strategies. MostFrequent and HighestScore are
// accepted for configuration compatibility but resolve identically to
// Longest; alias frequency and pairwise re-scoring data are not tracked.
const (
	StrategyLongest      = "longest"
	StrategyMostFrequent = "most_frequent"
	StrategyHighestScore = "highest_score"
)

// Match is a scored pairwise match between two raw names.
type Match struct {
	Name1 string
	Name2 string
	Score float64
	Rules []string
}

// Clusterer groups matched names and picks canonical forms.
type Clusterer struct {
	normalizer *Normalizer
	strategy   string
}

// NewClusterer returns a Clusterer using the given canonical strategy.
func NewClusterer(n *Normalizer, strategy string) *Clusterer {
	switch strategy {
	case StrategyLongest, StrategyMostFrequent, StrategyHighestScore:
	default:
		strategy = StrategyLongest
	}
	return &Clusterer{normalizer: n, strategy: strategy}
}

// Cluster builds clusters from pairwise matches and returns canonical
// name -> members, with members in the order they appear in order (the
// deduplicated input sequence). Oversized clusters are re-emitted as
// singletons.
func (c *Clusterer) Cluster(matches []Match, order []string) map[string][]string {
	uf := newUnionFind()
	for _, m := range matches {
		uf.union(m.Name1, m.Name2)
	}

	out := make(map[string][]string)
	for _, members := range uf.clusters(order) {
		if len(members) > maxClusterSize {
			for _, member := range members {
				out[member] = []string{member}
			}
			continue
		}
		out[c.SelectCanonical(members)] = members
	}
	return out
}

// SelectCanonical picks the cluster representative: the name with the
// longest normalized form, breaking length ties by the lexicographically
// smallest original name.
func (c *Clusterer) SelectCanonical(names []string) string {
	if len(names) == 0 {
		return ""
	}
	if len(names) == 1 {
		return names[0]
	}

	sorted := append([]string(nil), names...)
	sort.Slice(sorted, func(i, j int) bool {
		li := len(c.normalizer.Normalize(sorted[i]))
		lj := len(c.normalizer.Normalize(sorted[j]))
		if li != lj {
			return li > lj
		}
		return sorted[i] < sorted[j]
	})
	return sorted[0]
}
