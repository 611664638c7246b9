package resolve

import (
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/ballisticintel/pipeline/internal/models"
)

// Assignment rule names recorded on alias links.
const (
	ruleClustered = "clustered"
	ruleSingleton = "singleton"
)

// Stats summarizes one resolution pass.
type Stats struct {
	TotalNames     int           `json:"total_names"`
	UniqueNames    int           `json:"unique_names"`
	CandidatePairs int           `json:"candidate_pairs"`
	MatchesFound   int           `json:"matches_found"`
	ClustersFormed int           `json:"clusters_formed"`
	AvgClusterSize float64       `json:"avg_cluster_size"`
	Elapsed        time.Duration `json:"elapsed"`
}

// Resolver deduplicates raw company names into canonical entities.
type Resolver struct {
	normalizer *Normalizer
	similarity *Similarity
	blocking   *Blocking
	clusterer  *Clusterer
	log        zerolog.Logger
}

// NewResolver wires the resolution steps together.
func NewResolver(strategy string, log zerolog.Logger) *Resolver {
	n := NewNormalizer()
	return &Resolver{
		normalizer: n,
		similarity: NewSimilarity(n),
		blocking:   NewBlocking(n),
		clusterer:  NewClusterer(n, strategy),
		log:        log,
	}
}

// Resolve maps raw names to canonical entities. sources optionally maps a
// raw name to the places it was seen; pass nil when unknown. Entities and
// links come back in a deterministic order for identical input sets; the
// aliases within an entity keep their first-appearance order.
func (r *Resolver) Resolve(names []string, sources map[string][]string) ([]models.ResolvedEntity, []models.AliasLink, Stats) {
	start := time.Now()

	unique := uniqueInOrder(names)
	stats := Stats{
		TotalNames:  len(names),
		UniqueNames: len(unique),
	}

	candidates := r.blocking.Candidates(unique)
	stats.CandidatePairs = len(candidates)

	var matches []Match
	for _, pair := range candidates {
		ok, score, rules := r.similarity.IsMatch(pair.A, pair.B)
		if ok {
			matches = append(matches, Match{Name1: pair.A, Name2: pair.B, Score: score, Rules: rules})
		}
	}
	stats.MatchesFound = len(matches)

	clusters := r.clusterer.Cluster(matches, unique)

	canonicalOf := make(map[string]string, len(unique))
	rulesOf := make(map[string]string, len(unique))
	for canonical, members := range clusters {
		for _, member := range members {
			canonicalOf[member] = canonical
			rulesOf[member] = ruleClustered
		}
	}
	for _, name := range unique {
		if _, ok := canonicalOf[name]; !ok {
			canonicalOf[name] = name
			rulesOf[name] = ruleSingleton
			clusters[name] = []string{name}
		}
	}

	stats.ClustersFormed = len(clusters)
	if len(clusters) > 0 {
		total := 0
		for _, members := range clusters {
			total += len(members)
		}
		stats.AvgClusterSize = float64(total) / float64(len(clusters))
	}

	entities := r.buildEntities(clusters, sources)
	links := r.buildLinks(canonicalOf, rulesOf)

	stats.Elapsed = time.Since(start)
	r.log.Debug().
		Int("names", stats.TotalNames).
		Int("pairs", stats.CandidatePairs).
		Int("matches", stats.MatchesFound).
		Int("clusters", stats.ClustersFormed).
		Dur("elapsed", stats.Elapsed).
		Msg("entity resolution complete")

	return entities, links, stats
}

func (r *Resolver) buildEntities(clusters map[string][]string, sources map[string][]string) []models.ResolvedEntity {
	canonicals := make([]string, 0, len(clusters))
	for canonical := range clusters {
		canonicals = append(canonicals, canonical)
	}
	sort.Strings(canonicals)

	now := time.Now().UTC()
	entities := make([]models.ResolvedEntity, 0, len(canonicals))
	for _, canonical := range canonicals {
		members := clusters[canonical]

		var entitySources []string
		seen := make(map[string]bool)
		for _, member := range members {
			for _, src := range sources[member] {
				if !seen[src] {
					seen[src] = true
					entitySources = append(entitySources, src)
				}
			}
		}

		entities = append(entities, models.ResolvedEntity{
			EntityID:       models.NewEntityID(canonical),
			CanonicalName:  canonical,
			NormalizedName: r.normalizer.Normalize(canonical),
			Aliases:        members,
			Sources:        entitySources,
			Confidence:     r.clusterConfidence(canonical, members),
			ClusterSize:    len(members),
			CreatedAt:      now,
		})
	}
	return entities
}

// clusterConfidence is the mean alias score of the cluster: 1.0 for the
// canonical itself, composite similarity to the canonical for the rest.
func (r *Resolver) clusterConfidence(canonical string, members []string) float64 {
	if len(members) == 0 {
		return 1.0
	}
	total := 0.0
	for _, member := range members {
		if member == canonical {
			total += 1.0
			continue
		}
		score, _ := r.similarity.Composite(member, canonical)
		total += models.ClampScore(score)
	}
	return models.ClampScore(total / float64(len(members)))
}

func (r *Resolver) buildLinks(canonicalOf map[string]string, rulesOf map[string]string) []models.AliasLink {
	raws := make([]string, 0, len(canonicalOf))
	for raw := range canonicalOf {
		raws = append(raws, raw)
	}
	sort.Strings(raws)

	links := make([]models.AliasLink, 0, len(raws))
	for _, raw := range raws {
		canonical := canonicalOf[raw]
		score := 1.0
		if raw != canonical {
			score, _ = r.similarity.Composite(raw, canonical)
			score = models.ClampScore(score)
		}
		links = append(links, models.AliasLink{
			RawName:        raw,
			NormalizedName: r.normalizer.Normalize(raw),
			EntityID:       models.NewEntityID(canonical),
			Score:          score,
			MatchRules:     []string{rulesOf[raw]},
		})
	}
	return links
}

// uniqueInOrder drops empty strings and duplicates while keeping the
// first appearance of each name, so alias order survives resolution.
func uniqueInOrder(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// Normalizer exposes the underlying normalizer for callers that need
// direct access (context building, tests).
func (r *Resolver) Normalizer() *Normalizer {
	return r.normalizer
}
