package models

import (
	"strings"
	"time"
)

// ResolvedEntity is a canonical company produced by entity resolution.
// EntityID is derived from the canonical name, so re-resolving the same
// names in a later run yields the same IDs.
type ResolvedEntity struct {
	EntityID       string    `json:"entity_id"`
	CanonicalName  string    `json:"canonical_name"`
	NormalizedName string    `json:"normalized_name"`
	Aliases        []string  `json:"aliases"`
	Sources        []string  `json:"sources"`
	Confidence     float64   `json:"confidence"`
	ClusterSize    int       `json:"cluster_size"`
	CreatedAt      time.Time `json:"created_at"`
}

// AliasLink maps one raw company mention to its resolved entity, with the
// similarity score and the rule names that justified the assignment.
type AliasLink struct {
	RawName        string   `json:"raw_name"`
	NormalizedName string   `json:"normalized_name"`
	EntityID       string   `json:"entity_id"`
	Score          float64  `json:"score"`
	MatchRules     []string `json:"match_rules"`
}

// NewEntityID derives the stable identifier for a canonical name.
func NewEntityID(canonical string) string {
	return ShortHash(strings.ToLower(canonical))
}
