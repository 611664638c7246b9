package resolve

import (
	"github.com/agnivade/levenshtein"
	"github.com/xrash/smetrics"
)

// Similarity thresholds and composite weights. Weights sum to 1.0.
const (
	HardMatchThreshold = 0.88
	SoftMatchThreshold = 0.70

	weightTokenJaccard = 0.35
	weightEditDistance = 0.25
	weightJaroWinkler  = 0.15
	weightAcronym      = 0.25
)

// Match rule names recorded on alias links.
const (
	RuleHardMatch           = "hard_match"
	RuleSoftMatchAcronym    = "soft_match_with_acronym"
	RuleSoftMatchTokens     = "soft_match_with_high_token_overlap"
	RuleSoftMatchEdit       = "soft_match_with_high_edit_similarity"
	RuleSoftNoCorroboration = "soft_match_no_corroboration"
	RuleNoMatch             = "no_match"
)

// Components holds the individual similarity signals behind a composite
// score, used for corroboration checks and diagnostics.
type Components struct {
	Jaccard   float64
	Edit      float64
	Jaro      float64
	Acronym   float64
	Composite float64
}

// Similarity scores pairs of company names.
type Similarity struct {
	normalizer *Normalizer
}

// NewSimilarity returns a Similarity calculator.
func NewSimilarity(n *Normalizer) *Similarity {
	return &Similarity{normalizer: n}
}

// TokenJaccard computes Jaccard overlap between two token sets.
// Two empty sets are identical (1.0); one empty set matches nothing (0.0).
func TokenJaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	inter := 0
	for tok := range a {
		if b[tok] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// EditRatio computes normalized edit similarity: 1 - distance/maxLen.
func EditRatio(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(maxLen)
}

// JaroWinkler computes Jaro-Winkler similarity with standard parameters.
func JaroWinkler(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}
	return smetrics.JaroWinkler(a, b, 0.7, 4)
}

// AcronymScore returns 1.0 when one name is an acronym of the other,
// either by ordered initials or through the seed expansion dictionary.
func (s *Similarity) AcronymScore(name1, name2 string) float64 {
	if s.normalizer.MatchesAcronym(name1, name2) || s.normalizer.MatchesAcronym(name2, name1) {
		return 1.0
	}

	norm1 := s.normalizer.Normalize(name1)
	norm2 := s.normalizer.Normalize(name2)
	expanded1 := s.normalizer.ExpandAcronym(name1)
	expanded2 := s.normalizer.ExpandAcronym(name2)

	if expanded1 != norm1 || expanded2 != norm2 {
		if expanded1 == expanded2 {
			return 1.0
		}
		if s.normalizer.Normalize(expanded1) == norm2 {
			return 1.0
		}
		if s.normalizer.Normalize(expanded2) == norm1 {
			return 1.0
		}
	}
	return 0.0
}

// Composite computes the weighted similarity score between two names.
func (s *Similarity) Composite(name1, name2 string) (float64, Components) {
	norm1 := s.normalizer.Normalize(name1)
	norm2 := s.normalizer.Normalize(name2)

	c := Components{
		Jaccard: TokenJaccard(s.normalizer.Tokens(name1), s.normalizer.Tokens(name2)),
		Edit:    EditRatio(norm1, norm2),
		Jaro:    JaroWinkler(norm1, norm2),
		Acronym: s.AcronymScore(name1, name2),
	}
	c.Composite = weightTokenJaccard*c.Jaccard +
		weightEditDistance*c.Edit +
		weightJaroWinkler*c.Jaro +
		weightAcronym*c.Acronym

	return c.Composite, c
}

// IsMatch applies the two-threshold decision rule: a composite at or above
// HardMatchThreshold matches outright; one at or above SoftMatchThreshold
// matches only with a corroborating signal (exact acronym, jaccard >= 0.8,
// or edit >= 0.9).
func (s *Similarity) IsMatch(name1, name2 string) (bool, float64, []string) {
	score, c := s.Composite(name1, name2)

	if score >= HardMatchThreshold {
		return true, score, []string{RuleHardMatch}
	}

	if score >= SoftMatchThreshold {
		switch {
		case c.Acronym == 1.0:
			return true, score, []string{RuleSoftMatchAcronym}
		case c.Jaccard >= 0.8:
			return true, score, []string{RuleSoftMatchTokens}
		case c.Edit >= 0.9:
			return true, score, []string{RuleSoftMatchEdit}
		}
		return false, score, []string{RuleSoftNoCorroboration}
	}

	return false, score, []string{RuleNoMatch}
}
