package models

import "time"

// Source types accepted by classification results.
const (
	SourceTypePatent = "patent"
	SourceTypeNews   = "news"
)

const maxRelevanceReasons = 4

// RelevanceResult is the output of the first classification tier: is this
// item cybersecurity-relevant, how strongly, and in which category.
type RelevanceResult struct {
	ItemID       string    `json:"item_id"`
	SourceType   string    `json:"source_type"`
	IsRelevant   bool      `json:"is_relevant"`
	Score        float64   `json:"score"`
	Category     string    `json:"category"`
	Reasons      []string  `json:"reasons"`
	Model        string    `json:"model"`
	ModelVersion string    `json:"model_version"`
	ContentHash  string    `json:"content_hash,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewRelevanceResult builds a result with its invariants applied: the score
// is clamped to [0,1], the category is projected onto the taxonomy, and
// reasons are capped at four.
func NewRelevanceResult(itemID, sourceType string, isRelevant bool, score float64, category string, reasons []string, model, modelVersion string) RelevanceResult {
	if len(reasons) > maxRelevanceReasons {
		reasons = reasons[:maxRelevanceReasons]
	}
	return RelevanceResult{
		ItemID:       itemID,
		SourceType:   sourceType,
		IsRelevant:   isRelevant,
		Score:        ClampScore(score),
		Category:     NormalizeCategory(category),
		Reasons:      reasons,
		Model:        model,
		ModelVersion: modelVersion,
		Timestamp:    time.Now().UTC(),
	}
}

// ClampScore bounds a score to [0, 1].
func ClampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
