package models

import (
	"strings"
	"time"
)

const (
	maxCompanyNames = 5
	maxTechKeywords = 10
	maxRationale    = 4
)

// ExtractionResult is the output of the second classification tier: the
// companies an item names, its sector, novelty estimate, and keywords.
type ExtractionResult struct {
	ItemID       string    `json:"item_id"`
	SourceType   string    `json:"source_type"`
	CompanyNames []string  `json:"company_names"`
	Sector       string    `json:"sector"`
	NoveltyScore float64   `json:"novelty_score"`
	TechKeywords []string  `json:"tech_keywords"`
	Rationale    []string  `json:"rationale"`
	Model        string    `json:"model"`
	ModelVersion string    `json:"model_version"`
	ContentHash  string    `json:"content_hash,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewExtractionResult builds a result with its invariants applied:
// company names are deduplicated case-insensitively and capped at five,
// keywords are lowercased and capped at ten, the novelty score is clamped
// to [0,1], the sector is projected onto the category taxonomy, and
// rationale entries are capped at four.
func NewExtractionResult(itemID, sourceType string, companies []string, sector string, novelty float64, keywords []string, rationale []string, model, modelVersion string) ExtractionResult {
	if len(rationale) > maxRationale {
		rationale = rationale[:maxRationale]
	}
	return ExtractionResult{
		ItemID:       itemID,
		SourceType:   sourceType,
		CompanyNames: dedupeCompanies(companies),
		Sector:       NormalizeCategory(sector),
		NoveltyScore: ClampScore(novelty),
		TechKeywords: normalizeKeywords(keywords),
		Rationale:    rationale,
		Model:        model,
		ModelVersion: modelVersion,
		Timestamp:    time.Now().UTC(),
	}
}

// dedupeCompanies keeps the first occurrence of each name, comparing
// case-insensitively, and caps the list at maxCompanyNames.
func dedupeCompanies(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, name)
		if len(out) == maxCompanyNames {
			break
		}
	}
	return out
}

func normalizeKeywords(keywords []string) []string {
	seen := make(map[string]bool, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
		if len(out) == maxTechKeywords {
			break
		}
	}
	return out
}
