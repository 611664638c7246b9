// Package models holds the data records that flow between pipeline stages:
// patents, news articles, classification results, and resolved entities.
//
// DESIGN: Records are plain structs with validation helpers. Constructors
// enforce the field invariants (score clamping, list caps, category
// projection) so downstream stages never see out-of-range values.
package models

import (
	"strings"
	"time"
)

// Minimum field lengths for a patent to be worth classifying.
const (
	minPatentTitleLen    = 10
	minPatentAbstractLen = 50
)

// Patent is a single patent publication pulled from the warehouse.
type Patent struct {
	PublicationNumber string    `json:"publication_number"`
	Title             string    `json:"title"`
	Abstract          string    `json:"abstract"`
	Assignees         []string  `json:"assignees"`
	CPCCodes          []string  `json:"cpc_codes"`
	CountryCode       string    `json:"country_code"`
	PublicationDate   time.Time `json:"publication_date"`
}

// Valid reports whether the patent carries enough substance to classify:
// a publication number, a title of at least 10 characters, an abstract of
// at least 50 characters, and at least one CPC code.
func (p *Patent) Valid() bool {
	if strings.TrimSpace(p.PublicationNumber) == "" {
		return false
	}
	if len(strings.TrimSpace(p.Title)) < minPatentTitleLen {
		return false
	}
	if len(strings.TrimSpace(p.Abstract)) < minPatentAbstractLen {
		return false
	}
	return len(p.CPCCodes) > 0
}

// HasCPCPrefix reports whether any CPC code starts with the given prefix.
func (p *Patent) HasCPCPrefix(prefix string) bool {
	for _, code := range p.CPCCodes {
		if strings.HasPrefix(code, prefix) {
			return true
		}
	}
	return false
}
