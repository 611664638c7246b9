package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Article is a single news item pulled from an RSS feed.
type Article struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Summary     string    `json:"summary"`
	ContentText string    `json:"content_text"`
	Published   time.Time `json:"published"`
	Categories  []string  `json:"categories"`

	// Funding detection output; see ingest.FundingDetector.
	FundingRelated bool   `json:"funding_related"`
	FundingReason  string `json:"funding_reason,omitempty"`
}

// NewArticleID derives a stable identifier from the source name and link.
// The same article seen in two runs maps to the same ID, which is what the
// storage layer's conflict handling relies on.
func NewArticleID(source, link string) string {
	return ShortHash(source + ":" + link)
}

// ShortHash returns the first 16 hex characters of the SHA-256 of s.
// Used for article IDs, entity IDs, and cache fingerprints.
func ShortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:16]
}
