package models

import "strings"

// ValidCategories is the closed taxonomy every classification result must land in.
var ValidCategories = map[string]bool{
	"cloud":         true,
	"network":       true,
	"endpoint":      true,
	"identity":      true,
	"vulnerability": true,
	"malware":       true,
	"data":          true,
	"governance":    true,
	"cryptography":  true,
	"application":   true,
	"iot":           true,
	"unknown":       true,
}

// categoryMapping projects a free-form label onto the taxonomy by substring.
// Order matters: the first matching entry wins, so keep broad fragments
// ("sec") after anything more specific that must not be shadowed by them.
type categoryMapping struct {
	fragment string
	category string
}

var categoryMappings = []categoryMapping{
	{"vuln", "vulnerability"},
	{"cve", "vulnerability"},
	{"crypto", "cryptography"},
	{"encryption", "cryptography"},
	{"iam", "identity"},
	{"access", "identity"},
	{"auth", "identity"},
	{"cloud security", "cloud"},
	{"endpoint protection", "endpoint"},
	{"sec", "network"},
	{"threat", "malware"},
	{"ransomware", "malware"},
	{"compliance", "governance"},
	{"policy", "governance"},
}

// NormalizeCategory maps an arbitrary label to a valid category.
// Exact (case-insensitive) members of the taxonomy pass through; anything
// else is matched by substring against categoryMappings, and labels that
// match nothing collapse to "unknown". The projection is total: the result
// is always a member of ValidCategories.
func NormalizeCategory(raw string) string {
	c := strings.ToLower(strings.TrimSpace(raw))
	if c == "" {
		return "unknown"
	}
	if ValidCategories[c] {
		return c
	}
	for _, m := range categoryMappings {
		if strings.Contains(c, m.fragment) {
			return m.category
		}
	}
	return "unknown"
}
