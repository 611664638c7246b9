// Package resolve deduplicates company names into canonical entities.
//
// DESIGN: Resolution runs in four steps: normalize names, generate
// candidate pairs via blocking keys, score pairs with a weighted similarity
// composite, and cluster matches with union-find. Canonical selection and
// entity IDs are deterministic, so the same input always resolves to the
// same entities.
package resolve

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Legal suffixes stripped from the end of a normalized name. Entries are
// matched against the final token, and two-token entries ("co kg") against
// the final two tokens.
var legalSuffixes = map[string]bool{
	"inc": true, "incorporated": true, "corp": true, "corporation": true,
	"ltd": true, "limited": true, "llc": true, "co": true, "company": true,
	"plc": true, "sa": true, "ag": true, "gmbh": true, "bv": true, "nv": true,
	"pte": true, "pty": true, "oy": true, "kk": true, "kft": true,
	"srl": true, "ab": true, "as": true, "spa": true, "kg": true,
	"co kg": true,
}

// Corporate stopwords dropped from the end of a name when enough other
// tokens remain to still identify the company.
var corporateStopwords = map[string]bool{
	"technologies": true, "technology": true, "systems": true,
	"solutions": true, "holdings": true, "group": true,
	"international": true, "global": true, "services": true,
	"software": true, "labs": true, "laboratory": true,
}

// Seed dictionary of known ticker/acronym expansions.
var acronymExpansions = map[string]string{
	"pan":  "palo alto networks",
	"vmw":  "vmware",
	"csco": "cisco",
	"crwd": "crowdstrike",
	"ftnt": "fortinet",
	"panw": "palo alto networks",
	"zs":   "zscaler",
	"okta": "okta",
}

var nonWordRe = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)

// Normalizer folds raw company names into a comparable form.
// Normalize is idempotent: Normalize(Normalize(x)) == Normalize(x).
type Normalizer struct{}

// NewNormalizer returns a Normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize returns the canonical comparable form of a company name:
// NFC, lowercase, "&" -> "and", "/" -> space, punctuation stripped,
// whitespace collapsed, trailing legal suffix removed (including two-token
// suffixes), trailing corporate stopword removed when more than two tokens
// remain, and duplicate tokens dropped keeping the first occurrence.
func (n *Normalizer) Normalize(name string) string {
	if name == "" {
		return ""
	}

	s := norm.NFC.String(name)
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "&", " and ")
	s = strings.ReplaceAll(s, "/", " ")
	s = nonWordRe.ReplaceAllString(s, "")

	tokens := strings.Fields(s)
	tokens = stripLegalSuffix(tokens)
	if len(tokens) > 2 && corporateStopwords[tokens[len(tokens)-1]] {
		tokens = tokens[:len(tokens)-1]
	}

	seen := make(map[string]bool, len(tokens))
	unique := tokens[:0]
	for _, tok := range tokens {
		if !seen[tok] {
			seen[tok] = true
			unique = append(unique, tok)
		}
	}

	return strings.Join(unique, " ")
}

func stripLegalSuffix(tokens []string) []string {
	// Two-token suffixes ("co kg") must be checked before single ones,
	// or the single strip eats their last token first.
	if len(tokens) >= 2 {
		lastTwo := tokens[len(tokens)-2] + " " + tokens[len(tokens)-1]
		if legalSuffixes[lastTwo] {
			tokens = tokens[:len(tokens)-2]
		}
	}
	if len(tokens) > 0 && legalSuffixes[tokens[len(tokens)-1]] {
		tokens = tokens[:len(tokens)-1]
	}
	return tokens
}

// Tokens returns the normalized token set of a name.
func (n *Normalizer) Tokens(name string) map[string]bool {
	normalized := n.Normalize(name)
	if normalized == "" {
		return nil
	}
	set := make(map[string]bool)
	for _, tok := range strings.Fields(normalized) {
		set[tok] = true
	}
	return set
}

// IsAcronym reports whether a raw name looks like an acronym: a single
// token of at most five characters, all uppercase in the original.
func (n *Normalizer) IsAcronym(name string) bool {
	fields := strings.Fields(strings.TrimSpace(name))
	if len(fields) != 1 {
		return false
	}
	first := fields[0]
	if len(first) > 5 {
		return false
	}
	hasLetter := false
	for _, r := range first {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

// ExpandAcronym returns the known expansion of an acronym, or the
// normalized input when no expansion exists.
func (n *Normalizer) ExpandAcronym(name string) string {
	normalized := n.Normalize(name)
	if expanded, ok := acronymExpansions[normalized]; ok {
		return expanded
	}
	return normalized
}

// MatchesAcronym reports whether acronym equals the ordered initials of
// fullName's normalized tokens.
func (n *Normalizer) MatchesAcronym(fullName, acronym string) bool {
	full := n.Normalize(fullName)
	ac := n.Normalize(acronym)
	if full == "" || ac == "" {
		return false
	}
	var initials strings.Builder
	for _, tok := range strings.Fields(full) {
		for _, r := range tok {
			initials.WriteRune(r)
			break
		}
	}
	return initials.String() == ac
}
