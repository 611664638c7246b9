package classify

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ballisticintel/pipeline/internal/models"
)

// Model tag recorded on heuristic results so downstream consumers can
// tell LLM output from fallback output.
const (
	HeuristicModel   = "heuristic-v1"
	HeuristicVersion = "1.0"
)

var companyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b([A-Z][a-z]+(?:\s+[A-Z][a-z]+){0,2})\s+(?:announced|raised|secured|launched|unveiled|closed)`),
	regexp.MustCompile(`(?:led by|co-led by|from|by)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+){0,2})`),
	regexp.MustCompile(`\b([A-Z][a-z]+(?:\s+[A-Z][a-z]+){0,2})\s+(?:has|will)`),
}

var assigneeSuffixRe = regexp.MustCompile(`(?i)\s+(Inc\.?|Corp\.?|Ltd\.?|LLC|Co\.?|LP|LLP)$`)

// Heuristics is the deterministic fallback classifier used when the
// oracle is unavailable. High precision over recall: it leans on CPC
// codes for patents and weighted keyword hits for news.
type Heuristics struct {
	minScore float64
}

// NewHeuristics returns a heuristic classifier with the given relevance
// threshold.
func NewHeuristics(minScore float64) *Heuristics {
	return &Heuristics{minScore: minScore}
}

// ===========================================================================
// RELEVANCE
// ===========================================================================

// ClassifyPatent scores a patent: +0.4 per security CPC hit, +0.3 per
// high-confidence keyword, +0.1 per medium keyword, -0.2 once for a
// negative keyword; clamped to [0,1].
func (h *Heuristics) ClassifyPatent(p *models.Patent) models.RelevanceResult {
	score := 0.0
	var reasons []string
	category := "unknown"

	for _, cpc := range p.CPCCodes {
		for _, m := range securityCPCPatterns {
			if strings.HasPrefix(cpc, m.prefix) {
				score += 0.4
				reasons = append(reasons, "Security CPC code: "+cpc)
				category = m.category
				break
			}
		}
	}

	text := strings.ToLower(p.Title + " " + p.Abstract)

	for _, kw := range highConfidenceKeywords {
		if strings.Contains(text, kw) {
			score += 0.3
			reasons = append(reasons, "High-confidence keyword: "+kw)
			if score > 1.0 {
				break
			}
		}
	}
	for _, kw := range mediumConfidenceKeywords {
		if strings.Contains(text, kw) {
			score += 0.1
			reasons = append(reasons, "Security keyword: "+kw)
			if score > 1.0 {
				break
			}
		}
	}

	if category == "unknown" {
		category = detectCategory(text)
	}

	for _, kw := range negativeKeywords {
		if strings.Contains(text, kw) {
			score -= 0.2
			break
		}
	}

	score = models.ClampScore(score)
	result := models.NewRelevanceResult(
		p.PublicationNumber, models.SourceTypePatent,
		score >= h.minScore, score, category, reasons,
		HeuristicModel, HeuristicVersion,
	)
	result.ContentHash = models.ShortHash(text)
	return result
}

// ClassifyNews scores an article from keyword hits alone: capped bonuses
// of min(0.6, high*0.2) and min(0.3, medium*0.1), with a single -0.3
// penalty for a negative keyword.
func (h *Heuristics) ClassifyNews(a *models.Article) models.RelevanceResult {
	score := 0.0
	var reasons []string

	text := strings.ToLower(analysisText(a))

	highCount := 0
	for _, kw := range highConfidenceKeywords {
		if strings.Contains(text, kw) {
			highCount++
			reasons = append(reasons, "Security keyword: "+kw)
		}
	}
	if highCount > 0 {
		score += minFloat(0.6, float64(highCount)*0.2)
	}

	medCount := 0
	for _, kw := range mediumConfidenceKeywords {
		if strings.Contains(text, kw) {
			medCount++
		}
	}
	if medCount > 0 {
		score += minFloat(0.3, float64(medCount)*0.1)
	}

	category := detectCategory(text)

	for _, kw := range negativeKeywords {
		if strings.Contains(text, kw) {
			score -= 0.3
			reasons = append(reasons, "Non-security context: "+kw)
			break
		}
	}

	score = models.ClampScore(score)
	if len(reasons) == 0 {
		reasons = []string{"No strong cybersecurity signals detected"}
	}

	result := models.NewRelevanceResult(
		a.ID, models.SourceTypeNews,
		score >= h.minScore, score, category, reasons,
		HeuristicModel, HeuristicVersion,
	)
	result.ContentHash = models.ShortHash(text)
	return result
}

// detectCategory picks the category whose lexicon has the most hits in
// text. Ties go to the lexicographically first category.
func detectCategory(text string) string {
	best := "unknown"
	bestCount := 0
	for _, lex := range categoryKeywords {
		count := 0
		for _, kw := range lex.keywords {
			if strings.Contains(text, kw) {
				count++
			}
		}
		if count > bestCount {
			bestCount = count
			best = lex.category
		}
	}
	return best
}

// ===========================================================================
// EXTRACTION
// ===========================================================================

// ExtractPatent builds an extraction result from assignees, CPC codes,
// and novelty/keyword lexicons.
func (h *Heuristics) ExtractPatent(p *models.Patent) models.ExtractionResult {
	text := strings.ToLower(p.Title + " " + p.Abstract)

	companies := normalizeAssignees(p.Assignees)
	sector := h.ClassifyPatent(p).Category
	novelty := patentNovelty(p, text)
	keywords := techKeywords(text)

	var rationale []string
	if len(companies) > 0 {
		rationale = append(rationale, "Assigned to "+strings.Join(firstN(companies, 2), ", "))
	}
	if len(p.CPCCodes) > 0 {
		rationale = append(rationale, "CPC codes: "+strings.Join(firstN(p.CPCCodes, 3), ", "))
	}
	rationale = append(rationale, "Sector: "+sector)

	result := models.NewExtractionResult(
		p.PublicationNumber, models.SourceTypePatent,
		companies, sector, novelty, keywords, rationale,
		HeuristicModel, HeuristicVersion,
	)
	result.ContentHash = models.ShortHash(text)
	return result
}

// ExtractNews builds an extraction result from capital-case company
// patterns and novelty/keyword lexicons.
func (h *Heuristics) ExtractNews(a *models.Article) models.ExtractionResult {
	text := strings.ToLower(analysisText(a))

	companies := extractCompanies(a.Title + " " + a.Summary)
	sector := h.ClassifyNews(a).Category
	novelty := newsNovelty(text)
	keywords := techKeywords(text)

	var rationale []string
	if len(companies) > 0 {
		rationale = append(rationale, "Mentions "+strings.Join(firstN(companies, 2), ", "))
	}
	if strings.Contains(text, "funding") || strings.Contains(text, "raised") {
		rationale = append(rationale, "Funding announcement")
	}
	rationale = append(rationale, "Sector: "+sector)

	result := models.NewExtractionResult(
		a.ID, models.SourceTypeNews,
		companies, sector, novelty, keywords, rationale,
		HeuristicModel, HeuristicVersion,
	)
	result.ContentHash = models.ShortHash(text)
	return result
}

// normalizeAssignees strips trailing legal suffixes and deduplicates
// case-insensitively, keeping at most five names.
func normalizeAssignees(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		clean := strings.TrimSpace(assigneeSuffixRe.ReplaceAllString(strings.TrimSpace(name), ""))
		if clean == "" {
			continue
		}
		key := strings.ToLower(clean)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, clean)
		if len(out) == 5 {
			break
		}
	}
	return out
}

// extractCompanies pulls capital-case names next to announcement verbs
// out of article text, filtering the exclude list.
func extractCompanies(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, re := range companyPatterns {
		for _, match := range re.FindAllStringSubmatch(text, -1) {
			clean := strings.TrimSpace(match[1])
			key := strings.ToLower(clean)
			if clean == "" || excludeWords[key] || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, clean)
			if len(out) == 5 {
				return out
			}
		}
	}
	return out
}

// patentNovelty: base 0.5, plus capped novelty-keyword bonuses, plus 0.1
// for cryptographic-mechanism CPC codes.
func patentNovelty(p *models.Patent, text string) float64 {
	score := 0.5
	score += minFloat(0.3, float64(countHits(text, patentNoveltyHigh))*0.15)
	score += minFloat(0.15, float64(countHits(text, patentNoveltyMed))*0.05)
	if p.HasCPCPrefix("H04L9") {
		score += 0.1
	}
	return models.ClampScore(score)
}

// newsNovelty: base 0.3, capped novelty-keyword bonuses, and a 0.1
// penalty for pure funding announcements.
func newsNovelty(text string) float64 {
	score := 0.3
	score += minFloat(0.4, float64(countHits(text, newsNoveltyHigh))*0.2)
	score += minFloat(0.2, float64(countHits(text, newsNoveltyMed))*0.1)
	if strings.Contains(text, "raised") && strings.Contains(text, "million") && strings.Contains(text, "series") {
		score -= 0.1
	}
	return models.ClampScore(score)
}

// techKeywords returns up to ten lexicon keywords present in text.
func techKeywords(text string) []string {
	var out []string
	for _, kw := range highConfidenceKeywords {
		if strings.Contains(text, kw) {
			out = append(out, kw)
			if len(out) == 10 {
				return out
			}
		}
	}
	for _, kw := range mediumConfidenceKeywords {
		if strings.Contains(text, kw) {
			out = append(out, kw)
			if len(out) == 10 {
				return out
			}
		}
	}
	return out
}

// analysisText is the article text used for keyword scoring: title plus
// summary, falling back to leading content when the summary is thin.
func analysisText(a *models.Article) string {
	body := a.Summary
	if len(a.Summary) < 100 && a.ContentText != "" {
		body = truncateRunes(a.ContentText, 500)
	}
	return fmt.Sprintf("%s %s", a.Title, body)
}

func countHits(text string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			n++
		}
	}
	return n
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func firstN(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
