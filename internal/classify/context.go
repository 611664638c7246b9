package classify

import (
	"fmt"
	"strings"

	"github.com/ballisticintel/pipeline/internal/models"
)

// Context length caps. Relevance needs less signal than extraction, which
// also carries assignee lines.
const (
	relevanceContextLimit  = 800
	extractionContextLimit = 1200
)

// PatentRelevanceContext renders the prompt context for tier-one patent
// classification: type, title, abstract, truncated with a "..." marker.
func PatentRelevanceContext(p *models.Patent) string {
	return capContext(fmt.Sprintf("Type: patent\nTitle: %s\nAbstract: %s", p.Title, p.Abstract), relevanceContextLimit)
}

// NewsRelevanceContext renders the prompt context for tier-one news
// classification. When the summary is thin (<100 chars) the leading 500
// characters of fetched content stand in for it.
func NewsRelevanceContext(a *models.Article) string {
	body := a.Summary
	if len(a.Summary) < 100 && a.ContentText != "" {
		body = truncateRunes(a.ContentText, 500)
	}
	return capContext(fmt.Sprintf("Type: news\nTitle: %s\nSummary: %s", a.Title, body), relevanceContextLimit)
}

// PatentExtractionContext renders the tier-two patent context, adding up
// to two assignees.
func PatentExtractionContext(p *models.Patent) string {
	assignees := "N/A"
	if len(p.Assignees) > 0 {
		assignees = strings.Join(firstN(p.Assignees, 2), ", ")
	}
	ctx := fmt.Sprintf("Type: patent\nTitle: %s\nAbstract: %s\nAssignee: %s", p.Title, p.Abstract, assignees)
	return capContext(ctx, extractionContextLimit)
}

// NewsExtractionContext renders the tier-two news context with a longer
// content fallback (700 chars) than the relevance tier.
func NewsExtractionContext(a *models.Article) string {
	body := a.Summary
	if len(a.Summary) < 100 && a.ContentText != "" {
		body = truncateRunes(a.ContentText, 700)
	}
	return capContext(fmt.Sprintf("Type: news\nTitle: %s\nSummary: %s", a.Title, body), extractionContextLimit)
}

func capContext(ctx string, limit int) string {
	runes := []rune(ctx)
	if len(runes) <= limit {
		return ctx
	}
	return string(runes[:limit]) + "..."
}
