package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	// maxContentBytes caps the HTML downloaded per article (500KB).
	maxContentBytes = 500 * 1024

	contentFetchTimeout = 10 * time.Second
)

// ContentFetcher downloads article pages and reduces them to plain text.
// Fetched URLs are cached for the process lifetime so re-classification
// of the same article never refetches.
type ContentFetcher struct {
	http      *http.Client
	userAgent string

	mu    sync.Mutex
	cache map[string]string
}

// NewContentFetcher builds a fetcher with the pipeline user agent.
func NewContentFetcher(userAgent string) *ContentFetcher {
	return &ContentFetcher{
		http:      &http.Client{Timeout: contentFetchTimeout},
		userAgent: userAgent,
		cache:     make(map[string]string),
	}
}

// FetchText downloads a page and returns its tag-stripped text, capped at
// maxContentBytes of source HTML.
func (f *ContentFetcher) FetchText(ctx context.Context, url string) (string, error) {
	f.mu.Lock()
	if text, ok := f.cache[url]; ok {
		f.mu.Unlock()
		return text, nil
	}
	f.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxContentBytes))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", url, err)
	}

	text := stripHTML(string(body))

	f.mu.Lock()
	f.cache[url] = text
	f.mu.Unlock()

	return text, nil
}

// stripHTML drops tags and collapses whitespace. Deliberately naive: the
// classifiers only need keyword-bearing text, not layout fidelity.
func stripHTML(html string) string {
	text := htmlTagRe.ReplaceAllString(html, " ")
	return strings.Join(strings.Fields(text), " ")
}
