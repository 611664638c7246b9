package ingest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"github.com/ballisticintel/pipeline/internal/models"
)

// DefaultUserAgent identifies the pipeline to feed servers.
const DefaultUserAgent = "BallisticIntel-Pipeline/1.0"

const (
	feedTimeout       = 10 * time.Second
	feedMaxRetries    = 3
	defaultMaxPerFeed = 200
)

// FeedConfig is one RSS feed to monitor.
type FeedConfig struct {
	URL        string `yaml:"url"`
	SourceName string `yaml:"source_name"`
}

// DefaultFeeds is the built-in security news feed set.
var DefaultFeeds = []FeedConfig{
	{URL: "https://thecyberwire.com/feeds/rss.xml", SourceName: "TheCyberWire"},
	{URL: "https://www.darkreading.com/rss.xml", SourceName: "DarkReading"},
	{URL: "https://www.securityweek.com/feed/", SourceName: "SecurityWeek"},
	{URL: "https://techcrunch.com/category/security/feed/", SourceName: "TechCrunch Security"},
}

// FeedStats describes one fetch across all feeds.
type FeedStats struct {
	FeedsQueried  int      `json:"feeds_queried"`
	FeedsFailed   int      `json:"feeds_failed"`
	ItemsSeen     int      `json:"items_seen"`
	ItemsKept     int      `json:"items_kept"`
	Duplicates    int      `json:"duplicates"`
	FundingFlags  int      `json:"funding_flags"`
	FailedSources []string `json:"failed_sources,omitempty"`
}

// FeedSource pulls articles from RSS feeds. A single dead feed is logged
// and skipped; only all feeds failing is a fetch error.
type FeedSource struct {
	feeds      []FeedConfig
	maxPerFeed int
	funding    *FundingDetector
	fetcher    *ContentFetcher // nil disables HTML content fetching
	log        zerolog.Logger

	// parseFeed is injected in tests.
	parseFeed func(ctx context.Context, url string) (*gofeed.Feed, error)

	sleep func(ctx context.Context, d time.Duration) error
}

// NewFeedSource builds a source over the given feeds (DefaultFeeds when
// empty). fetcher may be nil to skip article content download.
func NewFeedSource(feeds []FeedConfig, maxPerFeed int, fetcher *ContentFetcher, log zerolog.Logger) *FeedSource {
	if len(feeds) == 0 {
		feeds = DefaultFeeds
	}
	if maxPerFeed <= 0 {
		maxPerFeed = defaultMaxPerFeed
	}

	parser := gofeed.NewParser()
	parser.UserAgent = DefaultUserAgent
	parser.Client = &http.Client{Timeout: feedTimeout}

	return &FeedSource{
		feeds:      feeds,
		maxPerFeed: maxPerFeed,
		funding:    NewFundingDetector(2),
		fetcher:    fetcher,
		log:        log,
		parseFeed: func(ctx context.Context, url string) (*gofeed.Feed, error) {
			return parser.ParseURLWithContext(url, ctx)
		},
		sleep: func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return nil
			}
		},
	}
}

// Fetch pulls all feeds, keeping items published at or after since.
// Cross-feed duplicates (same source+link) collapse to the first seen.
func (s *FeedSource) Fetch(ctx context.Context, since time.Time) ([]models.Article, FeedStats, error) {
	stats := FeedStats{FeedsQueried: len(s.feeds)}
	seen := make(map[string]bool)
	var articles []models.Article

	for _, feed := range s.feeds {
		parsed, err := s.fetchFeed(ctx, feed.URL)
		if err != nil {
			stats.FeedsFailed++
			stats.FailedSources = append(stats.FailedSources, feed.SourceName)
			s.log.Warn().Str("feed", feed.SourceName).Err(err).Msg("feed fetch failed, skipping")
			continue
		}

		kept := 0
		for _, item := range parsed.Items {
			stats.ItemsSeen++
			if kept >= s.maxPerFeed {
				break
			}

			article, ok := s.toArticle(ctx, feed.SourceName, item, since)
			if !ok {
				continue
			}
			if seen[article.ID] {
				stats.Duplicates++
				continue
			}
			seen[article.ID] = true

			if article.FundingRelated {
				stats.FundingFlags++
			}
			articles = append(articles, article)
			kept++
		}
	}

	if stats.FeedsFailed == len(s.feeds) {
		return nil, stats, fmt.Errorf("all %d feeds failed", len(s.feeds))
	}

	stats.ItemsKept = len(articles)
	return articles, stats, nil
}

// fetchFeed retries transient failures with exponential backoff (1s, 2s).
func (s *FeedSource) fetchFeed(ctx context.Context, url string) (*gofeed.Feed, error) {
	var lastErr error
	for attempt := 0; attempt < feedMaxRetries; attempt++ {
		if attempt > 0 {
			if err := s.sleep(ctx, time.Duration(1<<(attempt-1))*time.Second); err != nil {
				return nil, err
			}
		}
		feed, err := s.parseFeed(ctx, url)
		if err == nil {
			return feed, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("after %d attempts: %w", feedMaxRetries, lastErr)
}

func (s *FeedSource) toArticle(ctx context.Context, source string, item *gofeed.Item, since time.Time) (models.Article, bool) {
	if item.Link == "" || item.Title == "" {
		return models.Article{}, false
	}

	published := itemTime(item)
	if published.IsZero() || published.Before(since) {
		return models.Article{}, false
	}

	article := models.Article{
		ID:         models.NewArticleID(source, item.Link),
		Source:     source,
		Title:      item.Title,
		Link:       item.Link,
		Summary:    stripHTML(item.Description),
		Published:  published,
		Categories: item.Categories,
	}

	if item.Content != "" {
		article.ContentText = stripHTML(item.Content)
	} else if s.fetcher != nil {
		text, err := s.fetcher.FetchText(ctx, item.Link)
		if err != nil {
			s.log.Debug().Str("link", item.Link).Err(err).Msg("content fetch failed")
		} else {
			article.ContentText = text
		}
	}

	article.FundingRelated, article.FundingReason = s.funding.Detect(
		article.Title + " " + article.Summary + " " + article.ContentText)

	return article, true
}

func itemTime(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC()
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC()
	}
	return time.Time{}
}
