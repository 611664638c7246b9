package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ballisticintel/pipeline/internal/config"
)

const feedsYAML = `
max_per_feed: 50
feeds:
  - url: https://www.darkreading.com/rss.xml
    source_name: DarkReading
  - url: ${NEWS_FEED_URL:-https://www.securityweek.com/feed/}
    source_name: ${NEWS_FEED_NAME:-SecurityWeek}
`

func TestLoadFeedsFromBytes(t *testing.T) {
	t.Setenv("NEWS_FEED_URL", "")
	t.Setenv("NEWS_FEED_NAME", "")

	file, err := config.LoadFeedsFromBytes([]byte(feedsYAML))
	require.NoError(t, err)

	assert.Equal(t, 50, file.MaxPerFeed)
	require.Len(t, file.Feeds, 2)
	assert.Equal(t, "DarkReading", file.Feeds[0].SourceName)
	assert.Equal(t, "https://www.securityweek.com/feed/", file.Feeds[1].URL,
		"unset variables take their inline defaults")
	assert.Equal(t, "SecurityWeek", file.Feeds[1].SourceName)
}

func TestLoadFeedsExpandsEnvironment(t *testing.T) {
	t.Setenv("NEWS_FEED_URL", "https://feeds.example.com/security.xml")
	t.Setenv("NEWS_FEED_NAME", "ExampleFeed")

	file, err := config.LoadFeedsFromBytes([]byte(feedsYAML))
	require.NoError(t, err)
	assert.Equal(t, "https://feeds.example.com/security.xml", file.Feeds[1].URL)
	assert.Equal(t, "ExampleFeed", file.Feeds[1].SourceName)
}

func TestLoadFeedsValidation(t *testing.T) {
	_, err := config.LoadFeedsFromBytes([]byte("feeds:\n  - source_name: NoURL\n"))
	assert.ErrorContains(t, err, "feeds[0]: url is required")

	_, err = config.LoadFeedsFromBytes([]byte("feeds:\n  - url: https://x.example/rss\n"))
	assert.ErrorContains(t, err, "feeds[0]: source_name is required")

	_, err = config.LoadFeedsFromBytes([]byte("feeds: [unclosed"))
	assert.ErrorContains(t, err, "parse feeds file")
}

func TestLoadFeedsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feeds.yaml")
	require.NoError(t, os.WriteFile(path, []byte(feedsYAML), 0o644))

	file, err := config.LoadFeeds(path)
	require.NoError(t, err)
	assert.Len(t, file.Feeds, 2)

	_, err = config.LoadFeeds(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read feeds file")
}

func TestLoadFeedsEmptyPath(t *testing.T) {
	file, err := config.LoadFeeds("")
	require.NoError(t, err)
	assert.Empty(t, file.Feeds)
	assert.Zero(t, file.MaxPerFeed)
}
