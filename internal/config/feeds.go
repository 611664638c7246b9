package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// FeedEntry is one RSS feed in the feeds file.
type FeedEntry struct {
	URL        string `yaml:"url"`
	SourceName string `yaml:"source_name"`
}

// FeedsFile is the YAML shape of a feed list.
type FeedsFile struct {
	Feeds      []FeedEntry `yaml:"feeds"`
	MaxPerFeed int         `yaml:"max_per_feed"`
}

// envExpandRe matches ${VAR:-default} or ${VAR}.
var envExpandRe = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandEnvWithDefaults expands environment variables with support for
// default values, in both ${VAR} and ${VAR:-default} forms.
func expandEnvWithDefaults(s string) string {
	return envExpandRe.ReplaceAllStringFunc(s, func(match string) string {
		parts := envExpandRe.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		if len(parts) > 2 {
			return parts[2]
		}
		return ""
	})
}

// LoadFeeds reads a feed list from a YAML file. An empty path returns
// an empty file, letting the caller fall back to the built-in feeds.
func LoadFeeds(path string) (*FeedsFile, error) {
	if path == "" {
		return &FeedsFile{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feeds file %q: %w", path, err)
	}
	return LoadFeedsFromBytes(data)
}

// LoadFeedsFromBytes parses a feed list from raw YAML bytes, expanding
// ${VAR:-default} references first.
func LoadFeedsFromBytes(data []byte) (*FeedsFile, error) {
	expanded := expandEnvWithDefaults(string(data))

	var file FeedsFile
	if err := yaml.Unmarshal([]byte(expanded), &file); err != nil {
		return nil, fmt.Errorf("parse feeds file: %w", err)
	}

	for i, feed := range file.Feeds {
		if feed.URL == "" {
			return nil, fmt.Errorf("feeds[%d]: url is required", i)
		}
		if feed.SourceName == "" {
			return nil, fmt.Errorf("feeds[%d]: source_name is required", i)
		}
	}
	return &file, nil
}
