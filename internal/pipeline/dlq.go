package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const dlqTimestampLayout = "20060102_150405"

// DLQEntry is the payload written for one failed item.
type DLQEntry struct {
	Node      string          `json:"node"`
	ItemID    string          `json:"item_id,omitempty"`
	Error     string          `json:"error"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// DLQ writes failed items to disk so a run never loses work silently.
// Files land at <root>/<node>/<timestamp>[_<item>].json; a numeric
// suffix disambiguates collisions within the same second.
type DLQ struct {
	root    string
	enabled bool
	log     zerolog.Logger

	now func() time.Time
}

// NewDLQ creates a queue rooted at dir. A disabled queue swallows
// writes, which keeps call sites unconditional.
func NewDLQ(dir string, enabled bool, log zerolog.Logger) *DLQ {
	return &DLQ{root: dir, enabled: enabled, log: log, now: time.Now}
}

// Write records one failed item and returns the file path written.
func (q *DLQ) Write(node, itemID string, cause error, payload any) (string, error) {
	if !q.enabled {
		return "", nil
	}

	entry := DLQEntry{
		Node:      node,
		ItemID:    itemID,
		Error:     cause.Error(),
		Timestamp: q.now().UTC(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return "", fmt.Errorf("marshal dlq payload: %w", err)
		}
		entry.Payload = raw
	}

	dir := filepath.Join(q.root, node)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create dlq dir: %w", err)
	}

	base := entry.Timestamp.Format(dlqTimestampLayout)
	if itemID != "" {
		base += "_" + sanitizeItemID(itemID)
	}

	path := filepath.Join(dir, base+".json")
	for n := 1; fileExists(path); n++ {
		path = filepath.Join(dir, fmt.Sprintf("%s_%d.json", base, n))
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal dlq entry: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write dlq entry: %w", err)
	}

	q.log.Warn().Str("node", node).Str("item", itemID).Str("path", path).Msg("item sent to dlq")
	return path, nil
}

// List returns the entry paths for a node, sorted by name (and so by
// timestamp).
func (q *DLQ) List(node string) ([]string, error) {
	dir := filepath.Join(q.root, node)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read dlq dir: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// Read loads one entry back from disk.
func (q *DLQ) Read(path string) (DLQEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DLQEntry{}, fmt.Errorf("read dlq entry: %w", err)
	}
	var entry DLQEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return DLQEntry{}, fmt.Errorf("parse dlq entry %s: %w", path, err)
	}
	return entry, nil
}

// sanitizeItemID keeps item IDs filesystem-safe.
func sanitizeItemID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, id)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
