package resolve

import (
	"sort"
	"strconv"
	"strings"
)

// Blocking parameters: blocks smaller than minBlockSize produce no pairs,
// blocks larger than maxBlockSize are considered junk keys and skipped.
const (
	minBlockSize = 2
	maxBlockSize = 1000
)

// Pair is an ordered candidate pair; A < B lexicographically.
type Pair struct {
	A, B string
}

// Blocking generates candidate pairs without the full O(n^2) comparison.
type Blocking struct {
	normalizer *Normalizer
}

// NewBlocking returns a Blocking strategy.
func NewBlocking(n *Normalizer) *Blocking {
	return &Blocking{normalizer: n}
}

// Keys returns the blocking keys for a name: first token, three-character
// prefix, sorted-token signature, and length bucket.
func (b *Blocking) Keys(name string) []string {
	normalized := b.normalizer.Normalize(name)
	if normalized == "" {
		return nil
	}

	tokens := strings.Fields(normalized)
	keys := make([]string, 0, 4)

	if len(tokens) > 0 {
		keys = append(keys, "first:"+tokens[0])
	}

	prefix := normalized
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}
	keys = append(keys, "prefix:"+prefix)

	if len(tokens) > 0 {
		sortedTokens := append([]string(nil), tokens...)
		sort.Strings(sortedTokens)
		sig := strings.Join(sortedTokens, "")
		if len(sig) > 10 {
			sig = sig[:10]
		}
		keys = append(keys, "sig:"+sig)
	}

	keys = append(keys, "len:"+strconv.Itoa(len(normalized)/10))

	return keys
}

// Candidates generates deduplicated candidate pairs from all blocks whose
// size falls within [minBlockSize, maxBlockSize]. Output is sorted for
// deterministic downstream scoring.
func (b *Blocking) Candidates(names []string) []Pair {
	blocks := make(map[string][]string)
	for _, name := range names {
		for _, key := range b.Keys(name) {
			blocks[key] = append(blocks[key], name)
		}
	}

	seen := make(map[Pair]bool)
	for _, members := range blocks {
		if len(members) < minBlockSize || len(members) > maxBlockSize {
			continue
		}
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				a, c := members[i], members[j]
				if a == c {
					continue
				}
				if a > c {
					a, c = c, a
				}
				seen[Pair{A: a, B: c}] = true
			}
		}
	}

	pairs := make([]Pair, 0, len(seen))
	for p := range seen {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].A != pairs[j].A {
			return pairs[i].A < pairs[j].A
		}
		return pairs[i].B < pairs[j].B
	})

	return pairs
}
