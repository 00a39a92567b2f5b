package cache

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/standardbeagle/docuse/internal/types"
)

// grammarVersion tags the parser's construct extraction rules. Bumped
// whenever parser.go's query or construct-building logic changes meaning, so
// entries from an older parser are never mistaken for current ones.
const grammarVersion = "python-v1"

// ParseCache memoizes parser output keyed by content identity, per spec.md
// §4.3. It is safe for concurrent use.
type ParseCache struct {
	s *store
}

// ParseCacheOption configures a ParseCache at construction.
type ParseCacheOption func(*parseCacheConfig)

type parseCacheConfig struct {
	dir    string
	maxMem int
}

// WithParseCacheDir sets the on-disk directory backing the cache. Omit for an
// in-memory-only cache.
func WithParseCacheDir(dir string) ParseCacheOption {
	return func(c *parseCacheConfig) { c.dir = dir }
}

// WithParseCacheMaxEntries bounds the in-memory tier's entry count.
func WithParseCacheMaxEntries(n int) ParseCacheOption {
	return func(c *parseCacheConfig) { c.maxMem = n }
}

// NewParseCache returns a ready ParseCache.
func NewParseCache(opts ...ParseCacheOption) *ParseCache {
	var cfg parseCacheConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return &ParseCache{s: newStore(cfg.dir, cfg.maxMem)}
}

func parseKey(contentHash uint64, mtimeNanos int64) string {
	var b strings.Builder
	b.WriteString("parse-v1:")
	b.WriteString(strconv.FormatUint(contentHash, 16))
	b.WriteByte(':')
	b.WriteString(strconv.FormatInt(mtimeNanos, 10))
	b.WriteByte(':')
	b.WriteString(grammarVersion)
	return b.String()
}

// GetOrParse returns the cached construct list for (contentHash, mtimeNanos)
// if present; otherwise it calls parse exactly once (collapsing concurrent
// callers for the same key) and caches the result.
func (c *ParseCache) GetOrParse(contentHash uint64, mtimeNanos int64, parse func() ([]types.Construct, error)) ([]types.Construct, error) {
	key := parseKey(contentHash, mtimeNanos)

	payload, err := getOrPopulate(c.s, key, func() (json.RawMessage, error) {
		constructs, err := parse()
		if err != nil {
			return nil, err
		}
		return json.Marshal(constructs)
	})
	if err != nil {
		return nil, err
	}

	var constructs []types.Construct
	if err := json.Unmarshal(payload, &constructs); err != nil {
		return parse()
	}
	return constructs, nil
}

// Stats reports cumulative hit/miss counters.
func (c *ParseCache) Stats() Stats { return c.s.stats() }
