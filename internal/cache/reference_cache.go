package cache

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/standardbeagle/docuse/internal/types"
)

// ReferenceCache memoizes per-construct reference lists keyed by construct
// identity plus corpus state, per spec.md §4.6. It wraps whatever analyzer
// the caller supplies and is opaque to that analyzer's internal backends.
type ReferenceCache struct {
	s *store
}

// ReferenceCacheOption configures a ReferenceCache at construction.
type ReferenceCacheOption func(*referenceCacheConfig)

type referenceCacheConfig struct {
	dir    string
	maxMem int
}

// WithReferenceCacheDir sets the on-disk directory backing the cache. Omit
// for an in-memory-only cache.
func WithReferenceCacheDir(dir string) ReferenceCacheOption {
	return func(c *referenceCacheConfig) { c.dir = dir }
}

// WithReferenceCacheMaxEntries bounds the in-memory tier's entry count.
func WithReferenceCacheMaxEntries(n int) ReferenceCacheOption {
	return func(c *referenceCacheConfig) { c.maxMem = n }
}

// NewReferenceCache returns a ready ReferenceCache.
func NewReferenceCache(opts ...ReferenceCacheOption) *ReferenceCache {
	var cfg referenceCacheConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return &ReferenceCache{s: newStore(cfg.dir, cfg.maxMem)}
}

func referenceKey(contentHash uint64, kind types.ConstructKind, fqn string, line int, corpusFingerprint uint64) string {
	var b strings.Builder
	b.WriteString("ref-v1:")
	b.WriteString(strconv.FormatUint(contentHash, 16))
	b.WriteByte(':')
	b.WriteString(kind.String())
	b.WriteByte(':')
	b.WriteString(fqn)
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(line))
	b.WriteByte(':')
	b.WriteString(strconv.FormatUint(corpusFingerprint, 16))
	return b.String()
}

// GetOrAnalyze returns the cached ReferenceSet for the given key components if
// present; otherwise it calls analyze exactly once (collapsing concurrent
// callers for the same key) and caches the result. A cache hit is
// indistinguishable from a miss-then-store, per spec.md §4.6's contract.
func (c *ReferenceCache) GetOrAnalyze(
	contentHash uint64,
	kind types.ConstructKind,
	fqn string,
	line int,
	corpusFingerprint uint64,
	analyze func() (*types.ReferenceSet, error),
) (*types.ReferenceSet, error) {
	key := referenceKey(contentHash, kind, fqn, line, corpusFingerprint)

	payload, err := getOrPopulate(c.s, key, func() (json.RawMessage, error) {
		rs, err := analyze()
		if err != nil {
			return nil, err
		}
		return json.Marshal(refsOf(rs))
	})
	if err != nil {
		return nil, err
	}

	var refs []types.Reference
	if err := json.Unmarshal(payload, &refs); err != nil {
		return analyze()
	}
	out := types.NewReferenceSet()
	out.AddAll(refs)
	return out, nil
}

func refsOf(rs *types.ReferenceSet) []types.Reference {
	if rs == nil {
		return nil
	}
	return rs.Refs()
}

// Stats reports cumulative hit/miss counters.
func (c *ReferenceCache) Stats() Stats { return c.s.stats() }
