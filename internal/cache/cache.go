// Package cache implements the two memoization layers of the pipeline: the
// parse cache (C3), keyed by file content identity, and the analysis cache
// (C6), keyed by construct identity plus corpus state. Both share the same
// two-tier shape: a bounded in-memory front backed by a persistent on-disk
// store, with concurrent population for an identical key collapsed to a
// single populator.
package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/standardbeagle/docuse/internal/debug"
	"github.com/standardbeagle/docuse/internal/errors"
)

// schemaVersion tags every serialized entry this package writes. A future
// format change bumps this so stale on-disk entries are discarded rather than
// misread.
const schemaVersion = 1

// entry is the on-disk envelope: a version tag plus the caller's payload.
// Mismatched Version (or a payload that fails to unmarshal) is treated as a
// miss, per spec.md §4.3's "entries are self-describing" contract.
type entry struct {
	Version int             `json:"version"`
	Payload json.RawMessage `json:"payload"`
}

// store is the shared two-tier shape (teacher's MetricsCache sync.Map +
// atomic-counter design, adapted to a typed payload plus an on-disk tier).
// It is safe for concurrent use.
type store struct {
	mem sync.Map // map[string]json.RawMessage

	dir string // on-disk directory, "" disables the disk tier

	hits      int64
	misses    int64
	memCount  int64
	maxMem    int64

	group singleflight.Group
}

func newStore(dir string, maxMem int) *store {
	if maxMem <= 0 {
		maxMem = 1000
	}
	if dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}
	return &store{dir: dir, maxMem: int64(maxMem)}
}

func (s *store) diskPath(key string) string {
	if s.dir == "" {
		return ""
	}
	return filepath.Join(s.dir, key+".json")
}

// load returns the raw payload for key, checking the in-memory tier first and
// falling back to disk. A corrupt disk entry is logged as CacheCorruptWarning
// and treated as a miss.
func (s *store) load(key string) (json.RawMessage, bool) {
	if v, ok := s.mem.Load(key); ok {
		atomic.AddInt64(&s.hits, 1)
		return v.(json.RawMessage), true
	}

	if path := s.diskPath(key); path != "" {
		if raw, err := os.ReadFile(path); err == nil {
			var e entry
			if err := json.Unmarshal(raw, &e); err != nil || e.Version != schemaVersion {
				warn := errors.NewCacheCorruptWarning(key, err)
				debug.Warn("CACHE", "%s", warn.Error())
				_ = os.Remove(path)
				atomic.AddInt64(&s.misses, 1)
				return nil, false
			}
			s.storeMem(key, e.Payload)
			atomic.AddInt64(&s.hits, 1)
			return e.Payload, true
		}
	}

	atomic.AddInt64(&s.misses, 1)
	return nil, false
}

func (s *store) storeMem(key string, payload json.RawMessage) {
	if _, loaded := s.mem.Swap(key, payload); !loaded {
		if atomic.AddInt64(&s.memCount, 1) > s.maxMem {
			s.evictOne()
		}
	}
}

// evictOne drops an arbitrary entry once the in-memory tier is over its
// bound; sync.Map has no ordering to evict the true oldest, so — like the
// teacher's own size-limited caches — eviction here is approximate, and the
// on-disk tier remains the durable source of truth.
func (s *store) evictOne() {
	s.mem.Range(func(key, _ interface{}) bool {
		s.mem.Delete(key)
		atomic.AddInt64(&s.memCount, -1)
		return false
	})
}

// put writes payload to both tiers under key.
func (s *store) put(key string, payload json.RawMessage) {
	s.storeMem(key, payload)
	if path := s.diskPath(key); path != "" {
		raw, err := json.Marshal(entry{Version: schemaVersion, Payload: payload})
		if err != nil {
			return
		}
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, raw, 0o644); err != nil {
			return
		}
		_ = os.Rename(tmp, path)
	}
}

// Stats reports cumulative hit/miss counters for diagnostics.
type Stats struct {
	Hits   int64
	Misses int64
}

func (s *store) stats() Stats {
	return Stats{Hits: atomic.LoadInt64(&s.hits), Misses: atomic.LoadInt64(&s.misses)}
}

// getOrPopulate returns the cached payload for key if present, otherwise
// calls populate exactly once per concurrently-requested key (singleflight),
// caches its result, and returns it. populate's error is never cached.
func getOrPopulate(s *store, key string, populate func() (json.RawMessage, error)) (json.RawMessage, error) {
	if payload, ok := s.load(key); ok {
		return payload, nil
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		if payload, ok := s.load(key); ok {
			return payload, nil
		}
		payload, err := populate()
		if err != nil {
			return nil, err
		}
		s.put(key, payload)
		return payload, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(json.RawMessage), nil
}
