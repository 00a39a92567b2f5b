package cache

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/standardbeagle/docuse/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestParseCacheMissThenHit(t *testing.T) {
	c := NewParseCache()
	calls := int64(0)
	parse := func() ([]types.Construct, error) {
		atomic.AddInt64(&calls, 1)
		return []types.Construct{{Name: "f", Kind: types.KindFunction, Line: 1}}, nil
	}

	got, err := c.GetOrParse(123, 456, parse)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "f", got[0].Name)
	assert.EqualValues(t, 1, calls)

	got, err = c.GetOrParse(123, 456, parse)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.EqualValues(t, 1, calls, "second call for the same key must not re-parse")
}

func TestParseCacheDifferentMtimeIsDifferentKey(t *testing.T) {
	c := NewParseCache()
	calls := int64(0)
	parse := func() ([]types.Construct, error) {
		atomic.AddInt64(&calls, 1)
		return nil, nil
	}

	_, _ = c.GetOrParse(1, 100, parse)
	_, _ = c.GetOrParse(1, 200, parse)
	assert.EqualValues(t, 2, calls)
}

func TestParseCachePopulateErrorNotCached(t *testing.T) {
	c := NewParseCache()
	calls := int64(0)
	failing := errors.New("boom")
	parse := func() ([]types.Construct, error) {
		n := atomic.AddInt64(&calls, 1)
		if n == 1 {
			return nil, failing
		}
		return []types.Construct{{Name: "ok"}}, nil
	}

	_, err := c.GetOrParse(1, 1, parse)
	require.ErrorIs(t, err, failing)

	got, err := c.GetOrParse(1, 1, parse)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].Name)
}

func TestParseCacheConcurrentPopulationCollapses(t *testing.T) {
	c := NewParseCache()
	calls := int64(0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.GetOrParse(7, 7, func() ([]types.Construct, error) {
				atomic.AddInt64(&calls, 1)
				return []types.Construct{{Name: "x"}}, nil
			})
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, calls, "singleflight must collapse concurrent population for the same key")
}

func TestParseCachePersistsToDisk(t *testing.T) {
	dir := t.TempDir()
	c1 := NewParseCache(WithParseCacheDir(dir))
	calls := int64(0)
	parse := func() ([]types.Construct, error) {
		atomic.AddInt64(&calls, 1)
		return []types.Construct{{Name: "f"}}, nil
	}
	_, err := c1.GetOrParse(9, 9, parse)
	require.NoError(t, err)

	c2 := NewParseCache(WithParseCacheDir(dir))
	got, err := c2.GetOrParse(9, 9, parse)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.EqualValues(t, 1, calls, "second cache instance must read the on-disk entry, not re-parse")
}

func TestParseCacheCorruptDiskEntryTreatedAsMiss(t *testing.T) {
	dir := t.TempDir()
	c := NewParseCache(WithParseCacheDir(dir))
	key := parseKey(9, 9)
	require.NoError(t, os.WriteFile(filepath.Join(dir, key+".json"), []byte("not json"), 0o644))

	calls := int64(0)
	got, err := c.GetOrParse(9, 9, func() ([]types.Construct, error) {
		atomic.AddInt64(&calls, 1)
		return []types.Construct{{Name: "f"}}, nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.EqualValues(t, 1, calls)
}

func TestReferenceCacheMissThenHit(t *testing.T) {
	c := NewReferenceCache()
	calls := int64(0)
	analyze := func() (*types.ReferenceSet, error) {
		atomic.AddInt64(&calls, 1)
		rs := types.NewReferenceSet()
		rs.Add(types.Reference{File: "a.py", Line: 3})
		return rs, nil
	}

	rs, err := c.GetOrAnalyze(1, types.KindFunction, "a.f", 1, 999, analyze)
	require.NoError(t, err)
	assert.Equal(t, 1, rs.Len())

	rs, err = c.GetOrAnalyze(1, types.KindFunction, "a.f", 1, 999, analyze)
	require.NoError(t, err)
	assert.Equal(t, 1, rs.Len())
	assert.EqualValues(t, 1, calls)
}

func TestReferenceCacheFingerprintChangeInvalidates(t *testing.T) {
	c := NewReferenceCache()
	calls := int64(0)
	analyze := func() (*types.ReferenceSet, error) {
		atomic.AddInt64(&calls, 1)
		return types.NewReferenceSet(), nil
	}

	_, _ = c.GetOrAnalyze(1, types.KindFunction, "a.f", 1, 1, analyze)
	_, _ = c.GetOrAnalyze(1, types.KindFunction, "a.f", 1, 2, analyze)
	assert.EqualValues(t, 2, calls, "a changed corpus fingerprint must invalidate the cached entry")
}
