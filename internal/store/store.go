// Package store implements the source store (C1): reading file bytes with a
// content-identity digest, and writing files back atomically so a crash or a
// concurrent reader never observes a partial write.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/docuse/internal/errors"
)

// Store reads and writes file bytes for the pipeline. It holds no per-file
// state; every call is a pure operation against the filesystem.
type Store struct{}

// New returns a ready-to-use Store.
func New() *Store { return &Store{} }

// Read returns a file's bytes, its content hash, and its modification time.
// content_hash is xxhash.Sum64 of the raw bytes — the same hash family the
// rest of the pipeline already depends on for cache keys and the corpus
// fingerprint, so no second hashing dependency is introduced for this role.
func (s *Store) Read(path string) ([]byte, uint64, time.Time, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, time.Time{}, errors.NewSourceIOError("read", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, 0, time.Time{}, errors.NewSourceIOError("stat", path, err)
	}
	return data, xxhash.Sum64(data), info.ModTime(), nil
}

// WriteAtomic writes data to path without ever leaving a partially-written
// file observable at path: it writes to a sibling temporary file in path's
// directory (guaranteeing the final rename stays on one filesystem), fsyncs
// it, and renames it over path. On any failure before the rename the
// temporary file is removed and path is left untouched.
func (s *Store) WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".docuse-tmp-*")
	if err != nil {
		return errors.NewSourceIOError("write", path, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.NewSourceIOError("write", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.NewSourceIOError("write", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.NewSourceIOError("write", path, err)
	}

	info, statErr := os.Stat(path)
	var mode os.FileMode = 0o644
	if statErr == nil {
		mode = info.Mode()
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		os.Remove(tmpPath)
		return errors.NewSourceIOError("write", path, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errors.NewSourceIOError("write", path, fmt.Errorf("rename into place: %w", err))
	}
	return nil
}

// Backup writes a copy of data to a sibling ".bak" path, used by the
// rewriter's safe mode (§4.8.6(3)) before an unsafe-gated write.
func (s *Store) Backup(path string, data []byte) error {
	return s.WriteAtomic(path+".bak", data)
}
