// Package analysis implements the backend analyzers (C4) and the hybrid
// analyzer that combines them (C5): the components responsible for finding,
// for one construct, every usage site across a set of candidate files.
package analysis

import (
	"context"

	"github.com/standardbeagle/docuse/internal/types"
)

// Backend is the abstract capability every concrete analyzer implements, per
// spec.md §4.4: given a construct and a set of candidate files, return every
// reference to it. Backends must never mutate files; on internal failure
// they return (nil, nil) rather than an error, logging the failure
// themselves — a failing backend is indistinguishable from one that found
// nothing. Self-references (the construct's own defining file) are included;
// filtering them out is the pipeline's job, not the backend's.
type Backend interface {
	Name() string
	FindReferences(ctx context.Context, construct *types.Construct, searchFiles []string, read ReadFunc) ([]types.Reference, error)
}

// ReadFunc abstracts file content access for a single analysis call, letting
// the caller (the executor, via the reference cache) supply already-read
// bytes without every backend depending on internal/store directly.
type ReadFunc func(path string) ([]byte, error)
