package analysis

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/docuse/internal/debug"
	"github.com/standardbeagle/docuse/internal/types"
)

// Strategy merges the results of ≥2 backends into one reference list, per
// spec.md §4.5. Results are duplicate-free and ordered by first appearance
// across the merge.
type Strategy interface {
	Merge(ctx context.Context, construct *types.Construct, searchFiles []string, read ReadFunc) (*types.ReferenceSet, error)
}

// TieredBackend is one entry in a TieredStrategy's ordered backend list: a
// backend plus the minimum reference count that counts as "sufficient" to
// short-circuit the remaining, presumably more expensive, backends.
type TieredBackend struct {
	Backend   Backend
	Threshold int
}

// TieredStrategy invokes backends in order; the first one whose result count
// meets its threshold short-circuits the rest. If none does, the
// deduplicated union of every backend's results is returned. Backends after
// the first are only invoked lazily — a backend earlier in the list that
// already met its threshold means later, presumably costlier, backends never
// run at all.
type TieredStrategy struct {
	Backends []TieredBackend
}

func (s TieredStrategy) Merge(ctx context.Context, construct *types.Construct, searchFiles []string, read ReadFunc) (*types.ReferenceSet, error) {
	union := types.NewReferenceSet()
	for _, tb := range s.Backends {
		refs, err := tb.Backend.FindReferences(ctx, construct, searchFiles, read)
		if err != nil {
			// Per the Backend contract, backends report failure by returning
			// (nil, nil) and logging themselves; a non-nil error here would be
			// a contract violation, so treat it the same way: skip and continue.
			debug.LogAnalysis("backend %s returned an error despite the no-error contract: %v", tb.Backend.Name(), err)
			continue
		}
		if len(refs) >= tb.Threshold {
			rs := types.NewReferenceSet()
			rs.AddAll(refs)
			return rs, nil
		}
		union.AddAll(refs)
	}
	return union, nil
}

// ConsensusStrategy invokes exactly two backends eagerly and concurrently. If
// their results overlap (by (file, line)) by at least 0.7 of their union,
// the intersection is returned as the high-confidence result; otherwise the
// union is returned for comprehensive coverage.
type ConsensusStrategy struct {
	First, Second Backend
}

const consensusThreshold = 0.7

func (s ConsensusStrategy) Merge(ctx context.Context, construct *types.Construct, searchFiles []string, read ReadFunc) (*types.ReferenceSet, error) {
	var aRefs, bRefs []types.Reference

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		refs, err := s.First.FindReferences(gctx, construct, searchFiles, read)
		if err != nil {
			debug.LogAnalysis("backend %s returned an error despite the no-error contract: %v", s.First.Name(), err)
			return nil
		}
		aRefs = refs
		return nil
	})
	g.Go(func() error {
		refs, err := s.Second.FindReferences(gctx, construct, searchFiles, read)
		if err != nil {
			debug.LogAnalysis("backend %s returned an error despite the no-error contract: %v", s.Second.Name(), err)
			return nil
		}
		bRefs = refs
		return nil
	})
	_ = g.Wait() // the goroutines above never return a non-nil error

	a := types.NewReferenceSet()
	a.AddAll(aRefs)
	b := types.NewReferenceSet()
	b.AddAll(bRefs)

	union := types.Union(a, b)
	intersect := types.Intersect(a, b)

	if union.Len() == 0 {
		return union, nil
	}
	if float64(intersect.Len()) >= consensusThreshold*float64(union.Len()) {
		return intersect, nil
	}
	return union, nil
}

// HybridAnalyzer orchestrates a Strategy over backends to produce one
// reference list per construct, per spec.md §4.5. It wraps whichever
// strategy the caller configures. It does not implement Backend: its
// FindReferences returns a merged *types.ReferenceSet, and it has no Name.
type HybridAnalyzer struct {
	strategy Strategy
}

// NewHybridAnalyzer returns a HybridAnalyzer using the given strategy.
func NewHybridAnalyzer(strategy Strategy) *HybridAnalyzer {
	return &HybridAnalyzer{strategy: strategy}
}

// FindReferences runs the configured strategy for one construct.
func (h *HybridAnalyzer) FindReferences(ctx context.Context, construct *types.Construct, searchFiles []string, read ReadFunc) (*types.ReferenceSet, error) {
	return h.strategy.Merge(ctx, construct, searchFiles, read)
}
