package analysis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/docuse/internal/types"
)

type stubBackend struct {
	name    string
	refs    []types.Reference
	err     error
	invoked *bool
}

func (s stubBackend) Name() string { return s.name }

func (s stubBackend) FindReferences(ctx context.Context, construct *types.Construct, searchFiles []string, read ReadFunc) ([]types.Reference, error) {
	if s.invoked != nil {
		*s.invoked = true
	}
	return s.refs, s.err
}

func refsAt(lines ...int) []types.Reference {
	out := make([]types.Reference, len(lines))
	for i, l := range lines {
		out[i] = types.Reference{File: "a.py", Line: l}
	}
	return out
}

func TestTieredStrategyShortCircuitsOnSufficientBackend(t *testing.T) {
	called := false
	strategy := TieredStrategy{Backends: []TieredBackend{
		{Backend: stubBackend{name: "first", refs: refsAt(1, 2)}, Threshold: 2},
		{Backend: stubBackend{name: "second", refs: refsAt(3), invoked: &called}, Threshold: 1},
	}}

	rs, err := strategy.Merge(context.Background(), &types.Construct{Name: "f"}, nil, readerFor(nil))
	require.NoError(t, err)
	assert.Equal(t, 2, rs.Len())
	assert.False(t, called, "second backend must not be consulted once the first meets its threshold")
}

func TestTieredStrategyFallsBackToUnionWhenNoneSufficient(t *testing.T) {
	strategy := TieredStrategy{Backends: []TieredBackend{
		{Backend: stubBackend{name: "first", refs: refsAt(1)}, Threshold: 5},
		{Backend: stubBackend{name: "second", refs: refsAt(1, 2)}, Threshold: 5},
	}}

	rs, err := strategy.Merge(context.Background(), &types.Construct{Name: "f"}, nil, readerFor(nil))
	require.NoError(t, err)
	assert.Equal(t, 2, rs.Len())
}

func TestConsensusStrategyReturnsIntersectionWhenOverlapHigh(t *testing.T) {
	strategy := ConsensusStrategy{
		First:  stubBackend{name: "a", refs: refsAt(1, 2, 3)},
		Second: stubBackend{name: "b", refs: refsAt(1, 2, 3, 4)},
	}
	rs, err := strategy.Merge(context.Background(), &types.Construct{Name: "f"}, nil, readerFor(nil))
	require.NoError(t, err)
	assert.Equal(t, 3, rs.Len(), "3/4 = 0.75 >= 0.7 threshold, so intersection wins")
}

func TestConsensusStrategyReturnsUnionWhenOverlapLow(t *testing.T) {
	strategy := ConsensusStrategy{
		First:  stubBackend{name: "a", refs: refsAt(1)},
		Second: stubBackend{name: "b", refs: refsAt(2, 3, 4)},
	}
	rs, err := strategy.Merge(context.Background(), &types.Construct{Name: "f"}, nil, readerFor(nil))
	require.NoError(t, err)
	assert.Equal(t, 4, rs.Len(), "0/4 overlap is below threshold, so union wins")
}

func TestConsensusStrategyEmptyBothYieldsEmpty(t *testing.T) {
	strategy := ConsensusStrategy{
		First:  stubBackend{name: "a"},
		Second: stubBackend{name: "b"},
	}
	rs, err := strategy.Merge(context.Background(), &types.Construct{Name: "f"}, nil, readerFor(nil))
	require.NoError(t, err)
	assert.Equal(t, 0, rs.Len())
}

func TestHybridAnalyzerDelegatesToStrategy(t *testing.T) {
	strategy := TieredStrategy{Backends: []TieredBackend{
		{Backend: stubBackend{name: "only", refs: refsAt(1)}, Threshold: 0},
	}}
	h := NewHybridAnalyzer(strategy)
	rs, err := h.FindReferences(context.Background(), &types.Construct{Name: "f"}, nil, readerFor(nil))
	require.NoError(t, err)
	assert.Equal(t, 1, rs.Len())
}
