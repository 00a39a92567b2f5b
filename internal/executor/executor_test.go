package executor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/standardbeagle/docuse/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func construct(name string, line int) types.Construct {
	return types.Construct{Name: name, Kind: types.KindFunction, FullyQualifiedName: name, Line: line}
}

func TestRunDispatchesEveryConstruct(t *testing.T) {
	e := New(4, 0)
	constructs := []types.Construct{construct("a", 1), construct("b", 2), construct("c", 3)}

	result := e.Run(context.Background(), constructs, func(ctx context.Context, c *types.Construct) (*types.ReferenceSet, error) {
		rs := types.NewReferenceSet()
		rs.Add(types.Reference{File: "x.py", Line: c.Line})
		return rs, nil
	})

	require.False(t, result.Truncated)
	require.Len(t, result.References, 3)
	for _, c := range constructs {
		rs, ok := result.References[c.Identity()]
		require.True(t, ok)
		assert.Equal(t, 1, rs.Len())
	}
}

func TestRunRespectsWidthLimit(t *testing.T) {
	e := New(2, 0)
	constructs := make([]types.Construct, 8)
	for i := range constructs {
		constructs[i] = construct("f", i+1)
	}

	var inFlight int32
	var maxObserved int32

	e.Run(context.Background(), constructs, func(ctx context.Context, c *types.Construct) (*types.ReferenceSet, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			cur := atomic.LoadInt32(&maxObserved)
			if n <= cur || atomic.CompareAndSwapInt32(&maxObserved, cur, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return types.NewReferenceSet(), nil
	})

	assert.LessOrEqual(t, int(atomic.LoadInt32(&maxObserved)), 2)
}

func TestRunPanicInOneTaskYieldsEmptyResultNotCrash(t *testing.T) {
	e := New(4, 0)
	constructs := []types.Construct{construct("boom", 1), construct("ok", 2)}

	result := e.Run(context.Background(), constructs, func(ctx context.Context, c *types.Construct) (*types.ReferenceSet, error) {
		if c.Name == "boom" {
			panic("construct analysis exploded")
		}
		rs := types.NewReferenceSet()
		rs.Add(types.Reference{File: "x.py", Line: 1})
		return rs, nil
	})

	require.Len(t, result.References, 2)
	assert.Equal(t, 0, result.References[constructs[0].Identity()].Len())
	assert.Equal(t, 1, result.References[constructs[1].Identity()].Len())
}

func TestRunAnalysisErrorYieldsEmptyResult(t *testing.T) {
	e := New(4, 0)
	constructs := []types.Construct{construct("fails", 1)}

	result := e.Run(context.Background(), constructs, func(ctx context.Context, c *types.Construct) (*types.ReferenceSet, error) {
		return nil, errors.New("backend exploded")
	})

	assert.Equal(t, 0, result.References[constructs[0].Identity()].Len())
}

func TestRunPerTaskTimeoutYieldsEmptyResultWithoutBlockingOthers(t *testing.T) {
	e := New(4, 10*time.Millisecond)
	constructs := []types.Construct{construct("slow", 1), construct("fast", 2)}

	result := e.Run(context.Background(), constructs, func(ctx context.Context, c *types.Construct) (*types.ReferenceSet, error) {
		if c.Name == "slow" {
			select {
			case <-time.After(200 * time.Millisecond):
				return types.NewReferenceSet(), nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		rs := types.NewReferenceSet()
		rs.Add(types.Reference{File: "x.py", Line: 1})
		return rs, nil
	})

	assert.Equal(t, 0, result.References[constructs[0].Identity()].Len())
	assert.Equal(t, 1, result.References[constructs[1].Identity()].Len())
}

func TestRunCancellationTruncatesPendingTasks(t *testing.T) {
	e := New(1, 0)
	constructs := []types.Construct{construct("a", 1), construct("b", 2), construct("c", 3)}

	ctx, cancel := context.WithCancel(context.Background())
	var started int32

	result := e.Run(ctx, constructs, func(taskCtx context.Context, c *types.Construct) (*types.ReferenceSet, error) {
		atomic.AddInt32(&started, 1)
		cancel()
		return types.NewReferenceSet(), nil
	})

	assert.True(t, result.Truncated)
	assert.Less(t, int(atomic.LoadInt32(&started)), len(constructs))
}
