// Package executor implements the parallel executor (C7): applying a
// per-construct analysis function across many constructs with bounded
// concurrency, per-task timeouts, cooperative cancellation, and isolation
// between tasks.
package executor

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/docuse/internal/debug"
	"github.com/standardbeagle/docuse/internal/errors"
	"github.com/standardbeagle/docuse/internal/types"
)

// AnalyzeFunc runs the hybrid analyzer (C5, via C6) for one construct.
type AnalyzeFunc func(ctx context.Context, construct *types.Construct) (*types.ReferenceSet, error)

// Executor dispatches AnalyzeFunc across many constructs concurrently, per
// spec.md §4.7.
type Executor struct {
	// Width is the maximum number of concurrent analysis tasks. Zero means
	// runtime.GOMAXPROCS(0), matching the spec's default.
	Width int
	// Timeout bounds a single construct's analysis; zero means no per-task
	// timeout.
	Timeout time.Duration
}

// New returns an Executor configured with width and timeout. A width <= 0
// uses runtime.GOMAXPROCS(0).
func New(width int, timeout time.Duration) *Executor {
	if width <= 0 {
		width = runtime.GOMAXPROCS(0)
	}
	return &Executor{Width: width, Timeout: timeout}
}

// Result is the outcome of running Run: the per-construct reference sets,
// plus a flag reporting whether cancellation truncated the batch before
// every construct was dispatched.
type Result struct {
	References map[types.ConstructIdentity]*types.ReferenceSet
	Truncated  bool
}

// Run dispatches analyze once per construct, fanning out up to e.Width
// concurrent tasks via errgroup.Group.SetLimit. Cancelling ctx aborts pending
// dispatch and lets in-flight tasks observe ctx.Done() at their next
// checkpoint; Run always returns whatever results completed, with Truncated
// set when ctx was cancelled before every construct ran. A panic inside a
// single task is recovered and reported as an empty ReferenceSet for that
// construct; it never aborts the rest of the batch.
func (e *Executor) Run(ctx context.Context, constructs []types.Construct, analyze AnalyzeFunc) Result {
	results := make(map[types.ConstructIdentity]*types.ReferenceSet, len(constructs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.Width)

	for i := range constructs {
		construct := &constructs[i]
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			rs := e.runOne(gctx, construct, analyze)
			mu.Lock()
			results[construct.Identity()] = rs
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // task bodies never return a non-nil error; failures are captured per-construct

	return Result{References: results, Truncated: ctx.Err() != nil}
}

// runOne analyzes a single construct, applying the executor's per-task
// timeout and recovering from panics.
func (e *Executor) runOne(ctx context.Context, construct *types.Construct, analyze AnalyzeFunc) (rs *types.ReferenceSet) {
	taskCtx := ctx
	cancel := func() {}
	if e.Timeout > 0 {
		taskCtx, cancel = context.WithTimeout(ctx, e.Timeout)
	}
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			debug.Warn("EXEC", "construct %s: recovered from panic: %v", construct.FullyQualifiedName, err)
			rs = types.NewReferenceSet()
		}
	}()

	result, err := analyze(taskCtx, construct)
	if err != nil {
		if taskCtx.Err() != nil {
			warn := errors.NewAnalysisTimeoutWarning(construct.FullyQualifiedName, e.Timeout)
			debug.Warn("EXEC", "%s", warn.Error())
		} else {
			debug.Warn("EXEC", "construct %s: analysis failed: %v", construct.FullyQualifiedName, err)
		}
		return types.NewReferenceSet()
	}
	if result == nil {
		return types.NewReferenceSet()
	}
	return result
}
