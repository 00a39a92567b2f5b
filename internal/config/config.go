// Package config holds the Configuration struct the pipeline (C9) is handed
// at entry, and validates it against a small JSON Schema before any work
// starts.
package config

import (
	"encoding/json"
	"fmt"
	"runtime"
	"time"

	"github.com/standardbeagle/docuse/internal/analysis"
	"github.com/standardbeagle/docuse/internal/rewriter"
)

// Configuration is the single entry-point value the pipeline (C9) receives.
// There is no on-disk config file format; callers construct this struct
// directly (cmd/docuse takes no flags and uses Default).
type Configuration struct {
	AnalyzerStrategy   analysis.StrategyKind
	BackendOrder       []analysis.BackendSpec
	WorkerCount        int
	PerTaskTimeout     time.Duration
	DryRun             bool
	SafeMode           bool
	CacheDir           string
	IncludeLineNumbers bool
	UpdateModuleDocs   bool
	UsedInBoundaryMode rewriter.BoundaryMode
	ProjectRoot        string
}

// Default returns a Configuration with every field set to the defaults
// DESIGN.md records for the Open Questions spec.md leaves unresolved:
// IncludeLineNumbers off, UpdateModuleDocs on, strict boundary mode, a
// Tiered strategy running all four backends in the order fast_symbol,
// structural_pattern, deep_semantic, lint_driven; lint_driven, the cheapest
// backend, runs last with threshold 0.
func Default() Configuration {
	return Configuration{
		AnalyzerStrategy: analysis.TieredStrategyKind,
		BackendOrder: []analysis.BackendSpec{
			{Backend: analysis.BackendKindFastSymbol, Threshold: 1},
			{Backend: analysis.BackendKindStructuralPattern, Threshold: 1},
			{Backend: analysis.BackendKindDeepSemantic, Threshold: 1},
			{Backend: analysis.BackendKindLintDriven, Threshold: 0},
		},
		WorkerCount:        0,
		PerTaskTimeout:     30 * time.Second,
		IncludeLineNumbers: false,
		UpdateModuleDocs:   true,
		UsedInBoundaryMode: rewriter.BoundaryModeStrict,
	}
}

// resolvedWorkerCount returns WorkerCount, substituting GOMAXPROCS when 0.
func (c Configuration) resolvedWorkerCount() int {
	if c.WorkerCount > 0 {
		return c.WorkerCount
	}
	return runtime.GOMAXPROCS(0)
}

// EffectiveWorkerCount returns the effective worker width: WorkerCount if set, or
// runtime.GOMAXPROCS(0) otherwise, per SPEC_FULL.md §6.
func (c Configuration) EffectiveWorkerCount() int { return c.resolvedWorkerCount() }

// Validate marshals c to JSON and checks it against configSchema, per
// SPEC_FULL.md §6. Callers run it before building a pipeline (cmd/docuse
// does); pipeline.New does not call it. It also rejects
// combinations the schema cannot express (an empty BackendOrder, a
// consensus strategy given fewer than two backends).
func (c Configuration) Validate() error {
	doc := c.toValidationDoc()
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("config: marshal for validation: %w", err)
	}

	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("config: unmarshal for validation: %w", err)
	}

	resolved, err := configSchema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("config: resolve schema: %w", err)
	}
	if err := resolved.Validate(instance); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if len(c.BackendOrder) == 0 {
		return fmt.Errorf("config: backend_order must name at least one backend")
	}
	if c.AnalyzerStrategy == analysis.ConsensusStrategyKind && len(c.BackendOrder) < 2 {
		return fmt.Errorf("config: consensus strategy requires at least 2 backends in backend_order")
	}
	if c.PerTaskTimeout <= 0 {
		return fmt.Errorf("config: per_task_timeout must be positive")
	}
	return nil
}

// validationDoc mirrors Configuration's JSON-checkable surface for schema
// validation; duration and enum fields are projected to the primitive forms
// the schema describes.
type validationDoc struct {
	AnalyzerStrategy   string `json:"analyzer_strategy"`
	WorkerCount        int    `json:"worker_count"`
	PerTaskTimeoutMS   int64  `json:"per_task_timeout_ms"`
	DryRun             bool   `json:"dry_run"`
	SafeMode           bool   `json:"safe_mode"`
	IncludeLineNumbers bool   `json:"include_line_numbers"`
	UpdateModuleDocs   bool   `json:"update_module_docs"`
}

func (c Configuration) toValidationDoc() validationDoc {
	strategy := string(c.AnalyzerStrategy)
	if strategy == "" {
		strategy = string(analysis.TieredStrategyKind)
	}
	return validationDoc{
		AnalyzerStrategy:   strategy,
		WorkerCount:        c.WorkerCount,
		PerTaskTimeoutMS:   c.PerTaskTimeout.Milliseconds(),
		DryRun:             c.DryRun,
		SafeMode:           c.SafeMode,
		IncludeLineNumbers: c.IncludeLineNumbers,
		UpdateModuleDocs:   c.UpdateModuleDocs,
	}
}
