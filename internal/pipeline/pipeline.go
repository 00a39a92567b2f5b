// Package pipeline implements the orchestrator (C9): it wires C1 (source
// store) through C8 (rewriter) into the single entry point spec.md §4.9
// describes — read edit-set files, parse them, analyze every construct
// against the reference set, rewrite each affected file, and report a
// summary no single failure can derail.
package pipeline

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/docuse/internal/analysis"
	"github.com/standardbeagle/docuse/internal/cache"
	"github.com/standardbeagle/docuse/internal/config"
	"github.com/standardbeagle/docuse/internal/debug"
	"github.com/standardbeagle/docuse/internal/errors"
	"github.com/standardbeagle/docuse/internal/executor"
	"github.com/standardbeagle/docuse/internal/parser"
	"github.com/standardbeagle/docuse/internal/rewriter"
	"github.com/standardbeagle/docuse/internal/store"
	"github.com/standardbeagle/docuse/internal/types"
)

// FileOutcome names what happened to one file during a run.
type FileOutcome string

const (
	FileModified   FileOutcome = "modified"
	FileUnchanged  FileOutcome = "unchanged"
	FileRolledBack FileOutcome = "rolled_back"
	FileSkipped    FileOutcome = "skipped"
)

// FileResult is one defining file's outcome, reported in source-path-sorted
// order inside a Summary.
type FileResult struct {
	Path    string
	Outcome FileOutcome
	Err     error
}

// Summary is Pipeline.Run's return value: a per-file outcome list, sorted by
// path, plus the full construct→ReferenceSet mapping for inspection, per
// spec.md §4.9 step 8.
type Summary struct {
	Files      []FileResult
	References map[types.ConstructIdentity]*types.ReferenceSet
	RolledBack bool
	Cancelled  bool
	// Err aggregates this run's reportable failures: a *errors.CancelledError
	// when Cancelled is set, a *errors.MultiError over every rolled-back or
	// skipped file's error when one or more files failed, or nil when
	// neither applies.
	Err error
}

// ExitNonZero reports whether this run should flip the embedding command's
// exit status, per spec.md §4.9/§7: only a rollback or a cancellation does.
func (s Summary) ExitNonZero() bool { return s.RolledBack || s.Cancelled }

// Pipeline orchestrates C1 through C8 for one run.
type Pipeline struct {
	store    *store.Store
	parser   *parser.Parser
	parses   *cache.ParseCache
	refs     *cache.ReferenceCache
	analyzer *analysis.HybridAnalyzer
	rewriter *rewriter.Rewriter
	cfg      config.Configuration
}

// New builds a Pipeline from cfg, constructing its own Parser, caches,
// Strategy-backed HybridAnalyzer, and Rewriter. cfg must already have passed
// Validate.
func New(cfg config.Configuration) (*Pipeline, error) {
	p, err := parser.New()
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	strategy, err := analysis.BuildStrategy(cfg.AnalyzerStrategy, cfg.BackendOrder)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	rw, err := rewriter.New(rewriter.Options{
		ProjectRoot:        cfg.ProjectRoot,
		Boundary:           cfg.UsedInBoundaryMode,
		IncludeLineNumbers: cfg.IncludeLineNumbers,
		Backup:             cfg.SafeMode,
		UpdateModuleDocs:   cfg.UpdateModuleDocs,
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	var parseOpts []cache.ParseCacheOption
	var refOpts []cache.ReferenceCacheOption
	if cfg.CacheDir != "" {
		parseOpts = append(parseOpts, cache.WithParseCacheDir(cfg.CacheDir+"/parse-v1"))
		refOpts = append(refOpts, cache.WithReferenceCacheDir(cfg.CacheDir+"/ref-v1"))
	}

	return &Pipeline{
		store:    store.New(),
		parser:   p,
		parses:   cache.NewParseCache(parseOpts...),
		refs:     cache.NewReferenceCache(refOpts...),
		analyzer: analysis.NewHybridAnalyzer(strategy),
		rewriter: rw,
		cfg:      cfg,
	}, nil
}

// Close releases the Pipeline's parser resources.
func (p *Pipeline) Close() { p.parser.Close() }

// Run executes the orchestration spec.md §4.9 describes: editFiles are
// parsed for constructs; each construct is analyzed against refFiles (via
// C7→C6→C5→C4); self-references are filtered; results are grouped by
// defining file and rewritten (via C8); each file's new bytes are written
// atomically (via C1) unless cfg.DryRun is set. A single construct's
// analysis failure or a single file's rollback never aborts the run; only a
// rollback or ctx cancellation flips Summary.ExitNonZero().
func (p *Pipeline) Run(ctx context.Context, editFiles, refFiles []string) (Summary, error) {
	members, err := p.corpusMembers(refFiles)
	if err != nil {
		return Summary{}, err
	}
	corpusFingerprint := types.CorpusFingerprint(members)

	constructsByFile, parseErrs := p.parseEditFiles(ctx, editFiles)

	allConstructs := flattenConstructs(constructsByFile)

	exec := executor.New(p.cfg.EffectiveWorkerCount(), p.cfg.PerTaskTimeout)
	result := exec.Run(ctx, allConstructs, func(taskCtx context.Context, c *types.Construct) (*types.ReferenceSet, error) {
		return p.analyzeConstruct(taskCtx, c, refFiles, corpusFingerprint)
	})

	filtered := filterSelfReferences(result.References, allConstructs)

	grouped := groupByFile(allConstructs, filtered)

	var fileResults []FileResult
	if result.Truncated {
		// A cancelled run writes nothing: every defining file is reported as
		// skipped.
		for path := range grouped {
			fileResults = append(fileResults, FileResult{Path: path, Outcome: FileSkipped})
		}
	} else {
		fileResults = p.rewriteFiles(grouped)
	}
	for _, perr := range parseErrs {
		fileResults = append(fileResults, perr)
	}
	sort.Slice(fileResults, func(i, j int) bool { return fileResults[i].Path < fileResults[j].Path })

	summary := Summary{
		Files:      fileResults,
		References: filtered,
		Cancelled:  result.Truncated,
	}
	for _, fr := range fileResults {
		if fr.Outcome == FileRolledBack {
			summary.RolledBack = true
		}
	}
	summary.Err = summaryErr(ctx, summary.Cancelled, fileResults)
	return summary, nil
}

// summaryErr builds Summary.Err: a CancelledError when the run was truncated
// or ctx was itself cancelled, otherwise a MultiError over every failed
// file's error (nil if none failed).
func summaryErr(ctx context.Context, cancelled bool, fileResults []FileResult) error {
	if cancelled || ctx.Err() != nil {
		reason := "executor reported truncation"
		if ctx.Err() != nil {
			reason = ctx.Err().Error()
		}
		cancelErr := errors.NewCancelledError(reason)
		debug.Warn("PIPELINE", "%s", cancelErr.Error())
		return cancelErr
	}

	var fileErrs []error
	for _, fr := range fileResults {
		if fr.Err != nil {
			fileErrs = append(fileErrs, fr.Err)
		}
	}
	if multi := errors.NewMultiError(fileErrs); multi != nil {
		debug.Warn("PIPELINE", "%s", multi.Error())
		return multi
	}
	return nil
}

// corpusMembers reads refFiles' identity (path, content hash, mtime) for
// CorpusFingerprint, per spec.md §4.9 step 2. Unreadable files are logged
// and excluded — a missing reference file contributes nothing to the
// fingerprint or the search, but never aborts the run.
func (p *Pipeline) corpusMembers(refFiles []string) ([]types.CorpusMember, error) {
	members := make([]types.CorpusMember, 0, len(refFiles))
	for _, path := range refFiles {
		_, hash, mtime, err := p.store.Read(path)
		if err != nil {
			debug.Warn("PIPELINE", "%s", err.Error())
			continue
		}
		members = append(members, types.CorpusMember{Path: path, ContentHash: hash, ModTime: mtime})
	}
	return members, nil
}

// parseEditFiles dispatches C2 across editFiles, one goroutine per file
// (the concurrency model's "parsing is parallelized at the file level"
// rule), via the same errgroup-with-limit shape C7 uses internally but as
// an independently-limited group, since parse concurrency (CPU/CGO-bound)
// and analysis concurrency (I/O-bound) are different resource budgets.
func (p *Pipeline) parseEditFiles(ctx context.Context, editFiles []string) (map[string][]types.Construct, []FileResult) {
	type parseOutcome struct {
		path       string
		constructs []types.Construct
		err        *FileResult
	}

	outcomes := make([]parseOutcome, len(editFiles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.EffectiveWorkerCount())
	for i, path := range editFiles {
		i, path := i, path
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return nil
			default:
			}
			constructs, err := p.parseOneFile(path)
			if err != nil {
				outcomes[i] = parseOutcome{path: path, err: &FileResult{Path: path, Outcome: FileSkipped, Err: err}}
				return nil
			}
			outcomes[i] = parseOutcome{path: path, constructs: constructs}
			return nil
		})
	}
	_ = g.Wait() // per-file parse errors are captured per-outcome, never fatal to the batch

	byFile := make(map[string][]types.Construct, len(editFiles))
	var errs []FileResult
	for _, o := range outcomes {
		if o.err != nil {
			errs = append(errs, *o.err)
			continue
		}
		byFile[o.path] = o.constructs
	}
	return byFile, errs
}

func (p *Pipeline) parseOneFile(path string) ([]types.Construct, error) {
	data, hash, mtime, err := p.store.Read(path)
	if err != nil {
		return nil, err
	}
	return p.parses.GetOrParse(hash, mtime.UnixNano(), func() ([]types.Construct, error) {
		// A Parser is not safe for concurrent use, and parseEditFiles calls
		// this from several goroutines, so each parse gets its own.
		fileParser, err := parser.New()
		if err != nil {
			return nil, err
		}
		defer fileParser.Close()
		return fileParser.Parse(path, data)
	})
}

func flattenConstructs(byFile map[string][]types.Construct) []types.Construct {
	var out []types.Construct
	paths := make([]string, 0, len(byFile))
	for path := range byFile {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		out = append(out, byFile[path]...)
	}
	return out
}

// analyzeConstruct dispatches one construct through C6 (reference cache)
// wrapping C5/C4 (hybrid analyzer over backends), per spec.md §4.9 step 4.
func (p *Pipeline) analyzeConstruct(ctx context.Context, c *types.Construct, refFiles []string, corpusFingerprint uint64) (*types.ReferenceSet, error) {
	_, contentHash, _, err := p.store.Read(c.File)
	if err != nil {
		contentHash = 0
	}

	return p.refs.GetOrAnalyze(contentHash, c.Kind, c.FullyQualifiedName, c.Line, corpusFingerprint, func() (*types.ReferenceSet, error) {
		return p.analyzer.FindReferences(ctx, c, refFiles, p.readFile)
	})
}

func (p *Pipeline) readFile(path string) ([]byte, error) {
	data, _, _, err := p.store.Read(path)
	return data, err
}

// filterSelfReferences drops any Reference whose file equals the
// construct's own defining file, per spec.md §4.9 step 5.
func filterSelfReferences(raw map[types.ConstructIdentity]*types.ReferenceSet, constructs []types.Construct) map[types.ConstructIdentity]*types.ReferenceSet {
	fileByIdentity := make(map[types.ConstructIdentity]string, len(constructs))
	for i := range constructs {
		fileByIdentity[constructs[i].Identity()] = constructs[i].File
	}

	out := make(map[types.ConstructIdentity]*types.ReferenceSet, len(raw))
	for id, rs := range raw {
		definingFile := fileByIdentity[id]
		filtered := types.NewReferenceSet()
		if rs != nil {
			for _, ref := range rs.Refs() {
				if ref.File == definingFile {
					continue
				}
				filtered.Add(ref)
			}
		}
		out[id] = filtered
	}
	return out
}

// groupByFile produces file → list<(construct, ReferenceSet)>, per spec.md
// §4.9 step 6.
func groupByFile(constructs []types.Construct, refs map[types.ConstructIdentity]*types.ReferenceSet) map[string][]rewriter.ConstructRefs {
	grouped := make(map[string][]rewriter.ConstructRefs)
	for i := range constructs {
		c := &constructs[i]
		rs := refs[c.Identity()]
		if rs == nil {
			rs = types.NewReferenceSet()
		}
		grouped[c.File] = append(grouped[c.File], rewriter.ConstructRefs{Construct: c, Refs: rs})
	}
	return grouped
}

// rewriteFiles dispatches C8 one goroutine per defining file (never per
// construct within a file), satisfying "file bytes are a single owned
// resource": each file's []byte and edit list are captured by exactly one
// goroutine closure, per spec.md §5 and SPEC_FULL.md §5.
func (p *Pipeline) rewriteFiles(grouped map[string][]rewriter.ConstructRefs) []FileResult {
	paths := make([]string, 0, len(grouped))
	for path := range grouped {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	results := make([]FileResult, len(paths))
	var g errgroup.Group
	g.SetLimit(p.cfg.EffectiveWorkerCount())
	for i, path := range paths {
		i, path, pairs := i, path, grouped[path]
		g.Go(func() error {
			results[i] = p.rewriteOneFile(path, pairs)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (p *Pipeline) rewriteOneFile(path string, pairs []rewriter.ConstructRefs) FileResult {
	data, _, _, err := p.store.Read(path)
	if err != nil {
		return FileResult{Path: path, Outcome: FileSkipped, Err: err}
	}

	newContent, outcome, err := p.rewriter.RewriteFile(path, data, pairs)
	switch outcome {
	case rewriter.OutcomeUnchanged:
		return FileResult{Path: path, Outcome: FileUnchanged}
	case rewriter.OutcomeRolledBack:
		return FileResult{Path: path, Outcome: FileRolledBack, Err: err}
	}

	if p.cfg.DryRun {
		return FileResult{Path: path, Outcome: FileModified}
	}

	if p.cfg.SafeMode {
		if bkErr := p.store.Backup(path, data); bkErr != nil {
			debug.Warn("PIPELINE", "%s", errors.NewSourceIOError("backup", path, bkErr).Error())
		}
	}
	if err := p.store.WriteAtomic(path, newContent); err != nil {
		return FileResult{Path: path, Outcome: FileSkipped, Err: err}
	}
	return FileResult{Path: path, Outcome: FileModified}
}
