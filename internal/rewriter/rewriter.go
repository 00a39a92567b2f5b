// Package rewriter implements the docstring rewriter (C8): lossless,
// byte-splice edits that insert or merge "Used in:" usage blocks into a
// file's existing docstrings, gated by a re-parse safety check. No API in
// this package reformats a file beyond the literal bytes of the docstrings
// it touches — everything else in the file is untouched, byte-for-byte.
package rewriter

import (
	"fmt"
	"sort"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"

	"github.com/standardbeagle/docuse/internal/debug"
	"github.com/standardbeagle/docuse/internal/errors"
	"github.com/standardbeagle/docuse/internal/types"
)

// BoundaryMode selects how strictly the rewriter interprets the edges of an
// existing "Used in:" block when merging (spec.md §9, SPEC_FULL.md §9.1's
// open question). Only BoundaryModeStrict is implemented: it is the reading
// spec.md §4.8.3 describes unambiguously (first blank line or first non-list
// line ends the block). A looser mode that tolerates interleaved prose was
// left unspecified by spec.md and is not guessed at here.
type BoundaryMode int

const (
	BoundaryModeStrict BoundaryMode = iota
	BoundaryModeLoose
)

// ConstructRefs pairs one construct from a file with the (already
// self-reference-filtered) set of references found for it, the rewriter's
// per-construct unit of work.
type ConstructRefs struct {
	Construct *types.Construct
	Refs      *types.ReferenceSet
}

// Options configures a Rewriter.
type Options struct {
	// ProjectRoot is used to compute the relative paths emitted into usage
	// blocks.
	ProjectRoot string
	// Boundary selects the merge-boundary interpretation; only
	// BoundaryModeStrict is implemented.
	Boundary BoundaryMode
	// IncludeLineNumbers appends "(Line: N)" to each bullet using the
	// smallest reference line for that path. Off by default.
	IncludeLineNumbers bool
	// Backup records whether the caller keeps a path+".bak" copy of the
	// original bytes. The Rewriter neither reads it nor writes any file; the
	// pipeline calls store.Backup from its own SafeMode setting.
	Backup bool
	// UpdateModuleDocs controls whether the Module construct's own docstring
	// receives a usage block. On by default.
	UpdateModuleDocs bool
}

// Rewriter applies docstring edits to one file's bytes at a time. It is not
// safe for concurrent use on the same file's bytes, matching the pipeline's
// "file bytes are a single owned resource" rule (spec.md §5); distinct
// Rewriters (or sequential calls) over distinct files may run concurrently.
type Rewriter struct {
	language *tree_sitter.Language
	opts     Options
}

// New returns a Rewriter configured with opts.
func New(opts Options) (*Rewriter, error) {
	if opts.Boundary == BoundaryModeLoose {
		return nil, fmt.Errorf("rewriter: loose boundary mode is not implemented")
	}
	return &Rewriter{language: tree_sitter.NewLanguage(tree_sitter_python.Language()), opts: opts}, nil
}

// Outcome reports what RewriteFile did to one file.
type Outcome int

const (
	OutcomeUnchanged Outcome = iota
	OutcomeModified
	OutcomeRolledBack
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeModified:
		return "modified"
	case OutcomeRolledBack:
		return "rolled-back"
	default:
		return "unknown"
	}
}

// RewriteFile computes the new bytes for path given its original content and
// the (construct, references) pairs affecting it, per spec.md §4.8. If no
// construct needs an update, the returned bytes equal content byte-for-byte
// and Outcome is OutcomeUnchanged. On a safety-gate failure the original
// bytes are returned with OutcomeRolledBack and a non-nil error describing
// the failure (the caller logs/records it; this function never panics and
// never returns a short or reformatted file).
func (r *Rewriter) RewriteFile(path string, content []byte, pairs []ConstructRefs) ([]byte, Outcome, error) {
	edits, anyChange, err := r.planEdits(path, content, pairs)
	if err != nil {
		return content, OutcomeRolledBack, err
	}
	if !anyChange {
		return content, OutcomeUnchanged, nil
	}

	newContent := applyEdits(content, edits)

	if err := r.safetyGate(newContent); err != nil {
		rewriteErr := errors.NewRewriteUnsafeError(path, err)
		debug.Warn("REWRITE", "%s", rewriteErr.Error())
		return content, OutcomeRolledBack, rewriteErr
	}

	return newContent, OutcomeModified, nil
}

// planEdits computes one splice edit per construct that needs a change,
// ordered by descending ByteRange.Start so earlier offsets stay valid as
// edits are applied back-to-front (spec.md §4.8, SPEC_FULL.md §4.8 step 4).
func (r *Rewriter) planEdits(path string, content []byte, pairs []ConstructRefs) ([]spliceEdit, bool, error) {
	root, err := r.parse(content)
	if err != nil {
		return nil, false, err
	}
	if root != nil {
		defer root.tree.Close()
	}

	var edits []spliceEdit
	anyChange := false

	for _, pair := range pairs {
		c := pair.Construct
		if c.Kind == types.KindModule && !r.opts.UpdateModuleDocs {
			continue
		}

		var bodyNode *tree_sitter.Node
		if root != nil {
			bodyNode = locate(root.node, content, c)
		}

		newLiteral, literalRange, changed, err := r.buildDocstringEdit(path, c, pair.Refs, bodyNode, content)
		if err != nil {
			return nil, false, err
		}
		if !changed {
			continue
		}
		anyChange = true
		edits = append(edits, spliceEdit{Range: literalRange, NewBytes: newLiteral})
	}

	sort.Slice(edits, func(i, j int) bool { return edits[i].Range.Start > edits[j].Range.Start })
	return edits, anyChange, nil
}

// parsedRoot bundles a parsed tree with its root node so the caller can defer
// tree.Close() exactly once.
type parsedRoot struct {
	tree *tree_sitter.Tree
	node *tree_sitter.Node
}

func (r *Rewriter) parse(content []byte) (*parsedRoot, error) {
	parser := tree_sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(r.language); err != nil {
		return nil, fmt.Errorf("configure parser language: %w", err)
	}

	buf := make([]byte, len(content))
	copy(buf, content)

	tree := parser.Parse(buf, nil)
	if tree == nil {
		return nil, fmt.Errorf("tree-sitter returned no tree")
	}
	root := tree.RootNode()
	return &parsedRoot{tree: tree, node: root}, nil
}

// safetyGate re-parses newContent and reports a hard-error failure, per
// spec.md §4.8.6. It uses the same unrecoverable-parse heuristic as C2.
func (r *Rewriter) safetyGate(newContent []byte) error {
	parsed, err := r.parse(newContent)
	if err != nil {
		return err
	}
	defer parsed.tree.Close()

	if parsed.node.NamedChildCount() == 1 {
		only := parsed.node.NamedChild(0)
		if only != nil && only.Kind() == "ERROR" &&
			only.StartByte() == parsed.node.StartByte() && only.EndByte() == parsed.node.EndByte() {
			return fmt.Errorf("rewritten content does not parse")
		}
	}
	return nil
}

// spliceEdit is one (range, replacement) pair to apply to a file's bytes.
type spliceEdit struct {
	Range    types.ByteRange
	NewBytes []byte
}

// applyEdits applies edits to content back-to-front (highest Start first, as
// planEdits already sorted them), so earlier byte offsets remain valid.
func applyEdits(content []byte, edits []spliceEdit) []byte {
	out := make([]byte, len(content))
	copy(out, content)
	for _, e := range edits {
		var buf []byte
		buf = append(buf, out[:e.Range.Start]...)
		buf = append(buf, e.NewBytes...)
		buf = append(buf, out[e.Range.End:]...)
		out = buf
	}
	return out
}
