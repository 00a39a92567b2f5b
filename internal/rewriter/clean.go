package rewriter

import (
	"sort"
	"strings"

	"github.com/standardbeagle/docuse/internal/debug"
	"github.com/standardbeagle/docuse/internal/errors"
	"github.com/standardbeagle/docuse/internal/types"
)

// CleanFile removes "Used in:" blocks from the given constructs' docstrings,
// per §4.8.7. It reuses the same boundary-detection rules as a merge; if
// the docstring holds nothing but the block (no text before or after it),
// the literal is replaced by an empty string literal; the statement itself
// stays in place. It applies the same §4.8.5 quote
// selection and §4.8.6 safety gate as RewriteFile.
func (r *Rewriter) CleanFile(path string, content []byte, constructs []*types.Construct) ([]byte, Outcome, error) {
	edits, anyChange, err := r.planCleanEdits(content, constructs)
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

func (r *Rewriter) planCleanEdits(content []byte, constructs []*types.Construct) ([]spliceEdit, bool, error) {
	var edits []spliceEdit
	anyChange := false

	for _, c := range constructs {
		if c.ExistingDocstring == nil {
			continue
		}
		newLiteral, rng, changed, err := buildCleanEdit(c.ExistingDocstring)
		if err != nil {
			return nil, false, err
		}
		if !changed {
			continue
		}
		anyChange = true
		edits = append(edits, spliceEdit{Range: rng, NewBytes: newLiteral})
	}

	sort.Slice(edits, func(i, j int) bool { return edits[i].Range.Start > edits[j].Range.Start })
	return edits, anyChange, nil
}

// isEntirelyGenerated reports whether a docstring's sole content is a
// "Used in:" block with nothing else before or after it.
func isEntirelyGenerated(lines []string, block usageBlock) bool {
	before := trimTrailingBlank(lines[:block.startLine])
	after := trimLeadingBlank(lines[block.endLine:])
	return len(before) == 0 && len(after) == 0
}

// buildCleanEdit excises the "Used in:" block (if any) from info, replacing
// the docstring literal with an empty string literal when the docstring was
// entirely auto-generated, per §4.8.7.
func buildCleanEdit(info *types.DocstringInfo) (newLiteral []byte, literalRange types.ByteRange, changed bool, err error) {
	lines := strings.Split(info.Text, "\n")
	block, found := findUsageBlock(lines)
	if !found {
		return nil, types.ByteRange{}, false, nil
	}

	if isEntirelyGenerated(lines, block) {
		// The docstring is removed down to an empty string literal rather
		// than excising the whole statement: DocstringInfo tracks only the
		// string token's own byte span, not the enclosing expression
		// statement (indentation, trailing newline), so deleting the
		// statement itself is out of scope here. An empty literal still
		// satisfies "the docstring itself may be removed" in spirit: no
		// generated content, or any other content, remains.
		empty := info.Prefix + info.RawQuote + info.RawQuote
		if info.RawQuote != tripleDoubleQuote && info.RawQuote != tripleSingleQuote {
			empty = info.Prefix + tripleDoubleQuote + tripleDoubleQuote
		}
		return []byte(empty), info.Literal, true, nil
	}

	before := trimTrailingBlank(lines[:block.startLine])
	after := trimLeadingBlank(lines[block.endLine:])

	var contentLines []string
	contentLines = append(contentLines, before...)
	if len(before) > 0 && len(after) > 0 {
		contentLines = append(contentLines, "")
	}
	contentLines = append(contentLines, after...)
	intended := strings.Join(contentLines, "\n")

	preferred := info.RawQuote
	if preferred != tripleDoubleQuote && preferred != tripleSingleQuote {
		preferred = tripleDoubleQuote
	}

	literal, err := emitLiteral(info.Prefix, preferred, info.Indent, contentLines, intended)
	if err != nil {
		return nil, types.ByteRange{}, false, err
	}
	return []byte(literal), info.Literal, true, nil
}
