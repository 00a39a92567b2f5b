package rewriter

import (
	"fmt"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/docuse/internal/parser"
	"github.com/standardbeagle/docuse/internal/types"
	"github.com/standardbeagle/docuse/pkg/pathutil"
)

const (
	tripleDoubleQuote = `"""`
	tripleSingleQuote = `'''`
)

// buildDocstringEdit computes the replacement literal (or new literal, if
// the construct has no docstring yet) for one construct, per §4.8.2-§4.8.5.
// It returns changed=false when the construct's docstring already contains
// every path the new reference set names and nothing needs to move.
func (r *Rewriter) buildDocstringEdit(
	path string,
	c *types.Construct,
	refs *types.ReferenceSet,
	bodyNode *tree_sitter.Node,
	content []byte,
) (newLiteral []byte, literalRange types.ByteRange, changed bool, err error) {
	newPaths := r.referencePaths(refs)
	if len(newPaths) == 0 && c.ExistingDocstring == nil {
		return nil, types.ByteRange{}, false, nil
	}

	firstLine := firstLineByPath(refs, r.opts.ProjectRoot)
	blockOpts := blockOptions{IncludeLineNumbers: r.opts.IncludeLineNumbers, FirstLineByPath: firstLine}

	if c.ExistingDocstring == nil {
		if bodyNode == nil {
			return nil, types.ByteRange{}, false, fmt.Errorf("rewriter: %s: could not locate body for %s %q at line %d", path, c.Kind, c.Name, c.Line)
		}
		return r.buildNewDocstring(c, newPaths, blockOpts, bodyNode, content)
	}

	return r.buildMergedDocstring(c, newPaths, blockOpts)
}

// referencePaths converts a ReferenceSet into the deduplicated,
// project-relative, forward-slashed path list the usage block names.
func (r *Rewriter) referencePaths(refs *types.ReferenceSet) []string {
	if refs == nil {
		return nil
	}
	var paths []string
	for _, ref := range refs.Refs() {
		paths = append(paths, pathutil.ToPosixRelative(ref.File, r.opts.ProjectRoot))
	}
	return types.SortedPaths(paths)
}

// firstLineByPath maps each reference's posix-relative path to the first
// (smallest) line number seen for it, used by "(Line: N)" bullets.
func firstLineByPath(refs *types.ReferenceSet, root string) map[string]int {
	out := make(map[string]int)
	if refs == nil {
		return out
	}
	for _, ref := range refs.Refs() {
		p := pathutil.ToPosixRelative(ref.File, root)
		if existing, ok := out[p]; !ok || ref.Line < existing {
			out[p] = ref.Line
		}
	}
	return out
}

// buildNewDocstring creates a brand-new docstring for a construct that has
// none, per §4.8.4: a triple-quoted string as the body's first statement,
// indented to the body's own indentation, containing only the usage block,
// with the blank-line spacing §4.8.2 prescribes before the closing quotes.
func (r *Rewriter) buildNewDocstring(
	c *types.Construct,
	paths []string,
	blockOpts blockOptions,
	bodyNode *tree_sitter.Node,
	content []byte,
) ([]byte, types.ByteRange, bool, error) {
	if len(paths) == 0 {
		return nil, types.ByteRange{}, false, nil
	}

	indent := bodyIndent(bodyNode, content)
	intended := renderUsageBlock(paths, blockOpts)

	literal, err := emitLiteral("", tripleDoubleQuote, indent, strings.Split(intended, "\n"), intended)
	if err != nil {
		return nil, types.ByteRange{}, false, fmt.Errorf("rewriter: %s %q: %w", c.Kind, c.Name, err)
	}

	// insertAt sits immediately after the whitespace already present before
	// the body's first statement, so that whitespace serves as the literal's
	// own opening-quote indentation; one more indent is appended at the end
	// to restore it before the original first statement that follows.
	full := literal + "\n" + indent
	insertAt := firstStatementInsertPoint(bodyNode)
	return []byte(full), types.ByteRange{Start: insertAt, End: insertAt}, true, nil
}

// buildMergedDocstring merges the usage block into an existing docstring,
// per §4.8.3 (replace an existing "Used in:" block, union its paths with
// the new ones) or appends a fresh block if none exists yet, per §4.8.2's
// blank-line spacing rule. It also selects a safe quote style per §4.8.5.
func (r *Rewriter) buildMergedDocstring(
	c *types.Construct,
	newPaths []string,
	blockOpts blockOptions,
) ([]byte, types.ByteRange, bool, error) {
	info := c.ExistingDocstring
	lines := strings.Split(info.Text, "\n")

	existing, found := findUsageBlock(lines)
	var prefixLines, suffixLines []string
	var mergedPaths []string

	if found {
		mergedPaths = mergePaths(existing.paths, newPaths)
		prefixLines = lines[:existing.startLine]
		suffixLines = lines[existing.endLine:]
	} else {
		mergedPaths = mergePaths(nil, newPaths)
		prefixLines = lines
		suffixLines = nil
	}

	if len(mergedPaths) == 0 {
		return nil, types.ByteRange{}, false, nil
	}
	if found && sameStringSet(existing.paths, mergedPaths) {
		return nil, types.ByteRange{}, false, nil
	}

	block := renderUsageBlock(mergedPaths, blockOpts)

	var contentLines []string
	contentLines = append(contentLines, trimTrailingBlank(prefixLines)...)
	if len(contentLines) > 0 {
		contentLines = append(contentLines, "")
	}
	contentLines = append(contentLines, strings.Split(block, "\n")...)
	rest := trimLeadingBlank(suffixLines)
	if len(rest) > 0 {
		contentLines = append(contentLines, "")
		contentLines = append(contentLines, rest...)
	}
	intended := strings.Join(contentLines, "\n")

	preferred := info.RawQuote
	if preferred != tripleDoubleQuote && preferred != tripleSingleQuote {
		preferred = tripleDoubleQuote
	}

	literal, err := emitLiteral(info.Prefix, preferred, info.Indent, contentLines, intended)
	if err != nil {
		return nil, types.ByteRange{}, false, fmt.Errorf("rewriter: %s %q: %w", c.Kind, c.Name, err)
	}

	return []byte(literal), info.Literal, true, nil
}

// emitLiteral assembles a full string-literal (prefix, quote, indented body,
// closing quote) from contentLines and proves it by round-tripping the
// result through the same splitter/normalizer C2 uses to build a
// DocstringInfo, per §4.8.5's explicit "must not rely on naive string
// concatenation" clause: if the parsed-back normalized body does not equal
// intended, emission is refused rather than risking silent corruption.
func emitLiteral(prefix, quote, indent string, contentLines []string, intended string) (string, error) {
	// §4.8.2: the emitted block is followed by exactly one blank line before
	// the closing quotes; the raw literal carries it even though C2's own
	// normalization trims it back out of the parsed Text (that trim is what
	// the round-trip check below proves against).
	padded := append(append([]string(nil), trimTrailingBlank(contentLines)...), "")

	quote, escaped := selectQuoteStyle(quote, padded)

	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(quote)
	b.WriteString("\n")
	for _, line := range escaped {
		if line == "" {
			b.WriteString("\n")
			continue
		}
		b.WriteString(indent)
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString(indent)
	b.WriteString(quote)
	full := b.String()

	_, _, rawBody := parser.SplitStringLiteral(full)
	normalized := parser.NormalizeDocstringBody(rawBody)
	if normalized != intended {
		return "", fmt.Errorf("candidate docstring literal does not round-trip: got %q, want %q", normalized, intended)
	}
	return full, nil
}

// selectQuoteStyle picks a triple-quote delimiter that does not collide with
// any content line, preferring preferred, per §4.8.5. If both triple-quote
// styles would collide, it falls back to escaping every occurrence of the
// preferred delimiter within the content.
func selectQuoteStyle(preferred string, contentLines []string) (quote string, escapedLines []string) {
	joined := strings.Join(contentLines, "\n")
	if !strings.Contains(joined, preferred) {
		return preferred, contentLines
	}

	alt := tripleSingleQuote
	if preferred == tripleSingleQuote {
		alt = tripleDoubleQuote
	}
	if !strings.Contains(joined, alt) {
		return alt, contentLines
	}

	out := make([]string, len(contentLines))
	for i, line := range contentLines {
		out[i] = strings.ReplaceAll(line, preferred, `\`+preferred)
	}
	return preferred, out
}

func sameStringSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	normalize := func(ss []string) []string {
		out := make([]string, len(ss))
		for i, s := range ss {
			out[i] = pathutil.NormalizeSlashes(s)
		}
		return types.SortedPaths(out)
	}
	sa, sb := normalize(a), normalize(b)
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

func trimTrailingBlank(lines []string) []string {
	out := append([]string(nil), lines...)
	for len(out) > 0 && strings.TrimSpace(out[len(out)-1]) == "" {
		out = out[:len(out)-1]
	}
	return out
}

func trimLeadingBlank(lines []string) []string {
	out := append([]string(nil), lines...)
	for len(out) > 0 && strings.TrimSpace(out[0]) == "" {
		out = out[1:]
	}
	return out
}

// bodyIndent returns the indentation a new first statement inserted into
// bodyNode should use: the indentation of the body's existing first
// statement, or a conservative default if the body has no statement to read
// indentation from (e.g. a single-line `def f(): ...` header). A module body
// is never indented.
func bodyIndent(bodyNode *tree_sitter.Node, content []byte) string {
	if bodyNode != nil && bodyNode.Kind() == "module" {
		return ""
	}
	if bodyNode == nil || bodyNode.NamedChildCount() == 0 {
		return "    "
	}
	first := bodyNode.NamedChild(0)
	pos := int(first.StartByte())
	lineStart := pos
	for lineStart > 0 && content[lineStart-1] != '\n' {
		lineStart--
	}
	i := lineStart
	for i < pos && (content[i] == ' ' || content[i] == '\t') {
		i++
	}
	indent := string(content[lineStart:i])
	if indent == "" {
		return "    "
	}
	return indent
}

// firstStatementInsertPoint returns the byte offset at which a new
// docstring statement should be inserted: immediately before the body's
// existing first statement, so the new docstring becomes that statement's
// predecessor (and thus the construct's docstring, since it is now first).
func firstStatementInsertPoint(bodyNode *tree_sitter.Node) int {
	if bodyNode == nil || bodyNode.NamedChildCount() == 0 {
		if bodyNode != nil {
			return int(bodyNode.StartByte())
		}
		return 0
	}
	return int(bodyNode.NamedChild(0).StartByte())
}
