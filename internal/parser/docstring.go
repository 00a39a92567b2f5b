package parser

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/docuse/internal/types"
)

// tripleQuotes are the two triple-quote delimiters the target language
// recognizes for docstrings.
const (
	tripleDouble = `"""`
	tripleSingle = `'''`
)

// buildDocstringInfo extracts the raw prefix/quote/content of a string
// literal node and normalizes its text per §4.2's docstring normalization
// rules, retaining the raw details needed to re-emit a faithful edit.
func buildDocstringInfo(content []byte, strNode *tree_sitter.Node) *types.DocstringInfo {
	start := int(strNode.StartByte())
	end := int(strNode.EndByte())
	raw := string(content[start:end])

	prefix, quote, body := splitStringLiteral(raw)
	text := normalizeDocstringBody(body)
	indent := leadingIndent(content, start)

	return &types.DocstringInfo{
		Text:     text,
		RawQuote: quote,
		Prefix:   prefix,
		Indent:   indent,
		Literal:  types.ByteRange{Start: start, End: end},
	}
}

// SplitStringLiteral is the exported form of splitStringLiteral, reused by
// the rewriter to decompose the literal it is about to replace.
func SplitStringLiteral(raw string) (prefix, quote, body string) {
	return splitStringLiteral(raw)
}

// NormalizeDocstringBody is the exported form of normalizeDocstringBody,
// reused by the rewriter's literal-builder to round-trip-validate a
// candidate docstring body before emitting it (spec.md §4.8.5's "must not
// rely on naive string concatenation" requirement: the builder must prove
// its output would normalize back to the content it intended to write).
func NormalizeDocstringBody(body string) string {
	return normalizeDocstringBody(body)
}

// splitStringLiteral separates a raw string-literal's source text into its
// prefix (r/b/f/u, any case/combination), its quote delimiter (one of `"""`,
// `'''`, `"`, `'`), and the inner body between the delimiters.
func splitStringLiteral(raw string) (prefix, quote, body string) {
	i := 0
	for i < len(raw) && isStringPrefixByte(raw[i]) {
		i++
	}
	prefix = raw[:i]
	rest := raw[i:]

	switch {
	case strings.HasPrefix(rest, tripleDouble):
		quote = tripleDouble
	case strings.HasPrefix(rest, tripleSingle):
		quote = tripleSingle
	case strings.HasPrefix(rest, `"`):
		quote = `"`
	case strings.HasPrefix(rest, `'`):
		quote = `'`
	default:
		return prefix, "", rest
	}

	body = rest[len(quote):]
	if strings.HasSuffix(body, quote) {
		body = body[:len(body)-len(quote)]
	}
	return prefix, quote, body
}

func isStringPrefixByte(b byte) bool {
	switch b {
	case 'r', 'R', 'b', 'B', 'f', 'F', 'u', 'U':
		return true
	default:
		return false
	}
}

// normalizeDocstringBody implements §4.2's normalization: strip the outer
// quotes (already done by the caller), dedent every line after the first by
// the minimum common leading whitespace among non-blank continuation lines,
// trim trailing whitespace on every line, and drop leading and trailing
// blank lines.
func normalizeDocstringBody(body string) string {
	lines := strings.Split(body, "\n")
	if len(lines) > 1 {
		indent := minCommonIndent(lines[1:])
		for i := 1; i < len(lines); i++ {
			lines[i] = strings.TrimPrefix(lines[i], indent)
		}
	}
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " \t")
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for len(lines) > 0 && lines[0] == "" {
		lines = lines[1:]
	}
	return strings.Join(lines, "\n")
}

// minCommonIndent returns the longest whitespace prefix shared by every
// non-blank line.
func minCommonIndent(lines []string) string {
	var common string
	first := true
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		ind := leadingWhitespace(line)
		if first {
			common = ind
			first = false
			continue
		}
		common = commonPrefix(common, ind)
	}
	return common
}

func leadingWhitespace(s string) string {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	return s[:i]
}

func commonPrefix(a, b string) string {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return a[:i]
}

// leadingIndent returns the whitespace preceding pos on its own line, used to
// align a re-emitted closing delimiter with the original indentation.
func leadingIndent(content []byte, pos int) string {
	lineStart := pos
	for lineStart > 0 && content[lineStart-1] != '\n' {
		lineStart--
	}
	return leadingWhitespace(string(content[lineStart:pos]))
}
