package analysis

import (
	"bufio"
	"bytes"
	"context"
	"regexp"
	"strings"

	"github.com/hbollon/go-edlib"

	"github.com/standardbeagle/docuse/internal/debug"
	"github.com/standardbeagle/docuse/internal/errors"
	"github.com/standardbeagle/docuse/internal/types"
)

// lintSimilarityThreshold is the minimum Jaro-Winkler similarity an
// identifier token near a substring match must reach to be kept. Below this,
// the match is pruned as an obvious non-match before it ever reaches a more
// expensive backend.
const lintSimilarityThreshold = 0.85

var identifierToken = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// LintDrivenBackend is the cheapest, lowest-recall backend: a case-sensitive
// substring grep refined by go-edlib's Jaro-Winkler similarity scoring: a
// line containing the name is kept when any identifier token on that line
// equals the name or scores at least lintSimilarityThreshold against it,
// pruning substring hits that merely contain the name as a fragment of an
// unrelated identifier (e.g. "log" inside "catalogue"). Per spec.md §4.4 its results
// are never relied on alone for recall; it exists to prune and to serve as
// the cheap first tier of a tiered strategy.
type LintDrivenBackend struct{}

// NewLintDrivenBackend returns a ready LintDrivenBackend.
func NewLintDrivenBackend() *LintDrivenBackend { return &LintDrivenBackend{} }

func (b *LintDrivenBackend) Name() string { return "lint_driven" }

func (b *LintDrivenBackend) FindReferences(ctx context.Context, construct *types.Construct, searchFiles []string, read ReadFunc) ([]types.Reference, error) {
	if construct == nil || construct.Name == "" {
		return nil, nil
	}

	var out []types.Reference
	for _, path := range searchFiles {
		if ctx.Err() != nil {
			return out, nil
		}

		content, err := read(path)
		if err != nil {
			warn := errors.NewBackendFailureWarning(b.Name(), err)
			debug.Warn("ANALYSIS", "%s", warn.Error())
			continue
		}

		scanner := bufio.NewScanner(bytes.NewReader(content))
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		line := 0
		for scanner.Scan() {
			line++
			text := scanner.Text()
			if !strings.Contains(text, construct.Name) {
				continue
			}
			for _, token := range identifierToken.FindAllString(text, -1) {
				if token == construct.Name {
					out = append(out, types.Reference{File: path, Line: line, ContextLine: text})
					break
				}
				score, err := edlib.StringsSimilarity(token, construct.Name, edlib.JaroWinkler)
				if err == nil && float64(score) >= lintSimilarityThreshold {
					out = append(out, types.Reference{File: path, Line: line, ContextLine: text})
					break
				}
			}
		}
	}
	return out, nil
}
