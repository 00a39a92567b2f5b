package rewriter

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/standardbeagle/docuse/pkg/pathutil"
)

// usageBlockHeader is the case-sensitive marker spec.md §4.8.3 matches at the
// start of a (dedented) line.
const usageBlockHeader = "Used in:"

var bulletLine = regexp.MustCompile(`^\s*-\s+(.+)$`)

// bulletLineSuffix matches the optional trailing "(Line: N)" annotation
// renderUsageBlock appends when IncludeLineNumbers is set, so a bullet
// re-read from an existing docstring yields the bare path, not the
// annotated display string.
var bulletLineSuffix = regexp.MustCompile(`\s+\(Line:\s*\d+\)$`)

// bulletPath strips a bulletLine capture down to its bare path, discarding
// any "(Line: N)" suffix so it compares equal to a freshly computed path.
func bulletPath(capture string) string {
	return bulletLineSuffix.ReplaceAllString(strings.TrimSpace(capture), "")
}

// usageBlock is a located "Used in:" section within a normalized docstring
// body: its line range (inclusive of the header line) and the paths its
// bullets name.
type usageBlock struct {
	startLine int
	endLine   int // exclusive
	paths     []string
}

// findUsageBlock scans body's lines (already normalized per C2's dedent
// rules) for a "Used in:" header and returns its boundaries and bullet
// paths, per §4.8.3's boundary rule: the block runs from the header to the
// first blank line, the first non-list line, or the end of the docstring,
// whichever comes first.
func findUsageBlock(lines []string) (usageBlock, bool) {
	start := -1
	for i, line := range lines {
		if strings.TrimSpace(line) == usageBlockHeader {
			start = i
			break
		}
	}
	if start == -1 {
		return usageBlock{}, false
	}

	var paths []string
	end := len(lines)
	for i := start + 1; i < len(lines); i++ {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			end = i
			break
		}
		m := bulletLine.FindStringSubmatch(line)
		if m == nil {
			end = i
			break
		}
		paths = append(paths, bulletPath(m[1]))
	}

	return usageBlock{startLine: start, endLine: end, paths: paths}, true
}

// blockOptions configures renderUsageBlock's output.
type blockOptions struct {
	IncludeLineNumbers bool
	// FirstLineByPath supplies the line number to display per path when
	// IncludeLineNumbers is set.
	FirstLineByPath map[string]int
}

// renderUsageBlock builds the canonical "Used in:" block text (no leading or
// trailing blank line — callers splice those per §4.8.2's spacing rule) from
// a deduplicated, sorted set of paths.
func renderUsageBlock(paths []string, opts blockOptions) string {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)

	var b strings.Builder
	b.WriteString(usageBlockHeader)
	for _, p := range sorted {
		b.WriteByte('\n')
		b.WriteString("- ")
		b.WriteString(p)
		if opts.IncludeLineNumbers {
			if line, ok := opts.FirstLineByPath[p]; ok {
				b.WriteString(" (Line: ")
				b.WriteString(strconv.Itoa(line))
				b.WriteString(")")
			}
		}
	}
	return b.String()
}

// mergePaths takes the union of old and new paths, deduplicating by
// normalized forward-slash form per §4.8.3.
func mergePaths(old, next []string) []string {
	seen := make(map[string]bool, len(old)+len(next))
	var out []string
	for _, p := range append(append([]string(nil), old...), next...) {
		norm := pathutil.NormalizeSlashes(p)
		if seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, norm)
	}
	return out
}
