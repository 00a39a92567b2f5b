package analysis

import (
	"bufio"
	"bytes"
	"context"
	"regexp"
	"sync"

	"github.com/standardbeagle/docuse/internal/debug"
	"github.com/standardbeagle/docuse/internal/errors"
	"github.com/standardbeagle/docuse/internal/types"
)

// FastSymbolBackend finds references by a word-boundary regexp scan of each
// candidate file's lines for the construct's bare name. It has the lowest
// latency and the lowest precision of the four backends (no scoping: any
// word-boundary match counts, including unrelated identifiers that happen to
// share a name), making it the primary backend for large corpora and the
// first tier in most configured strategies.
type FastSymbolBackend struct {
	mu      sync.Mutex
	pattern map[string]*regexp.Regexp
}

// NewFastSymbolBackend returns a ready FastSymbolBackend.
func NewFastSymbolBackend() *FastSymbolBackend {
	return &FastSymbolBackend{pattern: make(map[string]*regexp.Regexp)}
}

func (b *FastSymbolBackend) Name() string { return "fast_symbol" }

func (b *FastSymbolBackend) wordPattern(name string) *regexp.Regexp {
	b.mu.Lock()
	defer b.mu.Unlock()
	if re, ok := b.pattern[name]; ok {
		return re
	}
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\b`)
	b.pattern[name] = re
	return re
}

func (b *FastSymbolBackend) FindReferences(ctx context.Context, construct *types.Construct, searchFiles []string, read ReadFunc) ([]types.Reference, error) {
	if construct == nil || construct.Name == "" {
		return nil, nil
	}
	re := b.wordPattern(construct.Name)

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
			if re.MatchString(text) {
				out = append(out, types.Reference{File: path, Line: line, ContextLine: text})
			}
		}
	}
	return out, nil
}
