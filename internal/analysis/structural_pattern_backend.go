package analysis

import (
	"context"
	"fmt"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"

	"github.com/standardbeagle/docuse/internal/debug"
	"github.com/standardbeagle/docuse/internal/errors"
	"github.com/standardbeagle/docuse/internal/types"
)

// structuralQuery matches the syntactic shapes a reference to a named
// construct can take: a direct call, a call through an attribute
// (obj.name()), and either import form naming it. An attribute access that
// is not called is not matched.
const structuralQuery = `
(call
  function: (identifier) @call.name) @call
(call
  function: (attribute
    attribute: (identifier) @attr.name)) @attr
(import_from_statement
  name: (dotted_name (identifier) @import.name)) @import
(import_statement
  name: (dotted_name (identifier) @import.name)) @import
`

// StructuralPatternBackend matches call/import syntactic shapes via a
// dedicated tree-sitter Query, independent of the construct-extraction query
// C2 uses. It complements DeepSemanticBackend by catching reference shapes
// (plain calls, bare imports) that do not require full scope resolution.
type StructuralPatternBackend struct {
	language *tree_sitter.Language
	query    *tree_sitter.Query
}

// NewStructuralPatternBackend compiles the structural query once for reuse
// across every FindReferences call.
func NewStructuralPatternBackend() (*StructuralPatternBackend, error) {
	language := tree_sitter.NewLanguage(tree_sitter_python.Language())
	query, err := tree_sitter.NewQuery(language, structuralQuery)
	if err != nil {
		return nil, fmt.Errorf("compile structural pattern query: %w", err)
	}
	return &StructuralPatternBackend{language: language, query: query}, nil
}

// Close releases the compiled query.
func (b *StructuralPatternBackend) Close() {
	if b.query != nil {
		b.query.Close()
	}
}

func (b *StructuralPatternBackend) Name() string { return "structural_pattern" }

func (b *StructuralPatternBackend) FindReferences(ctx context.Context, construct *types.Construct, searchFiles []string, read ReadFunc) ([]types.Reference, error) {
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

		refs, err := b.scanFile(path, content, construct.Name)
		if err != nil {
			warn := errors.NewBackendFailureWarning(b.Name(), err)
			debug.Warn("ANALYSIS", "%s", warn.Error())
			continue
		}
		out = append(out, refs...)
	}
	return out, nil
}

func (b *StructuralPatternBackend) scanFile(path string, content []byte, name string) ([]types.Reference, error) {
	parser := tree_sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(b.language); err != nil {
		return nil, err
	}

	buf := make([]byte, len(content))
	copy(buf, content)

	tree := parser.Parse(buf, nil)
	if tree == nil {
		return nil, nil
	}
	defer tree.Close()

	qc := tree_sitter.NewQueryCursor()
	defer qc.Close()

	captureNames := b.query.CaptureNames()
	matches := qc.Matches(b.query, tree.RootNode(), buf)

	var out []types.Reference
	for {
		match := matches.Next()
		if match == nil {
			break
		}
		for _, c := range match.Captures {
			captureName := captureNames[c.Index]
			if captureName != "call.name" && captureName != "attr.name" && captureName != "import.name" {
				continue
			}
			node := c.Node
			text := string(buf[node.StartByte():node.EndByte()])
			if text != name {
				continue
			}
			line := int(node.StartPosition().Row) + 1
			out = append(out, types.Reference{File: path, Line: line, Column: int(node.StartPosition().Column)})
		}
	}
	return out, nil
}
