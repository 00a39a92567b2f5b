// Package parser implements the parser (C2): extraction of named constructs —
// modules, classes, functions, and methods — together with their locations,
// fully-qualified names, and existing docstrings, from one source file at a
// time. It is tolerant of syntax errors: a partially-broken file still yields
// whatever constructs can be identified, and a file that cannot be parsed at
// all still yields its Module construct.
package parser

import (
	"fmt"
	"path/filepath"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"

	"github.com/standardbeagle/docuse/internal/debug"
	"github.com/standardbeagle/docuse/internal/errors"
	"github.com/standardbeagle/docuse/internal/types"
)

const queryString = `
(function_definition
  name: (identifier) @function.name
  body: (block) @function.body) @function
(class_definition
  name: (identifier) @class.name
  body: (block) @class.body) @class
`

// Parser extracts constructs from source bytes of the target language. A
// Parser is not safe for concurrent use by multiple goroutines — callers
// parallelizing across files (per §5) construct one Parser per goroutine.
type Parser struct {
	ts    *tree_sitter.Parser
	query *tree_sitter.Query
}

// New returns a ready-to-use Parser configured for the target language.
func New() (*Parser, error) {
	ts := tree_sitter.NewParser()
	language := tree_sitter.NewLanguage(tree_sitter_python.Language())
	if err := ts.SetLanguage(language); err != nil {
		return nil, fmt.Errorf("configure parser language: %w", err)
	}

	query, err := tree_sitter.NewQuery(language, queryString)
	if err != nil {
		return nil, fmt.Errorf("compile construct query: %w", err)
	}

	return &Parser{ts: ts, query: query}, nil
}

// Close releases the underlying tree-sitter resources.
func (p *Parser) Close() {
	if p.query != nil {
		p.query.Close()
	}
	if p.ts != nil {
		p.ts.Close()
	}
}

// Parse extracts every construct in path's content, in source order, always
// including a leading Module construct. On an entirely unrecoverable parse it
// logs a ParseHard warning and returns only the Module construct; on a
// partial parse error it logs a ParseSoft warning and returns whatever
// constructs it can identify.
func (p *Parser) Parse(path string, content []byte) ([]types.Construct, error) {
	// tree-sitter's C library mutates the buffer it's handed; give it its own
	// copy so callers' content slices stay stable across concurrent parses.
	buf := make([]byte, len(content))
	copy(buf, content)

	tree := p.ts.Parse(buf, nil)
	if tree == nil {
		err := errors.NewParseHardError(path, fmt.Errorf("tree-sitter returned no tree"))
		debug.Warn("PARSE", "%s", err.Error())
		return []types.Construct{moduleConstruct(path, content, nil, buf)}, nil
	}
	defer tree.Close()

	root := tree.RootNode()

	if isUnrecoverable(root) {
		err := errors.NewParseHardError(path, fmt.Errorf("no top-level statement could be located"))
		debug.Warn("PARSE", "%s", err.Error())
		return []types.Construct{moduleConstruct(path, content, nil, buf)}, nil
	}

	if root.HasError() {
		warn := errors.NewParseSoftWarning(path, 1, 0, "file contains recoverable syntax errors; partial constructs used")
		debug.Warn("PARSE", "%s", warn.Error())
	}

	constructs := []types.Construct{moduleConstruct(path, content, root, buf)}
	constructs = append(constructs, p.extractDefinitions(path, root, buf)...)

	return constructs, nil
}

// isUnrecoverable reports whether the root node contains no usable top-level
// statement at all — the single case where even the Module construct has
// nothing beneath it but a single error node spanning the whole file.
func isUnrecoverable(root *tree_sitter.Node) bool {
	if root.NamedChildCount() == 0 {
		return false // empty file: valid, just has no statements
	}
	if root.NamedChildCount() == 1 {
		only := root.NamedChild(0)
		if only != nil && only.Kind() == "ERROR" &&
			only.StartByte() == root.StartByte() && only.EndByte() == root.EndByte() {
			return true
		}
	}
	return false
}

func moduleConstruct(path string, content []byte, root *tree_sitter.Node, buf []byte) types.Construct {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	c := types.Construct{
		Name:               name,
		Kind:               types.KindModule,
		File:               path,
		Line:               1,
		FullyQualifiedName: name,
		Span:               types.ByteRange{Start: 0, End: len(content)},
	}

	if root == nil {
		return c
	}

	if doc := firstStatementDocstring(root, buf); doc != nil {
		c.ExistingDocstring = doc
	}

	return c
}

// extractDefinitions runs the construct query over root and builds one
// Construct per function_definition/class_definition match.
func (p *Parser) extractDefinitions(path string, root *tree_sitter.Node, content []byte) []types.Construct {
	qc := tree_sitter.NewQueryCursor()
	defer qc.Close()

	matches := qc.Matches(p.query, root, content)
	captureNames := p.query.CaptureNames()

	var out []types.Construct
	for {
		match := matches.Next()
		if match == nil {
			break
		}
		for _, c := range match.Captures {
			name := captureNames[c.Index]
			node := c.Node

			switch name {
			case "function":
				out = append(out, p.buildConstruct(path, &node, content, types.KindFunction))
			case "class":
				out = append(out, p.buildConstruct(path, &node, content, types.KindClass))
			}
		}
	}
	return out
}

// scopeFrame is one enclosing named scope, outermost-first once reversed.
type scopeFrame struct {
	kind types.ConstructKind
	name string
}

func (p *Parser) buildConstruct(path string, node *tree_sitter.Node, content []byte, kind types.ConstructKind) types.Construct {
	nameNode := node.ChildByFieldName("name")
	name := ""
	if nameNode != nil {
		name = string(content[nameNode.StartByte():nameNode.EndByte()])
	}

	frames := ancestorScopes(node, content)

	if kind == types.KindFunction && len(frames) > 0 && frames[len(frames)-1].kind == types.KindClass {
		kind = types.KindMethod
	}

	fqn := fullyQualifiedName(frames, name)

	c := types.Construct{
		Name:               name,
		Kind:               kind,
		File:               path,
		Line:               int(node.StartPosition().Row) + 1,
		FullyQualifiedName: fqn,
		Span: types.ByteRange{
			Start: int(node.StartByte()),
			End:   int(node.EndByte()),
		},
	}

	if body := node.ChildByFieldName("body"); body != nil {
		c.ExistingDocstring = firstStatementDocstring(body, content)
	}

	return c
}

// ancestorScopes walks node.Parent() upward, collecting every enclosing
// class_definition/function_definition, outermost-first.
func ancestorScopes(node *tree_sitter.Node, content []byte) []scopeFrame {
	var frames []scopeFrame
	cur := node.Parent()
	for cur != nil {
		switch cur.Kind() {
		case "class_definition":
			if n := cur.ChildByFieldName("name"); n != nil {
				frames = append(frames, scopeFrame{kind: types.KindClass, name: string(content[n.StartByte():n.EndByte()])})
			}
		case "function_definition":
			if n := cur.ChildByFieldName("name"); n != nil {
				frames = append(frames, scopeFrame{kind: types.KindFunction, name: string(content[n.StartByte():n.EndByte()])})
			}
		}
		cur = cur.Parent()
	}
	for i, j := 0, len(frames)-1; i < j; i, j = i+1, j-1 {
		frames[i], frames[j] = frames[j], frames[i]
	}
	return frames
}

func fullyQualifiedName(frames []scopeFrame, name string) string {
	parts := make([]string, 0, len(frames)+1)
	for _, f := range frames {
		parts = append(parts, f.name)
	}
	parts = append(parts, name)
	return strings.Join(parts, ".")
}

// firstStatementDocstring inspects body's first named child: if it is an
// expression_statement whose sole child is a string literal, it is the
// construct's docstring.
func firstStatementDocstring(body *tree_sitter.Node, content []byte) *types.DocstringInfo {
	if body == nil || body.NamedChildCount() == 0 {
		return nil
	}
	first := body.NamedChild(0)
	if first == nil || first.Kind() != "expression_statement" {
		return nil
	}
	if first.NamedChildCount() != 1 {
		return nil
	}
	strNode := first.NamedChild(0)
	if strNode == nil || strNode.Kind() != "string" {
		return nil
	}
	return buildDocstringInfo(content, strNode)
}
