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

// DeepSemanticBackend re-parses each candidate file with the same tree-sitter
// pipeline C2 uses and walks call/attribute expressions whose callee or base
// resolves — by simple name, and by import alias where one is in scope — to
// the construct, plus class_definition superclass argument lists for
// inheritance references. It is the most accurate backend across dynamic
// patterns (decorators, re-exports via aliasing) and the most expensive.
type DeepSemanticBackend struct {
	language *tree_sitter.Language
}

// NewDeepSemanticBackend returns a ready DeepSemanticBackend.
func NewDeepSemanticBackend() *DeepSemanticBackend {
	return &DeepSemanticBackend{language: tree_sitter.NewLanguage(tree_sitter_python.Language())}
}

func (b *DeepSemanticBackend) Name() string { return "deep_semantic" }

func (b *DeepSemanticBackend) FindReferences(ctx context.Context, construct *types.Construct, searchFiles []string, read ReadFunc) ([]types.Reference, error) {
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

func (b *DeepSemanticBackend) scanFile(path string, content []byte, name string) ([]types.Reference, error) {
	parser := tree_sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(b.language); err != nil {
		return nil, fmt.Errorf("configure parser language: %w", err)
	}

	buf := make([]byte, len(content))
	copy(buf, content)

	tree := parser.Parse(buf, nil)
	if tree == nil {
		return nil, nil
	}
	defer tree.Close()

	aliases := importAliasesFor(tree.RootNode(), buf, name)

	var out []types.Reference
	walk(tree.RootNode(), func(node *tree_sitter.Node) {
		switch node.Kind() {
		case "call":
			if calleeName, calleeNode, ok := calleeIdentifier(node, buf); ok && matchesNameOrAlias(calleeName, name, aliases) {
				out = append(out, referenceAt(path, calleeNode, buf))
			}
		case "attribute":
			if attrNode := node.ChildByFieldName("attribute"); attrNode != nil {
				if string(buf[attrNode.StartByte():attrNode.EndByte()]) == name {
					out = append(out, referenceAt(path, attrNode, buf))
				}
			}
		case "class_definition":
			for _, baseNode := range superclassNodes(node) {
				baseName := string(buf[baseNode.StartByte():baseNode.EndByte()])
				if matchesNameOrAlias(baseName, name, aliases) {
					out = append(out, referenceAt(path, baseNode, buf))
				}
			}
		}
	})
	return out, nil
}

func referenceAt(path string, node *tree_sitter.Node, content []byte) types.Reference {
	line := int(node.StartPosition().Row) + 1
	return types.Reference{File: path, Line: line, Column: int(node.StartPosition().Column)}
}

// calleeIdentifier returns the simple name a call expression targets: either
// a bare identifier call (f()) or the trailing attribute of a method/module
// call (mod.f(), obj.f()).
func calleeIdentifier(call *tree_sitter.Node, content []byte) (string, *tree_sitter.Node, bool) {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return "", nil, false
	}
	switch fn.Kind() {
	case "identifier":
		return string(content[fn.StartByte():fn.EndByte()]), fn, true
	case "attribute":
		attr := fn.ChildByFieldName("attribute")
		if attr == nil {
			return "", nil, false
		}
		return string(content[attr.StartByte():attr.EndByte()]), attr, true
	default:
		return "", nil, false
	}
}

// superclassNodes returns the identifier/attribute nodes in a class
// definition's base-class argument list.
func superclassNodes(class *tree_sitter.Node) []*tree_sitter.Node {
	args := class.ChildByFieldName("superclasses")
	if args == nil {
		return nil
	}
	var out []*tree_sitter.Node
	count := int(args.NamedChildCount())
	for i := 0; i < count; i++ {
		child := args.NamedChild(uint(i))
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "identifier", "attribute":
			out = append(out, child)
		}
	}
	return out
}

// importAliasesFor scans the file's import statements for an alias bound to
// name, so `from mod import f as g` (or `import mod.f as g`) lets `g()`
// still resolve. Aliases of the enclosing module are not recorded.
func importAliasesFor(root *tree_sitter.Node, content []byte, name string) map[string]bool {
	aliases := make(map[string]bool)
	walk(root, func(node *tree_sitter.Node) {
		if node.Kind() != "aliased_import" {
			return
		}
		nameNode := node.ChildByFieldName("name")
		aliasNode := node.ChildByFieldName("alias")
		if nameNode == nil || aliasNode == nil {
			return
		}
		imported := string(content[nameNode.StartByte():nameNode.EndByte()])
		if imported == name || hasSuffixDotted(imported, name) {
			aliases[string(content[aliasNode.StartByte():aliasNode.EndByte()])] = true
		}
	})
	return aliases
}

func hasSuffixDotted(dotted, name string) bool {
	n := len(dotted) - len(name)
	return n > 0 && dotted[n:] == name && dotted[n-1] == '.'
}

func matchesNameOrAlias(candidate, name string, aliases map[string]bool) bool {
	return candidate == name || aliases[candidate]
}

// walk performs a pre-order traversal of every descendant of node.
func walk(node *tree_sitter.Node, visit func(*tree_sitter.Node)) {
	if node == nil {
		return
	}
	visit(node)
	count := int(node.NamedChildCount())
	for i := 0; i < count; i++ {
		walk(node.NamedChild(uint(i)), visit)
	}
}
