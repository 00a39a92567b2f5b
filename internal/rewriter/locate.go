package rewriter

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/docuse/internal/types"
)

// locate finds the body node whose first statement holds (or should hold)
// construct's docstring, matching on (kind, name, line) per spec.md §4.8.1.
// For a Module construct, the whole file is the body. For a Class/Function/
// Method construct, multiple definitions can share a line (same-line
// overloads via decorators, or a one-line `def f(): ...`); among candidates
// whose header line matches, the one whose byte span most tightly contains
// the target line wins.
func locate(root *tree_sitter.Node, content []byte, construct *types.Construct) *tree_sitter.Node {
	if construct.Kind == types.KindModule {
		return root
	}

	var best *tree_sitter.Node
	var bestSpan int
	walkDefs(root, func(node *tree_sitter.Node, kind types.ConstructKind) {
		if kind != constructKindForDefNode(node) {
			return
		}
		nameNode := node.ChildByFieldName("name")
		if nameNode == nil {
			return
		}
		name := string(content[nameNode.StartByte():nameNode.EndByte()])
		line := int(node.StartPosition().Row) + 1
		if name != construct.Name || line != construct.Line {
			return
		}
		effectiveKind := classifyKind(node, kind)
		if effectiveKind != construct.Kind {
			return
		}
		span := int(node.EndByte() - node.StartByte())
		if best == nil || span < bestSpan {
			best = node.ChildByFieldName("body")
			bestSpan = span
		}
	})
	return best
}

// walkDefs visits every function_definition and class_definition node,
// reporting which kind of header it is (Function covers both Function and
// Method; classifyKind refines that below).
func walkDefs(node *tree_sitter.Node, visit func(*tree_sitter.Node, types.ConstructKind)) {
	if node == nil {
		return
	}
	switch node.Kind() {
	case "function_definition":
		visit(node, types.KindFunction)
	case "class_definition":
		visit(node, types.KindClass)
	}
	count := int(node.NamedChildCount())
	for i := 0; i < count; i++ {
		walkDefs(node.NamedChild(uint(i)), visit)
	}
}

func constructKindForDefNode(node *tree_sitter.Node) types.ConstructKind {
	if node.Kind() == "class_definition" {
		return types.KindClass
	}
	return types.KindFunction
}

// classifyKind reclassifies a Function header as a Method when its nearest
// enclosing named scope is a class, mirroring C2's own rule.
func classifyKind(node *tree_sitter.Node, raw types.ConstructKind) types.ConstructKind {
	if raw != types.KindFunction {
		return raw
	}
	cur := node.Parent()
	for cur != nil {
		switch cur.Kind() {
		case "class_definition":
			return types.KindMethod
		case "function_definition":
			return types.KindFunction
		}
		cur = cur.Parent()
	}
	return types.KindFunction
}
