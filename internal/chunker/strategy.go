package chunker

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// strategy describes how one language's AST maps to semantic units.
// typeKinds and memberKinds key tree-sitter node types; values come from
// the closed semantic kind set in chunk.go.
type strategy struct {
	language    string
	extensions  []string
	sitterLang  *sitter.Language
	typeKinds   map[string]string
	memberKinds map[string]string

	// refineKind optionally rewrites the mapped kind once the node is in
	// hand. Go needs it to tell interfaces from structs.
	refineKind func(node *sitter.Node, kind string) string
}

// unitKind maps a node to its semantic kind. isType reports whether the
// node opens a type declaration that may be broken into member units.
func (s *strategy) unitKind(node *sitter.Node) (kind string, isType, ok bool) {
	t := node.Type()
	if k, found := s.typeKinds[t]; found {
		if s.refineKind != nil {
			k = s.refineKind(node, k)
		}
		return k, true, true
	}
	if k, found := s.memberKinds[t]; found {
		return k, false, true
	}
	return "", false, false
}

// nameNodeTypes are the node types that carry a declared identifier across
// the registered grammars.
var nameNodeTypes = map[string]bool{
	"identifier":          true,
	"type_identifier":     true,
	"field_identifier":    true,
	"property_identifier": true,
}

// declaredName extracts the declared identifier of a unit node. Grammars
// that label the name field are read directly; otherwise a shallow
// breadth-first scan finds the first identifier-like descendant, which
// covers wrappers like Go's type_spec and C#'s variable_declarator.
func declaredName(node *sitter.Node, source []byte) string {
	if n := node.ChildByFieldName("name"); n != nil {
		return string(source[n.StartByte():n.EndByte()])
	}

	queue := []*sitter.Node{node}
	for depth := 0; depth < 3 && len(queue) > 0; depth++ {
		var next []*sitter.Node
		for _, n := range queue {
			for i := 0; i < int(n.NamedChildCount()); i++ {
				child := n.NamedChild(i)
				if nameNodeTypes[child.Type()] {
					return string(source[child.StartByte():child.EndByte()])
				}
				next = append(next, child)
			}
		}
		queue = next
	}
	return ""
}
