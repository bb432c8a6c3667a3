package document

import (
	"strconv"
	"strings"
)

// NodeKind discriminates the three node shapes of a parsed manifest tree.
type NodeKind int

const (
	KindScalar NodeKind = iota
	KindMapping
	KindSequence
)

func (k NodeKind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindMapping:
		return "mapping"
	case KindSequence:
		return "sequence"
	default:
		return "unknown"
	}
}

// ScalarStyle records how a scalar was written in the source so healing
// preserves the author's quoting and block style.
type ScalarStyle int

const (
	StylePlain ScalarStyle = iota
	StyleDoubleQuoted
	StyleSingleQuoted
	StyleLiteral // |
	StyleFolded  // >
)

// Node is one vertex of the manifest tree. Mappings keep insertion order
// and reject duplicate keys; scalars keep their original text and style.
type Node struct {
	Kind   NodeKind
	Line   int
	Column int

	// scalar
	Value string
	Style ScalarStyle

	// mapping
	keys     []string
	children map[string]*Node

	// sequence
	items []*Node

	// Comments written around the node in the source, kept so healing
	// re-emits them. HeadComment lines precede the node, LineComment
	// trails it on the same line. Texts are stored without the "#".
	HeadComment []string
	LineComment string
}

// NewScalar returns a plain scalar node.
func NewScalar(value string) *Node {
	return &Node{Kind: KindScalar, Value: value}
}

// NewQuotedScalar returns a double-quoted scalar node.
func NewQuotedScalar(value string) *Node {
	return &Node{Kind: KindScalar, Value: value, Style: StyleDoubleQuoted}
}

// NewMapping returns an empty ordered mapping node.
func NewMapping() *Node {
	return &Node{Kind: KindMapping, children: map[string]*Node{}}
}

// NewSequence returns an empty sequence node.
func NewSequence() *Node {
	return &Node{Kind: KindSequence}
}

// Keys returns the mapping keys in insertion order.
func (n *Node) Keys() []string {
	return n.keys
}

// Get returns the child mapped to key, or nil.
func (n *Node) Get(key string) *Node {
	if n == nil || n.Kind != KindMapping {
		return nil
	}
	return n.children[key]
}

// Has reports whether the mapping contains key.
func (n *Node) Has(key string) bool {
	return n.Get(key) != nil
}

// Set maps key to child, appending the key when it is new.
func (n *Node) Set(key string, child *Node) {
	if n.children == nil {
		n.children = map[string]*Node{}
	}
	if _, exists := n.children[key]; !exists {
		n.keys = append(n.keys, key)
	}
	n.children[key] = child
}

// Remove deletes key from the mapping. It reports whether the key existed.
func (n *Node) Remove(key string) bool {
	if n == nil || n.Kind != KindMapping {
		return false
	}
	if _, exists := n.children[key]; !exists {
		return false
	}
	delete(n.children, key)
	for i, k := range n.keys {
		if k == key {
			n.keys = append(n.keys[:i], n.keys[i+1:]...)
			break
		}
	}
	return true
}

// Items returns the sequence elements.
func (n *Node) Items() []*Node {
	if n == nil {
		return nil
	}
	return n.items
}

// Append adds an element to the sequence.
func (n *Node) Append(item *Node) {
	n.items = append(n.items, item)
}

// Len returns the child count: entries for mappings, elements for
// sequences, zero for scalars.
func (n *Node) Len() int {
	if n == nil {
		return 0
	}
	switch n.Kind {
	case KindMapping:
		return len(n.keys)
	case KindSequence:
		return len(n.items)
	default:
		return 0
	}
}

// Lookup walks a mapping path ("spec", "template", "metadata"), returning
// nil as soon as a segment is missing or a non-mapping is crossed.
func (n *Node) Lookup(path ...string) *Node {
	cur := n
	for _, seg := range path {
		cur = cur.Get(seg)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// LookupString returns the scalar value at path, and whether it exists.
func (n *Node) LookupString(path ...string) (string, bool) {
	node := n.Lookup(path...)
	if node == nil || node.Kind != KindScalar {
		return "", false
	}
	return node.Value, true
}

// AsInt interprets the scalar as an integer.
func (n *Node) AsInt() (int, bool) {
	if n == nil || n.Kind != KindScalar {
		return 0, false
	}
	v, err := strconv.Atoi(strings.TrimSpace(n.Value))
	if err != nil {
		return 0, false
	}
	return v, true
}

// AsBool interprets the scalar as a boolean using YAML 1.2 core forms.
func (n *Node) AsBool() (bool, bool) {
	if n == nil || n.Kind != KindScalar {
		return false, false
	}
	switch strings.ToLower(strings.TrimSpace(n.Value)) {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}

// IsNull reports whether the scalar is empty or an explicit null.
func (n *Node) IsNull() bool {
	if n == nil {
		return true
	}
	if n.Kind != KindScalar {
		return false
	}
	switch strings.TrimSpace(n.Value) {
	case "", "~", "null", "Null", "NULL":
		return true
	default:
		return false
	}
}

// StringMap flattens a mapping of scalars into a plain map. Non-scalar
// children are skipped.
func (n *Node) StringMap() map[string]string {
	if n == nil || n.Kind != KindMapping {
		return nil
	}
	out := make(map[string]string, len(n.keys))
	for _, k := range n.keys {
		if c := n.children[k]; c != nil && c.Kind == KindScalar {
			out[k] = c.Value
		}
	}
	return out
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := &Node{Kind: n.Kind, Line: n.Line, Column: n.Column, Value: n.Value, Style: n.Style, LineComment: n.LineComment}
	out.HeadComment = append([]string(nil), n.HeadComment...)
	if n.Kind == KindMapping {
		out.children = make(map[string]*Node, len(n.children))
		out.keys = append([]string(nil), n.keys...)
		for k, c := range n.children {
			out.children[k] = c.Clone()
		}
	}
	if n.Kind == KindSequence {
		out.items = make([]*Node, len(n.items))
		for i, c := range n.items {
			out.items[i] = c.Clone()
		}
	}
	return out
}

// Equal compares two trees semantically: kinds, key order, scalar values.
// Provenance, scalar style and comments are ignored.
func Equal(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindScalar:
		return a.Value == b.Value
	case KindMapping:
		if len(a.keys) != len(b.keys) {
			return false
		}
		for i, k := range a.keys {
			if b.keys[i] != k {
				return false
			}
			if !Equal(a.children[k], b.children[k]) {
				return false
			}
		}
		return true
	case KindSequence:
		if len(a.items) != len(b.items) {
			return false
		}
		for i := range a.items {
			if !Equal(a.items[i], b.items[i]) {
				return false
			}
		}
		return true
	}
	return false
}
