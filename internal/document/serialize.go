package document

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Marshal renders documents back to YAML with two-space indentation,
// preserving key order, scalar styles, comments and explicit leading
// markers.
func Marshal(docs []*Document) ([]byte, error) {
	var buf bytes.Buffer
	if len(docs) > 0 && docs[0].LeadingMarker {
		buf.WriteString("---\n")
	}
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	for _, d := range docs {
		if d.Root == nil {
			continue
		}
		root := toYAML(d.Root)
		root.FootComment = commentBlock(d.FootComments)
		if err := enc.Encode(root); err != nil {
			return nil, fmt.Errorf("encoding %s document %d: %w", d.Path, d.Index, err)
		}
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalYAML renders a single document.
func (d *Document) MarshalYAML() ([]byte, error) {
	return Marshal([]*Document{d})
}

func toYAML(n *Node) *yaml.Node {
	switch n.Kind {
	case KindMapping:
		out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, k := range n.Keys() {
			child := n.Get(k)
			key := &yaml.Node{Kind: yaml.ScalarNode, Value: k}
			val := toYAML(child)
			// comments ride on the key node so they render on the key's
			// line; scalar values carry their own trailing comment
			key.HeadComment = commentBlock(child.HeadComment)
			if child.LineComment != "" {
				if child.Kind == KindScalar {
					val.LineComment = "# " + child.LineComment
				} else {
					key.LineComment = "# " + child.LineComment
				}
			}
			out.Content = append(out.Content, key, val)
		}
		return out
	case KindSequence:
		out := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range n.Items() {
			el := toYAML(item)
			el.HeadComment = commentBlock(item.HeadComment)
			if item.Kind == KindScalar && item.LineComment != "" {
				el.LineComment = "# " + item.LineComment
			}
			out.Content = append(out.Content, el)
		}
		return out
	default:
		out := &yaml.Node{Kind: yaml.ScalarNode, Value: n.Value}
		switch n.Style {
		case StyleDoubleQuoted:
			out.Style = yaml.DoubleQuotedStyle
			out.Tag = "!!str"
		case StyleSingleQuoted:
			out.Style = yaml.SingleQuotedStyle
			out.Tag = "!!str"
		case StyleLiteral:
			out.Style = yaml.LiteralStyle
			out.Tag = "!!str"
		case StyleFolded:
			out.Style = yaml.FoldedStyle
			out.Tag = "!!str"
		default:
			if n.Value == "" {
				out.Tag = "!!null"
			}
		}
		return out
	}
}

// commentBlock renders stored comment texts back into the "#"-prefixed
// form the YAML emitter expects.
func commentBlock(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = strings.TrimRight("# "+l, " ")
	}
	return strings.Join(out, "\n")
}
