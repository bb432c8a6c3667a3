// Package schema validates parsed documents against the embedded resource
// catalog. It is read-only: findings surface as diagnostics, never edits.
package schema

import (
	"fmt"
	"strings"

	"github.com/yamlr/yamlr/internal/catalog"
	"github.com/yamlr/yamlr/internal/document"
	"github.com/yamlr/yamlr/internal/models"
)

const (
	RuleUnknownKind  = "schema/unknown-kind"
	RuleMissingField = "schema/missing-field"
	RuleWrongType    = "schema/wrong-type"
)

// Validate checks one document against its catalog entry. Unknown
// apiVersion/kind pairs produce a single warning (custom resources are
// tolerated); catalogued resources are checked for required fields and
// primitive field types.
func Validate(doc *document.Document) []models.Diagnostic {
	if doc.Empty() {
		return nil
	}
	apiVersion, kind := doc.APIVersion(), doc.Kind()
	if apiVersion == "" || kind == "" {
		// kindless fragments (e.g. kustomize patches) are not validated
		return nil
	}

	entry, ok := catalog.Lookup(apiVersion, kind)
	if !ok {
		return []models.Diagnostic{{
			RuleID:   RuleUnknownKind,
			Severity: models.SeverityWarning,
			Message:  fmt.Sprintf("unknown resource %s/%s, skipping schema checks", apiVersion, kind),
			Location: locationOf(doc, doc.Root),
		}}
	}

	var diags []models.Diagnostic
	for _, path := range entry.Required {
		if node := lookupPath(doc.Root, path); node == nil {
			diags = append(diags, models.Diagnostic{
				RuleID:   RuleMissingField,
				Severity: models.SeverityError,
				Message:  fmt.Sprintf("%s %s is missing required field %s", kind, doc.Name(), path),
				Location: locationOf(doc, nearestParent(doc.Root, path)),
			})
		}
	}
	for path, want := range entry.Fields {
		node := lookupPath(doc.Root, path)
		if node == nil {
			continue
		}
		if !typeMatches(node, want) {
			diags = append(diags, models.Diagnostic{
				RuleID:   RuleWrongType,
				Severity: models.SeverityError,
				Message:  fmt.Sprintf("field %s should be %s, found %s", path, want, shapeOf(node)),
				Location: locationOf(doc, node),
			})
		}
	}
	return diags
}

func lookupPath(root *document.Node, dotted string) *document.Node {
	return root.Lookup(strings.Split(dotted, ".")...)
}

// nearestParent returns the deepest existing ancestor of a dotted path,
// so missing-field diagnostics point at something real.
func nearestParent(root *document.Node, dotted string) *document.Node {
	segs := strings.Split(dotted, ".")
	cur := root
	for _, seg := range segs {
		next := cur.Get(seg)
		if next == nil {
			return cur
		}
		cur = next
	}
	return cur
}

func typeMatches(n *document.Node, want catalog.FieldType) bool {
	switch want {
	case catalog.TypeMapping:
		return n.Kind == document.KindMapping
	case catalog.TypeSequence:
		return n.Kind == document.KindSequence
	case catalog.TypeInt:
		if n.Kind != document.KindScalar {
			return false
		}
		_, ok := n.AsInt()
		return ok || n.IsNull()
	case catalog.TypeBool:
		if n.Kind != document.KindScalar {
			return false
		}
		_, ok := n.AsBool()
		return ok || n.IsNull()
	case catalog.TypeString:
		return n.Kind == document.KindScalar
	default:
		return true
	}
}

func shapeOf(n *document.Node) string {
	if n.Kind == document.KindScalar {
		if _, ok := n.AsInt(); ok {
			return "int"
		}
		if _, ok := n.AsBool(); ok {
			return "bool"
		}
		return "string"
	}
	return n.Kind.String()
}

func locationOf(doc *document.Document, n *document.Node) models.Location {
	loc := models.Location{Path: doc.Path, DocIndex: doc.Index}
	if n != nil {
		loc.Line = n.Line
		loc.Column = n.Column
	}
	return loc
}
