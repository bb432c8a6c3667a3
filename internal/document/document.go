package document

import "fmt"

// Document is one YAML document of a manifest file, with enough provenance
// to report diagnostics and to write the file back.
type Document struct {
	// Path is the source file, Index the zero-based position within it.
	Path  string
	Index int

	Root *Node

	// Ignored marks a document whose leading comment opts out of all
	// diagnostics.
	Ignored bool
	// IgnoredLines are source lines carrying (or covered by) an inline
	// opt-out directive.
	IgnoredLines map[int]bool

	// LeadingMarker records whether the source wrote an explicit "---"
	// before this document, so serialization reproduces it.
	LeadingMarker bool

	// Duplicates are mapping keys that appeared more than once. The tree
	// keeps the first occurrence; rules report the rest.
	Duplicates []Duplicate

	// FootComments are comment lines after the document's content, before
	// the next marker or end of file.
	FootComments []string

	revision int
}

// Revision returns the mutation counter. It starts at zero and increases
// once per applied fix.
func (d *Document) Revision() int {
	return d.revision
}

// BumpRevision marks the document as mutated.
func (d *Document) BumpRevision() {
	d.revision++
}

// LineIgnored reports whether diagnostics on the given source line are
// opted out.
func (d *Document) LineIgnored(line int) bool {
	return d.Ignored || d.IgnoredLines[line]
}

// APIVersion returns the document's apiVersion scalar, or "".
func (d *Document) APIVersion() string {
	v, _ := d.Root.LookupString("apiVersion")
	return v
}

// Kind returns the document's kind scalar, or "".
func (d *Document) Kind() string {
	v, _ := d.Root.LookupString("kind")
	return v
}

// Name returns metadata.name, or "".
func (d *Document) Name() string {
	v, _ := d.Root.LookupString("metadata", "name")
	return v
}

// Namespace returns metadata.namespace, defaulting to "default".
func (d *Document) Namespace() string {
	v, ok := d.Root.LookupString("metadata", "namespace")
	if !ok || v == "" {
		return "default"
	}
	return v
}

// Empty reports whether the document carries no content.
func (d *Document) Empty() bool {
	return d.Root == nil || (d.Root.Kind == KindMapping && d.Root.Len() == 0)
}

// Duplicate is a repeated mapping key dropped during tree assembly.
type Duplicate struct {
	Key    string
	Line   int
	Column int
}

// ParseError reports source text the builder could not place in the tree
// even after heuristic recovery.
type ParseError struct {
	Path   string
	Line   int
	Column int
	Text   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d:%d: unrecoverable syntax: %q", e.Path, e.Line, e.Column, e.Text)
}
