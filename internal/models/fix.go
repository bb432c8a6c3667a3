package models

import "github.com/yamlr/yamlr/internal/document"

// FixFunc is a pure transform from one document revision to the next.
// It reports whether the document changed. Implementations must be
// idempotent: applying the same fix to an already-fixed document returns
// (false, nil) and leaves the document untouched. The pipeline relies on
// this to re-run validation after any mutation without looping.
type FixFunc func(doc *document.Document) (changed bool, err error)

// Fix describes an automatic repair attached to a Diagnostic.
type Fix struct {
	Description string `json:"description"`
	apply       FixFunc
}

// NewFix creates a fix with the given description and transform.
func NewFix(description string, apply FixFunc) *Fix {
	return &Fix{Description: description, apply: apply}
}

// Apply runs the transform and bumps the document revision when it changed.
func (f *Fix) Apply(doc *document.Document) (bool, error) {
	if f == nil || f.apply == nil {
		return false, nil
	}
	changed, err := f.apply(doc)
	if err != nil {
		return false, err
	}
	if changed {
		doc.BumpRevision()
	}
	return changed, nil
}
