// Package models defines the shared vocabulary of the healing engine:
// diagnostics, fixes, per-file results and the error taxonomy.
package models

import "fmt"

// Severity classifies how serious a diagnostic is.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Rank returns an ordering for severities (higher is worse).
func (s Severity) Rank() int {
	switch s {
	case SeverityError:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// Location points at a node in a source document.
type Location struct {
	Path     string `json:"path"`               // source file path
	DocIndex int    `json:"docIndex"`           // index in a multi-document file
	Line     int    `json:"line"`               // 1-based source line
	Column   int    `json:"column"`             // 1-based source column
	NodePath string `json:"nodePath,omitempty"` // dotted path, e.g. "spec.template.metadata.labels"
}

func (l Location) String() string {
	if l.NodePath != "" {
		return fmt.Sprintf("%s:%d:%d (%s)", l.Path, l.Line, l.Column, l.NodePath)
	}
	return fmt.Sprintf("%s:%d:%d", l.Path, l.Line, l.Column)
}

// Diagnostic is a single finding produced by any stage of the pipeline.
// Immutable once created.
type Diagnostic struct {
	RuleID   string   `json:"ruleId"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Location Location `json:"location"`
	Fix      *Fix     `json:"fix,omitempty"`
}

// HasFix reports whether an automatic fix is attached.
func (d Diagnostic) HasFix() bool {
	return d.Fix != nil
}
