// Package migrate rewrites documents off retired API versions. Each
// migration moves through Detected -> Planned -> Applied | Rejected; the
// transform runs on a copy and only replaces the document after the result
// re-validates, so a rejection leaves the original untouched.
package migrate

import (
	"fmt"

	"github.com/yamlr/yamlr/internal/document"
	"github.com/yamlr/yamlr/internal/logging"
	"github.com/yamlr/yamlr/internal/models"
	"github.com/yamlr/yamlr/internal/schema"
)

var logger = logging.GetLogger("migrate")

const RuleMigration = "migrate/auto-migration"

// State is the lifecycle position of one migration.
type State string

const (
	StateDetected State = "detected"
	StatePlanned  State = "planned"
	StateApplied  State = "applied"
	StateRejected State = "rejected"
)

// Migration tracks one document's move to a supported API version.
type Migration struct {
	Path     string
	DocIndex int
	Kind     string
	Name     string
	From     string
	To       string
	Strategy string
	State    State
	Reason   string

	Diagnostic models.Diagnostic
}

// Strategy plans and performs one family of API moves. Transform mutates
// the candidate root in place; the engine owns cloning and validation.
type Strategy interface {
	Name() string
	Matches(doc *document.Document) bool
	Target(doc *document.Document) string
	Transform(root *document.Node, doc *document.Document) error
}

// Engine matches documents against the strategy registry.
type Engine struct {
	strategies []Strategy
}

// NewEngine returns an engine with the built-in strategies installed,
// most specific first.
func NewEngine() *Engine {
	return &Engine{strategies: []Strategy{
		&workloadSelectorStrategy{},
		&ingressV1Strategy{},
		&cronJobV1Strategy{},
		&replaceAPIVersionStrategy{},
	}}
}

// Detect returns the migration available for the document, or nil. The
// attached diagnostic carries a fix that performs the full plan, apply
// and re-validation cycle; a failed cycle surfaces as the fix error and
// flips the migration to Rejected with the document intact.
func (e *Engine) Detect(doc *document.Document) *Migration {
	for _, s := range e.strategies {
		if !s.Matches(doc) {
			continue
		}
		m := &Migration{
			Path:     doc.Path,
			DocIndex: doc.Index,
			Kind:     doc.Kind(),
			Name:     doc.Name(),
			From:     doc.APIVersion(),
			To:       s.Target(doc),
			Strategy: s.Name(),
			State:    StateDetected,
		}
		strategy := s
		loc := models.Location{Path: doc.Path, DocIndex: doc.Index}
		if node := doc.Root.Get("apiVersion"); node != nil {
			loc.Line, loc.Column = node.Line, node.Column
		}
		m.Diagnostic = models.Diagnostic{
			RuleID:   RuleMigration,
			Severity: models.SeverityWarning,
			Message:  fmt.Sprintf("%s %s can migrate from %s to %s", m.Kind, m.Name, m.From, m.To),
			Location: loc,
			Fix: models.NewFix(
				fmt.Sprintf("migrate %s to %s", m.Kind, m.To),
				func(d *document.Document) (bool, error) {
					return e.apply(m, strategy, d)
				}),
		}
		return m
	}
	return nil
}

// apply runs one migration cycle against the live document.
func (e *Engine) apply(m *Migration, s Strategy, doc *document.Document) (bool, error) {
	if !s.Matches(doc) {
		// already migrated; re-application is a no-op
		return false, nil
	}
	m.State = StatePlanned

	candidate := doc.Root.Clone()
	if err := s.Transform(candidate, doc); err != nil {
		m.State = StateRejected
		m.Reason = err.Error()
		return false, err
	}

	probe := &document.Document{Path: doc.Path, Index: doc.Index, Root: candidate}
	for _, d := range schema.Validate(probe) {
		if d.Severity == models.SeverityError {
			m.State = StateRejected
			m.Reason = d.Message
			return false, models.NewMigrationRejectedError(m.Kind, m.Name, d.Message, nil)
		}
	}

	doc.Root = candidate
	m.State = StateApplied
	logger.Info("migrated %s %s/%s from %s to %s", m.Kind, doc.Namespace(), m.Name, m.From, m.To)
	return true, nil
}
