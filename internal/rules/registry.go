// Package rules runs independent read-only checks over parsed documents.
// Rules are order-independent; each returns diagnostics that may carry an
// automatic fix.
package rules

import (
	"github.com/yamlr/yamlr/internal/document"
	"github.com/yamlr/yamlr/internal/logging"
	"github.com/yamlr/yamlr/internal/models"
)

var logger = logging.GetLogger("rules")

// Rule is a single self-contained check.
type Rule interface {
	ID() string
	Check(doc *document.Document) []models.Diagnostic
}

// Options tunes the built-in rule set.
type Options struct {
	// DefaultImageTag, when set, lets no-latest-tag attach a fix that
	// pins unpinned images to this tag.
	DefaultImageTag string
}

// Registry holds the active rule set.
type Registry struct {
	rules []Rule
}

// NewRegistry returns a registry with all built-in rules installed.
func NewRegistry(opts Options) *Registry {
	return &Registry{rules: []Rule{
		&latestTagRule{defaultTag: opts.DefaultImageTag},
		&stuckDashRule{},
		&duplicateKeyRule{},
		&resourceBoundsRule{},
		&securityContextRule{},
		&nameRule{},
	}}
}

// Register appends a custom rule.
func (r *Registry) Register(rule Rule) {
	r.rules = append(r.rules, rule)
}

// Run evaluates every rule against the document. Diagnostics on lines
// covered by an ignore directive are suppressed, as are all diagnostics
// for ignored documents.
func (r *Registry) Run(doc *document.Document) []models.Diagnostic {
	if doc.Ignored {
		return nil
	}
	var out []models.Diagnostic
	for _, rule := range r.rules {
		for _, d := range rule.Check(doc) {
			if doc.LineIgnored(d.Location.Line) {
				logger.Debug("suppressing %s at %s (ignore directive)", d.RuleID, d.Location)
				continue
			}
			out = append(out, d)
		}
	}
	return out
}
