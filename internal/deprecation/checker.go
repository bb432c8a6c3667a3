package deprecation

import (
	"fmt"

	goversion "github.com/hashicorp/go-version"

	"github.com/yamlr/yamlr/internal/document"
	"github.com/yamlr/yamlr/internal/models"
)

const (
	RuleRemovedAPI    = "deprecation/removed-api"
	RuleDeprecatedAPI = "deprecation/deprecated-api"
)

// Checker evaluates deprecations against a target Kubernetes version.
type Checker struct {
	target *goversion.Version
}

// NewChecker parses the target version ("1.29" or "v1.29.0").
func NewChecker(targetVersion string) (*Checker, error) {
	v, err := goversion.NewVersion(targetVersion)
	if err != nil {
		return nil, models.NewConfigError("invalid target version %q: %v", targetVersion, err)
	}
	return &Checker{target: v}, nil
}

// Target returns the configured target version string.
func (c *Checker) Target() string {
	return c.target.Original()
}

// IsRemoved reports whether the pair no longer serves at the target.
func (c *Checker) IsRemoved(apiVersion, kind string) bool {
	d, ok := Lookup(apiVersion, kind)
	if !ok || d.RemovedIn == "" {
		return false
	}
	removed, err := goversion.NewVersion(d.RemovedIn)
	if err != nil {
		return false
	}
	return c.target.GreaterThanOrEqual(removed)
}

// IsDeprecated reports whether the pair is deprecated (but still served)
// at the target.
func (c *Checker) IsDeprecated(apiVersion, kind string) bool {
	d, ok := Lookup(apiVersion, kind)
	if !ok || d.DeprecatedIn == "" {
		return false
	}
	deprecated, err := goversion.NewVersion(d.DeprecatedIn)
	if err != nil {
		return false
	}
	return c.target.GreaterThanOrEqual(deprecated) && !c.IsRemoved(apiVersion, kind)
}

// Check emits a diagnostic for a document using a retired API: an error
// once the version is gone at the target, a warning while it still serves.
func (c *Checker) Check(doc *document.Document) []models.Diagnostic {
	apiVersion, kind := doc.APIVersion(), doc.Kind()
	if apiVersion == "" || kind == "" {
		return nil
	}
	d, ok := Lookup(apiVersion, kind)
	if !ok {
		return nil
	}
	loc := models.Location{Path: doc.Path, DocIndex: doc.Index}
	if node := doc.Root.Get("apiVersion"); node != nil {
		loc.Line, loc.Column = node.Line, node.Column
	}
	switch {
	case c.IsRemoved(apiVersion, kind):
		msg := fmt.Sprintf("%s %s was removed in Kubernetes %s", apiVersion, kind, d.RemovedIn)
		if d.Replacement != "" {
			msg += fmt.Sprintf(", use %s", d.Replacement)
		}
		return []models.Diagnostic{{
			RuleID:   RuleRemovedAPI,
			Severity: models.SeverityError,
			Message:  msg,
			Location: loc,
		}}
	case c.IsDeprecated(apiVersion, kind):
		return []models.Diagnostic{{
			RuleID:   RuleDeprecatedAPI,
			Severity: models.SeverityWarning,
			Message:  fmt.Sprintf("%s %s is deprecated since Kubernetes %s", apiVersion, kind, d.DeprecatedIn),
			Location: loc,
		}}
	}
	return nil
}
