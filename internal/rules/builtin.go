package rules

import (
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/util/validation"

	"github.com/yamlr/yamlr/internal/document"
	"github.com/yamlr/yamlr/internal/models"
)

const (
	RuleNoLatestTag     = "rules/no-latest-tag"
	RuleStuckDash       = "rules/stuck-dash"
	RuleDuplicateKey    = "rules/duplicate-key"
	RuleMissingLimits   = "rules/missing-resource-limits"
	RuleMissingRequests = "rules/missing-resource-requests"
	RulePrivileged      = "rules/privileged-container"
	RuleRunAsRoot       = "rules/run-as-root"
	RuleInvalidName     = "rules/invalid-name"
)

func location(doc *document.Document, n *document.Node) models.Location {
	loc := models.Location{Path: doc.Path, DocIndex: doc.Index}
	if n != nil {
		loc.Line = n.Line
		loc.Column = n.Column
	}
	return loc
}

// latestTagRule flags images that float on the latest tag, explicitly or
// by omission. A fix is attached only when a default tag is configured.
type latestTagRule struct {
	defaultTag string
}

func (r *latestTagRule) ID() string { return RuleNoLatestTag }

func (r *latestTagRule) Check(doc *document.Document) []models.Diagnostic {
	var out []models.Diagnostic
	for _, c := range containersOf(doc) {
		imageNode := c.node.Get("image")
		if imageNode == nil || imageNode.Kind != document.KindScalar {
			continue
		}
		image := imageNode.Value
		repo, tag := splitImageTag(image)
		if tag != "latest" && tag != "" {
			continue
		}
		d := models.Diagnostic{
			RuleID:   RuleNoLatestTag,
			Severity: models.SeverityError,
			Message:  fmt.Sprintf("container %s uses a floating image tag (%s)", c.name(), image),
			Location: location(doc, imageNode),
		}
		if r.defaultTag != "" {
			pinned := repo + ":" + r.defaultTag
			node := imageNode
			d.Fix = models.NewFix(
				fmt.Sprintf("pin image to %s", pinned),
				func(*document.Document) (bool, error) {
					if node.Value == pinned {
						return false, nil
					}
					node.Value = pinned
					return true, nil
				})
		}
		out = append(out, d)
	}
	return out
}

// splitImageTag separates repo and tag, treating a digest reference as
// pinned and the port of a registry host as part of the repo.
func splitImageTag(image string) (repo, tag string) {
	if strings.Contains(image, "@") {
		return image, "digest"
	}
	idx := strings.LastIndex(image, ":")
	if idx < 0 || strings.Contains(image[idx:], "/") {
		return image, ""
	}
	return image[:idx], image[idx+1:]
}

// stuckDashRule cross-checks recovery: a mapping key that still begins
// with a dash means a glued list marker survived into the tree.
type stuckDashRule struct{}

func (r *stuckDashRule) ID() string { return RuleStuckDash }

func (r *stuckDashRule) Check(doc *document.Document) []models.Diagnostic {
	var out []models.Diagnostic
	var walk func(n *document.Node)
	walk = func(n *document.Node) {
		if n == nil {
			return
		}
		switch n.Kind {
		case document.KindMapping:
			for _, k := range n.Keys() {
				child := n.Get(k)
				if strings.HasPrefix(k, "-") {
					out = append(out, models.Diagnostic{
						RuleID:   RuleStuckDash,
						Severity: models.SeverityError,
						Message:  fmt.Sprintf("key %q looks like a list marker glued to a key", k),
						Location: location(doc, child),
					})
				}
				walk(child)
			}
		case document.KindSequence:
			for _, item := range n.Items() {
				walk(item)
			}
		}
	}
	walk(doc.Root)
	return out
}

// duplicateKeyRule reports mapping keys dropped during tree assembly.
type duplicateKeyRule struct{}

func (r *duplicateKeyRule) ID() string { return RuleDuplicateKey }

func (r *duplicateKeyRule) Check(doc *document.Document) []models.Diagnostic {
	var out []models.Diagnostic
	for _, dup := range doc.Duplicates {
		out = append(out, models.Diagnostic{
			RuleID:   RuleDuplicateKey,
			Severity: models.SeverityError,
			Message:  fmt.Sprintf("duplicate key %q, first occurrence wins", dup.Key),
			Location: models.Location{Path: doc.Path, DocIndex: doc.Index, Line: dup.Line, Column: dup.Column},
		})
	}
	return out
}

// resourceBoundsRule warns about containers without resource requests or
// limits.
type resourceBoundsRule struct{}

func (r *resourceBoundsRule) ID() string { return RuleMissingLimits }

func (r *resourceBoundsRule) Check(doc *document.Document) []models.Diagnostic {
	var out []models.Diagnostic
	for _, c := range containersOf(doc) {
		resources := c.node.Get("resources")
		if resources.Lookup("limits") == nil {
			out = append(out, models.Diagnostic{
				RuleID:   RuleMissingLimits,
				Severity: models.SeverityWarning,
				Message:  fmt.Sprintf("container %s has no resource limits", c.name()),
				Location: location(doc, c.node),
			})
		}
		if resources.Lookup("requests") == nil {
			out = append(out, models.Diagnostic{
				RuleID:   RuleMissingRequests,
				Severity: models.SeverityWarning,
				Message:  fmt.Sprintf("container %s has no resource requests", c.name()),
				Location: location(doc, c.node),
			})
		}
	}
	return out
}

// securityContextRule flags privileged containers and containers running
// as root.
type securityContextRule struct{}

func (r *securityContextRule) ID() string { return RulePrivileged }

func (r *securityContextRule) Check(doc *document.Document) []models.Diagnostic {
	var out []models.Diagnostic
	for _, c := range containersOf(doc) {
		sc := c.node.Get("securityContext")
		if sc == nil {
			continue
		}
		if v, ok := sc.Get("privileged").AsBool(); ok && v {
			out = append(out, models.Diagnostic{
				RuleID:   RulePrivileged,
				Severity: models.SeverityError,
				Message:  fmt.Sprintf("container %s runs privileged", c.name()),
				Location: location(doc, sc.Get("privileged")),
			})
		}
		if v, ok := sc.Get("runAsUser").AsInt(); ok && v == 0 {
			out = append(out, models.Diagnostic{
				RuleID:   RuleRunAsRoot,
				Severity: models.SeverityWarning,
				Message:  fmt.Sprintf("container %s runs as uid 0", c.name()),
				Location: location(doc, sc.Get("runAsUser")),
			})
		}
	}
	return out
}

// nameRule validates metadata.name as a DNS-1123 subdomain.
type nameRule struct{}

func (r *nameRule) ID() string { return RuleInvalidName }

func (r *nameRule) Check(doc *document.Document) []models.Diagnostic {
	nameNode := doc.Root.Lookup("metadata", "name")
	if nameNode == nil || nameNode.Kind != document.KindScalar || nameNode.Value == "" {
		return nil
	}
	errs := validation.IsDNS1123Subdomain(nameNode.Value)
	if len(errs) == 0 {
		return nil
	}
	return []models.Diagnostic{{
		RuleID:   RuleInvalidName,
		Severity: models.SeverityError,
		Message:  fmt.Sprintf("name %q is not a valid DNS-1123 subdomain: %s", nameNode.Value, errs[0]),
		Location: location(doc, nameNode),
	}}
}
