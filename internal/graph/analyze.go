package graph

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"
	"k8s.io/apimachinery/pkg/labels"

	"github.com/yamlr/yamlr/internal/document"
	"github.com/yamlr/yamlr/internal/models"
)

const (
	RuleGhostService   = "graph/ghost-service"
	RulePortMismatch   = "graph/port-mismatch"
	RuleInvalidBackend = "graph/invalid-ingress-backend"
	RuleMissingRef     = "graph/missing-reference"
	RuleOrphanConfig   = "graph/orphan-config"
)

// typoHintThreshold is the levenshtein similarity above which a
// near-miss label set is worth mentioning. Hints only ever shape message
// text, never matching.
const typoHintThreshold = 0.85

// workloadKinds are the kinds whose pod labels a service can select.
var workloadKinds = map[string]bool{
	"Pod":         true,
	"Deployment":  true,
	"StatefulSet": true,
	"DaemonSet":   true,
	"ReplicaSet":  true,
	"Job":         true,
	"CronJob":     true,
}

// Analyze runs every cross-resource detection and records edges as a side
// effect. Matching is same-namespace and exact; diagnostics come back in
// input order within each detection.
func (g *Graph) Analyze() []models.Diagnostic {
	var diags []models.Diagnostic
	referenced := map[string]bool{}

	for _, r := range g.resources {
		switch {
		case r.Kind == "Service":
			diags = append(diags, g.checkService(r)...)
		case r.Kind == "Ingress":
			diags = append(diags, g.checkIngress(r)...)
		}
		diags = append(diags, g.checkRefs(r, referenced)...)
	}
	diags = append(diags, g.checkOrphans(referenced)...)
	return diags
}

// checkService covers ghost-service and port-mismatch: a selector that
// matches nothing is a warning, matched workloads must expose every
// targeted port.
func (g *Graph) checkService(svc *Resource) []models.Diagnostic {
	if len(svc.Selector) == 0 {
		// headless or externalName style, nothing to match
		return nil
	}
	selector := labels.SelectorFromSet(labels.Set(svc.Selector))

	var matched []*Resource
	for _, r := range g.resources {
		if !workloadKinds[r.Kind] || r.Namespace != svc.Namespace || len(r.PodLabels) == 0 {
			continue
		}
		if selector.Matches(labels.Set(r.PodLabels)) {
			matched = append(matched, r)
			g.addEdge(svc.ID(), r.ID(), EdgeSelects, true)
		}
	}

	if len(matched) == 0 {
		g.addEdge(svc.ID(), "", EdgeSelects, false)
		msg := fmt.Sprintf("service %s/%s selects no workload (selector %s)",
			svc.Namespace, svc.Name, formatLabels(svc.Selector))
		if hint := g.typoHint(svc); hint != "" {
			msg += "; " + hint
		}
		return []models.Diagnostic{{
			RuleID:   RuleGhostService,
			Severity: models.SeverityWarning,
			Message:  msg,
			Location: resourceLocation(svc, selectorNode(svc)),
		}}
	}

	var diags []models.Diagnostic
	for _, sp := range svc.ServicePorts {
		if sp.Port == 0 && sp.TargetPort == "" {
			continue
		}
		if portServed(sp, matched) {
			continue
		}
		target := sp.TargetPort
		if target == "" {
			target = strconv.Itoa(sp.Port)
		}
		diags = append(diags, models.Diagnostic{
			RuleID:   RulePortMismatch,
			Severity: models.SeverityError,
			Message: fmt.Sprintf("service %s/%s targets port %s which no selected container exposes",
				svc.Namespace, svc.Name, target),
			Location: resourceLocation(svc, sp.Node),
		})
	}
	return diags
}

// portServed reports whether a service port's target (defaulting to the
// port number) matches any container port number or name of the matched
// workloads.
func portServed(sp ServicePort, matched []*Resource) bool {
	target := sp.TargetPort
	if target == "" {
		target = strconv.Itoa(sp.Port)
	}
	number, numeric := 0, false
	if n, err := strconv.Atoi(target); err == nil {
		number, numeric = n, true
	}
	for _, r := range matched {
		for _, cp := range r.ContainerPorts {
			if numeric && cp.Number == number {
				return true
			}
			if !numeric && cp.Name != "" && cp.Name == target {
				return true
			}
		}
	}
	return false
}

// typoHint looks for a workload whose label set is nearly the selector.
func (g *Graph) typoHint(svc *Resource) string {
	want := formatLabels(svc.Selector)
	best, bestScore := "", 0.0
	for _, r := range g.resources {
		if !workloadKinds[r.Kind] || r.Namespace != svc.Namespace || len(r.PodLabels) == 0 {
			continue
		}
		score := levenshtein.RatioForStrings(
			[]rune(want), []rune(formatLabels(r.PodLabels)), levenshtein.DefaultOptions)
		if score > bestScore {
			best, bestScore = fmt.Sprintf("%s %s has labels %s", strings.ToLower(r.Kind), r.Name, formatLabels(r.PodLabels)), score
		}
	}
	if bestScore >= typoHintThreshold {
		return "did you mean: " + best
	}
	return ""
}

// checkIngress verifies every backend points at an existing service and
// one of its declared ports.
func (g *Graph) checkIngress(ing *Resource) []models.Diagnostic {
	var diags []models.Diagnostic
	for _, b := range ing.Backends {
		svc, ok := g.lookup("Service", ing.Namespace, b.Service)
		if !ok {
			g.addEdge(ing.ID(), fmt.Sprintf("Service/%s/%s", ing.Namespace, b.Service), EdgeBackend, false)
			diags = append(diags, models.Diagnostic{
				RuleID:   RuleInvalidBackend,
				Severity: models.SeverityError,
				Message: fmt.Sprintf("ingress %s/%s references missing service %s",
					ing.Namespace, ing.Name, b.Service),
				Location: resourceLocation(ing, b.Node),
			})
			continue
		}
		g.addEdge(ing.ID(), svc.ID(), EdgeBackend, true)
		if !backendPortDeclared(b, svc) {
			port := b.PortName
			if port == "" {
				port = strconv.Itoa(b.PortNumber)
			}
			diags = append(diags, models.Diagnostic{
				RuleID:   RuleInvalidBackend,
				Severity: models.SeverityError,
				Message: fmt.Sprintf("ingress %s/%s references port %s not declared by service %s",
					ing.Namespace, ing.Name, port, b.Service),
				Location: resourceLocation(ing, b.Node),
			})
		}
	}
	return diags
}

func backendPortDeclared(b Backend, svc *Resource) bool {
	if b.PortNumber == 0 && b.PortName == "" {
		// no port specified, nothing to verify
		return true
	}
	for _, sp := range svc.ServicePorts {
		if b.PortNumber != 0 && sp.Port == b.PortNumber {
			return true
		}
		if b.PortName != "" && sp.Name == b.PortName {
			return true
		}
	}
	return false
}

// checkRefs verifies config-ish references and records what is in use.
func (g *Graph) checkRefs(r *Resource, referenced map[string]bool) []models.Diagnostic {
	var diags []models.Diagnostic
	for _, ref := range r.Refs {
		targetID := fmt.Sprintf("%s/%s/%s", ref.Kind, r.Namespace, ref.Name)
		if _, ok := g.index[targetID]; ok {
			referenced[targetID] = true
			g.addEdge(r.ID(), targetID, EdgeReferences, true)
			continue
		}
		g.addEdge(r.ID(), targetID, EdgeReferences, false)
		if ref.Optional {
			continue
		}
		diags = append(diags, models.Diagnostic{
			RuleID:   RuleMissingRef,
			Severity: models.SeverityError,
			Message: fmt.Sprintf("%s %s/%s references missing %s %s",
				strings.ToLower(r.Kind), r.Namespace, r.Name, ref.Kind, ref.Name),
			Location: resourceLocation(r, ref.Node),
		})
	}
	return diags
}

// checkOrphans reports ConfigMaps and Secrets nothing points at.
func (g *Graph) checkOrphans(referenced map[string]bool) []models.Diagnostic {
	var diags []models.Diagnostic
	for _, r := range g.resources {
		if r.Kind != "ConfigMap" && r.Kind != "Secret" {
			continue
		}
		if referenced[r.ID()] {
			continue
		}
		diags = append(diags, models.Diagnostic{
			RuleID:   RuleOrphanConfig,
			Severity: models.SeverityInfo,
			Message:  fmt.Sprintf("%s %s/%s is not referenced by any workload", strings.ToLower(r.Kind), r.Namespace, r.Name),
			Location: resourceLocation(r, r.Doc.Root),
		})
	}
	return diags
}

func formatLabels(set map[string]string) string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + set[k]
	}
	return strings.Join(parts, ",")
}

func selectorNode(svc *Resource) *document.Node {
	return svc.Doc.Root.Lookup("spec", "selector")
}

func resourceLocation(r *Resource, n *document.Node) models.Location {
	loc := models.Location{Path: r.Doc.Path, DocIndex: r.Doc.Index}
	if n != nil {
		loc.Line, loc.Column = n.Line, n.Column
	}
	return loc
}
