package migrate

import (
	"github.com/yamlr/yamlr/internal/deprecation"
	"github.com/yamlr/yamlr/internal/document"
	"github.com/yamlr/yamlr/internal/models"
)

// workloadSelectorStrategy moves beta workloads to apps/v1, synthesizing
// the selector that apps/v1 requires from the pod template labels.
type workloadSelectorStrategy struct{}

var workloadKinds = map[string]bool{
	"Deployment":  true,
	"DaemonSet":   true,
	"ReplicaSet":  true,
	"StatefulSet": true,
}

func (s *workloadSelectorStrategy) Name() string { return "workload-selector" }

func (s *workloadSelectorStrategy) Matches(doc *document.Document) bool {
	if !workloadKinds[doc.Kind()] {
		return false
	}
	d, ok := deprecation.Lookup(doc.APIVersion(), doc.Kind())
	return ok && d.Replacement == "apps/v1"
}

func (s *workloadSelectorStrategy) Target(*document.Document) string { return "apps/v1" }

func (s *workloadSelectorStrategy) Transform(root *document.Node, doc *document.Document) error {
	setAPIVersion(root, "apps/v1")

	spec := root.Get("spec")
	if spec == nil || spec.Kind != document.KindMapping {
		return models.NewAmbiguousMigrationError(doc.Kind(), doc.Name(), "no spec to derive a selector from")
	}
	if spec.Lookup("selector", "matchLabels") != nil {
		return nil
	}
	labels := spec.Lookup("template", "metadata", "labels")
	if labels == nil || labels.Kind != document.KindMapping || labels.Len() == 0 {
		return models.NewAmbiguousMigrationError(doc.Kind(), doc.Name(),
			"no template labels to synthesize spec.selector.matchLabels from")
	}

	selector := spec.Get("selector")
	if selector == nil || selector.Kind != document.KindMapping {
		selector = document.NewMapping()
		spec.Set("selector", selector)
	}
	selector.Set("matchLabels", labels.Clone())
	return nil
}

// ingressV1Strategy moves beta Ingresses to networking.k8s.io/v1: backend
// shape conversion plus the pathType that v1 requires.
type ingressV1Strategy struct{}

func (s *ingressV1Strategy) Name() string { return "ingress-v1" }

func (s *ingressV1Strategy) Matches(doc *document.Document) bool {
	if doc.Kind() != "Ingress" {
		return false
	}
	d, ok := deprecation.Lookup(doc.APIVersion(), "Ingress")
	return ok && d.Replacement == "networking.k8s.io/v1"
}

func (s *ingressV1Strategy) Target(*document.Document) string { return "networking.k8s.io/v1" }

func (s *ingressV1Strategy) Transform(root *document.Node, _ *document.Document) error {
	setAPIVersion(root, "networking.k8s.io/v1")

	spec := root.Get("spec")
	if spec == nil {
		return nil
	}
	// spec.backend became spec.defaultBackend
	if legacy := spec.Get("backend"); legacy != nil {
		spec.Remove("backend")
		spec.Set("defaultBackend", convertIngressBackend(legacy))
	}
	rules := spec.Get("rules")
	if rules == nil {
		return nil
	}
	for _, rule := range rules.Items() {
		paths := rule.Lookup("http", "paths")
		if paths == nil {
			continue
		}
		for _, p := range paths.Items() {
			if p.Kind != document.KindMapping {
				continue
			}
			if p.Get("pathType") == nil {
				p.Set("pathType", document.NewScalar("ImplementationSpecific"))
			}
			if backend := p.Get("backend"); backend != nil {
				converted := convertIngressBackend(backend)
				p.Set("backend", converted)
			}
		}
	}
	return nil
}

// convertIngressBackend rewrites {serviceName, servicePort} into the v1
// {service: {name, port: {number|name}}} shape. Already-converted backends
// pass through.
func convertIngressBackend(backend *document.Node) *document.Node {
	name := backend.Get("serviceName")
	port := backend.Get("servicePort")
	if name == nil && port == nil {
		return backend
	}
	service := document.NewMapping()
	if name != nil {
		service.Set("name", name.Clone())
	}
	if port != nil {
		portNode := document.NewMapping()
		if _, ok := port.AsInt(); ok {
			portNode.Set("number", port.Clone())
		} else {
			portNode.Set("name", port.Clone())
		}
		service.Set("port", portNode)
	}
	out := document.NewMapping()
	out.Line, out.Column = backend.Line, backend.Column
	out.Set("service", service)
	return out
}

// cronJobV1Strategy is a plain apiVersion swap for beta CronJobs.
type cronJobV1Strategy struct{}

func (s *cronJobV1Strategy) Name() string { return "cronjob-v1" }

func (s *cronJobV1Strategy) Matches(doc *document.Document) bool {
	if doc.Kind() != "CronJob" {
		return false
	}
	d, ok := deprecation.Lookup(doc.APIVersion(), "CronJob")
	return ok && d.Replacement == "batch/v1"
}

func (s *cronJobV1Strategy) Target(*document.Document) string { return "batch/v1" }

func (s *cronJobV1Strategy) Transform(root *document.Node, _ *document.Document) error {
	setAPIVersion(root, "batch/v1")
	return nil
}

// replaceAPIVersionStrategy is the generic fallback: any table entry with
// a replacement and no structural difference gets a bare swap.
type replaceAPIVersionStrategy struct{}

func (s *replaceAPIVersionStrategy) Name() string { return "replace-apiversion" }

func (s *replaceAPIVersionStrategy) Matches(doc *document.Document) bool {
	d, ok := deprecation.Lookup(doc.APIVersion(), doc.Kind())
	return ok && d.Replacement != ""
}

func (s *replaceAPIVersionStrategy) Target(doc *document.Document) string {
	d, _ := deprecation.Lookup(doc.APIVersion(), doc.Kind())
	if d == nil {
		return ""
	}
	return d.Replacement
}

func (s *replaceAPIVersionStrategy) Transform(root *document.Node, doc *document.Document) error {
	d, ok := deprecation.Lookup(doc.APIVersion(), doc.Kind())
	if !ok || d.Replacement == "" {
		return models.NewMigrationRejectedError(doc.Kind(), doc.Name(), "no replacement api version", nil)
	}
	setAPIVersion(root, d.Replacement)
	return nil
}

func setAPIVersion(root *document.Node, target string) {
	if node := root.Get("apiVersion"); node != nil && node.Kind == document.KindScalar {
		node.Value = target
		return
	}
	root.Set("apiVersion", document.NewScalar(target))
}
