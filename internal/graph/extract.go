package graph

import (
	"github.com/yamlr/yamlr/internal/document"
	"github.com/yamlr/yamlr/internal/logging"
)

var logger = logging.GetLogger("graph")

// workloadTemplatePaths locate the pod template per kind family.
var workloadTemplatePaths = map[string][]string{
	"Deployment":  {"spec", "template"},
	"StatefulSet": {"spec", "template"},
	"DaemonSet":   {"spec", "template"},
	"ReplicaSet":  {"spec", "template"},
	"Job":         {"spec", "template"},
	"CronJob":     {"spec", "jobTemplate", "spec", "template"},
}

// Build extracts identities from the given documents and indexes them.
// Documents that failed to parse never reach this point.
func Build(docs []*document.Document) *Graph {
	g := &Graph{index: map[string]*Resource{}}
	for _, doc := range docs {
		r := extract(doc)
		if r == nil {
			continue
		}
		g.resources = append(g.resources, r)
		if _, exists := g.index[r.ID()]; exists {
			logger.Debug("duplicate resource identity %s, keeping first", r.ID())
			continue
		}
		g.index[r.ID()] = r
	}
	return g
}

func extract(doc *document.Document) *Resource {
	kind := doc.Kind()
	if kind == "" || doc.Empty() {
		return nil
	}
	r := &Resource{
		Doc:       doc,
		Kind:      kind,
		Namespace: doc.Namespace(),
		Name:      doc.Name(),
	}

	switch kind {
	case "Service":
		r.Selector = doc.Root.Lookup("spec", "selector").StringMap()
		extractServicePorts(doc.Root.Lookup("spec", "ports"), r)
	case "Pod":
		r.PodLabels = doc.Root.Lookup("metadata", "labels").StringMap()
		podSpec := doc.Root.Get("spec")
		extractContainerPorts(podSpec, r)
		extractRefs(podSpec, r)
	case "Ingress":
		extractBackends(doc.Root.Get("spec"), r)
	default:
		if path, ok := workloadTemplatePaths[kind]; ok {
			template := doc.Root.Lookup(path...)
			r.PodLabels = template.Lookup("metadata", "labels").StringMap()
			podSpec := template.Get("spec")
			extractContainerPorts(podSpec, r)
			extractRefs(podSpec, r)
		}
	}
	return r
}

func extractServicePorts(ports *document.Node, r *Resource) {
	for _, item := range ports.Items() {
		if item.Kind != document.KindMapping {
			continue
		}
		sp := ServicePort{Node: item}
		if v, ok := item.Get("port").AsInt(); ok {
			sp.Port = v
		}
		if v, ok := item.LookupString("name"); ok {
			sp.Name = v
		}
		if t := item.Get("targetPort"); t != nil && t.Kind == document.KindScalar {
			sp.TargetPort = t.Value
		}
		r.ServicePorts = append(r.ServicePorts, sp)
	}
}

func extractContainerPorts(podSpec *document.Node, r *Resource) {
	for _, field := range []string{"containers", "initContainers"} {
		for _, c := range podSpec.Get(field).Items() {
			for _, p := range c.Get("ports").Items() {
				if p.Kind != document.KindMapping {
					continue
				}
				port := Port{}
				if v, ok := p.Get("containerPort").AsInt(); ok {
					port.Number = v
				}
				if v, ok := p.LookupString("name"); ok {
					port.Name = v
				}
				r.ContainerPorts = append(r.ContainerPorts, port)
			}
		}
	}
}

func extractBackends(spec *document.Node, r *Resource) {
	if spec == nil {
		return
	}
	if b := spec.Get("defaultBackend"); b != nil {
		appendBackend(b, r)
	}
	if b := spec.Get("backend"); b != nil {
		appendBackend(b, r)
	}
	for _, rule := range spec.Get("rules").Items() {
		for _, p := range rule.Lookup("http", "paths").Items() {
			if b := p.Get("backend"); b != nil {
				appendBackend(b, r)
			}
		}
	}
}

// appendBackend reads both the v1 shape (service.name/port) and the
// legacy one (serviceName/servicePort).
func appendBackend(node *document.Node, r *Resource) {
	b := Backend{Node: node}
	if service := node.Get("service"); service != nil {
		b.Service, _ = service.LookupString("name")
		if port := service.Get("port"); port != nil {
			if v, ok := port.Get("number").AsInt(); ok {
				b.PortNumber = v
			}
			b.PortName, _ = port.LookupString("name")
		}
	} else {
		b.Service, _ = node.LookupString("serviceName")
		if port := node.Get("servicePort"); port != nil {
			if v, ok := port.AsInt(); ok {
				b.PortNumber = v
			} else {
				b.PortName = port.Value
			}
		}
	}
	if b.Service == "" {
		return
	}
	r.Backends = append(r.Backends, b)
}

func extractRefs(podSpec *document.Node, r *Resource) {
	if podSpec == nil {
		return
	}
	for _, v := range podSpec.Get("volumes").Items() {
		if cm := v.Get("configMap"); cm != nil {
			addRef(r, "ConfigMap", cm, "name")
		}
		if s := v.Get("secret"); s != nil {
			addRef(r, "Secret", s, "secretName")
		}
		if pvc := v.Get("persistentVolumeClaim"); pvc != nil {
			addRef(r, "PersistentVolumeClaim", pvc, "claimName")
		}
	}
	for _, field := range []string{"containers", "initContainers"} {
		for _, c := range podSpec.Get(field).Items() {
			for _, ef := range c.Get("envFrom").Items() {
				if cm := ef.Get("configMapRef"); cm != nil {
					addRef(r, "ConfigMap", cm, "name")
				}
				if s := ef.Get("secretRef"); s != nil {
					addRef(r, "Secret", s, "name")
				}
			}
			for _, env := range c.Get("env").Items() {
				vf := env.Lookup("valueFrom")
				if vf == nil {
					continue
				}
				if cm := vf.Get("configMapKeyRef"); cm != nil {
					addRef(r, "ConfigMap", cm, "name")
				}
				if s := vf.Get("secretKeyRef"); s != nil {
					addRef(r, "Secret", s, "name")
				}
			}
		}
	}
}

func addRef(r *Resource, kind string, node *document.Node, nameField string) {
	name, ok := node.LookupString(nameField)
	if !ok || name == "" {
		return
	}
	optional, _ := node.Get("optional").AsBool()
	r.Refs = append(r.Refs, Ref{Kind: kind, Name: name, Optional: optional, Node: node})
}
