// Package graph links resources across documents and files: services to
// the workloads they select, ingresses to their backends, pods to the
// configs they mount. Detections run over the linked view only after every
// file has parsed.
package graph

import (
	"fmt"

	"github.com/yamlr/yamlr/internal/document"
)

// Port is a container port: number plus optional name.
type Port struct {
	Number int
	Name   string
}

// ServicePort is one entry of a Service spec.ports list. TargetPort keeps
// the raw scalar since it may be a number or a port name; empty means it
// defaults to Port.
type ServicePort struct {
	Port       int
	TargetPort string
	Name       string
	Node       *document.Node
}

// Backend is an ingress backend reference to a service port.
type Backend struct {
	Service    string
	PortNumber int
	PortName   string
	Node       *document.Node
}

// Ref is a reference from a pod spec to a config-ish resource.
type Ref struct {
	Kind     string // ConfigMap, Secret, PersistentVolumeClaim
	Name     string
	Optional bool
	Node     *document.Node
}

// Resource is one document with its cross-referencing identity extracted.
type Resource struct {
	Doc       *document.Document
	Kind      string
	Namespace string
	Name      string

	Selector       map[string]string
	PodLabels      map[string]string
	ContainerPorts []Port
	ServicePorts   []ServicePort
	Backends       []Backend
	Refs           []Ref
}

// ID returns the index key kind/namespace/name.
func (r *Resource) ID() string {
	return fmt.Sprintf("%s/%s/%s", r.Kind, r.Namespace, r.Name)
}

// EdgeKind labels what a graph edge means.
type EdgeKind string

const (
	EdgeSelects    EdgeKind = "selects"    // Service -> workload
	EdgeBackend    EdgeKind = "backend"    // Ingress -> Service
	EdgeReferences EdgeKind = "references" // pod spec -> config resource
)

// Edge is one directed link between resources. To names the intended
// target even when it does not exist; Resolved records whether it did.
type Edge struct {
	From     string   `json:"from"`
	To       string   `json:"to"`
	Kind     EdgeKind `json:"kind"`
	Resolved bool     `json:"resolved"`
}

// Graph is the indexed, linked set of resources of one scan.
type Graph struct {
	resources []*Resource
	index     map[string]*Resource
	edges     []Edge
}

// Resources returns all resources in input order.
func (g *Graph) Resources() []*Resource {
	return g.resources
}

// Edges returns all recorded edges.
func (g *Graph) Edges() []Edge {
	return g.edges
}

// lookup finds a resource by kind, namespace and name.
func (g *Graph) lookup(kind, namespace, name string) (*Resource, bool) {
	r, ok := g.index[fmt.Sprintf("%s/%s/%s", kind, namespace, name)]
	return r, ok
}

func (g *Graph) addEdge(from, to string, kind EdgeKind, resolved bool) {
	g.edges = append(g.edges, Edge{From: from, To: to, Kind: kind, Resolved: resolved})
}
