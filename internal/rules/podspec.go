package rules

import "github.com/yamlr/yamlr/internal/document"

// podSpecPaths are the places a pod template can live, per workload kind
// family.
var podSpecPaths = [][]string{
	{"spec"}, // Pod
	{"spec", "template", "spec"},
	{"spec", "jobTemplate", "spec", "template", "spec"}, // CronJob
}

// container is one container entry with its owning document position.
type container struct {
	node *document.Node
}

func (c container) name() string {
	v, _ := c.node.LookupString("name")
	return v
}

func (c container) image() string {
	v, _ := c.node.LookupString("image")
	return v
}

// containersOf collects all container and initContainer entries across the
// known pod template locations.
func containersOf(doc *document.Document) []container {
	var out []container
	for _, path := range podSpecPaths {
		spec := doc.Root.Lookup(path...)
		if spec == nil {
			continue
		}
		for _, field := range []string{"containers", "initContainers"} {
			list := spec.Get(field)
			if list == nil || list.Kind != document.KindSequence {
				continue
			}
			for _, item := range list.Items() {
				if item.Kind == document.KindMapping {
					out = append(out, container{node: item})
				}
			}
		}
	}
	return out
}
