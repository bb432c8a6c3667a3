// Package catalog holds the embedded resource schema catalog: for each
// known apiVersion/kind pair, its required fields, field types and API
// lifecycle metadata.
package catalog

import (
	"embed"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed data/catalog.yaml
var dataFS embed.FS

// FieldType is the expected shape of a schema field.
type FieldType string

const (
	TypeString   FieldType = "string"
	TypeInt      FieldType = "int"
	TypeBool     FieldType = "bool"
	TypeMapping  FieldType = "mapping"
	TypeSequence FieldType = "sequence"
)

// Entry describes one catalogued resource schema. Field paths are dotted
// ("spec.selector"); lifecycle versions are bare Kubernetes minors
// ("1.16").
type Entry struct {
	APIVersion      string               `yaml:"apiVersion"`
	Kind            string               `yaml:"kind"`
	Required        []string             `yaml:"required"`
	Fields          map[string]FieldType `yaml:"fields"`
	DeprecatedSince string               `yaml:"deprecatedSince"`
	RemovedSince    string               `yaml:"removedSince"`
	Replacement     string               `yaml:"replacement"`
}

// Deprecated reports whether the entry's API version is on its way out.
func (e *Entry) Deprecated() bool {
	return e.DeprecatedSince != ""
}

// Key returns the lookup key for the entry.
func (e *Entry) Key() string {
	return e.APIVersion + "/" + e.Kind
}

type catalog struct {
	entries map[string]*Entry
}

var (
	loadOnce sync.Once
	loaded   *catalog
	loadErr  error
)

func load() (*catalog, error) {
	loadOnce.Do(func() {
		raw, err := dataFS.ReadFile("data/catalog.yaml")
		if err != nil {
			loadErr = fmt.Errorf("reading embedded catalog: %w", err)
			return
		}
		var file struct {
			Resources []*Entry `yaml:"resources"`
		}
		if err := yaml.Unmarshal(raw, &file); err != nil {
			loadErr = fmt.Errorf("decoding embedded catalog: %w", err)
			return
		}
		c := &catalog{entries: make(map[string]*Entry, len(file.Resources))}
		for _, e := range file.Resources {
			c.entries[e.Key()] = e
		}
		loaded = c
	})
	return loaded, loadErr
}

// Lookup returns the schema entry for an apiVersion/kind pair.
func Lookup(apiVersion, kind string) (*Entry, bool) {
	c, err := load()
	if err != nil {
		return nil, false
	}
	e, ok := c.entries[apiVersion+"/"+kind]
	return e, ok
}

// KnownKind reports whether any catalogued apiVersion declares the kind.
func KnownKind(kind string) bool {
	c, err := load()
	if err != nil {
		return false
	}
	for _, e := range c.entries {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

// All returns every entry ordered by apiVersion then kind.
func All() []*Entry {
	c, err := load()
	if err != nil {
		return nil
	}
	out := make([]*Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].APIVersion != out[j].APIVersion {
			return out[i].APIVersion < out[j].APIVersion
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}
