package resource

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Definition describes a resource and the views it offers.
type Definition struct {
	Name      string         `json:"name" yaml:"name"`
	HasList   bool           `json:"hasList" yaml:"hasList"`
	HasCreate bool           `json:"hasCreate" yaml:"hasCreate"`
	HasEdit   bool           `json:"hasEdit" yaml:"hasEdit"`
	HasShow   bool           `json:"hasShow" yaml:"hasShow"`
	Icon      string         `json:"icon,omitempty" yaml:"icon,omitempty"`
	Options   map[string]any `json:"options,omitempty" yaml:"options,omitempty"`
}

// Label returns the "label" option, or the resource name.
func (d Definition) Label() string {
	if l, ok := d.Options["label"].(string); ok && l != "" {
		return l
	}
	return d.Name
}

type definitionsFile struct {
	Resources []Definition `yaml:"resources"`
}

// LoadDefinitions reads a YAML document of the form
//
//	resources:
//	  - name: posts
//	    hasList: true
//	    hasEdit: true
func LoadDefinitions(r io.Reader) ([]Definition, error) {
	var f definitionsFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode resource definitions: %w", err)
	}
	seen := make(map[string]bool, len(f.Resources))
	for i, d := range f.Resources {
		if d.Name == "" {
			return nil, fmt.Errorf("resource definition #%d has no name", i+1)
		}
		if seen[d.Name] {
			return nil, fmt.Errorf("resource %q defined twice", d.Name)
		}
		seen[d.Name] = true
	}
	return f.Resources, nil
}

// LoadDefinitionsFile opens path and calls LoadDefinitions.
func LoadDefinitionsFile(path string) ([]Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadDefinitions(f)
}
