package permissions

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed system_groups.yaml
var systemGroupsYAML []byte

// GroupTemplate is a system permission group definition. Templates are copied
// into each organization and the copies are immutable.
type GroupTemplate struct {
	Name        string `yaml:"name" json:"name"`
	DisplayName string `yaml:"display_name" json:"display_name"`
	Description string `yaml:"description" json:"description"`
	Permissions []Key  `yaml:"-" json:"permissions"`
}

type templateFile struct {
	Groups []struct {
		Name        string   `yaml:"name"`
		DisplayName string   `yaml:"display_name"`
		Description string   `yaml:"description"`
		All         bool     `yaml:"all"`
		Permissions []string `yaml:"permissions"`
	} `yaml:"groups"`
}

var systemTemplates = mustLoadTemplates(systemGroupsYAML)

// parseTemplates decodes a template document and validates every key
func parseTemplates(data []byte) ([]GroupTemplate, error) {
	var file templateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse system group templates: %w", err)
	}

	seen := make(map[string]bool, len(file.Groups))
	templates := make([]GroupTemplate, 0, len(file.Groups))
	for _, g := range file.Groups {
		if g.Name == "" {
			return nil, fmt.Errorf("system group template without a name")
		}
		if seen[g.Name] {
			return nil, fmt.Errorf("duplicate system group template: %s", g.Name)
		}
		seen[g.Name] = true

		tpl := GroupTemplate{
			Name:        g.Name,
			DisplayName: g.DisplayName,
			Description: g.Description,
		}
		if g.All {
			tpl.Permissions = All()
		} else {
			set := NewSet()
			for _, raw := range g.Permissions {
				k, err := Parse(raw)
				if err != nil {
					return nil, fmt.Errorf("system group %s: %w", g.Name, err)
				}
				set.Add(k)
			}
			tpl.Permissions = set.Sorted()
		}
		templates = append(templates, tpl)
	}
	return templates, nil
}

func mustLoadTemplates(data []byte) []GroupTemplate {
	templates, err := parseTemplates(data)
	if err != nil {
		panic(err)
	}
	return templates
}

// SystemGroups returns copies of the system group templates
func SystemGroups() []GroupTemplate {
	out := make([]GroupTemplate, len(systemTemplates))
	for i, t := range systemTemplates {
		t.Permissions = append([]Key(nil), t.Permissions...)
		out[i] = t
	}
	return out
}

// SystemGroup looks up a system template by name
func SystemGroup(name string) (GroupTemplate, bool) {
	for _, t := range SystemGroups() {
		if t.Name == name {
			return t, true
		}
	}
	return GroupTemplate{}, false
}
