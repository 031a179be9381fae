package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"ft-go/internal/ft"
)

// structureFile is the YAML shape of the target-structure ruleset.
type structureFile struct {
	DefaultTemplate   string              `yaml:"default_template"`
	PreferredPrefixes []string            `yaml:"preferred_prefixes"`
	Types             map[string]typeRule `yaml:"types"`
}

type typeRule struct {
	Template string   `yaml:"template"`
	Patterns []string `yaml:"patterns"`
}

// LoadStructure reads and validates a structure ruleset from a YAML file.
// Malformed YAML, an empty ruleset, or an invalid classifier regex all fail
// the load; a planner must never run against undefined placement semantics.
func LoadStructure(path string) (*ft.Structure, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading structure file: %w", err)
	}

	var sf structureFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parsing structure file %s: %w", path, err)
	}

	if len(sf.Types) == 0 && sf.DefaultTemplate == "" {
		return nil, fmt.Errorf("structure file %s defines no types and no default template", path)
	}

	s := &ft.Structure{
		DefaultTemplate:   sf.DefaultTemplate,
		PreferredPrefixes: sf.PreferredPrefixes,
		Types:             make(map[string]ft.TypeRule, len(sf.Types)),
	}
	for name, rule := range sf.Types {
		for _, p := range rule.Patterns {
			if _, err := regexp.Compile(p); err != nil {
				return nil, fmt.Errorf("type %q: invalid pattern %q: %w", name, p, err)
			}
		}
		s.Types[name] = ft.TypeRule{Template: rule.Template, Patterns: rule.Patterns}
	}
	return s, nil
}
