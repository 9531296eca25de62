package pricing

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Condition matches when slot holds an option whose identifier equals Value.
type Condition struct {
	Slot  string `yaml:"slot"`
	Value string `yaml:"value"`
}

// Rule forbids all of its conditions from holding at once.
type Rule struct {
	Name   string      `yaml:"name"`
	Forbid []Condition `yaml:"forbid"`
}

func (r Rule) matches(sel Selection) bool {
	if len(r.Forbid) == 0 {
		return false
	}
	for _, c := range r.Forbid {
		v, ok := sel[c.Slot]
		if !ok || v.ID != c.Value {
			return false
		}
	}
	return true
}

// DefaultRules is the table shipped with the service.
func DefaultRules() []Rule {
	return []Rule{{
		Name: "neon-leather",
		Forbid: []Condition{
			{Slot: "color", Value: "neon"},
			{Slot: "material", Value: "leather"},
		},
	}}
}

type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// ParseRules decodes a YAML rule table.
func ParseRules(data []byte) ([]Rule, error) {
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("pricing: parse rules: %w", err)
	}
	for i, r := range f.Rules {
		if len(r.Forbid) == 0 {
			return nil, fmt.Errorf("pricing: rule %d (%q) has no conditions", i, r.Name)
		}
		for _, c := range r.Forbid {
			if c.Slot == "" || c.Value == "" {
				return nil, fmt.Errorf("pricing: rule %d (%q) has an empty slot or value", i, r.Name)
			}
		}
	}
	return f.Rules, nil
}

// LoadRules reads a YAML rule table from path.
// RulesFor loads the rules file at path, or the default rules when path is empty.
func RulesFor(path string) ([]Rule, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	return LoadRules(path)
}

func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pricing: read rules: %w", err)
	}
	return ParseRules(data)
}
