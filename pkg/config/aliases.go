package config

import (
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// AnswerAliases maps answer spellings seen in source documents to the
// canonical value gating rules are written against.
type AnswerAliases struct {
	Aliases map[string]string `yaml:"aliases"`
}

// LoadAliases reads answer aliases from a YAML file.
func LoadAliases(path string) (*AnswerAliases, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var aliases AnswerAliases
	if err := yaml.Unmarshal(data, &aliases); err != nil {
		return nil, err
	}
	aliases.normalize()
	return &aliases, nil
}

// LoadAliasesWithFallback loads aliases from path, falling back to the
// built-in aliases if the file does not exist.
func LoadAliasesWithFallback(path string) (*AnswerAliases, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return LoadAliases(path)
		}
	}
	return DefaultAliases(), nil
}

func (a *AnswerAliases) normalize() {
	out := make(map[string]string, len(a.Aliases))
	for k, v := range a.Aliases {
		out[aliasKey(k)] = v
	}
	a.Aliases = out
}

func aliasKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Resolve returns the canonical value for an alias.
// If the input is not an alias, it returns the input unchanged.
func (a *AnswerAliases) Resolve(value string) string {
	if a == nil || a.Aliases == nil {
		return value
	}
	if canonical, ok := a.Aliases[aliasKey(value)]; ok {
		return canonical
	}
	return value
}

// IsAlias returns true if the given string is a known alias.
func (a *AnswerAliases) IsAlias(value string) bool {
	if a == nil || a.Aliases == nil {
		return false
	}
	_, ok := a.Aliases[aliasKey(value)]
	return ok
}

// ListAliases returns the alias keys in sorted order.
func (a *AnswerAliases) ListAliases() []string {
	if a == nil {
		return nil
	}
	keys := make([]string, 0, len(a.Aliases))
	for k := range a.Aliases {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DefaultAliases returns the built-in answer aliases.
func DefaultAliases() *AnswerAliases {
	a := &AnswerAliases{
		Aliases: map[string]string{
			"y":              "Yes",
			"yes.":           "Yes",
			"true":           "Yes",
			"n":              "No",
			"no.":            "No",
			"false":          "No",
			"na":             "Not Applicable",
			"n/a":            "Not Applicable",
			"n.a.":           "Not Applicable",
			"not relevant":   "Not Applicable",
			"does not apply": "Not Applicable",
		},
	}
	a.normalize()
	return a
}
