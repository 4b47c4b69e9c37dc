// Package manifest reads run manifests: the anchors, option constraints,
// and pre-filled answers of one questionnaire run.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zen-systems/anchorfill/pkg/answer"
)

// Manifest describes one run. JSON manifests are accepted as YAML.
type Manifest struct {
	// Catalog is a catalog file path, relative to the manifest.
	Catalog        string                `yaml:"catalog,omitempty"`
	Defaults       string                `yaml:"defaults,omitempty"`
	Anchors        AnchorList            `yaml:"anchors,omitempty"`
	AllowedOptions map[string]OptionList `yaml:"allowed_options,omitempty"`
	Existing       map[string]string     `yaml:"existing,omitempty"`
	MaxQuestions   int                   `yaml:"max_questions,omitempty"`
	Interactive    bool                  `yaml:"interactive,omitempty"`

	dir string
}

// AnchorList keeps anchors in document order. It decodes from a mapping
// of id to value or from a list of {question_id, value} records.
type AnchorList []answer.AnchorAnswer

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *AnchorList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.MappingNode:
		out := make(AnchorList, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, val := node.Content[i], node.Content[i+1]
			if val.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: anchor %s must have a scalar value", val.Line, key.Value)
			}
			out = append(out, answer.AnchorAnswer{QuestionID: strings.TrimSpace(key.Value), Value: val.Value})
		}
		*l = out
	case yaml.SequenceNode:
		var records []answer.AnchorAnswer
		if err := node.Decode(&records); err != nil {
			return err
		}
		*l = records
	default:
		return fmt.Errorf("line %d: anchors must be a mapping or a list", node.Line)
	}
	return nil
}

// OptionList decodes from a list or from a pipe-joined string.
type OptionList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (o *OptionList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var out OptionList
		for _, part := range strings.Split(node.Value, "|") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		*o = out
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*o = list
		return nil
	}
	return fmt.Errorf("line %d: options must be a list or a pipe-joined string", node.Line)
}

// Load reads a manifest from a YAML or JSON file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	m.dir = filepath.Dir(path)
	return m, nil
}

// Parse decodes a manifest document.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the manifest for structural errors.
func (m *Manifest) Validate() error {
	if m.MaxQuestions < 0 {
		return fmt.Errorf("max_questions must not be negative")
	}
	for i, a := range m.Anchors {
		if strings.TrimSpace(a.QuestionID) == "" {
			return fmt.Errorf("anchor %d has empty question id", i)
		}
	}
	for id := range m.Existing {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("existing answer has empty question id")
		}
	}
	return nil
}

// CatalogPath returns the catalog path resolved against the manifest's
// directory, or "" when the manifest names none.
func (m *Manifest) CatalogPath() string {
	if m.Catalog == "" {
		return ""
	}
	if filepath.IsAbs(m.Catalog) || m.dir == "" {
		return m.Catalog
	}
	return filepath.Join(m.dir, m.Catalog)
}

// Allowed returns the option constraints keyed by question id.
func (m *Manifest) Allowed() map[string][]string {
	if len(m.AllowedOptions) == 0 {
		return nil
	}
	out := make(map[string][]string, len(m.AllowedOptions))
	for id, opts := range m.AllowedOptions {
		out[strings.TrimSpace(id)] = []string(opts)
	}
	return out
}

// ExistingAnswers returns the pre-filled answers as user answers, for
// anchor selection.
func (m *Manifest) ExistingAnswers() map[string]answer.Answer {
	out := make(map[string]answer.Answer, len(m.Existing)+len(m.Anchors))
	for id, v := range m.Existing {
		id = strings.TrimSpace(id)
		out[id] = answer.Answer{QuestionID: id, Value: v, Source: answer.SourceUser, Confidence: answer.ConfidenceUser}
	}
	for _, a := range m.Anchors {
		src, conf := answer.SourceUser, answer.ConfidenceUser
		if a.Skipped() {
			src, conf = answer.SourceSkipped, answer.ConfidenceSkipped
		}
		out[a.QuestionID] = answer.Answer{QuestionID: a.QuestionID, Value: a.Value, Source: src, Confidence: conf}
	}
	return out
}
