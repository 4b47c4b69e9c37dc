package catalog

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// fileCatalog is the on-disk shape produced by the document parser.
// Records are decoded loosely and normalized by normalizeRecord.
type fileCatalog struct {
	Version   string           `yaml:"version"`
	Questions []map[string]any `yaml:"questions"`
}

// LoadFile reads a catalog from a YAML or JSON file. JSON is decoded with
// the YAML decoder, which accepts it as a subset. The file may hold either
// a bare list of question records or a {version, questions} document.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes catalog bytes. See LoadFile.
func Parse(data []byte) (*Catalog, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, ErrEmptyCatalog
	}

	var doc fileCatalog
	switch node.Content[0].Kind {
	case yaml.SequenceNode:
		if err := node.Content[0].Decode(&doc.Questions); err != nil {
			return nil, fmt.Errorf("parse catalog: %w", err)
		}
	default:
		if err := node.Content[0].Decode(&doc); err != nil {
			return nil, fmt.Errorf("parse catalog: %w", err)
		}
	}

	questions := make([]Question, 0, len(doc.Questions))
	for i, rec := range doc.Questions {
		q, err := normalizeRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("question record %d: %w", i, err)
		}
		questions = append(questions, q)
	}
	return New(doc.Version, questions)
}

// normalizeRecord turns a loosely typed record into a Question. Accepted
// aliases mirror the column names spreadsheets tend to use.
func normalizeRecord(rec map[string]any) (Question, error) {
	var q Question
	q.ID = firstString(rec, "id", "question_id", "number")
	if q.ID == "" {
		return q, fmt.Errorf("missing id")
	}
	q.Text = firstString(rec, "text", "question", "question_text")
	q.DefaultAnswer = firstString(rec, "default_answer", "default")
	q.GatingQuestionID = firstString(rec, "gating_question_id", "gate", "gated_by")
	q.Explanation = firstString(rec, "explanation", "why")
	q.Options = toOptions(first(rec, "options", "choices"))

	anchor, err := toBool(first(rec, "is_anchor", "anchor"))
	if err != nil {
		return q, fmt.Errorf("question %s anchor flag: %w", q.ID, err)
	}
	q.IsAnchor = anchor

	prio, err := toInt(first(rec, "priority"))
	if err != nil {
		return q, fmt.Errorf("question %s priority: %w", q.ID, err)
	}
	q.Priority = prio
	return q, nil
}

func first(rec map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := rec[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstString(rec map[string]any, keys ...string) string {
	switch v := first(rec, keys...).(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// toOptions accepts a list or a pipe-joined string ("Yes | No").
func toOptions(v any) []string {
	var raw []string
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		raw = strings.Split(t, "|")
	case []any:
		for _, item := range t {
			raw = append(raw, fmt.Sprint(item))
		}
	default:
		raw = []string{fmt.Sprint(t)}
	}

	var out []string
	for _, o := range raw {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func toBool(v any) (bool, error) {
	switch t := v.(type) {
	case nil:
		return false, nil
	case bool:
		return t, nil
	case int:
		return t != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "", "false", "no", "n", "0":
			return false, nil
		case "true", "yes", "y", "1":
			return true, nil
		}
		return false, fmt.Errorf("invalid boolean %q", t)
	}
	return false, fmt.Errorf("invalid boolean %v", v)
}

func toInt(v any) (int, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case int:
		return t, nil
	case float64:
		return int(t), nil
	case string:
		t = strings.TrimSpace(t)
		if t == "" {
			return 0, nil
		}
		return strconv.Atoi(t)
	}
	return 0, fmt.Errorf("invalid integer %v", v)
}
