// Package catalog holds the immutable question catalog a questionnaire run
// is evaluated against.
//
// A Catalog is built once from normalized Question records and never
// mutated. Reloading a source document produces a new Catalog with a new
// version; see Holder for swapping snapshots under concurrent readers.
package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrEmptyCatalog is returned when a catalog has no questions. It is the
// only condition under which no answers can be produced.
var ErrEmptyCatalog = errors.New("catalog is empty")

// LookupError reports a reference to a question id absent from the catalog.
type LookupError struct {
	ID string
	// Ref describes who referenced the id, e.g. "anchor" or "rule gating-ai".
	Ref string
}

func (e *LookupError) Error() string {
	if e == nil {
		return "catalog lookup error"
	}
	if e.Ref != "" {
		return fmt.Sprintf("%s references unknown question %q", e.Ref, e.ID)
	}
	return fmt.Sprintf("unknown question %q", e.ID)
}

// Catalog is an ordered, read-only set of questions.
type Catalog struct {
	version   string
	questions []Question
	index     map[string]int
}

// New validates and indexes questions. When version is empty a content hash
// of the questions is used.
func New(version string, questions []Question) (*Catalog, error) {
	if len(questions) == 0 {
		return nil, ErrEmptyCatalog
	}

	qs := make([]Question, len(questions))
	for i, q := range questions {
		q.ID = strings.TrimSpace(q.ID)
		if q.ID == "" {
			return nil, fmt.Errorf("question %d has empty id", i)
		}
		q.Options = append([]string(nil), q.Options...)
		qs[i] = q
	}

	sort.SliceStable(qs, func(i, j int) bool {
		return CompareIDs(qs[i].ID, qs[j].ID) < 0
	})

	index := make(map[string]int, len(qs))
	for i, q := range qs {
		if _, ok := index[q.ID]; ok {
			return nil, fmt.Errorf("duplicate question id %q", q.ID)
		}
		index[q.ID] = i
	}

	c := &Catalog{questions: qs, index: index, version: version}
	if c.version == "" {
		c.version = c.computeHash()
	}
	return c, nil
}

// Version identifies this snapshot.
func (c *Catalog) Version() string {
	if c == nil {
		return ""
	}
	return c.version
}

// Len returns the number of questions.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.questions)
}

// Has reports whether id exists.
func (c *Catalog) Has(id string) bool {
	if c == nil {
		return false
	}
	_, ok := c.index[id]
	return ok
}

// Get returns the question with the given id.
func (c *Catalog) Get(id string) (Question, error) {
	if c != nil {
		if i, ok := c.index[id]; ok {
			return c.questions[i], nil
		}
	}
	return Question{}, &LookupError{ID: id}
}

// Questions returns all questions ordered by id.
func (c *Catalog) Questions() []Question {
	if c == nil {
		return nil
	}
	out := make([]Question, len(c.questions))
	copy(out, c.questions)
	return out
}

// Anchors returns the anchor questions ordered by id.
func (c *Catalog) Anchors() []Question {
	var out []Question
	for _, q := range c.Questions() {
		if q.IsAnchor {
			out = append(out, q)
		}
	}
	return out
}

// Cluster returns the cluster of a known question.
func (c *Catalog) Cluster(id string) (string, error) {
	q, err := c.Get(id)
	if err != nil {
		return "", err
	}
	return q.Cluster(), nil
}

// InCluster returns the questions of a cluster ordered by id.
func (c *Catalog) InCluster(cluster string) []Question {
	var out []Question
	for _, q := range c.Questions() {
		if q.Cluster() == cluster {
			out = append(out, q)
		}
	}
	return out
}

// Clusters returns the distinct cluster names in id order.
func (c *Catalog) Clusters() []string {
	var out []string
	seen := make(map[string]struct{})
	for _, q := range c.Questions() {
		cl := q.Cluster()
		if _, ok := seen[cl]; ok {
			continue
		}
		seen[cl] = struct{}{}
		out = append(out, cl)
	}
	return out
}

// GatingQuestion returns the question gating id's cluster, if any.
func (c *Catalog) GatingQuestion(id string) (Question, bool, error) {
	q, err := c.Get(id)
	if err != nil {
		return Question{}, false, err
	}
	if q.GatingQuestionID == "" {
		return Question{}, false, nil
	}
	g, err := c.Get(q.GatingQuestionID)
	if err != nil {
		return Question{}, false, &LookupError{ID: q.GatingQuestionID, Ref: "question " + id}
	}
	return g, true, nil
}

func (c *Catalog) computeHash() string {
	data, _ := json.Marshal(c.questions)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}
