package catalog

import (
	"strconv"
	"strings"
)

// Question is a single normalized questionnaire entry.
type Question struct {
	ID               string   `json:"id" yaml:"id"`
	Text             string   `json:"text" yaml:"text"`
	Options          []string `json:"options,omitempty" yaml:"options,omitempty"`
	IsAnchor         bool     `json:"is_anchor" yaml:"is_anchor"`
	GatingQuestionID string   `json:"gating_question_id,omitempty" yaml:"gating_question_id,omitempty"`
	DefaultAnswer    string   `json:"default_answer,omitempty" yaml:"default_answer,omitempty"`
	Priority         int      `json:"priority" yaml:"priority"`
	Explanation      string   `json:"explanation,omitempty" yaml:"explanation,omitempty"`
}

// Cluster returns the cluster the question belongs to.
func (q Question) Cluster() string {
	return ClusterOf(q.ID)
}

// ClusterOf returns the numeral before the first dot of a question id.
// An id without a dot is its own cluster.
func ClusterOf(id string) string {
	id = strings.TrimSpace(id)
	if idx := strings.Index(id, "."); idx >= 0 {
		return id[:idx]
	}
	return id
}

// CompareIDs orders dotted ids segment by segment, numerically where both
// segments are numbers, so "7.3" sorts before "7.15".
func CompareIDs(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		if c := compareSegment(as[i], bs[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(as) < len(bs):
		return -1
	case len(as) > len(bs):
		return 1
	}
	return 0
}

func compareSegment(a, b string) int {
	an, aerr := strconv.Atoi(a)
	bn, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		}
		return 0
	}
	// Numeric segments sort before free-form ones.
	if aerr == nil {
		return -1
	}
	if berr == nil {
		return 1
	}
	return strings.Compare(a, b)
}
