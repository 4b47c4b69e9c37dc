// Package anchor picks the next anchor questions to put to the analyst.
package anchor

import (
	"sort"

	"github.com/zen-systems/anchorfill/pkg/answer"
	"github.com/zen-systems/anchorfill/pkg/catalog"
)

// DefaultMax is used when a caller does not bound the selection.
const DefaultMax = 7

// Select returns at most max anchor questions that have no entry in
// existing, ordered by priority then id.
func Select(cat *catalog.Catalog, existing map[string]answer.Answer, max int) []catalog.Question {
	if max <= 0 {
		max = DefaultMax
	}
	remaining := Remaining(cat, existing)
	if len(remaining) > max {
		remaining = remaining[:max]
	}
	return remaining
}

// Remaining returns every unanswered anchor in selection order.
func Remaining(cat *catalog.Catalog, existing map[string]answer.Answer) []catalog.Question {
	var out []catalog.Question
	for _, q := range cat.Anchors() {
		if _, ok := existing[q.ID]; ok {
			continue
		}
		out = append(out, q)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return catalog.CompareIDs(out[i].ID, out[j].ID) < 0
	})
	return out
}
