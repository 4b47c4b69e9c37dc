// Package prompt renders the text shown to the analyst for the next
// anchor question.
package prompt

import (
	"fmt"
	"strings"

	"github.com/zen-systems/anchorfill/pkg/catalog"
)

// Next renders the prompt for q. An empty explanation falls back to the
// question's own Explanation.
func Next(q catalog.Question, explanation string) string {
	explanation = strings.TrimSpace(explanation)
	if explanation == "" {
		explanation = strings.TrimSpace(q.Explanation)
	}
	if explanation == "" {
		explanation = "this answer is used to infer related answers"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Why we're asking %s: %s\n\n", q.ID, explanation))
	sb.WriteString(fmt.Sprintf("Actual Question (%s): %s\n\n", q.ID, q.Text))
	sb.WriteString("Available options: ")
	sb.WriteString(strings.Join(q.Options, " | "))
	return sb.String()
}

// Resolves describes how many questions an anchor's answer settles.
func Resolves(n int) string {
	switch n {
	case 0:
		return "this answer is used to infer related answers"
	case 1:
		return "this answer settles 1 other question"
	default:
		return fmt.Sprintf("this answer settles %d other questions", n)
	}
}
