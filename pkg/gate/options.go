package gate

import (
	"fmt"
	"strings"

	"github.com/zen-systems/anchorfill/pkg/answer"
)

// RuleOptionMismatch is the violation rule reported by OptionGate.
const RuleOptionMismatch = "option_mismatch"

// OptionMismatch reports an answer value outside its allowed option list.
type OptionMismatch struct {
	QuestionID string
	Value      string
	Allowed    []string
}

func (e *OptionMismatch) Error() string {
	if e == nil {
		return "option mismatch"
	}
	return fmt.Sprintf("question %s: answer %q is not one of %s", e.QuestionID, e.Value, strings.Join(e.Allowed, " | "))
}

// OptionGate enforces caller-supplied allowed-option lists.
type OptionGate struct {
	allowed map[string][]string
	lookup  map[string]map[string]struct{}
}

var _ Gate = (*OptionGate)(nil)

// NewOptionGate creates a gate for allowed, keyed by question id. Empty
// lists are treated as absent.
func NewOptionGate(allowed map[string][]string) *OptionGate {
	g := &OptionGate{
		allowed: make(map[string][]string, len(allowed)),
		lookup:  make(map[string]map[string]struct{}, len(allowed)),
	}
	for id, opts := range allowed {
		id = strings.TrimSpace(id)
		set := make(map[string]struct{}, len(opts))
		var kept []string
		for _, o := range opts {
			key := foldOption(o)
			if key == "" {
				continue
			}
			set[key] = struct{}{}
			kept = append(kept, strings.TrimSpace(o))
		}
		if len(kept) == 0 {
			continue
		}
		g.allowed[id] = kept
		g.lookup[id] = set
	}
	return g
}

// Name returns the gate identifier.
func (g *OptionGate) Name() string {
	return "allowed_options"
}

// Allowed returns the normalized option list for id.
func (g *OptionGate) Allowed(id string) ([]string, bool) {
	opts, ok := g.allowed[id]
	return opts, ok
}

// Check flags every answer whose value is not in its question's list.
// Flagged answers get NeedsReview set; value and confidence are left
// untouched.
func (g *OptionGate) Check(answers []answer.Answer) *GateResult {
	var violations []Violation
	var errs []error
	checked := 0

	for i := range answers {
		a := &answers[i]
		set, ok := g.lookup[a.QuestionID]
		if !ok {
			continue
		}
		checked++
		if _, ok := set[foldOption(a.Value)]; ok {
			continue
		}

		a.NeedsReview = true
		mismatch := &OptionMismatch{QuestionID: a.QuestionID, Value: a.Value, Allowed: g.allowed[a.QuestionID]}
		errs = append(errs, mismatch)
		violations = append(violations, Violation{
			Rule:       RuleOptionMismatch,
			Severity:   "warning",
			Message:    mismatch.Error(),
			Location:   a.QuestionID,
			Suggestion: "choose one of: " + strings.Join(mismatch.Allowed, " | "),
		})
	}

	score := 100
	if checked > 0 {
		score = (checked - len(violations)) * 100 / checked
	}
	if len(violations) == 0 {
		res := NewPassingResult(score)
		res.Checked = checked
		return res
	}
	res := NewFailingResult(score, violations, errs)
	res.Checked = checked
	return res
}

func foldOption(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
