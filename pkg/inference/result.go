package inference

import (
	"encoding/json"

	"github.com/zen-systems/anchorfill/pkg/answer"
	"github.com/zen-systems/anchorfill/pkg/gate"
)

// PredictOptions configures a single Predict call.
type PredictOptions struct {
	// AllowedOptions restricts answer values per question id.
	AllowedOptions map[string][]string
	// Interactive requests a prompt for the next unanswered anchor.
	Interactive bool
}

// Result is the outcome of one inference run.
type Result struct {
	RunID          string           `json:"run_id"`
	CatalogVersion string           `json:"catalog_version"`
	Answers        []answer.Answer  `json:"answers"`
	Histogram      answer.Histogram `json:"histogram"`
	Passes         int              `json:"passes"`
	Diagnostics    []error          `json:"-"`
	Violations     []gate.Violation `json:"violations,omitempty"`
	NextQuestionID string           `json:"next_question_id,omitempty"`
	NextPrompt     string           `json:"next_prompt,omitempty"`
}

// Answer returns the answer for id.
func (r *Result) Answer(id string) (answer.Answer, bool) {
	for _, a := range r.Answers {
		if a.QuestionID == id {
			return a, true
		}
	}
	return answer.Answer{}, false
}

// NeedsReview returns the answers flagged for review.
func (r *Result) NeedsReview() []answer.Answer {
	var out []answer.Answer
	for _, a := range r.Answers {
		if a.NeedsReview {
			out = append(out, a)
		}
	}
	return out
}

// DiagnosticMessages renders Diagnostics as strings.
func (r *Result) DiagnosticMessages() []string {
	out := make([]string, 0, len(r.Diagnostics))
	for _, err := range r.Diagnostics {
		out = append(out, err.Error())
	}
	return out
}

// MarshalJSON includes diagnostics as messages.
func (r *Result) MarshalJSON() ([]byte, error) {
	type plain Result
	return json.Marshal(struct {
		*plain
		Diagnostics []string `json:"diagnostics,omitempty"`
	}{
		plain:       (*plain)(r),
		Diagnostics: r.DiagnosticMessages(),
	})
}
