// Package gate checks produced answers against per-question constraints.
package gate

import (
	"github.com/zen-systems/anchorfill/pkg/answer"
)

// Gate defines the interface for answer checks.
type Gate interface {
	// Check evaluates answers, flagging offending entries in place.
	Check(answers []answer.Answer) *GateResult

	// Name returns the gate identifier.
	Name() string
}

// GateResult contains the outcome of a gate evaluation.
type GateResult struct {
	Passed     bool        `json:"passed"`
	Score      int         `json:"score"`
	Checked    int         `json:"checked"`
	Violations []Violation `json:"violations,omitempty"`
	// Errors holds one typed error per violation.
	Errors []error `json:"-"`
}

// Violation describes a specific answer issue.
type Violation struct {
	Rule       string `json:"rule"`
	Severity   string `json:"severity"` // "error", "warning", "info"
	Message    string `json:"message"`
	Location   string `json:"location,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// NewPassingResult creates a result indicating the gate passed.
func NewPassingResult(score int) *GateResult {
	return &GateResult{
		Passed: true,
		Score:  score,
	}
}

// NewFailingResult creates a result indicating the gate failed.
func NewFailingResult(score int, violations []Violation, errs []error) *GateResult {
	return &GateResult{
		Passed:     false,
		Score:      score,
		Violations: violations,
		Errors:     errs,
	}
}
