// Package answer defines answer records, provenance, confidence tiers, and
// the per-run answer store.
package answer

import "strings"

// Source records where an answer came from.
type Source string

const (
	SourceUser     Source = "user"
	SourceInferred Source = "inferred"
	SourceDefault  Source = "default"
	SourceSkipped  Source = "skipped"
)

// SkippedAnswer is the reserved value a caller supplies when the user
// explicitly declined to answer. It is distinct from the empty string.
const SkippedAnswer = "__SKIPPED__"

// PendingAnswer fills questions that have no default of their own.
const PendingAnswer = "To Be Confirmed"

// NotApplicable is the value negative gating rules assign unless configured
// otherwise.
const NotApplicable = "Not Applicable"

// Confidence tiers. Inferred tiers sit strictly above the default tier.
// Both inferred tiers fall in the medium bucket or above: a negative
// inference (0.45) reports as medium, never low.
const (
	ConfidenceUser     = 1.0
	ConfidencePositive = 0.75
	ConfidenceNegative = 0.45
	ConfidenceDefault  = 0.2
	ConfidenceSkipped  = 0.0
)

// Answer is the single answer a run produces for a question.
type Answer struct {
	QuestionID  string  `json:"question_id"`
	Value       string  `json:"value"`
	Source      Source  `json:"source"`
	Confidence  float64 `json:"confidence"`
	NeedsReview bool    `json:"needs_review"`
	RuleID      string  `json:"rule_id,omitempty"`
}

// AnchorAnswer is a caller-supplied answer to a question.
type AnchorAnswer struct {
	QuestionID string `json:"question_id" yaml:"question_id"`
	Value      string `json:"value" yaml:"value"`
}

// Skipped reports whether the anchor carries the skip sentinel.
func (a AnchorAnswer) Skipped() bool {
	return IsSkipped(a.Value)
}

// IsSkipped reports whether v is the skip sentinel.
func IsSkipped(v string) bool {
	return strings.TrimSpace(v) == SkippedAnswer
}

// Resolved reports whether the answer can drive gating decisions.
func (a *Answer) Resolved() bool {
	return a != nil && a.Source != SourceSkipped && strings.TrimSpace(a.Value) != ""
}

// Bucket is a reporting category for a confidence score.
type Bucket string

const (
	BucketHigh   Bucket = "high"
	BucketMedium Bucket = "medium"
	BucketLow    Bucket = "low"
	BucketNone   Bucket = "none"
)

// BucketFor categorizes a confidence score.
func BucketFor(confidence float64) Bucket {
	switch {
	case confidence >= 0.7:
		return BucketHigh
	case confidence >= 0.4:
		return BucketMedium
	case confidence > 0:
		return BucketLow
	default:
		return BucketNone
	}
}

// Histogram counts answers per confidence bucket.
type Histogram struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
	None   int `json:"none"`
}

// Add counts one answer.
func (h *Histogram) Add(a Answer) {
	switch BucketFor(a.Confidence) {
	case BucketHigh:
		h.High++
	case BucketMedium:
		h.Medium++
	case BucketLow:
		h.Low++
	default:
		h.None++
	}
}

// Total returns the number of counted answers.
func (h Histogram) Total() int {
	return h.High + h.Medium + h.Low + h.None
}

// HistogramOf builds a histogram for answers.
func HistogramOf(answers []Answer) Histogram {
	var h Histogram
	for _, a := range answers {
		h.Add(a)
	}
	return h
}
