package inference

import (
	"errors"
	"fmt"
)

// ErrEmptyAnchorValue marks an anchor supplied with an empty value. Such
// anchors are ignored; use answer.SkippedAnswer to record a decline.
var ErrEmptyAnchorValue = errors.New("anchor value is empty")

// InvalidAnchorError reports an anchor answer for a question that is not
// an anchor. The answer is still recorded as a user answer.
type InvalidAnchorError struct {
	QuestionID string
}

func (e *InvalidAnchorError) Error() string {
	if e == nil {
		return "invalid anchor"
	}
	return fmt.Sprintf("question %s is not an anchor question", e.QuestionID)
}

// emptyAnchor wraps ErrEmptyAnchorValue with the question id.
func emptyAnchor(id string) error {
	return fmt.Errorf("anchor %s: %w", id, ErrEmptyAnchorValue)
}
