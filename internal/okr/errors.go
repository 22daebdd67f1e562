package okr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an objective, key result, or contributor
	// does not exist or is not visible to the caller's company.
	ErrNotFound = errors.New("okr: not found")

	// ErrForbidden is returned when the caller's role or relationship to the
	// objective does not allow the requested operation.
	ErrForbidden = errors.New("okr: forbidden")
)

// ValidationError reports malformed input: missing required fields, unknown
// enum values, bad numeric ranges. Always recoverable, no side effect.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// LevelMismatchError reports an illegal parent/child level pairing. Both
// levels are named so the caller can display the exact violation.
type LevelMismatchError struct {
	ChildLevel  Level
	ParentLevel Level
}

func (e *LevelMismatchError) Error() string {
	return fmt.Sprintf("level mismatch: a %s objective cannot be nested under a %s objective", e.ChildLevel, e.ParentLevel)
}

// WorkflowViolation reports a transition attempted from a state the action
// does not accept. No state change or history entry is produced.
type WorkflowViolation struct {
	Action  Action
	Current ApprovalStatus
}

func (e *WorkflowViolation) Error() string {
	return fmt.Sprintf("workflow violation: cannot %s an objective in state %s", e.Action, e.Current)
}

// LimitExceeded carries the subscription tier's usage snapshot so callers
// can render an upgrade prompt. It blocks only the limited operation.
type LimitExceeded struct {
	Kind   CreationKind
	Plan   string
	Used   int
	Limit  int
	Reason string
}

func (e *LimitExceeded) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("%s limit reached for plan %s (%d of %d used)", e.Kind, e.Plan, e.Used, e.Limit)
}
