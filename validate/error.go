package validate

import (
	"fmt"
	"strings"
)

// Stage identifies which pipeline stage rejected a message.
type Stage string

const (
	StageStructural Stage = "structural"
	StageSemantic   Stage = "semantic"
	StageTemporal   Stage = "temporal"
)

// Error is a validation failure. Field names the offending message field
// and Suggestions carries ranked near-miss concept codes for unknown-concept
// failures, so callers can self-correct without consulting documentation.
type Error struct {
	Stage       Stage
	Field       string
	Reason      string
	Suggestions []string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s validation failed: %s: %s", e.Stage, e.Field, e.Reason)
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf(" (did you mean one of: %s?)", strings.Join(e.Suggestions, ", "))
	}
	return msg
}

// Retriable reports whether reissuing the same content with a fresh envelope
// could succeed. Only temporal failures qualify.
func (e *Error) Retriable() bool { return e.Stage == StageTemporal }

func structural(field, reason string) *Error {
	return &Error{Stage: StageStructural, Field: field, Reason: reason}
}

func semantic(field, reason string, suggestions []string) *Error {
	return &Error{Stage: StageSemantic, Field: field, Reason: reason, Suggestions: suggestions}
}

func temporal(field, reason string) *Error {
	return &Error{Stage: StageTemporal, Field: field, Reason: reason}
}
