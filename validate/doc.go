// Package validate implements the three-stage PULSE message validation
// pipeline: structural, semantic, temporal.
//
// Stages run in fixed order and short-circuit on the first failure.
// Structural and semantic failures are permanent for a given message;
// temporal failures are transient and usually retriable by reissuing the
// message with a fresh envelope. The staged *Error lets callers tell the
// two apart with errors.As and apply different recovery policies.
package validate
