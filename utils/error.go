package utils

import (
	"errors"
	"fmt"
)

var ErrorRecordNotFound = errors.New("record not found")

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}

// ValidationError is returned before any I/O is attempted: the document is
// missing one of the natural-key fields required for reconciliation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// GatewayError wraps a failed external lookup (tax authority or taxpayer
// registry): not found, malformed payload, or transport failure.
type GatewayError struct {
	Gateway string
	Message string
	Cause   error
}

func (e *GatewayError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Gateway, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Gateway, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Cause
}

func NewGatewayError(gateway, message string, cause error) *GatewayError {
	return &GatewayError{Gateway: gateway, Message: message, Cause: cause}
}

// PersistError records the failure of one detail-row write. It is collected
// per item, never escalated: the remaining items still get their attempt.
type PersistError struct {
	LineNo int
	Cause  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist failed for line %d: %v", e.LineNo, e.Cause)
}

func (e *PersistError) Unwrap() error {
	return e.Cause
}

func NewPersistError(lineNo int, cause error) *PersistError {
	return &PersistError{LineNo: lineNo, Cause: cause}
}

// AggregateMismatchError flags stored document totals that disagree with the
// totals recomputed from its detail rows beyond rounding tolerance. The
// caller should persist the recomputed values carried in the snapshot.
type AggregateMismatchError struct {
	Stored     string
	Recomputed string
}

func (e *AggregateMismatchError) Error() string {
	return fmt.Sprintf("stored total %s disagrees with recomputed total %s", e.Stored, e.Recomputed)
}

func NewAggregateMismatchError(stored, recomputed string) *AggregateMismatchError {
	return &AggregateMismatchError{Stored: stored, Recomputed: recomputed}
}
