package operation

import "fmt"

// ConflictError reports an execution id that is already in use. No work is
// performed for the rejected submission.
type ConflictError struct {
	ExecutionID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("execution id %q is already in use", e.ExecutionID)
}

// ValidationError reports a payload-level problem: missing required fields,
// an unresolved cross-reference, a circular reference. Where possible it is
// raised during grouping/resolution, before any handler runs.
type ValidationError struct {
	// Index is the zero-based position of the offending operation in the
	// submitted batch, or -1 when the problem is not tied to one operation.
	Index   int
	Kind    Kind
	Message string
}

func (e *ValidationError) Error() string {
	if e.Index >= 0 && e.Kind != "" {
		return fmt.Sprintf("operation %d (%s): %s", e.Index, e.Kind, e.Message)
	}
	return e.Message
}

// AuthorizationError reports a handler rejecting an operation for lack of
// rights on a referenced object. It aborts the batch exactly like a
// validation error but stays distinguishable to the caller.
type AuthorizationError struct {
	Index   int
	Kind    Kind
	Message string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("operation %d (%s): %s", e.Index, e.Kind, e.Message)
}

// HandlerError wraps any other failure coming out of a collaborator handler.
type HandlerError struct {
	Index int
	Kind  Kind
	Err   error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("operation %d (%s): %v", e.Index, e.Kind, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }
