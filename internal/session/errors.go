package session

import "fmt"

// NotFoundError reports an unknown id passed to a catalog-backed
// operation, or a session id with no live or persisted state.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("session: unknown %s %q", e.Resource, e.ID)
}

// ValidationError reports a missing precondition. The session is left
// untouched, so the caller can supply the field and retry.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("session: %s is required", e.Field)
}

// ConflictError reports that a slot was taken between render and
// selection, or between selection and commit. Transient: another slot
// can be picked.
type ConflictError struct {
	Slot string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("session: slot %s is no longer free", e.Slot)
}
