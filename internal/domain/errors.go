package domain

import "fmt"

// ValidationError is a client-correctable rejection: a scope-key duplicate,
// a malformed field, or bad query syntax detected before storage is touched.
// Never retried automatically.
type ValidationError struct {
	Field      string
	Message    string
	ConflictID string
}

func (e *ValidationError) Error() string {
	if e.ConflictID != "" {
		return fmt.Sprintf("%s: %s (conflicts with entry %s)", e.Field, e.Message, e.ConflictID)
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// DuplicateScope builds the rejection for a scope key that already holds an
// enabled entry.
func DuplicateScope(key ScopeKey, conflictID string) *ValidationError {
	return &ValidationError{
		Field:      "scope",
		Message:    fmt.Sprintf("an enabled entry already exists for scope %s", key),
		ConflictID: conflictID,
	}
}
