package common

import (
	"errors"
	"fmt"
)

// Error taxonomy for request boundaries. Handlers map these onto HTTP
// status codes; batch passes isolate them per item instead.

// ValidationError indicates a malformed or incomplete inbound payload.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

// NewValidationError creates a validation error for a specific field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ErrUnauthorized is returned on a missing or incorrect shared secret.
// Deliberately carries no detail about which check failed.
var ErrUnauthorized = errors.New("unauthorized")

// NotFoundError indicates a referenced entity does not exist. Read paths
// surface it as 404; idempotent write paths treat it as a no-op.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.Key)
}

// NewNotFoundError creates a not-found error for an entity/key pair.
func NewNotFoundError(entity, key string) error {
	return &NotFoundError{Entity: entity, Key: key}
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// UpstreamError wraps a failure from an external collaborator (LLM,
// embedding, storage, email, Drive). Fatal controls whether the failure
// aborts the enclosing step or is logged and swallowed.
type UpstreamError struct {
	Service string
	Fatal   bool
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// TranslationIncompleteError indicates the translation service returned a
// set missing one or more expected message IDs. Always fatal to
// finalization; partial translation sets are never persisted.
type TranslationIncompleteError struct {
	MissingIDs []string
}

func (e *TranslationIncompleteError) Error() string {
	return fmt.Sprintf("translation response missing %d message id(s): %v", len(e.MissingIDs), e.MissingIDs)
}
