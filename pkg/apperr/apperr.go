// Package apperr defines the error taxonomy shared by the pipeline core
// and the HTTP layer. Handlers map these types to response statuses;
// everything else is treated as an internal error.
package apperr

import (
	"errors"
	"fmt"
)

// ValidationError reports a missing or malformed required field.
// Never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// NotFoundError reports an unknown job, stage, or order reference.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Key)
}

// ForbiddenError reports an operation the actor is not allowed to perform,
// distinct from NotFoundError so callers can tell "doesn't exist" from
// "not allowed".
type ForbiddenError struct {
	Reason string
}

func (e *ForbiddenError) Error() string {
	return e.Reason
}

// ConflictError reports a compare-and-set failure under a concurrent
// transition. The only error in the taxonomy a caller is expected to
// retry, by re-reading the job and re-issuing the request.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return e.Reason
}

// DependencyError reports an unavailable collaborator (database, cache,
// broker, order service). Not retried automatically by the core.
type DependencyError struct {
	Dependency string
	Err        error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Dependency, e.Err)
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}

func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func NotFound(kind, key string) error {
	return &NotFoundError{Kind: kind, Key: key}
}

func Forbidden(reason string) error {
	return &ForbiddenError{Reason: reason}
}

func Conflict(reason string) error {
	return &ConflictError{Reason: reason}
}

func Dependency(dependency string, err error) error {
	return &DependencyError{Dependency: dependency, Err: err}
}

func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

func IsForbidden(err error) bool {
	var e *ForbiddenError
	return errors.As(err, &e)
}

func IsConflict(err error) bool {
	var e *ConflictError
	return errors.As(err, &e)
}

func IsDependency(err error) bool {
	var e *DependencyError
	return errors.As(err, &e)
}
