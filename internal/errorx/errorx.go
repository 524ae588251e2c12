// Package errorx defines the error taxonomy shared by command handlers and transports.
package errorx

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Kind classifies an error for callers that need a machine-readable category.
type Kind string

const (
	KindValidation   Kind = "validation_failed"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindBadRequest   Kind = "bad_request"
	KindUnauthorized Kind = "unauthorized"
	KindInternal     Kind = "server_error"
)

// ErrProblemSaving is reported when a write expected to change rows changed none.
var ErrProblemSaving = stderrors.New("problem saving changes")

// Error carries a Kind plus optional field-level detail.
type Error struct {
	Kind    Kind
	Message string
	// Field names the offending input for NotFound errors.
	Field string
	// Fields maps field name to complaint for validation errors.
	Fields map[string]string
	cause  error
}

func (e *Error) Error() string {
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, e.Fields[k])
		}
		return fmt.Sprintf("%s: %s", e.Message, strings.Join(parts, "; "))
	}
	return e.Message
}

// Unwrap exposes the underlying cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// Cause satisfies the github.com/pkg/errors causer contract.
func (e *Error) Cause() error { return e.cause }

// Validation builds a validation error from a field map.
func Validation(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: "validation failed", Fields: fields}
}

// NotFound reports that the entity referenced by field does not exist.
func NotFound(field string) *Error {
	return &Error{Kind: KindNotFound, Message: field + " not found", Field: field}
}

// Conflict reports a uniqueness or concurrency violation.
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// BadRequest reports a request that is well-formed but rejected by a business rule.
func BadRequest(message string) *Error {
	return &Error{Kind: KindBadRequest, Message: message}
}

// Unauthorized reports a missing or unusable identity.
func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

// Internal wraps an unexpected failure. The message shown to callers stays generic.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: ErrProblemSaving.Error(), cause: cause}
}

// Wrap annotates a store error with context while keeping it classifiable.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, message)
}

// As returns the *Error in err's chain, if there is one.
func As(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var target *Error
	if stderrors.As(err, &target) {
		return target, true
	}
	if e, ok := errors.Cause(err).(*Error); ok {
		return e, true
	}
	return nil, false
}

// KindOf classifies err. Unclassified errors, including ErrProblemSaving, are internal.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}
