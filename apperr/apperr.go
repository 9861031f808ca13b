// Package apperr defines the typed error taxonomy surfaced across every
// boundary in the system: aggregate commands, the owner's storage engine,
// the arbitration protocol, and the sync client/server.
package apperr

import (
	"errors"
	"fmt"
)

// Code is a closed enumeration of error codes that must survive crossing
// a process/transport boundary unchanged.
type Code string

const (
	CodeValidation            Code = "ValidationError"
	CodeDomain                Code = "DomainError"
	CodeDbLocked              Code = "DbLockedError"
	CodeConstraintViolation   Code = "ConstraintViolationError"
	CodeTransactionAborted    Code = "TransactionAbortedError"
	CodeMigration             Code = "MigrationError"
	CodeDbOwnership           Code = "DbOwnershipError"
	CodeDbInvalidState        Code = "DbInvalidStateError"
	CodeWorkerProtocol        Code = "WorkerProtocolError"
	CodeCanceled              Code = "CanceledError"
	CodeServerAheadConflict   Code = "ServerAheadConflict"
	CodeDuplicateEventID      Code = "DuplicateEventIdConflict"
	CodeUnauthenticated       Code = "UnauthenticatedError"
	CodeForbidden             Code = "ForbiddenError"
)

// Error is the typed error carried across boundaries. It always has a
// Code; Message is human-readable; Details carries optional structured
// context (e.g. the server's current head for a ServerAheadConflict).
type Error struct {
	Code    Code
	Message string
	Details map[string]string

	// Remediation is a user-facing suggestion, e.g. DbInvalidStateError's
	// "reset local state and restore from backup".
	Remediation string

	cause error
}

// New constructs an Error with the given code and message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error that records cause for errors.Unwrap/Is/As
// chains, while still exposing the fixed Code at the boundary.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: cause}
}

// WithDetails attaches structured detail fields (e.g. {"head": "1"}) and
// returns the same *Error for chaining.
func (e *Error) WithDetails(details map[string]string) *Error {
	e.Details = details
	return e
}

// WithRemediation attaches a user-facing remediation hint.
func (e *Error) WithRemediation(hint string) *Error {
	e.Remediation = hint
	return e
}

func (e *Error) Error() string {
	if e.Remediation != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Remediation)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is allows errors.Is(err, apperr.New(code, "")) style code comparisons,
// and also matches against a bare Code sentinel built by Sentinel.
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return te.Code == e.Code
	}
	return false
}

// AsCode extracts the Code carried by err, if any, via errors.As.
func AsCode(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}

// Is reports whether err carries the given Code anywhere in its chain.
func Is(err error, code Code) bool {
	c, ok := AsCode(err)
	return ok && c == code
}

// Sentinel returns a zero-cause *Error of the given code, suitable for use
// as an errors.Is target: errors.Is(err, apperr.Sentinel(apperr.CodeDomain)).
func Sentinel(code Code) *Error {
	return &Error{Code: code}
}
