// Package apperror defines the closed set of failure kinds the service reports and the
// mapping from each kind to an HTTP status code.
//
// Every error that leaves the database or parsing layers is converted into an *Error before
// it reaches a handler, so callers only ever branch on Kind.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind uint8

const (
	KindInternal Kind = iota
	KindNotFound
	KindBadRequest
	KindParse
	KindUnauthorized
	KindForbidden

	// Constraint violations reported by the database. The caller can correct these.
	KindForeignKey
	KindUniqueViolation
	KindNotNull

	// Backend outcomes.
	KindDoesNotExist
	KindDeleted
	KindUpdateParametersEmpty
	KindCredentialMismatch
	KindVerificationFailed
	KindPermissionDenied

	// Server side failures. Their messages are logged, never shown.
	KindConnection
	KindMigration
	KindTemplating
	KindSession
	KindCookie
	KindFile
	KindEnv
	KindBackend
	KindDatabase
)

var kindLabels = map[Kind]string{
	KindInternal:              "Internal server error",
	KindNotFound:              "Not found",
	KindBadRequest:            "Bad request",
	KindParse:                 "Parse error",
	KindUnauthorized:          "Unauthorized",
	KindForbidden:             "Request denied",
	KindForeignKey:            "Foreign key violation",
	KindUniqueViolation:       "Unique constraint violation",
	KindNotNull:               "Not null violation",
	KindDoesNotExist:          "Does not exist",
	KindDeleted:               "Deleted",
	KindUpdateParametersEmpty: "Update parameters empty",
	KindCredentialMismatch:    "Credentials do not match",
	KindVerificationFailed:    "Verification failed",
	KindPermissionDenied:      "Permission denied",
	KindConnection:            "Connection error",
	KindMigration:             "Migration error",
	KindTemplating:            "Templating error",
	KindSession:               "Session error",
	KindCookie:                "Cookie error",
	KindFile:                  "File error",
	KindEnv:                   "Could not load the env var",
	KindBackend:               "Backend error",
	KindDatabase:              "Database error",
}

// String returns the human label of the kind.
func (k Kind) String() string {
	if label, ok := kindLabels[k]; ok {
		return label
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Status maps a kind to its HTTP status code. Unknown kinds are internal.
func Status(k Kind) int {
	switch k {
	case KindNotFound, KindDoesNotExist:
		return http.StatusNotFound
	case KindBadRequest, KindParse,
		KindForeignKey, KindUniqueViolation, KindNotNull,
		KindDeleted, KindUpdateParametersEmpty, KindVerificationFailed:
		return http.StatusBadRequest
	case KindUnauthorized, KindCredentialMismatch:
		return http.StatusUnauthorized
	case KindForbidden, KindPermissionDenied:
		return http.StatusForbidden
	case KindInternal, KindConnection, KindMigration, KindTemplating,
		KindSession, KindCookie, KindFile, KindEnv, KindBackend, KindDatabase:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// IsServerSide reports whether the kind describes a fault the caller cannot correct.
func (k Kind) IsServerSide() bool {
	return Status(k) >= http.StatusInternalServerError
}

// Error is a classified failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Status is the HTTP status of the error's kind.
func (e *Error) Status() int { return Status(e.Kind) }

// Public returns the text a caller is allowed to see. Server side kinds collapse to the
// generic internal description; the cause is never included.
func (e *Error) Public() string {
	if e.Kind.IsServerSide() {
		return KindInternal.String()
	}
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Message
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err as kind. A nil err yields nil.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: msg, Err: err}
}

func NotFound(msg string) *Error     { return New(KindNotFound, msg) }
func BadRequest(msg string) *Error   { return New(KindBadRequest, msg) }
func Unauthorized(msg string) *Error { return New(KindUnauthorized, msg) }
func Forbidden(msg string) *Error    { return New(KindForbidden, msg) }

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Err: err}
}

// As returns err as an *Error. Errors that were never classified become KindInternal so
// that their text stays out of responses.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

// KindOf returns the kind of err, KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}
