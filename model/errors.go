package model

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is a stable category for programmatic error handling.
//
// Callers should branch on Kind rather than matching error strings. Use
// errors.As to extract *Error for the structured fields.
type Kind string

const (
	// KindValidation reports an empty or invalid caller-supplied collection.
	// It is raised before any network call and is never retried.
	KindValidation Kind = "Validation"
	// KindIntegrity reports downloaded bytes whose hash differs from the
	// requested hash.
	KindIntegrity Kind = "Integrity"
	// KindNotFound reports a by-id lookup that returned nothing.
	KindNotFound Kind = "NotFound"
	// KindTransport reports a non-2xx response or a network failure.
	KindTransport Kind = "Transport"
	// KindFragmentation reports a query value that cannot fit a URL budget.
	KindFragmentation Kind = "Fragmentation"
	KindInternal      Kind = "Internal"
)

// Error is the library's structured error type.
//
// URL, StatusCode and Hash carry the context of the boundary where the error
// was most diagnosable; they are zero when not applicable.
type Error struct {
	Kind       Kind
	Message    string
	URL        string
	StatusCode int
	Hash       string
	Cause      error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(e.Message)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.URL != "" {
		fmt.Fprintf(&b, " [%s]", e.URL)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewValidationError returns a KindValidation error.
func NewValidationError(msg string) error {
	return &Error{Kind: KindValidation, Message: msg}
}

// NewNotFoundError returns a KindNotFound error describing the missing record.
func NewNotFoundError(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// NewIntegrityError returns a KindIntegrity error naming the expected hash and
// the source the bytes came from.
func NewIntegrityError(expected, got, source string) error {
	return &Error{
		Kind:    KindIntegrity,
		Message: fmt.Sprintf("content hash mismatch: expected %s, got %s", expected, got),
		URL:     source,
		Hash:    expected,
	}
}

// NewTransportError returns a KindTransport error for url. status is zero for
// network-level failures.
func NewTransportError(url string, status int, cause error) error {
	msg := "request failed"
	if status != 0 {
		msg = "unexpected response"
	}
	return &Error{Kind: KindTransport, Message: msg, URL: url, StatusCode: status, Cause: cause}
}

func NewFragmentationError(msg string) error {
	return &Error{Kind: KindFragmentation, Message: msg}
}

func NewInternalError(msg string, cause error) error {
	return &Error{Kind: KindInternal, Message: msg, Cause: cause}
}

// IsKind reports whether err is (or wraps) a *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Kind
}
