package openai

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure the client surfaces.
type ErrorKind string

const (
	KindAuthenticationMissing ErrorKind = "AuthenticationMissing"
	KindValidationFailed      ErrorKind = "ValidationFailed"
	KindRemoteRequestFailed   ErrorKind = "RemoteRequestFailed"
	KindTimeout               ErrorKind = "Timeout"
	KindPartialBatchFailure   ErrorKind = "PartialBatchFailure"
	KindUnexpected            ErrorKind = "UnexpectedFailure"
)

// Error is the single error type returned by the request executor and the
// packages built on top of it.
type Error struct {
	Kind    ErrorKind
	Message string
	// StatusCode is the remote HTTP status, zero when no response was received.
	StatusCode int
	// Type and Code are copied from the remote error envelope when present.
	Type string
	Code string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

var ErrAuthenticationMissing = &Error{
	Kind:    KindAuthenticationMissing,
	Message: "no API key configured, set OPENAI_API_KEY or call SetCredential",
}

// Validationf builds a ValidationFailed error.
func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidationFailed, Message: fmt.Sprintf(format, args...)}
}

// Unexpected wraps err as an UnexpectedFailure.
func Unexpected(msg string, err error) *Error {
	return &Error{Kind: KindUnexpected, Message: msg, Err: err}
}

// PartialBatch wraps the error of one failed chunk so that records built from
// it are distinguishable from whole-call failures.
func PartialBatch(chunk int, err error) *Error {
	e := &Error{
		Kind:    KindPartialBatchFailure,
		Message: fmt.Sprintf("chunk %d failed", chunk),
		Err:     err,
	}
	var inner *Error
	if errors.As(err, &inner) {
		e.StatusCode = inner.StatusCode
	}
	return e
}

// KindOf returns the kind of err, or KindUnexpected for foreign errors.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
