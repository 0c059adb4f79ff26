// Package apperr defines the stable error codes surfaced by the review
// service and helpers for classifying wrapped errors.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a user-visible failure class. Codes are stable across
// releases; clients and the job runner match on them.
type Code string

const (
	CodeProjectNotFound         Code = "Project.NotFound"
	CodeProjectInvalidZip       Code = "Project.InvalidZipFile"
	CodeProjectAlreadyAnalyzing Code = "Project.AlreadyAnalyzing"
	CodeProjectNoFiles          Code = "Project.NoFilesToAnalyze"
	CodeReportNotReady          Code = "Report.NotReady"
	CodeReportNotFound          Code = "Report.NotFound"
	CodeReportGenerationFailed  Code = "Report.GenerationFailed"
	CodeEmbeddingRateLimited    Code = "Embedding.RateLimited"
	CodeVectorVerification      Code = "VectorStore.Verification"
	CodeWatchdogStuck           Code = "Watchdog.Stuck"
	CodeAuthInvalidKey          Code = "Auth.InvalidKey"
)

// Error carries a stable code alongside a human-readable message and an
// optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s; %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error wrapping an underlying cause.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf extracts the stable code from an error chain.
// Returns ("", false) when no *Error is present.
func CodeOf(err error) (Code, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code, true
	}
	return "", false
}

// HasCode reports whether the error chain carries the given code.
func HasCode(err error, code Code) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// HTTPStatus maps a code to the HTTP status the API surface responds with.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeProjectNotFound, CodeReportNotFound:
		return http.StatusNotFound
	case CodeProjectInvalidZip, CodeProjectNoFiles:
		return http.StatusUnprocessableEntity
	case CodeProjectAlreadyAnalyzing:
		return http.StatusConflict
	case CodeReportNotReady:
		return http.StatusAccepted
	case CodeEmbeddingRateLimited:
		return http.StatusTooManyRequests
	case CodeAuthInvalidKey:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
