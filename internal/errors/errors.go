// Package errors provides the error taxonomy for the extremes pipeline.
// Every failure that terminates a run is wrapped in an *Error carrying its Kind
// (fetch, invalid input, export, configuration) and, for fetch failures, a
// Reason derived from the underlying transport or exchange error.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Kind classifies which stage of the pipeline failed
type Kind string

const (
	KindFetch         Kind = "fetch"         // Network, API, or authentication failure
	KindInvalidInput  Kind = "invalid_input" // Bad pair, date, or window arguments
	KindExport        Kind = "export"        // Spreadsheet write failure
	KindConfiguration Kind = "configuration" // Config file or environment problems
	KindUnknown       Kind = "unknown"
)

// Reason refines a fetch failure
type Reason string

const (
	ReasonNetwork        Reason = "network"
	ReasonTimeout        Reason = "timeout"
	ReasonRateLimit      Reason = "rate_limit"
	ReasonServerError    Reason = "server_error"
	ReasonAuthentication Reason = "authentication"
	ReasonBadRequest     Reason = "bad_request"
	ReasonDecode         Reason = "decode"
	ReasonCanceled       Reason = "canceled"
	ReasonUnknown        Reason = "unknown"
)

// Error is a classified pipeline failure
type Error struct {
	Kind   Kind
	Op     string
	Reason Reason
	Err    error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Reason != "" && e.Reason != ReasonUnknown {
		return fmt.Sprintf("[%s/%s] %s: %v", e.Kind, e.Reason, e.Op, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same Kind (and Reason, when the target sets one)
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// Sentinels usable with errors.Is
var (
	ErrFetch         = &Error{Kind: KindFetch}
	ErrInvalidInput  = &Error{Kind: KindInvalidInput}
	ErrExport        = &Error{Kind: KindExport}
	ErrConfiguration = &Error{Kind: KindConfiguration}
)

// NewFetchError wraps err as a fetch failure, classifying its reason
func NewFetchError(op string, err error) *Error {
	return &Error{Kind: KindFetch, Op: op, Reason: ClassifyFetch(err), Err: err}
}

// NewFetchErrorWithReason wraps err as a fetch failure with a known reason
func NewFetchErrorWithReason(op string, reason Reason, err error) *Error {
	return &Error{Kind: KindFetch, Op: op, Reason: reason, Err: err}
}

// NewInvalidInputError wraps err as an invalid input failure
func NewInvalidInputError(op string, err error) *Error {
	return &Error{Kind: KindInvalidInput, Op: op, Err: err}
}

// InvalidInputf builds an invalid input failure from a format string
func InvalidInputf(op, format string, args ...interface{}) *Error {
	return NewInvalidInputError(op, fmt.Errorf(format, args...))
}

// NewExportError wraps err as an export failure
func NewExportError(op string, err error) *Error {
	return &Error{Kind: KindExport, Op: op, Err: err}
}

// NewConfigurationError wraps err as a configuration failure
func NewConfigurationError(op string, err error) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Err: err}
}

// KindOf extracts the Kind from anywhere in err's chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// ReasonOf extracts the fetch Reason from anywhere in err's chain
func ReasonOf(err error) Reason {
	var e *Error
	if errors.As(err, &e) && e.Reason != "" {
		return e.Reason
	}
	return ReasonUnknown
}

// IsFetchError reports whether err is a fetch failure
func IsFetchError(err error) bool {
	return errors.Is(err, ErrFetch)
}

// IsInvalidInputError reports whether err is an invalid input failure
func IsInvalidInputError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsExportError reports whether err is an export failure
func IsExportError(err error) bool {
	return errors.Is(err, ErrExport)
}

// IsConfigurationError reports whether err is a configuration failure
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// ClassifyFetch determines why a request to the exchange failed
func ClassifyFetch(err error) Reason {
	if err == nil {
		return ReasonUnknown
	}

	if errors.Is(err, context.Canceled) {
		return ReasonCanceled
	}

	if isTimeoutError(err) {
		return ReasonTimeout
	}

	if isNetworkError(err) {
		return ReasonNetwork
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "429") {
		return ReasonRateLimit
	}

	if strings.Contains(errStr, "unauthorized") ||
		strings.Contains(errStr, "forbidden") ||
		strings.Contains(errStr, "api-key") ||
		strings.Contains(errStr, "invalid credentials") ||
		strings.Contains(errStr, "signature") {
		return ReasonAuthentication
	}

	if strings.Contains(errStr, "invalid symbol") ||
		strings.Contains(errStr, "bad request") ||
		strings.Contains(errStr, "client error") {
		return ReasonBadRequest
	}

	if strings.Contains(errStr, "server error") ||
		strings.Contains(errStr, "service unavailable") ||
		strings.Contains(errStr, "bad gateway") {
		return ReasonServerError
	}

	if strings.Contains(errStr, "decode") ||
		strings.Contains(errStr, "unmarshal") ||
		strings.Contains(errStr, "parse") {
		return ReasonDecode
	}

	return ReasonUnknown
}

// isNetworkError checks if the error is network-related
func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	networkPatterns := []string{
		"connection refused",
		"connection reset",
		"connection aborted",
		"no route to host",
		"host unreachable",
		"network unreachable",
		"no such host",
		"dns",
	}

	for _, pattern := range networkPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// isTimeoutError checks if the error is timeout-related
func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded")
}

