// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

package checkout

import (
	"errors"
	"fmt"
	"time"
)

// Stable error code vocabulary exposed to callers. These strings are part of
// the public contract and must not change.
const (
	CodeNetworkError        = "network-error"
	CodeTransactionConflict = "transaction-conflict"
	CodePreconditionFailed  = "transaction-precondition-failed"
	CodePermissionDenied    = "permission-denied"
	CodeTransactionTimeout  = "transaction-timeout"
	CodeServiceUnavailable  = "service-unavailable"
	CodeQuotaExceeded       = "quota-exceeded"
	CodeDuplicateOperation  = "duplicate-operation"
	CodeTransactionFailed   = "transaction-failed"
	CodeFieldChanged        = "field-changed"
)

// Session store sentinel errors.
var (
	// ErrSessionNotFound is returned when a session does not exist in the store.
	ErrSessionNotFound = errors.New("checkout session not found")

	// ErrErrorNotFound is returned when no persisted error exists for a session.
	ErrErrorNotFound = errors.New("no persisted error for session")

	// ErrStoreClosed is returned when operations are attempted on a closed store.
	ErrStoreClosed = errors.New("session store is closed")

	// ErrInvalidSessionID is returned when a session ID is empty or malformed.
	ErrInvalidSessionID = errors.New("invalid session ID")
)

// CheckoutError is the structured error produced by the transaction
// classifier. It carries everything the presentation layer needs: a stable
// code, a user-facing resolution hint, the conflict category, and whether a
// retry could help.
type CheckoutError struct {
	Code         string
	Message      string
	Recoverable  bool
	ConflictType ConflictType
	Resolution   string
	Details      map[string]interface{}
	Cause        error
	Timestamp    time.Time
}

// NewCheckoutError creates a new CheckoutError with the specified parameters.
func NewCheckoutError(code, message string, conflictType ConflictType, recoverable bool) *CheckoutError {
	return &CheckoutError{
		Code:         code,
		Message:      message,
		ConflictType: conflictType,
		Recoverable:  recoverable,
		Timestamp:    time.Now(),
	}
}

// WrapError wraps an existing error into a CheckoutError, preserving it as
// the cause. Returns nil if err is nil.
func WrapError(err error, code, message string, conflictType ConflictType, recoverable bool) *CheckoutError {
	if err == nil {
		return nil
	}
	cerr := NewCheckoutError(code, message, conflictType, recoverable)
	cerr.Cause = err
	return cerr
}

// Error implements the error interface.
func (e *CheckoutError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %s)", e.Code, e.Message, e.Cause.Error())
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *CheckoutError) Unwrap() error {
	return e.Cause
}

// WithResolution sets the user-facing resolution hint.
func (e *CheckoutError) WithResolution(resolution string) *CheckoutError {
	e.Resolution = resolution
	return e
}

// WithDetail attaches a key/value detail to the error.
func (e *CheckoutError) WithDetail(key string, value interface{}) *CheckoutError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToErrorInfo converts the error into its serializable mirror for
// persistence and presentation.
func (e *CheckoutError) ToErrorInfo() *ErrorInfo {
	return &ErrorInfo{
		Code:         e.Code,
		Message:      e.Message,
		Recoverable:  e.Recoverable,
		ConflictType: e.ConflictType,
		Resolution:   e.Resolution,
		OccurredAt:   e.Timestamp,
	}
}

// AsCheckoutError extracts a *CheckoutError from an error chain.
func AsCheckoutError(err error) (*CheckoutError, bool) {
	var cerr *CheckoutError
	if errors.As(err, &cerr) {
		return cerr, true
	}
	return nil, false
}

// CodeOf returns the code of a classified error, or the empty string when the
// error was never classified.
func CodeOf(err error) string {
	if cerr, ok := AsCheckoutError(err); ok {
		return cerr.Code
	}
	return ""
}

// IsCode reports whether err carries the given classified code.
func IsCode(err error, code string) bool {
	return CodeOf(err) == code
}

// IsRecoverable reports whether a classified error is worth retrying.
// Unclassified errors are treated as non-recoverable here; the retry layer
// applies its own conservative default for raw errors.
func IsRecoverable(err error) bool {
	if cerr, ok := AsCheckoutError(err); ok {
		return cerr.Recoverable
	}
	return false
}

// NewNoConnectionError creates the error surfaced when a retry is aborted
// because the device is offline.
func NewNoConnectionError() *CheckoutError {
	return NewCheckoutError(CodeNetworkError, "no network connection available", ConflictTypeNetworkIssue, true).
		WithResolution("Check your internet connection and try again.")
}
