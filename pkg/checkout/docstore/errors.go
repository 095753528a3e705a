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

package docstore

import (
	"errors"
	"fmt"
)

// Code is the tagged failure code reported by the backend commit primitive.
// The transaction classifier keys off these codes rather than message text.
type Code string

const (
	// CodeAborted indicates the commit was aborted because a concurrent
	// writer modified data read inside the transaction.
	CodeAborted Code = "aborted"

	// CodeFailedPrecondition indicates a read value no longer satisfies a
	// condition required for the write.
	CodeFailedPrecondition Code = "failed-precondition"

	// CodePermissionDenied indicates the caller lacks rights for the write.
	CodePermissionDenied Code = "permission-denied"

	// CodeDeadlineExceeded indicates the commit exceeded its deadline.
	CodeDeadlineExceeded Code = "deadline-exceeded"

	// CodeUnavailable indicates the backend is temporarily unavailable.
	CodeUnavailable Code = "unavailable"

	// CodeResourceExhausted indicates a rate or quota limit was hit.
	CodeResourceExhausted Code = "resource-exhausted"

	// CodeAlreadyExists indicates a create targeted an existing document.
	CodeAlreadyExists Code = "already-exists"

	// CodeNotFound indicates the requested document does not exist.
	CodeNotFound Code = "not-found"

	// CodeUnknown covers failures the backend could not categorize.
	CodeUnknown Code = "unknown"
)

// ErrStoreClosed is returned when operations are attempted on a closed store.
var ErrStoreClosed = errors.New("document store is closed")

// BackendError is the tagged error surface of the commit primitive.
type BackendError struct {
	Code    Code
	Message string
	Err     error
}

// NewBackendError creates a BackendError with the given code and message.
func NewBackendError(code Code, message string) *BackendError {
	return &BackendError{Code: code, Message: message}
}

// WrapBackendError wraps an underlying error with a tagged code.
func WrapBackendError(code Code, message string, err error) *BackendError {
	return &BackendError{Code: code, Message: message, Err: err}
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error, if any.
func (e *BackendError) Unwrap() error {
	return e.Err
}

// CodeOf extracts the tagged code from an error chain. Untagged errors
// report CodeUnknown; nil reports the empty code.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var be *BackendError
	if errors.As(err, &be) {
		return be.Code
	}
	return CodeUnknown
}

// IsNotFound reports whether err is a tagged not-found failure.
func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}

// IsAlreadyExists reports whether err is a tagged already-exists failure.
func IsAlreadyExists(err error) bool {
	return CodeOf(err) == CodeAlreadyExists
}

// IsAborted reports whether err is a tagged concurrency abort.
func IsAborted(err error) bool {
	return CodeOf(err) == CodeAborted
}
