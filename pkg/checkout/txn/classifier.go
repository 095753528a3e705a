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

// Package txn runs document-store transactions with failure classification
// and bounded retry.
package txn

import (
	"fmt"

	"github.com/innovationmech/checkout/pkg/checkout"
	"github.com/innovationmech/checkout/pkg/checkout/docstore"
)

// NetworkDetector is the slice of the network monitor the classifier needs.
type NetworkDetector interface {
	IsNetworkError(err error) bool
}

// Classify maps a raw transaction failure onto the stable error vocabulary.
// Already-classified errors pass through unchanged. Tagged backend codes
// decide first; untagged errors fall back to the network heuristic, then to
// the generic transaction failure. operationName is substituted into the
// user-facing wording ("checkout", "payment").
func Classify(err error, operationName string, detector NetworkDetector) *checkout.CheckoutError {
	if err == nil {
		return nil
	}
	if cerr, ok := checkout.AsCheckoutError(err); ok {
		return cerr
	}
	if operationName == "" {
		operationName = "operation"
	}

	switch docstore.CodeOf(err) {
	case docstore.CodeAborted:
		return checkout.WrapError(err, checkout.CodeTransactionConflict,
			fmt.Sprintf("the %s was interrupted by a concurrent update", operationName),
			checkout.ConflictTypeConcurrentModification, true).
			WithResolution(fmt.Sprintf("Your data was refreshed. Please try the %s again.", operationName)).
			WithDetail("operation", operationName)

	case docstore.CodeFailedPrecondition:
		return checkout.WrapError(err, checkout.CodePreconditionFailed,
			fmt.Sprintf("the data required by the %s changed before it could complete", operationName),
			checkout.ConflictTypeDataChanged, true).
			WithResolution(fmt.Sprintf("Review the updated details, then try the %s again.", operationName)).
			WithDetail("operation", operationName)

	case docstore.CodePermissionDenied:
		return checkout.WrapError(err, checkout.CodePermissionDenied,
			fmt.Sprintf("you do not have permission to complete this %s", operationName),
			checkout.ConflictTypePermissionIssue, false).
			WithResolution("Sign in again. Contact support if the problem persists.").
			WithDetail("operation", operationName)

	case docstore.CodeDeadlineExceeded:
		return checkout.WrapError(err, checkout.CodeTransactionTimeout,
			fmt.Sprintf("the %s took too long to complete", operationName),
			checkout.ConflictTypeNetworkIssue, true).
			WithResolution(fmt.Sprintf("Check your connection, then try the %s again.", operationName)).
			WithDetail("operation", operationName)

	case docstore.CodeUnavailable:
		return checkout.WrapError(err, checkout.CodeServiceUnavailable,
			"the service is temporarily unavailable",
			checkout.ConflictTypeOther, true).
			WithResolution(fmt.Sprintf("Wait a moment, then try the %s again.", operationName)).
			WithDetail("operation", operationName)

	case docstore.CodeResourceExhausted:
		return checkout.WrapError(err, checkout.CodeQuotaExceeded,
			fmt.Sprintf("the %s was rate limited", operationName),
			checkout.ConflictTypeOther, true).
			WithResolution(fmt.Sprintf("Wait a moment before trying the %s again.", operationName)).
			WithDetail("operation", operationName)

	case docstore.CodeAlreadyExists:
		return checkout.WrapError(err, checkout.CodeDuplicateOperation,
			fmt.Sprintf("this %s already completed", operationName),
			checkout.ConflictTypeDataChanged, false).
			WithResolution("Check your recent orders before trying again.").
			WithDetail("operation", operationName)
	}

	if detector != nil && detector.IsNetworkError(err) {
		return checkout.WrapError(err, checkout.CodeNetworkError,
			fmt.Sprintf("a network problem interrupted the %s", operationName),
			checkout.ConflictTypeNetworkIssue, true).
			WithResolution("Check your internet connection and try again.").
			WithDetail("operation", operationName)
	}

	return checkout.WrapError(err, checkout.CodeTransactionFailed,
		fmt.Sprintf("the %s could not be completed", operationName),
		checkout.ConflictTypeOther, true).
		WithResolution(fmt.Sprintf("Try the %s again. Contact support if the problem persists.", operationName)).
		WithDetail("operation", operationName)
}
