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

// Package checkout defines the shared domain model of the checkout
// transaction resilience library: sessions, orders, the session status state
// machine, the classified error taxonomy, and the contracts consumed by the
// subpackages (session persistence, connectivity probing, event listeners).
package checkout

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Status represents the lifecycle state of a checkout session.
type Status string

const (
	// StatusPending indicates the session is created and a commit may be attempted.
	StatusPending Status = "pending"

	// StatusCommitted indicates an order was created for this session.
	StatusCommitted Status = "committed"

	// StatusFailed indicates the last commit attempt failed and the true
	// outcome has not been reconciled yet.
	StatusFailed Status = "failed"

	// StatusReconciling indicates reconciliation confirmed no order exists
	// and the caller must choose between retrying and cancelling.
	StatusReconciling Status = "reconciling"

	// StatusCancelled indicates the session was abandoned by the user.
	StatusCancelled Status = "cancelled"
)

// String returns the string representation of the Status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusCommitted || s == StatusCancelled
}

// CanTransitionTo reports whether the state machine permits moving from s to
// next. Transitions only move forward; a failure can never skip
// reconciliation on its way to cancellation.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusCommitted || next == StatusFailed
	case StatusFailed:
		// failed -> committed is the lost-acknowledgement shortcut taken by
		// the reconciler when the order turns out to exist server-side.
		return next == StatusCommitted || next == StatusReconciling
	case StatusReconciling:
		return next == StatusCommitted || next == StatusCancelled
	default:
		return false
	}
}

// ConflictType categorizes the nature of a commit failure for presentation.
type ConflictType string

const (
	ConflictTypeConcurrentModification ConflictType = "concurrent-modification"
	ConflictTypeDataChanged            ConflictType = "data-changed"
	ConflictTypeNetworkIssue           ConflictType = "network-issue"
	ConflictTypePermissionIssue        ConflictType = "permission-issue"
	ConflictTypeOther                  ConflictType = "other"
)

// CartItem is a single line of a cart snapshot. UnitPrice is in minor
// currency units (cents).
type CartItem struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
}

// CartSnapshot is the immutable copy of the cart a session attempts to
// convert into an order.
type CartSnapshot struct {
	Items    []CartItem `json:"items"`
	Currency string     `json:"currency"`
}

// Total returns the cart total in minor currency units.
func (c *CartSnapshot) Total() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.UnitPrice * int64(item.Quantity)
	}
	return total
}

// Fingerprint returns a stable textual digest input for the cart. Item order
// does not affect the result.
func (c *CartSnapshot) Fingerprint() string {
	lines := make([]string, 0, len(c.Items))
	for _, item := range c.Items {
		lines = append(lines, fmt.Sprintf("%s:%d:%d", item.ProductID, item.Quantity, item.UnitPrice))
	}
	sort.Strings(lines)
	return strings.Join(lines, ";") + "|" + c.Currency
}

// Clone returns a deep copy of the cart snapshot.
func (c *CartSnapshot) Clone() *CartSnapshot {
	cp := &CartSnapshot{Currency: c.Currency}
	if c.Items != nil {
		cp.Items = make([]CartItem, len(c.Items))
		copy(cp.Items, c.Items)
	}
	return cp
}

// ErrorInfo is the serializable mirror of a classified commit failure. It is
// what gets persisted as the session's last error and what presentation
// layers consume.
type ErrorInfo struct {
	Code         string       `json:"code"`
	Message      string       `json:"message"`
	Recoverable  bool         `json:"recoverable"`
	ConflictType ConflictType `json:"conflictType"`
	Resolution   string       `json:"resolution,omitempty"`
	OccurredAt   time.Time    `json:"occurredAt"`
}

// ConflictInfo explains a detected concurrent modification for presentation.
type ConflictInfo struct {
	FieldName    string       `json:"fieldName"`
	ConflictType ConflictType `json:"conflictType"`
	Message      string       `json:"message"`
	Detail       string       `json:"detail,omitempty"`
	Resolution   string       `json:"resolution,omitempty"`
}

// Session is the client-side record of one attempt to convert a cart into an
// order. It is owned by the device that created it until it reaches a
// terminal state.
type Session struct {
	ID             string       `json:"id"`
	UserID         string       `json:"userId"`
	IdempotencyKey string       `json:"idempotencyKey"`
	Cart           CartSnapshot `json:"cart"`
	Status         Status       `json:"status"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
	LastError      *ErrorInfo   `json:"lastError,omitempty"`
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	cp := *s
	cp.Cart = *s.Cart.Clone()
	if s.LastError != nil {
		errCopy := *s.LastError
		cp.LastError = &errCopy
	}
	return &cp
}

// TransitionTo advances the session status, returning an error for moves the
// state machine forbids.
func (s *Session) TransitionTo(next Status) error {
	if !s.Status.CanTransitionTo(next) {
		return NewCheckoutError(CodeTransactionFailed,
			fmt.Sprintf("invalid session transition from %s to %s", s.Status, next),
			ConflictTypeOther, false)
	}
	s.Status = next
	s.UpdatedAt = time.Now()
	return nil
}

// Order is the backend record created at most once per idempotency key. It is
// immutable once written and is the sole source of truth for whether a
// checkout succeeded.
type Order struct {
	OrderID        string     `json:"orderId"`
	IdempotencyKey string     `json:"idempotencyKey"`
	UserID         string     `json:"userId"`
	Items          []CartItem `json:"items"`
	TotalAmount    int64      `json:"totalAmount"`
	Currency       string     `json:"currency"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// Outcome is the discriminated result of a checkout operation. Exactly one of
// Order and Err is set for terminal-vs-failed results; Cart is populated when
// the caller may need to restore it (cancellation, pending retry decision).
type Outcome struct {
	SessionID string        `json:"sessionId"`
	Status    Status        `json:"status"`
	Order     *Order        `json:"order,omitempty"`
	Err       *ErrorInfo    `json:"error,omitempty"`
	Cart      *CartSnapshot `json:"cart,omitempty"`
}
