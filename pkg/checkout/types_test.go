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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTransitions(t *testing.T) {
	all := []Status{StatusPending, StatusCommitted, StatusFailed, StatusReconciling, StatusCancelled}

	allowed := map[Status]map[Status]bool{
		StatusPending:     {StatusCommitted: true, StatusFailed: true},
		StatusFailed:      {StatusCommitted: true, StatusReconciling: true},
		StatusReconciling: {StatusCommitted: true, StatusCancelled: true},
		StatusCommitted:   {},
		StatusCancelled:   {},
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[from][to]
			assert.Equal(t, want, from.CanTransitionTo(to),
				"transition %s -> %s", from, to)
		}
	}
}

func TestStatusIsTerminal(t *testing.T) {
	assert.True(t, StatusCommitted.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusFailed.IsTerminal())
	assert.False(t, StatusReconciling.IsTerminal())
}

func TestSessionTransitionTo(t *testing.T) {
	session := &Session{ID: "s1", Status: StatusPending}

	require.NoError(t, session.TransitionTo(StatusFailed))
	assert.Equal(t, StatusFailed, session.Status)
	assert.False(t, session.UpdatedAt.IsZero())

	// A failure can never skip reconciliation on the way to cancellation.
	err := session.TransitionTo(StatusCancelled)
	require.Error(t, err)
	assert.Equal(t, StatusFailed, session.Status, "the status is unchanged after a refused transition")

	require.NoError(t, session.TransitionTo(StatusReconciling))
	require.NoError(t, session.TransitionTo(StatusCancelled))
	assert.Error(t, session.TransitionTo(StatusPending))
}

func TestCartFingerprint(t *testing.T) {
	cart := &CartSnapshot{
		Currency: "USD",
		Items: []CartItem{
			{ProductID: "b", UnitPrice: 200, Quantity: 1},
			{ProductID: "a", UnitPrice: 100, Quantity: 2},
		},
	}

	fp := cart.Fingerprint()
	assert.Equal(t, fp, cart.Fingerprint(), "fingerprint is deterministic")

	reordered := &CartSnapshot{
		Currency: "USD",
		Items: []CartItem{
			{ProductID: "a", UnitPrice: 100, Quantity: 2},
			{ProductID: "b", UnitPrice: 200, Quantity: 1},
		},
	}
	assert.Equal(t, fp, reordered.Fingerprint(), "item order does not affect the fingerprint")

	differentQty := cart.Clone()
	differentQty.Items[0].Quantity = 3
	assert.NotEqual(t, fp, differentQty.Fingerprint())

	differentCurrency := cart.Clone()
	differentCurrency.Currency = "EUR"
	assert.NotEqual(t, fp, differentCurrency.Fingerprint())
}

func TestCartTotal(t *testing.T) {
	cart := &CartSnapshot{
		Items: []CartItem{
			{ProductID: "a", UnitPrice: 1500, Quantity: 2},
			{ProductID: "b", UnitPrice: 4200, Quantity: 1},
		},
	}
	assert.Equal(t, int64(7200), cart.Total())
	assert.Equal(t, int64(0), (&CartSnapshot{}).Total())
}

func TestSessionClone(t *testing.T) {
	session := &Session{
		ID:     "s1",
		Status: StatusFailed,
		Cart: CartSnapshot{
			Currency: "USD",
			Items:    []CartItem{{ProductID: "a", UnitPrice: 100, Quantity: 1}},
		},
		LastError: &ErrorInfo{Code: CodeNetworkError},
	}

	clone := session.Clone()
	clone.Cart.Items[0].Quantity = 99
	clone.LastError.Code = CodeTransactionFailed
	clone.Status = StatusCommitted

	assert.Equal(t, 1, session.Cart.Items[0].Quantity)
	assert.Equal(t, CodeNetworkError, session.LastError.Code)
	assert.Equal(t, StatusFailed, session.Status)
}
