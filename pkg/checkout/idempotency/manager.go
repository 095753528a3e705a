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

// Package idempotency guarantees at most one order per checkout attempt.
// Orders are stored keyed by the idempotency key so a lookup during
// reconciliation is a single point read.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/innovationmech/checkout/pkg/checkout"
	"github.com/innovationmech/checkout/pkg/checkout/docstore"
	"github.com/innovationmech/checkout/pkg/logger"
	"go.uber.org/zap"
)

// Collection names in the document store.
const (
	OrdersCollection    = "orders"
	InventoryCollection = "inventory"
)

// DeriveKey computes the idempotency key for one checkout attempt. The same
// user, cart contents, and session creation time always yield the same key,
// so every retry of one attempt targets the same order document.
func DeriveKey(userID string, cart *checkout.CartSnapshot, createdAt time.Time) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\n%s\n%d", userID, cart.Fingerprint(), createdAt.Unix())
	return hex.EncodeToString(h.Sum(nil))
}

// Manager creates orders exactly once per idempotency key. All reads and
// writes of one CreateOrder call happen inside a single transaction, so two
// devices racing on the same key resolve through the store's concurrency
// abort and the loser finds the winner's order on retry.
type Manager struct {
	logger *zap.Logger
}

// NewManager creates an idempotency manager.
func NewManager() *Manager {
	return &Manager{logger: logger.Named("idempotency")}
}

// CreateOrder builds the transaction body that converts a session's cart into
// an order. Run it through the transaction runner. The resulting order is
// written into result.
//
// If an order already exists for the session's idempotency key it is returned
// unchanged and no inventory moves. Otherwise stock is checked and
// decremented for every line and the order document is created, all in the
// same transaction.
func (m *Manager) CreateOrder(session *checkout.Session, result *checkout.Order) docstore.TxFunc {
	return func(ctx context.Context, tx docstore.Tx) error {
		key := session.IdempotencyKey

		existing, err := tx.Get(ctx, OrdersCollection, key)
		if err == nil {
			m.logger.Info("order already exists for idempotency key",
				zap.String("sessionId", session.ID),
				zap.String("idempotencyKey", key),
			)
			order, decodeErr := DecodeOrder(existing.Data)
			if decodeErr != nil {
				return decodeErr
			}
			*result = *order
			return nil
		}
		if !docstore.IsNotFound(err) {
			return err
		}

		for _, item := range session.Cart.Items {
			if err := decrementStock(ctx, tx, item); err != nil {
				return err
			}
		}

		order := &checkout.Order{
			OrderID:        uuid.New().String(),
			IdempotencyKey: key,
			UserID:         session.UserID,
			Items:          append([]checkout.CartItem(nil), session.Cart.Items...),
			TotalAmount:    session.Cart.Total(),
			Currency:       session.Cart.Currency,
			CreatedAt:      time.Now().UTC(),
		}
		if err := tx.Create(ctx, OrdersCollection, key, EncodeOrder(order)); err != nil {
			// A concurrent create on the same key lands here when both
			// transactions started before either committed. The commit-time
			// version check catches the rest.
			if docstore.IsAlreadyExists(err) {
				return docstore.WrapBackendError(docstore.CodeAborted,
					"order created concurrently for the same idempotency key", err)
			}
			return err
		}

		*result = *order
		return nil
	}
}

// decrementStock verifies and reduces the stock document for one cart line.
// Missing products and insufficient stock are precondition failures; they do
// not self-resolve and need the user to refresh the cart.
func decrementStock(ctx context.Context, tx docstore.Tx, item checkout.CartItem) error {
	doc, err := tx.Get(ctx, InventoryCollection, item.ProductID)
	if err != nil {
		if docstore.IsNotFound(err) {
			return docstore.NewBackendError(docstore.CodeFailedPrecondition,
				fmt.Sprintf("product %s is no longer available", item.ProductID))
		}
		return err
	}

	stock, ok := toInt64(doc.Data["stock"])
	if !ok || stock < int64(item.Quantity) {
		return docstore.NewBackendError(docstore.CodeFailedPrecondition,
			fmt.Sprintf("insufficient stock for product %s", item.ProductID))
	}

	data := map[string]interface{}{}
	for k, v := range doc.Data {
		data[k] = v
	}
	data["stock"] = stock - int64(item.Quantity)
	return tx.Set(ctx, InventoryCollection, item.ProductID, data)
}

// FindOrder looks up the order for an idempotency key. Absence is not an
// error: it returns (nil, nil) so the reconciler can branch on it directly.
func FindOrder(ctx context.Context, store docstore.Store, key string) (*checkout.Order, error) {
	doc, err := store.Get(ctx, OrdersCollection, key)
	if err != nil {
		if docstore.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return DecodeOrder(doc.Data)
}

// EncodeOrder converts an order into its document representation.
func EncodeOrder(order *checkout.Order) map[string]interface{} {
	items := make([]interface{}, len(order.Items))
	for i, item := range order.Items {
		items[i] = map[string]interface{}{
			"productId": item.ProductID,
			"name":      item.Name,
			"unitPrice": item.UnitPrice,
			"quantity":  int64(item.Quantity),
		}
	}
	return map[string]interface{}{
		"orderId":        order.OrderID,
		"idempotencyKey": order.IdempotencyKey,
		"userId":         order.UserID,
		"items":          items,
		"totalAmount":    order.TotalAmount,
		"currency":       order.Currency,
		"createdAt":      order.CreatedAt.Format(time.RFC3339Nano),
	}
}

// DecodeOrder converts a document back into an order.
func DecodeOrder(data map[string]interface{}) (*checkout.Order, error) {
	order := &checkout.Order{}
	var ok bool
	if order.OrderID, ok = data["orderId"].(string); !ok {
		return nil, fmt.Errorf("order document missing orderId")
	}
	order.IdempotencyKey, _ = data["idempotencyKey"].(string)
	order.UserID, _ = data["userId"].(string)
	order.Currency, _ = data["currency"].(string)
	if total, ok := toInt64(data["totalAmount"]); ok {
		order.TotalAmount = total
	}

	if createdAt, ok := data["createdAt"].(string); ok {
		parsed, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("order document has invalid createdAt: %w", err)
		}
		order.CreatedAt = parsed
	}

	if rawItems, ok := data["items"].([]interface{}); ok {
		order.Items = make([]checkout.CartItem, 0, len(rawItems))
		for _, raw := range rawItems {
			m, ok := raw.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("order document has malformed item")
			}
			item := checkout.CartItem{}
			item.ProductID, _ = m["productId"].(string)
			item.Name, _ = m["name"].(string)
			if price, ok := toInt64(m["unitPrice"]); ok {
				item.UnitPrice = price
			}
			if qty, ok := toInt64(m["quantity"]); ok {
				item.Quantity = int(qty)
			}
			order.Items = append(order.Items, item)
		}
	}
	return order, nil
}

// toInt64 normalizes the numeric types a document value may carry.
func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
