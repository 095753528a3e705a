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

package session

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innovationmech/checkout/pkg/checkout"
)

func newTestSession(id string, status checkout.Status) *checkout.Session {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &checkout.Session{
		ID:             id,
		UserID:         "user-1",
		IdempotencyKey: "key-" + id,
		Cart: checkout.CartSnapshot{
			Currency: "USD",
			Items: []checkout.CartItem{
				{ProductID: "p1", Name: "Widget", UnitPrice: 1500, Quantity: 2},
			},
		},
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// storeFactories enumerates the backends exercised by the shared contract
// tests. The Redis backend joins when CHECKOUT_REDIS_ADDR points at a server.
func storeFactories(t *testing.T) map[string]func(t *testing.T) checkout.SessionStore {
	factories := map[string]func(t *testing.T) checkout.SessionStore{
		"memory": func(t *testing.T) checkout.SessionStore {
			return NewMemoryStore()
		},
		"sqlite": func(t *testing.T) checkout.SessionStore {
			store, err := NewSQLiteStore(":memory:")
			require.NoError(t, err)
			return store
		},
	}

	if addr := os.Getenv("CHECKOUT_REDIS_ADDR"); addr != "" {
		factories["redis"] = func(t *testing.T) checkout.SessionStore {
			client := redis.NewClient(&redis.Options{Addr: addr})
			require.NoError(t, client.Ping(context.Background()).Err())
			prefix := fmt.Sprintf("checkout-test-%d:", time.Now().UnixNano())
			return newRedisStoreWithClient(client, prefix)
		}
	}
	return factories
}

func TestSessionStore_Contract(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			runSessionStoreContract(t, factory(t))
		})
	}
}

func runSessionStoreContract(t *testing.T, store checkout.SessionStore) {
	defer store.Close()
	ctx := context.Background()

	t.Run("save and get round-trip", func(t *testing.T) {
		session := newTestSession("s1", checkout.StatusPending)
		require.NoError(t, store.SaveSession(ctx, session))

		loaded, err := store.GetSession(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, session.ID, loaded.ID)
		assert.Equal(t, session.UserID, loaded.UserID)
		assert.Equal(t, session.IdempotencyKey, loaded.IdempotencyKey)
		assert.Equal(t, session.Status, loaded.Status)
		assert.Equal(t, session.Cart.Items, loaded.Cart.Items)
		assert.True(t, session.CreatedAt.Equal(loaded.CreatedAt))
	})

	t.Run("save overwrites", func(t *testing.T) {
		session := newTestSession("s1", checkout.StatusPending)
		session.Status = checkout.StatusFailed
		require.NoError(t, store.SaveSession(ctx, session))

		loaded, err := store.GetSession(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, checkout.StatusFailed, loaded.Status)
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := store.GetSession(ctx, "missing")
		assert.ErrorIs(t, err, checkout.ErrSessionNotFound)
	})

	t.Run("empty session id rejected", func(t *testing.T) {
		_, err := store.GetSession(ctx, "")
		assert.ErrorIs(t, err, checkout.ErrInvalidSessionID)
		assert.ErrorIs(t, store.SaveSession(ctx, &checkout.Session{}), checkout.ErrInvalidSessionID)
	})

	t.Run("list by status", func(t *testing.T) {
		require.NoError(t, store.SaveSession(ctx, newTestSession("s2", checkout.StatusFailed)))
		require.NoError(t, store.SaveSession(ctx, newTestSession("s3", checkout.StatusReconciling)))
		require.NoError(t, store.SaveSession(ctx, newTestSession("s4", checkout.StatusCommitted)))

		sessions, err := store.ListSessionsByStatus(ctx, checkout.StatusFailed, checkout.StatusReconciling)
		require.NoError(t, err)
		ids := make(map[string]bool)
		for _, s := range sessions {
			ids[s.ID] = true
		}
		// s1 was overwritten into failed above.
		assert.True(t, ids["s1"])
		assert.True(t, ids["s2"])
		assert.True(t, ids["s3"])
		assert.False(t, ids["s4"])
	})

	t.Run("status index follows updates", func(t *testing.T) {
		session := newTestSession("s5", checkout.StatusPending)
		require.NoError(t, store.SaveSession(ctx, session))
		session.Status = checkout.StatusCommitted
		require.NoError(t, store.SaveSession(ctx, session))

		sessions, err := store.ListSessionsByStatus(ctx, checkout.StatusPending)
		require.NoError(t, err)
		for _, s := range sessions {
			assert.NotEqual(t, "s5", s.ID, "a session must only be listed under its current status")
		}
	})

	t.Run("error round-trip", func(t *testing.T) {
		info := &checkout.ErrorInfo{
			Code:         checkout.CodeTransactionConflict,
			Message:      "the checkout was interrupted by a concurrent update",
			Recoverable:  true,
			ConflictType: checkout.ConflictTypeConcurrentModification,
			Resolution:   "Try again.",
			OccurredAt:   time.Now().UTC().Truncate(time.Millisecond),
		}
		require.NoError(t, store.SaveError(ctx, "s2", info))

		loaded, err := store.GetError(ctx, "s2")
		require.NoError(t, err)
		assert.Equal(t, info.Code, loaded.Code)
		assert.Equal(t, info.Recoverable, loaded.Recoverable)
		assert.Equal(t, info.ConflictType, loaded.ConflictType)
	})

	t.Run("error for unknown session", func(t *testing.T) {
		err := store.SaveError(ctx, "missing", &checkout.ErrorInfo{Code: checkout.CodeTransactionFailed})
		assert.ErrorIs(t, err, checkout.ErrSessionNotFound)
	})

	t.Run("get error when none recorded", func(t *testing.T) {
		_, err := store.GetError(ctx, "s3")
		assert.ErrorIs(t, err, checkout.ErrErrorNotFound)
	})

	t.Run("clear error", func(t *testing.T) {
		require.NoError(t, store.ClearError(ctx, "s2"))
		_, err := store.GetError(ctx, "s2")
		assert.ErrorIs(t, err, checkout.ErrErrorNotFound)

		// Clearing twice is fine.
		require.NoError(t, store.ClearError(ctx, "s2"))
	})

	t.Run("delete removes session and error", func(t *testing.T) {
		require.NoError(t, store.SaveError(ctx, "s3", &checkout.ErrorInfo{Code: checkout.CodeNetworkError}))
		require.NoError(t, store.DeleteSession(ctx, "s3"))

		_, err := store.GetSession(ctx, "s3")
		assert.ErrorIs(t, err, checkout.ErrSessionNotFound)
		assert.ErrorIs(t, store.DeleteSession(ctx, "s3"), checkout.ErrSessionNotFound)

		sessions, err := store.ListSessionsByStatus(ctx, checkout.StatusReconciling)
		require.NoError(t, err)
		for _, s := range sessions {
			assert.NotEqual(t, "s3", s.ID)
		}
	})
}

func TestMemoryStore_Closed(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Close())

	ctx := context.Background()
	assert.ErrorIs(t, store.SaveSession(ctx, newTestSession("s1", checkout.StatusPending)), checkout.ErrStoreClosed)
	_, err := store.GetSession(ctx, "s1")
	assert.ErrorIs(t, err, checkout.ErrStoreClosed)
	_, err = store.ListSessionsByStatus(ctx, checkout.StatusPending)
	assert.ErrorIs(t, err, checkout.ErrStoreClosed)
}

func TestMemoryStore_CloneIsolation(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	session := newTestSession("s1", checkout.StatusPending)
	require.NoError(t, store.SaveSession(ctx, session))

	// Mutating the caller's copy must not leak into the store.
	session.Status = checkout.StatusCancelled
	session.Cart.Items[0].Quantity = 99

	loaded, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, checkout.StatusPending, loaded.Status)
	assert.Equal(t, 2, loaded.Cart.Items[0].Quantity)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := t.TempDir() + "/sessions.db"
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)

	ctx := context.Background()
	session := newTestSession("s1", checkout.StatusFailed)
	require.NoError(t, store.SaveSession(ctx, session))
	require.NoError(t, store.SaveError(ctx, "s1", &checkout.ErrorInfo{
		Code:        checkout.CodeNetworkError,
		Recoverable: true,
		OccurredAt:  time.Now().UTC(),
	}))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, checkout.StatusFailed, loaded.Status)

	info, err := reopened.GetError(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, checkout.CodeNetworkError, info.Code)
	assert.True(t, info.Recoverable)
}
