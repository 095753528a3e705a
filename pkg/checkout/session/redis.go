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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/innovationmech/checkout/pkg/checkout"
)

// RedisConfig configures the Redis-backed session store.
type RedisConfig struct {
	// Addr is the Redis server address, host:port.
	Addr string `json:"addr" yaml:"addr"`

	// Password for AUTH; empty means none.
	Password string `json:"password" yaml:"password"`

	// DB selects the logical database.
	DB int `json:"db" yaml:"db"`

	// KeyPrefix namespaces every key written by the store.
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"`

	// DialTimeout bounds connection establishment.
	DialTimeout time.Duration `json:"dial_timeout" yaml:"dial_timeout"`
}

// DefaultRedisConfig returns the default Redis configuration.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:        "localhost:6379",
		KeyPrefix:   "checkout:",
		DialTimeout: 5 * time.Second,
	}
}

// Validate validates the Redis configuration.
func (c *RedisConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("redis addr must not be empty")
	}
	if c.DB < 0 {
		return fmt.Errorf("redis db must not be negative")
	}
	return nil
}

// RedisStore is a Redis-backed implementation of checkout.SessionStore for
// deployments where sessions must be visible across processes. Sessions are
// stored as JSON values; a set per status serves ListSessionsByStatus.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, config *RedisConfig) (*RedisStore, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:        config.Addr,
		Password:    config.Password,
		DB:          config.DB,
		DialTimeout: config.DialTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", config.Addr, err)
	}
	return &RedisStore{client: client, prefix: config.KeyPrefix}, nil
}

// newRedisStoreWithClient wires an existing client, used by tests with a
// miniature server.
func newRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) sessionKey(id string) string {
	return r.prefix + "session:" + id
}

func (r *RedisStore) errorKey(id string) string {
	return r.prefix + "error:" + id
}

func (r *RedisStore) statusKey(status checkout.Status) string {
	return r.prefix + "status:" + string(status)
}

// allStatuses enumerates the status index sets a session may be filed under.
var allStatuses = []checkout.Status{
	checkout.StatusPending,
	checkout.StatusCommitted,
	checkout.StatusFailed,
	checkout.StatusReconciling,
	checkout.StatusCancelled,
}

// SaveSession persists a session and refiles it under its status index.
func (r *RedisStore) SaveSession(ctx context.Context, session *checkout.Session) error {
	if session == nil || session.ID == "" {
		return checkout.ErrInvalidSessionID
	}

	encoded, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.sessionKey(session.ID), encoded, 0)
	for _, status := range allStatuses {
		if status == session.Status {
			pipe.SAdd(ctx, r.statusKey(status), session.ID)
		} else {
			pipe.SRem(ctx, r.statusKey(status), session.ID)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save session %s: %w", session.ID, err)
	}
	return nil
}

// GetSession retrieves a session by ID.
func (r *RedisStore) GetSession(ctx context.Context, sessionID string) (*checkout.Session, error) {
	if sessionID == "" {
		return nil, checkout.ErrInvalidSessionID
	}

	encoded, err := r.client.Get(ctx, r.sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, checkout.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	var session checkout.Session
	if err := json.Unmarshal(encoded, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", sessionID, err)
	}
	return &session, nil
}

// DeleteSession removes a session, its error record, and its index entries.
func (r *RedisStore) DeleteSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return checkout.ErrInvalidSessionID
	}

	deleted, err := r.client.Del(ctx, r.sessionKey(sessionID)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	if deleted == 0 {
		return checkout.ErrSessionNotFound
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.errorKey(sessionID))
	for _, status := range allStatuses {
		pipe.SRem(ctx, r.statusKey(status), sessionID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to clean up session %s: %w", sessionID, err)
	}
	return nil
}

// ListSessionsByStatus returns all sessions in any of the given statuses.
func (r *RedisStore) ListSessionsByStatus(ctx context.Context, statuses ...checkout.Status) ([]*checkout.Session, error) {
	var sessions []*checkout.Session
	for _, status := range statuses {
		ids, err := r.client.SMembers(ctx, r.statusKey(status)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to list %s sessions: %w", status, err)
		}
		for _, id := range ids {
			session, err := r.GetSession(ctx, id)
			if errors.Is(err, checkout.ErrSessionNotFound) {
				// Stale index entry; the session was deleted concurrently.
				continue
			}
			if err != nil {
				return nil, err
			}
			sessions = append(sessions, session)
		}
	}
	return sessions, nil
}

// SaveError records the last classified failure for a session.
func (r *RedisStore) SaveError(ctx context.Context, sessionID string, info *checkout.ErrorInfo) error {
	if sessionID == "" {
		return checkout.ErrInvalidSessionID
	}

	exists, err := r.client.Exists(ctx, r.sessionKey(sessionID)).Result()
	if err != nil {
		return fmt.Errorf("failed to check session %s: %w", sessionID, err)
	}
	if exists == 0 {
		return checkout.ErrSessionNotFound
	}

	encoded, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to encode session error: %w", err)
	}
	if err := r.client.Set(ctx, r.errorKey(sessionID), encoded, 0).Err(); err != nil {
		return fmt.Errorf("failed to save error for session %s: %w", sessionID, err)
	}
	return nil
}

// GetError retrieves the persisted failure for a session.
func (r *RedisStore) GetError(ctx context.Context, sessionID string) (*checkout.ErrorInfo, error) {
	if sessionID == "" {
		return nil, checkout.ErrInvalidSessionID
	}

	encoded, err := r.client.Get(ctx, r.errorKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, checkout.ErrErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load error for session %s: %w", sessionID, err)
	}

	var info checkout.ErrorInfo
	if err := json.Unmarshal(encoded, &info); err != nil {
		return nil, fmt.Errorf("failed to decode error for session %s: %w", sessionID, err)
	}
	return &info, nil
}

// ClearError removes the persisted failure for a session.
func (r *RedisStore) ClearError(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return checkout.ErrInvalidSessionID
	}
	if err := r.client.Del(ctx, r.errorKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to clear error for session %s: %w", sessionID, err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
