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

// Package session provides the durable persistence backends for checkout
// sessions: in-memory for tests and embedding, SQLite for on-device
// durability, Redis for shared deployments.
package session

import (
	"context"
	"sync"

	"github.com/innovationmech/checkout/pkg/checkout"
)

// MemoryStore is an in-memory implementation of checkout.SessionStore. Safe
// for concurrent use. State is lost on process exit, which makes it suitable
// for tests and short-lived tooling only.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*checkout.Session
	errors   map[string]*checkout.ErrorInfo
	closed   bool
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*checkout.Session),
		errors:   make(map[string]*checkout.ErrorInfo),
	}
}

// SaveSession persists a session, overwriting any existing record.
func (m *MemoryStore) SaveSession(ctx context.Context, session *checkout.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if session == nil || session.ID == "" {
		return checkout.ErrInvalidSessionID
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return checkout.ErrStoreClosed
	}
	m.sessions[session.ID] = session.Clone()
	return nil
}

// GetSession retrieves a session by ID.
func (m *MemoryStore) GetSession(ctx context.Context, sessionID string) (*checkout.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if sessionID == "" {
		return nil, checkout.ErrInvalidSessionID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, checkout.ErrStoreClosed
	}
	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, checkout.ErrSessionNotFound
	}
	return session.Clone(), nil
}

// DeleteSession removes a session and its persisted error.
func (m *MemoryStore) DeleteSession(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sessionID == "" {
		return checkout.ErrInvalidSessionID
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return checkout.ErrStoreClosed
	}
	if _, ok := m.sessions[sessionID]; !ok {
		return checkout.ErrSessionNotFound
	}
	delete(m.sessions, sessionID)
	delete(m.errors, sessionID)
	return nil
}

// ListSessionsByStatus returns all sessions in any of the given statuses.
func (m *MemoryStore) ListSessionsByStatus(ctx context.Context, statuses ...checkout.Status) ([]*checkout.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wanted := make(map[checkout.Status]struct{}, len(statuses))
	for _, status := range statuses {
		wanted[status] = struct{}{}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, checkout.ErrStoreClosed
	}

	var result []*checkout.Session
	for _, session := range m.sessions {
		if _, ok := wanted[session.Status]; ok {
			result = append(result, session.Clone())
		}
	}
	return result, nil
}

// SaveError durably records the last classified failure for a session.
func (m *MemoryStore) SaveError(ctx context.Context, sessionID string, info *checkout.ErrorInfo) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sessionID == "" {
		return checkout.ErrInvalidSessionID
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return checkout.ErrStoreClosed
	}
	session, ok := m.sessions[sessionID]
	if !ok {
		return checkout.ErrSessionNotFound
	}

	infoCopy := *info
	m.errors[sessionID] = &infoCopy
	session.LastError = &infoCopy
	return nil
}

// GetError retrieves the persisted failure for a session.
func (m *MemoryStore) GetError(ctx context.Context, sessionID string) (*checkout.ErrorInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if sessionID == "" {
		return nil, checkout.ErrInvalidSessionID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, checkout.ErrStoreClosed
	}
	info, ok := m.errors[sessionID]
	if !ok {
		return nil, checkout.ErrErrorNotFound
	}
	infoCopy := *info
	return &infoCopy, nil
}

// ClearError removes the persisted failure for a session. Clearing when none
// exists is not an error.
func (m *MemoryStore) ClearError(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sessionID == "" {
		return checkout.ErrInvalidSessionID
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return checkout.ErrStoreClosed
	}
	delete(m.errors, sessionID)
	if session, ok := m.sessions[sessionID]; ok {
		session.LastError = nil
	}
	return nil
}

// Close marks the store closed. Further operations fail with ErrStoreClosed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.sessions = nil
	m.errors = nil
	return nil
}
