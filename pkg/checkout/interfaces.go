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

import "context"

// SessionStore is the durable local persistence contract for checkout
// sessions and their last classified failure. Implementations live in
// pkg/checkout/session and must be safe for concurrent use.
//
// A session is saved before any commit is attempted so that a process death
// mid-commit leaves a recoverable record; it is only removed after a
// terminal, confirmed state is reached.
type SessionStore interface {
	// SaveSession persists a session, overwriting any existing record with
	// the same ID.
	SaveSession(ctx context.Context, session *Session) error

	// GetSession retrieves a session by ID. Returns ErrSessionNotFound if it
	// does not exist.
	GetSession(ctx context.Context, sessionID string) (*Session, error)

	// DeleteSession removes a session and its persisted error. Returns
	// ErrSessionNotFound if it does not exist.
	DeleteSession(ctx context.Context, sessionID string) error

	// ListSessionsByStatus returns all sessions in any of the given statuses.
	ListSessionsByStatus(ctx context.Context, statuses ...Status) ([]*Session, error)

	// SaveError durably records the last classified failure for a session.
	SaveError(ctx context.Context, sessionID string, info *ErrorInfo) error

	// GetError retrieves the persisted failure for a session. Returns
	// ErrErrorNotFound when none is recorded.
	GetError(ctx context.Context, sessionID string) (*ErrorInfo, error)

	// ClearError removes the persisted failure for a session. Clearing when
	// none exists is not an error.
	ClearError(ctx context.Context, sessionID string) error

	// Close releases resources held by the store.
	Close() error
}

// ConnectivityProbe reports whether the device currently has network
// connectivity. An indeterminate result must be reported as false.
type ConnectivityProbe func(ctx context.Context) bool
