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
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/innovationmech/checkout/pkg/checkout"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS checkout_sessions (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	idempotency_key TEXT NOT NULL,
	cart_json       TEXT NOT NULL,
	status          TEXT NOT NULL,
	created_at      TIMESTAMP NOT NULL,
	updated_at      TIMESTAMP NOT NULL,
	last_error_json TEXT
);
CREATE INDEX IF NOT EXISTS idx_checkout_sessions_status ON checkout_sessions(status);
`

// SQLiteStore is a SQLite-backed implementation of checkout.SessionStore.
// Sessions survive process restarts, which is what makes crash recovery
// possible. Use ":memory:" as the path for a throwaway store in tests.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed creates) the session database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite store path must not be empty")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}
	// SQLite handles one writer at a time; a larger pool just trades
	// SQLITE_BUSY errors for lock contention.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize session schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// SaveSession persists a session, overwriting any existing record.
func (s *SQLiteStore) SaveSession(ctx context.Context, session *checkout.Session) error {
	if session == nil || session.ID == "" {
		return checkout.ErrInvalidSessionID
	}

	cartJSON, err := json.Marshal(session.Cart)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}

	var errJSON sql.NullString
	if session.LastError != nil {
		encoded, err := json.Marshal(session.LastError)
		if err != nil {
			return fmt.Errorf("failed to encode session error: %w", err)
		}
		errJSON = sql.NullString{String: string(encoded), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkout_sessions
			(id, user_id, idempotency_key, cart_json, status, created_at, updated_at, last_error_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			idempotency_key = excluded.idempotency_key,
			cart_json = excluded.cart_json,
			status = excluded.status,
			updated_at = excluded.updated_at,
			last_error_json = excluded.last_error_json`,
		session.ID, session.UserID, session.IdempotencyKey, string(cartJSON),
		string(session.Status), session.CreatedAt.UTC(), session.UpdatedAt.UTC(), errJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", session.ID, err)
	}
	return nil
}

// GetSession retrieves a session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*checkout.Session, error) {
	if sessionID == "" {
		return nil, checkout.ErrInvalidSessionID
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, idempotency_key, cart_json, status, created_at, updated_at, last_error_json
		FROM checkout_sessions WHERE id = ?`, sessionID)
	return scanSession(row)
}

// DeleteSession removes a session.
func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return checkout.ErrInvalidSessionID
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM checkout_sessions WHERE id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return checkout.ErrSessionNotFound
	}
	return nil
}

// ListSessionsByStatus returns all sessions in any of the given statuses.
func (s *SQLiteStore) ListSessionsByStatus(ctx context.Context, statuses ...checkout.Status) ([]*checkout.Session, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(statuses))
	args := make([]interface{}, len(statuses))
	for i, status := range statuses {
		placeholders[i] = "?"
		args[i] = string(status)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, user_id, idempotency_key, cart_json, status, created_at, updated_at, last_error_json
		FROM checkout_sessions WHERE status IN (%s)
		ORDER BY created_at`, strings.Join(placeholders, ",")), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*checkout.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// SaveError records the last classified failure for a session.
func (s *SQLiteStore) SaveError(ctx context.Context, sessionID string, info *checkout.ErrorInfo) error {
	if sessionID == "" {
		return checkout.ErrInvalidSessionID
	}

	encoded, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to encode session error: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE checkout_sessions SET last_error_json = ? WHERE id = ?`,
		string(encoded), sessionID)
	if err != nil {
		return fmt.Errorf("failed to save error for session %s: %w", sessionID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return checkout.ErrSessionNotFound
	}
	return nil
}

// GetError retrieves the persisted failure for a session.
func (s *SQLiteStore) GetError(ctx context.Context, sessionID string) (*checkout.ErrorInfo, error) {
	if sessionID == "" {
		return nil, checkout.ErrInvalidSessionID
	}

	var errJSON sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT last_error_json FROM checkout_sessions WHERE id = ?`, sessionID).Scan(&errJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, checkout.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load error for session %s: %w", sessionID, err)
	}
	if !errJSON.Valid {
		return nil, checkout.ErrErrorNotFound
	}

	var info checkout.ErrorInfo
	if err := json.Unmarshal([]byte(errJSON.String), &info); err != nil {
		return nil, fmt.Errorf("failed to decode error for session %s: %w", sessionID, err)
	}
	return &info, nil
}

// ClearError removes the persisted failure for a session.
func (s *SQLiteStore) ClearError(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return checkout.ErrInvalidSessionID
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE checkout_sessions SET last_error_json = NULL WHERE id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to clear error for session %s: %w", sessionID, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*checkout.Session, error) {
	var (
		session   checkout.Session
		cartJSON  string
		status    string
		createdAt time.Time
		updatedAt time.Time
		errJSON   sql.NullString
	)
	err := row.Scan(&session.ID, &session.UserID, &session.IdempotencyKey,
		&cartJSON, &status, &createdAt, &updatedAt, &errJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, checkout.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session row: %w", err)
	}

	if err := json.Unmarshal([]byte(cartJSON), &session.Cart); err != nil {
		return nil, fmt.Errorf("failed to decode cart for session %s: %w", session.ID, err)
	}
	session.Status = checkout.Status(status)
	session.CreatedAt = createdAt
	session.UpdatedAt = updatedAt

	if errJSON.Valid {
		var info checkout.ErrorInfo
		if err := json.Unmarshal([]byte(errJSON.String), &info); err != nil {
			return nil, fmt.Errorf("failed to decode error for session %s: %w", session.ID, err)
		}
		session.LastError = &info
	}
	return &session, nil
}
