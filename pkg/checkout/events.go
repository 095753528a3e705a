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

import "time"

// EventType identifies a checkout lifecycle event.
type EventType string

const (
	// Session lifecycle events
	EventSessionCreated   EventType = "session.created"
	EventCommitSucceeded  EventType = "session.committed"
	EventCommitFailed     EventType = "session.commit_failed"
	EventSessionCancelled EventType = "session.cancelled"

	// Retry events
	EventRetryAttempted EventType = "retry.attempted"

	// Conflict events
	EventConflictDetected EventType = "conflict.detected"

	// Reconciliation events
	EventReconcileStarted     EventType = "reconcile.started"
	EventReconcileOrderFound  EventType = "reconcile.order_found"
	EventReconcileRetryNeeded EventType = "reconcile.retry_needed"
)

// Event is the in-process notification surface consumed by presentation
// layers. The library never renders anything itself.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	SessionID string                 `json:"sessionId,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Err       *ErrorInfo             `json:"error,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// EventListener is a callback registered for checkout events. Listeners must
// not block; they are invoked synchronously on the operation's goroutine.
type EventListener func(event *Event)

// NewEvent creates an event stamped with the current time.
func NewEvent(eventType EventType, sessionID, message string) *Event {
	return &Event{
		Type:      eventType,
		Timestamp: time.Now(),
		SessionID: sessionID,
		Message:   message,
	}
}
