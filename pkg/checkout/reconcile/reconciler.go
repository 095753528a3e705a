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

// Package reconcile resolves the true outcome of checkout sessions whose
// last commit attempt ended without a confirmed result. The order store is
// the source of truth: a commit whose acknowledgement was lost still created
// an order, and only a reconciler lookup can tell that apart from a commit
// that never happened.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/innovationmech/checkout/pkg/checkout"
	"github.com/innovationmech/checkout/pkg/checkout/docstore"
	"github.com/innovationmech/checkout/pkg/checkout/idempotency"
	"github.com/innovationmech/checkout/pkg/logger"
	"go.uber.org/zap"
)

// Reconciler checks sessions in non-terminal states against the order store
// and advances their status to match reality.
type Reconciler struct {
	orders   docstore.Store
	sessions checkout.SessionStore
	logger   *zap.Logger
	listener checkout.EventListener
}

// ReconcilerOption is a functional option for configuring the Reconciler.
type ReconcilerOption func(*Reconciler)

// WithListener registers an event listener for reconciliation events.
func WithListener(listener checkout.EventListener) ReconcilerOption {
	return func(r *Reconciler) {
		r.listener = listener
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *zap.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		r.logger = l
	}
}

// NewReconciler creates a reconciler over the given order and session stores.
func NewReconciler(orders docstore.Store, sessions checkout.SessionStore, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		orders:   orders,
		sessions: sessions,
		logger:   logger.Named("reconcile"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reconciler) emit(event *checkout.Event) {
	if r.listener != nil {
		r.listener(event)
	}
}

// Reconcile resolves one session against the order store and returns the
// updated session. Terminal sessions are returned unchanged.
//
// When an order exists for the session's idempotency key the session is
// committed and its persisted error cleared. When none exists the session is
// advanced to reconciling, where the caller must choose between retrying and
// cancelling.
func (r *Reconciler) Reconcile(ctx context.Context, session *checkout.Session) (*checkout.Session, error) {
	if session == nil {
		return nil, checkout.ErrInvalidSessionID
	}
	if session.Status.IsTerminal() {
		return session, nil
	}

	r.emit(checkout.NewEvent(checkout.EventReconcileStarted, session.ID, "reconciling session"))
	r.logger.Info("reconciling session",
		zap.String("sessionId", session.ID),
		zap.String("status", session.Status.String()),
	)

	order, err := idempotency.FindOrder(ctx, r.orders, session.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("failed to look up order for session %s: %w", session.ID, err)
	}

	updated := session.Clone()
	if order != nil {
		return r.markCommitted(ctx, updated, order)
	}
	return r.markRetryNeeded(ctx, updated)
}

// markCommitted moves a session to committed after its order was found. A
// session still in pending or failed takes the lost-acknowledgement path.
func (r *Reconciler) markCommitted(ctx context.Context, session *checkout.Session, order *checkout.Order) (*checkout.Session, error) {
	if session.Status == checkout.StatusPending {
		// pending cannot reach committed without passing through the state
		// the interrupted commit would have left behind.
		if err := session.TransitionTo(checkout.StatusFailed); err != nil {
			return nil, err
		}
	}
	if err := session.TransitionTo(checkout.StatusCommitted); err != nil {
		return nil, err
	}
	session.LastError = nil

	if err := r.sessions.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to persist reconciled session %s: %w", session.ID, err)
	}
	if err := r.sessions.ClearError(ctx, session.ID); err != nil {
		return nil, fmt.Errorf("failed to clear error for session %s: %w", session.ID, err)
	}

	r.logger.Info("reconciliation found existing order",
		zap.String("sessionId", session.ID),
		zap.String("orderId", order.OrderID),
	)
	event := checkout.NewEvent(checkout.EventReconcileOrderFound, session.ID, "order already exists for this session")
	event.Metadata = map[string]interface{}{"orderId": order.OrderID}
	r.emit(event)
	return session, nil
}

// markRetryNeeded advances a session to reconciling once it is confirmed that
// no order exists for it.
func (r *Reconciler) markRetryNeeded(ctx context.Context, session *checkout.Session) (*checkout.Session, error) {
	if session.Status == checkout.StatusPending {
		if err := session.TransitionTo(checkout.StatusFailed); err != nil {
			return nil, err
		}
	}
	if session.Status == checkout.StatusFailed {
		if err := session.TransitionTo(checkout.StatusReconciling); err != nil {
			return nil, err
		}
	}

	if err := r.sessions.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to persist reconciled session %s: %w", session.ID, err)
	}

	r.logger.Info("reconciliation confirmed no order exists",
		zap.String("sessionId", session.ID),
	)
	r.emit(checkout.NewEvent(checkout.EventReconcileRetryNeeded, session.ID,
		"no order exists; retry or cancel the session"))
	return session, nil
}

// ReconcileByID loads a session and reconciles it.
func (r *Reconciler) ReconcileByID(ctx context.Context, sessionID string) (*checkout.Session, error) {
	session, err := r.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return r.Reconcile(ctx, session)
}

// ReconcileAll sweeps every session in a non-terminal state, typically at
// process start after a crash. Failures on individual sessions do not stop
// the sweep; they are joined into the returned error.
func (r *Reconciler) ReconcileAll(ctx context.Context) ([]*checkout.Session, error) {
	pending, err := r.sessions.ListSessionsByStatus(ctx,
		checkout.StatusPending, checkout.StatusFailed, checkout.StatusReconciling)
	if err != nil {
		return nil, fmt.Errorf("failed to list recoverable sessions: %w", err)
	}

	var (
		reconciled []*checkout.Session
		errs       []error
	)
	for _, session := range pending {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		updated, err := r.Reconcile(ctx, session)
		if err != nil {
			r.logger.Error("failed to reconcile session",
				zap.String("sessionId", session.ID),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("session %s: %w", session.ID, err))
			continue
		}
		reconciled = append(reconciled, updated)
	}
	return reconciled, errors.Join(errs...)
}
