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

// Package coordinator is the façade of the checkout library. It ties the
// session store, the transaction runner, the idempotency manager, and the
// reconciler into the session lifecycle: begin, commit, retry, cancel,
// recover.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/innovationmech/checkout/pkg/checkout"
	"github.com/innovationmech/checkout/pkg/checkout/docstore"
	"github.com/innovationmech/checkout/pkg/checkout/idempotency"
	"github.com/innovationmech/checkout/pkg/checkout/reconcile"
	"github.com/innovationmech/checkout/pkg/checkout/retry"
	"github.com/innovationmech/checkout/pkg/checkout/txn"
	"github.com/innovationmech/checkout/pkg/logger"
	"go.uber.org/zap"
)

// ErrReconcileRequired is returned when a commit is attempted on a failed
// session. The true outcome of the previous attempt is unknown; callers must
// go through Retry, which reconciles first.
var ErrReconcileRequired = errors.New("session must be reconciled before committing again")

// ErrAlreadyCommitted is returned when an operation is refused because an
// order already exists for the session.
var ErrAlreadyCommitted = errors.New("an order already exists for this session")

// ErrInvalidCart is returned when a checkout is started with an empty cart.
var ErrInvalidCart = errors.New("cart must contain at least one item")

// Coordinator drives checkout sessions through their lifecycle. All methods
// are safe for concurrent use as long as each session is driven by one
// goroutine at a time, which mirrors how a device drives its own checkout.
type Coordinator struct {
	sessions checkout.SessionStore
	orders   docstore.Store
	runner   *txn.Runner
	manager  *idempotency.Manager
	recon    *reconcile.Reconciler
	logger   *zap.Logger
	listener checkout.EventListener
	config   *retry.Config
	metrics  *retry.MetricsCollector
}

// Option is a functional option for configuring the Coordinator.
type Option func(*Coordinator)

// WithListener registers an event listener for lifecycle events. The same
// listener also receives reconciliation events.
func WithListener(listener checkout.EventListener) Option {
	return func(c *Coordinator) {
		c.listener = listener
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) {
		c.logger = l
	}
}

// WithRetryConfig overrides the default retry configuration used for commit
// transactions.
func WithRetryConfig(config *retry.Config) Option {
	return func(c *Coordinator) {
		c.config = config
	}
}

// WithMetrics adds Prometheus metrics collection to commit transactions.
func WithMetrics(collector *retry.MetricsCollector) Option {
	return func(c *Coordinator) {
		c.metrics = collector
	}
}

// New creates a coordinator over the given stores and connectivity monitor.
func New(sessions checkout.SessionStore, orders docstore.Store, monitor retry.ConnectivityMonitor, opts ...Option) *Coordinator {
	c := &Coordinator{
		sessions: sessions,
		orders:   orders,
		manager:  idempotency.NewManager(),
		logger:   logger.Named("coordinator"),
		config:   retry.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	runnerOpts := []txn.RunnerOption{
		txn.WithRetryConfig(c.config),
		txn.WithRunnerLogger(c.logger),
	}
	if c.metrics != nil {
		runnerOpts = append(runnerOpts, txn.WithRunnerMetrics(c.metrics))
	}
	c.runner = txn.NewRunner(orders, monitor, runnerOpts...)
	c.recon = reconcile.NewReconciler(orders, sessions,
		reconcile.WithLogger(c.logger),
		reconcile.WithListener(c.listener),
	)
	return c
}

func (c *Coordinator) emit(event *checkout.Event) {
	if c.listener != nil {
		c.listener(event)
	}
}

// Begin starts a checkout session for a cart. The session is persisted in
// pending state before any commit is attempted, so a crash at any later
// point leaves a recoverable record behind.
func (c *Coordinator) Begin(ctx context.Context, userID string, cart *checkout.CartSnapshot) (*checkout.Session, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID must not be empty")
	}
	if cart == nil || len(cart.Items) == 0 {
		return nil, ErrInvalidCart
	}
	for _, item := range cart.Items {
		if item.ProductID == "" || item.Quantity <= 0 || item.UnitPrice < 0 {
			return nil, fmt.Errorf("invalid cart line for product %q", item.ProductID)
		}
	}

	now := nowUTC()
	session := &checkout.Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		Cart:      *cart.Clone(),
		Status:    checkout.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	session.IdempotencyKey = idempotency.DeriveKey(userID, cart, now)

	if err := c.sessions.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to persist new session: %w", err)
	}

	c.logger.Info("checkout session created",
		zap.String("sessionId", session.ID),
		zap.String("userId", userID),
		zap.Int64("total", cart.Total()),
	)
	c.emit(checkout.NewEvent(checkout.EventSessionCreated, session.ID, "checkout session created"))
	return session, nil
}

// Commit attempts to convert the session's cart into an order. On success the
// session is removed from the store and the outcome carries the order. On
// failure the classified error is persisted first, then the session moves to
// failed; the outcome carries the error and the preserved cart.
//
// Committing a failed session is refused with ErrReconcileRequired; a
// terminal session is refused outright.
func (c *Coordinator) Commit(ctx context.Context, sessionID string) (*checkout.Outcome, error) {
	session, err := c.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	switch session.Status {
	case checkout.StatusPending, checkout.StatusReconciling:
		// commit may proceed
	case checkout.StatusFailed:
		return nil, ErrReconcileRequired
	default:
		return nil, fmt.Errorf("cannot commit session in %s state", session.Status)
	}

	return c.commit(ctx, session)
}

func (c *Coordinator) commit(ctx context.Context, session *checkout.Session) (*checkout.Outcome, error) {
	var order checkout.Order
	runErr := c.runner.Run(ctx, c.manager.CreateOrder(session, &order), &txn.RunOptions{
		OperationName: "checkout",
		OnConflictDetected: func(cerr *checkout.CheckoutError) {
			event := checkout.NewEvent(checkout.EventConflictDetected, session.ID, cerr.Message)
			event.Err = cerr.ToErrorInfo()
			c.emit(event)
			if cerr.Recoverable {
				c.emit(checkout.NewEvent(checkout.EventRetryAttempted, session.ID, "retrying checkout"))
			}
		},
	})

	if runErr != nil {
		return c.handleCommitFailure(ctx, session, runErr)
	}

	if err := session.TransitionTo(checkout.StatusCommitted); err != nil {
		return nil, err
	}
	// The order document is the durable record; the local session has served
	// its purpose once the outcome is confirmed.
	if err := c.sessions.DeleteSession(ctx, session.ID); err != nil && !errors.Is(err, checkout.ErrSessionNotFound) {
		c.logger.Warn("failed to remove committed session",
			zap.String("sessionId", session.ID),
			zap.Error(err),
		)
	}

	c.logger.Info("checkout committed",
		zap.String("sessionId", session.ID),
		zap.String("orderId", order.OrderID),
	)
	event := checkout.NewEvent(checkout.EventCommitSucceeded, session.ID, "order created")
	event.Metadata = map[string]interface{}{"orderId": order.OrderID}
	c.emit(event)

	return &checkout.Outcome{
		SessionID: session.ID,
		Status:    checkout.StatusCommitted,
		Order:     &order,
	}, nil
}

// handleCommitFailure persists the classified failure before any status
// change. If the process dies between the two writes the stored error still
// explains what happened.
func (c *Coordinator) handleCommitFailure(ctx context.Context, session *checkout.Session, runErr error) (*checkout.Outcome, error) {
	cerr, ok := checkout.AsCheckoutError(runErr)
	if !ok {
		// Context cancellation is the only path that bypasses classification.
		return nil, runErr
	}
	info := cerr.ToErrorInfo()

	if err := c.sessions.SaveError(ctx, session.ID, info); err != nil {
		c.logger.Error("failed to persist commit error",
			zap.String("sessionId", session.ID),
			zap.Error(err),
		)
	}

	if session.Status == checkout.StatusPending {
		if err := session.TransitionTo(checkout.StatusFailed); err != nil {
			return nil, err
		}
	}
	session.LastError = info
	if err := c.sessions.SaveSession(ctx, session); err != nil {
		c.logger.Error("failed to persist failed session",
			zap.String("sessionId", session.ID),
			zap.Error(err),
		)
	}

	c.logger.Warn("checkout commit failed",
		zap.String("sessionId", session.ID),
		zap.String("code", cerr.Code),
		zap.Bool("recoverable", cerr.Recoverable),
	)
	event := checkout.NewEvent(checkout.EventCommitFailed, session.ID, cerr.Message)
	event.Err = info
	c.emit(event)

	return &checkout.Outcome{
		SessionID: session.ID,
		Status:    session.Status,
		Err:       info,
		Cart:      session.Cart.Clone(),
	}, runErr
}

// Retry resolves a failed session and, when no order exists, attempts the
// commit again. If reconciliation finds the order from the previous attempt
// the outcome is returned without a new commit.
func (c *Coordinator) Retry(ctx context.Context, sessionID string) (*checkout.Outcome, error) {
	session, err := c.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status.IsTerminal() {
		return nil, fmt.Errorf("cannot retry session in %s state", session.Status)
	}

	reconciled, err := c.recon.Reconcile(ctx, session)
	if err != nil {
		return nil, err
	}

	if reconciled.Status == checkout.StatusCommitted {
		order, err := idempotency.FindOrder(ctx, c.orders, reconciled.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if err := c.sessions.DeleteSession(ctx, reconciled.ID); err != nil && !errors.Is(err, checkout.ErrSessionNotFound) {
			c.logger.Warn("failed to remove committed session",
				zap.String("sessionId", reconciled.ID),
				zap.Error(err),
			)
		}
		return &checkout.Outcome{
			SessionID: reconciled.ID,
			Status:    checkout.StatusCommitted,
			Order:     order,
		}, nil
	}

	return c.commit(ctx, reconciled)
}

// Cancel abandons a session and returns its cart so the caller can restore
// it. A failed or pending session is reconciled first; if that turns up an
// order the cancellation is refused with ErrAlreadyCommitted, because a
// created order cannot be silently discarded.
func (c *Coordinator) Cancel(ctx context.Context, sessionID string) (*checkout.Outcome, error) {
	session, err := c.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status.IsTerminal() {
		return nil, fmt.Errorf("cannot cancel session in %s state", session.Status)
	}

	if session.Status != checkout.StatusReconciling {
		session, err = c.recon.Reconcile(ctx, session)
		if err != nil {
			return nil, err
		}
		if session.Status == checkout.StatusCommitted {
			return nil, ErrAlreadyCommitted
		}
	}

	if err := session.TransitionTo(checkout.StatusCancelled); err != nil {
		return nil, err
	}
	if err := c.sessions.DeleteSession(ctx, session.ID); err != nil && !errors.Is(err, checkout.ErrSessionNotFound) {
		return nil, fmt.Errorf("failed to remove cancelled session: %w", err)
	}

	c.logger.Info("checkout session cancelled",
		zap.String("sessionId", session.ID),
	)
	c.emit(checkout.NewEvent(checkout.EventSessionCancelled, session.ID, "checkout session cancelled"))

	return &checkout.Outcome{
		SessionID: session.ID,
		Status:    checkout.StatusCancelled,
		Cart:      session.Cart.Clone(),
	}, nil
}

// Recover reconciles every session in a non-terminal state. Call it once at
// process start; sessions left behind by a crash either surface their order
// or move to reconciling, where the user can decide.
func (c *Coordinator) Recover(ctx context.Context) ([]*checkout.Session, error) {
	return c.recon.ReconcileAll(ctx)
}

// Session returns the current state of a session.
func (c *Coordinator) Session(ctx context.Context, sessionID string) (*checkout.Session, error) {
	return c.sessions.GetSession(ctx, sessionID)
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
