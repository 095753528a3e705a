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

package retry

import (
	"context"
	"time"

	"github.com/innovationmech/checkout/pkg/checkout"
	"github.com/innovationmech/checkout/pkg/logger"
	"go.uber.org/zap"
)

// Operation is a fallible operation executed under retry.
type Operation func(ctx context.Context) error

// ConnectivityMonitor is the slice of the network monitor the coordinator
// consumes: an offline check before each retry and a network-failure
// heuristic for the default classification.
type ConnectivityMonitor interface {
	IsConnected(ctx context.Context) bool
	IsNetworkError(err error) bool
}

// Classifier decides whether a failure is worth another attempt and whether
// it needs a minimum cool-down before the next one.
type Classifier interface {
	// Retryable reports whether the error may self-resolve on retry.
	Retryable(err error) bool

	// DelayFloor returns the minimum delay before retrying this error.
	// Zero means the backoff delay applies unchanged.
	DelayFloor(err error) time.Duration
}

// networkClassifier is the default classifier: only network failures are
// retried; everything else fails fast because it is not expected to
// self-resolve.
type networkClassifier struct {
	monitor ConnectivityMonitor
}

func (c *networkClassifier) Retryable(err error) bool {
	if c.monitor == nil {
		return false
	}
	return c.monitor.IsNetworkError(err)
}

func (c *networkClassifier) DelayFloor(err error) time.Duration {
	return 0
}

// Coordinator executes operations with bounded retries, exponential backoff
// with jitter, and an offline fail-fast: before every attempt after the
// first it consults the connectivity monitor and aborts immediately rather
// than consuming a retry slot while the device is offline.
type Coordinator struct {
	policy     *BackoffPolicy
	monitor    ConnectivityMonitor
	classifier Classifier
	logger     *zap.Logger
	metrics    *MetricsCollector
	onRetry    func(attempt int, err error, delay time.Duration)
}

// Option is a functional option for configuring the Coordinator.
type Option func(*Coordinator)

// WithClassifier sets a custom error classifier.
func WithClassifier(classifier Classifier) Option {
	return func(c *Coordinator) {
		c.classifier = classifier
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) {
		c.logger = l
	}
}

// WithMetrics adds metrics collection to the coordinator.
func WithMetrics(collector *MetricsCollector) Option {
	return func(c *Coordinator) {
		c.metrics = collector
	}
}

// WithPolicy sets a custom backoff policy.
func WithPolicy(policy *BackoffPolicy) Option {
	return func(c *Coordinator) {
		c.policy = policy
	}
}

// OnRetry sets a callback invoked before each backoff delay.
func OnRetry(callback func(attempt int, err error, delay time.Duration)) Option {
	return func(c *Coordinator) {
		c.onRetry = callback
	}
}

// NewCoordinator creates a retry coordinator. A nil config uses defaults;
// the monitor may be nil, in which case the offline check is skipped and
// nothing is considered retryable unless a classifier is supplied.
func NewCoordinator(config *Config, monitor ConnectivityMonitor, opts ...Option) *Coordinator {
	c := &Coordinator{
		policy:  NewBackoffPolicy(config),
		monitor: monitor,
		logger:  logger.Named("retry"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.classifier == nil {
		c.classifier = &networkClassifier{monitor: monitor}
	}
	return c
}

// Execute runs op with retry. It returns nil on the first success, the
// classified no-connection error when a retry finds the device offline, or
// the last error once the operation fails terminally (non-retryable failure
// or exhausted attempts).
func (c *Coordinator) Execute(ctx context.Context, op Operation) error {
	start := time.Now()
	maxAttempts := c.policy.MaxAttempts()

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if c.metrics != nil {
				c.metrics.RecordAborted("context_cancelled")
			}
			return err
		}

		// The offline check runs before each retry, not after a failure:
		// consuming a retry slot on a doomed attempt helps nobody.
		if attempt > 0 && c.monitor != nil && !c.monitor.IsConnected(ctx) {
			c.logger.Warn("aborting retry: no network connection",
				zap.Int("attempt", attempt),
			)
			if c.metrics != nil {
				c.metrics.RecordAborted("offline")
			}
			return checkout.NewNoConnectionError()
		}

		if c.metrics != nil {
			c.metrics.RecordAttempt(attempt + 1)
		}

		err := op(ctx)
		if err == nil {
			if attempt > 0 {
				c.logger.Info("operation succeeded after retry",
					zap.Int("attempt", attempt+1),
					zap.Duration("elapsed", time.Since(start)),
				)
			}
			if c.metrics != nil {
				c.metrics.RecordSuccess(attempt+1, time.Since(start))
			}
			return nil
		}
		lastErr = err

		if !c.classifier.Retryable(err) {
			c.logger.Warn("failing fast on non-retryable error",
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			if c.metrics != nil {
				c.metrics.RecordFailure(attempt+1, time.Since(start), "non_retryable")
			}
			return err
		}

		if attempt == maxAttempts-1 {
			break
		}

		delay := c.policy.Delay(attempt)
		if floor := c.classifier.DelayFloor(err); delay < floor {
			delay = floor
		}

		c.logger.Info("retrying after error",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if c.onRetry != nil {
			c.onRetry(attempt+1, err, delay)
		}

		select {
		case <-ctx.Done():
			if c.metrics != nil {
				c.metrics.RecordAborted("context_cancelled")
			}
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	c.logger.Error("retry attempts exhausted",
		zap.Int("attempts", maxAttempts),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(lastErr),
	)
	if c.metrics != nil {
		c.metrics.RecordFailure(maxAttempts, time.Since(start), "attempts_exhausted")
	}
	return lastErr
}
