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

package txn

import (
	"context"
	"time"

	"github.com/innovationmech/checkout/pkg/checkout"
	"github.com/innovationmech/checkout/pkg/checkout/docstore"
	"github.com/innovationmech/checkout/pkg/checkout/retry"
	"github.com/innovationmech/checkout/pkg/logger"
	"go.uber.org/zap"
)

// Runner executes document-store transactions under the retry coordinator.
// Every failure leaving Run is a classified CheckoutError; callers never see
// raw backend errors.
type Runner struct {
	store   docstore.Store
	monitor retry.ConnectivityMonitor
	config  *retry.Config
	logger  *zap.Logger
	metrics *retry.MetricsCollector
}

// RunOptions customizes a single Run call.
type RunOptions struct {
	// OperationName names the operation in user-facing error wording.
	// Defaults to "operation".
	OperationName string

	// MaxRetries overrides the configured attempt bound for this call when
	// positive. It counts total attempts including the first.
	MaxRetries int

	// OnConflictDetected is invoked exactly once per failed attempt with the
	// classified error, before any backoff delay.
	OnConflictDetected func(*checkout.CheckoutError)
}

// RunnerOption is a functional option for configuring the Runner.
type RunnerOption func(*Runner)

// WithRetryConfig overrides the default retry configuration.
func WithRetryConfig(config *retry.Config) RunnerOption {
	return func(r *Runner) {
		r.config = config
	}
}

// WithRunnerLogger sets a custom logger.
func WithRunnerLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = l
	}
}

// WithRunnerMetrics adds metrics collection to every execution.
func WithRunnerMetrics(collector *retry.MetricsCollector) RunnerOption {
	return func(r *Runner) {
		r.metrics = collector
	}
}

// NewRunner creates a transaction runner over the given store and monitor.
func NewRunner(store docstore.Store, monitor retry.ConnectivityMonitor, opts ...RunnerOption) *Runner {
	r := &Runner{
		store:   store,
		monitor: monitor,
		config:  retry.DefaultConfig(),
		logger:  logger.Named("txn"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// taxonomyClassifier plugs the classified Recoverable flag into the retry
// coordinator. Quota failures get the configured cool-down floor.
type taxonomyClassifier struct {
	quotaFloor time.Duration
}

func (c *taxonomyClassifier) Retryable(err error) bool {
	return checkout.IsRecoverable(err)
}

func (c *taxonomyClassifier) DelayFloor(err error) time.Duration {
	if checkout.IsCode(err, checkout.CodeQuotaExceeded) {
		return c.quotaFloor
	}
	return 0
}

// Run executes fn as one transaction, retrying recoverable failures with
// backoff and failing fast on the rest. opts may be nil.
func (r *Runner) Run(ctx context.Context, fn docstore.TxFunc, opts *RunOptions) error {
	if opts == nil {
		opts = &RunOptions{}
	}
	operationName := opts.OperationName
	if operationName == "" {
		operationName = "operation"
	}

	config := r.config.Clone()
	if opts.MaxRetries > 0 {
		config.MaxAttempts = opts.MaxRetries
	}

	coordOpts := []retry.Option{
		retry.WithLogger(r.logger),
		retry.WithClassifier(&taxonomyClassifier{quotaFloor: config.QuotaDelayFloor}),
	}
	if r.metrics != nil {
		coordOpts = append(coordOpts, retry.WithMetrics(r.metrics))
	}
	coord := retry.NewCoordinator(config, r.monitor, coordOpts...)

	return coord.Execute(ctx, func(ctx context.Context) error {
		err := r.store.RunTransaction(ctx, fn)
		if err == nil {
			return nil
		}

		cerr := Classify(err, operationName, r.monitor)
		r.logger.Warn("transaction attempt failed",
			zap.String("operation", operationName),
			zap.String("code", cerr.Code),
			zap.Bool("recoverable", cerr.Recoverable),
			zap.Error(err),
		)
		if opts.OnConflictDetected != nil {
			opts.OnConflictDetected(cerr)
		}
		return cerr
	})
}
