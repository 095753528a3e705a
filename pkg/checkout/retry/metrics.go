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
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector collects Prometheus metrics for retry executions.
type MetricsCollector struct {
	attemptsTotal     *prometheus.CounterVec
	successTotal      *prometheus.CounterVec
	failureTotal      *prometheus.CounterVec
	abortedTotal      *prometheus.CounterVec
	durationHistogram *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewMetricsCollector creates a retry metrics collector registered against
// the given registry. A nil registry gets a fresh one.
func NewMetricsCollector(namespace string, registry *prometheus.Registry) (*MetricsCollector, error) {
	if namespace == "" {
		namespace = "checkout"
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &MetricsCollector{registry: registry}

	c.attemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retry",
			Name:      "attempts_total",
			Help:      "Total number of operation attempts",
		},
		[]string{"attempt"},
	)

	c.successTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retry",
			Name:      "success_total",
			Help:      "Total number of operations that eventually succeeded",
		},
		[]string{"attempts"},
	)

	c.failureTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retry",
			Name:      "failure_total",
			Help:      "Total number of operations that failed terminally",
		},
		[]string{"reason"},
	)

	c.abortedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retry",
			Name:      "aborted_total",
			Help:      "Total number of retry loops aborted before completion",
		},
		[]string{"reason"},
	)

	c.durationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retry",
			Name:      "duration_seconds",
			Help:      "Duration of retry executions in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0, 30.0, 60.0},
		},
		[]string{"status"},
	)

	collectors := []prometheus.Collector{
		c.attemptsTotal,
		c.successTotal,
		c.failureTotal,
		c.abortedTotal,
		c.durationHistogram,
	}
	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return c, nil
}

// RecordAttempt records a single operation attempt.
func (c *MetricsCollector) RecordAttempt(attempt int) {
	c.attemptsTotal.WithLabelValues(attemptLabel(attempt)).Inc()
}

// RecordSuccess records an execution that eventually succeeded.
func (c *MetricsCollector) RecordSuccess(attempts int, duration time.Duration) {
	c.successTotal.WithLabelValues(attemptLabel(attempts)).Inc()
	c.durationHistogram.WithLabelValues("success").Observe(duration.Seconds())
}

// RecordFailure records an execution that failed terminally.
func (c *MetricsCollector) RecordFailure(attempts int, duration time.Duration, reason string) {
	c.failureTotal.WithLabelValues(reason).Inc()
	c.durationHistogram.WithLabelValues("failure").Observe(duration.Seconds())
}

// RecordAborted records a retry loop aborted before completion (offline,
// context cancelled).
func (c *MetricsCollector) RecordAborted(reason string) {
	c.abortedTotal.WithLabelValues(reason).Inc()
}

// Registry returns the Prometheus registry the collector is bound to.
func (c *MetricsCollector) Registry() *prometheus.Registry {
	return c.registry
}

func attemptLabel(attempt int) string {
	if attempt > 5 {
		return "5+"
	}
	return fmt.Sprintf("%d", attempt)
}
