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
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMetricsCollector_Registration(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector, err := NewMetricsCollector("checkout", registry)
	require.NoError(t, err)
	assert.Same(t, registry, collector.Registry())

	// Registering the same metrics twice must fail loudly.
	_, err = NewMetricsCollector("checkout", registry)
	assert.Error(t, err)
}

func TestMetricsCollector_RecordsExecution(t *testing.T) {
	collector, err := NewMetricsCollector("checkout", nil)
	require.NoError(t, err)

	coord := NewCoordinator(fastConfig(3), &fakeMonitor{},
		WithLogger(zap.NewNop()), WithMetrics(collector))

	invocations := 0
	execErr := coord.Execute(context.Background(), func(ctx context.Context) error {
		invocations++
		if invocations < 2 {
			return errors.New("connection refused")
		}
		return nil
	})
	require.NoError(t, execErr)

	assert.Equal(t, float64(1),
		testutil.ToFloat64(collector.attemptsTotal.WithLabelValues("1")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(collector.attemptsTotal.WithLabelValues("2")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(collector.successTotal.WithLabelValues("2")))
}

func TestMetricsCollector_RecordsAbort(t *testing.T) {
	collector, err := NewMetricsCollector("checkout", nil)
	require.NoError(t, err)

	monitor := &fakeMonitor{connected: []bool{false}}
	coord := NewCoordinator(fastConfig(3), monitor,
		WithLogger(zap.NewNop()), WithMetrics(collector))

	execErr := coord.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("connection reset")
	})
	require.Error(t, execErr)

	assert.Equal(t, float64(1),
		testutil.ToFloat64(collector.abortedTotal.WithLabelValues("offline")))
}

func TestAttemptLabel(t *testing.T) {
	assert.Equal(t, "1", attemptLabel(1))
	assert.Equal(t, "5", attemptLabel(5))
	assert.Equal(t, "5+", attemptLabel(6))
	assert.Equal(t, "5+", attemptLabel(40))
}

func TestMetricsCollector_RecordFailure(t *testing.T) {
	collector, err := NewMetricsCollector("", nil)
	require.NoError(t, err)

	collector.RecordFailure(3, 250*time.Millisecond, "attempts_exhausted")
	assert.Equal(t, float64(1),
		testutil.ToFloat64(collector.failureTotal.WithLabelValues("attempts_exhausted")))
}
