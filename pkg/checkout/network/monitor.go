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

// Package network provides connectivity monitoring and best-effort
// classification of network-related failures.
package network

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/innovationmech/checkout/pkg/checkout"
	"github.com/innovationmech/checkout/pkg/checkout/docstore"
)

// networkErrorSignatures is the fixed set of message fragments treated as
// network failures. Matching is case-insensitive. This is a best-effort
// heuristic: false negatives are possible and accepted; every entry is
// covered by a unit test.
var networkErrorSignatures = []string{
	"timeout",
	"timed out",
	"connection refused",
	"connection reset",
	"no such host",
	"dns",
	"network error",
	"network is unreachable",
	"host is unreachable",
	"broken pipe",
	"unexpected eof",
	"i/o timeout",
	"temporary failure",
}

// Monitor reports current connectivity and classifies whether a failure is
// network-related. The zero probe is treated as indeterminate, which reports
// not connected (fail-safe default).
type Monitor struct {
	probe checkout.ConnectivityProbe
}

// NewMonitor creates a Monitor backed by the given probe. A nil probe means
// connectivity cannot be determined and IsConnected always reports false.
func NewMonitor(probe checkout.ConnectivityProbe) *Monitor {
	return &Monitor{probe: probe}
}

// IsConnected queries the probe. Indeterminate state (nil probe, probe
// panic) reports false.
func (m *Monitor) IsConnected(ctx context.Context) (connected bool) {
	if m == nil || m.probe == nil {
		return false
	}
	defer func() {
		if recover() != nil {
			connected = false
		}
	}()
	return m.probe(ctx)
}

// IsNetworkError reports whether err looks like a network failure. It checks
// tagged backend codes and net.Error timeouts before falling back to the
// signature list.
func (m *Monitor) IsNetworkError(err error) bool {
	if err == nil {
		return false
	}

	switch docstore.CodeOf(err) {
	case docstore.CodeDeadlineExceeded, docstore.CodeUnavailable:
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, signature := range networkErrorSignatures {
		if strings.Contains(msg, signature) {
			return true
		}
	}
	return false
}

// DialProbe returns a probe that reports connectivity by opening a TCP
// connection to address. Any dial failure reports not connected.
func DialProbe(address string, timeout time.Duration) checkout.ConnectivityProbe {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return func(ctx context.Context) bool {
		dialCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		var dialer net.Dialer
		conn, err := dialer.DialContext(dialCtx, "tcp", address)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}
}

// StaticProbe returns a probe with a fixed answer. Test hook.
func StaticProbe(connected bool) checkout.ConnectivityProbe {
	return func(ctx context.Context) bool {
		return connected
	}
}
