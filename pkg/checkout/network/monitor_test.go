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

package network

import (
	"context"
	"errors"
	"testing"

	"github.com/innovationmech/checkout/pkg/checkout/docstore"
)

func TestMonitor_IsConnected(t *testing.T) {
	ctx := context.Background()

	if NewMonitor(StaticProbe(true)).IsConnected(ctx) != true {
		t.Error("static true probe should report connected")
	}
	if NewMonitor(StaticProbe(false)).IsConnected(ctx) != false {
		t.Error("static false probe should report not connected")
	}
	if NewMonitor(nil).IsConnected(ctx) != false {
		t.Error("nil probe is indeterminate and must report not connected")
	}
}

func TestMonitor_IsConnectedProbePanic(t *testing.T) {
	m := NewMonitor(func(ctx context.Context) bool { panic("broken platform API") })
	if m.IsConnected(context.Background()) {
		t.Error("panicking probe is indeterminate and must report not connected")
	}
}

func TestMonitor_IsNetworkErrorSignatures(t *testing.T) {
	m := NewMonitor(nil)

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"timeout", errors.New("request timeout"), true},
		{"timed out", errors.New("operation timed out"), true},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"connection reset", errors.New("read: connection reset by peer"), true},
		{"dns failure", errors.New("lookup api.example.com: no such host"), true},
		{"generic dns", errors.New("DNS resolution failed"), true},
		{"generic network error", errors.New("Network Error"), true},
		{"network unreachable", errors.New("connect: network is unreachable"), true},
		{"host unreachable", errors.New("connect: host is unreachable"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"unexpected eof", errors.New("unexpected EOF"), true},
		{"io timeout", errors.New("read tcp 10.0.0.1:443: i/o timeout"), true},
		{"temporary failure", errors.New("temporary failure in name resolution"), true},
		{"validation error", errors.New("invalid cart contents"), false},
		{"permission error", errors.New("permission denied"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.IsNetworkError(tt.err); got != tt.want {
				t.Errorf("IsNetworkError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestMonitor_IsNetworkErrorTaggedCodes(t *testing.T) {
	m := NewMonitor(nil)

	if !m.IsNetworkError(docstore.NewBackendError(docstore.CodeDeadlineExceeded, "commit deadline")) {
		t.Error("deadline-exceeded backend code should be a network error")
	}
	if !m.IsNetworkError(docstore.NewBackendError(docstore.CodeUnavailable, "backend down")) {
		t.Error("unavailable backend code should be a network error")
	}
	if m.IsNetworkError(docstore.NewBackendError(docstore.CodePermissionDenied, "nope")) {
		t.Error("permission-denied backend code is not a network error")
	}
	if !m.IsNetworkError(context.DeadlineExceeded) {
		t.Error("context.DeadlineExceeded should be a network error")
	}
}
