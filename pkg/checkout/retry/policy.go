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

// Package retry provides the bounded retry engine of the checkout library:
// exponential backoff with jitter, offline fail-fast, and pluggable error
// classification.
package retry

import (
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"
)

// ErrInvalidConfig is returned when the retry configuration is invalid.
var ErrInvalidConfig = errors.New("invalid retry configuration")

// Config defines the retry settings shared by the coordinator and the
// backoff policy.
type Config struct {
	// MaxAttempts is the total number of attempts including the first.
	// Must be >= 1. A value of 1 means no retries.
	MaxAttempts int

	// BaseDelay is the delay before the first retry; it doubles with each
	// further attempt.
	BaseDelay time.Duration

	// MaxDelay caps the delay between retries.
	MaxDelay time.Duration

	// QuotaDelayFloor is the minimum delay applied before retrying a
	// quota-exhaustion failure. Quota limits need a longer cool-down than
	// ordinary network errors.
	QuotaDelayFloor time.Duration
}

// DefaultConfig returns the default retry configuration:
// 3 attempts, 500ms base delay, 8s cap, 5s quota floor.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts:     3,
		BaseDelay:       500 * time.Millisecond,
		MaxDelay:        8 * time.Second,
		QuotaDelayFloor: 5 * time.Second,
	}
}

// Validate validates the retry configuration.
func (c *Config) Validate() error {
	if c.MaxAttempts < 1 {
		return ErrInvalidConfig
	}
	if c.BaseDelay < 0 || c.QuotaDelayFloor < 0 {
		return ErrInvalidConfig
	}
	if c.MaxDelay > 0 && c.MaxDelay < c.BaseDelay {
		return ErrInvalidConfig
	}
	return nil
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// BackoffPolicy computes exponential backoff delays with uniform jitter.
// The delay for attempt n (0-indexed) is
//
//	min(MaxDelay, BaseDelay * 2^n) * jitter, jitter ∈ [0.75, 1.25]
//
// capped again at MaxDelay so no delay ever exceeds the configured maximum.
// Jitter spreads retries of many clients failing at the same moment.
type BackoffPolicy struct {
	config *Config

	// mu serializes access to rnd; rand.Rand is not goroutine-safe
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewBackoffPolicy creates a backoff policy. A nil config uses defaults.
func NewBackoffPolicy(config *Config) *BackoffPolicy {
	if config == nil {
		config = DefaultConfig()
	}
	return &BackoffPolicy{
		config: config,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// newBackoffPolicyWithSource creates a policy with a deterministic random
// source for tests.
func newBackoffPolicyWithSource(config *Config, src rand.Source) *BackoffPolicy {
	p := NewBackoffPolicy(config)
	p.rnd = rand.New(src)
	return p
}

// MaxAttempts returns the configured attempt bound.
func (p *BackoffPolicy) MaxAttempts() int {
	return p.config.MaxAttempts
}

// Delay returns the backoff delay after the given 0-indexed attempt.
func (p *BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	base := float64(p.config.BaseDelay) * math.Pow(2, float64(attempt))
	if p.config.MaxDelay > 0 && base > float64(p.config.MaxDelay) {
		base = float64(p.config.MaxDelay)
	}

	delay := time.Duration(base * p.jitter())
	if p.config.MaxDelay > 0 && delay > p.config.MaxDelay {
		delay = p.config.MaxDelay
	}
	if delay < 0 {
		delay = 0
	}
	return delay
}

// jitter draws a factor uniformly from [0.75, 1.25].
func (p *BackoffPolicy) jitter() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return 0.75 + p.rnd.Float64()*0.5
}
