// Package backoff implements the exponential-with-jitter reconnect delay
// used by the Connection Manager. It is a standalone, dependency-free
// strategy object rather than a helper buried in the connection loop so it
// can be unit tested and swapped independently.
package backoff

import (
	"math/rand"
	"sync"
	"time"
)

// Backoff produces successive reconnect delays: base * 2^attempt, capped,
// with +/- jitter applied multiplicatively, and reset back to the first
// attempt on success.
type Backoff struct {
	// Base is the delay for the first attempt, before jitter.
	Base time.Duration
	// Cap is the maximum delay any attempt may produce, before jitter.
	Cap time.Duration
	// Jitter is the fractional +/- range applied to each delay, e.g. 0.2
	// means the result is uniformly distributed in [0.8x, 1.2x].
	Jitter float64

	mu      sync.Mutex
	attempt int

	// floatFunc is overridable in tests for deterministic jitter.
	floatFunc func() float64
}

// New returns a Backoff with sensible reconnect defaults: a 1 second
// base, a 30 second cap, and 20% jitter.
func New() *Backoff {
	return &Backoff{
		Base:   time.Second,
		Cap:    30 * time.Second,
		Jitter: 0.2,
	}
}

// Next returns the delay for the next reconnect attempt and advances the
// internal attempt counter.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.attempt
	b.attempt++
	if n > 30 {
		n = 30 // guard against overflow in the shift below
	}

	d := b.Base << uint(n)
	if d <= 0 || d > b.Cap {
		d = b.Cap
	}

	ff := b.floatFunc
	if ff == nil {
		ff = rand.Float64
	}
	factor := 1 + (ff()*2-1)*b.Jitter
	result := time.Duration(float64(d) * factor)
	if result < 0 {
		result = b.Cap
	}
	return result
}

// Reset returns the sequence to its first attempt. Called after a
// successful connect.
func (b *Backoff) Reset() {
	b.mu.Lock()
	b.attempt = 0
	b.mu.Unlock()
}

// Attempt returns the number of attempts produced since the last Reset,
// mainly for diagnostics/logging.
func (b *Backoff) Attempt() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempt
}
