// Package ratelimit bounds failed authentication attempts per principal
// over a sliding window.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/dmitrijs2005/urbanquest/internal/clock"
)

const (
	DefaultMaxAttempts = 5
	DefaultWindow      = 300 * time.Second
)

// Limiter tracks failure timestamps per principal. Entries older than
// the window are pruned lazily by Check and eagerly by Sweep.
type Limiter struct {
	mu          sync.Mutex
	attempts    map[string][]time.Time
	maxAttempts int
	window      time.Duration
	clock       clock.Clock
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithMaxAttempts sets how many failures inside the window block the
// principal. Values below 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(l *Limiter) {
		if n >= 1 {
			l.maxAttempts = n
		}
	}
}

// WithWindow sets the trailing window. Non-positive values are ignored.
func WithWindow(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.window = d
		}
	}
}

// WithClock replaces the time source.
func WithClock(c clock.Clock) Option {
	return func(l *Limiter) {
		l.clock = c
	}
}

func New(opts ...Option) *Limiter {
	l := &Limiter{
		attempts:    make(map[string][]time.Time),
		maxAttempts: DefaultMaxAttempts,
		window:      DefaultWindow,
		clock:       clock.Real(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check reports whether principal may attempt to authenticate. When it
// may not, reason says how long to wait.
func (l *Limiter) Check(principal string) (allowed bool, reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	live := l.pruneLocked(principal, now)
	if len(live) < l.maxAttempts {
		return true, ""
	}

	// The count falls below the limit once the entry at len-max expires.
	expires := live[len(live)-l.maxAttempts].Add(l.window)
	wait := int(math.Ceil(expires.Sub(now).Seconds()))
	if wait < 1 {
		wait = 1
	}
	return false, fmt.Sprintf("too many attempts, try again in %d seconds", wait)
}

// RecordFailure appends a failed attempt for principal.
func (l *Limiter) RecordFailure(principal string) {
	l.mu.Lock()
	l.attempts[principal] = append(l.attempts[principal], l.clock.Now())
	l.mu.Unlock()
}

// Clear forgets every attempt for principal.
func (l *Limiter) Clear(principal string) {
	l.mu.Lock()
	delete(l.attempts, principal)
	l.mu.Unlock()
}

// Attempts returns the number of failures for principal still inside
// the window.
func (l *Limiter) Attempts(principal string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pruneLocked(principal, l.clock.Now()))
}

// Tracked returns how many principals currently have entries, expired
// or not.
func (l *Limiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.attempts)
}

// Sweep prunes every principal and returns how many were dropped.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	removed := 0
	for principal := range l.attempts {
		if len(l.pruneLocked(principal, now)) == 0 {
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is done. onSweep, if not nil,
// receives the number of principals dropped by each pass.
func (l *Limiter) Run(ctx context.Context, interval time.Duration, onSweep func(removed int)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := l.Sweep()
			if onSweep != nil {
				onSweep(n)
			}
		}
	}
}

// pruneLocked drops expired entries for principal, deleting the key
// when nothing is left, and returns what remains.
func (l *Limiter) pruneLocked(principal string, now time.Time) []time.Time {
	entries, ok := l.attempts[principal]
	if !ok {
		return nil
	}

	live := entries[:0]
	for _, at := range entries {
		if now.Sub(at) < l.window {
			live = append(live, at)
		}
	}
	if len(live) == 0 {
		delete(l.attempts, principal)
		return nil
	}
	l.attempts[principal] = live
	return live
}
