// Package breaker implements the three-state circuit breaker (spec
// component C4) that isolates faults in the enricher harness. One breaker
// instance is shared by all concurrent callers of a given enricher.
package breaker

import (
	"context"
	"sync"
	"time"

	errs "github.com/rivergate/mediareef/internal/pkg/errors"
)

// State is the breaker's current lifecycle state.
type State string

const (
	Closed   State = "closed"
	Open     State = "open"
	HalfOpen State = "half_open"
)

// Config holds the three tunables named in spec §4.4.
type Config struct {
	FailureThreshold        int           // consecutive failures before tripping
	OpenTimeout             time.Duration // how long Open lasts before a probe is allowed
	HalfOpenSuccessThreshold int          // consecutive HalfOpen successes required to close
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 30 * time.Second
	}
	if c.HalfOpenSuccessThreshold <= 0 {
		c.HalfOpenSuccessThreshold = 1
	}
	return c
}

// Breaker is a thread-safe circuit breaker for one enricher.
type Breaker struct {
	name string
	cfg  Config

	mu               sync.Mutex
	state            State
	consecutiveFails int
	halfOpenSuccess  int
	halfOpenInFlight bool
	reopenAt         time.Time
}

// New constructs a Breaker in the Closed state for the named enricher.
func New(name string, cfg Config) *Breaker {
	return &Breaker{name: name, cfg: cfg.withDefaults(), state: Closed}
}

// State returns the breaker's current state (for observability/tests).
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeTransitionToHalfOpenLocked()
	return b.state
}

// maybeTransitionToHalfOpenLocked moves Open -> HalfOpen once the reopen
// deadline has passed. Must be called with b.mu held.
func (b *Breaker) maybeTransitionToHalfOpenLocked() {
	if b.state == Open && !b.reopenAt.IsZero() && !time.Now().Before(b.reopenAt) {
		b.state = HalfOpen
		b.halfOpenSuccess = 0
		b.halfOpenInFlight = false
	}
}

// admit decides whether a call may proceed, returning an error if not. In
// HalfOpen, only a single in-flight probe is permitted at a time; additional
// concurrent callers are refused until the probe resolves.
func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeTransitionToHalfOpenLocked()

	switch b.state {
	case Closed:
		return nil
	case HalfOpen:
		if b.halfOpenInFlight {
			return &errs.BreakerOpen{Enricher: b.name}
		}
		b.halfOpenInFlight = true
		return nil
	default: // Open
		return &errs.BreakerOpen{Enricher: b.name}
	}
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case HalfOpen:
		b.halfOpenInFlight = false
		b.halfOpenSuccess++
		if b.halfOpenSuccess >= b.cfg.HalfOpenSuccessThreshold {
			b.state = Closed
			b.consecutiveFails = 0
			b.halfOpenSuccess = 0
		}
	case Closed:
		b.consecutiveFails = 0
	}
}

func (b *Breaker) onFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case HalfOpen:
		b.halfOpenInFlight = false
		b.trip()
	case Closed:
		b.consecutiveFails++
		if b.consecutiveFails >= b.cfg.FailureThreshold {
			b.trip()
		}
	}
}

// trip moves the breaker to Open with a fresh reopen deadline. Must be
// called with b.mu held.
func (b *Breaker) trip() {
	b.state = Open
	b.reopenAt = time.Now().Add(b.cfg.OpenTimeout)
	b.consecutiveFails = 0
	b.halfOpenSuccess = 0
}

// Invoke runs op through the breaker. While Open, it fails fast with
// *errs.BreakerOpen without calling op. In HalfOpen, exactly one caller's op
// is permitted to probe the downstream at a time.
func (b *Breaker) Invoke(ctx context.Context, op func(context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := op(ctx)
	if err != nil {
		b.onFailure()
		return err
	}
	b.onSuccess()
	return nil
}
