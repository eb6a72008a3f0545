// Package resilience provides reliability patterns for calls to the model
// gateway and other external services.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned for calls rejected while the circuit is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

func (s state) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// Breaker implements a circuit breaker for protecting external calls.
// It tracks consecutive failures and opens the circuit when a threshold is
// reached, rejecting further calls until a cool-down elapses. After the
// cool-down exactly one probe call is let through; its outcome decides
// between closing the circuit and another cool-down round. A consultation
// fans out into several gateway calls, so tripping early keeps a dead
// upstream from burning the whole role roster.
type Breaker struct {
	mu          sync.Mutex
	state       state
	failures    int
	probing     bool
	maxFailures int
	timeout     time.Duration
	openedAt    time.Time
	now         func() time.Time // clock, swapped in tests
}

// NewBreaker returns a closed breaker that trips after maxFailures
// consecutive failures and cools down for timeout before probing.
func NewBreaker(maxFailures int, timeout time.Duration) *Breaker {
	return &Breaker{
		maxFailures: maxFailures,
		timeout:     timeout,
		now:         time.Now,
	}
}

// State reports the current breaker state as closed, open or half_open.
func (b *Breaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.String()
}

// Execute runs fn unless the circuit is open or another probe is already in
// flight. Rejected calls fail with ErrCircuitOpen without invoking fn.
func (b *Breaker) Execute(fn func() error) error {
	if !b.allowRequest() {
		return ErrCircuitOpen
	}

	err := fn()
	b.settle(err)
	return err
}

func (b *Breaker) allowRequest() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateOpen:
		if b.now().Sub(b.openedAt) < b.timeout {
			return false
		}
		b.state = stateHalfOpen
		b.probing = true
		slog.Debug("circuit breaker probing after cool-down")
		return true
	case stateHalfOpen:
		// One probe at a time; everyone else keeps getting rejected
		// until the probe settles.
		if b.probing {
			return false
		}
		b.probing = true
		return true
	default:
		return true
	}
}

// settle records the outcome of an allowed call and moves the breaker.
func (b *Breaker) settle(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	wasProbe := b.state == stateHalfOpen
	b.probing = false

	if err != nil {
		b.failures++
		if wasProbe || b.failures >= b.maxFailures {
			if b.state != stateOpen {
				slog.Warn("circuit breaker opened",
					"failures", b.failures, "cooldown", b.timeout)
			}
			b.state = stateOpen
			b.openedAt = b.now()
		}
		return
	}

	if b.state != stateClosed {
		slog.Info("circuit breaker closed")
	}
	b.failures = 0
	b.state = stateClosed
}
