// Package circuit provides a consecutive-failure circuit breaker for
// outbound dependencies that fail slowly, such as an SMTP relay with a
// long dial timeout.
package circuit

import (
	"sync"
	"time"
)

// State is the breaker state.
type State int

const (
	// StateClosed admits every call.
	StateClosed State = iota
	// StateOpen fails fast, admitting one probe per cooldown period.
	StateOpen
)

const (
	defaultFailureThreshold = 5
	defaultSuccessThreshold = 3
	defaultCooldown         = 30 * time.Second
)

// Breaker trips after a run of consecutive failures and recovers after a
// run of consecutive probe successes. While open, Allow admits a single
// probe call per cooldown period so the dependency is re-checked without
// letting every caller pile onto it.
type Breaker struct {
	mu sync.Mutex

	name             string
	state            State
	failures         int
	successes        int
	failureThreshold int
	successThreshold int
	cooldown         time.Duration
	nextProbe        time.Time
	now              func() time.Time
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithFailureThreshold sets how many consecutive failures open the
// circuit. Default 5.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.failureThreshold = n
		}
	}
}

// WithSuccessThreshold sets how many consecutive probe successes close
// the circuit again. Default 3.
func WithSuccessThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.successThreshold = n
		}
	}
}

// WithCooldown sets how long the breaker waits between probes while
// open. Default 30s.
func WithCooldown(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.cooldown = d
		}
	}
}

// WithClock injects a clock for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		if now != nil {
			b.now = now
		}
	}
}

// New creates a closed breaker. The name appears in logs and metrics.
func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:             name,
		failureThreshold: defaultFailureThreshold,
		successThreshold: defaultSuccessThreshold,
		cooldown:         defaultCooldown,
		now:              time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Name returns the breaker's name.
func (b *Breaker) Name() string { return b.name }

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether a call may proceed. Closed always admits; open
// admits one probe once the cooldown has elapsed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateClosed {
		return true
	}
	now := b.now()
	if now.Before(b.nextProbe) {
		return false
	}
	b.nextProbe = now.Add(b.cooldown)
	return true
}

// RecordSuccess notes a successful call. It returns true when this
// success closed a previously open circuit.
func (b *Breaker) RecordSuccess() (closed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateClosed {
		b.failures = 0
		return false
	}

	b.successes++
	// Clear the probe gate so consecutive recovery probes run
	// back to back instead of one per cooldown.
	b.nextProbe = time.Time{}
	if b.successes < b.successThreshold {
		return false
	}
	b.state = StateClosed
	b.failures = 0
	b.successes = 0
	return true
}

// RecordFailure notes a failed call. It returns true when this failure
// tripped the circuit open.
func (b *Breaker) RecordFailure() (opened bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.successes = 0
	b.failures++

	if b.state == StateOpen {
		b.nextProbe = b.now().Add(b.cooldown)
		return false
	}
	if b.failures < b.failureThreshold {
		return false
	}
	b.state = StateOpen
	b.nextProbe = b.now().Add(b.cooldown)
	return true
}

// Reset force-closes the breaker and clears all counts.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.successes = 0
	b.nextProbe = time.Time{}
}
