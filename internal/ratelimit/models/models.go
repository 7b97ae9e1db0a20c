// Package models defines the rate limiting domain types.
package models

import (
	"time"

	dErrors "meridian/pkg/domain-errors"
)

// Policy names. Reads get the lenient policy, writes the strict one.
const (
	PolicyRead  = "read"
	PolicyWrite = "write"
)

// Policy describes one rate limit: at most MaxRequests per identifier
// within any rolling Window.
type Policy struct {
	Name        string        `json:"name"`
	MaxRequests int           `json:"max_requests"`
	Window      time.Duration `json:"window"`
}

// NewPolicy validates the policy invariants.
func NewPolicy(name string, maxRequests int, window time.Duration) (Policy, error) {
	if name == "" {
		return Policy{}, dErrors.New(dErrors.CodeInvalidInput, "policy name cannot be empty")
	}
	if maxRequests <= 0 {
		return Policy{}, dErrors.New(dErrors.CodeInvalidInput, "max_requests must be positive")
	}
	if window <= 0 {
		return Policy{}, dErrors.New(dErrors.CodeInvalidInput, "window must be positive")
	}
	return Policy{Name: name, MaxRequests: maxRequests, Window: window}, nil
}

// WindowSeconds returns the window length in whole seconds, as exposed in
// retry hints and response headers.
func (p Policy) WindowSeconds() int {
	return int(p.Window / time.Second)
}

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
	// RetryAfter is the advisory wait in seconds, set only on denial. It
	// is the full window length: a client that waits out one complete
	// window is guaranteed a free slot regardless of when its previous
	// requests landed.
	RetryAfter int `json:"retry_after,omitempty"`
}

// Allowed returns the decision for an accepted request.
func AllowedDecision(p Policy, used int, resetAt time.Time) Decision {
	remaining := p.MaxRequests - used
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   true,
		Limit:     p.MaxRequests,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}

// DeniedDecision returns the decision for a rejected request.
func DeniedDecision(p Policy, resetAt time.Time) Decision {
	return Decision{
		Allowed:    false,
		Limit:      p.MaxRequests,
		Remaining:  0,
		ResetAt:    resetAt,
		RetryAfter: p.WindowSeconds(),
	}
}
