package domain

import (
	"errors"
	"time"
)

// Retry-policy-specific validation errors
var (
	// ErrPolicyTimeoutNegative is returned when a policy timeout is negative.
	ErrPolicyTimeoutNegative = errors.New("retry policy timeout cannot be negative")

	// ErrPolicyMaxRetriesNegative is returned when a policy retry budget is negative.
	ErrPolicyMaxRetriesNegative = errors.New("retry policy max retries cannot be negative")

	// ErrPolicyBackoffBaseNegative is returned when a policy backoff base is negative.
	ErrPolicyBackoffBaseNegative = errors.New("retry policy backoff base cannot be negative")

	// ErrPolicyBackoffMaxNegative is returned when a policy backoff cap is negative.
	ErrPolicyBackoffMaxNegative = errors.New("retry policy backoff cap cannot be negative")
)

// RetryPolicy overrides the queue-wide execution defaults for one task name.
// Durations are stored as seconds so the persisted form stays a plain JSON
// object. Absent fields fall back to the queue defaults. MaxRetries is a
// pointer because an explicit zero means the first failure is terminal.
type RetryPolicy struct {
	Timeout     float64 `json:"timeout,omitempty"`
	MaxRetries  *int    `json:"max_retries,omitempty"`
	BackoffBase float64 `json:"backoff_base,omitempty"`
	BackoffMax  float64 `json:"backoff_max,omitempty"`
}

// Validate checks if the RetryPolicy has valid data.
// Returns an error if any field fails validation.
func (p *RetryPolicy) Validate() error {
	if p.Timeout < 0 {
		return ErrPolicyTimeoutNegative
	}

	if p.MaxRetries != nil && *p.MaxRetries < 0 {
		return ErrPolicyMaxRetriesNegative
	}

	if p.BackoffBase < 0 {
		return ErrPolicyBackoffBaseNegative
	}

	if p.BackoffMax < 0 {
		return ErrPolicyBackoffMaxNegative
	}

	return nil
}

// The Effective* accessors are nil-receiver safe so callers can apply a
// missing policy without a guard.

// EffectiveTimeout returns the per-attempt execution deadline, falling back
// to the queue default when the policy does not set one.
func (p *RetryPolicy) EffectiveTimeout(fallback time.Duration) time.Duration {
	if p == nil || p.Timeout <= 0 {
		return fallback
	}
	return time.Duration(p.Timeout * float64(time.Second))
}

// EffectiveMaxRetries returns the retry budget, falling back to the
// envelope's own budget when the policy does not set one. An explicit zero
// is honored: the first failure dead-letters the task.
func (p *RetryPolicy) EffectiveMaxRetries(fallback int) int {
	if p == nil || p.MaxRetries == nil {
		return fallback
	}
	return *p.MaxRetries
}

// EffectiveBackoffBase returns the exponential backoff base, falling back
// to the queue default when the policy does not set one.
func (p *RetryPolicy) EffectiveBackoffBase(fallback float64) float64 {
	if p == nil || p.BackoffBase <= 0 {
		return fallback
	}
	return p.BackoffBase
}

// EffectiveBackoffMax returns the backoff cap, falling back to the queue
// default when the policy does not set one.
func (p *RetryPolicy) EffectiveBackoffMax(fallback time.Duration) time.Duration {
	if p == nil || p.BackoffMax <= 0 {
		return fallback
	}
	return time.Duration(p.BackoffMax * float64(time.Second))
}
