package ratelimit

import (
	"context"
)

// Limiter enforces a fixed attempt budget per key and window.
type Limiter struct {
	store  Store
	config Config
}

// New creates a fixed-window limiter over the given store.
func New(store Store, config Config) (*Limiter, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &Limiter{store: store, config: config}, nil
}

// Allow records an attempt for the key and reports whether it fits the
// window budget. Denied attempts are still recorded so Result.Severity can
// escalate during a sustained lockout.
func (l *Limiter) Allow(ctx context.Context, key string) (*Result, error) {
	attempts, resetAt, err := l.store.Increment(ctx, key, l.config.Window)
	if err != nil {
		return nil, err
	}

	remaining := l.config.MaxAttempts - int(attempts)
	if remaining < 0 {
		remaining = 0
	}

	return &Result{
		Limit:     l.config.MaxAttempts,
		Attempts:  attempts,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// Reset clears the window for the key. Called after a successful
// verification so honest retries do not inherit an attacker's lockout.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.store.Reset(ctx, key)
}
