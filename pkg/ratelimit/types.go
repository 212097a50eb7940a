package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"time"
)

// Severity grades the security event emitted when a limited identifier keeps
// retrying. The thresholds are part of the observable contract other
// components rely on for alerting.
type Severity string

const (
	SeverityMedium   Severity = "medium"   // at or under the cap
	SeverityHigh     Severity = "high"     // attempts > 10
	SeverityCritical Severity = "critical" // attempts > 20
)

// Config defines the fixed-window configuration.
type Config struct {
	MaxAttempts int           // Attempts allowed per window
	Window      time.Duration // Window length
}

func (c Config) validate() error {
	if c.MaxAttempts <= 0 {
		return ErrInvalidConfig
	}
	if c.Window <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// Store defines the interface for rate limit storage backends.
type Store interface {
	// Increment atomically bumps the fixed-window counter for the key,
	// creating or resetting the window when none is live, and returns the
	// new attempt count together with the window reset time.
	Increment(ctx context.Context, key string, window time.Duration) (attempts int64, resetAt time.Time, err error)

	// Reset clears the window for the given key.
	Reset(ctx context.Context, key string) error
}

// Result contains the result of a rate limit check.
type Result struct {
	Limit     int       // Attempts allowed per window
	Attempts  int64     // Attempts recorded in the current window, this check included
	Remaining int       // Attempts left before lockout
	ResetAt   time.Time // Time when the window rolls over
}

// Allowed reports whether this check stayed within the attempt budget.
func (r *Result) Allowed() bool {
	return r.Attempts <= int64(r.Limit)
}

// JustLimited reports whether this check is the first denied one in the
// window. Callers use it to emit the lockout security event exactly once
// instead of on every subsequent poll.
func (r *Result) JustLimited() bool {
	return r.Attempts == int64(r.Limit)+1
}

// JustEscalated reports whether this denied check entered a new severity
// tier: the first denial in the window, or the attempt that crossed the
// high or critical threshold. Callers use it to emit one lockout security
// event per tier instead of on every subsequent poll.
func (r *Result) JustEscalated() bool {
	if r.Allowed() {
		return false
	}
	return r.Attempts == int64(r.Limit)+1 || r.Attempts == 11 || r.Attempts == 21
}

// RetryAfter returns how long to wait before the window rolls over.
// Returns 0 if the check was allowed.
func (r *Result) RetryAfter() time.Duration {
	if r.Allowed() {
		return 0
	}
	return time.Until(r.ResetAt)
}

// RetryAfterSeconds returns RetryAfter rounded up to whole seconds, the only
// lockout metadata exposed to callers.
func (r *Result) RetryAfterSeconds() int {
	d := r.RetryAfter()
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

// Severity grades the escalation level for the attempt count recorded so far.
func (r *Result) Severity() Severity {
	switch {
	case r.Attempts > 20:
		return SeverityCritical
	case r.Attempts > 10:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

// maxKeyLength caps rate limit keys to keep storage keys bounded in
// backends like Redis.
const maxKeyLength = 64

// Key builds the storage key for a protected action and identifier.
// Overlong keys are hashed to 32 hex chars to stay bounded while avoiding
// collisions. Callers should mask personal identifiers (emails) first.
func Key(action, identifier string) string {
	combined := action + ":" + identifier
	if len(combined) > maxKeyLength {
		hash := sha256.Sum256([]byte(combined))
		return action + ":" + hex.EncodeToString(hash[:16])
	}
	return combined
}
