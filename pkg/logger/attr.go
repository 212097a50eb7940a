// Package logger provides slog attribute helpers shared by the trust
// services so log fields stay consistently named across components.
package logger

import (
	"log/slog"
	"time"
)

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Event records the security event type under the key "event".
func Event(name string) slog.Attr {
	return slog.String("event", name)
}

// Subject records the credential subject under the keys "subject_kind" and
// "subject_id".
func Subject(kind, id string) slog.Attr {
	return slog.Attr{Key: "subject", Value: slog.GroupValue(
		slog.String("kind", kind),
		slog.String("id", id),
	)}
}

// Recipient records a masked notification recipient under the key "recipient".
func Recipient(masked string) slog.Attr {
	return slog.String("recipient", masked)
}

// Attempts records a rate-limit attempt count under the key "attempts".
func Attempts(n int64) slog.Attr {
	return slog.Int64("attempts", n)
}

// RetryAfter records a lockout duration under the key "retry_after".
func RetryAfter(d time.Duration) slog.Attr {
	return slog.Duration("retry_after", d)
}
