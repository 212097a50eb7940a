package notifier

import (
	"context"
	"errors"
	"log/slog"
)

// Notifier delivers security events to the account owner. Implementations
// own formatting and transport; callers only decide when to emit.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Noop discards every event. Useful in tests and for wiring where alerting
// is handled elsewhere.
type Noop struct{}

func (Noop) Notify(ctx context.Context, event Event) error { return nil }

// Log writes events to a structured logger, which doubles as an audit trail
// in environments without an email channel.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a slog-backed notifier.
func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Notify(ctx context.Context, event Event) error {
	attrs := []any{
		slog.String("event_id", event.ID.String()),
		slog.String("event_type", string(event.Type)),
		slog.String("severity", string(event.Severity)),
		slog.String("recipient", event.Recipient),
	}
	for k, v := range event.Details {
		attrs = append(attrs, slog.String("detail_"+k, v))
	}

	switch event.Severity {
	case SeverityHigh, SeverityCritical:
		l.logger.WarnContext(ctx, "security event", attrs...)
	default:
		l.logger.InfoContext(ctx, "security event", attrs...)
	}
	return nil
}

// Multi fans an event out to several notifiers and joins their errors, so a
// failing email channel does not silence the audit log.
type Multi struct {
	notifiers []Notifier
}

// NewMulti creates a fan-out notifier.
func NewMulti(notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

func (m *Multi) Notify(ctx context.Context, event Event) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
