package notifier

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies a security-relevant state change. The set of values
// is a contract with downstream alerting; adding a type is fine, renaming
// one is not.
type EventType string

const (
	EventBackupEmailAdded         EventType = "backup_email_added"
	EventBackupEmailRemoved       EventType = "backup_email_removed"
	EventSecurityQuestionsAdded   EventType = "security_questions_added"
	EventSecurityQuestionsRemoved EventType = "security_questions_removed"
	EventRecoveryUsed             EventType = "recovery_used"
	EventLoginBlocked             EventType = "login_blocked"
	EventTwoFAEnabled             EventType = "2fa_enabled"
	EventTwoFADisabled            EventType = "2fa_disabled"

	// EventBackupEmailChallenge carries a verification code to the address
	// being enrolled. It is the one event addressed to the backup channel
	// rather than the primary contact.
	EventBackupEmailChallenge EventType = "backup_email_challenge"
)

// Severity grades how urgently an event should reach a human.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Event is a single security notification addressed to the account's
// primary contact.
type Event struct {
	ID         uuid.UUID         `json:"id"`
	Recipient  string            `json:"recipient"`
	Type       EventType         `json:"type"`
	Severity   Severity          `json:"severity"`
	Details    map[string]string `json:"details,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// NewEvent builds an Event with a fresh ID and timestamp.
func NewEvent(recipient string, eventType EventType, severity Severity, details map[string]string) Event {
	return Event{
		ID:         uuid.New(),
		Recipient:  recipient,
		Type:       eventType,
		Severity:   severity,
		Details:    details,
		OccurredAt: time.Now(),
	}
}
