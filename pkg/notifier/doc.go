// Package notifier defines the security event collaborator for the
// account-trust subsystem.
//
// The trust services decide WHEN an event is worth telling the account owner
// about (a backup email was added, 2FA was disabled, a login was blocked);
// delivery and formatting are entirely the notifier's concern. Events carry
// the recipient, a typed event, a severity, and a small details map.
//
// Implementations: Noop for tests and opt-out wiring, Log for audit trails
// via slog, Postmark for transactional email, and Multi to fan out to
// several of these at once. Services treat delivery as best-effort: a failed
// send never rolls back the state change that triggered it.
package notifier
