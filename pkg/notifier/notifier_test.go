package notifier_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChaosClubCo/tiktok-story-ai-sub001/pkg/notifier"
)

type recordingNotifier struct {
	events []notifier.Event
	err    error
}

func (r *recordingNotifier) Notify(ctx context.Context, event notifier.Event) error {
	r.events = append(r.events, event)
	return r.err
}

func TestNewEvent(t *testing.T) {
	t.Parallel()

	event := notifier.NewEvent("user@example.com", notifier.EventTwoFAEnabled, notifier.SeverityInfo, map[string]string{"kind": "user"})

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, "user@example.com", event.Recipient)
	assert.Equal(t, notifier.EventTwoFAEnabled, event.Type)
	assert.Equal(t, notifier.SeverityInfo, event.Severity)
	assert.Equal(t, "user", event.Details["kind"])
	assert.False(t, event.OccurredAt.IsZero())
}

func TestLog_Notify(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := notifier.NewLog(slog.New(slog.NewTextHandler(&buf, nil)))

	event := notifier.NewEvent("user@example.com", notifier.EventLoginBlocked, notifier.SeverityHigh, map[string]string{"retry_after": "42"})
	require.NoError(t, log.Notify(context.Background(), event))

	out := buf.String()
	assert.Contains(t, out, "login_blocked")
	assert.Contains(t, out, "high")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "detail_retry_after=42")

	buf.Reset()
	info := notifier.NewEvent("user@example.com", notifier.EventBackupEmailAdded, notifier.SeverityMedium, nil)
	require.NoError(t, log.Notify(context.Background(), info))
	assert.Contains(t, buf.String(), "level=INFO")
}

func TestMulti_FansOut(t *testing.T) {
	t.Parallel()

	first := &recordingNotifier{}
	second := &recordingNotifier{}
	multi := notifier.NewMulti(first, second)

	event := notifier.NewEvent("user@example.com", notifier.EventTwoFADisabled, notifier.SeverityHigh, nil)
	require.NoError(t, multi.Notify(context.Background(), event))

	assert.Len(t, first.events, 1)
	assert.Len(t, second.events, 1)
}

func TestMulti_JoinsErrorsButDeliversToAll(t *testing.T) {
	t.Parallel()

	failing := &recordingNotifier{err: errors.New("smtp down")}
	healthy := &recordingNotifier{}
	multi := notifier.NewMulti(failing, healthy)

	event := notifier.NewEvent("user@example.com", notifier.EventRecoveryUsed, notifier.SeverityHigh, nil)
	err := multi.Notify(context.Background(), event)

	require.Error(t, err)
	assert.Len(t, healthy.events, 1, "failure in one channel must not silence the others")
}

func TestNoop(t *testing.T) {
	t.Parallel()

	assert.NoError(t, notifier.Noop{}.Notify(context.Background(), notifier.Event{}))
}

func TestSubject_CoversAllEventTypes(t *testing.T) {
	t.Parallel()

	eventTypes := []notifier.EventType{
		notifier.EventBackupEmailAdded,
		notifier.EventBackupEmailRemoved,
		notifier.EventSecurityQuestionsAdded,
		notifier.EventSecurityQuestionsRemoved,
		notifier.EventRecoveryUsed,
		notifier.EventLoginBlocked,
		notifier.EventTwoFAEnabled,
		notifier.EventTwoFADisabled,
		notifier.EventBackupEmailChallenge,
	}

	seen := make(map[string]struct{}, len(eventTypes))
	for _, et := range eventTypes {
		subject := notifier.Subject(et)
		assert.NotEmpty(t, subject)
		assert.NotEqual(t, notifier.Subject("unknown"), subject, "event type %s must have a dedicated subject", et)
		seen[subject] = struct{}{}
	}
	assert.Len(t, seen, len(eventTypes), "subjects must be distinct")
}

func TestNewPostmark_RequiresTokens(t *testing.T) {
	t.Parallel()

	_, err := notifier.NewPostmark(notifier.Config{})
	require.ErrorIs(t, err, notifier.ErrInvalidConfig)

	_, err = notifier.NewPostmark(notifier.Config{
		PostmarkServerToken:  "server",
		PostmarkAccountToken: "account",
	})
	require.ErrorIs(t, err, notifier.ErrInvalidConfig)

	p, err := notifier.NewPostmark(notifier.Config{
		PostmarkServerToken:  "server",
		PostmarkAccountToken: "account",
		SenderEmail:          "security@example.com",
	})
	require.NoError(t, err)
	assert.NotNil(t, p)
}
