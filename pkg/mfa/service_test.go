package mfa_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChaosClubCo/tiktok-story-ai-sub001/pkg/mfa"
	"github.com/ChaosClubCo/tiktok-story-ai-sub001/pkg/notifier"
	"github.com/ChaosClubCo/tiktok-story-ai-sub001/pkg/otp"
	"github.com/ChaosClubCo/tiktok-story-ai-sub001/pkg/ratelimit"
	"github.com/ChaosClubCo/tiktok-story-ai-sub001/pkg/vault"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifier.Event
}

func (r *recordingNotifier) Notify(ctx context.Context, event notifier.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingNotifier) ofType(t notifier.EventType) []notifier.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notifier.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type staticDirectory map[string]string

func (d staticDirectory) PrimaryEmail(ctx context.Context, kind mfa.SubjectKind, subjectID string) (string, error) {
	return d[string(kind)+":"+subjectID], nil
}

func newTestService(t *testing.T, opts ...mfa.Option) (*mfa.Service, *recordingNotifier) {
	t.Helper()

	key, err := vault.GenerateKey()
	require.NoError(t, err)
	v, err := vault.New(key)
	require.NoError(t, err)

	events := &recordingNotifier{}
	base := []mfa.Option{
		mfa.WithNotifier(events),
		mfa.WithDirectory(staticDirectory{"user:alice": "alice@example.com"}),
	}
	svc := mfa.NewService(mfa.NewMemoryStorage(), v, "StoryAI", append(base, opts...)...)
	return svc, events
}

// totpFor computes the code an authenticator app would show at the given time.
func totpFor(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := otp.GenerateTOTPAt(secret, at)
	require.NoError(t, err)
	return code
}

func TestSetup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, _ := newTestService(t)

	resp, err := svc.Setup(ctx, mfa.KindUser, "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Secret)
	assert.Contains(t, resp.URI, "otpauth://totp/")
	assert.Contains(t, resp.URI, "StoryAI")
	assert.Contains(t, resp.URI, "alice@example.com")
	assert.True(t, strings.HasPrefix(resp.QRCode, "data:image/png;base64,"))
	assert.Len(t, resp.BackupCodes, otp.DefaultBackupCodeCount)

	status, err := svc.Status(ctx, mfa.KindUser, "alice")
	require.NoError(t, err)
	assert.False(t, status.Enabled)
	assert.True(t, status.Pending)
	assert.Equal(t, otp.DefaultBackupCodeCount, status.RemainingBackupCodes)
}

func TestSetup_OverwritesPending(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, _ := newTestService(t)

	first, err := svc.Setup(ctx, mfa.KindUser, "alice")
	require.NoError(t, err)
	second, err := svc.Setup(ctx, mfa.KindUser, "alice")
	require.NoError(t, err)
	assert.NotEqual(t, first.Secret, second.Secret)

	// The first secret no longer activates anything.
	err = svc.VerifySetup(ctx, mfa.KindUser, "alice", totpFor(t, first.Secret, time.Now()))
	assert.ErrorIs(t, err, mfa.ErrMismatch)
}

func TestSetup_AlreadyEnabled(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, _ := newTestService(t)

	resp, err := svc.Setup(ctx, mfa.KindUser, "alice")
	require.NoError(t, err)
	require.NoError(t, svc.VerifySetup(ctx, mfa.KindUser, "alice", totpFor(t, resp.Secret, time.Now())))

	_, err = svc.Setup(ctx, mfa.KindUser, "alice")
	assert.ErrorIs(t, err, mfa.ErrAlreadyEnabled)
}

func TestSetup_InvalidSubject(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, _ := newTestService(t)

	_, err := svc.Setup(ctx, mfa.SubjectKind("service"), "alice")
	assert.ErrorIs(t, err, mfa.ErrInvalidSubject)

	_, err = svc.Setup(ctx, mfa.KindUser, "")
	assert.ErrorIs(t, err, mfa.ErrInvalidSubject)
}

func TestVerifySetup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, events := newTestService(t)

	resp, err := svc.Setup(ctx, mfa.KindUser, "alice")
	require.NoError(t, err)

	require.NoError(t, svc.VerifySetup(ctx, mfa.KindUser, "alice", totpFor(t, resp.Secret, time.Now())))

	status, err := svc.Status(ctx, mfa.KindUser, "alice")
	require.NoError(t, err)
	assert.True(t, status.Enabled)
	assert.False(t, status.Pending)
	require.NotNil(t, status.VerifiedAt)

	enabled := events.ofType(notifier.EventTwoFAEnabled)
	require.Len(t, enabled, 1)
	assert.Equal(t, "alice@example.com", enabled[0].Recipient)
}

func TestVerifySetup_WrongCode(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, events := newTestService(t)

	_, err := svc.Setup(ctx, mfa.KindUser, "alice")
	require.NoError(t, err)

	err = svc.VerifySetup(ctx, mfa.KindUser, "alice", "000000")
	assert.ErrorIs(t, err, mfa.ErrMismatch)
	assert.Empty(t, events.ofType(notifier.EventTwoFAEnabled))
}

func TestVerifySetup_NoPendingCredential(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, _ := newTestService(t)

	err := svc.VerifySetup(ctx, mfa.KindUser, "alice", "123456")
	assert.ErrorIs(t, err, mfa.ErrNotFound)
}

func TestVerify_PendingCredentialIsInvisible(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, _ := newTestService(t)

	resp, err := svc.Setup(ctx, mfa.KindUser, "alice")
	require.NoError(t, err)

	// Even the correct code is rejected until VerifySetup activates the
	// credential, so unverified secrets open no back door.
	_, err = svc.Verify(ctx, mfa.KindUser, "alice", totpFor(t, resp.Secret, time.Now()))
	assert.ErrorIs(t, err, mfa.ErrNotFound)
}

func enroll(t *testing.T, svc *mfa.Service) *mfa.SetupResponse {
	t.Helper()
	ctx := context.Background()

	resp, err := svc.Setup(ctx, mfa.KindUser, "alice")
	require.NoError(t, err)
	require.NoError(t, svc.VerifySetup(ctx, mfa.KindUser, "alice", totpFor(t, resp.Secret, time.Now())))
	return resp
}

func TestVerify_TOTP(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, _ := newTestService(t)
	resp := enroll(t, svc)

	verification, err := svc.Verify(ctx, mfa.KindUser, "alice", totpFor(t, resp.Secret, time.Now()))
	require.NoError(t, err)
	assert.False(t, verification.BackupCodeUsed)
	assert.Equal(t, otp.DefaultBackupCodeCount, verification.RemainingBackupCodes)

	status, err := svc.Status(ctx, mfa.KindUser, "alice")
	require.NoError(t, err)
	assert.NotNil(t, status.LastUsedAt)
}

func TestVerify_WrongCode(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, _ := newTestService(t)
	enroll(t, svc)

	_, err := svc.Verify(ctx, mfa.KindUser, "alice", "000000")
	assert.ErrorIs(t, err, mfa.ErrMismatch)
}

func TestVerify_InvalidFormat(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, _ := newTestService(t)
	enroll(t, svc)

	for _, code := range []string{"", "12345", "abcdef", "1234567"} {
		_, err := svc.Verify(ctx, mfa.KindUser, "alice", code)
		assert.ErrorIs(t, err, mfa.ErrInvalidFormat, "code %q", code)
	}
}

func TestVerify_BackupCode(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, events := newTestService(t)
	resp := enroll(t, svc)

	code := resp.BackupCodes[3]
	verification, err := svc.Verify(ctx, mfa.KindUser, "alice", code)
	require.NoError(t, err)
	assert.True(t, verification.BackupCodeUsed)
	assert.Equal(t, otp.DefaultBackupCodeCount-1, verification.RemainingBackupCodes)

	used := events.ofType(notifier.EventRecoveryUsed)
	require.Len(t, used, 1)
	assert.Equal(t, "backup_code", used[0].Details["method"])

	// Single use: the same code never redeems twice.
	_, err = svc.Verify(ctx, mfa.KindUser, "alice", code)
	assert.ErrorIs(t, err, mfa.ErrMismatch)
}

func TestVerify_RateLimited(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	limiter, err := ratelimit.New(ratelimit.NewMemoryStore(), ratelimit.Config{MaxAttempts: 3, Window: time.Minute})
	require.NoError(t, err)

	svc, events := newTestService(t, mfa.WithLimiter(limiter))
	enroll(t, svc)

	for i := 0; i < 3; i++ {
		_, err := svc.Verify(ctx, mfa.KindUser, "alice", "000000")
		assert.ErrorIs(t, err, mfa.ErrMismatch)
	}

	_, err = svc.Verify(ctx, mfa.KindUser, "alice", "000000")
	assert.ErrorIs(t, err, mfa.ErrRateLimited)

	blocked := events.ofType(notifier.EventLoginBlocked)
	require.Len(t, blocked, 1)
	assert.Equal(t, notifier.SeverityMedium, blocked[0].Severity)

	// Subsequent polls inside the same lockout stay silent.
	_, err = svc.Verify(ctx, mfa.KindUser, "alice", "000000")
	assert.ErrorIs(t, err, mfa.ErrRateLimited)
	assert.Len(t, events.ofType(notifier.EventLoginBlocked), 1)
}

func TestVerify_RateLimitSeverityEscalates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	limiter, err := ratelimit.New(ratelimit.NewMemoryStore(), ratelimit.Config{MaxAttempts: 3, Window: time.Hour})
	require.NoError(t, err)

	svc, events := newTestService(t, mfa.WithLimiter(limiter))
	enroll(t, svc)

	for i := 0; i < 3; i++ {
		_, err := svc.Verify(ctx, mfa.KindUser, "alice", "000000")
		assert.ErrorIs(t, err, mfa.ErrMismatch)
	}

	// Hammering a locked window keeps counting, so the account owner is
	// told again when the attempt count crosses the high and critical
	// thresholds.
	for attempt := 4; attempt <= 25; attempt++ {
		_, err := svc.Verify(ctx, mfa.KindUser, "alice", "000000")
		assert.ErrorIs(t, err, mfa.ErrRateLimited, "attempt %d", attempt)

		switch attempt {
		case 10:
			blocked := events.ofType(notifier.EventLoginBlocked)
			require.Len(t, blocked, 1)
			assert.Equal(t, notifier.SeverityMedium, blocked[0].Severity)
		case 11:
			blocked := events.ofType(notifier.EventLoginBlocked)
			require.Len(t, blocked, 2)
			assert.Equal(t, notifier.SeverityHigh, blocked[1].Severity)
		case 21:
			blocked := events.ofType(notifier.EventLoginBlocked)
			require.Len(t, blocked, 3)
			assert.Equal(t, notifier.SeverityCritical, blocked[2].Severity)
		}
	}

	assert.Len(t, events.ofType(notifier.EventLoginBlocked), 3)
}

func TestVerify_SuccessResetsLimit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	limiter, err := ratelimit.New(ratelimit.NewMemoryStore(), ratelimit.Config{MaxAttempts: 3, Window: time.Minute})
	require.NoError(t, err)

	svc, _ := newTestService(t, mfa.WithLimiter(limiter))
	resp := enroll(t, svc)

	for i := 0; i < 2; i++ {
		_, err := svc.Verify(ctx, mfa.KindUser, "alice", "000000")
		assert.ErrorIs(t, err, mfa.ErrMismatch)
	}
	_, err = svc.Verify(ctx, mfa.KindUser, "alice", totpFor(t, resp.Secret, time.Now()))
	require.NoError(t, err)

	// The window restarted, so the full budget is back.
	for i := 0; i < 3; i++ {
		_, err := svc.Verify(ctx, mfa.KindUser, "alice", "000000")
		assert.ErrorIs(t, err, mfa.ErrMismatch)
	}
}

func TestStatus_AbsentCredential(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, _ := newTestService(t)

	status, err := svc.Status(ctx, mfa.KindUser, "alice")
	require.NoError(t, err)
	assert.False(t, status.Enabled)
	assert.False(t, status.Pending)
	assert.Zero(t, status.RemainingBackupCodes)
}

func TestDisable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, events := newTestService(t)
	resp := enroll(t, svc)

	require.NoError(t, svc.Disable(ctx, mfa.KindUser, "alice", totpFor(t, resp.Secret, time.Now())))

	status, err := svc.Status(ctx, mfa.KindUser, "alice")
	require.NoError(t, err)
	assert.False(t, status.Enabled)
	assert.False(t, status.Pending)

	disabled := events.ofType(notifier.EventTwoFADisabled)
	require.Len(t, disabled, 1)
	assert.Equal(t, notifier.SeverityHigh, disabled[0].Severity)

	// Nothing left to disable.
	err = svc.Disable(ctx, mfa.KindUser, "alice", totpFor(t, resp.Secret, time.Now()))
	assert.ErrorIs(t, err, mfa.ErrNotFound)
}

func TestDisable_WrongCode(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, _ := newTestService(t)
	enroll(t, svc)

	err := svc.Disable(ctx, mfa.KindUser, "alice", "000000")
	assert.ErrorIs(t, err, mfa.ErrMismatch)

	status, err := svc.Status(ctx, mfa.KindUser, "alice")
	require.NoError(t, err)
	assert.True(t, status.Enabled)
}

func TestDisable_AcceptsBackupCode(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, _ := newTestService(t)
	resp := enroll(t, svc)

	require.NoError(t, svc.Disable(ctx, mfa.KindUser, "alice", resp.BackupCodes[0]))
}

func TestRegenerateBackupCodes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, _ := newTestService(t)
	resp := enroll(t, svc)

	oldCode := resp.BackupCodes[0]
	fresh, err := svc.RegenerateBackupCodes(ctx, mfa.KindUser, "alice", totpFor(t, resp.Secret, time.Now()))
	require.NoError(t, err)
	assert.Len(t, fresh, otp.DefaultBackupCodeCount)
	assert.NotContains(t, fresh, oldCode)

	_, err = svc.Verify(ctx, mfa.KindUser, "alice", oldCode)
	assert.ErrorIs(t, err, mfa.ErrMismatch)

	verification, err := svc.Verify(ctx, mfa.KindUser, "alice", fresh[0])
	require.NoError(t, err)
	assert.True(t, verification.BackupCodeUsed)
}
