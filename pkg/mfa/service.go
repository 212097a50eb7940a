package mfa

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/ChaosClubCo/tiktok-story-ai-sub001/pkg/logger"
	"github.com/ChaosClubCo/tiktok-story-ai-sub001/pkg/notifier"
	"github.com/ChaosClubCo/tiktok-story-ai-sub001/pkg/otp"
	"github.com/ChaosClubCo/tiktok-story-ai-sub001/pkg/qrcode"
	"github.com/ChaosClubCo/tiktok-story-ai-sub001/pkg/ratelimit"
	"github.com/ChaosClubCo/tiktok-story-ai-sub001/pkg/vault"
)

// actionVerify is the rate-limiter action shared by every code check in this
// package, so login, disable, and regenerate attempts draw from one budget.
const actionVerify = "2fa_verify"

const qrSize = 256

// Service implements the caller-facing second-factor operations.
type Service struct {
	storage   Storage
	vault     *vault.Vault
	issuer    string
	directory Directory
	notifier  notifier.Notifier
	limiter   *ratelimit.Limiter
	logger    *slog.Logger

	driftWindow     int
	backupCodeCount int
	now             func() time.Time
}

type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		s.logger = log
	}
}

// WithNotifier sets the security event notifier.
func WithNotifier(n notifier.Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithDirectory sets the primary-contact resolver used for event recipients.
func WithDirectory(d Directory) Option {
	return func(s *Service) {
		s.directory = d
	}
}

// WithLimiter sets the rate limiter guarding code verification. Without one,
// verification attempts are not throttled.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(s *Service) {
		s.limiter = l
	}
}

// WithDriftWindow sets how many 30-second steps of clock skew to tolerate in
// each direction.
func WithDriftWindow(window int) Option {
	return func(s *Service) {
		s.driftWindow = window
	}
}

// WithBackupCodeCount sets how many backup codes are issued per enrollment.
func WithBackupCodeCount(count int) Option {
	return func(s *Service) {
		s.backupCodeCount = count
	}
}

// WithClock overrides the time source, used in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a second-factor service. The issuer appears in
// provisioning URIs shown by authenticator apps.
func NewService(storage Storage, v *vault.Vault, issuer string, opts ...Option) *Service {
	s := &Service{
		storage:         storage,
		vault:           v,
		issuer:          issuer,
		notifier:        notifier.Noop{},
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		driftWindow:     otp.DefaultWindow,
		backupCodeCount: otp.DefaultBackupCodeCount,
		now:             time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Setup issues a fresh pending credential for the subject, overwriting any
// prior pending one. It fails with ErrAlreadyEnabled when an active
// credential exists; that one must be disabled first.
func (s *Service) Setup(ctx context.Context, kind SubjectKind, subjectID string) (*SetupResponse, error) {
	if err := validSubject(kind, subjectID); err != nil {
		return nil, err
	}

	existing, err := s.storage.GetCredential(ctx, kind, subjectID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing credential: %w", err)
	}
	if existing != nil && existing.Enabled {
		return nil, ErrAlreadyEnabled
	}

	secret, err := otp.GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("failed to generate secret: %w", err)
	}
	backupCodes, err := otp.GenerateBackupCodes(s.backupCodeCount)
	if err != nil {
		return nil, fmt.Errorf("failed to generate backup codes: %w", err)
	}

	secretBlob, err := s.vault.Obfuscate(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to protect secret: %w", err)
	}
	codesBlob, err := s.vault.ObfuscateList(backupCodes)
	if err != nil {
		return nil, fmt.Errorf("failed to protect backup codes: %w", err)
	}

	cred := &Credential{
		Kind:        kind,
		SubjectID:   subjectID,
		Secret:      secretBlob,
		BackupCodes: codesBlob,
		Enabled:     false,
	}
	if err := s.storage.PutCredential(ctx, cred); err != nil {
		return nil, fmt.Errorf("failed to store credential: %w", err)
	}

	uri, err := otp.ProvisioningURI(otp.Params{
		Secret:      secret,
		AccountName: s.accountName(ctx, kind, subjectID),
		Issuer:      s.issuer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build provisioning URI: %w", err)
	}

	qr, err := qrcode.DataURI(uri, qrSize)
	if err != nil {
		return nil, fmt.Errorf("failed to render QR code: %w", err)
	}

	s.logger.InfoContext(ctx, "2fa setup issued",
		logger.Component("mfa"),
		logger.Subject(string(kind), subjectID),
	)

	return &SetupResponse{
		Secret:      secret,
		URI:         uri,
		QRCode:      qr,
		BackupCodes: backupCodes,
	}, nil
}

// VerifySetup activates a pending credential on its first correct TOTP code.
func (s *Service) VerifySetup(ctx context.Context, kind SubjectKind, subjectID, code string) error {
	if err := validSubject(kind, subjectID); err != nil {
		return err
	}

	limitKey := ratelimit.Key(actionVerify, string(kind)+":"+subjectID)
	if err := s.allow(ctx, kind, subjectID, limitKey); err != nil {
		return err
	}

	cred, err := s.storage.GetCredential(ctx, kind, subjectID)
	if err != nil {
		return err
	}
	if cred.Enabled {
		return ErrAlreadyEnabled
	}

	ok, err := s.verifyTOTP(cred, code)
	if err != nil {
		return err
	}
	if !ok {
		return ErrMismatch
	}

	s.resetLimit(ctx, limitKey)

	now := s.now()
	cred.Enabled = true
	cred.VerifiedAt = &now
	cred.LastUsedAt = &now
	if err := s.storage.UpdateCredential(ctx, cred); err != nil {
		return err
	}

	s.notify(ctx, kind, subjectID, notifier.EventTwoFAEnabled, notifier.SeverityInfo, nil)
	s.logger.InfoContext(ctx, "2fa enabled",
		logger.Component("mfa"),
		logger.Subject(string(kind), subjectID),
	)
	return nil
}

// Verify checks a TOTP code or a one-time backup code against the subject's
// active credential. Pending credentials are invisible here; activation goes
// through VerifySetup only. Every call, allowed or not, counts against the
// rate-limit window, and each severity tier crossed while locked emits one
// login_blocked event.
func (s *Service) Verify(ctx context.Context, kind SubjectKind, subjectID, code string) (*Verification, error) {
	if err := validSubject(kind, subjectID); err != nil {
		return nil, err
	}

	limitKey := ratelimit.Key(actionVerify, string(kind)+":"+subjectID)
	if err := s.allow(ctx, kind, subjectID, limitKey); err != nil {
		return nil, err
	}

	cred, err := s.storage.GetCredential(ctx, kind, subjectID)
	if err != nil {
		return nil, err
	}
	if !cred.Enabled {
		return nil, ErrNotFound
	}

	var verification *Verification
	switch {
	case otp.ValidBackupCodeFormat(code):
		verification, err = s.redeemBackup(ctx, cred, code)
	default:
		var ok bool
		ok, err = s.verifyTOTP(cred, code)
		if err == nil && !ok {
			err = ErrMismatch
		}
		if err == nil {
			now := s.now()
			cred.LastUsedAt = &now
			if updateErr := s.storage.UpdateCredential(ctx, cred); updateErr != nil {
				s.logger.WarnContext(ctx, "failed to record code use",
					logger.Component("mfa"),
					logger.Subject(string(kind), subjectID),
					logger.Error(updateErr),
				)
			}
			remaining, revealErr := s.vault.RevealList(cred.BackupCodes)
			if revealErr != nil {
				return nil, fmt.Errorf("failed to read backup codes: %w", revealErr)
			}
			verification = &Verification{RemainingBackupCodes: len(remaining)}
		}
	}
	if err != nil {
		return nil, err
	}

	s.resetLimit(ctx, limitKey)
	return verification, nil
}

// Status reports the subject's enrollment state. An absent credential is not
// an error, it reports as neither enabled nor pending.
func (s *Service) Status(ctx context.Context, kind SubjectKind, subjectID string) (*Status, error) {
	if err := validSubject(kind, subjectID); err != nil {
		return nil, err
	}

	cred, err := s.storage.GetCredential(ctx, kind, subjectID)
	if errors.Is(err, ErrNotFound) {
		return &Status{}, nil
	}
	if err != nil {
		return nil, err
	}

	codes, err := s.vault.RevealList(cred.BackupCodes)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup codes: %w", err)
	}

	return &Status{
		Enabled:              cred.Enabled,
		Pending:              !cred.Enabled,
		VerifiedAt:           cred.VerifiedAt,
		LastUsedAt:           cred.LastUsedAt,
		RemainingBackupCodes: len(codes),
	}, nil
}

// Disable deletes the credential after one more successful code check. No
// disabled-but-retained state exists; re-enrollment starts from Setup.
func (s *Service) Disable(ctx context.Context, kind SubjectKind, subjectID, code string) error {
	if _, err := s.Verify(ctx, kind, subjectID, code); err != nil {
		return err
	}

	cred, err := s.storage.GetCredential(ctx, kind, subjectID)
	if err != nil {
		return err
	}
	if err := s.storage.DeleteCredential(ctx, kind, subjectID, cred.Version); err != nil {
		return err
	}

	s.notify(ctx, kind, subjectID, notifier.EventTwoFADisabled, notifier.SeverityHigh, nil)
	s.logger.InfoContext(ctx, "2fa disabled",
		logger.Component("mfa"),
		logger.Subject(string(kind), subjectID),
	)
	return nil
}

// RegenerateBackupCodes replaces the stored backup codes after a successful
// code check and returns the new plaintext codes, shown once.
func (s *Service) RegenerateBackupCodes(ctx context.Context, kind SubjectKind, subjectID, code string) ([]string, error) {
	if _, err := s.Verify(ctx, kind, subjectID, code); err != nil {
		return nil, err
	}

	cred, err := s.storage.GetCredential(ctx, kind, subjectID)
	if err != nil {
		return nil, err
	}

	backupCodes, err := otp.GenerateBackupCodes(s.backupCodeCount)
	if err != nil {
		return nil, fmt.Errorf("failed to generate backup codes: %w", err)
	}
	codesBlob, err := s.vault.ObfuscateList(backupCodes)
	if err != nil {
		return nil, fmt.Errorf("failed to protect backup codes: %w", err)
	}

	cred.BackupCodes = codesBlob
	if err := s.storage.UpdateCredential(ctx, cred); err != nil {
		return nil, err
	}

	return backupCodes, nil
}

// verifyTOTP reveals the stored secret and checks the candidate within the
// drift window. Malformed input is rejected before any comparison.
func (s *Service) verifyTOTP(cred *Credential, code string) (bool, error) {
	secret, err := s.vault.Reveal(cred.Secret)
	if err != nil {
		return false, fmt.Errorf("failed to read secret: %w", err)
	}
	ok, err := otp.VerifyTOTP(secret, code, s.driftWindow, s.now())
	if err != nil {
		if errors.Is(err, otp.ErrInvalidFormat) {
			return false, ErrInvalidFormat
		}
		return false, fmt.Errorf("failed to verify code: %w", err)
	}
	return ok, nil
}

// redeemBackup consumes a backup code through the version-checked update so a
// replayed code loses the race. On a lost race the credential is re-read
// once; the code is gone by then, so the caller sees ErrMismatch.
func (s *Service) redeemBackup(ctx context.Context, cred *Credential, code string) (*Verification, error) {
	for attempt := 0; attempt < 2; attempt++ {
		codes, err := s.vault.RevealList(cred.BackupCodes)
		if err != nil {
			return nil, fmt.Errorf("failed to read backup codes: %w", err)
		}

		remaining, ok := otp.RedeemBackupCode(codes, code)
		if !ok {
			return nil, ErrMismatch
		}

		codesBlob, err := s.vault.ObfuscateList(remaining)
		if err != nil {
			return nil, fmt.Errorf("failed to protect backup codes: %w", err)
		}

		now := s.now()
		cred.BackupCodes = codesBlob
		cred.LastUsedAt = &now
		err = s.storage.UpdateCredential(ctx, cred)
		if errors.Is(err, ErrConflict) {
			cred, err = s.storage.GetCredential(ctx, cred.Kind, cred.SubjectID)
			if err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, err
		}

		s.notify(ctx, cred.Kind, cred.SubjectID, notifier.EventRecoveryUsed, notifier.SeverityMedium, map[string]string{
			"method":          "backup_code",
			"remaining_codes": strconv.Itoa(len(remaining)),
		})
		return &Verification{
			BackupCodeUsed:       true,
			RemainingBackupCodes: len(remaining),
		}, nil
	}
	return nil, ErrMismatch
}

// allow consults the rate limiter. Denied checks still count, so severity
// keeps climbing while an attacker hammers a locked window; the login_blocked
// event fires once per severity tier, on the attempt that crossed into it.
func (s *Service) allow(ctx context.Context, kind SubjectKind, subjectID, key string) error {
	if s.limiter == nil {
		return nil
	}

	result, err := s.limiter.Allow(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to check rate limit: %w", err)
	}
	if result.Allowed() {
		return nil
	}

	if result.JustEscalated() {
		s.notify(ctx, kind, subjectID, notifier.EventLoginBlocked, notifier.Severity(result.Severity()), map[string]string{
			"retry_after_seconds": strconv.Itoa(result.RetryAfterSeconds()),
		})
		s.logger.WarnContext(ctx, "verification locked",
			logger.Component("mfa"),
			logger.Subject(string(kind), subjectID),
			logger.Attempts(result.Attempts),
			logger.RetryAfter(result.RetryAfter()),
		)
	}
	return fmt.Errorf("%w: retry after %ds", ErrRateLimited, result.RetryAfterSeconds())
}

func (s *Service) resetLimit(ctx context.Context, key string) {
	if s.limiter == nil {
		return
	}
	if err := s.limiter.Reset(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "failed to reset rate limit",
			logger.Component("mfa"),
			logger.Error(err),
		)
	}
}

// notify resolves the primary contact and emits a security event. Delivery
// is best effort and never fails the operation that triggered it.
func (s *Service) notify(ctx context.Context, kind SubjectKind, subjectID string, eventType notifier.EventType, severity notifier.Severity, details map[string]string) {
	recipient := ""
	if s.directory != nil {
		email, err := s.directory.PrimaryEmail(ctx, kind, subjectID)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to resolve primary contact",
				logger.Component("mfa"),
				logger.Subject(string(kind), subjectID),
				logger.Error(err),
			)
		} else {
			recipient = email
		}
	}

	event := notifier.NewEvent(recipient, eventType, severity, details)
	if err := s.notifier.Notify(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to deliver security event",
			logger.Component("mfa"),
			logger.Event(string(eventType)),
			logger.Error(err),
		)
	}
}

// accountName labels the credential in authenticator apps, preferring the
// primary email when a directory is wired.
func (s *Service) accountName(ctx context.Context, kind SubjectKind, subjectID string) string {
	if s.directory != nil {
		if email, err := s.directory.PrimaryEmail(ctx, kind, subjectID); err == nil && email != "" {
			return email
		}
	}
	return subjectID
}

func validSubject(kind SubjectKind, subjectID string) error {
	if !kind.Valid() || subjectID == "" {
		return ErrInvalidSubject
	}
	return nil
}
