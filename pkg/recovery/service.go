package recovery

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ChaosClubCo/tiktok-story-ai-sub001/pkg/logger"
	"github.com/ChaosClubCo/tiktok-story-ai-sub001/pkg/notifier"
	"github.com/ChaosClubCo/tiktok-story-ai-sub001/pkg/ratelimit"
	"github.com/ChaosClubCo/tiktok-story-ai-sub001/pkg/sanitizer"
	"github.com/ChaosClubCo/tiktok-story-ai-sub001/pkg/token"
	"github.com/ChaosClubCo/tiktok-story-ai-sub001/pkg/validator"
)

// actionRecovery is the rate-limiter action shared by both recovery
// verification paths, so email-code and answer guesses draw from one budget.
const actionRecovery = "recovery_verify"

const (
	codeLength           = 6
	minQuestions         = 2
	maxQuestions         = 4
	answerMatchThreshold = 2
)

// emailChallenge is sealed into the verification token. The client holds the
// token but can read none of this.
type emailChallenge struct {
	Email     string `json:"email"`
	Code      string `json:"code"`
	Challenge string `json:"challenge"`
	ExpiresAt int64  `json:"exp"`
}

// Service implements the account-recovery operations.
type Service struct {
	storage     Storage
	tokenSecret string
	directory   Directory
	notifier    notifier.Notifier
	limiter     *ratelimit.Limiter
	logger      *slog.Logger

	verificationTTL time.Duration
	bcryptCost      int
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

// WithLimiter sets the rate limiter guarding verification attempts. Without
// one, attempts are not throttled.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(s *Service) {
		s.limiter = l
	}
}

// WithVerificationTTL sets how long an email challenge stays redeemable.
func WithVerificationTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.verificationTTL = ttl
	}
}

// WithBcryptCost sets the bcrypt cost for answer hashing.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

// WithClock overrides the time source, used in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a recovery service. The token secret seals email
// challenge tokens and must stay stable across instances.
func NewService(storage Storage, tokenSecret string, opts ...Option) *Service {
	s := &Service{
		storage:         storage,
		tokenSecret:     tokenSecret,
		notifier:        notifier.Noop{},
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		verificationTTL: 15 * time.Minute,
		bcryptCost:      bcrypt.DefaultCost,
		now:             time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// StartEmailVerification begins (or restarts) the backup-email challenge.
// A six-digit code goes to the address being enrolled; the returned sealed
// token must come back with that code. Any outstanding challenge is
// replaced, which is also the resend path. The code delivery is best effort
// and never rolls back the stored pending state.
func (s *Service) StartEmailVerification(ctx context.Context, kind SubjectKind, subjectID, email string) (*EmailVerification, error) {
	if err := validSubject(kind, subjectID); err != nil {
		return nil, err
	}

	email = sanitizer.NormalizeEmail(email)
	if err := validator.Apply(validator.ValidEmail("email", email)); err != nil {
		return nil, errors.Join(ErrInvalidEmail, err)
	}

	code, err := generateCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate verification code: %w", err)
	}

	expiresAt := s.now().Add(s.verificationTTL)
	challenge := uuid.NewString()
	tok, err := token.Seal(emailChallenge{
		Email:     email,
		Code:      code,
		Challenge: challenge,
		ExpiresAt: expiresAt.Unix(),
	}, s.tokenSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to seal verification token: %w", err)
	}

	opts, err := s.loadOrNew(ctx, kind, subjectID)
	if err != nil {
		return nil, err
	}
	opts.Pending = &PendingEmail{Email: email, Challenge: challenge, ExpiresAt: expiresAt}
	if opts.EmailState == EmailUnset {
		opts.EmailState = EmailPending
	}
	if err := s.save(ctx, opts); err != nil {
		return nil, err
	}

	s.deliver(ctx, notifier.NewEvent(email, notifier.EventBackupEmailChallenge, notifier.SeverityInfo, map[string]string{
		"code": code,
	}))

	s.logger.InfoContext(ctx, "backup email verification started",
		logger.Component("recovery"),
		logger.Subject(string(kind), subjectID),
		logger.Recipient(sanitizer.MaskEmail(email)),
	)

	return &EmailVerification{Token: tok, ExpiresAt: expiresAt}, nil
}

// VerifyEmailCode redeems an email challenge. On success the pending address
// becomes the verified backup email, the transient state is cleared, and the
// primary contact is notified.
func (s *Service) VerifyEmailCode(ctx context.Context, kind SubjectKind, subjectID, tok, code string) error {
	if err := validSubject(kind, subjectID); err != nil {
		return err
	}

	limitKey := ratelimit.Key(actionRecovery, string(kind)+":"+subjectID)
	if err := s.allow(ctx, kind, subjectID, limitKey); err != nil {
		return err
	}

	opts, err := s.storage.GetOptions(ctx, kind, subjectID)
	if errors.Is(err, ErrNotFound) {
		return ErrNoPendingVerification
	}
	if err != nil {
		return err
	}
	if opts.Pending == nil {
		return ErrNoPendingVerification
	}

	payload, err := token.Open[emailChallenge](tok, s.tokenSecret)
	if err != nil {
		return ErrNoPendingVerification
	}
	if payload.Challenge != opts.Pending.Challenge {
		return ErrNoPendingVerification
	}

	now := s.now()
	if now.After(opts.Pending.ExpiresAt) || now.Unix() > payload.ExpiresAt {
		s.clearPending(ctx, opts)
		return ErrExpired
	}

	if subtle.ConstantTimeCompare([]byte(payload.Code), []byte(code)) != 1 {
		return ErrCodeMismatch
	}

	opts.Email = opts.Pending.Email
	opts.EmailState = EmailVerified
	opts.Pending = nil
	if err := s.storage.UpdateOptions(ctx, opts); err != nil {
		return err
	}

	s.resetLimit(ctx, limitKey)
	s.notifyPrimary(ctx, kind, subjectID, notifier.EventBackupEmailAdded, notifier.SeverityMedium, map[string]string{
		"backup_email": sanitizer.MaskEmail(opts.Email),
	})
	s.logger.InfoContext(ctx, "backup email verified",
		logger.Component("recovery"),
		logger.Subject(string(kind), subjectID),
		logger.Recipient(sanitizer.MaskEmail(opts.Email)),
	)
	return nil
}

// SaveQuestions replaces the stored security questions wholesale. Answers
// are normalized and bcrypt-hashed before they reach storage.
func (s *Service) SaveQuestions(ctx context.Context, kind SubjectKind, subjectID string, answers []QuestionAnswer) error {
	if err := validSubject(kind, subjectID); err != nil {
		return err
	}
	if len(answers) < minQuestions || len(answers) > maxQuestions {
		return ErrInvalidQuestions
	}

	seen := make(map[string]struct{}, len(answers))
	questions := make([]Question, 0, len(answers))
	for _, qa := range answers {
		normalized := sanitizer.NormalizeAnswer(qa.Answer)
		if qa.ID == "" || normalized == "" {
			return ErrInvalidQuestions
		}
		if _, dup := seen[qa.ID]; dup {
			return ErrInvalidQuestions
		}
		seen[qa.ID] = struct{}{}

		hash, err := bcrypt.GenerateFromPassword([]byte(normalized), s.bcryptCost)
		if err != nil {
			return fmt.Errorf("failed to hash answer: %w", err)
		}
		questions = append(questions, Question{ID: qa.ID, AnswerHash: hash})
	}

	opts, err := s.loadOrNew(ctx, kind, subjectID)
	if err != nil {
		return err
	}
	opts.Questions = questions
	if err := s.save(ctx, opts); err != nil {
		return err
	}

	s.notifyPrimary(ctx, kind, subjectID, notifier.EventSecurityQuestionsAdded, notifier.SeverityMedium, nil)
	s.logger.InfoContext(ctx, "security questions saved",
		logger.Component("recovery"),
		logger.Subject(string(kind), subjectID),
	)
	return nil
}

// VerifyAnswers checks submitted answers against the stored questions and
// accepts when at least two match, however many were submitted. Only the
// aggregate pass or fail is reported, never which answers were wrong.
func (s *Service) VerifyAnswers(ctx context.Context, kind SubjectKind, subjectID string, answers []QuestionAnswer) (bool, error) {
	if err := validSubject(kind, subjectID); err != nil {
		return false, err
	}

	limitKey := ratelimit.Key(actionRecovery, string(kind)+":"+subjectID)
	if err := s.allow(ctx, kind, subjectID, limitKey); err != nil {
		return false, err
	}

	opts, err := s.storage.GetOptions(ctx, kind, subjectID)
	if err != nil {
		return false, err
	}
	if len(opts.Questions) < minQuestions {
		return false, ErrNotFound
	}

	stored := make(map[string][]byte, len(opts.Questions))
	for _, q := range opts.Questions {
		stored[q.ID] = q.AnswerHash
	}

	matches := 0
	for _, qa := range answers {
		hash, ok := stored[qa.ID]
		if !ok {
			continue
		}
		normalized := sanitizer.NormalizeAnswer(qa.Answer)
		if bcrypt.CompareHashAndPassword(hash, []byte(normalized)) == nil {
			matches++
		}
	}

	if matches < answerMatchThreshold {
		return false, nil
	}

	s.resetLimit(ctx, limitKey)
	s.notifyPrimary(ctx, kind, subjectID, notifier.EventRecoveryUsed, notifier.SeverityMedium, map[string]string{
		"method": "security_questions",
	})
	return true, nil
}

// RemoveBackupEmail clears the backup-email channel, verified or pending,
// and notifies the primary contact. Clearing an absent record is a no-op.
func (s *Service) RemoveBackupEmail(ctx context.Context, kind SubjectKind, subjectID string) error {
	if err := validSubject(kind, subjectID); err != nil {
		return err
	}

	opts, err := s.storage.GetOptions(ctx, kind, subjectID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if opts.EmailState == EmailUnset && opts.Pending == nil {
		return nil
	}

	opts.Email = ""
	opts.EmailState = EmailUnset
	opts.Pending = nil
	if err := s.storage.UpdateOptions(ctx, opts); err != nil {
		return err
	}

	s.notifyPrimary(ctx, kind, subjectID, notifier.EventBackupEmailRemoved, notifier.SeverityHigh, nil)
	return nil
}

// RemoveQuestions clears all stored security questions and notifies the
// primary contact. Clearing an absent record is a no-op.
func (s *Service) RemoveQuestions(ctx context.Context, kind SubjectKind, subjectID string) error {
	if err := validSubject(kind, subjectID); err != nil {
		return err
	}

	opts, err := s.storage.GetOptions(ctx, kind, subjectID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(opts.Questions) == 0 {
		return nil
	}

	opts.Questions = nil
	if err := s.storage.UpdateOptions(ctx, opts); err != nil {
		return err
	}

	s.notifyPrimary(ctx, kind, subjectID, notifier.EventSecurityQuestionsRemoved, notifier.SeverityHigh, nil)
	return nil
}

// Status reports the subject's recovery setup. An absent record is not an
// error, it reports as nothing configured.
func (s *Service) Status(ctx context.Context, kind SubjectKind, subjectID string) (*Status, error) {
	if err := validSubject(kind, subjectID); err != nil {
		return nil, err
	}

	opts, err := s.storage.GetOptions(ctx, kind, subjectID)
	if errors.Is(err, ErrNotFound) {
		return &Status{EmailState: EmailUnset}, nil
	}
	if err != nil {
		return nil, err
	}

	status := &Status{
		EmailState:    opts.EmailState,
		QuestionCount: len(opts.Questions),
		SetupComplete: opts.SetupComplete(),
	}
	if opts.EmailState == EmailVerified {
		status.BackupEmail = sanitizer.MaskEmail(opts.Email)
	}
	return status, nil
}

func (s *Service) loadOrNew(ctx context.Context, kind SubjectKind, subjectID string) (*Options, error) {
	opts, err := s.storage.GetOptions(ctx, kind, subjectID)
	if errors.Is(err, ErrNotFound) {
		return &Options{Kind: kind, SubjectID: subjectID, EmailState: EmailUnset}, nil
	}
	if err != nil {
		return nil, err
	}
	return opts, nil
}

func (s *Service) save(ctx context.Context, opts *Options) error {
	if opts.Version == 0 {
		return s.storage.PutOptions(ctx, opts)
	}
	return s.storage.UpdateOptions(ctx, opts)
}

// clearPending drops an expired challenge. Best effort, the caller already
// has its error to return.
func (s *Service) clearPending(ctx context.Context, opts *Options) {
	opts.Pending = nil
	if opts.EmailState == EmailPending {
		opts.EmailState = EmailUnset
	}
	if err := s.storage.UpdateOptions(ctx, opts); err != nil {
		s.logger.WarnContext(ctx, "failed to clear expired challenge",
			logger.Component("recovery"),
			logger.Subject(string(opts.Kind), opts.SubjectID),
			logger.Error(err),
		)
	}
}

// allow consults the rate limiter; a locked window emits a login_blocked
// event with escalating severity, once per severity tier.
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
		s.notifyPrimary(ctx, kind, subjectID, notifier.EventLoginBlocked, notifier.Severity(result.Severity()), map[string]string{
			"retry_after_seconds": fmt.Sprintf("%d", result.RetryAfterSeconds()),
		})
		s.logger.WarnContext(ctx, "recovery verification locked",
			logger.Component("recovery"),
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
			logger.Component("recovery"),
			logger.Error(err),
		)
	}
}

// notifyPrimary emits a security event to the account's primary contact,
// never the backup address.
func (s *Service) notifyPrimary(ctx context.Context, kind SubjectKind, subjectID string, eventType notifier.EventType, severity notifier.Severity, details map[string]string) {
	recipient := ""
	if s.directory != nil {
		email, err := s.directory.PrimaryEmail(ctx, kind, subjectID)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to resolve primary contact",
				logger.Component("recovery"),
				logger.Subject(string(kind), subjectID),
				logger.Error(err),
			)
		} else {
			recipient = email
		}
	}
	s.deliver(ctx, notifier.NewEvent(recipient, eventType, severity, details))
}

// deliver is best effort and never fails the operation that triggered it.
func (s *Service) deliver(ctx context.Context, event notifier.Event) {
	if err := s.notifier.Notify(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to deliver security event",
			logger.Component("recovery"),
			logger.Event(string(event.Type)),
			logger.Error(err),
		)
	}
}

// generateCode draws a uniform six-digit code.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeLength, n), nil
}

func validSubject(kind SubjectKind, subjectID string) error {
	if !kind.Valid() || subjectID == "" {
		return ErrInvalidSubject
	}
	return nil
}
