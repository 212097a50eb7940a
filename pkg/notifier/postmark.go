package notifier

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/caarlos0/env/v11"
	_ "github.com/joho/godotenv/autoload" // Load .env file automatically
	"github.com/mrz1836/postmark"
)

var (
	ErrInvalidConfig     = errors.New("invalid notifier configuration")
	ErrFailedToSendEmail = errors.New("failed to send notification email")
)

// Config holds email notifier configuration. Tokens are required: a
// security notifier that silently cannot send is worse than one that fails
// to start.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN,required"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN,required"`
	SenderEmail          string `env:"SECURITY_SENDER_EMAIL,required"`
}

var (
	cfg  Config
	once sync.Once
)

// LoadConfig loads the notifier configuration from the environment exactly
// once per process and caches it for subsequent calls.
func LoadConfig() (Config, error) {
	var err error
	once.Do(func() {
		var loaded Config
		if err = env.Parse(&loaded); err != nil {
			return
		}
		cfg = loaded
	})
	if err != nil {
		return Config{}, errors.Join(ErrInvalidConfig, err)
	}
	return cfg, nil
}

// Postmark delivers security events as transactional emails.
type Postmark struct {
	client *postmark.Client
	sender string
}

// NewPostmark creates a Postmark-backed notifier.
func NewPostmark(cfg Config) (*Postmark, error) {
	if cfg.PostmarkServerToken == "" {
		return nil, fmt.Errorf("%w: PostmarkServerToken is required", ErrInvalidConfig)
	}
	if cfg.PostmarkAccountToken == "" {
		return nil, fmt.Errorf("%w: PostmarkAccountToken is required", ErrInvalidConfig)
	}
	if cfg.SenderEmail == "" {
		return nil, fmt.Errorf("%w: SenderEmail is required", ErrInvalidConfig)
	}

	return &Postmark{
		client: postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken),
		sender: cfg.SenderEmail,
	}, nil
}

func (p *Postmark) Notify(ctx context.Context, event Event) error {
	resp, err := p.client.SendEmail(ctx, postmark.Email{
		From:     p.sender,
		To:       event.Recipient,
		Subject:  Subject(event.Type),
		TextBody: body(event),
		Tag:      "security-" + string(event.Severity),
	})
	if err != nil {
		return errors.Join(ErrFailedToSendEmail, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(
			ErrFailedToSendEmail,
			fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message),
		)
	}
	return nil
}

// Subject maps an event type to the email subject line shown to the account
// owner.
func Subject(eventType EventType) string {
	switch eventType {
	case EventBackupEmailAdded:
		return "A backup email was added to your account"
	case EventBackupEmailRemoved:
		return "A backup email was removed from your account"
	case EventSecurityQuestionsAdded:
		return "Security questions were set on your account"
	case EventSecurityQuestionsRemoved:
		return "Security questions were removed from your account"
	case EventRecoveryUsed:
		return "Account recovery was used on your account"
	case EventLoginBlocked:
		return "Sign-in attempts to your account were blocked"
	case EventTwoFAEnabled:
		return "Two-factor authentication was enabled"
	case EventTwoFADisabled:
		return "Two-factor authentication was disabled"
	case EventBackupEmailChallenge:
		return "Confirm your backup email address"
	default:
		return "Security notice for your account"
	}
}

func body(event Event) string {
	text := Subject(event.Type) + " at " + event.OccurredAt.UTC().Format("2006-01-02 15:04 UTC") + ".\n\n"
	text += "If this was you, no action is needed. If you do not recognize this activity, secure your account immediately.\n"
	keys := make([]string, 0, len(event.Details))
	for k := range event.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		text += "\n" + k + ": " + event.Details[k]
	}
	return text
}
