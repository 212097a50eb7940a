package recovery

import "time"

// SubjectKind selects the recovery namespace. User and admin identities keep
// independent recovery options under the same schema.
type SubjectKind string

const (
	KindUser  SubjectKind = "user"
	KindAdmin SubjectKind = "admin"
)

// Valid reports whether the kind is one of the known namespaces.
func (k SubjectKind) Valid() bool {
	return k == KindUser || k == KindAdmin
}

// EmailState tags the backup-email channel so the pending and verified
// shapes cannot be confused.
type EmailState string

const (
	EmailUnset    EmailState = "unset"
	EmailPending  EmailState = "pending"
	EmailVerified EmailState = "verified"
)

// PendingEmail is the transient state of an outstanding email challenge.
// Challenge ties the stored state to the sealed token issued for it, so a
// token from a superseded challenge cannot redeem the current one.
type PendingEmail struct {
	Email     string    `json:"email"`
	Challenge string    `json:"challenge"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Question is one stored security question. Only the bcrypt hash of the
// normalized answer is kept.
type Question struct {
	ID         string `json:"id"`
	AnswerHash []byte `json:"answer_hash"`
}

// QuestionAnswer is the caller-supplied pair for saving or verifying.
type QuestionAnswer struct {
	ID     string `json:"id"`
	Answer string `json:"answer"`
}

// Options is one subject's recovery record. Email is set only while
// EmailState is EmailVerified; Pending only while a challenge is
// outstanding. Version increments on every write and guards
// read-modify-write updates.
type Options struct {
	Kind       SubjectKind
	SubjectID  string
	Email      string
	EmailState EmailState
	Pending    *PendingEmail
	Questions  []Question
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SetupComplete is derived, never stored: recovery is usable once the backup
// email is verified or at least two security questions are configured.
func (o *Options) SetupComplete() bool {
	return o.EmailState == EmailVerified || len(o.Questions) >= 2
}

// EmailVerification is returned by StartEmailVerification. The token is
// opaque to the client and must come back together with the emailed code.
type EmailVerification struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Status is the aggregate view of a subject's recovery setup. BackupEmail is
// masked for display.
type Status struct {
	EmailState    EmailState `json:"email_state"`
	BackupEmail   string     `json:"backup_email,omitempty"`
	QuestionCount int        `json:"question_count"`
	SetupComplete bool       `json:"setup_complete"`
}
