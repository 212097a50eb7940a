package mfa

import "time"

// SubjectKind selects the credential namespace. User and admin identities
// keep independent credentials under the same schema.
type SubjectKind string

const (
	KindUser  SubjectKind = "user"
	KindAdmin SubjectKind = "admin"
)

// Valid reports whether the kind is one of the known namespaces.
func (k SubjectKind) Valid() bool {
	return k == KindUser || k == KindAdmin
}

// Credential is one subject's TOTP enrollment record. Secret and BackupCodes
// hold vault-obfuscated blobs, never plaintext. Version increments on every
// write and guards read-modify-write updates.
type Credential struct {
	Kind        SubjectKind
	SubjectID   string
	Secret      string
	BackupCodes string
	Enabled     bool
	VerifiedAt  *time.Time
	LastUsedAt  *time.Time
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SetupResponse carries everything the subject needs to finish enrollment.
// BackupCodes appear in plaintext here and are never shown again.
type SetupResponse struct {
	Secret      string   `json:"secret"`
	URI         string   `json:"uri"`
	QRCode      string   `json:"qr_code"`
	BackupCodes []string `json:"backup_codes"`
}

// Verification reports a successful Verify call. RemainingBackupCodes is the
// only metadata surfaced to callers.
type Verification struct {
	BackupCodeUsed       bool `json:"backup_code_used"`
	RemainingBackupCodes int  `json:"remaining_backup_codes"`
}

// Status describes a subject's enrollment state without exposing secrets.
type Status struct {
	Enabled              bool       `json:"enabled"`
	Pending              bool       `json:"pending"`
	VerifiedAt           *time.Time `json:"verified_at,omitempty"`
	LastUsedAt           *time.Time `json:"last_used_at,omitempty"`
	RemainingBackupCodes int        `json:"remaining_backup_codes"`
}
