package mfa

import "context"

// Storage is the record-store collaborator for credentials, keyed by
// (kind, subject_id).
//
// PutCredential upserts unconditionally and is used when (re)issuing a
// pending credential. UpdateCredential and DeleteCredential compare the
// stored version against the caller's copy and fail with ErrConflict when
// another writer got there first; UpdateCredential bumps cred.Version on
// success.
type Storage interface {
	GetCredential(ctx context.Context, kind SubjectKind, subjectID string) (*Credential, error)
	PutCredential(ctx context.Context, cred *Credential) error
	UpdateCredential(ctx context.Context, cred *Credential) error
	DeleteCredential(ctx context.Context, kind SubjectKind, subjectID string, version int64) error
}

// Directory resolves a subject's primary contact email so security events
// reach the account owner. It is deliberately read-only here.
type Directory interface {
	PrimaryEmail(ctx context.Context, kind SubjectKind, subjectID string) (string, error)
}
