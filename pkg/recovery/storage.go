package recovery

import "context"

// Storage is the record-store collaborator for recovery options, keyed by
// (kind, subject_id).
//
// PutOptions upserts unconditionally. UpdateOptions compares the stored
// version against the caller's copy and fails with ErrConflict when another
// writer got there first, bumping opts.Version on success.
type Storage interface {
	GetOptions(ctx context.Context, kind SubjectKind, subjectID string) (*Options, error)
	PutOptions(ctx context.Context, opts *Options) error
	UpdateOptions(ctx context.Context, opts *Options) error
}

// Directory resolves a subject's primary contact email so security events
// reach the account owner rather than the backup channel.
type Directory interface {
	PrimaryEmail(ctx context.Context, kind SubjectKind, subjectID string) (string, error)
}
