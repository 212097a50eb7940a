package mfa

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ChaosClubCo/tiktok-story-ai-sub001/pkg/pg"
)

// DB is the subset of *pgxpool.Pool (or pgx.Tx) that PostgresStorage needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStorage persists credentials in the totp_credentials table.
//
// Expected schema:
//
//	CREATE TABLE totp_credentials (
//	    kind         TEXT        NOT NULL,
//	    subject_id   TEXT        NOT NULL,
//	    secret       TEXT        NOT NULL,
//	    backup_codes TEXT        NOT NULL,
//	    enabled      BOOLEAN     NOT NULL DEFAULT FALSE,
//	    verified_at  TIMESTAMPTZ,
//	    last_used_at TIMESTAMPTZ,
//	    version      BIGINT      NOT NULL DEFAULT 1,
//	    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	    PRIMARY KEY (kind, subject_id)
//	)
type PostgresStorage struct {
	db DB
}

// NewPostgresStorage creates a Storage backed by the given pgx connection pool.
func NewPostgresStorage(db DB) *PostgresStorage {
	return &PostgresStorage{db: db}
}

// NewPostgresStorageFromEnv connects to the database using the PG_*
// environment configuration and returns a storage on that pool.
func NewPostgresStorageFromEnv(ctx context.Context) (*PostgresStorage, error) {
	cfg, err := pg.LoadConfig()
	if err != nil {
		return nil, err
	}
	pool, err := pg.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewPostgresStorage(pool), nil
}

func (s *PostgresStorage) GetCredential(ctx context.Context, kind SubjectKind, subjectID string) (*Credential, error) {
	const query = `
		SELECT kind, subject_id, secret, backup_codes, enabled,
		       verified_at, last_used_at, version, created_at, updated_at
		FROM totp_credentials
		WHERE kind = $1 AND subject_id = $2`

	cred := &Credential{}
	err := s.db.QueryRow(ctx, query, kind, subjectID).Scan(
		&cred.Kind, &cred.SubjectID, &cred.Secret, &cred.BackupCodes, &cred.Enabled,
		&cred.VerifiedAt, &cred.LastUsedAt, &cred.Version, &cred.CreatedAt, &cred.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}
	return cred, nil
}

func (s *PostgresStorage) PutCredential(ctx context.Context, cred *Credential) error {
	const query = `
		INSERT INTO totp_credentials (kind, subject_id, secret, backup_codes, enabled, verified_at, last_used_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (kind, subject_id) DO UPDATE SET
			secret       = EXCLUDED.secret,
			backup_codes = EXCLUDED.backup_codes,
			enabled      = EXCLUDED.enabled,
			verified_at  = EXCLUDED.verified_at,
			last_used_at = EXCLUDED.last_used_at,
			version      = totp_credentials.version + 1,
			updated_at   = NOW()
		RETURNING version, created_at, updated_at`

	err := s.db.QueryRow(ctx, query,
		cred.Kind, cred.SubjectID, cred.Secret, cred.BackupCodes,
		cred.Enabled, cred.VerifiedAt, cred.LastUsedAt,
	).Scan(&cred.Version, &cred.CreatedAt, &cred.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to put credential: %w", err)
	}
	return nil
}

func (s *PostgresStorage) UpdateCredential(ctx context.Context, cred *Credential) error {
	const query = `
		UPDATE totp_credentials SET
			secret       = $1,
			backup_codes = $2,
			enabled      = $3,
			verified_at  = $4,
			last_used_at = $5,
			version      = version + 1,
			updated_at   = NOW()
		WHERE kind = $6 AND subject_id = $7 AND version = $8
		RETURNING version, updated_at`

	err := s.db.QueryRow(ctx, query,
		cred.Secret, cred.BackupCodes, cred.Enabled, cred.VerifiedAt, cred.LastUsedAt,
		cred.Kind, cred.SubjectID, cred.Version,
	).Scan(&cred.Version, &cred.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s.staleWriteError(ctx, cred.Kind, cred.SubjectID)
		}
		return fmt.Errorf("failed to update credential: %w", err)
	}
	return nil
}

func (s *PostgresStorage) DeleteCredential(ctx context.Context, kind SubjectKind, subjectID string, version int64) error {
	const query = `
		DELETE FROM totp_credentials
		WHERE kind = $1 AND subject_id = $2 AND version = $3`

	tag, err := s.db.Exec(ctx, query, kind, subjectID, version)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.staleWriteError(ctx, kind, subjectID)
	}
	return nil
}

// staleWriteError tells a missing row apart from a lost version race.
func (s *PostgresStorage) staleWriteError(ctx context.Context, kind SubjectKind, subjectID string) error {
	const query = `SELECT version FROM totp_credentials WHERE kind = $1 AND subject_id = $2`

	var version int64
	err := s.db.QueryRow(ctx, query, kind, subjectID).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check credential: %w", err)
	}
	return ErrConflict
}

var _ Storage = (*PostgresStorage)(nil)
