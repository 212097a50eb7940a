package recovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ChaosClubCo/tiktok-story-ai-sub001/pkg/pg"
)

// DB is the subset of *pgxpool.Pool (or pgx.Tx) that PostgresStorage needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStorage persists recovery options in the recovery_options table.
//
// Expected schema:
//
//	CREATE TABLE recovery_options (
//	    kind               TEXT        NOT NULL,
//	    subject_id         TEXT        NOT NULL,
//	    backup_email       TEXT        NOT NULL DEFAULT '',
//	    email_state        TEXT        NOT NULL DEFAULT 'unset',
//	    pending_email      TEXT,
//	    pending_challenge  TEXT,
//	    pending_expires_at TIMESTAMPTZ,
//	    questions          JSONB       NOT NULL DEFAULT '[]',
//	    version            BIGINT      NOT NULL DEFAULT 1,
//	    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	    updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
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

func (s *PostgresStorage) GetOptions(ctx context.Context, kind SubjectKind, subjectID string) (*Options, error) {
	const query = `
		SELECT kind, subject_id, backup_email, email_state,
		       pending_email, pending_challenge, pending_expires_at,
		       questions, version, created_at, updated_at
		FROM recovery_options
		WHERE kind = $1 AND subject_id = $2`

	opts := &Options{}
	var pendingEmail, pendingChallenge *string
	var pendingExpiresAt *time.Time
	err := s.db.QueryRow(ctx, query, kind, subjectID).Scan(
		&opts.Kind, &opts.SubjectID, &opts.Email, &opts.EmailState,
		&pendingEmail, &pendingChallenge, &pendingExpiresAt,
		&opts.Questions, &opts.Version, &opts.CreatedAt, &opts.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get recovery options: %w", err)
	}
	if pendingEmail != nil && pendingChallenge != nil && pendingExpiresAt != nil {
		opts.Pending = &PendingEmail{
			Email:     *pendingEmail,
			Challenge: *pendingChallenge,
			ExpiresAt: *pendingExpiresAt,
		}
	}
	return opts, nil
}

func (s *PostgresStorage) PutOptions(ctx context.Context, opts *Options) error {
	const query = `
		INSERT INTO recovery_options (kind, subject_id, backup_email, email_state,
		                              pending_email, pending_challenge, pending_expires_at, questions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (kind, subject_id) DO UPDATE SET
			backup_email       = EXCLUDED.backup_email,
			email_state        = EXCLUDED.email_state,
			pending_email      = EXCLUDED.pending_email,
			pending_challenge  = EXCLUDED.pending_challenge,
			pending_expires_at = EXCLUDED.pending_expires_at,
			questions          = EXCLUDED.questions,
			version            = recovery_options.version + 1,
			updated_at         = NOW()
		RETURNING version, created_at, updated_at`

	pendingEmail, pendingChallenge, pendingExpiresAt := pendingColumns(opts.Pending)
	err := s.db.QueryRow(ctx, query,
		opts.Kind, opts.SubjectID, opts.Email, opts.EmailState,
		pendingEmail, pendingChallenge, pendingExpiresAt, questionsOrEmpty(opts.Questions),
	).Scan(&opts.Version, &opts.CreatedAt, &opts.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to put recovery options: %w", err)
	}
	return nil
}

func (s *PostgresStorage) UpdateOptions(ctx context.Context, opts *Options) error {
	const query = `
		UPDATE recovery_options SET
			backup_email       = $1,
			email_state        = $2,
			pending_email      = $3,
			pending_challenge  = $4,
			pending_expires_at = $5,
			questions          = $6,
			version            = version + 1,
			updated_at         = NOW()
		WHERE kind = $7 AND subject_id = $8 AND version = $9
		RETURNING version, updated_at`

	pendingEmail, pendingChallenge, pendingExpiresAt := pendingColumns(opts.Pending)
	err := s.db.QueryRow(ctx, query,
		opts.Email, opts.EmailState, pendingEmail, pendingChallenge, pendingExpiresAt,
		questionsOrEmpty(opts.Questions), opts.Kind, opts.SubjectID, opts.Version,
	).Scan(&opts.Version, &opts.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s.staleWriteError(ctx, opts.Kind, opts.SubjectID)
		}
		return fmt.Errorf("failed to update recovery options: %w", err)
	}
	return nil
}

// staleWriteError tells a missing row apart from a lost version race.
func (s *PostgresStorage) staleWriteError(ctx context.Context, kind SubjectKind, subjectID string) error {
	const query = `SELECT version FROM recovery_options WHERE kind = $1 AND subject_id = $2`

	var version int64
	err := s.db.QueryRow(ctx, query, kind, subjectID).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check recovery options: %w", err)
	}
	return ErrConflict
}

func pendingColumns(p *PendingEmail) (*string, *string, *time.Time) {
	if p == nil {
		return nil, nil, nil
	}
	return &p.Email, &p.Challenge, &p.ExpiresAt
}

// questionsOrEmpty keeps the JSONB column as [] instead of SQL null.
func questionsOrEmpty(qs []Question) []Question {
	if qs == nil {
		return []Question{}
	}
	return qs
}

var _ Storage = (*PostgresStorage)(nil)
