package recovery

import (
	"context"
	"slices"
	"sync"
	"time"
)

type optionsKey struct {
	kind      SubjectKind
	subjectID string
}

// MemoryStorage is an in-process Storage implementation used in tests and
// single-node deployments.
type MemoryStorage struct {
	mu   sync.Mutex
	rows map[optionsKey]*Options
}

// NewMemoryStorage creates an empty in-memory recovery store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{rows: make(map[optionsKey]*Options)}
}

func (s *MemoryStorage) GetOptions(ctx context.Context, kind SubjectKind, subjectID string) (*Options, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	opts, ok := s.rows[optionsKey{kind, subjectID}]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneOptions(opts), nil
}

func (s *MemoryStorage) PutOptions(ctx context.Context, opts *Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := optionsKey{opts.Kind, opts.SubjectID}
	now := time.Now()
	if prev, ok := s.rows[key]; ok {
		opts.Version = prev.Version + 1
	} else {
		opts.Version = 1
		opts.CreatedAt = now
	}
	opts.UpdatedAt = now
	s.rows[key] = cloneOptions(opts)
	return nil
}

func (s *MemoryStorage) UpdateOptions(ctx context.Context, opts *Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := optionsKey{opts.Kind, opts.SubjectID}
	prev, ok := s.rows[key]
	if !ok {
		return ErrNotFound
	}
	if prev.Version != opts.Version {
		return ErrConflict
	}
	opts.Version++
	opts.UpdatedAt = time.Now()
	s.rows[key] = cloneOptions(opts)
	return nil
}

func cloneOptions(opts *Options) *Options {
	clone := *opts
	if opts.Pending != nil {
		pending := *opts.Pending
		clone.Pending = &pending
	}
	clone.Questions = slices.Clone(opts.Questions)
	return &clone
}
