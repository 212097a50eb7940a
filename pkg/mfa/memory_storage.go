package mfa

import (
	"context"
	"sync"
	"time"
)

type credentialKey struct {
	kind      SubjectKind
	subjectID string
}

// MemoryStorage is an in-process Storage implementation used in tests and
// single-node deployments.
type MemoryStorage struct {
	mu    sync.Mutex
	creds map[credentialKey]*Credential
}

// NewMemoryStorage creates an empty in-memory credential store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{creds: make(map[credentialKey]*Credential)}
}

func (s *MemoryStorage) GetCredential(ctx context.Context, kind SubjectKind, subjectID string) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.creds[credentialKey{kind, subjectID}]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *cred
	return &clone, nil
}

func (s *MemoryStorage) PutCredential(ctx context.Context, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := credentialKey{cred.Kind, cred.SubjectID}
	now := time.Now()
	if prev, ok := s.creds[key]; ok {
		cred.Version = prev.Version + 1
	} else {
		cred.Version = 1
		cred.CreatedAt = now
	}
	cred.UpdatedAt = now
	clone := *cred
	s.creds[key] = &clone
	return nil
}

func (s *MemoryStorage) UpdateCredential(ctx context.Context, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := credentialKey{cred.Kind, cred.SubjectID}
	prev, ok := s.creds[key]
	if !ok {
		return ErrNotFound
	}
	if prev.Version != cred.Version {
		return ErrConflict
	}
	cred.Version++
	cred.UpdatedAt = time.Now()
	clone := *cred
	s.creds[key] = &clone
	return nil
}

func (s *MemoryStorage) DeleteCredential(ctx context.Context, kind SubjectKind, subjectID string, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := credentialKey{kind, subjectID}
	prev, ok := s.creds[key]
	if !ok {
		return ErrNotFound
	}
	if prev.Version != version {
		return ErrConflict
	}
	delete(s.creds, key)
	return nil
}
