package mfa

import "errors"

// Credential lifecycle errors
var (
	ErrNotFound       = errors.New("no active credential for subject")
	ErrAlreadyEnabled = errors.New("credential already enabled")
	ErrConflict       = errors.New("credential modified concurrently")
)

// Verification errors
var (
	ErrInvalidFormat = errors.New("code has invalid format")
	ErrMismatch      = errors.New("code does not match")
	ErrRateLimited   = errors.New("too many attempts")
)

// Input errors
var (
	ErrInvalidSubject = errors.New("invalid subject")
)
