package recovery

import "errors"

// Backup-email channel errors
var (
	ErrInvalidEmail          = errors.New("invalid email address")
	ErrNoPendingVerification = errors.New("no pending email verification")
	ErrExpired               = errors.New("verification expired")
	ErrCodeMismatch          = errors.New("verification code does not match")
)

// Security-question errors
var (
	ErrInvalidQuestions = errors.New("invalid security questions")
)

// Shared errors
var (
	ErrNotFound       = errors.New("no recovery options for subject")
	ErrConflict       = errors.New("recovery options modified concurrently")
	ErrRateLimited    = errors.New("too many attempts")
	ErrInvalidSubject = errors.New("invalid subject")
)
