package otp

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
)

const (
	// DefaultBackupCodeCount is the number of codes issued at setup.
	DefaultBackupCodeCount = 10

	// BackupCodeLength is the rendered length of a single code:
	// 5 random bytes as 10 uppercase hex characters.
	BackupCodeLength = 10

	backupCodeBytes = 5
)

// GenerateBackupCodes creates cryptographically secure single-use codes for
// account recovery when the authenticator device is unavailable.
func GenerateBackupCodes(count int) ([]string, error) {
	if count < 1 {
		return nil, ErrInvalidBackupCodeCount
	}

	codes := make([]string, count)
	for i := 0; i < count; i++ {
		raw := make([]byte, backupCodeBytes)
		if _, err := rand.Read(raw); err != nil {
			return nil, errors.Join(ErrFailedToGenerateBackupCode, err)
		}
		codes[i] = fmt.Sprintf("%X", raw)
	}
	return codes, nil
}

// ValidBackupCodeFormat reports whether candidate has the shape of an issued
// backup code. Callers should reject malformed input before any comparison.
func ValidBackupCodeFormat(candidate string) bool {
	candidate = strings.TrimSpace(candidate)
	if len(candidate) != BackupCodeLength {
		return false
	}
	for _, r := range candidate {
		ok := (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
		if !ok {
			return false
		}
	}
	return true
}

// RedeemBackupCode matches candidate against the stored plaintext codes,
// case-insensitively. On a match it returns the list with that single entry
// removed and true; the caller must persist the shortened list atomically
// with the credential update so the code cannot be replayed. Every entry is
// compared so redemption time does not depend on the match position.
func RedeemBackupCode(codes []string, candidate string) ([]string, bool) {
	if !ValidBackupCodeFormat(candidate) {
		return nil, false
	}
	candidate = strings.ToUpper(strings.TrimSpace(candidate))

	matched := -1
	for i, code := range codes {
		if subtle.ConstantTimeCompare([]byte(strings.ToUpper(code)), []byte(candidate)) == 1 && matched < 0 {
			matched = i
		}
	}
	if matched < 0 {
		return nil, false
	}

	remaining := make([]string, 0, len(codes)-1)
	remaining = append(remaining, codes[:matched]...)
	remaining = append(remaining, codes[matched+1:]...)
	return remaining, true
}
