// Package sanitizer normalizes and masks the identity inputs handled by the
// account-trust subsystem: email addresses and security-question answers.
// Normalization runs before any hashing or comparison so equivalent inputs
// ("  Fluffy " vs "fluffy") verify identically; masking keeps identifiers
// usable in logs, rate-limit keys, and status responses without exposing
// personal data.
package sanitizer

import (
	"regexp"
	"strings"
)

var (
	dotRegex        = regexp.MustCompile(`\.{2,}`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

// NormalizeEmail prevents common email input errors but preserves the
// original value for invalid formats. Consecutive dots in the local part are
// consolidated since they cause delivery issues with some providers.
func NormalizeEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return email
	}

	local := dotRegex.ReplaceAllString(parts[0], ".")
	local = strings.Trim(local, ".")

	return local + "@" + parts[1]
}

// MaskEmail hides the local part while preserving the full domain for user
// recognition. Invalid shapes are returned unchanged.
func MaskEmail(email string) string {
	email = strings.TrimSpace(email)
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return email
	}

	local := parts[0]
	switch len(local) {
	case 0:
		return email
	case 1:
		return "*@" + parts[1]
	}

	return string(local[0]) + strings.Repeat("*", len(local)-1) + "@" + parts[1]
}

// NormalizeAnswer canonicalizes a security-question answer before hashing or
// comparison: trimmed, lowercased, inner whitespace collapsed to single
// spaces. "New  York " and "new york" hash to the same value.
func NormalizeAnswer(answer string) string {
	answer = strings.ToLower(strings.TrimSpace(answer))
	return whitespaceRegex.ReplaceAllString(answer, " ")
}
