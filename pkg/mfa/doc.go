// Package mfa implements the TOTP second-factor credential service.
//
// It ties the OTP engine, secret vault, rate limiter, and security event
// notifier together behind a single Service with the caller-facing
// operations: enrolling a subject (Setup), activating the pending credential
// with a first correct code (VerifySetup), verifying login codes or one-time
// backup codes (Verify), reporting state (Status), regenerating backup codes
// (RegenerateBackupCodes), and tearing the credential down (Disable).
//
// A credential exists in one of three states. Absent means no row is stored.
// Pending means a secret has been issued but never confirmed; only
// VerifySetup accepts codes against it. Active means the subject completed
// enrollment and Verify accepts TOTP codes or backup codes. Disable deletes
// the row outright, there is no soft-disabled state.
//
// Secrets and backup codes are obfuscated through a vault.Vault before they
// reach storage, so a datastore read alone never yields usable material.
// Writes that depend on a prior read (activation, backup-code consumption,
// disable) go through a version check so concurrent requests cannot both
// succeed, and a replayed backup code loses the race.
//
// # Usage
//
//	v, _ := vault.New(rootKey)
//	svc := mfa.NewService(mfa.NewMemoryStorage(), v, "StoryAI",
//	    mfa.WithNotifier(events),
//	    mfa.WithLimiter(limiter),
//	)
//
//	resp, err := svc.Setup(ctx, mfa.KindUser, userID)
//	// show resp.URI / resp.QRCode / resp.BackupCodes to the user
//	err = svc.VerifySetup(ctx, mfa.KindUser, userID, firstCode)
//
// # Error Handling
//
// Operations return package sentinels matched with errors.Is: ErrNotFound,
// ErrMismatch, ErrInvalidFormat, ErrRateLimited, ErrAlreadyEnabled, and
// ErrConflict for lost version races. All of them are caller-recoverable.
package mfa
