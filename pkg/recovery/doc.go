// Package recovery implements account-recovery options: a verified backup
// email and hashed security questions. Either channel lets a subject prove
// ownership after losing the primary factor, and the two are fully
// independent of each other.
//
// The backup-email channel is a challenge/response flow.
// StartEmailVerification issues a random six-digit code, delivers it to the
// address being enrolled, and returns a sealed token that binds the code to
// the outstanding challenge; VerifyEmailCode redeems token plus code within
// a fifteen-minute window and promotes the address to verified. Starting a
// new verification replaces any outstanding challenge, which doubles as the
// resend path.
//
// Security questions are stored as bcrypt hashes of normalized answers
// (trimmed, lowercased, inner whitespace collapsed). Between two and four
// questions may be saved, and verification accepts when at least two
// submitted answers match, regardless of how many were submitted. Callers
// only ever learn the aggregate pass or fail, never which answers were
// wrong.
//
// Every add or remove of a recovery option notifies the account's primary
// contact address, never the backup one, so compromising the backup channel
// alone cannot silently entrench access. Verification attempts run through
// the shared rate limiter.
//
// # Usage
//
//	svc := recovery.NewService(recovery.NewMemoryStorage(), tokenSecret,
//	    recovery.WithNotifier(events),
//	    recovery.WithDirectory(dir),
//	    recovery.WithLimiter(limiter),
//	)
//
//	start, err := svc.StartEmailVerification(ctx, recovery.KindUser, userID, email)
//	// user receives the code by email, client holds start.Token
//	err = svc.VerifyEmailCode(ctx, recovery.KindUser, userID, start.Token, code)
//
// # Error Handling
//
// Sentinels are matched with errors.Is: ErrInvalidEmail,
// ErrNoPendingVerification, ErrExpired, ErrCodeMismatch,
// ErrInvalidQuestions, ErrNotFound, ErrRateLimited, and ErrConflict for
// lost version races.
package recovery
