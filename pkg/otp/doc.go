// Package otp implements the one-time-password primitives used by the
// account-trust subsystem: RFC 4226 HOTP, RFC 6238 TOTP with a configurable
// clock-drift window, provisioning URI construction for authenticator apps,
// and single-use backup codes.
//
// The package is deliberately self-contained. It performs no I/O, holds no
// state, and knows nothing about storage or encryption; callers are expected
// to pass secrets through the vault package before persisting them.
//
// # Usage
//
//	secret, _ := otp.GenerateSecret()
//	uri, _ := otp.ProvisioningURI(otp.Params{
//	    Secret:      secret,
//	    AccountName: "alice@example.com",
//	    Issuer:      "StoryAI",
//	})
//	// render uri as a QR code, then later:
//	ok, err := otp.VerifyTOTP(secret, "123456", otp.DefaultWindow, time.Now())
//
// # Error Handling
//
// Malformed candidate codes are rejected with ErrInvalidFormat before any
// comparison work happens. Code comparison itself uses crypto/subtle to stay
// constant-time.
//
// # See Also
//
//   - RFC 4226 – HMAC-Based One-Time Password (HOTP) Algorithm
//   - RFC 6238 – Time-Based One-Time Password (TOTP) Algorithm
package otp
