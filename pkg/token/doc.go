// Package token provides compact sealed tokens for embedding JSON payloads
// that the client must be able to carry but not read.
//
// Payloads are encrypted with AES-256-GCM under a key derived from the
// server-held secret, then base64url encoded. Sealing rather than signing
// matters here: the recovery email challenge token embeds the expected code,
// so a merely signed token would hand the answer to the client. GCM also
// authenticates, so a tampered token fails with ErrTokenInvalid.
//
// # Usage
//
//	type Challenge struct {
//	    Email    string `json:"email"`
//	    Code     string `json:"code"`
//	    ExpireAt int64  `json:"exp"`
//	}
//
//	tok, err := token.Seal(Challenge{...}, secret)
//	// later
//	ch, err := token.Open[Challenge](tok, secret)
//
// Tokens are single-purpose and short-lived; expiry is carried as payload
// data and enforced by the caller.
package token
