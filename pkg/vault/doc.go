// Package vault keeps TOTP secrets and backup codes unreadable to anyone with
// only read access to the record store.
//
// Values are sealed with AES-256-GCM under a key derived (HKDF-SHA-256, with
// domain separation) from a server-held 32-byte root key. The nonce is
// prepended to the ciphertext and the whole blob is base64 encoded, so the
// stored value is self-contained. The contract is "not plaintext at rest, and
// only the holder of the server key can read it"; authenticated encryption
// additionally rejects any blob that was tampered with in storage.
//
// The root key is loaded once per process from the VAULT_ENCRYPTION_KEY
// environment variable (base64, 32 bytes) or supplied directly to New.
package vault
