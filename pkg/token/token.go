package token

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

// saltInfo separates token keys from any other use of the same secret.
const saltInfo = "sealed-token-v1"

var (
	ErrEmptySecret  = errors.New("empty token secret")
	ErrTokenInvalid = errors.New("invalid token")
	ErrSealFailed   = errors.New("failed to seal token")
)

// Seal encrypts the JSON-encoded payload and returns a base64url token.
func Seal[T any](payload T, secret string) (string, error) {
	aead, err := newAEAD(secret)
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", errors.Join(ErrSealFailed, err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.Join(ErrSealFailed, err)
	}

	sealed := aead.Seal(nonce, nonce, data, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open decrypts and authenticates a token produced by Seal with the same
// secret, decoding the payload into the generic type. Any malformed,
// tampered, or foreign-key token fails with ErrTokenInvalid.
func Open[T any](tok string, secret string) (T, error) {
	var payload T

	aead, err := newAEAD(secret)
	if err != nil {
		return payload, err
	}

	sealed, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil {
		return payload, errors.Join(ErrTokenInvalid, err)
	}

	nonceSize := aead.NonceSize()
	if len(sealed) < nonceSize {
		return payload, ErrTokenInvalid
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	data, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return payload, ErrTokenInvalid
	}

	if err := json.Unmarshal(data, &payload); err != nil {
		return payload, errors.Join(ErrTokenInvalid, err)
	}

	return payload, nil
}

func newAEAD(secret string) (cipher.AEAD, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(saltInfo)), key); err != nil {
		return nil, errors.Join(ErrSealFailed, err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Join(ErrSealFailed, err)
	}
	return cipher.NewGCM(block)
}
