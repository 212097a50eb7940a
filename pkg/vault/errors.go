package vault

import "errors"

var (
	ErrFailedToObfuscate   = errors.New("failed to obfuscate value")
	ErrFailedToReveal      = errors.New("failed to reveal value")
	ErrInvalidBlob         = errors.New("invalid blob format")
	ErrInvalidKeyLength    = errors.New("invalid encryption key length, must be 32 bytes")
	ErrFailedToGenerateKey = errors.New("failed to generate encryption key")
	ErrKeyDerivationFailed = errors.New("key derivation failed")
	ErrEncryptionKeyNotSet = errors.New("vault encryption key not set")
	ErrFailedToLoadKey     = errors.New("failed to load vault encryption key")
)
