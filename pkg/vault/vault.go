package vault

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

const (
	// KeySize is the required size of the root key (AES-256).
	KeySize = 32

	// saltInfo provides HKDF domain separation so the same root key cannot
	// be reused by another subsystem with a compatible cipher.
	saltInfo = "account-trust-vault-v1"
)

// Vault seals and opens secret material with AES-256-GCM.
type Vault struct {
	aead cipher.AEAD
}

// New creates a Vault from a 32-byte root key. The working key is derived
// with HKDF-SHA-256 so the root key itself never touches the cipher.
func New(rootKey []byte) (*Vault, error) {
	if len(rootKey) != KeySize {
		return nil, ErrInvalidKeyLength
	}

	derived := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, rootKey, nil, []byte(saltInfo)), derived); err != nil {
		return nil, errors.Join(ErrKeyDerivationFailed, err)
	}

	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, errors.Join(ErrKeyDerivationFailed, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Join(ErrKeyDerivationFailed, err)
	}

	return &Vault{aead: aead}, nil
}

// NewFromConfig creates a Vault from the VAULT_ENCRYPTION_KEY environment
// variable (base64, 32 bytes).
func NewFromConfig() (*Vault, error) {
	loaded, err := LoadConfig()
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadKey, err)
	}

	key, err := base64.StdEncoding.DecodeString(loaded.EncryptionKey)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadKey, err)
	}
	if len(key) != KeySize {
		return nil, errors.Join(ErrFailedToLoadKey, ErrInvalidKeyLength)
	}

	return New(key)
}

// Obfuscate seals plaintext and returns a base64 blob with the nonce
// prepended to the ciphertext.
func (v *Vault) Obfuscate(plaintext string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.Join(ErrFailedToObfuscate, err)
	}

	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Reveal opens a blob produced by Obfuscate. Any tampering with the stored
// blob fails authentication and is reported as ErrFailedToReveal.
func (v *Vault) Reveal(blob string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", errors.Join(ErrFailedToReveal, ErrInvalidBlob, err)
	}

	nonceSize := v.aead.NonceSize()
	if len(sealed) < nonceSize {
		return "", errors.Join(ErrFailedToReveal, ErrInvalidBlob)
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := v.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", errors.Join(ErrFailedToReveal, err)
	}

	return string(plaintext), nil
}

// ObfuscateList seals a list of values (backup codes) as a single blob.
func (v *Vault) ObfuscateList(values []string) (string, error) {
	data, err := json.Marshal(values)
	if err != nil {
		return "", errors.Join(ErrFailedToObfuscate, err)
	}
	return v.Obfuscate(string(data))
}

// RevealList opens a blob produced by ObfuscateList.
func (v *Vault) RevealList(blob string) ([]string, error) {
	plaintext, err := v.Reveal(blob)
	if err != nil {
		return nil, err
	}

	var values []string
	if err := json.Unmarshal([]byte(plaintext), &values); err != nil {
		return nil, errors.Join(ErrFailedToReveal, err)
	}
	return values, nil
}

// GenerateKey creates a new random 32-byte root key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, errors.Join(ErrFailedToGenerateKey, err)
	}
	return key, nil
}

// GenerateEncodedKey creates a new random root key as a base64 string,
// suitable for storing in configuration.
func GenerateEncodedKey() (string, error) {
	key, err := GenerateKey()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}
