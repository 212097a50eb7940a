package vault

import (
	"sync"

	"github.com/caarlos0/env/v11"
	_ "github.com/joho/godotenv/autoload" // Load .env file automatically
)

var (
	cfg  Config
	once sync.Once
)

type Config struct {
	EncryptionKey string `env:"VAULT_ENCRYPTION_KEY,required"` // Base64-encoded 32-byte root key
}

// LoadConfig loads the vault configuration from the environment exactly once
// per process and caches it for subsequent calls.
func LoadConfig() (Config, error) {
	var err error
	once.Do(func() {
		var loaded Config
		if err = env.Parse(&loaded); err != nil {
			return
		}
		if loaded.EncryptionKey == "" {
			err = ErrEncryptionKeyNotSet
			return
		}
		cfg = loaded
	})
	if err != nil {
		return Config{}, err
	}
	if cfg.EncryptionKey == "" {
		return Config{}, ErrEncryptionKeyNotSet
	}
	return cfg, nil
}
