package redis

import (
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	_ "github.com/joho/godotenv/autoload" // Load .env file automatically
)

var (
	cfg  Config
	once sync.Once
)

type Config struct {
	ConnectionURL  string        `env:"REDIS_URL,required"`
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`
}

// LoadConfig loads the redis configuration from the environment exactly once
// per process and caches it for subsequent calls.
func LoadConfig() (Config, error) {
	var err error
	once.Do(func() {
		var loaded Config
		if err = env.Parse(&loaded); err != nil {
			return
		}
		cfg = loaded
	})
	if err != nil {
		return Config{}, err
	}
	if cfg.ConnectionURL == "" {
		return Config{}, ErrFailedToParseConnString
	}
	return cfg, nil
}
