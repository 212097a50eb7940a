package pg

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
	ConnectionString  string        `env:"PG_CONN_URL,required"`
	MaxOpenConns      int32         `env:"PG_MAX_OPEN_CONNS" envDefault:"10"`
	MinIdleConns      int32         `env:"PG_MIN_IDLE_CONNS" envDefault:"2"`
	HealthCheckPeriod time.Duration `env:"PG_HEALTHCHECK_PERIOD" envDefault:"1m"`
	MaxConnIdleTime   time.Duration `env:"PG_MAX_CONN_IDLE_TIME" envDefault:"10m"`
	MaxConnLifetime   time.Duration `env:"PG_MAX_CONN_LIFETIME" envDefault:"30m"`
	RetryAttempts     int           `env:"PG_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval     time.Duration `env:"PG_RETRY_INTERVAL" envDefault:"5s"`
}

// LoadConfig loads the postgres configuration from the environment exactly
// once per process and caches it for subsequent calls.
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
	if cfg.ConnectionString == "" {
		return Config{}, ErrFailedToParseConfig
	}
	return cfg, nil
}
