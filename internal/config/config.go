package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	Port        int    `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`

	HubBaseURL          string `env:"HUB_BASE_URL" envDefault:"http://localhost:4001"`
	HubDisplayName      string `env:"HUB_DISPLAY_NAME" envDefault:"DFSP Client"`
	SimulationMode      bool   `env:"SIMULATION_MODE" envDefault:"true"`
	HubTimeoutS         int    `env:"HUB_TIMEOUT_S" envDefault:"30"`
	HubMaxRetries       int    `env:"HUB_MAX_RETRIES" envDefault:"3"`
	HubBackoffInitialMS int    `env:"HUB_BACKOFF_INITIAL_MS" envDefault:"500"`

	BulkWorkers    int    `env:"BULK_WORKERS" envDefault:"2"`
	BulkQueueSize  int    `env:"BULK_QUEUE_SIZE" envDefault:"64"`
	RabbitURL      string `env:"RABBIT_URL"`
	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`

	SweepIntervalS int `env:"SWEEP_INTERVAL_S" envDefault:"60"`
	UploadGraceS   int `env:"UPLOAD_GRACE_S" envDefault:"120"`
	StaleAfterS    int `env:"STALE_AFTER_S" envDefault:"900"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

func (c *Config) HubTimeout() time.Duration {
	return time.Duration(c.HubTimeoutS) * time.Second
}

func (c *Config) HubBackoffInitial() time.Duration {
	return time.Duration(c.HubBackoffInitialMS) * time.Millisecond
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalS) * time.Second
}

func (c *Config) UploadGrace() time.Duration {
	return time.Duration(c.UploadGraceS) * time.Second
}

func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterS) * time.Second
}
