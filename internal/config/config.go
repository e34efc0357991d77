// Package config loads and validates service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"development"`
	Port        string `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	// QRSecret signs check-in QR payloads. Tamper-evidence only, not secrecy.
	QRSecret string `env:"QR_SECRET,required,notEmpty"`

	// RedisURL enables cross-instance fan-out when set.
	RedisURL string `env:"REDIS_URL"`

	// AMQPURL enables the external booking-event bus when set.
	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"vaxbook.events"`

	HoldTTL       time.Duration `env:"HOLD_TTL" envDefault:"10m"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"168h"`
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"1h"`
	CancelWindow  time.Duration `env:"CANCEL_WINDOW" envDefault:"24h"`

	MaxConnections      int64 `env:"MAX_CONNECTIONS" envDefault:"5000"`
	MaxConnectionsPerIP int   `env:"MAX_CONNECTIONS_PER_IP" envDefault:"20"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load parses the environment into a Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}

	if len(cfg.QRSecret) < 16 {
		return nil, fmt.Errorf("QR_SECRET must be at least 16 characters")
	}
	if cfg.HoldTTL <= 0 {
		return nil, fmt.Errorf("HOLD_TTL must be positive")
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("SESSION_TTL must be positive")
	}
	if cfg.CancelWindow < 0 {
		return nil, fmt.Errorf("CANCEL_WINDOW must not be negative")
	}

	// The exchange only matters when the bus is wired up.
	if cfg.AMQPURL != "" && cfg.AMQPExchange == "" {
		return nil, fmt.Errorf("AMQP_EXCHANGE is required when AMQP_URL is set")
	}

	return &cfg, nil
}
