package config

import (
	"errors"
	"fmt"
	"time"

	jlconfig "github.com/JeremyLoy/config"
)

// Config is loaded from the environment. Field names map to SNAKE_CASE variables.
type Config struct {
	Port        string `config:"PORT"`
	GRPCPort    string `config:"GRPC_PORT"`
	Environment string `config:"ENVIRONMENT"`
	LogLevel    string `config:"LOG_LEVEL"`

	LotteryAPIURL       string `config:"LOTTERY_API_URL"`
	LotteryAPITimeoutMs int    `config:"LOTTERY_API_TIMEOUT_MS"`
	DramaDelayMinMs     int    `config:"DRAMA_DELAY_MIN_MS"`
	DramaDelayMaxMs     int    `config:"DRAMA_DELAY_MAX_MS"`
	ConfettiPieces      int    `config:"CONFETTI_PIECES"`
	ViewIdleTimeoutSec  int    `config:"VIEW_IDLE_TIMEOUT_SEC"`

	NATSURL     string `config:"NATS_URL"`
	NATSSubject string `config:"NATS_SUBJECT"`

	DBDriver    string `config:"DB_DRIVER"`
	SQLiteFile  string `config:"SQLITE_FILE"`
	DatabaseURL string `config:"DATABASE_URL"`
	RedisURL    string `config:"REDIS_URL"`

	ClickHouseAddr     string `config:"CLICKHOUSE_ADDR"`
	ClickHouseDB       string `config:"CLICKHOUSE_DB"`
	ClickHouseUser     string `config:"CLICKHOUSE_USER"`
	ClickHousePassword string `config:"CLICKHOUSE_PASSWORD"`
}

// Default returns the configuration used when no environment overrides are set.
func Default() Config {
	return Config{
		Port:                "3000",
		GRPCPort:            "50051",
		Environment:         "development",
		LogLevel:            "info",
		LotteryAPIURL:       "http://localhost:5000/api",
		LotteryAPITimeoutMs: 15000,
		DramaDelayMinMs:     3000,
		DramaDelayMaxMs:     10000,
		ConfettiPieces:      200,
		ViewIdleTimeoutSec:  1800,
		NATSURL:             "nats://localhost:4222",
		NATSSubject:         "draft.events",
		DBDriver:            "memory",
		SQLiteFile:          "dev.sqlite",
		ClickHouseAddr:      "localhost:9000",
		ClickHouseDB:        "default",
		ClickHouseUser:      "default",
	}
}

// Load overlays environment variables on top of Default and validates the result.
func Load() (Config, error) {
	cfg := Default()
	if err := jlconfig.FromEnv().To(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var (
	ErrDelayRange    = errors.New("drama delay range is invalid")
	ErrUnknownDriver = errors.New("unknown DB_DRIVER")
)

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	if c.DramaDelayMinMs < 0 || c.DramaDelayMaxMs < c.DramaDelayMinMs {
		return fmt.Errorf("%w: min=%dms max=%dms", ErrDelayRange, c.DramaDelayMinMs, c.DramaDelayMaxMs)
	}
	switch c.DBDriver {
	case "memory", "sqlite", "postgres", "redis":
	default:
		return fmt.Errorf("%w: %s (valid: memory, sqlite, postgres, redis)", ErrUnknownDriver, c.DBDriver)
	}
	if c.DBDriver == "postgres" && c.DatabaseURL == "" {
		return errors.New("DATABASE_URL environment variable is required for postgres driver")
	}
	if c.DBDriver == "redis" && c.RedisURL == "" {
		return errors.New("REDIS_URL environment variable is required for redis driver")
	}
	return nil
}

// IsDevelopment reports whether in-process stand-ins (embedded NATS, mock analytics) should be used.
func (c Config) IsDevelopment() bool {
	return c.Environment == "" || c.Environment == "development"
}

func (c Config) DramaDelayMin() time.Duration {
	return time.Duration(c.DramaDelayMinMs) * time.Millisecond
}

func (c Config) DramaDelayMax() time.Duration {
	return time.Duration(c.DramaDelayMaxMs) * time.Millisecond
}

func (c Config) LotteryAPITimeout() time.Duration {
	return time.Duration(c.LotteryAPITimeoutMs) * time.Millisecond
}

func (c Config) ViewIdleTimeout() time.Duration {
	return time.Duration(c.ViewIdleTimeoutSec) * time.Second
}
