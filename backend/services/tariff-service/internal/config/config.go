package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	libconfig "careportal/backend/libs/config"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config defines tariff service configuration.
type Config struct {
	HTTP struct {
		Port string `yaml:"port" env:"TARIFF_HTTP_PORT"`
	} `yaml:"http"`
	Storage struct {
		Driver string `yaml:"driver" env:"TARIFF_STORAGE_DRIVER"`
		// Seed populates the memory driver's directory. Customers are "id" or "id=concession".
		Seed struct {
			Concessions []string `yaml:"concessions" env:"TARIFF_SEED_CONCESSIONS"`
			Customers   []string `yaml:"customers" env:"TARIFF_SEED_CUSTOMERS"`
		} `yaml:"seed"`
	} `yaml:"storage"`
	Database struct {
		DSN string `yaml:"dsn" env:"TARIFF_POSTGRES_DSN"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr" env:"TARIFF_REDIS_ADDR"`
		Password string `yaml:"password" env:"TARIFF_REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"TARIFF_REDIS_DB"`
	} `yaml:"redis"`
	Auth struct {
		JWTSecret string `yaml:"jwtSecret" env:"TARIFF_JWT_SECRET"`
	} `yaml:"auth"`
	Tariff struct {
		DefaultGlobalRate string        `yaml:"defaultGlobalRate" env:"TARIFF_DEFAULT_GLOBAL_RATE"`
		LockTimeout       time.Duration `yaml:"lockTimeout" env:"TARIFF_LOCK_TIMEOUT"`
		LockTTL           time.Duration `yaml:"lockTTL" env:"TARIFF_LOCK_TTL"`
	} `yaml:"tariff"`
}

// Load configuration from file/env.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.HTTP.Port = "8084"
	cfg.Storage.Driver = StoragePostgres
	cfg.Tariff.LockTimeout = 2 * time.Second
	cfg.Tariff.LockTTL = 10 * time.Second

	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	switch c.Storage.Driver {
	case StoragePostgres:
		if strings.TrimSpace(c.Database.DSN) == "" {
			return errors.New("config: database dsn required")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("config: jwt secret required")
	}
	if c.Tariff.LockTimeout <= 0 {
		return errors.New("config: tariff lock timeout must be positive")
	}
	if c.Tariff.LockTTL < c.Tariff.LockTimeout {
		return errors.New("config: tariff lock ttl must not be shorter than the lock timeout")
	}
	if _, err := c.DefaultGlobalRate(); err != nil {
		return err
	}
	return nil
}

// DefaultGlobalRate is the rate written at startup when no global rate exists yet.
// It reports decimal.Zero when bootstrapping is disabled.
func (c *Config) DefaultGlobalRate() (decimal.Decimal, error) {
	raw := strings.TrimSpace(c.Tariff.DefaultGlobalRate)
	if raw == "" {
		return decimal.Zero, nil
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil || !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("config: invalid default global rate %q", raw)
	}
	return rate, nil
}

// RedisEnabled reports whether writers lock through Redis.
func (c *Config) RedisEnabled() bool {
	return strings.TrimSpace(c.Redis.Addr) != ""
}

// HTTPAddress returns :port style string.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8084"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}
