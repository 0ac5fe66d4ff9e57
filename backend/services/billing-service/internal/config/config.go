package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "careportal/backend/libs/config"
)

// Config defines billing service configuration.
type Config struct {
	HTTP struct {
		Port string `yaml:"port" env:"BILLING_HTTP_PORT"`
	} `yaml:"http"`
	Database struct {
		DSN string `yaml:"dsn" env:"BILLING_POSTGRES_DSN"`
	} `yaml:"database"`
	Auth struct {
		JWTSecret string `yaml:"jwtSecret" env:"BILLING_JWT_SECRET"`
	} `yaml:"auth"`
	Tariff struct {
		BaseURL string        `yaml:"baseURL" env:"BILLING_TARIFF_URL"`
		Timeout time.Duration `yaml:"timeout" env:"BILLING_TARIFF_TIMEOUT"`
	} `yaml:"tariff"`
}

// Load configuration from file/env.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.HTTP.Port = "8083"
	cfg.Tariff.BaseURL = "http://localhost:8084"
	cfg.Tariff.Timeout = 5 * time.Second

	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return nil, errors.New("config: database dsn required")
	}
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return nil, errors.New("config: jwt secret required")
	}
	if strings.TrimSpace(cfg.Tariff.BaseURL) == "" {
		return nil, errors.New("config: tariff service url required")
	}
	if cfg.Tariff.Timeout <= 0 {
		return nil, errors.New("config: tariff timeout must be positive")
	}
	return cfg, nil
}

// HTTPAddress returns :port style string.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8083"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}
