package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("TARIFF_POSTGRES_DSN", "postgres://tariff@localhost/tariff")
	t.Setenv("TARIFF_JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8084", cfg.HTTPAddress())
	assert.Equal(t, StoragePostgres, cfg.Storage.Driver)
	assert.Equal(t, 2*time.Second, cfg.Tariff.LockTimeout)
	assert.False(t, cfg.RedisEnabled())

	rate, err := cfg.DefaultGlobalRate()
	require.NoError(t, err)
	assert.True(t, rate.IsZero())
}

func TestLoadFromFileWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tariff.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  port: "9000"
storage:
  driver: memory
  seed:
    concessions: [MAK]
    customers: ["cust-1=MAK", "cust-2"]
redis:
  addr: localhost:6379
auth:
  jwtSecret: from-file
tariff:
  defaultGlobalRate: "5.00"
  lockTimeout: 500ms
  lockTTL: 5s
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("TARIFF_HTTP_PORT", ":9100")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.HTTPAddress())
	assert.Equal(t, StorageMemory, cfg.Storage.Driver)
	assert.Equal(t, []string{"cust-1=MAK", "cust-2"}, cfg.Storage.Seed.Customers)
	assert.True(t, cfg.RedisEnabled())
	assert.Equal(t, 500*time.Millisecond, cfg.Tariff.LockTimeout)

	rate, err := cfg.DefaultGlobalRate()
	require.NoError(t, err)
	assert.Equal(t, "5", rate.String())
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	cases := map[string]map[string]string{
		"missing dsn":    {"TARIFF_JWT_SECRET": "x"},
		"missing secret": {"TARIFF_STORAGE_DRIVER": "memory"},
		"unknown driver": {"TARIFF_STORAGE_DRIVER": "sqlite", "TARIFF_JWT_SECRET": "x"},
		"bad rate":       {"TARIFF_STORAGE_DRIVER": "memory", "TARIFF_JWT_SECRET": "x", "TARIFF_DEFAULT_GLOBAL_RATE": "-2"},
		"ttl too short":  {"TARIFF_STORAGE_DRIVER": "memory", "TARIFF_JWT_SECRET": "x", "TARIFF_LOCK_TTL": "1s", "TARIFF_LOCK_TIMEOUT": "3s"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("CONFIG_FILE", "")
			t.Setenv("TARIFF_POSTGRES_DSN", "")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
