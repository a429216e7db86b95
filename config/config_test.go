package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("ADMIN_PASSWORD", "hunter2")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, DriverMongo, cfg.Store.Driver)
	assert.Equal(t, "contributions", cfg.Store.DBName)
	assert.Equal(t, "admin", cfg.Auth.AdminUsername)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, []string{"*"}, cfg.HTTP.CORSOrigins)
	assert.Equal(t, 10*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 1, cfg.Export.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Export.RetryDelay)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.False(t, cfg.Store.SeedCampaign)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("SQLITE_PATH", "/tmp/c.db")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("EXPORT_MAX_ATTEMPTS", "3")
	t.Setenv("EXPORT_RETRY_DELAY", "500ms")
	t.Setenv("SEED_DEFAULT_CAMPAIGN", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "/tmp/c.db", cfg.Store.SQLitePath)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 3, cfg.Export.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Export.RetryDelay)
	assert.True(t, cfg.Store.SeedCampaign)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoadCollectsErrors(t *testing.T) {
	t.Setenv("MONGO_URI", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("ADMIN_PASSWORD", "")
	t.Setenv("PORT", "eighty")
	t.Setenv("EXPORT_MAX_ATTEMPTS", "0")

	_, err := Load()
	require.Error(t, err)
	for _, want := range []string{
		"MONGO_URI is required",
		"JWT_SECRET is required",
		"ADMIN_PASSWORD is required",
		"PORT must be a valid integer",
		"EXPORT_MAX_ATTEMPTS must be at least 1",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	setRequired(t)
	t.Setenv("STORE_DRIVER", "postgres")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE_DRIVER")
}
