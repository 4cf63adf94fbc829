package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SERVER_ENVIRONMENT", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 14*24*time.Hour, cfg.Reconcile.LeadingWindow)
	assert.Equal(t, 14*24*time.Hour, cfg.Reconcile.TrailingWindow)
	assert.Equal(t, 3, cfg.Jobs.MaxAttempts)
	assert.Equal(t, "localhost:6379", cfg.GetRedisAddr())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SERVER_ENVIRONMENT", "development")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("RECONCILE_LEADING_WINDOW", "48h")
	t.Setenv("SERVER_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 48*time.Hour, cfg.Reconcile.LeadingWindow)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Contains(t, cfg.GetDatabaseDSN(), "host=db.internal")
}

func TestValidate_ProductionRequiresAdminSecret(t *testing.T) {
	cfg := &Config{
		Server:    ServerConfig{Environment: "production", WebhookConcurrency: 1},
		Jobs:      JobsConfig{Workers: 1, MaxAttempts: 1},
		Reconcile: ReconcileConfig{Concurrency: 1},
	}
	assert.Error(t, cfg.Validate())

	cfg.Admin.JWTSecret = "secret"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_RejectsZeroWorkers(t *testing.T) {
	cfg := &Config{
		Server:    ServerConfig{Environment: "development", WebhookConcurrency: 1},
		Jobs:      JobsConfig{Workers: 0, MaxAttempts: 1},
		Reconcile: ReconcileConfig{Concurrency: 1},
	}
	assert.Error(t, cfg.Validate())
}
