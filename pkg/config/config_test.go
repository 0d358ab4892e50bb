package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 24, cfg.JWT.ExpirationHours)
	assert.Equal(t, time.Hour, cfg.DB.ConnMaxLifetime)
	assert.False(t, cfg.Broker.Enabled())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crm.yaml")
	content := `
server:
  port: "9000"
  env: production
db:
  driver: sqlite
  path: /tmp/crm.db
  conn_max_lifetime: 30m
broker:
  host: rabbit.local
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("SERVER_PORT", "9100")
	t.Setenv("JWT_EXPIRATION_HOURS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Server.Port)
	assert.Equal(t, "production", cfg.Server.Env)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, "/tmp/crm.db", cfg.DB.Path)
	assert.Equal(t, 30*time.Minute, cfg.DB.ConnMaxLifetime)
	assert.Equal(t, 24, cfg.JWT.ExpirationHours)
	assert.True(t, cfg.Broker.Enabled())
	assert.Equal(t, "work_orders", cfg.Broker.Exchange)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestGormLogLevel(t *testing.T) {
	tests := map[string]logger.LogLevel{
		"silent":  logger.Silent,
		"error":   logger.Error,
		"warn":    logger.Warn,
		"info":    logger.Info,
		"unknown": logger.Info,
	}
	for level, want := range tests {
		c := DBConfig{LogLevel: level}
		assert.Equal(t, want, c.GormLogLevel(), level)
	}
}

func TestGetDSN(t *testing.T) {
	c := DBConfig{Host: "db", Port: "5433", User: "u", Password: "p", DBName: "crm", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=crm sslmode=disable", c.GetDSN())
}
