package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	originalDir, _ := os.Getwd()
	tmpDir := t.TempDir()
	os.Chdir(tmpDir)
	defer os.Chdir(originalDir)

	cfg, err := Load()
	require.NoError(t, err)

	// Server defaults
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
	assert.False(t, cfg.Server.AllowUnsafeBehavior)

	// Redis defaults
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "", cfg.Redis.Password)
	assert.Equal(t, 0, cfg.Redis.DB)
	assert.Equal(t, 100, cfg.Redis.PoolSize)
	assert.Equal(t, 10, cfg.Redis.MinIdleConns)
	assert.Equal(t, 3, cfg.Redis.MaxRetries)

	// Reaper defaults
	assert.Equal(t, 5*time.Second, cfg.Reaper.PeriodicTaskInterval)
	assert.EqualValues(t, 500, cfg.Reaper.SweepLimit)

	// Queue defaults
	assert.Equal(t, 1000, cfg.Queue.RateLimitRPS)

	// Metrics defaults
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)

	// Auth defaults
	assert.False(t, cfg.Auth.Enabled)

	// Logging defaults
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_WithEnvVars(t *testing.T) {
	t.Skip("Environment variable binding test requires different setup")
}

func TestLoad_WithConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := tmpDir + "/config.yaml"

	configContent := `
server:
  host: "127.0.0.1"
  port: 9090
  allowunsafebehavior: true

redis:
  addr: "custom-redis:6380"
  password: "secret"
  db: 1

reaper:
  periodictaskinterval: 10s
  sweeplimit: 250

loglevel: "warn"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	originalDir, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(originalDir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Server.AllowUnsafeBehavior)
	assert.Equal(t, "custom-redis:6380", cfg.Redis.Addr)
	assert.Equal(t, "secret", cfg.Redis.Password)
	assert.Equal(t, 1, cfg.Redis.DB)
	assert.Equal(t, 10*time.Second, cfg.Reaper.PeriodicTaskInterval)
	assert.EqualValues(t, 250, cfg.Reaper.SweepLimit)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestServerConfig_Fields(t *testing.T) {
	cfg := ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
}

func TestRedisConfig_Fields(t *testing.T) {
	cfg := RedisConfig{
		Addr:         "redis:6379",
		Password:     "pass",
		DB:           1,
		PoolSize:     50,
		MinIdleConns: 5,
		MaxRetries:   5,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	assert.Equal(t, "redis:6379", cfg.Addr)
	assert.Equal(t, "pass", cfg.Password)
	assert.Equal(t, 1, cfg.DB)
}

func TestReaperConfig_Fields(t *testing.T) {
	cfg := ReaperConfig{
		PeriodicTaskInterval: 5 * time.Second,
		SweepLimit:           500,
	}

	assert.Equal(t, 5*time.Second, cfg.PeriodicTaskInterval)
	assert.EqualValues(t, 500, cfg.SweepLimit)
}

func TestQueueConfig_Fields(t *testing.T) {
	cfg := QueueConfig{RateLimitRPS: 1000}
	assert.Equal(t, 1000, cfg.RateLimitRPS)
}
