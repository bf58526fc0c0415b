package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfigFile(t, "server:\n  port: 9090\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "data/process-engine.db", cfg.Database.Path)
	assert.Equal(t, 60*time.Second, cfg.Engine.SweepInterval)
	assert.Equal(t, 100, cfg.Engine.SweepBatchSize)
	assert.Equal(t, 10*time.Second, cfg.Notifier.Timeout)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "json", cfg.Logger.Format)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 3000
database:
  path: /tmp/engine.db
engine:
  sweep_interval: 15s
  sweep_batch_size: 25
notifier:
  webhook_url: https://hooks.example.com/process
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "/tmp/engine.db", cfg.Database.Path)
	assert.Equal(t, 15*time.Second, cfg.Engine.SweepInterval)
	assert.Equal(t, 25, cfg.Engine.SweepBatchSize)
	assert.Equal(t, "https://hooks.example.com/process", cfg.Notifier.WebhookURL)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("DATABASE_PATH", "/var/lib/engine.db")
	path := writeConfigFile(t, "database:\n  path: /tmp/engine.db\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/engine.db", cfg.Database.Path)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad port", "server:\n  port: -1\n"},
		{"zero sweep interval", "engine:\n  sweep_interval: 0s\n"},
		{"zero batch size", "engine:\n  sweep_batch_size: 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfigFile(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		Server:   ServerConfig{Port: 8080},
		Database: DatabaseConfig{Path: "data/engine.db"},
		Engine:   EngineConfig{SweepInterval: time.Minute, SweepBatchSize: 100},
	}
	assert.NoError(t, valid.Validate())

	noDB := valid
	noDB.Database.Path = ""
	assert.Error(t, noDB.Validate())
}
