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
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8082", cfg.Server.HTTPPort)
	assert.Equal(t, "postgres", cfg.Server.Storage)
	assert.Equal(t, "colporter-transactions", cfg.Kafka.TransactionsTopic)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "inventory.yaml")
	content := `
environment: production
server:
  http_port: "9000"
  storage: memory
kafka:
  brokers: ["kafka-1:9092"]
jwt:
  ttl: 2h
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("HTTP_PORT", "9100")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "9100", cfg.Server.HTTPPort)
	assert.Equal(t, "memory", cfg.Server.Storage)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 2*time.Hour, cfg.JWT.TTL)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoadRejectsUnknownStorage(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("STORAGE", "mysql")

	_, err := Load()
	assert.Error(t, err)
}
