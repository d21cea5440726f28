package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hakimelghazi/matching-core/internal/engine"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "tcp", cfg.Listen.Network)
	assert.Equal(t, "127.0.0.1:7070", cfg.Listen.Address)
	assert.Equal(t, "127.0.0.1:8080", cfg.HTTP.Address)
	assert.Equal(t, engine.ScopeSession, cfg.CancelScope())
	assert.True(t, cfg.Output.Stdout)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "matcher.events", cfg.Kafka.Topic)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 5*time.Second, cfg.Shutdown.Timeout)
	assert.Zero(t, cfg.MarketData.ReportInterval)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matcher.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen:
  address: 0.0.0.0:9000
cancel:
  scope: global
kafka:
  brokers: [localhost:9092]
log:
  level: debug
`), 0o600))
	t.Setenv("MATCHER_LOG_LEVEL", "warn")
	t.Setenv("MATCHER_SHUTDOWN_TIMEOUT", "250ms")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Listen.Address)
	assert.Equal(t, engine.ScopeGlobal, cfg.CancelScope())
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "warn", cfg.Log.Level, "env overrides file")
	assert.Equal(t, 250*time.Millisecond, cfg.Shutdown.Timeout)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("MATCHER_CANCEL_SCOPE", "everyone")
	t.Setenv("MATCHER_LISTEN_NETWORK", "udp")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancel.scope")
	assert.Contains(t, err.Error(), "listen.network")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
