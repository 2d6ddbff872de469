package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutPath(t *testing.T) {
	t.Setenv("SCRIPTCORE_CONFIG", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Dispatcher.TickRateHz)
	assert.Equal(t, 40*time.Millisecond, cfg.Dispatcher.TickPeriod())
	assert.Equal(t, "none", cfg.Snapshot.Backend)
}

func TestLoad_OverridesFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scriptcore.yaml")
	data := []byte(`
dispatcher:
  tick_rate_hz: 50
  shutdown_timeout_seconds: 3
api:
  addr: ":9000"
snapshot:
  backend: badger
  region: lobby
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 20*time.Millisecond, cfg.Dispatcher.TickPeriod())
	assert.Equal(t, 3*time.Second, cfg.Dispatcher.ShutdownWait())
	assert.Equal(t, ":9000", cfg.API.GetAddr())
	assert.Equal(t, "badger", cfg.Snapshot.Backend)
	assert.Equal(t, "lobby", cfg.Snapshot.Region)
	// Не указанные поля остаются дефолтными
	assert.Equal(t, "scriptcore:snapshot:", cfg.Snapshot.KeyPrefix)
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("SCRIPTCORE_CONFIG", "")
	t.Setenv("SCRIPTCORE_TICK_RATE", "10")
	t.Setenv("SCRIPTCORE_SHUTDOWN_TIMEOUT", "3")
	t.Setenv("SCRIPTCORE_API_ADDR", ":7000")
	t.Setenv("SCRIPTCORE_NATS_URL", "nats://127.0.0.1:4222")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Dispatcher.TickRate())
	assert.Equal(t, 100*time.Millisecond, cfg.Dispatcher.TickPeriod())
	assert.Equal(t, 3*time.Second, cfg.Dispatcher.ShutdownWait())
	assert.Equal(t, ":7000", cfg.API.GetAddr())
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.GetURL())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scriptcore.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dispatcher:\n  tick_rate_hz: 50\n"), 0o644))
	t.Setenv("SCRIPTCORE_TICK_RATE", "30")
	t.Setenv("SCRIPTCORE_SHUTDOWN_TIMEOUT", "not-a-number")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Dispatcher.TickRate())
	assert.Equal(t, 10*time.Second, cfg.Dispatcher.ShutdownWait(), "мусор в env игнорируется")
}

func TestZeroConfigDefaults(t *testing.T) {
	d := DispatcherConfig{}
	assert.Equal(t, 25, d.TickRate())
	assert.Equal(t, 10*time.Second, d.ShutdownWait())
	a := APIConfig{}
	assert.Equal(t, ":8089", a.GetAddr())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
