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
	t.Setenv("WARROOM_STORE_DRIVER", "memory")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.MetricsPort)
	assert.Equal(t, "memory", cfg.Broadcast.Driver)
	assert.Equal(t, "war-room", cfg.Live.Room)
	assert.Equal(t, 30*time.Second, cfg.Telemetry.Interval)
	assert.Equal(t, "incident-events", cfg.Analytics.Topic)
	assert.False(t, cfg.Analytics.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: "9999"
store:
  driver: memory
broadcast:
  driver: redis
  redisaddr: redis:6379
live:
  room: ops-room
telemetry:
  interval: 5s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Broadcast.Driver)
	assert.Equal(t, "redis:6379", cfg.Broadcast.RedisAddr)
	assert.Equal(t, "ops-room", cfg.Live.Room)
	assert.Equal(t, 5*time.Second, cfg.Telemetry.Interval)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  driver: memory\nserver:\n  port: \"9999\"\n"), 0o600))

	t.Setenv("WARROOM_SERVER_PORT", "7777")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7777", cfg.Server.Port)
}

func TestLoadValidation(t *testing.T) {
	t.Run("postgres requires url", func(t *testing.T) {
		t.Setenv("WARROOM_STORE_DRIVER", "postgres")

		_, err := Load("")
		assert.Error(t, err)
	})

	t.Run("unknown store driver", func(t *testing.T) {
		t.Setenv("WARROOM_STORE_DRIVER", "cassandra")

		_, err := Load("")
		assert.Error(t, err)
	})

	t.Run("unknown broadcast driver", func(t *testing.T) {
		t.Setenv("WARROOM_STORE_DRIVER", "memory")
		t.Setenv("WARROOM_BROADCAST_DRIVER", "nats")

		_, err := Load("")
		assert.Error(t, err)
	})
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}
