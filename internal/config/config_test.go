package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pixelboard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	c := Default()
	assert.Equal(t, ":8888", c.Server.Addr)
	assert.Equal(t, 3000, c.Server.GridSize)
	assert.True(t, *c.Server.Advertise)
	assert.Equal(t, DriverSQLite, c.Storage.Driver)
	assert.Equal(t, 3*time.Second, c.Client.ReconnectDelay)
	assert.Equal(t, 0.3, c.Client.Zoom)
	assert.Equal(t, 0.1, c.Client.MinZoom)
	assert.Equal(t, 40.0, c.Client.MaxZoom)
	assert.Equal(t, 256, c.SessionConfig().SendBuffer)
	require.NoError(t, c.Validate())
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
server:
  addr: ":9000"
  grid_size: 500
  advertise: false
  pong_wait: 30s
storage:
  driver: memory
client:
  name: Alice
  zoom: 2
log:
  level: debug
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", c.Server.Addr)
	assert.Equal(t, 500, c.Server.GridSize)
	assert.False(t, *c.Server.Advertise)
	assert.Equal(t, 30*time.Second, c.SessionConfig().PongWait)
	assert.Equal(t, DriverMemory, c.Storage.Driver)
	assert.Equal(t, "Alice", c.Client.Name)

	vc := c.ViewportConfig()
	assert.Equal(t, 500, vc.GridSize)
	assert.Equal(t, 2.0, vc.Zoom)

	lvl, err := ParseLevel(c.Log.Level)
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8888", c.Server.Addr)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "server:\n  addr: \":9000\"\n")
	t.Setenv("PIXELBOARD_ADDR", ":7000")
	t.Setenv("PIXELBOARD_STORAGE", "memory")
	t.Setenv("PIXELBOARD_DB", "/tmp/other.db")
	t.Setenv("PIXELBOARD_SERVER", "http://10.0.0.2:8888")
	t.Setenv("PIXELBOARD_LOG_LEVEL", "warn")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", c.Server.Addr)
	assert.Equal(t, DriverMemory, c.Storage.Driver)
	assert.Equal(t, "/tmp/other.db", c.Storage.Path)
	assert.Equal(t, "http://10.0.0.2:8888", c.Client.Server)
	assert.Equal(t, "warn", c.Log.Level)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "server: [1, 2"},
		{"unknown driver", "storage:\n  driver: postgres\n"},
		{"inverted zoom", "client:\n  min_zoom: 10\n  max_zoom: 2\n"},
		{"unknown level", "log:\n  level: loud\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.body))
			assert.Error(t, err)
		})
	}
}
