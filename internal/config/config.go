// Package config loads PixelBoard settings from an optional YAML file and
// the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"PixelBoard/internal/hub"
	"PixelBoard/internal/state"
	"PixelBoard/internal/viewport"
)

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config is the top-level configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Client  ClientConfig  `yaml:"client"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig controls the hosting side.
type ServerConfig struct {
	Addr       string        `yaml:"addr"`
	GridSize   int           `yaml:"grid_size"`
	Advertise  *bool         `yaml:"advertise"`
	SendBuffer int           `yaml:"send_buffer"`
	WriteWait  time.Duration `yaml:"write_wait"`
	PongWait   time.Duration `yaml:"pong_wait"`
}

// StorageConfig selects the grid store.
type StorageConfig struct {
	Driver string `yaml:"driver"` // sqlite | memory
	Path   string `yaml:"path"`
}

// ClientConfig controls the desktop client.
type ClientConfig struct {
	// Server is the base URL to join. Empty means host locally.
	Server         string        `yaml:"server"`
	Name           string        `yaml:"name"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	CellSize       float64       `yaml:"cell_size"`
	Zoom           float64       `yaml:"zoom"`
	MinZoom        float64       `yaml:"min_zoom"`
	MaxZoom        float64       `yaml:"max_zoom"`
}

// LogConfig controls slog.
type LogConfig struct {
	Level string `yaml:"level"` // debug | info | warn | error
}

// Default returns the configuration used without a file.
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

// Load reads path if it exists, fills defaults and applies environment
// overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv(os.Getenv)
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8888"
	}
	if c.Server.GridSize <= 0 {
		c.Server.GridSize = state.DefaultGridSize
	}
	if c.Server.Advertise == nil {
		on := true
		c.Server.Advertise = &on
	}
	d := hub.DefaultSessionConfig()
	if c.Server.SendBuffer <= 0 {
		c.Server.SendBuffer = d.SendBuffer
	}
	if c.Server.WriteWait <= 0 {
		c.Server.WriteWait = d.WriteWait
	}
	if c.Server.PongWait <= 0 {
		c.Server.PongWait = d.PongWait
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverSQLite
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "pixelboard.db"
	}
	if c.Client.ReconnectDelay <= 0 {
		c.Client.ReconnectDelay = 3 * time.Second
	}
	if c.Client.CellSize <= 0 {
		c.Client.CellSize = viewport.DefaultCellSize
	}
	if c.Client.Zoom <= 0 {
		c.Client.Zoom = viewport.DefaultZoom
	}
	if c.Client.MinZoom <= 0 {
		c.Client.MinZoom = viewport.DefaultMinZoom
	}
	if c.Client.MaxZoom <= 0 {
		c.Client.MaxZoom = viewport.DefaultMaxZoom
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) applyEnv(getenv func(string) string) {
	env := func(k string, dst *string) {
		if v := getenv(k); v != "" {
			*dst = v
		}
	}
	env("PIXELBOARD_ADDR", &c.Server.Addr)
	env("PIXELBOARD_DB", &c.Storage.Path)
	env("PIXELBOARD_STORAGE", &c.Storage.Driver)
	env("PIXELBOARD_SERVER", &c.Client.Server)
	env("PIXELBOARD_LOG_LEVEL", &c.Log.Level)
}

// Validate rejects settings the program cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	if c.Client.MinZoom > c.Client.MaxZoom {
		return fmt.Errorf("config: min_zoom %.2f above max_zoom %.2f", c.Client.MinZoom, c.Client.MaxZoom)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// SessionConfig returns the hub session settings.
func (c *Config) SessionConfig() hub.SessionConfig {
	return hub.SessionConfig{
		SendBuffer: c.Server.SendBuffer,
		WriteWait:  c.Server.WriteWait,
		PongWait:   c.Server.PongWait,
	}
}

// ViewportConfig returns the client's view settings for the server's grid.
func (c *Config) ViewportConfig() viewport.Config {
	return viewport.Config{
		GridSize: c.Server.GridSize,
		CellSize: c.Client.CellSize,
		Zoom:     c.Client.Zoom,
		MinZoom:  c.Client.MinZoom,
		MaxZoom:  c.Client.MaxZoom,
	}
}

// ParseLevel maps a level name onto slog.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("config: unknown log level %q", s)
	}
}
