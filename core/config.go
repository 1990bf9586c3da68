package core

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type WindowConfig struct {
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	Title     string `yaml:"title"`
	Resizable bool   `yaml:"resizable"`
	VSync     bool   `yaml:"vsync"`
}

func DefaultWindowConfig() WindowConfig {
	return WindowConfig{
		Width:     1280,
		Height:    720,
		Title:     "City Viewer",
		Resizable: true,
		VSync:     true,
	}
}

// ServerConfig points at the server holding the authoritative city models.
type ServerConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// ViewerConfig tunes the scene engine.
type ViewerConfig struct {
	ResizeDebounce  time.Duration `yaml:"resize_debounce"`
	PointsThreshold float32       `yaml:"points_threshold"`
	ClearColor      [4]float32    `yaml:"clear_color"`
	// ModelDir, when set, makes loaders read <dir>/<model id>.json or .glb
	// instead of fetching from the server.
	ModelDir string `yaml:"model_dir"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// BridgeConfig configures the WebSocket bridge. An empty Listen disables it.
type BridgeConfig struct {
	Listen string `yaml:"listen"`
	Path   string `yaml:"path"`
}

// Config is the full viewer configuration.
type Config struct {
	Window WindowConfig `yaml:"window"`
	Server ServerConfig `yaml:"server"`
	Viewer ViewerConfig `yaml:"viewer"`
	Log    LogConfig    `yaml:"log"`
	Bridge BridgeConfig `yaml:"bridge"`
}

func DefaultConfig() Config {
	return Config{
		Window: DefaultWindowConfig(),
		Server: ServerConfig{
			BaseURL: "http://localhost:3001",
			Timeout: 30 * time.Second,
		},
		Viewer: ViewerConfig{
			ResizeDebounce:  DefaultResizeDelay,
			PointsThreshold: 1,
			ClearColor:      [4]float32{0, 0, 0, 1},
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Bridge: BridgeConfig{
			Path: "/ws",
		},
	}
}

// LoadConfig reads a YAML file over DefaultConfig. A missing file is not an
// error; the defaults are returned unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the engine cannot work with.
func (c Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("window size %dx%d must be positive", c.Window.Width, c.Window.Height)
	}
	if c.Viewer.ResizeDebounce < 0 {
		return fmt.Errorf("viewer.resize_debounce must not be negative")
	}
	if c.Viewer.PointsThreshold < 0 {
		return fmt.Errorf("viewer.points_threshold must not be negative")
	}
	if c.Server.Timeout < 0 {
		return fmt.Errorf("server.timeout must not be negative")
	}
	return nil
}

// ClearColor returns the viewer background colour.
func (c Config) ClearColor() Color {
	cc := c.Viewer.ClearColor
	return Color{R: cc[0], G: cc[1], B: cc[2], A: cc[3]}
}
