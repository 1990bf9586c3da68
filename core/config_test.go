package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "viewer.yaml")
	data := `
window:
  width: 800
  height: 600
server:
  base_url: http://example.test
  timeout: 5s
viewer:
  resize_debounce: 250ms
  points_threshold: 0.5
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 800, cfg.Window.Width)
	assert.Equal(t, 600, cfg.Window.Height)
	assert.Equal(t, "City Viewer", cfg.Window.Title, "unset keys keep defaults")
	assert.Equal(t, "http://example.test", cfg.Server.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Server.Timeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Viewer.ResizeDebounce)
	assert.Equal(t, float32(0.5), cfg.Viewer.PointsThreshold)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/ws", cfg.Bridge.Path)
}

func TestLoadConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "viewer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("window:\n  width: -1\n"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestSizeAspect(t *testing.T) {
	assert.Equal(t, float32(2), Size{Width: 200, Height: 100}.Aspect())
	assert.Equal(t, float32(1), Size{Width: 200}.Aspect())
	assert.True(t, Size{Width: 10}.Empty())
}
