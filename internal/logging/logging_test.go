package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"city-viewer/core"
)

func TestNewRejectsBadLevel(t *testing.T) {
	_, _, err := New(core.LogConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestFileAndConsole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "viewer.log")
	var console bytes.Buffer

	logger, closeFn, err := build(core.LogConfig{File: path, MaxSizeMB: 1}, zapcore.InfoLevel, zapcore.AddSync(&console))
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("city model loaded", zap.String("model", "delft"))
	closeFn()

	assert.Contains(t, console.String(), "city model loaded")
	assert.NotContains(t, console.String(), "hidden")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "city model loaded", entry["msg"])
	assert.Equal(t, "delft", entry["model"])
	assert.Equal(t, "info", entry["level"])
}
