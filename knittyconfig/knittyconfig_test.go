package knittyconfig

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Port)
	assert.True(t, cfg.Disk.SaveOnExit)
	assert.False(t, cfg.Disk.SaveRaw)
	assert.False(t, cfg.Monitor.Enabled)
}

func TestLoadFromMissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadFrom(filepath.Join(dir, "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestSaveToThenLoadFromRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := DefaultConfig()
	cfg.Serial.Port = "/dev/ttyS1"
	cfg.Disk.SaveRaw = true
	cfg.Monitor.Enabled = true
	cfg.Monitor.Addr = "0.0.0.0:9000"

	require.NoError(t, cfg.SaveTo(path))

	got, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestSaveToCreatesParentDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")

	cfg := DefaultConfig()
	require.NoError(t, cfg.SaveTo(path))

	_, err := LoadFrom(path)
	require.NoError(t, err)
}
