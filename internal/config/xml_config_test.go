package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_CreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Electric8.config")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.FileExists(t, path)
	assert.Equal(t, 8089, cfg.Server.Port)
	assert.True(t, cfg.Decoding.ValidateSchema)
	assert.Equal(t, filepath.Join(dir, "data", "uploads"), cfg.GetUploadDir())
	assert.Equal(t, filepath.Join(dir, "data", "catalog.duckdb"), cfg.Storage.CatalogPath)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<Electric8>")
}

func TestLoadConfig_ReadsFileAndKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Electric8.config")
	require.NoError(t, os.WriteFile(path, []byte(`<?xml version="1.0" encoding="UTF-8"?>
<Electric8>
  <Server><Port>9000</Port><BindAddress>127.0.0.1</BindAddress></Server>
  <Advanced><LogLevel>debug</LogLevel></Advanced>
</Electric8>`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.GetServerAddr())
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	// Sections missing from the file keep their defaults.
	assert.Equal(t, 32, cfg.Decoding.MaxSessions)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Electric8.config")
	dataDir := filepath.Join(dir, "elsewhere")

	t.Setenv("PORT", "7070")
	t.Setenv("DATA_DIR", dataDir)
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, dataDir, cfg.GetDataDir())
	assert.Equal(t, filepath.Join(dataDir, "uploads"), cfg.GetUploadDir())
	assert.Equal(t, filepath.Join(dataDir, "rules"), cfg.Storage.RulesDirectory)
	assert.Equal(t, slog.LevelWarn, cfg.SlogLevel())

	require.NoError(t, cfg.EnsureDirectories())
	assert.DirExists(t, cfg.GetUploadDir())
}

func TestLoadConfig_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.config")
	require.NoError(t, os.WriteFile(path, []byte("<Electric8><Server>"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestSlogLevel_Unknown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Advanced.LogLevel = "chatty"
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}
