package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"LETHE_URL", "LETHE_SYNTHETIC", "LETHE_LOG_LEVEL", "LETHE_OUTPUT_FORMAT"} {
		t.Setenv(k, "")
	}
}

// unsetEnv removes k for the rest of the test and restores it afterwards.
func unsetEnv(t *testing.T, k string) {
	t.Helper()
	t.Setenv(k, "")
	require.NoError(t, os.Unsetenv(k))
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3001", cfg.BaseURL)
	assert.False(t, cfg.GenerateSynthetic)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, FormatJSON, cfg.OutputFormat)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LETHE_URL", " http://lethe.internal:8080/ ")
	t.Setenv("LETHE_SYNTHETIC", "TRUE")
	t.Setenv("LETHE_LOG_LEVEL", "debug")
	t.Setenv("LETHE_OUTPUT_FORMAT", "YAML")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://lethe.internal:8080", cfg.BaseURL)
	assert.True(t, cfg.GenerateSynthetic)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, FormatYAML, cfg.OutputFormat)
}

func TestLoad_Truthy(t *testing.T) {
	for raw, want := range map[string]bool{"1": true, "true": true, "yes": false, "0": false, "": false} {
		clearEnv(t)
		t.Setenv("LETHE_SYNTHETIC", raw)
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, want, cfg.GenerateSynthetic, "LETHE_SYNTHETIC=%q", raw)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("LETHE_LOG_LEVEL", "loud")
	_, err := Load()
	assert.ErrorContains(t, err, "LETHE_LOG_LEVEL")

	clearEnv(t)
	t.Setenv("LETHE_OUTPUT_FORMAT", "xml")
	_, err = Load()
	assert.ErrorContains(t, err, `unknown output format "xml"`)
}

func TestLoad_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("LETHE_URL=http://from-dotenv:3001\nLETHE_OUTPUT_FORMAT=yaml\n"), 0o644))

	chdir(t, dir)

	t.Setenv("LETHE_URL", "http://from-env:3001")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://from-env:3001", cfg.BaseURL)
}

func TestLoad_DotEnvFillsUnsetKeys(t *testing.T) {
	clearEnv(t)
	unsetEnv(t, "LETHE_SYNTHETIC")
	unsetEnv(t, "LETHE_OUTPUT_FORMAT")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("LETHE_URL=http://from-dotenv:3001\nLETHE_SYNTHETIC=1\nLETHE_OUTPUT_FORMAT=yaml\n"), 0o644))
	chdir(t, dir)

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.GenerateSynthetic)
	assert.Equal(t, FormatYAML, cfg.OutputFormat)
	// LETHE_URL is set (empty) in the environment, so the file does not apply.
	assert.Equal(t, "http://localhost:3001", cfg.BaseURL)
}
