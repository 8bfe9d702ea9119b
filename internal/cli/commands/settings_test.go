package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettingsMissingFile(t *testing.T) {
	t.Setenv("SCMFS_CONFIG_DIR", t.TempDir())

	settings, err := LoadSettings()
	require.NoError(t, err)
	assert.Empty(t, settings.LogLevel)
	assert.Empty(t, settings.OverlayDir)
}

func TestLoadSettings(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SCMFS_CONFIG_DIR", dir)

	content := "log_level: debug\noverlay_dir: /var/lib/scmfs/overlay\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.yaml"), []byte(content), 0o644))

	settings, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, "debug", settings.LogLevel)
	assert.Equal(t, "/var/lib/scmfs/overlay", settings.OverlayDir)
}

func TestLoadSettingsInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SCMFS_CONFIG_DIR", dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.yaml"), []byte("log_level: [unclosed"), 0o644))

	_, err := LoadSettings()
	assert.Error(t, err)
}

func TestConfigureLogging(t *testing.T) {
	assert.NoError(t, configureLogging(""))
	assert.NoError(t, configureLogging("off"))
	assert.NoError(t, configureLogging("debug"))
	assert.Error(t, configureLogging("extremely-verbose"))
}
