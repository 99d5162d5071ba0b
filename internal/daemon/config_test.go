package daemon

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drivefs/internal/storage"
)

// isolateConfig points DRIVEFS_CONFIG_DIR at a fresh temp directory.
// Tests using it must not call t.Parallel.
func isolateConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DRIVEFS_CONFIG_DIR", dir)
	return dir
}

func TestConfigDir(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv("DRIVEFS_CONFIG_DIR", "")

		dir := ConfigDir()
		assert.NotEmpty(t, dir)
		assert.True(t, strings.HasSuffix(dir, ".drivefs"), "should end with .drivefs")
	})

	t.Run("override with DRIVEFS_CONFIG_DIR", func(t *testing.T) {
		t.Setenv("DRIVEFS_CONFIG_DIR", "/tmp/test-drivefs-config")
		assert.Equal(t, "/tmp/test-drivefs-config", ConfigDir())
	})
}

func TestPathFunctions(t *testing.T) {
	isolateConfig(t)

	tests := []struct {
		name   string
		fn     func() string
		suffix string
	}{
		{"GlobalSettingsPath", GlobalSettingsPath, "settings.yaml"},
		{"MetaFilePath", MetaFilePath, "meta.drivefs"},
		{"DrivesDir", DrivesDir, "drives"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.fn()
			assert.True(t, strings.HasSuffix(path, tt.suffix),
				"%s() = %q should end with %q", tt.name, path, tt.suffix)
			assert.True(t, strings.HasPrefix(path, ConfigDir()),
				"%s() = %q should be in config dir %q", tt.name, path, ConfigDir())
		})
	}
}

func TestInitConfigDir(t *testing.T) {
	dir := isolateConfig(t)

	require.NoError(t, InitConfigDir())

	info, err := os.Stat(filepath.Join(dir, "drives"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	data, err := os.ReadFile(GlobalSettingsPath())
	require.NoError(t, err)
	assert.Contains(t, string(data), "backend:")

	// Existing settings are left alone.
	require.NoError(t, os.WriteFile(GlobalSettingsPath(), []byte("backend: badger\n"), 0600))
	require.NoError(t, InitConfigDir())
	data, err = os.ReadFile(GlobalSettingsPath())
	require.NoError(t, err)
	assert.Equal(t, "backend: badger\n", string(data))
}

func TestLoadGlobalSettings(t *testing.T) {
	t.Run("defaults without file", func(t *testing.T) {
		isolateConfig(t)

		s, err := LoadGlobalSettings()
		require.NoError(t, err)
		assert.Equal(t, "off", s.LogLevel)
		assert.Equal(t, storage.BackendSQLite, s.Backend)
		assert.Equal(t, "anonymous", s.Identity)
		assert.Equal(t, 5, s.LockWait)
		assert.False(t, s.Metrics)
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		isolateConfig(t)
		require.NoError(t, EnsureConfigDir())
		content := "log_level: DEBUG\nbackend: badger\nidentity: owner-1\nlock_wait: 1\n"
		require.NoError(t, os.WriteFile(GlobalSettingsPath(), []byte(content), 0600))

		s, err := LoadGlobalSettings()
		require.NoError(t, err)
		assert.Equal(t, "debug", s.LogLevel)
		assert.Equal(t, storage.BackendBadger, s.Backend)
		assert.Equal(t, "owner-1", s.Identity)
		assert.Equal(t, 1, s.LockWait)
	})

	t.Run("invalid backend", func(t *testing.T) {
		isolateConfig(t)
		require.NoError(t, EnsureConfigDir())
		require.NoError(t, os.WriteFile(GlobalSettingsPath(), []byte("backend: postgres\n"), 0600))

		_, err := LoadGlobalSettings()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "oneof")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		isolateConfig(t)
		require.NoError(t, EnsureConfigDir())
		require.NoError(t, os.WriteFile(GlobalSettingsPath(), []byte("backend: [\n"), 0600))

		_, err := LoadGlobalSettings()
		assert.Error(t, err)
	})
}

func TestSaveGlobalSettings(t *testing.T) {
	isolateConfig(t)

	s, err := LoadGlobalSettings()
	require.NoError(t, err)
	s.Backend = storage.BackendBadger
	s.Username = "alice"
	require.NoError(t, SaveGlobalSettings(s))

	loaded, err := LoadGlobalSettings()
	require.NoError(t, err)
	assert.Equal(t, storage.BackendBadger, loaded.Backend)
	assert.Equal(t, "alice", loaded.Username)

	s.LockWait = -1
	assert.Error(t, SaveGlobalSettings(s))
}

func TestConfigureLogging(t *testing.T) {
	defer log.SetOutput(os.Stderr)
	defer log.SetLevel(log.InfoLevel)

	var buf bytes.Buffer
	ConfigureLogging("debug", &buf)
	log.Debug("visible")
	assert.Contains(t, buf.String(), "visible")

	buf.Reset()
	ConfigureLogging("off", &buf)
	log.Warn("hidden")
	assert.Empty(t, buf.String())
}
