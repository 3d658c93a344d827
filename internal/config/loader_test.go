package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
profile:
  capacity: 256
report:
  interval: 5s
  top: 3
server:
  enabled: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 256, cfg.Profile.Capacity)
	assert.Equal(t, 5*time.Second, cfg.Report.Interval)
	assert.Equal(t, 3, cfg.Report.Top)
	assert.False(t, cfg.Server.Enabled)

	// Untouched sections keep their defaults.
	assert.Equal(t, Default().Sampler, cfg.Sampler)
	assert.Equal(t, Default().Log, cfg.Log)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
profile:
  capacity: 256
`)

	os.Setenv("EMBER_PROFILE_CAPACITY", "512")
	defer os.Unsetenv("EMBER_PROFILE_CAPACITY")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 512, cfg.Profile.Capacity)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestLoad_ConfigLessMode(t *testing.T) {
	// No file argument and no file at the default path: defaults plus env.
	// The default path is redirected so a config file on the test machine
	// cannot leak into the result.
	orig := DefaultPath
	DefaultPath = filepath.Join(t.TempDir(), "absent.yaml")
	defer func() { DefaultPath = orig }()

	os.Setenv("EMBER_REPORT_TOP", "7")
	defer os.Unsetenv("EMBER_REPORT_TOP")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Report.Top)
	assert.Equal(t, Default().Profile.Capacity, cfg.Profile.Capacity)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfigFile(t, "profile: [broken")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoad_RejectsInvalidConfig(t *testing.T) {
	path := writeConfigFile(t, `
profile:
  capacity: 0
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
