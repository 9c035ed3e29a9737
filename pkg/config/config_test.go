// pkg/config/config_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: Filesystem (temp dirs)
// PURPOSE: Test layered config loading and overrides

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chtmp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chtmp(t)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", "/tmp/shelfsync-test-data")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "", cfg.Remote.BaseURL)
	assert.Equal(t, 8*time.Second, cfg.ManifestTimeout())
	assert.Equal(t, 20*time.Second, cfg.AssetTimeout())
	assert.Equal(t, 120*time.Second, cfg.MediaTimeout())
	assert.True(t, cfg.Enrichment.Enabled)
	assert.NotEmpty(t, cfg.Content.DistDir, "dist dir should default to an XDG data path")
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := chtmp(t)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	content := `
[remote]
base_url = "http://content.local:8080"

[content]
dist_dir = "/srv/kiosk/content"

[timeouts]
asset = 45
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shelfsync.toml"), []byte(content), 0644))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://content.local:8080", cfg.Remote.BaseURL)
	assert.Equal(t, "/srv/kiosk/content", cfg.Content.DistDir)
	assert.Equal(t, 45*time.Second, cfg.AssetTimeout())
	// untouched keys keep their defaults
	assert.Equal(t, 8*time.Second, cfg.ManifestTimeout())
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chtmp(t)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	content := `
[remote]
base_url = "http://from-file"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shelfsync.toml"), []byte(content), 0644))
	t.Setenv("SHELFSYNC_REMOTE_BASE_URL", "http://from-env")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://from-env", cfg.Remote.BaseURL)
}

func TestLoadExplicitPath(t *testing.T) {
	chtmp(t)
	other := t.TempDir()
	path := filepath.Join(other, "custom.toml")
	require.NoError(t, os.WriteFile(path, []byte("[remote]\nbase_url = \"http://explicit\"\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://explicit", cfg.Remote.BaseURL)
}

func TestLoadExplicitPathMissing(t *testing.T) {
	chtmp(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoadInvalidTimeouts(t *testing.T) {
	dir := chtmp(t)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	content := `
[timeouts]
manifest = 0
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shelfsync.toml"), []byte(content), 0644))

	_, err := Load("")
	assert.Error(t, err)
}
