package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("CLOUDTOP_CONFIG_DIR", t.TempDir())

	c, err := Load()
	require.NoError(t, err)
	assert.Empty(t, c.Project)
	assert.Empty(t, c.LastResource)
}

func TestSaveAndReload(t *testing.T) {
	t.Setenv("CLOUDTOP_CONFIG_DIR", t.TempDir())

	c, err := Load()
	require.NoError(t, err)
	c.SetProject("p1")
	c.SetZone("us-central1-a")
	c.SetLastResource("vm-instances")
	require.NoError(t, c.Save())

	again, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "p1", again.Project)
	assert.Equal(t, "us-central1-a", again.Zone)
	assert.Equal(t, "vm-instances", again.LastResource)
}

func TestSaveCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "deeper")
	t.Setenv("CLOUDTOP_CONFIG_DIR", dir)

	c, err := Load()
	require.NoError(t, err)
	c.SetProject("p1")
	require.NoError(t, c.Save())

	_, err = os.Stat(filepath.Join(dir, "config.yaml"))
	assert.NoError(t, err)
}

func TestLoadCorruptFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CLOUDTOP_CONFIG_DIR", dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("{not yaml: ["), 0o600))

	_, err := Load()
	assert.Error(t, err)
}
