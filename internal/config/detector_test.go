// internal/config/detector_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectBackendType(t *testing.T) {
	t.Run("from_file", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), "backend:\n  type: \"dynamodb\"\n")
		backendType, err := DetectBackendType(path)
		require.NoError(t, err)
		assert.Equal(t, "dynamodb", backendType)
	})

	t.Run("from_directory", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "editwarning.yml"), []byte("backend:\n  type: etcd\n"), 0644))
		backendType, err := DetectBackendType(dir)
		require.NoError(t, err)
		assert.Equal(t, "etcd", backendType)
	})

	t.Run("case_and_alias", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), "backend:\n  type: \"Scylla\"\n")
		backendType, err := DetectBackendType(path)
		require.NoError(t, err)
		assert.Equal(t, "scylladb", backendType)
	})

	t.Run("env_override", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), "backend:\n  type: \"dynamodb\"\n")
		t.Setenv("EDITWARNING_BACKEND_TYPE", "MEM")
		backendType, err := DetectBackendType(path)
		require.NoError(t, err)
		assert.Equal(t, "memory", backendType)
	})

	t.Run("missing_type", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), "serverAddress: localhost:8080\n")
		_, err := DetectBackendType(path)
		assert.ErrorContains(t, err, "backend type not specified")
	})

	t.Run("invalid_yaml", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), "backend: [\n")
		_, err := DetectBackendType(path)
		assert.ErrorContains(t, err, "invalid configuration file")
	})

	t.Run("missing_file", func(t *testing.T) {
		_, err := DetectBackendType(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorIs(t, err, errNoConfigFile)
	})

	t.Run("empty_directory", func(t *testing.T) {
		_, err := DetectBackendType(t.TempDir())
		assert.ErrorIs(t, err, errNoConfigFile)
	})
}

func TestResolveConfigFilePath(t *testing.T) {
	dir := t.TempDir()
	_, err := resolveConfigFilePath("")
	assert.ErrorIs(t, err, errNoConfigFile)

	path := writeConfig(t, dir, "backend:\n  type: memory\n")
	got, err := resolveConfigFilePath(dir)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	got, err = resolveConfigFilePath(path)
	require.NoError(t, err)
	assert.Equal(t, path, got)
}
