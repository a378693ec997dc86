package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/dgellow/saml-front/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, generateDefaultConfig(path))

	result, err := config.ValidateFile(path)
	require.NoError(t, err)
	assert.Empty(t, result.Errors)

	t.Setenv("BACKEND_PASSWORD", "changeme")
	t.Setenv("SESSION_ENCRYPTION_KEY", "0123456789abcdef0123456789abcdef")
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.Version, cfg.Version)
	assert.Equal(t, "saml1", cfg.SAML.Realm)
	assert.Equal(t, config.StorageKindMemory, cfg.Storage.Kind)
}

func TestValidateConfig_Missing(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, validateConfig(&out, filepath.Join(t.TempDir(), "missing.json")))
}

func TestRun(t *testing.T) {
	t.Run("version", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		assert.Equal(t, 0, run([]string{"-version"}, &stdout, &stderr))
		assert.Equal(t, BuildVersion+"\n", stdout.String())
	})

	t.Run("help", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		assert.Equal(t, 0, run([]string{"-help"}, &stdout, &stderr))
		assert.Contains(t, stderr.String(), "-config-init")
	})

	t.Run("missing config flag", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		assert.Equal(t, 2, run(nil, &stdout, &stderr))
		assert.Contains(t, stderr.String(), "-config flag is required")
	})

	t.Run("bad log level", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		assert.Equal(t, 2, run([]string{"-log-level", "loud", "-version"}, &stdout, &stderr))
		assert.Empty(t, stdout.String())
	})

	t.Run("config init then validate", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		var stdout, stderr bytes.Buffer
		require.Equal(t, 0, run([]string{"-config-init", path}, &stdout, &stderr))
		_, err := os.Stat(path)
		require.NoError(t, err)

		stdout.Reset()
		assert.Equal(t, 0, run([]string{"-config", path, "-validate"}, &stdout, &stderr))
		assert.Contains(t, stdout.String(), "Result: PASS")
	})
}
