package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("SCRATCHPAD_AGENT_AUTH_TOKEN", "")
	t.Setenv("SCRATCHPAD_AGENT_JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SCRATCHPAD_AGENT_AUTH_TOKEN")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SCRATCHPAD_AGENT_AUTH_TOKEN", "svc")
	t.Setenv("SCRATCHPAD_AGENT_JWT_SECRET", "jwt")
	t.Setenv("SCRATCHPAD_AGENT_CONFIG_FILE", "")
	t.Setenv("PORT", "")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, c.Port)
	assert.Equal(t, "http://localhost:3010", c.ScratchpadServerURL)
	assert.Equal(t, "openai/gpt-4o-mini", c.ModelName)
	assert.Equal(t, "info", c.LogLevel)
}

func TestLoadConfigFileUnderEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"PORT: 9090\nMODEL_NAME: from-file\nLOG_LEVEL: debug\n"), 0o600))

	t.Setenv("SCRATCHPAD_AGENT_AUTH_TOKEN", "svc")
	t.Setenv("SCRATCHPAD_AGENT_JWT_SECRET", "jwt")
	t.Setenv("SCRATCHPAD_AGENT_CONFIG_FILE", path)
	t.Setenv("PORT", "")
	// The environment still outranks the file.
	t.Setenv("MODEL_NAME", "from-env")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, c.Port)
	assert.Equal(t, "from-env", c.ModelName)
	assert.Equal(t, "debug", c.LogLevel)
}

func TestLoadRejectsBrokenConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o600))

	t.Setenv("SCRATCHPAD_AGENT_AUTH_TOKEN", "svc")
	t.Setenv("SCRATCHPAD_AGENT_JWT_SECRET", "jwt")
	t.Setenv("SCRATCHPAD_AGENT_CONFIG_FILE", path)

	_, err := Load()
	assert.Error(t, err)
}
