package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/pcexpress-session/internal/config"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("SESSION_TIMEOUT", "")
	t.Setenv("MAX_RETRIES", "")

	c := config.New()
	require.Equal(t, config.EnvDevelopment, c.GetEnv())
	require.Equal(t, 30*time.Minute, c.GetSessionTimeout())
	require.Equal(t, 7*24*time.Hour, c.GetCookieMaxAge())
	require.Equal(t, 3, c.GetMaxRetries())
	require.Equal(t, time.Second, c.GetRetryBaseDelay())
	require.Equal(t, "/auth/token", c.GetTokenPath())
	require.Equal(t, "/auth/register", c.GetRegisterPath())
	require.False(t, c.IsSecureCookie())
}

func TestSecureCookieInProduction(t *testing.T) {
	t.Setenv("ENV", "prod")
	c := config.New()
	require.True(t, c.IsSecureCookie())
	require.Equal(t, "https://app.pc-express.com/", c.GetAppURL())
}

func TestMalformedDurationFallsBack(t *testing.T) {
	t.Setenv("SESSION_TIMEOUT", "soon")
	require.Equal(t, 30*time.Minute, config.New().GetSessionTimeout())
}

func TestLoadEnvAndYAML(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	yamlFile := filepath.Join(dir, "config.yaml")

	require.NoError(t, os.WriteFile(envFile, []byte("PCX_TEST_FROM_DOTENV=dotenv\n"), 0o600))
	require.NoError(t, os.WriteFile(yamlFile, []byte("PCX_TEST_FROM_YAML: yaml\nPCX_TEST_PRESET: overwritten\n"), 0o600))

	t.Setenv("CONFIG_FILE", yamlFile)
	t.Setenv("PCX_TEST_PRESET", "kept")
	t.Cleanup(func() {
		os.Unsetenv("PCX_TEST_FROM_DOTENV")
		os.Unsetenv("PCX_TEST_FROM_YAML")
	})

	_, err := config.Load(envFile)
	require.NoError(t, err)
	require.Equal(t, "dotenv", os.Getenv("PCX_TEST_FROM_DOTENV"))
	require.Equal(t, "yaml", os.Getenv("PCX_TEST_FROM_YAML"))
	require.Equal(t, "kept", os.Getenv("PCX_TEST_PRESET"))
}

func TestLoadBadYAML(t *testing.T) {
	yamlFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(yamlFile, []byte("- not\n- a map\n"), 0o600))
	t.Setenv("CONFIG_FILE", yamlFile)

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
}
