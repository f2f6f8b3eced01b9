package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "https://localhost:3000", cfg.Callback.BaseURL)
	require.Equal(t, "/api/beam_deflections/{beam_deflection_id}/async_result", cfg.Callback.ResultPath)
	require.Equal(t, "X-Async-Token", cfg.Callback.AuthHeader)
	require.Equal(t, "12345678", cfg.Callback.AuthToken)
	require.Empty(t, cfg.Callback.AuthScheme)
	require.Equal(t, 10, cfg.Callback.TimeoutSeconds)
	require.False(t, cfg.Callback.VerifyTLS)
	require.Equal(t, 5, cfg.Jobs.Workers)
	require.Equal(t, 5, cfg.Jobs.DelayMinSeconds)
	require.Equal(t, 10, cfg.Jobs.DelayMaxSeconds)
	require.True(t, cfg.Logging.Development)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DEFLECTION_JOBS_WORKERS", "2")
	t.Setenv("DEFLECTION_CALLBACK_AUTH_TOKEN", "secret")
	t.Setenv("DEFLECTION_CALLBACK_VERIFY_TLS", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 2, cfg.Jobs.Workers)
	require.Equal(t, "secret", cfg.Callback.AuthToken)
	require.True(t, cfg.Callback.VerifyTLS)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
jobs:
  workers: 3
  delay_min_seconds: 0
  delay_max_seconds: 1
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 3, cfg.Jobs.Workers)
	lo, hi := cfg.DelayBounds()
	require.Equal(t, 0, lo)
	require.Equal(t, 1, hi)
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := func() Config {
		return Config{
			Server:   ServerConfig{Port: 8080},
			Callback: CallbackConfig{AuthHeader: "X-Async-Token", TimeoutSeconds: 10},
			Jobs:     JobsConfig{Workers: 5},
		}
	}

	require.NoError(t, base().Validate())

	noPort := base()
	noPort.Server.Port = 0
	require.ErrorContains(t, noPort.Validate(), "server.port")

	noWorkers := base()
	noWorkers.Jobs.Workers = 0
	require.ErrorContains(t, noWorkers.Validate(), "jobs.workers")

	noTimeout := base()
	noTimeout.Callback.TimeoutSeconds = 0
	require.ErrorContains(t, noTimeout.Validate(), "callback.timeout_seconds")

	noHeader := base()
	noHeader.Callback.AuthHeader = ""
	require.ErrorContains(t, noHeader.Validate(), "callback.auth_header")
}

func TestDelayBoundsClamping(t *testing.T) {
	t.Parallel()

	cfg := Config{Jobs: JobsConfig{DelayMinSeconds: 10, DelayMaxSeconds: 5}}
	lo, hi := cfg.DelayBounds()
	require.Equal(t, 5, lo)
	require.Equal(t, 10, hi)

	cfg = Config{Jobs: JobsConfig{DelayMinSeconds: -2, DelayMaxSeconds: 4}}
	lo, hi = cfg.DelayBounds()
	require.Equal(t, 0, lo)
	require.Equal(t, 4, hi)
}
