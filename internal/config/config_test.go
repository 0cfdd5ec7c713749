package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9001
client:
  poll_interval: 250ms
  client_id: "42"
demo:
  job_steps: 4
log:
  level: debug
  output: [stdout]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host, "unset keys keep their default")
	assert.Equal(t, 250*time.Millisecond, cfg.Client.PollInterval)
	assert.Equal(t, "42", cfg.Client.ClientID)
	assert.Equal(t, 4, cfg.Demo.JobSteps)
	assert.Equal(t, time.Second, cfg.Demo.StepDelay)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, []string{"stdout"}, cfg.Log.Output)
	assert.Equal(t, "127.0.0.1:9001", cfg.Server.Addr())
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9001\n")
	t.Setenv("SYNCDEMO_SERVER_PORT", "9100")
	t.Setenv("SYNCDEMO_CLIENT_POLL_INTERVAL", "2s")
	t.Setenv("SYNCDEMO_LOG_OUTPUT", "stdout,/tmp/syncdemo.log")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 2*time.Second, cfg.Client.PollInterval)
	assert.Equal(t, []string{"stdout", "/tmp/syncdemo.log"}, cfg.Log.Output)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Server.Port)
}

func TestLoadOrDefaultKeepsParseErrors(t *testing.T) {
	path := writeConfig(t, "server: [not, a, map]\n")
	_, err := LoadOrDefault(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, false},
		{"no base url", func(c *Config) { c.Client.BaseURL = "" }, false},
		{"zero poll interval", func(c *Config) { c.Client.PollInterval = 0 }, false},
		{"negative threshold", func(c *Config) { c.Client.FailureThreshold = -1 }, false},
		{"no job steps", func(c *Config) { c.Demo.JobSteps = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
