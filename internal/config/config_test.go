package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loqalabs/loqa-coordinator/internal/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "coordinator.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
workspace_root: /srv/loqa
quality_checks:
  loqa-hub:
    - name: lint
      command: make lint
      required: true
    - name: test
      command: make test
      required: true
      autofix_command: make fix
breaker:
  failure_threshold: 2
  recovery_timeout_ms: 5000
  monitoring_period_ms: 60000
  success_threshold: 1
  response_time_threshold_ms: 2000
  minimum_throughput: 1
retry:
  max_attempts: 5
  initial_delay_ms: 100
  max_delay_ms: 1000
  factor: 2
  jitter_fraction: 0.1
scheduler:
  cache_max_entries: 50
  cache_ttl_ms: 10000
  drain_interval_ms: 500
`)

	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/loqa", config.WorkspaceRoot)
	require.Len(t, config.QualityChecks["loqa-hub"], 2)
	assert.Equal(t, "make fix", config.QualityChecks["loqa-hub"][1].AutofixCommand)
	assert.Equal(t, 2, config.Breaker.FailureThreshold)
	assert.Equal(t, 5, config.Retry.MaxAttempts)
	assert.Equal(t, 50, config.Scheduler.CacheMaxEntries)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigNotFound, errors.CodeOf(err))
	assert.True(t, errors.IsConfiguration(err))
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "workspace_root: [unclosed")
	_, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigUnmarshal, errors.CodeOf(err))
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "workspace_root: /srv/loqa\n")

	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, config.Breaker.FailureThreshold)
	assert.Equal(t, 3, config.Retry.MaxAttempts)
	assert.Equal(t, 1000, config.Scheduler.CacheMaxEntries)
}

func TestValidateQualityCheckWithoutCommand(t *testing.T) {
	path := writeConfig(t, `
quality_checks:
  loqa-hub:
    - name: lint
      required: true
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeGateCommandMissing, errors.CodeOf(err))
	assert.True(t, errors.IsConfiguration(err))
}

func TestValidateRejectsBadSettings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty workspace root", func(c *Config) { c.WorkspaceRoot = "" }},
		{"zero failure threshold", func(c *Config) { c.Breaker.FailureThreshold = 0 }},
		{"zero success threshold", func(c *Config) { c.Breaker.SuccessThreshold = 0 }},
		{"zero retry attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }},
		{"shrinking backoff", func(c *Config) { c.Retry.Factor = 0.5 }},
		{"zero cache size", func(c *Config) { c.Scheduler.CacheMaxEntries = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.mutate(config)
			err := Validate(config)
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeConfigInvalid, errors.CodeOf(err))
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coordinator.yaml")

	original := Default()
	original.WorkspaceRoot = "/srv/loqa"
	require.NoError(t, Save(original, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, original.WorkspaceRoot, loaded.WorkspaceRoot)
	assert.Equal(t, original.Breaker, loaded.Breaker)
	assert.Equal(t, original.Retry, loaded.Retry)
}

func TestSettingsConversion(t *testing.T) {
	config := Default()

	breaker := config.Breaker.BreakerConfig()
	assert.Equal(t, 60*time.Second, breaker.RecoveryTimeout)
	assert.Equal(t, 10*time.Second, breaker.ResponseTimeThreshold)

	retry := config.Retry.RetryConfig()
	assert.Equal(t, time.Second, retry.InitialDelay)
	assert.Equal(t, 30*time.Second, retry.MaxDelay)

	assert.Equal(t, 5*time.Minute, config.Scheduler.CacheTTL())
	assert.Equal(t, time.Second, config.Scheduler.DrainInterval())
}
