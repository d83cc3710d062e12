package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/loqalabs/loqa-coordinator/internal/errors"
	"github.com/loqalabs/loqa-coordinator/internal/graph"
	"github.com/loqalabs/loqa-coordinator/internal/resilience"
)

// Config is the coordinator configuration. Loaded once at startup and
// treated as read-only for the process lifetime.
type Config struct {
	// WorkspaceRoot is the directory containing the repository checkouts
	WorkspaceRoot string `yaml:"workspace_root"`

	// Repositories overrides the built-in repository table when non-empty
	Repositories []graph.RepositoryNode `yaml:"repositories,omitempty"`

	// QualityChecks maps repository ID to its configured checks
	QualityChecks map[string][]QualityCheck `yaml:"quality_checks,omitempty"`

	Breaker   BreakerSettings   `yaml:"breaker"`
	Retry     RetrySettings     `yaml:"retry"`
	Scheduler SchedulerSettings `yaml:"scheduler"`
}

// QualityCheck is one named check for a repository's quality gate.
type QualityCheck struct {
	Name     string `yaml:"name"`
	Command  string `yaml:"command"`
	Required bool   `yaml:"required"`
	// AutofixCommand runs when the check fails and a fix pass is requested
	AutofixCommand string `yaml:"autofix_command,omitempty"`
}

// BreakerSettings tunes the circuit breaker, durations in milliseconds.
type BreakerSettings struct {
	FailureThreshold        int `yaml:"failure_threshold"`
	RecoveryTimeoutMs       int `yaml:"recovery_timeout_ms"`
	MonitoringPeriodMs      int `yaml:"monitoring_period_ms"`
	SuccessThreshold        int `yaml:"success_threshold"`
	ResponseTimeThresholdMs int `yaml:"response_time_threshold_ms"`
	MinimumThroughput       int `yaml:"minimum_throughput"`
}

// RetrySettings tunes the retry policy, durations in milliseconds.
type RetrySettings struct {
	MaxAttempts    int     `yaml:"max_attempts"`
	InitialDelayMs int     `yaml:"initial_delay_ms"`
	MaxDelayMs     int     `yaml:"max_delay_ms"`
	Factor         float64 `yaml:"factor"`
	JitterFraction float64 `yaml:"jitter_fraction"`
}

// SchedulerSettings tunes the cache and queue drain.
type SchedulerSettings struct {
	CacheMaxEntries int `yaml:"cache_max_entries"`
	CacheTTLMs      int `yaml:"cache_ttl_ms"`
	DrainIntervalMs int `yaml:"drain_interval_ms"`
}

// Load loads coordinator configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigNotFound,
			fmt.Sprintf("cannot read config file %s", path), err).
			WithSuggestion("Create the file or pass --config with the right path")
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigUnmarshal,
			fmt.Sprintf("cannot parse config file %s", path), err).
			WithSuggestion("Check the YAML syntax of the config file")
	}

	if err := Validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// Default returns a configuration with the reference defaults. The
// repository table stays empty so the built-in table applies.
func Default() *Config {
	return &Config{
		WorkspaceRoot: ".",
		Breaker: BreakerSettings{
			FailureThreshold:        5,
			RecoveryTimeoutMs:       60000,
			MonitoringPeriodMs:      300000,
			SuccessThreshold:        3,
			ResponseTimeThresholdMs: 10000,
			MinimumThroughput:       10,
		},
		Retry: RetrySettings{
			MaxAttempts:    3,
			InitialDelayMs: 1000,
			MaxDelayMs:     30000,
			Factor:         2,
			JitterFraction: 0.25,
		},
		Scheduler: SchedulerSettings{
			CacheMaxEntries: 1000,
			CacheTTLMs:      300000,
			DrainIntervalMs: 1000,
		},
	}
}

// Validate validates a coordinator configuration
func Validate(config *Config) error {
	if config.WorkspaceRoot == "" {
		return errors.NewConfigInvalidError("workspace_root must not be empty")
	}
	if config.Breaker.FailureThreshold < 1 {
		return errors.NewConfigInvalidError("breaker failure_threshold must be at least 1")
	}
	if config.Breaker.SuccessThreshold < 1 {
		return errors.NewConfigInvalidError("breaker success_threshold must be at least 1")
	}
	if config.Retry.MaxAttempts < 1 {
		return errors.NewConfigInvalidError("retry max_attempts must be at least 1")
	}
	if config.Retry.Factor < 1 {
		return errors.NewConfigInvalidError("retry factor must be at least 1")
	}
	if config.Scheduler.CacheMaxEntries < 1 {
		return errors.NewConfigInvalidError("scheduler cache_max_entries must be at least 1")
	}

	// A declared quality check with no command is fatal, not skippable.
	for repoID, checks := range config.QualityChecks {
		for _, check := range checks {
			if check.Name == "" {
				return errors.NewConfigInvalidError(
					fmt.Sprintf("repository %s has a quality check without a name", repoID))
			}
			if check.Command == "" {
				return errors.NewGateCommandMissingError(repoID, check.Name)
			}
		}
	}

	return nil
}

// Save saves coordinator configuration to a YAML file
func Save(config *Config, path string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// BreakerConfig converts the settings into the breaker's native config.
func (b BreakerSettings) BreakerConfig() resilience.BreakerConfig {
	return resilience.BreakerConfig{
		FailureThreshold:      b.FailureThreshold,
		RecoveryTimeout:       time.Duration(b.RecoveryTimeoutMs) * time.Millisecond,
		MonitoringPeriod:      time.Duration(b.MonitoringPeriodMs) * time.Millisecond,
		SuccessThreshold:      b.SuccessThreshold,
		ResponseTimeThreshold: time.Duration(b.ResponseTimeThresholdMs) * time.Millisecond,
		MinimumThroughput:     b.MinimumThroughput,
	}
}

// RetryConfig converts the settings into the retry policy's native config.
func (r RetrySettings) RetryConfig() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    r.MaxAttempts,
		InitialDelay:   time.Duration(r.InitialDelayMs) * time.Millisecond,
		MaxDelay:       time.Duration(r.MaxDelayMs) * time.Millisecond,
		Factor:         r.Factor,
		JitterFraction: r.JitterFraction,
	}
}

// CacheTTL returns the configured default cache TTL.
func (s SchedulerSettings) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLMs) * time.Millisecond
}

// DrainInterval returns the configured queue drain interval.
func (s SchedulerSettings) DrainInterval() time.Duration {
	return time.Duration(s.DrainIntervalMs) * time.Millisecond
}
