// Package config holds the single configuration record passed to the
// orchestrator at construction. Reading it from TOML on disk is the
// external CLI front end's job (out of scope here); this package only
// supplies defaults and validates an already-populated struct.
package config

import (
	"fmt"
	"time"

	"observer/internal/events"
)

// AIBackendKind selects which LLM backend variant the analyzer drives.
type AIBackendKind string

const (
	AIBackendLocal  AIBackendKind = "local"
	AIBackendRemote AIBackendKind = "remote"
	AIBackendMock   AIBackendKind = "mock"
)

// LoggingConfig controls the Log Collector's predicate filter.
type LoggingConfig struct {
	Filter string
}

// MetricsConfig controls the Metric Collector's sampling cadence.
type MetricsConfig struct {
	Interval time.Duration
}

// BufferConfig bounds a single aggregator buffer.
type BufferConfig struct {
	MaxAge  time.Duration
	MaxSize int
}

// TriggersConfig parameterizes the four mandatory trigger rules.
type TriggersConfig struct {
	ErrorThreshold        int
	ErrorWindow           time.Duration
	MemoryThreshold       events.MemoryPressure
	CPUSpikeThresholdMW   float64
	GPUSpikeThresholdMW   float64
	SpikeComparisonWindow time.Duration
}

// AIConfig selects and parameterizes the LLM backend.
type AIConfig struct {
	Backend    AIBackendKind
	Endpoint   string
	Model      string
	Credential string
}

// AlertsConfig parameterizes the rate-limited alert dispatcher.
type AlertsConfig struct {
	RateLimitPerWindow int
	MaxDeferred        int
}

// RetryConfig parameterizes the analyzer's retry queue.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxQueue    int
}

// Config is the full configuration record, mirroring every row of
// spec.md's §6 table.
type Config struct {
	Logging  LoggingConfig
	Metrics  MetricsConfig
	Buffer   BufferConfig
	Triggers TriggersConfig
	AI       AIConfig
	Alerts   AlertsConfig
	Retry    RetryConfig
}

// DefaultConfig returns a Config populated with spec.md's documented
// defaults, the way the teacher's DefaultCollectorConfig does.
func DefaultConfig() Config {
	return Config{
		Logging: LoggingConfig{
			Filter: "messageType == error OR messageType == fault",
		},
		Metrics: MetricsConfig{
			Interval: 5 * time.Second,
		},
		Buffer: BufferConfig{
			MaxAge:  60 * time.Second,
			MaxSize: 1000,
		},
		Triggers: TriggersConfig{
			ErrorThreshold:        5,
			ErrorWindow:           10 * time.Second,
			MemoryThreshold:       events.MemoryPressureWarning,
			CPUSpikeThresholdMW:   1000,
			GPUSpikeThresholdMW:   2000,
			SpikeComparisonWindow: 30 * time.Second,
		},
		AI: AIConfig{
			Backend: AIBackendLocal,
		},
		Alerts: AlertsConfig{
			RateLimitPerWindow: 3,
			MaxDeferred:        100,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   1 * time.Second,
			MaxQueue:    100,
		},
	}
}

// WithLoggingFilter returns a copy of c with the log predicate replaced.
func (c Config) WithLoggingFilter(filter string) Config {
	c.Logging.Filter = filter
	return c
}

// WithMetricsInterval returns a copy of c with the metric sample
// interval replaced.
func (c Config) WithMetricsInterval(d time.Duration) Config {
	c.Metrics.Interval = d
	return c
}

// WithAIBackend returns a copy of c configured to use the given backend.
func (c Config) WithAIBackend(kind AIBackendKind, endpoint, model, credential string) Config {
	c.AI = AIConfig{Backend: kind, Endpoint: endpoint, Model: model, Credential: credential}
	return c
}

// Validate checks every constraint spec.md's §6 table names, returning
// a *ConfigError describing the first violation found.
func (c Config) Validate() error {
	if c.Metrics.Interval < time.Second {
		return &ConfigError{Field: "metrics.interval", Message: "must be >= 1s"}
	}
	if c.Buffer.MaxAge < time.Second {
		return &ConfigError{Field: "buffer.max_age", Message: "must be >= 1s"}
	}
	if c.Buffer.MaxSize < 1 {
		return &ConfigError{Field: "buffer.max_size", Message: "must be >= 1"}
	}
	if c.Triggers.ErrorThreshold < 1 {
		return &ConfigError{Field: "triggers.error_threshold", Message: "must be >= 1"}
	}
	if c.Triggers.ErrorWindow < time.Second {
		return &ConfigError{Field: "triggers.error_window", Message: "must be >= 1s"}
	}
	if c.Triggers.CPUSpikeThresholdMW < 0 {
		return &ConfigError{Field: "triggers.cpu_spike_threshold_mw", Message: "must be non-negative"}
	}
	if c.Triggers.GPUSpikeThresholdMW < 0 {
		return &ConfigError{Field: "triggers.gpu_spike_threshold_mw", Message: "must be non-negative"}
	}
	if c.Triggers.SpikeComparisonWindow < time.Second {
		return &ConfigError{Field: "triggers.spike_comparison_window", Message: "must be >= 1s"}
	}
	switch c.AI.Backend {
	case AIBackendLocal, AIBackendRemote, AIBackendMock:
	default:
		return &ConfigError{Field: "ai.backend", Message: "must be one of local, remote, mock"}
	}
	if c.Alerts.RateLimitPerWindow < 1 {
		return &ConfigError{Field: "alerts.rate_limit_per_minute", Message: "must be >= 1"}
	}
	if c.Alerts.MaxDeferred < 1 {
		return &ConfigError{Field: "alerts.max_deferred", Message: "must be >= 1"}
	}
	if c.Retry.MaxAttempts < 1 {
		return &ConfigError{Field: "retry.max_attempts", Message: "must be >= 1"}
	}
	if c.Retry.BaseDelay < 100*time.Millisecond {
		return &ConfigError{Field: "retry.base_delay", Message: "must be >= 100ms"}
	}
	if c.Retry.MaxQueue < 1 {
		return &ConfigError{Field: "retry.max_queue", Message: "must be >= 1"}
	}
	return nil
}

// ConfigError reports a single invalid configuration field.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s %s", e.Field, e.Message)
}
