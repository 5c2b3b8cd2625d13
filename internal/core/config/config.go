package config

import (
	"time"

	"github.com/tdnguyen/outcall/internal/core/resilience"
	"github.com/tdnguyen/outcall/internal/infra/objectstore"
	"github.com/tdnguyen/outcall/internal/infra/rdb"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server      ServerConfig       `yaml:"server"`
	Logging     LoggingConfig      `yaml:"logging"`
	Resilience  ResilienceConfig   `yaml:"resilience"`
	API         APIConfig          `yaml:"api"`
	ObjectStore objectstore.Config `yaml:"object_store"`
	Database    rdb.Config         `yaml:"database"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// ResilienceConfig enumerates the construction-time knobs of the call
// executor: the retry budget and backoff shape, and the breaker thresholds.
type ResilienceConfig struct {
	Retry   RetryConfig     `yaml:"retry"`
	Breaker BreakerSettings `yaml:"breaker"`
}

// RetryConfig holds the retry budget and backoff shape. Wait values are in
// seconds.
type RetryConfig struct {
	Attempts   int     `yaml:"attempts"`
	Multiplier float64 `yaml:"multiplier"`
	MinWait    float64 `yaml:"min_wait"`
	MaxWait    float64 `yaml:"max_wait"`
}

// Policy converts the configured budget into a resilience.Policy.
func (c RetryConfig) Policy() resilience.Policy {
	p := resilience.DefaultPolicy()
	if c.Attempts > 0 {
		p.MaxAttempts = c.Attempts
	}
	if c.Multiplier > 0 {
		p.Multiplier = seconds(c.Multiplier)
	}
	if c.MinWait > 0 {
		p.MinWait = seconds(c.MinWait)
	}
	if c.MaxWait > 0 {
		p.MaxWait = seconds(c.MaxWait)
	}
	return p
}

// BreakerSettings holds the per-key breaker thresholds. ResetTimeout is in
// seconds.
type BreakerSettings struct {
	FailMax      int     `yaml:"fail_max"`
	ResetTimeout float64 `yaml:"reset_timeout"`
}

// BreakerConfig converts the configured thresholds into a
// resilience.BreakerConfig.
func (c BreakerSettings) BreakerConfig() resilience.BreakerConfig {
	cfg := resilience.DefaultBreakerConfig()
	if c.FailMax > 0 {
		cfg.FailMax = c.FailMax
	}
	if c.ResetTimeout > 0 {
		cfg.ResetTimeout = seconds(c.ResetTimeout)
	}
	return cfg
}

// APIConfig holds settings for the outbound HTTP API client.
type APIConfig struct {
	BaseURL string            `yaml:"base_url"`
	Timeout float64           `yaml:"timeout"` // seconds
	Headers map[string]string `yaml:"headers"`
}

// TimeoutDuration returns the request timeout, defaulting to 10s.
func (c APIConfig) TimeoutDuration() time.Duration {
	if c.Timeout <= 0 {
		return 10 * time.Second
	}
	return seconds(c.Timeout)
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}
