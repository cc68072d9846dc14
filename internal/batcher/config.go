package batcher

import (
	"fmt"
	"time"
)

// Config is fixed at construction; the running Batcher never re-reads it.
type Config struct {
	MaxConcurrent           int           `yaml:"max_concurrent" json:"max_concurrent"`
	BatchSize               int           `yaml:"batch_size" json:"batch_size"`
	MinDelay                time.Duration `yaml:"min_delay" json:"min_delay"`
	MaxDelay                time.Duration `yaml:"max_delay" json:"max_delay"`
	BackoffMultiplier       float64       `yaml:"backoff_multiplier" json:"backoff_multiplier"`
	CircuitBreakerThreshold int           `yaml:"circuit_breaker_threshold" json:"circuit_breaker_threshold"`
	CircuitBreakerTimeout   time.Duration `yaml:"circuit_breaker_timeout" json:"circuit_breaker_timeout"`

	// DefaultMaxRetries applies to submissions that pass a negative MaxRetries.
	// Zero is a valid value and disables internal re-runs.
	DefaultMaxRetries int `yaml:"default_max_retries" json:"default_max_retries"`
}

func (c *Config) applyDefaults() {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 5
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.MinDelay <= 0 {
		c.MinDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.BackoffMultiplier <= 0 {
		c.BackoffMultiplier = 2.0
	}
	if c.CircuitBreakerThreshold <= 0 {
		c.CircuitBreakerThreshold = 5
	}
	if c.CircuitBreakerTimeout <= 0 {
		c.CircuitBreakerTimeout = 60 * time.Second
	}
	if c.DefaultMaxRetries < 0 {
		c.DefaultMaxRetries = 2
	}
}

func (c *Config) validate() error {
	if c.MaxDelay < c.MinDelay {
		return fmt.Errorf("batcher: max_delay %s < min_delay %s", c.MaxDelay, c.MinDelay)
	}
	if c.BackoffMultiplier < 1 {
		return fmt.Errorf("batcher: backoff_multiplier %.2f must be >= 1", c.BackoffMultiplier)
	}
	return nil
}
