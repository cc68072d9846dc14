package bulk

import (
	"fmt"
	"time"
)

// Config governs one orchestrator instance. Values are fixed when the
// orchestrator is built; RunBulk never re-reads them mid-run.
type Config struct {
	// MaxOperationRetries caps attempts per (subject, target) pair,
	// counting the first try. Hitting the cap keeps the last status.
	MaxOperationRetries int `yaml:"max_operation_retries" json:"max_operation_retries"`

	// PreValidateConcurrency 控制预校验阶段并发分组数。
	PreValidateConcurrency int           `yaml:"pre_validate_concurrency" json:"pre_validate_concurrency"`
	PreValidatePacing      time.Duration `yaml:"pre_validate_pacing" json:"pre_validate_pacing"`

	// ProgressInterval throttles intermediate progress callbacks. The
	// final snapshot is always reported regardless of the interval.
	ProgressInterval time.Duration `yaml:"progress_interval" json:"progress_interval"`

	// Retry ladders. Status failures (provider answered, outcome bad)
	// wait on the shorter ladder; transport/internal errors wait longer.
	StatusRetryBase time.Duration `yaml:"status_retry_base" json:"status_retry_base"`
	StatusRetryCap  time.Duration `yaml:"status_retry_cap" json:"status_retry_cap"`
	ErrorRetryBase  time.Duration `yaml:"error_retry_base" json:"error_retry_base"`
	ErrorRetryCap   time.Duration `yaml:"error_retry_cap" json:"error_retry_cap"`

	// SubmitMaxRetries is forwarded to the scheduler per submission.
	// Set a negative value to disable scheduler-side re-runs entirely.
	SubmitMaxRetries int `yaml:"submit_max_retries" json:"submit_max_retries"`
}

func (c *Config) applyDefaults() {
	if c.MaxOperationRetries <= 0 {
		c.MaxOperationRetries = 3
	}
	if c.PreValidateConcurrency <= 0 {
		c.PreValidateConcurrency = 5
	}
	if c.PreValidatePacing <= 0 {
		c.PreValidatePacing = 500 * time.Millisecond
	}
	if c.ProgressInterval <= 0 {
		c.ProgressInterval = 2 * time.Second
	}
	if c.StatusRetryBase <= 0 {
		c.StatusRetryBase = time.Second
	}
	if c.StatusRetryCap <= 0 {
		c.StatusRetryCap = 8 * time.Second
	}
	if c.ErrorRetryBase <= 0 {
		c.ErrorRetryBase = 2 * time.Second
	}
	if c.ErrorRetryCap <= 0 {
		c.ErrorRetryCap = 15 * time.Second
	}
	if c.SubmitMaxRetries == 0 {
		c.SubmitMaxRetries = 2
	} else if c.SubmitMaxRetries < 0 {
		c.SubmitMaxRetries = 0
	}
}

func (c *Config) validate() error {
	if c.StatusRetryCap < c.StatusRetryBase {
		return fmt.Errorf("bulk: status_retry_cap %s < status_retry_base %s", c.StatusRetryCap, c.StatusRetryBase)
	}
	if c.ErrorRetryCap < c.ErrorRetryBase {
		return fmt.Errorf("bulk: error_retry_cap %s < error_retry_base %s", c.ErrorRetryCap, c.ErrorRetryBase)
	}
	return nil
}
