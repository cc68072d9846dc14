package http_client

import (
	"strings"
	"time"
)

// RetryConfig client 内建重发。由批量引擎自己管重试的链路要保持 Enabled=false。
type RetryConfig struct {
	Enabled           bool          `yaml:"enabled" json:"enabled"`
	MaxAttempts       int           `yaml:"max_attempts" json:"max_attempts"`
	InitialBackoff    time.Duration `yaml:"initial_backoff" json:"initial_backoff"`
	MaxBackoff        time.Duration `yaml:"max_backoff" json:"max_backoff"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier" json:"backoff_multiplier"`
}

func (r *RetryConfig) applyDefaults() {
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = 3
	}
	if r.InitialBackoff <= 0 {
		r.InitialBackoff = 100 * time.Millisecond
	}
	if r.MaxBackoff <= 0 {
		r.MaxBackoff = 2 * time.Second
	}
	if r.BackoffMultiplier <= 1 {
		r.BackoffMultiplier = 2
	}
}

// HTTPClientConfig 单个具名 client。
type HTTPClientConfig struct {
	BaseURL             string            `yaml:"base_url" json:"base_url"`
	Timeout             time.Duration     `yaml:"timeout" json:"timeout"`
	MaxIdleConns        int               `yaml:"max_idle_conns" json:"max_idle_conns"`
	MaxIdleConnsPerHost int               `yaml:"max_idle_conns_per_host" json:"max_idle_conns_per_host"`
	IdleConnTimeout     time.Duration     `yaml:"idle_conn_timeout" json:"idle_conn_timeout"`
	DefaultHeaders      map[string]string `yaml:"default_headers" json:"default_headers"`
	Retry               *RetryConfig      `yaml:"retry" json:"retry"`
}

func (c *HTTPClientConfig) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 200
	}
	if c.MaxIdleConnsPerHost == 0 {
		c.MaxIdleConnsPerHost = 100
	}
	if c.IdleConnTimeout == 0 {
		c.IdleConnTimeout = 90 * time.Second
	}
	if c.DefaultHeaders == nil {
		c.DefaultHeaders = map[string]string{}
	}
	if c.Retry != nil {
		c.Retry.applyDefaults()
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
}

// HTTPClientsConfig 具名 client 集合, Default 指向不点名时用的那个。
type HTTPClientsConfig struct {
	Enabled bool                         `yaml:"enabled" json:"enabled"`
	Default string                       `yaml:"default" json:"default"`
	Clients map[string]*HTTPClientConfig `yaml:"clients" json:"clients"`
}

func (c *HTTPClientsConfig) applyDefaults() {
	if c.Clients == nil {
		c.Clients = map[string]*HTTPClientConfig{}
	}
	if c.Default == "" {
		c.Default = "default"
	}
	// Default 指到的 client 必须存在, 不然 Default() 永远报错
	if _, ok := c.Clients[c.Default]; !ok {
		c.Clients[c.Default] = &HTTPClientConfig{}
	}
	for _, cc := range c.Clients {
		cc.applyDefaults()
	}
}
