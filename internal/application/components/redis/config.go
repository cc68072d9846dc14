// internal/application/components/redis/config.go
package redis

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Mode: single | cluster | sentinel
type Config struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Mode    string `yaml:"mode" json:"mode"`

	Addresses      []string `yaml:"addresses" json:"addresses"`
	Username       string   `yaml:"username" json:"username"`
	Password       string   `yaml:"password" json:"password"`
	DB             int      `yaml:"db" json:"db"`
	SentinelMaster string   `yaml:"sentinel_master" json:"sentinel_master"`

	PoolSize     int `yaml:"pool_size" json:"pool_size"`
	MinIdleConns int `yaml:"min_idle_conns" json:"min_idle_conns"`

	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`

	DialTimeout  time.Duration `yaml:"dial_timeout" json:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
}

// applyDefaults 归一化模式并补上缺省连接参数。地址缺省按模式给本机端口。
func (c *Config) applyDefaults() {
	c.Mode = strings.ToLower(c.Mode)
	if c.Mode == "" {
		c.Mode = "single"
	}
	if len(c.Addresses) == 0 {
		switch c.Mode {
		case "sentinel":
			c.Addresses = []string{"127.0.0.1:26379"}
		case "cluster":
			c.Addresses = []string{"127.0.0.1:7000", "127.0.0.1:7001", "127.0.0.1:7002"}
		default:
			c.Addresses = []string{"127.0.0.1:6379"}
		}
	}

	if c.PoolSize <= 0 {
		c.PoolSize = 20
	}
	switch {
	case c.MinIdleConns < 0:
		c.MinIdleConns = 0
	case c.MinIdleConns > c.PoolSize:
		c.MinIdleConns = c.PoolSize / 2
	}

	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 3 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 3 * time.Second
	}

	if c.ConnMaxIdleTime < 0 {
		c.ConnMaxIdleTime = 0
	}
	if c.ConnMaxLifetime < 0 {
		c.ConnMaxLifetime = 0
	}
	if c.DB < 0 {
		c.DB = 0
	}
}

func (c *Config) validate() error {
	if c == nil {
		return errors.New("redis config nil")
	}
	if len(c.Addresses) == 0 {
		return errors.New("redis addresses empty")
	}
	switch c.Mode {
	case "single", "cluster":
	case "sentinel":
		if c.SentinelMaster == "" {
			return errors.New("sentinel mode requires sentinel_master")
		}
	default:
		return fmt.Errorf("unknown redis mode: %s", c.Mode)
	}
	return nil
}

// universalOptions 转成 go-redis 的通用选项。注意 go-redis 按 MasterName
// 和地址数挑实际客户端类型, mode 字段只用于校验与默认值。
func (c *Config) universalOptions() *redis.UniversalOptions {
	return &redis.UniversalOptions{
		Addrs:        c.Addresses,
		DB:           c.DB,
		Username:     c.Username,
		Password:     c.Password,
		MasterName:   c.SentinelMaster,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,

		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,

		ConnMaxLifetime: c.ConnMaxLifetime,
		ConnMaxIdleTime: c.ConnMaxIdleTime,
	}
}
