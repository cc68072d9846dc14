// internal/application/components/redis/factory.go
package redis

import "github.com/grand-thief-cash/tvaccess/internal/application/core"

type Factory struct{}

func NewFactory() *Factory { return &Factory{} }

// Create 未启用时返回 (nil, nil), registry 据此跳过注册。
func (f *Factory) Create(cfg *Config) (core.Component, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	cfg.applyDefaults()
	return NewRedisComponent(cfg), nil
}
