// components/logging/factory.go
package logging

import (
	"github.com/grand-thief-cash/tvaccess/internal/application/core"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

// Create 未启用时返回 (nil, nil), registry 据此跳过注册。
func (f *Factory) Create(cfg *LoggingConfig) (core.Component, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return NewLoggerComponent(cfg), nil
}
