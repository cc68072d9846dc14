package prometheus

import (
	"github.com/grand-thief-cash/tvaccess/internal/application/core"
)

type Factory struct{}

func NewFactory() *Factory { return &Factory{} }

func (f *Factory) Create(cfg *Config) (core.Component, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	f.setDefaults(cfg)
	return NewComponent(cfg), nil
}

func (f *Factory) setDefaults(cfg *Config) {
	if cfg.Address == "" {
		cfg.Address = ":9090"
	}
	if cfg.Path == "" {
		cfg.Path = "/metrics"
	}
}
