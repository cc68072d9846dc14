package mysqlgorm

import (
	"fmt"

	"github.com/grand-thief-cash/tvaccess/internal/application/core"
)

type Factory struct{}

func NewFactory() *Factory { return &Factory{} }

func (f *Factory) Create(cfg *Config) (core.Component, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	if len(cfg.DataSources) == 0 {
		return nil, fmt.Errorf("mysql gorm component has no data_sources")
	}
	return NewGormComponent(cfg), nil
}
