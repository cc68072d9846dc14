package http_client

import (
	"github.com/grand-thief-cash/tvaccess/internal/application/core"
)

type Factory struct{}

func NewFactory() *Factory { return &Factory{} }

func (f *Factory) Create(cfg *HTTPClientsConfig) (core.Component, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	return NewHTTPClientsComponent(cfg), nil
}
