package http_server

import (
	"time"

	"github.com/grand-thief-cash/tvaccess/internal/application/core"
)

// Factory 持有容器引用, 路由注册函数要从里面解析业务 controller。
type Factory struct {
	container *core.Container
}

func NewFactory(c *core.Container) *Factory { return &Factory{container: c} }

func (f *Factory) Create(cfg *HTTPServerConfig) (core.Component, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	setDefaults(cfg)
	return NewHTTPServerComponent(cfg, f.container), nil
}

func setDefaults(c *HTTPServerConfig) {
	if c.Address == "" {
		c.Address = ":8080"
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 15 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 15 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.GracefulTimeout == 0 {
		c.GracefulTimeout = 10 * time.Second
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 60 * time.Second
	}
}
