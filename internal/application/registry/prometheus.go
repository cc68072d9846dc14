package registry

import (
	"github.com/grand-thief-cash/tvaccess/internal/application/components/prometheus"
	"github.com/grand-thief-cash/tvaccess/internal/application/config"
	"github.com/grand-thief-cash/tvaccess/internal/application/consts"
	"github.com/grand-thief-cash/tvaccess/internal/application/core"
)

func init() {
	Register(consts.COMPONENT_PROMETHEUS, func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		return fromFactory(prometheus.NewFactory().Create(cfg.Prometheus))
	})
}
