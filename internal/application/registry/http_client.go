package registry

import (
	"github.com/grand-thief-cash/tvaccess/internal/application/components/http_client"
	"github.com/grand-thief-cash/tvaccess/internal/application/config"
	"github.com/grand-thief-cash/tvaccess/internal/application/consts"
	"github.com/grand-thief-cash/tvaccess/internal/application/core"
)

func init() {
	Register(consts.COMPONENT_HTTP_CLIENTS, func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		return fromFactory(http_client.NewFactory().Create(cfg.HTTPClient))
	})
}
