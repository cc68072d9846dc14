package registry

import (
	"github.com/grand-thief-cash/tvaccess/internal/application/components/http_server"
	"github.com/grand-thief-cash/tvaccess/internal/application/config"
	"github.com/grand-thief-cash/tvaccess/internal/application/consts"
	"github.com/grand-thief-cash/tvaccess/internal/application/core"
)

func init() {
	Register(consts.COMPONENT_HTTP_SERVER, func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		if cfg.HTTPServer != nil && cfg.HTTPServer.ServiceName == "" && cfg.APPInfo != nil {
			// otelchi 的 server name 用服务名, 兜底才是监听地址
			cfg.HTTPServer.ServiceName = cfg.APPInfo.APPName
		}
		return fromFactory(http_server.NewFactory(c).Create(cfg.HTTPServer))
	})
}
