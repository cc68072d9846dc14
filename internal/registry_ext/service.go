package registry_ext

import (
	appConfig "github.com/grand-thief-cash/tvaccess/internal/application/config"
	"github.com/grand-thief-cash/tvaccess/internal/application/core"
	"github.com/grand-thief-cash/tvaccess/internal/application/registry"
	bizConfig "github.com/grand-thief-cash/tvaccess/internal/config"
	"github.com/grand-thief-cash/tvaccess/internal/service"
)

func init() {
	bizCfg := bizConfig.GetBizConfig()

	registry.RegisterAuto(func(cfg *appConfig.AppConfig, c *core.Container) (bool, core.Component, error) {
		return true, service.NewRunProgressManager(0), nil
	})

	registry.RegisterAuto(func(cfg *appConfig.AppConfig, c *core.Container) (bool, core.Component, error) {
		return true, service.NewBulkService(bizCfg), nil
	})
}
