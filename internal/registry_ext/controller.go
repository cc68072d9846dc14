package registry_ext

import (
	appConfig "github.com/grand-thief-cash/tvaccess/internal/application/config"
	appConsts "github.com/grand-thief-cash/tvaccess/internal/application/consts"
	"github.com/grand-thief-cash/tvaccess/internal/application/core"
	"github.com/grand-thief-cash/tvaccess/internal/application/registry"
	"github.com/grand-thief-cash/tvaccess/internal/api"
	bizConsts "github.com/grand-thief-cash/tvaccess/internal/consts"
)

func init() {
	// Ensure http_server starts after our controllers by extending its runtime dep graph.
	registry.ExtendRuntimeDependencies(appConsts.COMPONENT_HTTP_SERVER, bizConsts.COMP_CTRL_BULK, bizConsts.COMP_CTRL_META)

	registry.RegisterAuto(func(cfg *appConfig.AppConfig, c *core.Container) (bool, core.Component, error) {
		return true, api.NewBulkController(), nil
	})

	registry.RegisterAuto(func(cfg *appConfig.AppConfig, c *core.Container) (bool, core.Component, error) {
		return true, api.NewMetaController(), nil
	})
}
