package registry_ext

import (
	appConfig "github.com/grand-thief-cash/tvaccess/internal/application/config"
	"github.com/grand-thief-cash/tvaccess/internal/application/core"
	"github.com/grand-thief-cash/tvaccess/internal/application/registry"
	bizConfig "github.com/grand-thief-cash/tvaccess/internal/config"
	"github.com/grand-thief-cash/tvaccess/internal/dao"
)

func init() {
	bizCfg := bizConfig.GetBizConfig()

	// 运行历史 DAO，仅在 biz_config.history.enabled 时注册。
	registry.RegisterAuto(func(cfg *appConfig.AppConfig, c *core.Container) (bool, core.Component, error) {
		if !bizCfg.History.Enabled {
			return false, nil, nil
		}
		return true, dao.NewBulkRunDao(bizCfg.History.Driver, bizCfg.History.Datasource), nil
	})

	// 预校验缓存，仅在 biz_config.validation_cache.enabled 时注册。
	registry.RegisterAuto(func(cfg *appConfig.AppConfig, c *core.Container) (bool, core.Component, error) {
		if !bizCfg.ValidationCache.Enabled {
			return false, nil, nil
		}
		return true, dao.NewValidationCache(bizCfg.ValidationCache.TTL, bizCfg.ValidationCache.Prefix), nil
	})
}
