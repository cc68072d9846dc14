// config/validator.go
package config

import (
	"fmt"
	"os"

	"github.com/grand-thief-cash/tvaccess/internal/application/consts"
)

// Validate 校验各小节的启用前提是否满足, 失败即终止 boot。
// 只挡"启用了却缺必填项"这类矛盾, 各组件内部的细化校验在 Start 里做。
func (cfg *AppConfig) Validate() error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.APPInfo == nil || cfg.APPInfo.APPName == "" {
		return fmt.Errorf("app_info.app_name is required")
	}
	if cfg.HTTPServer != nil && cfg.HTTPServer.Enabled && cfg.HTTPServer.Address == "" {
		return fmt.Errorf("http_server.address is required when http_server is enabled")
	}
	if cfg.Redis != nil && cfg.Redis.Enabled && len(cfg.Redis.Addresses) == 0 {
		return fmt.Errorf("redis.addresses is required when redis is enabled")
	}
	if cfg.MySQLGORM != nil && cfg.MySQLGORM.Enabled && len(cfg.MySQLGORM.DataSources) == 0 {
		return fmt.Errorf("mysql_gorm.data_sources is required when mysql_gorm is enabled")
	}
	if cfg.PostgresGORM != nil && cfg.PostgresGORM.Enabled && len(cfg.PostgresGORM.DataSources) == 0 {
		return fmt.Errorf("postgres_gorm.data_sources is required when postgres_gorm is enabled")
	}
	return nil
}

// checkConfigPath 在读文件之前把路径和运行环境先挡一遍, 让配置错误尽早暴露。
func checkConfigPath(env string, path string) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	if len(path) > 255 {
		return fmt.Errorf("config path exceeds 255 chars")
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("config file not accessible: %w", err)
	}
	switch env {
	case consts.ENV_DEVELOPMENT, consts.ENV_TEST, consts.ENV_PRODUCTION:
		return nil
	}
	return fmt.Errorf("unknown environment %q", env)
}
