package config

import (
	"sync"
	"time"

	"github.com/grand-thief-cash/tvaccess/internal/batcher"
	"github.com/grand-thief-cash/tvaccess/internal/bulk"
)

// ProviderConfig 访问网关的调用参数。ClientName 必须与 http_clients 小节中某个
// 客户端的 name 一致。
type ProviderConfig struct {
	ClientName      string `yaml:"client_name" json:"client_name"`
	AccessPath      string `yaml:"access_path" json:"access_path"`
	UserPathPrefix  string `yaml:"user_path_prefix" json:"user_path_prefix"`
	DefaultDuration string `yaml:"default_duration" json:"default_duration"`
}

// ValidationCacheConfig toggles the redis-backed subject-validation cache.
type ValidationCacheConfig struct {
	Enabled bool          `yaml:"enabled" json:"enabled"`
	TTL     time.Duration `yaml:"ttl" json:"ttl"`
	Prefix  string        `yaml:"prefix" json:"prefix"`
}

// HistoryConfig toggles bulk-run persistence. Driver selects which gorm
// component serves it ("mysql" or "postgres"); Datasource is the named
// datasource inside that component.
type HistoryConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	Driver     string `yaml:"driver" json:"driver"`
	Datasource string `yaml:"datasource" json:"datasource"`
}

// BizConfig 项目的 biz_config 小节。Loader 会把配置文件中的 biz_config 子树
// 二次解码进 GetBizConfig() 返回的同一指针。
type BizConfig struct {
	Batcher         batcher.Config        `yaml:"batcher" json:"batcher"`
	Bulk            bulk.Config           `yaml:"bulk" json:"bulk"`
	Provider        ProviderConfig        `yaml:"provider" json:"provider"`
	ValidationCache ValidationCacheConfig `yaml:"validation_cache" json:"validation_cache"`
	History         HistoryConfig         `yaml:"history" json:"history"`
}

var (
	bizOnce sync.Once
	biz     *BizConfig
)

// GetBizConfig returns the process-wide biz config pointer. Callers that
// capture it during init() observe loaded values later because the config
// loader decodes into this same pointer. Batcher/Bulk zero values are
// normalized by their own constructors.
func GetBizConfig() *BizConfig {
	bizOnce.Do(func() {
		biz = &BizConfig{
			Provider: ProviderConfig{
				ClientName:      "tradingview",
				AccessPath:      "/api/access",
				UserPathPrefix:  "/api/users/",
				DefaultDuration: "1L",
			},
			ValidationCache: ValidationCacheConfig{
				TTL:    10 * time.Minute,
				Prefix: "tvaccess:subject:",
			},
			History: HistoryConfig{
				Driver:     "mysql",
				Datasource: "default",
			},
		}
	})
	return biz
}
