// config/schema.go
package config

import (
	"github.com/grand-thief-cash/tvaccess/internal/application/components/http_client"
	"github.com/grand-thief-cash/tvaccess/internal/application/components/http_server"
	"github.com/grand-thief-cash/tvaccess/internal/application/components/logging"
	"github.com/grand-thief-cash/tvaccess/internal/application/components/mysqlgorm"
	"github.com/grand-thief-cash/tvaccess/internal/application/components/postgresgorm"
	"github.com/grand-thief-cash/tvaccess/internal/application/components/prometheus"
	"github.com/grand-thief-cash/tvaccess/internal/application/components/redis"
	"github.com/grand-thief-cash/tvaccess/internal/application/components/telemetry"
)

// AppConfig 应用程序配置结构
type AppConfig struct {
	APPInfo      *APPInfo                       `yaml:"app_info" json:"app_info"`
	Logging      *logging.LoggingConfig         `yaml:"logging" json:"logging"`
	HTTPServer   *http_server.HTTPServerConfig  `yaml:"http_server" json:"http_server"`
	HTTPClient   *http_client.HTTPClientsConfig `yaml:"http_clients" json:"http_clients"`
	Prometheus   *prometheus.Config             `yaml:"prometheus" json:"prometheus"`
	Redis        *redis.Config                  `yaml:"redis" json:"redis"`
	Telemetry    *telemetry.Config              `yaml:"telemetry" json:"telemetry"`
	MySQLGORM    *mysqlgorm.Config              `yaml:"mysql_gorm" json:"mysql_gorm"`
	PostgresGORM *postgresgorm.Config           `yaml:"postgres_gorm" json:"postgres_gorm"`

	// BizConfig 业务方自定义配置 (biz_config 小节), 由 Loader 二次解码填充
	BizConfig any `yaml:"biz_config" json:"biz_config"`
}

type APPInfo struct {
	APPName string `yaml:"app_name" json:"app_name"`
	ENV     string `yaml:"env" json:"env"`
}
