package mysqlgorm

import "github.com/grand-thief-cash/tvaccess/internal/application/components/gormkit"

// 配置键两个 gorm 组件完全一致, 结构定义收在 gormkit。
type (
	Config           = gormkit.Config
	DataSourceConfig = gormkit.DataSourceConfig
)
