package postgresgorm

import "github.com/grand-thief-cash/tvaccess/internal/application/components/gormkit"

type (
	Config           = gormkit.Config
	DataSourceConfig = gormkit.DataSourceConfig
)
