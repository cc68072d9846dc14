package registry

import (
	"github.com/grand-thief-cash/tvaccess/internal/application/components/mysqlgorm"
	"github.com/grand-thief-cash/tvaccess/internal/application/config"
	"github.com/grand-thief-cash/tvaccess/internal/application/consts"
	"github.com/grand-thief-cash/tvaccess/internal/application/core"
)

func init() {
	Register(consts.COMPONENT_MYSQL_GORM, func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		return fromFactory(mysqlgorm.NewFactory().Create(cfg.MySQLGORM))
	})
}
