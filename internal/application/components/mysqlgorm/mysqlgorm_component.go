package mysqlgorm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	sqlmysql "github.com/go-sql-driver/mysql"
	mysqlDriver "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/grand-thief-cash/tvaccess/internal/application/components/gormkit"
	"github.com/grand-thief-cash/tvaccess/internal/application/components/logging"
	"github.com/grand-thief-cash/tvaccess/internal/application/consts"
	"github.com/grand-thief-cash/tvaccess/internal/application/core"
)

// GormComponent 每个数据源一个 *gorm.DB。公共流程在 gormkit, 这里只管
// mysql 的 DSN 拼装和方言选项。
type GormComponent struct {
	*core.BaseComponent
	cfg  *Config
	pool *gormkit.Pool
}

func NewGormComponent(cfg *Config) *GormComponent {
	return &GormComponent{
		BaseComponent: core.NewBaseComponent(consts.COMPONENT_MYSQL_GORM, consts.COMPONENT_LOGGING),
		cfg:           cfg,
		pool:          gormkit.NewPool(consts.COMPONENT_MYSQL_GORM),
	}
}

func (c *GormComponent) Start(ctx context.Context) error {
	if err := c.BaseComponent.Start(ctx); err != nil {
		return err
	}
	sqlLog := gormkit.NewLogger(c.cfg.LogLevel, c.cfg.SlowThreshold)
	for name, ds := range c.cfg.DataSources {
		db, err := c.openDataSource(ctx, name, ds, sqlLog)
		if err != nil {
			return err
		}
		c.pool.Put(name, db)
		logging.Infof(ctx, "[mysql_gorm] datasource %s initialized", name)
	}
	logging.Infof(ctx, "[mysql_gorm] started. data sources=%v", c.pool.Names())
	return nil
}

func (c *GormComponent) openDataSource(ctx context.Context, name string, ds *DataSourceConfig, sqlLog gormLogger.Interface) (*gorm.DB, error) {
	if ds == nil {
		return nil, fmt.Errorf("datasource %s config is nil", name)
	}
	dsn, err := buildDSN(ds)
	if err != nil {
		return nil, fmt.Errorf("build dsn for %s failed: %w", name, err)
	}
	db, err := gorm.Open(mysqlDriver.New(mysqlDriver.Config{DSN: dsn}), &gorm.Config{
		Logger:                                   sqlLog,
		SkipDefaultTransaction:                   ds.SkipDefaultTransaction,
		PrepareStmt:                              ds.PrepareStmt,
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm db %s failed: %w", name, err)
	}
	if err := gormkit.Setup(ctx, consts.COMPONENT_MYSQL_GORM, name, db, ds); err != nil {
		return nil, err
	}
	return db, nil
}

func (c *GormComponent) Stop(ctx context.Context) error {
	defer func() { _ = c.BaseComponent.Stop(ctx) }()
	c.pool.CloseAll(ctx)
	return nil
}

func (c *GormComponent) HealthCheck() error {
	if err := c.BaseComponent.HealthCheck(); err != nil {
		return err
	}
	return c.pool.PingAll()
}

func (c *GormComponent) GetDB(name string) (*gorm.DB, error) {
	return c.pool.Get(name)
}

// buildDSN 没给 DSN 时用驱动自带的 Config 拼, 不手写连接串。
// parseTime/charset/loc 给默认值; Params 里的同名键序列化在后面, 解析端覆盖。
func buildDSN(ds *DataSourceConfig) (string, error) {
	if ds.DSN != "" {
		return ds.DSN, nil
	}
	if ds.Host == "" || ds.User == "" || ds.Database == "" {
		return "", errors.New("host, user, database required when dsn not provided")
	}
	port := ds.Port
	if port == 0 {
		port = 3306
	}

	mc := sqlmysql.NewConfig()
	mc.User = ds.User
	mc.Passwd = ds.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(ds.Host, strconv.Itoa(port))
	mc.DBName = ds.Database
	mc.ParseTime = true
	mc.Loc = time.Local
	mc.Params = map[string]string{"charset": "utf8mb4"}
	for k, v := range ds.Params {
		mc.Params[k] = v
	}
	return mc.FormatDSN(), nil
}
