package postgresgorm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	gormpg "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/grand-thief-cash/tvaccess/internal/application/components/gormkit"
	"github.com/grand-thief-cash/tvaccess/internal/application/components/logging"
	"github.com/grand-thief-cash/tvaccess/internal/application/consts"
	"github.com/grand-thief-cash/tvaccess/internal/application/core"
)

// PostgresGormComponent 与 mysql 版对称, 差异只在 libpq 风格 DSN 和方言。
type PostgresGormComponent struct {
	*core.BaseComponent
	cfg  *Config
	pool *gormkit.Pool
}

func NewPostgresGormComponent(cfg *Config) *PostgresGormComponent {
	return &PostgresGormComponent{
		BaseComponent: core.NewBaseComponent(consts.COMPONENT_POSTGRES_GORM, consts.COMPONENT_LOGGING),
		cfg:           cfg,
		pool:          gormkit.NewPool(consts.COMPONENT_POSTGRES_GORM),
	}
}

func (c *PostgresGormComponent) Start(ctx context.Context) error {
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
		logging.Infof(ctx, "[postgres_gorm] datasource %s initialized", name)
	}
	logging.Infof(ctx, "[postgres_gorm] started. data sources=%v", c.pool.Names())
	return nil
}

func (c *PostgresGormComponent) openDataSource(ctx context.Context, name string, ds *DataSourceConfig, sqlLog gormLogger.Interface) (*gorm.DB, error) {
	if ds == nil {
		return nil, fmt.Errorf("datasource %s config is nil", name)
	}
	dsn, err := buildDSN(ds)
	if err != nil {
		return nil, fmt.Errorf("build dsn for %s failed: %w", name, err)
	}
	db, err := gorm.Open(gormpg.Open(dsn), &gorm.Config{
		Logger:                 sqlLog,
		SkipDefaultTransaction: ds.SkipDefaultTransaction,
		PrepareStmt:            ds.PrepareStmt,
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm postgres db %s failed: %w", name, err)
	}
	if err := gormkit.Setup(ctx, consts.COMPONENT_POSTGRES_GORM, name, db, ds); err != nil {
		return nil, err
	}
	return db, nil
}

func (c *PostgresGormComponent) Stop(ctx context.Context) error {
	defer func() { _ = c.BaseComponent.Stop(ctx) }()
	c.pool.CloseAll(ctx)
	return nil
}

func (c *PostgresGormComponent) HealthCheck() error {
	if err := c.BaseComponent.HealthCheck(); err != nil {
		return err
	}
	return c.pool.PingAll()
}

func (c *PostgresGormComponent) GetDB(name string) (*gorm.DB, error) {
	return c.pool.Get(name)
}

// buildDSN 没给 DSN 时拼 libpq 键值串。键值对排序后落串, 保证同一配置
// 产出同一 DSN。
func buildDSN(ds *DataSourceConfig) (string, error) {
	if ds.DSN != "" {
		return ds.DSN, nil
	}
	if ds.Host == "" || ds.User == "" || ds.Database == "" {
		return "", errors.New("host, user, database required when dsn not provided")
	}
	port := ds.Port
	if port == 0 {
		port = 5432
	}

	kv := []string{
		"host=" + ds.Host,
		fmt.Sprintf("port=%d", port),
		"user=" + ds.User,
		"password=" + ds.Password,
		"dbname=" + ds.Database,
	}
	extras := make([]string, 0, len(ds.Params))
	for k, v := range ds.Params {
		extras = append(extras, k+"="+v)
	}
	sort.Strings(extras)
	return strings.Join(append(kv, extras...), " "), nil
}
