package dao

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	mg "github.com/grand-thief-cash/tvaccess/internal/application/components/mysqlgorm"
	pg "github.com/grand-thief-cash/tvaccess/internal/application/components/postgresgorm"
	infraConsts "github.com/grand-thief-cash/tvaccess/internal/application/consts"
	"github.com/grand-thief-cash/tvaccess/internal/application/core"
	bizConsts "github.com/grand-thief-cash/tvaccess/internal/consts"
	"github.com/grand-thief-cash/tvaccess/internal/model"
)

type BulkRunDao interface {
	// Embed component so registry builders can return a BulkRunDao where core.Component is required
	core.Component
	Create(ctx context.Context, run *model.BulkRun) error
	MarkRunning(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id string, total, success, errCount int, skippedJSON string, durationMs int64, successRate float64) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	Get(ctx context.Context, id string) (*model.BulkRun, error)
	ListRecent(ctx context.Context, limit int) ([]*model.BulkRun, error)
}

type bulkRunDaoImpl struct {
	db *gorm.DB
	*core.BaseComponent
	MySQL    *mg.GormComponent         `infra:"dep:mysql_gorm?"`
	Postgres *pg.PostgresGormComponent `infra:"dep:postgres_gorm?"`
	driver   string
	dsName   string // 数据源名称
}

// NewBulkRunDao 创建运行历史 DAO。driver 取 "mysql" 或 "postgres"，与启用的
// gorm 组件对应。
func NewBulkRunDao(driver, dsName string) BulkRunDao {
	return &bulkRunDaoImpl{
		BaseComponent: core.NewBaseComponent(bizConsts.COMP_DAO_BULK_RUN, infraConsts.COMPONENT_LOGGING),
		driver:        driver,
		dsName:        dsName,
	}
}

func (d *bulkRunDaoImpl) Start(ctx context.Context) error {
	if err := d.BaseComponent.Start(ctx); err != nil {
		return err
	}
	switch d.driver {
	case "postgres":
		if d.Postgres == nil {
			return fmt.Errorf("bulk_run_dao: driver postgres but postgres_gorm component is not enabled")
		}
		db, err := d.Postgres.GetDB(d.dsName)
		if err != nil {
			return fmt.Errorf("get gorm db %s failed: %w", d.dsName, err)
		}
		d.db = db
	default:
		if d.MySQL == nil {
			return fmt.Errorf("bulk_run_dao: driver mysql but mysql_gorm component is not enabled")
		}
		db, err := d.MySQL.GetDB(d.dsName)
		if err != nil {
			return fmt.Errorf("get gorm db %s failed: %w", d.dsName, err)
		}
		d.db = db
	}
	return nil
}

func (d *bulkRunDaoImpl) Stop(ctx context.Context) error {
	return d.BaseComponent.Stop(ctx)
}

func (d *bulkRunDaoImpl) Create(ctx context.Context, run *model.BulkRun) error {
	if run.Status == "" {
		run.Status = bizConsts.RunPending
	}
	if run.Subjects == "" { // JSON column requires valid document
		run.Subjects = bizConsts.DEFAULT_JSON_ARR
	}
	if run.Targets == "" {
		run.Targets = bizConsts.DEFAULT_JSON_ARR
	}
	return d.db.WithContext(ctx).Create(run).Error
}

func (d *bulkRunDaoImpl) MarkRunning(ctx context.Context, id string) error {
	return d.db.WithContext(ctx).Model(&model.BulkRun{}).
		Where("id=? AND status=?", id, bizConsts.RunPending).
		Updates(map[string]any{"status": bizConsts.RunRunning, "started_at": gorm.Expr("NOW()")}).Error
}

func (d *bulkRunDaoImpl) MarkCompleted(ctx context.Context, id string, total, success, errCount int, skippedJSON string, durationMs int64, successRate float64) error {
	if skippedJSON == "" {
		skippedJSON = bizConsts.DEFAULT_JSON_ARR
	}
	return d.db.WithContext(ctx).Model(&model.BulkRun{}).
		Where("id=?", id).
		Updates(map[string]any{
			"status":           bizConsts.RunCompleted,
			"total":            total,
			"success":          success,
			"errors":           errCount,
			"skipped_subjects": skippedJSON,
			"duration_ms":      durationMs,
			"success_rate":     successRate,
			"finished_at":      gorm.Expr("NOW()"),
		}).Error
}

func (d *bulkRunDaoImpl) MarkFailed(ctx context.Context, id string, errMsg string) error {
	return d.db.WithContext(ctx).Model(&model.BulkRun{}).
		Where("id=?", id).
		Updates(map[string]any{
			"status":        bizConsts.RunFailed,
			"error_message": errMsg,
			"finished_at":   gorm.Expr("NOW()"),
		}).Error
}

func (d *bulkRunDaoImpl) Get(ctx context.Context, id string) (*model.BulkRun, error) {
	var run model.BulkRun
	if err := d.db.WithContext(ctx).Where("id=?", id).First(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

func (d *bulkRunDaoImpl) ListRecent(ctx context.Context, limit int) ([]*model.BulkRun, error) {
	var list []*model.BulkRun
	q := d.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
