// Package gormkit 是 mysql/postgres 两个 gorm 组件的公共部分:
// 命名数据源池、连接池参数、启动期 ping 与 SQL 迁移。方言相关的
// DSN 拼装和 gorm.Config 差异留在各自组件里。
package gormkit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/grand-thief-cash/tvaccess/internal/application/components/logging"
)

// Config 顶层配置, 两个驱动组件共用同一套键。
type Config struct {
	Enabled       bool                         `yaml:"enabled" json:"enabled"`
	DataSources   map[string]*DataSourceConfig `yaml:"data_sources" json:"data_sources"`
	LogLevel      string                       `yaml:"log_level" json:"log_level"`           // silent|error|warn|info|debug
	SlowThreshold time.Duration                `yaml:"slow_threshold" json:"slow_threshold"` // e.g. 200ms
}

// DataSourceConfig 单个数据源。DSN 直填优先, 否则由各驱动按零件拼。
type DataSourceConfig struct {
	DSN string `yaml:"dsn" json:"dsn"`

	Host     string            `yaml:"host" json:"host"`
	Port     int               `yaml:"port" json:"port"`
	User     string            `yaml:"user" json:"user"`
	Password string            `yaml:"password" json:"password"`
	Database string            `yaml:"database" json:"database"`
	Params   map[string]string `yaml:"params" json:"params"`

	MaxOpenConns int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLife  time.Duration `yaml:"conn_max_life" json:"conn_max_life"`
	ConnMaxIdle  time.Duration `yaml:"conn_max_idle" json:"conn_max_idle"`
	PingOnStart  bool          `yaml:"ping_on_start" json:"ping_on_start"`

	SkipDefaultTransaction bool `yaml:"skip_default_tx" json:"skip_default_tx"`
	PrepareStmt            bool `yaml:"prepare_stmt" json:"prepare_stmt"`

	// 迁移: 按文件名字典序执行目录下 .sql, 不递归。
	MigrateEnabled bool   `yaml:"migrate_enabled" json:"migrate_enabled"`
	MigrateDir     string `yaml:"migrate_dir" json:"migrate_dir"`
}

// Pool 按名字持有已打开的 *gorm.DB。label 进错误与日志, 区分 mysql/postgres。
type Pool struct {
	label string
	mu    sync.RWMutex
	dbs   map[string]*gorm.DB
}

func NewPool(label string) *Pool {
	return &Pool{label: label, dbs: make(map[string]*gorm.DB)}
}

func (p *Pool) Put(name string, db *gorm.DB) {
	p.mu.Lock()
	p.dbs[name] = db
	p.mu.Unlock()
}

func (p *Pool) Get(name string) (*gorm.DB, error) {
	p.mu.RLock()
	db, ok := p.dbs[name]
	p.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s datasource %s not found", p.label, name)
	}
	return db, nil
}

func (p *Pool) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.dbs))
	for k := range p.dbs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// PingAll 逐个数据源 ping, 第一个失败即返回。
func (p *Pool) PingAll() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for name, gdb := range p.dbs {
		if gdb == nil {
			return fmt.Errorf("%s datasource %s not initialized", p.label, name)
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return fmt.Errorf("%s datasource %s get sql.DB failed: %w", p.label, name, err)
		}
		if err := sqlDB.Ping(); err != nil {
			return fmt.Errorf("%s datasource %s ping failed: %w", p.label, name, err)
		}
	}
	return nil
}

func (p *Pool) CloseAll(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for name, gdb := range p.dbs {
		if gdb == nil {
			continue
		}
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
		logging.Infof(ctx, "[%s] datasource %s closed", p.label, name)
	}
}

// Setup 跑打开之后的公共流程: 连接池参数、可选 ping、可选迁移。
// 失败时连接已关闭, 调用方只管返回错误。
func Setup(ctx context.Context, label, name string, gdb *gorm.DB, ds *DataSourceConfig) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return fmt.Errorf("get underlying sql.DB for %s failed: %w", name, err)
	}

	applyPoolSettings(sqlDB, ds)

	if ds.PingOnStart {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := sqlDB.PingContext(pingCtx)
		cancel()
		if err != nil {
			_ = sqlDB.Close()
			return fmt.Errorf("ping %s db %s failed: %w", label, name, err)
		}
	}

	if ds.MigrateEnabled {
		if strings.TrimSpace(ds.MigrateDir) == "" {
			_ = sqlDB.Close()
			return fmt.Errorf("%s datasource %s migrate_enabled=true but migrate_dir empty", label, name)
		}
		migStart := time.Now()
		logging.Infof(ctx, "[%s] datasource %s running migrations dir=%s", label, name, ds.MigrateDir)
		if err := RunMigrations(ctx, sqlDB, ds.MigrateDir); err != nil {
			_ = sqlDB.Close()
			return fmt.Errorf("%s datasource %s migrations failed: %w", label, name, err)
		}
		logging.Infof(ctx, "[%s] datasource %s migrations completed dur=%s", label, name, time.Since(migStart))
	}

	return nil
}

func applyPoolSettings(sqlDB *sql.DB, ds *DataSourceConfig) {
	maxOpen := ds.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 50
	}
	maxIdle := ds.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 10
	}
	maxLife := ds.ConnMaxLife
	if maxLife <= 0 {
		maxLife = 60 * time.Minute
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(maxLife)
	if ds.ConnMaxIdle > 0 {
		sqlDB.SetConnMaxIdleTime(ds.ConnMaxIdle)
	}
}

// RunMigrations 简单的分号切分执行。语句里带分号的函数体这套处理不了,
// 本仓库的建表脚本够用。
func RunMigrations(ctx context.Context, db *sql.DB, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read %s: %w", f, err)
		}
		for _, stmt := range strings.Split(string(b), ";") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("exec %s failed: %w", f, err)
			}
		}
	}
	return nil
}
