package application

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/grand-thief-cash/tvaccess/internal/application/config"
	"github.com/grand-thief-cash/tvaccess/internal/application/consts"
	"github.com/grand-thief-cash/tvaccess/internal/application/core"
	"github.com/grand-thief-cash/tvaccess/internal/application/hooks"
	"github.com/grand-thief-cash/tvaccess/internal/application/registry"
)

// App 进程骨架: 配置加载 -> 组件构建 -> 生命周期运行。
type App struct {
	container *core.Container
	lifecycle *core.LifecycleManager
	cfgMgr    *config.ConfigManager

	bootOnce sync.Once
	bootErr  error

	shutdownTimeout time.Duration
}

var (
	defaultApp  *App
	defaultOnce sync.Once
)

// GetApp 返回进程级单例。环境与配置路径取自 APP_ENV / APP_CONFIG,
// 缺省 development + config.yaml。
func GetApp() *App {
	defaultOnce.Do(func() {
		defaultApp = NewApp(
			envOr("APP_ENV", consts.ENV_DEVELOPMENT),
			envOr("APP_CONFIG", consts.DEFAULT_CONFIG_PATH),
		)
	})
	return defaultApp
}

func NewApp(env, configPath string) *App {
	if abs, err := filepath.Abs(configPath); err == nil {
		configPath = abs
	}
	c := core.NewContainer()
	return &App{
		container: c,
		// 挂到全局钩子管理器上, hooks/default.go 里 init 注册的默认钩子才会生效。
		lifecycle:       core.NewLifecycleManagerWithManager(c, hooks.GetGlobalHookManager()),
		cfgMgr:          config.NewConfigManager(env, configPath),
		shutdownTimeout: 30 * time.Second,
	}
}

func (app *App) SetShutdownTimeout(d time.Duration) { app.shutdownTimeout = d }

// SetBizConfig 注入 biz_config 小节的目标指针, 必须在 Run 之前调用。
func (app *App) SetBizConfig(b any) { app.cfgMgr.SetBizConfig(b) }

func (app *App) GetConfig() *config.AppConfig {
	if app.cfgMgr == nil {
		return nil
	}
	return app.cfgMgr.GetConfig()
}

func (app *App) boot() error {
	app.bootOnce.Do(func() { app.bootErr = app.buildComponents() })
	return app.bootErr
}

func (app *App) buildComponents() error {
	if err := app.cfgMgr.LoadConfig(); err != nil {
		return fmt.Errorf("load config failed: %w", err)
	}
	cfg := app.cfgMgr.GetConfig()
	if cfg == nil {
		return fmt.Errorf("config not loaded")
	}
	// 各组件在自己 registry/*.go 的 init() 里注册 builder, 这里统一构建。
	if err := registry.BuildAndRegisterAll(cfg, app.container); err != nil {
		return fmt.Errorf("register components failed: %w", err)
	}
	return nil
}

// Run 选择关停模式:
//  1. APP_DISABLE_ENHANCED_SHUTDOWN=1 -> 基础模式 (单信号, 无强退)
//  2. APP_FORCE_ENHANCED_SHUTDOWN=1   -> 增强模式
//  3. 默认 Windows 增强, 其它平台基础
//
// 增强模式下另有:
//
//	APP_DISABLE_FORCE_EXIT=1  禁用超时/第二信号强退
//	APP_FORCE_EXIT_CODE=<int> 强退码 (默认 1)
func (app *App) Run() error {
	if app.useEnhancedShutdown() {
		return app.runEnhanced()
	}
	return app.runBasic()
}

func (app *App) runBasic() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return app.RunWithContext(ctx)
}

// runEnhanced: 第一个信号走优雅关停; 之后超时或第二个信号强退进程。
// 强退兜底针对的是批次内仍在限速等待的提交把 Stop 拖住的情况。
func (app *App) runEnhanced() error {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// Stop 必须先于 close, 否则关闭后到达的信号会打在已关闭的 channel 上。
	defer func() {
		signal.Stop(sigCh)
		close(sigCh)
	}()

	installCtrlHandler(cancel, app.shutdownTimeout)
	go app.escalateOnSignal(sigCh, cancel)

	return app.RunWithContext(ctx)
}

// escalateOnSignal 把第一个信号转成 cancel, 然后盯着超时和第二个信号。
// channel 被关掉说明进程已经正常退出, 直接收工。
func (app *App) escalateOnSignal(sigCh <-chan os.Signal, cancel context.CancelFunc) {
	sig, ok := <-sigCh
	if !ok {
		return
	}
	log.Printf("received signal %s, initiating graceful shutdown (timeout %s)", sig, app.shutdownTimeout)
	cancel()

	timer := time.NewTimer(app.shutdownTimeout)
	defer timer.Stop()
	select {
	case <-timer.C:
		app.forceExit("graceful-timeout")
	case _, ok := <-sigCh:
		if ok {
			app.forceExit("second-signal")
		}
	}
}

func (app *App) forceExit(reason string) {
	if envSet("APP_DISABLE_FORCE_EXIT") {
		log.Printf("[graceful] force exit suppressed (%s)", reason)
		return
	}
	code := 1
	if n, err := strconv.Atoi(os.Getenv("APP_FORCE_EXIT_CODE")); err == nil {
		code = n
	}
	log.Printf("[graceful] forcing process exit (code=%d) reason=%s", code, reason)
	os.Exit(code)
}

func (app *App) useEnhancedShutdown() bool {
	switch {
	case envSet("APP_DISABLE_ENHANCED_SHUTDOWN"):
		return false
	case envSet("APP_FORCE_ENHANCED_SHUTDOWN"):
		return true
	default:
		return runtime.GOOS == "windows"
	}
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func envSet(name string) bool {
	_, ok := os.LookupEnv(name)
	return ok
}

// installCtrlHandler 仅在 Windows 挂控制台事件, 其它平台 no-op。
func installCtrlHandler(cancel context.CancelFunc, timeout time.Duration) {
	if runtime.GOOS != "windows" {
		return
	}
	core.InstallWindowsCtrlHandler(cancel, timeout)
}

// RunWithContext 启动全部组件并阻塞到 ctx 取消, 然后逆序优雅关停。
func (app *App) RunWithContext(ctx context.Context) error {
	if err := app.boot(); err != nil {
		return err
	}
	if err := app.lifecycle.StartAll(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	app.lifecycle.StopAll(context.Background())
	return nil
}
