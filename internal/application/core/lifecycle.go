// core/lifecycle.go
package core

import (
	"context"
	"fmt"
	"log"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/grand-thief-cash/tvaccess/internal/application/hooks"
)

// LifecycleManager 按依赖序启动组件, 逆序停止。启动失败即回滚已启动部分。
// 这里只能用标准库 log: logging 组件本身也归它启动, 启动前全局 logger 还是 noop。
type LifecycleManager struct {
	container    *Container
	hookManager  *hooks.Manager
	shutdownOnce sync.Once
	timeout      time.Duration
}

func NewLifecycleManager(container *Container) *LifecycleManager {
	return NewLifecycleManagerWithManager(container, hooks.NewManager())
}

// NewLifecycleManagerWithManager 使用外部钩子管理器 (通常是全局的, 让 default hooks 生效)
func NewLifecycleManagerWithManager(container *Container, hm *hooks.Manager) *LifecycleManager {
	if hm == nil {
		hm = hooks.NewManager()
	}
	return &LifecycleManager{
		container:   container,
		hookManager: hm,
		timeout:     30 * time.Second,
	}
}

// SetTimeout 设置单个组件 Start/Stop 的超时
func (lm *LifecycleManager) SetTimeout(timeout time.Duration) {
	lm.timeout = timeout
}

func (lm *LifecycleManager) StartAll(ctx context.Context) error {
	if err := lm.hookManager.Execute(ctx, hooks.BeforeStart); err != nil {
		return fmt.Errorf("before_start hooks failed: %w", err)
	}

	components, err := lm.container.SortComponentsByDependencies()
	if err != nil {
		return fmt.Errorf("failed to sort components: %w", err)
	}

	for i, comp := range components {
		if err := lm.startOne(ctx, comp); err != nil {
			// 已启动的部分逆序退场, 不留半拉子进程
			lm.stopComponents(context.Background(), components[:i])
			return err
		}
	}

	if err := lm.hookManager.Execute(ctx, hooks.AfterStart); err != nil {
		log.Printf("after_start hooks failed: %v", err)
	}
	return nil
}

func (lm *LifecycleManager) startOne(ctx context.Context, comp Component) error {
	startCtx, cancel := context.WithTimeout(ctx, lm.timeout)
	defer cancel()
	if err := comp.Start(startCtx); err != nil {
		return fmt.Errorf("failed to start component %s: %w", comp.Name(), err)
	}
	log.Printf("component %s started", comp.Name())
	return nil
}

// StopAll 逆依赖序停止全部组件, 幂等。
func (lm *LifecycleManager) StopAll(ctx context.Context) {
	lm.shutdownOnce.Do(func() {
		log.Println("shutdown sequence initiated")

		if err := lm.hookManager.Execute(ctx, hooks.BeforeShutdown); err != nil {
			log.Printf("before_shutdown hooks failed: %v", err)
		}

		components, err := lm.container.SortComponentsByDependencies()
		if err != nil {
			// 图排序失败也要停: 退化为注册表顺序
			log.Printf("sort components for shutdown failed: %v", err)
			components = slices.Collect(maps.Values(lm.container.ListRegistered()))
		}

		lm.stopComponents(ctx, components)

		if err := lm.hookManager.Execute(ctx, hooks.AfterShutdown); err != nil {
			log.Printf("after_shutdown hooks failed: %v", err)
		}

		log.Println("shutdown sequence completed")
	})
}

// stopComponents 逆序停掉列表里仍活跃的组件, 单个失败只记日志不中断。
func (lm *LifecycleManager) stopComponents(ctx context.Context, components []Component) {
	for i := len(components) - 1; i >= 0; i-- {
		comp := components[i]
		if !comp.IsActive() {
			continue
		}
		stopCtx, cancel := context.WithTimeout(ctx, lm.timeout)
		err := comp.Stop(stopCtx)
		cancel()
		if err != nil {
			log.Printf("stop component %s: %v", comp.Name(), err)
			continue
		}
		log.Printf("component %s stopped", comp.Name())
	}
}
