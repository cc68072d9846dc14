// hooks/manager.go
package hooks

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
)

// Phase 生命周期阶段
type Phase string

const (
	BeforeStart    Phase = "before_start"
	AfterStart     Phase = "after_start"
	BeforeShutdown Phase = "before_shutdown"
	AfterShutdown  Phase = "after_shutdown"
)

// HookFunc 钩子函数签名
type HookFunc func(ctx context.Context) error

// Hook 一个具名钩子; Priority 数值越小越先执行
type Hook struct {
	Name     string
	Phase    Phase
	Function HookFunc
	Priority int
}

// Manager 按阶段管理钩子
type Manager struct {
	mu    sync.RWMutex
	hooks map[Phase][]*Hook
}

// NewManager 创建钩子管理器
func NewManager() *Manager {
	return &Manager{hooks: make(map[Phase][]*Hook)}
}

// Register 注册钩子; 同一阶段内名称必须唯一
func (m *Manager) Register(hook *Hook) error {
	if hook == nil || hook.Function == nil {
		return fmt.Errorf("hook or hook function cannot be nil")
	}
	if hook.Name == "" {
		return fmt.Errorf("hook name cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.hooks[hook.Phase] {
		if existing.Name == hook.Name {
			return fmt.Errorf("hook %s already registered for phase %s", hook.Name, hook.Phase)
		}
	}
	m.hooks[hook.Phase] = append(m.hooks[hook.Phase], hook)
	slices.SortStableFunc(m.hooks[hook.Phase], func(a, b *Hook) int {
		return cmp.Compare(a.Priority, b.Priority)
	})
	return nil
}

// Execute 执行指定阶段的全部钩子; 首个错误即中断
func (m *Manager) Execute(ctx context.Context, phase Phase) error {
	m.mu.RLock()
	list := slices.Clone(m.hooks[phase])
	m.mu.RUnlock()

	for _, hook := range list {
		if err := hook.Function(ctx); err != nil {
			return fmt.Errorf("hook %s (phase %s) failed: %w", hook.Name, phase, err)
		}
	}
	return nil
}
