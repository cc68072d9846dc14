// core/component.go
package core

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
)

// Component 组件统一接口, 容器按 Dependencies 声明的顺序编排 Start/Stop
type Component interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	HealthCheck() error
	Dependencies() []string
	IsActive() bool
}

// BaseComponent 嵌入用基础实现。active 用原子量:
// 健康检查从 HTTP handler 读, 关停流程在另一个 goroutine 写。
type BaseComponent struct {
	name   string
	active atomic.Bool
	deps   []string
}

func NewBaseComponent(name string, deps ...string) *BaseComponent {
	return &BaseComponent{name: name, deps: deps}
}

func (c *BaseComponent) Name() string           { return c.name }
func (c *BaseComponent) Dependencies() []string { return c.deps }
func (c *BaseComponent) IsActive() bool         { return c.active.Load() }
func (c *BaseComponent) SetActive(active bool)  { c.active.Store(active) }

func (c *BaseComponent) Start(ctx context.Context) error {
	c.active.Store(true)
	return nil
}

func (c *BaseComponent) Stop(ctx context.Context) error {
	c.active.Store(false)
	return nil
}

func (c *BaseComponent) HealthCheck() error {
	if !c.active.Load() {
		return fmt.Errorf("component %s is not active", c.name)
	}
	return nil
}

// AddDependencies 在 StartAll 之前追加启动顺序约束。自动注入和静态声明
// 可能重复提交同一个名字, 这里去重, 避免拓扑图里堆积平行边。
func (c *BaseComponent) AddDependencies(deps ...string) {
	for _, d := range deps {
		if d == "" || slices.Contains(c.deps, d) {
			continue
		}
		c.deps = append(c.deps, d)
	}
}
