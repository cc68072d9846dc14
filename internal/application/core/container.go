package core

import (
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
)

// Container 按名字持有组件实例, 并提供依赖拓扑排序。
type Container struct {
	mu     sync.RWMutex
	byName map[string]Component
}

func NewContainer() *Container {
	return &Container{byName: make(map[string]Component)}
}

// Register 同名重复注册直接报错, 不做覆盖。
func (c *Container) Register(name string, component Component) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.byName[name]; dup {
		return fmt.Errorf("component %s already registered", name)
	}
	c.byName[name] = component
	return nil
}

func (c *Container) Resolve(name string) (Component, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	comp, ok := c.byName[name]
	if !ok {
		return nil, fmt.Errorf("component %s not found", name)
	}
	return comp, nil
}

// ListRegistered 返回快照副本, 调用方可以随意改。
func (c *Container) ListRegistered() map[string]Component {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.byName)
}

// Replace 替换尚未激活的组件, 测试里用来塞桩。
func (c *Container) Replace(name string, component Component) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	current, ok := c.byName[name]
	if !ok {
		return fmt.Errorf("component %s not registered", name)
	}
	if current.IsActive() {
		return fmt.Errorf("component %s is active; cannot replace", name)
	}
	c.byName[name] = component
	return nil
}

const (
	markVisiting = 1
	markDone     = 2
)

// SortComponentsByDependencies 深度优先拓扑排序。根名单先排字典序,
// 同一份注册表每次产出同一个启动顺序。
func (c *Container) SortComponentsByDependencies() ([]Component, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	marks := make(map[string]int, len(c.byName))
	order := make([]Component, 0, len(c.byName))

	var visit func(name, neededBy string) error
	visit = func(name, neededBy string) error {
		switch marks[name] {
		case markVisiting:
			return fmt.Errorf("circular dependency detected involving component %s", name)
		case markDone:
			return nil
		}
		comp, ok := c.byName[name]
		if !ok {
			if neededBy != "" {
				return fmt.Errorf("component %s not found (dependency of %s)", name, neededBy)
			}
			return fmt.Errorf("component %s not found", name)
		}
		marks[name] = markVisiting
		for _, dep := range comp.Dependencies() {
			if err := visit(dep, name); err != nil {
				return err
			}
		}
		marks[name] = markDone
		order = append(order, comp)
		return nil
	}

	for _, name := range c.sortedNamesLocked() {
		if err := visit(name, ""); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// ValidateDependencies 校验声明的依赖都已注册且无环, 返回拓扑序但不启动。
// 缺失信息按组件名排序, 方便断言和肉眼比对。
func (c *Container) ValidateDependencies() ([]Component, error) {
	c.mu.RLock()
	var problems []string
	for _, name := range c.sortedNamesLocked() {
		var missing []string
		for _, dep := range c.byName[name].Dependencies() {
			if _, ok := c.byName[dep]; !ok {
				missing = append(missing, dep)
			}
		}
		if len(missing) > 0 {
			problems = append(problems, fmt.Sprintf("%s -> [%s]", name, strings.Join(missing, ",")))
		}
	}
	c.mu.RUnlock()
	if len(problems) > 0 {
		return nil, fmt.Errorf("missing component dependencies: %s", strings.Join(problems, "; "))
	}
	return c.SortComponentsByDependencies()
}

// 调用方需持有读锁。
func (c *Container) sortedNamesLocked() []string {
	names := make([]string, 0, len(c.byName))
	for name := range c.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
