package registry

import (
	"fmt"
	"sort"

	"github.com/grand-thief-cash/tvaccess/internal/application/autowire"
	"github.com/grand-thief-cash/tvaccess/internal/application/config"
	"github.com/grand-thief-cash/tvaccess/internal/application/core"
)

// BuilderFunc 返回 (enabled, component, error)。enabled=false 表示按配置关闭, 跳过注册。
type BuilderFunc func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error)

// Builder 是一条组件构建登记。显式注册的名字来自 Register 调用;
// auto 注册的要先预构建一次, 用实例的 Name() 定名。
type Builder struct {
	Name   string
	Fn     BuilderFunc
	Auto   bool
	Deps   []string       // 构建期依赖, 只决定 builder 执行顺序
	cached core.Component // auto 预构建出的实例, 注册阶段直接复用
}

var builders []*Builder

func findBuilder(name string) *Builder {
	for _, b := range builders {
		if b.Name == name {
			return b
		}
	}
	return nil
}

func addBuilder(b *Builder) {
	if b.Name != "" && findBuilder(b.Name) != nil {
		panic("registry: duplicate builder name " + b.Name)
	}
	builders = append(builders, b)
}

// Register registers a component builder under an explicit name.
func Register(name string, fn BuilderFunc) {
	if name == "" {
		panic("registry: empty name in Register")
	}
	addBuilder(&Builder{Name: name, Fn: fn})
}

// RegisterWithDeps registers a named builder that runs after the named deps
// have been built and registered, so its BuilderFunc may Resolve them.
func RegisterWithDeps(name string, deps []string, fn BuilderFunc) {
	if name == "" {
		panic("registry: empty name in RegisterWithDeps")
	}
	addBuilder(&Builder{Name: name, Fn: fn, Deps: deps})
}

// RegisterAuto registers a builder whose name and build-time deps are inferred:
// the name from the constructed component's Name(), the deps from its tags.
func RegisterAuto(fn BuilderFunc) { addBuilder(&Builder{Auto: true, Fn: fn}) }

// fromFactory 把工厂返回值折成 builder 协议: 组件为 nil 即按配置未启用。
func fromFactory(comp core.Component, err error) (bool, core.Component, error) {
	if err != nil {
		return true, nil, err
	}
	return comp != nil, comp, nil
}

// BuildAndRegisterAll 走完整个装配流程: auto builder 定名推依赖, 按依赖排序,
// 逐个构建注册, 注入标签字段, 打运行期依赖补丁, 最后整图校验一次。
// 校验放在这里是为了让 "依赖的组件被配置关掉" 在启动前就报出具体的缺失对,
// 而不是等 StartAll 排序时才失败。
func BuildAndRegisterAll(cfg *config.AppConfig, c *core.Container) error {
	if err := resolveAutoBuilders(cfg, c); err != nil {
		return err
	}
	ordered, err := sortBuilders(builders)
	if err != nil {
		return err
	}
	for _, b := range ordered {
		comp, err := b.build(cfg, c)
		if err != nil {
			return fmt.Errorf("build %s failed: %w", b.Name, err)
		}
		if comp == nil {
			continue
		}
		if err := c.Register(b.Name, comp); err != nil {
			return fmt.Errorf("register %s failed: %w", b.Name, err)
		}
	}
	if err := autowire.InjectAll(c); err != nil {
		return err
	}
	applyRuntimeDepExtensions(c)
	if _, err := c.ValidateDependencies(); err != nil {
		return err
	}
	return nil
}

// build 返回要注册的组件, nil 表示按配置未启用。auto builder 不二次构建。
func (b *Builder) build(cfg *config.AppConfig, c *core.Container) (core.Component, error) {
	if b.Auto {
		return b.cached, nil
	}
	enabled, comp, err := b.Fn(cfg, c)
	if err != nil {
		return nil, err
	}
	if !enabled || comp == nil {
		return nil, nil
	}
	return comp, nil
}

// resolveAutoBuilders 预构建 auto builder。先统一定名再推依赖:
// 依赖可能指向靠后注册的 auto builder, 名字没定全之前对不上号。
func resolveAutoBuilders(cfg *config.AppConfig, c *core.Container) error {
	for _, b := range builders {
		if !b.Auto || b.Name != "" {
			continue
		}
		enabled, comp, err := b.Fn(cfg, c)
		if err != nil {
			return fmt.Errorf("prebuild auto component failed: %w", err)
		}
		if !enabled || comp == nil {
			continue
		}
		name := comp.Name()
		if name == "" {
			return fmt.Errorf("auto builder produced unnamed component")
		}
		if other := findBuilder(name); other != nil && other != b {
			return fmt.Errorf("duplicate inferred name: %s", name)
		}
		b.Name = name
		b.cached = comp
	}
	for _, b := range builders {
		if !b.Auto || b.cached == nil || len(b.Deps) > 0 {
			continue
		}
		// 只收登记过的名字; 指向运行期才存在的东西的标签 (可选依赖等) 不参与构建排序
		for _, d := range autowire.DepNames(b.cached) {
			if findBuilder(d) != nil {
				b.Deps = append(b.Deps, d)
			}
		}
	}
	return nil
}

// sortBuilders 给 builder 排出依赖优先的确定顺序: 反复按字典序扫一遍,
// 把依赖已就位的放进结果; 一轮下来一个都放不进去就是成环。
func sortBuilders(list []*Builder) ([]*Builder, error) {
	byName := make(map[string]*Builder)
	var names []string
	for _, b := range list {
		if b.Name == "" {
			continue // 预构建阶段判定为未启用的 auto builder
		}
		byName[b.Name] = b
		names = append(names, b.Name)
	}
	sort.Strings(names)

	placed := make(map[string]bool, len(names))
	ready := func(b *Builder) bool {
		for _, d := range b.Deps {
			if _, known := byName[d]; known && !placed[d] {
				return false
			}
		}
		return true
	}

	ordered := make([]*Builder, 0, len(names))
	for len(ordered) < len(names) {
		progressed := false
		for _, n := range names {
			if placed[n] || !ready(byName[n]) {
				continue
			}
			placed[n] = true
			ordered = append(ordered, byName[n])
			progressed = true
		}
		if !progressed {
			var stuck []string
			for _, n := range names {
				if !placed[n] {
					stuck = append(stuck, n)
				}
			}
			return nil, fmt.Errorf("registry: cyclic builder deps: %v", stuck)
		}
	}
	return ordered, nil
}
