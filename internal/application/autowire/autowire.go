// Package autowire resolves `infra:"dep:<name>"` struct tags against the
// component container. A trailing '?' marks the dependency optional: if the
// component was never registered the field keeps its zero value. Injected
// names are also appended to the target's runtime dependencies so the
// container keeps start/stop ordering consistent with the wiring.
package autowire

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/grand-thief-cash/tvaccess/internal/application/core"
)

type runtimeDepAdder interface {
	AddDependencies(...string)
}

// InjectAll walks every registered component. Runs after all builders, so
// registration order is irrelevant here.
func InjectAll(c *core.Container) error {
	var errs []error
	for name, comp := range c.ListRegistered() {
		if err := Inject(c, comp); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("autowire: %w", errors.Join(errs...))
	}
	return nil
}

// Inject fills the tagged fields of a single component. Non-struct or
// non-pointer components are skipped silently; they cannot carry tags.
func Inject(c *core.Container, comp core.Component) error {
	val, ok := structValue(comp)
	if !ok {
		return nil
	}
	adder, _ := comp.(runtimeDepAdder)

	return forEachDepField(val, func(field reflect.StructField, fv reflect.Value, name string, optional bool) error {
		resolved, err := c.Resolve(name)
		if err != nil {
			if optional {
				return nil
			}
			return fmt.Errorf("resolve %s failed: %w", name, err)
		}
		if !fv.CanSet() {
			return fmt.Errorf("field %s not settable (must be exported)", field.Name)
		}
		if err := assign(fv, resolved); err != nil {
			return fmt.Errorf("assign %s -> field %s failed: %w", name, field.Name, err)
		}
		if adder != nil {
			adder.AddDependencies(name)
		}
		return nil
	})
}

// DepNames lists the dependency names a component declares through its tags,
// deduplicated, optional ones included. Used by the registry to order builders.
func DepNames(comp interface{}) []string {
	val, ok := structValue(comp)
	if !ok {
		return nil
	}
	seen := make(map[string]struct{})
	var names []string
	_ = forEachDepField(val, func(_ reflect.StructField, _ reflect.Value, name string, _ bool) error {
		if _, dup := seen[name]; !dup {
			seen[name] = struct{}{}
			names = append(names, name)
		}
		return nil
	})
	return names
}

// structValue 解出组件底层的 struct。typed-nil 指针在这里挡掉。
func structValue(comp interface{}) (reflect.Value, bool) {
	val := reflect.ValueOf(comp)
	if val.Kind() != reflect.Ptr {
		return reflect.Value{}, false
	}
	val = val.Elem()
	if val.Kind() != reflect.Struct {
		return reflect.Value{}, false
	}
	return val, true
}

// forEachDepField 按声明顺序过一遍带依赖标签的可导出字段, fn 报错即中断。
func forEachDepField(val reflect.Value, fn func(field reflect.StructField, fv reflect.Value, name string, optional bool) error) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if field.PkgPath != "" { // unexported
			continue
		}
		name, optional, ok := parseDepTag(field.Tag.Get("infra"))
		if !ok {
			continue
		}
		if err := fn(field, val.Field(i), name, optional); err != nil {
			return err
		}
	}
	return nil
}

func parseDepTag(tag string) (name string, optional bool, ok bool) {
	name, ok = strings.CutPrefix(tag, "dep:")
	if !ok {
		return "", false, false
	}
	name, optional = strings.CutSuffix(name, "?")
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false, false
	}
	return name, optional, true
}

func assign(dst reflect.Value, src interface{}) error {
	sv := reflect.ValueOf(src)
	switch {
	case dst.Kind() == reflect.Interface && !sv.Type().Implements(dst.Type()):
		return fmt.Errorf("%s does not implement %s", sv.Type(), dst.Type())
	case dst.Kind() == reflect.Interface || sv.Type().AssignableTo(dst.Type()):
		dst.Set(sv)
		return nil
	case sv.Type().ConvertibleTo(dst.Type()):
		dst.Set(sv.Convert(dst.Type()))
		return nil
	default:
		return fmt.Errorf("incompatible types: %s -> %s", sv.Type(), dst.Type())
	}
}
