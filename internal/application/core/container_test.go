package core_test

import (
	"strings"
	"testing"

	"github.com/grand-thief-cash/tvaccess/internal/application/core"
)

func register(t *testing.T, c *core.Container, name string, deps ...string) *core.BaseComponent {
	t.Helper()
	comp := core.NewBaseComponent(name, deps...)
	if err := c.Register(name, comp); err != nil {
		t.Fatalf("register %s failed: %v", name, err)
	}
	return comp
}

func indexOf(order []core.Component, name string) int {
	for i, comp := range order {
		if comp.Name() == name {
			return i
		}
	}
	return -1
}

func TestRegisterRejectsDuplicate(t *testing.T) {
	c := core.NewContainer()
	register(t, c, "store")
	if err := c.Register("store", core.NewBaseComponent("store")); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
	if _, err := c.Resolve("store"); err != nil {
		t.Fatalf("resolve after duplicate attempt failed: %v", err)
	}
}

func TestSortOrdersDependenciesFirst(t *testing.T) {
	c := core.NewContainer()
	register(t, c, "server", "service")
	register(t, c, "service", "store")
	register(t, c, "store")

	order, err := c.SortComponentsByDependencies()
	if err != nil {
		t.Fatalf("sort failed: %v", err)
	}
	if len(order) != 3 {
		t.Fatalf("expected 3 components, got %d", len(order))
	}
	if !(indexOf(order, "store") < indexOf(order, "service") && indexOf(order, "service") < indexOf(order, "server")) {
		names := make([]string, 0, len(order))
		for _, comp := range order {
			names = append(names, comp.Name())
		}
		t.Fatalf("bad start order: %v", names)
	}
}

func TestSortDetectsCycle(t *testing.T) {
	c := core.NewContainer()
	register(t, c, "a", "b")
	register(t, c, "b", "a")

	if _, err := c.SortComponentsByDependencies(); err == nil {
		t.Fatalf("expected cycle error")
	}
}

func TestSortNamesMissingDependencyPair(t *testing.T) {
	c := core.NewContainer()
	register(t, c, "service", "store")

	_, err := c.SortComponentsByDependencies()
	if err == nil {
		t.Fatalf("expected missing dependency error")
	}
	if !strings.Contains(err.Error(), "store") || !strings.Contains(err.Error(), "service") {
		t.Fatalf("error should name both sides, got: %v", err)
	}
}

func TestReplaceOnlyWhenInactive(t *testing.T) {
	c := core.NewContainer()
	comp := register(t, c, "store")

	stub := core.NewBaseComponent("store")
	if err := c.Replace("store", stub); err != nil {
		t.Fatalf("replace inactive failed: %v", err)
	}
	got, _ := c.Resolve("store")
	if got != core.Component(stub) {
		t.Fatalf("replace did not take effect")
	}

	stub.SetActive(true)
	if err := c.Replace("store", comp); err == nil {
		t.Fatalf("expected replace of active component to fail")
	}
}

func TestValidateDependenciesReportsAllMissing(t *testing.T) {
	c := core.NewContainer()
	register(t, c, "service", "store", "cache")

	_, err := c.ValidateDependencies()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "store") || !strings.Contains(msg, "cache") {
		t.Fatalf("expected both missing deps listed, got: %v", err)
	}

	register(t, c, "store")
	register(t, c, "cache")
	order, err := c.ValidateDependencies()
	if err != nil {
		t.Fatalf("validation failed after registering deps: %v", err)
	}
	if len(order) != 3 {
		t.Fatalf("expected full topo order, got %d entries", len(order))
	}
}
