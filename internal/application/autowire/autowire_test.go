package autowire_test

import (
	"strings"
	"testing"

	"github.com/grand-thief-cash/tvaccess/internal/application/autowire"
	"github.com/grand-thief-cash/tvaccess/internal/application/core"
)

type storeStub struct {
	*core.BaseComponent
}

type notifierStub struct {
	*core.BaseComponent
}

type worker interface {
	core.Component
}

// consumerStub exercises required, optional and interface-typed fields.
type consumerStub struct {
	*core.BaseComponent
	Store    *storeStub    `infra:"dep:store"`
	Notifier *notifierStub `infra:"dep:notifier?"`
	Worker   worker        `infra:"dep:store"`
}

func TestInjectAllRequiredAndOptional(t *testing.T) {
	c := core.NewContainer()
	store := &storeStub{BaseComponent: core.NewBaseComponent("store")}
	consumer := &consumerStub{BaseComponent: core.NewBaseComponent("consumer")}
	if err := c.Register("store", store); err != nil {
		t.Fatalf("register store failed: %v", err)
	}
	if err := c.Register("consumer", consumer); err != nil {
		t.Fatalf("register consumer failed: %v", err)
	}

	if err := autowire.InjectAll(c); err != nil {
		t.Fatalf("autowire failed: %v", err)
	}
	if consumer.Store != store {
		t.Fatalf("required dep not injected")
	}
	if consumer.Worker == nil {
		t.Fatalf("interface field not injected")
	}
	if consumer.Notifier != nil {
		t.Fatalf("optional missing dep should stay nil, got %v", consumer.Notifier)
	}

	// Injection must extend runtime dependencies so start ordering holds.
	deps := consumer.Dependencies()
	found := false
	for _, d := range deps {
		if d == "store" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected store appended to runtime deps, got %v", deps)
	}
}

func TestInjectMissingRequiredDepFails(t *testing.T) {
	c := core.NewContainer()
	consumer := &consumerStub{BaseComponent: core.NewBaseComponent("consumer")}
	if err := c.Register("consumer", consumer); err != nil {
		t.Fatalf("register consumer failed: %v", err)
	}
	err := autowire.InjectAll(c)
	if err == nil {
		t.Fatalf("expected error for missing required dep")
	}
	if !strings.Contains(err.Error(), "store") {
		t.Fatalf("error should name the missing dep, got: %v", err)
	}
}

func TestDepNamesDeduplicates(t *testing.T) {
	consumer := &consumerStub{BaseComponent: core.NewBaseComponent("consumer")}
	names := autowire.DepNames(consumer)
	// store 被两个字段引用, 返回值要去重
	if len(names) != 2 {
		t.Fatalf("expected 2 unique deps, got %v", names)
	}
	want := map[string]bool{"store": true, "notifier": true}
	for _, n := range names {
		if !want[n] {
			t.Fatalf("unexpected dep %q in %v", n, names)
		}
	}
}

func TestInjectOptionalPresent(t *testing.T) {
	c := core.NewContainer()
	store := &storeStub{BaseComponent: core.NewBaseComponent("store")}
	notifier := &notifierStub{BaseComponent: core.NewBaseComponent("notifier")}
	consumer := &consumerStub{BaseComponent: core.NewBaseComponent("consumer")}
	_ = c.Register("store", store)
	_ = c.Register("notifier", notifier)
	_ = c.Register("consumer", consumer)

	if err := autowire.InjectAll(c); err != nil {
		t.Fatalf("autowire failed: %v", err)
	}
	if consumer.Notifier != notifier {
		t.Fatalf("optional dep present but not injected")
	}
}
