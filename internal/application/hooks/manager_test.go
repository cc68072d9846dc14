package hooks

import (
	"context"
	"errors"
	"testing"
)

func record(order *[]string, name string) HookFunc {
	return func(context.Context) error {
		*order = append(*order, name)
		return nil
	}
}

func TestRegisterOrdersByPriority(t *testing.T) {
	m := NewManager()
	var order []string
	for _, h := range []struct {
		name string
		prio int
	}{{"late", 30}, {"early", 10}, {"mid", 20}} {
		if err := m.Register(&Hook{Name: h.name, Phase: BeforeStart, Function: record(&order, h.name), Priority: h.prio}); err != nil {
			t.Fatalf("register %s: %v", h.name, err)
		}
	}

	if err := m.Execute(context.Background(), BeforeStart); err != nil {
		t.Fatalf("execute: %v", err)
	}
	want := []string{"early", "mid", "late"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestRegisterRejectsDuplicateNameWithinPhase(t *testing.T) {
	m := NewManager()
	noop := func(context.Context) error { return nil }
	if err := m.Register(&Hook{Name: "same", Phase: BeforeStart, Function: noop}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := m.Register(&Hook{Name: "same", Phase: BeforeStart, Function: noop}); err == nil {
		t.Fatalf("duplicate name in one phase should fail")
	}
	// 不同阶段允许重名
	if err := m.Register(&Hook{Name: "same", Phase: AfterStart, Function: noop}); err != nil {
		t.Fatalf("same name in another phase: %v", err)
	}
}

func TestRegisterRejectsInvalidHooks(t *testing.T) {
	m := NewManager()
	if err := m.Register(nil); err == nil {
		t.Fatalf("nil hook should fail")
	}
	if err := m.Register(&Hook{Name: "x", Phase: BeforeStart}); err == nil {
		t.Fatalf("nil function should fail")
	}
	if err := m.Register(&Hook{Phase: BeforeStart, Function: func(context.Context) error { return nil }}); err == nil {
		t.Fatalf("empty name should fail")
	}
}

func TestExecuteStopsAtFirstError(t *testing.T) {
	m := NewManager()
	boom := errors.New("boom")
	ran := false
	_ = m.Register(&Hook{Name: "fail", Phase: BeforeShutdown, Function: func(context.Context) error { return boom }, Priority: 1})
	_ = m.Register(&Hook{Name: "after", Phase: BeforeShutdown, Function: func(context.Context) error { ran = true; return nil }, Priority: 2})

	err := m.Execute(context.Background(), BeforeShutdown)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped boom", err)
	}
	if ran {
		t.Fatalf("later hook must not run after a failure")
	}
}

func TestExecuteEmptyPhase(t *testing.T) {
	if err := NewManager().Execute(context.Background(), AfterShutdown); err != nil {
		t.Fatalf("empty phase: %v", err)
	}
}
