package service

import (
	"context"
	"testing"
	"time"
)

func TestProgressSetGetClear(t *testing.T) {
	rpm := NewRunProgressManager(time.Minute)

	rpm.Set("run-1", 3, 10, 2, 1)
	p := rpm.Get("run-1")
	if p == nil {
		t.Fatalf("expected progress entry")
	}
	if p.Processed != 3 || p.Total != 10 || p.Success != 2 || p.Errors != 1 {
		t.Fatalf("unexpected progress: %+v", p)
	}
	if p.Percent != 30 {
		t.Fatalf("expected 30%%, got %d", p.Percent)
	}
	if p.Updated.IsZero() {
		t.Fatalf("updated timestamp not set")
	}

	rpm.Clear("run-1")
	if rpm.Get("run-1") != nil {
		t.Fatalf("expected entry cleared")
	}
}

func TestProgressClamping(t *testing.T) {
	rpm := NewRunProgressManager(time.Minute)

	// processed beyond total clamps to total
	rpm.Set("run-1", 15, 10, 15, 0)
	if p := rpm.Get("run-1"); p.Processed != 10 || p.Percent != 100 {
		t.Fatalf("expected clamp to total: %+v", p)
	}

	// zero total never divides
	rpm.Set("run-2", 5, 0, 0, 0)
	if p := rpm.Get("run-2"); p.Percent != 0 {
		t.Fatalf("expected 0%% with zero total: %+v", p)
	}

	rpm.Set("run-3", -1, -1, 0, 0)
	if p := rpm.Get("run-3"); p.Processed != 0 || p.Total != 0 {
		t.Fatalf("negative inputs should clamp to zero: %+v", p)
	}
}

func TestProgressSweepDropsStaleEntries(t *testing.T) {
	rpm := NewRunProgressManager(time.Minute)
	rpm.Set("stale", 1, 2, 1, 0)
	rpm.Set("fresh", 1, 2, 1, 0)

	rpm.mu.Lock()
	rpm.data["stale"].Updated = time.Now().Add(-2 * time.Minute)
	rpm.mu.Unlock()

	rpm.sweep()
	if rpm.Get("stale") != nil {
		t.Fatalf("stale entry survived sweep")
	}
	if rpm.Get("fresh") == nil {
		t.Fatalf("fresh entry swept")
	}
}

func TestProgressStartStop(t *testing.T) {
	rpm := NewRunProgressManager(time.Minute)
	if err := rpm.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !rpm.IsActive() {
		t.Fatalf("expected active after start")
	}
	rpm.Set("run-1", 1, 2, 1, 0)
	if err := rpm.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if rpm.IsActive() {
		t.Fatalf("expected inactive after stop")
	}
}
