package batcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func fastConfig() Config {
	return Config{
		MaxConcurrent:           4,
		BatchSize:               10,
		MinDelay:                time.Millisecond,
		MaxDelay:                8 * time.Millisecond,
		BackoffMultiplier:       2,
		CircuitBreakerThreshold: 100,
		CircuitBreakerTimeout:   30 * time.Millisecond,
	}
}

func mustNew(t *testing.T, cfg Config) *Batcher {
	t.Helper()
	b, err := New(cfg)
	if err != nil {
		t.Fatalf("new batcher: %v", err)
	}
	return b
}

func waitOutcome(t *testing.T, ch <-chan Outcome) Outcome {
	t.Helper()
	select {
	case oc := <-ch:
		return oc
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for outcome")
		return Outcome{}
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	if _, err := New(Config{MinDelay: 2 * time.Second, MaxDelay: time.Second}); err == nil {
		t.Fatalf("expected max_delay < min_delay rejection")
	}
	if _, err := New(Config{BackoffMultiplier: 0.5}); err == nil {
		t.Fatalf("expected multiplier rejection")
	}
}

func TestSubmitAndSettle(t *testing.T) {
	b := mustNew(t, fastConfig())
	b.Start(context.Background())
	defer b.Stop(context.Background())

	out := b.Submit(context.Background(), func(ctx context.Context) error { return nil }, SubmitOptions{})
	oc := waitOutcome(t, out)
	if oc.Err != nil {
		t.Fatalf("unexpected error: %v", oc.Err)
	}
	if oc.Attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", oc.Attempts)
	}
	if _, ok := <-out; ok {
		t.Fatalf("outcome channel should be closed after settling")
	}
}

func TestSubmitNilWork(t *testing.T) {
	b := mustNew(t, fastConfig())
	oc := waitOutcome(t, b.Submit(context.Background(), nil, SubmitOptions{}))
	if oc.Err == nil {
		t.Fatalf("expected error for nil work")
	}
}

func TestPriorityDrainOrder(t *testing.T) {
	cfg := fastConfig()
	cfg.BatchSize = 1 // one task per batch so execution order mirrors queue order
	b := mustNew(t, cfg)

	var mu sync.Mutex
	var order []string
	record := func(id string) Work {
		return func(ctx context.Context) error {
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
			return nil
		}
	}

	// all queued before the loop starts, so the queue decides the order
	chans := []<-chan Outcome{
		b.Submit(context.Background(), record("low"), SubmitOptions{Priority: 0}),
		b.Submit(context.Background(), record("high-1"), SubmitOptions{Priority: 5}),
		b.Submit(context.Background(), record("mid"), SubmitOptions{Priority: 1}),
		b.Submit(context.Background(), record("high-2"), SubmitOptions{Priority: 5}),
	}
	b.Start(context.Background())
	defer b.Stop(context.Background())
	for _, ch := range chans {
		waitOutcome(t, ch)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"high-1", "high-2", "mid", "low"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("drain order %v, want %v", order, want)
		}
	}
}

func TestInternalRetryBudget(t *testing.T) {
	b := mustNew(t, fastConfig())
	b.Start(context.Background())
	defer b.Stop(context.Background())

	var calls atomic.Int32
	flaky := func(ctx context.Context) error {
		if calls.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	}
	oc := waitOutcome(t, b.Submit(context.Background(), flaky, SubmitOptions{MaxRetries: 3}))
	if oc.Err != nil {
		t.Fatalf("expected success after retries, got %v", oc.Err)
	}
	if oc.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", oc.Attempts)
	}

	calls.Store(0)
	oc = waitOutcome(t, b.Submit(context.Background(), flaky, SubmitOptions{MaxRetries: 1}))
	if oc.Err == nil {
		t.Fatalf("expected failure once the budget is spent")
	}
	if oc.Attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", oc.Attempts)
	}
}

// Delay doubles after a failed batch, halves after a clean one, and stays
// inside [min_delay, max_delay]. Stats are read between sequential batches,
// so every expected value is exact.
func TestDelayGrowsAndDecays(t *testing.T) {
	b := mustNew(t, fastConfig())
	b.Start(context.Background())
	defer b.Stop(context.Background())

	fail := func(ctx context.Context) error { return errors.New("boom") }
	ok := func(ctx context.Context) error { return nil }

	wantAfterFail := []time.Duration{2 * time.Millisecond, 4 * time.Millisecond, 8 * time.Millisecond, 8 * time.Millisecond}
	for i, want := range wantAfterFail {
		waitOutcome(t, b.Submit(context.Background(), fail, SubmitOptions{}))
		if got := b.Stats().CurrentDelay; got != want {
			t.Fatalf("after failure %d: delay %s want %s", i+1, got, want)
		}
	}
	wantAfterOK := []time.Duration{4 * time.Millisecond, 2 * time.Millisecond, time.Millisecond, time.Millisecond}
	for i, want := range wantAfterOK {
		waitOutcome(t, b.Submit(context.Background(), ok, SubmitOptions{}))
		if got := b.Stats().CurrentDelay; got != want {
			t.Fatalf("after success %d: delay %s want %s", i+1, got, want)
		}
	}
}

func TestBreakerOpensThenProbeCloses(t *testing.T) {
	cfg := fastConfig()
	cfg.CircuitBreakerThreshold = 2
	b := mustNew(t, cfg)
	b.Start(context.Background())
	defer b.Stop(context.Background())

	fail := func(ctx context.Context) error { return errors.New("boom") }
	waitOutcome(t, b.Submit(context.Background(), fail, SubmitOptions{}))
	waitOutcome(t, b.Submit(context.Background(), fail, SubmitOptions{}))

	st := b.Stats()
	if st.BreakerState != BreakerOpen.String() {
		t.Fatalf("expected open breaker, got %s", st.BreakerState)
	}
	if st.ConsecutiveFailures != 2 {
		t.Fatalf("expected 2 consecutive failures, got %d", st.ConsecutiveFailures)
	}

	// Queued during the open window; drained as the half-open probe.
	start := time.Now()
	oc := waitOutcome(t, b.Submit(context.Background(), func(ctx context.Context) error { return nil }, SubmitOptions{}))
	if oc.Err != nil {
		t.Fatalf("probe task failed: %v", oc.Err)
	}
	if waited := time.Since(start); waited < 10*time.Millisecond {
		t.Fatalf("probe ran after %s, open window not honored", waited)
	}
	st = b.Stats()
	if st.BreakerState != BreakerClosed.String() {
		t.Fatalf("expected closed breaker after probe, got %s", st.BreakerState)
	}
	if st.ConsecutiveFailures != 0 {
		t.Fatalf("expected failure streak reset, got %d", st.ConsecutiveFailures)
	}
}

func TestBreakerReopensWhenProbeFails(t *testing.T) {
	cfg := fastConfig()
	cfg.CircuitBreakerThreshold = 1
	cfg.CircuitBreakerTimeout = 20 * time.Millisecond
	b := mustNew(t, cfg)
	b.Start(context.Background())
	defer b.Stop(context.Background())

	fail := func(ctx context.Context) error { return errors.New("boom") }
	waitOutcome(t, b.Submit(context.Background(), fail, SubmitOptions{}))
	if st := b.Stats(); st.BreakerState != BreakerOpen.String() {
		t.Fatalf("expected open breaker, got %s", st.BreakerState)
	}

	// failing probe puts the breaker straight back to open
	waitOutcome(t, b.Submit(context.Background(), fail, SubmitOptions{}))
	if st := b.Stats(); st.BreakerState != BreakerOpen.String() {
		t.Fatalf("expected reopened breaker, got %s", st.BreakerState)
	}

	// a clean probe after the next window closes it again
	oc := waitOutcome(t, b.Submit(context.Background(), func(ctx context.Context) error { return nil }, SubmitOptions{}))
	if oc.Err != nil {
		t.Fatalf("probe failed: %v", oc.Err)
	}
	if st := b.Stats(); st.BreakerState != BreakerClosed.String() {
		t.Fatalf("expected closed breaker, got %s", st.BreakerState)
	}
}

func TestMaxConcurrentBound(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxConcurrent = 2
	cfg.BatchSize = 8
	b := mustNew(t, cfg)

	var cur, peak atomic.Int32
	work := func(ctx context.Context) error {
		n := cur.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		cur.Add(-1)
		return nil
	}

	var chans []<-chan Outcome
	for i := 0; i < 8; i++ {
		chans = append(chans, b.Submit(context.Background(), work, SubmitOptions{}))
	}
	b.Start(context.Background())
	defer b.Stop(context.Background())
	for _, ch := range chans {
		waitOutcome(t, ch)
	}
	if p := peak.Load(); p > 2 {
		t.Fatalf("max concurrent exceeded: peak %d", p)
	}
}

func TestStopSettlesQueuedTasks(t *testing.T) {
	b := mustNew(t, fastConfig())
	var chans []<-chan Outcome
	for i := 0; i < 3; i++ {
		chans = append(chans, b.Submit(context.Background(), func(ctx context.Context) error { return nil }, SubmitOptions{}))
	}
	if err := b.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	for i, ch := range chans {
		oc := waitOutcome(t, ch)
		if !errors.Is(oc.Err, ErrStopped) {
			t.Fatalf("task %d: expected ErrStopped, got %v", i, oc.Err)
		}
	}
	// intake stays closed for good
	oc := waitOutcome(t, b.Submit(context.Background(), func(ctx context.Context) error { return nil }, SubmitOptions{}))
	if !errors.Is(oc.Err, ErrStopped) {
		t.Fatalf("submit after stop: expected ErrStopped, got %v", oc.Err)
	}
}
