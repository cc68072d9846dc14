package bulk

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/grand-thief-cash/tvaccess/internal/batcher"
	"github.com/grand-thief-cash/tvaccess/internal/tvapi"
)

// stubSched runs submitted work inline and settles immediately.
type stubSched struct {
	mu         sync.Mutex
	submits    int
	priorities []int
}

func (s *stubSched) Submit(ctx context.Context, work batcher.Work, opts batcher.SubmitOptions) <-chan batcher.Outcome {
	s.mu.Lock()
	s.submits++
	s.priorities = append(s.priorities, opts.Priority)
	s.mu.Unlock()
	out := make(chan batcher.Outcome, 1)
	out <- batcher.Outcome{Err: work(ctx), Attempts: 1}
	close(out)
	return out
}

func (s *stubSched) Stats() batcher.Stats { return batcher.Stats{} }

func (s *stubSched) submitCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submits
}

// stoppedSched settles everything with ErrStopped without running the work.
type stoppedSched struct{ submits atomic.Int32 }

func (s *stoppedSched) Submit(ctx context.Context, work batcher.Work, opts batcher.SubmitOptions) <-chan batcher.Outcome {
	s.submits.Add(1)
	out := make(chan batcher.Outcome, 1)
	out <- batcher.Outcome{Err: batcher.ErrStopped}
	close(out)
	return out
}

func (s *stoppedSched) Stats() batcher.Stats { return batcher.Stats{} }

// stubProvider counts per-pair calls; results decides the outcome per call.
type stubProvider struct {
	mu      sync.Mutex
	calls   map[string]int
	results func(subject, target string, call int) (tvapi.OperationResult, error)
	exists  func(subject string) (bool, error)

	existsCalls atomic.Int32
}

func newStubProvider() *stubProvider {
	return &stubProvider{calls: map[string]int{}}
}

func (p *stubProvider) PerformOperation(ctx context.Context, subject, target, durationSpec string) (tvapi.OperationResult, error) {
	p.mu.Lock()
	key := subject + "/" + target
	p.calls[key]++
	n := p.calls[key]
	p.mu.Unlock()
	if p.results == nil {
		return tvapi.OperationResult{Status: tvapi.StatusSuccess}, nil
	}
	return p.results(subject, target, n)
}

func (p *stubProvider) SubjectExists(ctx context.Context, subject string) (bool, error) {
	p.existsCalls.Add(1)
	if p.exists == nil {
		return true, nil
	}
	return p.exists(subject)
}

func (p *stubProvider) callCount(subject, target string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[subject+"/"+target]
}

func testConfig() Config {
	return Config{
		MaxOperationRetries:    3,
		PreValidateConcurrency: 4,
		PreValidatePacing:      time.Millisecond,
		ProgressInterval:       time.Millisecond,
		StatusRetryBase:        time.Millisecond,
		StatusRetryCap:         4 * time.Millisecond,
		ErrorRetryBase:         time.Millisecond,
		ErrorRetryCap:          4 * time.Millisecond,
		SubmitMaxRetries:       -1, // scheduler-side re-runs off in tests
	}
}

func mustOrchestrator(t *testing.T, p tvapi.AccessProvider, s Scheduler, cfg Config) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(p, s, cfg)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	return o
}

func TestNewOrchestratorRejectsBadInput(t *testing.T) {
	if _, err := NewOrchestrator(nil, &stubSched{}, testConfig()); err == nil {
		t.Fatalf("expected nil provider rejection")
	}
	if _, err := NewOrchestrator(newStubProvider(), nil, testConfig()); err == nil {
		t.Fatalf("expected nil scheduler rejection")
	}
	bad := testConfig()
	bad.StatusRetryBase = 10 * time.Millisecond
	bad.StatusRetryCap = time.Millisecond
	if _, err := NewOrchestrator(newStubProvider(), &stubSched{}, bad); err == nil {
		t.Fatalf("expected ladder config rejection")
	}
}

func TestConfigSubmitRetriesNormalization(t *testing.T) {
	c := Config{}
	c.applyDefaults()
	if c.SubmitMaxRetries != 2 {
		t.Fatalf("zero value should default to 2, got %d", c.SubmitMaxRetries)
	}
	c = Config{SubmitMaxRetries: -1}
	c.applyDefaults()
	if c.SubmitMaxRetries != 0 {
		t.Fatalf("negative should disable, got %d", c.SubmitMaxRetries)
	}
}

func TestRunBulkCrossProduct(t *testing.T) {
	p := newStubProvider()
	s := &stubSched{}
	o := mustOrchestrator(t, p, s, testConfig())

	res, err := o.RunBulk(context.Background(), []string{"alice", "bob"}, []string{"t1", "t2", "t3"}, "7D", RunOptions{SkipPreValidation: true})
	if err != nil {
		t.Fatalf("run bulk: %v", err)
	}
	if res.Total != 6 || res.Success != 6 || res.Errors != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.SuccessRate != 100 {
		t.Fatalf("expected 100%% success rate, got %.1f", res.SuccessRate)
	}
	if s.submitCount() != 6 {
		t.Fatalf("expected 6 submits, got %d", s.submitCount())
	}
	for _, subject := range []string{"alice", "bob"} {
		for _, target := range []string{"t1", "t2", "t3"} {
			if n := p.callCount(subject, target); n != 1 {
				t.Fatalf("pair %s/%s called %d times", subject, target, n)
			}
		}
	}
}

func TestRunBulkDedupesInputs(t *testing.T) {
	p := newStubProvider()
	s := &stubSched{}
	o := mustOrchestrator(t, p, s, testConfig())

	res, err := o.RunBulk(context.Background(), []string{"alice", "alice", "bob"}, []string{"t1", "t1"}, "1M", RunOptions{SkipPreValidation: true})
	if err != nil {
		t.Fatalf("run bulk: %v", err)
	}
	if res.Total != 2 {
		t.Fatalf("expected 2 operations after dedupe, got %d", res.Total)
	}
	if n := p.callCount("alice", "t1"); n != 1 {
		t.Fatalf("alice/t1 called %d times", n)
	}
}

// One stubbornly failing pair consumes its attempt cap and is counted as an
// error; the run itself still returns nil.
func TestRunBulkCountsFailures(t *testing.T) {
	p := newStubProvider()
	p.results = func(subject, target string, call int) (tvapi.OperationResult, error) {
		if subject == "bob" && target == "t2" {
			return tvapi.OperationResult{Status: tvapi.StatusFailure, Detail: "denied"}, nil
		}
		return tvapi.OperationResult{Status: tvapi.StatusSuccess}, nil
	}
	s := &stubSched{}
	o := mustOrchestrator(t, p, s, testConfig())

	res, err := o.RunBulk(context.Background(), []string{"alice", "bob"}, []string{"t1", "t2", "t3"}, "7D", RunOptions{SkipPreValidation: true})
	if err != nil {
		t.Fatalf("run bulk: %v", err)
	}
	if res.Total != 6 || res.Success != 5 || res.Errors != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if n := p.callCount("bob", "t2"); n != 3 {
		t.Fatalf("failing pair should hit the attempt cap, called %d times", n)
	}
	if s.submitCount() != 5+3 {
		t.Fatalf("expected 8 submits, got %d", s.submitCount())
	}
}

// Failure and not_applicable both retry; a later clean answer wins. A single
// subject also must not trigger existence lookups.
func TestRunBulkRetriesNonSuccessStatuses(t *testing.T) {
	p := newStubProvider()
	p.results = func(subject, target string, call int) (tvapi.OperationResult, error) {
		if call < 3 {
			if target == "t1" {
				return tvapi.OperationResult{Status: tvapi.StatusFailure}, nil
			}
			return tvapi.OperationResult{Status: tvapi.StatusNotApplicable}, nil
		}
		return tvapi.OperationResult{Status: tvapi.StatusSuccess}, nil
	}
	s := &stubSched{}
	o := mustOrchestrator(t, p, s, testConfig())

	res, err := o.RunBulk(context.Background(), []string{"alice"}, []string{"t1", "t2"}, "7D", RunOptions{})
	if err != nil {
		t.Fatalf("run bulk: %v", err)
	}
	if res.Success != 2 || res.Errors != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if n := p.callCount("alice", "t1"); n != 3 {
		t.Fatalf("t1 should take 3 attempts, got %d", n)
	}
	if n := p.callCount("alice", "t2"); n != 3 {
		t.Fatalf("t2 should take 3 attempts, got %d", n)
	}
	if n := p.existsCalls.Load(); n != 0 {
		t.Fatalf("single subject must skip pre-validation, saw %d lookups", n)
	}
}

func TestRunBulkRetriesTransportErrors(t *testing.T) {
	p := newStubProvider()
	p.results = func(subject, target string, call int) (tvapi.OperationResult, error) {
		if call < 3 {
			return tvapi.OperationResult{}, errors.New("connection reset")
		}
		return tvapi.OperationResult{Status: tvapi.StatusSuccess}, nil
	}
	s := &stubSched{}
	o := mustOrchestrator(t, p, s, testConfig())

	res, err := o.RunBulk(context.Background(), []string{"alice"}, []string{"t1"}, "7D", RunOptions{})
	if err != nil {
		t.Fatalf("run bulk: %v", err)
	}
	if res.Success != 1 {
		t.Fatalf("expected recovery after transport errors: %+v", res)
	}
	if n := p.callCount("alice", "t1"); n != 3 {
		t.Fatalf("expected 3 attempts, got %d", n)
	}
}

func TestRunBulkEscalatesPriorityPerAttempt(t *testing.T) {
	p := newStubProvider()
	p.results = func(subject, target string, call int) (tvapi.OperationResult, error) {
		if call < 3 {
			return tvapi.OperationResult{Status: tvapi.StatusFailure}, nil
		}
		return tvapi.OperationResult{Status: tvapi.StatusSuccess}, nil
	}
	s := &stubSched{}
	o := mustOrchestrator(t, p, s, testConfig())

	if _, err := o.RunBulk(context.Background(), []string{"alice"}, []string{"t1"}, "7D", RunOptions{}); err != nil {
		t.Fatalf("run bulk: %v", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	want := []int{0, 1, 2}
	if len(s.priorities) != len(want) {
		t.Fatalf("expected %d submits, got %v", len(want), s.priorities)
	}
	for i := range want {
		if s.priorities[i] != want[i] {
			t.Fatalf("priority sequence %v, want %v", s.priorities, want)
		}
	}
}

// A stopped scheduler short-circuits each pair after one submission.
func TestRunBulkStoppedScheduler(t *testing.T) {
	p := newStubProvider()
	s := &stoppedSched{}
	o := mustOrchestrator(t, p, s, testConfig())

	res, err := o.RunBulk(context.Background(), []string{"alice"}, []string{"t1", "t2"}, "7D", RunOptions{})
	if err != nil {
		t.Fatalf("run bulk: %v", err)
	}
	if res.Success != 0 || res.Errors != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if n := s.submits.Load(); n != 2 {
		t.Fatalf("expected one submit per pair, got %d", n)
	}
}

// Runs where every subject fails validation never touch the scheduler.
func TestRunBulkNoValidSubjects(t *testing.T) {
	p := newStubProvider()
	p.exists = func(subject string) (bool, error) { return false, nil }
	s := &stubSched{}
	o := mustOrchestrator(t, p, s, testConfig())

	res, err := o.RunBulk(context.Background(), []string{"ghost1", "ghost2"}, []string{"t1", "t2"}, "7D", RunOptions{})
	if err != nil {
		t.Fatalf("run bulk: %v", err)
	}
	if res.Total != 0 || res.Success != 0 || res.Errors != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(res.SkippedSubjects) != 2 {
		t.Fatalf("expected both subjects skipped, got %v", res.SkippedSubjects)
	}
	if s.submitCount() != 0 {
		t.Fatalf("scheduler touched on empty operation set: %d submits", s.submitCount())
	}
}

func TestRunBulkFinalProgressAlwaysFires(t *testing.T) {
	p := newStubProvider()
	s := &stubSched{}
	cfg := testConfig()
	cfg.ProgressInterval = time.Hour // throttle everything except the final report
	o := mustOrchestrator(t, p, s, cfg)

	var mu sync.Mutex
	type snap struct{ processed, total, success, errs int }
	var reports []snap
	onProgress := func(processed, total, success, errs int) {
		mu.Lock()
		reports = append(reports, snap{processed, total, success, errs})
		mu.Unlock()
	}

	res, err := o.RunBulk(context.Background(), []string{"alice", "bob"}, []string{"t1", "t2"}, "7D",
		RunOptions{SkipPreValidation: true, OnProgress: onProgress})
	if err != nil {
		t.Fatalf("run bulk: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(reports) == 0 {
		t.Fatalf("expected at least the final report")
	}
	last := reports[len(reports)-1]
	if last.processed != res.Total || last.success != res.Success || last.errs != res.Errors {
		t.Fatalf("final report %+v does not match result %+v", last, res)
	}
}
