// Package batcher is the adaptive admission-control layer in front of the
// TradingView access gateway. Submitted tasks are drained into bounded
// batches, executed with bounded parallelism, paced by a multiplicative
// delay and guarded by a three-state circuit breaker.
package batcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/grand-thief-cash/tvaccess/internal/application/components/logging"
)

// Work is one unit of remote work. A non-nil error marks the attempt failed
// and consumes the task's internal retry budget.
type Work func(ctx context.Context) error

// Outcome settles a submitted task exactly once.
type Outcome struct {
	Err      error
	Attempts int
	Duration time.Duration
}

// SubmitOptions tune a single submission.
type SubmitOptions struct {
	// Priority >= 0; higher drains sooner. Ties are FIFO by submission order.
	Priority int
	// MaxRetries is the number of internal re-runs after the first attempt.
	// Negative selects the batcher's DefaultMaxRetries; zero disables re-runs.
	MaxRetries int
}

// ErrStopped settles tasks that were still queued when the batcher shut down.
var ErrStopped = errors.New("batcher: stopped")

type task struct {
	seq        uint64
	priority   int
	maxRetries int
	work       Work
	ctx        context.Context
	out        chan Outcome
}

type taskOutcome struct {
	err      error
	attempts int
	duration time.Duration
}

// batchState is mutated only on the scheduling goroutine; the mutex exists
// for snapshot readers.
type batchState struct {
	currentBatchIndex   int
	consecutiveFailures int
	currentDelay        time.Duration
	breakerState        BreakerState
	breakerOpenedAt     time.Time
	completedTasks      int64
	totalResponseTime   time.Duration
}

type Batcher struct {
	cfg   Config
	slots *semaphore.Weighted

	mu      sync.Mutex
	queue   *taskQueue
	seq     uint64
	state   batchState
	started bool
	stopped bool

	inFlight atomic.Int64

	wakeCh chan struct{}
	stopCh chan struct{}
	doneCh chan struct{}

	startOnce  sync.Once
	stopOnce   sync.Once
	finishOnce sync.Once
}

// New validates cfg and builds a stopped Batcher; call Start to begin draining.
func New(cfg Config) (*Batcher, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Batcher{
		cfg:    cfg,
		slots:  semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		queue:  newTaskQueue(),
		state:  batchState{currentDelay: cfg.MinDelay, breakerState: BreakerClosed},
		wakeCh: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}, nil
}

// Start launches the single scheduling goroutine. The ctx scopes startup
// logging only; the loop runs until Stop.
func (b *Batcher) Start(ctx context.Context) {
	b.startOnce.Do(func() {
		b.mu.Lock()
		b.started = true
		b.mu.Unlock()
		logging.Info(ctx, "batcher started",
			zap.Int("max_concurrent", b.cfg.MaxConcurrent),
			zap.Int("batch_size", b.cfg.BatchSize),
			zap.Duration("min_delay", b.cfg.MinDelay),
			zap.Duration("max_delay", b.cfg.MaxDelay),
			zap.Int("breaker_threshold", b.cfg.CircuitBreakerThreshold),
		)
		go b.run()
	})
}

// Stop closes intake, lets the in-flight batch finish, then settles all
// still-queued tasks with ErrStopped. Blocks until the loop exits or ctx is done.
func (b *Batcher) Stop(ctx context.Context) error {
	b.stopOnce.Do(func() { close(b.stopCh) })
	b.mu.Lock()
	started := b.started
	b.mu.Unlock()
	if !started {
		b.finish()
		return nil
	}
	select {
	case <-b.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit enqueues work and returns a 1-buffered channel that receives the
// task's outcome exactly once. The ctx is handed to work as-is; the batcher
// never cancels a task that has begun executing.
func (b *Batcher) Submit(ctx context.Context, work Work, opts SubmitOptions) <-chan Outcome {
	out := make(chan Outcome, 1)
	if work == nil {
		out <- Outcome{Err: errors.New("batcher: nil work")}
		close(out)
		return out
	}
	prio := opts.Priority
	if prio < 0 {
		prio = 0
	}
	retries := opts.MaxRetries
	if retries < 0 {
		retries = b.cfg.DefaultMaxRetries
	}

	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		out <- Outcome{Err: ErrStopped}
		close(out)
		return out
	}
	b.seq++
	t := &task{seq: b.seq, priority: prio, maxRetries: retries, work: work, ctx: ctx, out: out}
	b.queue.push(t)
	b.mu.Unlock()

	select {
	case b.wakeCh <- struct{}{}:
	default:
	}
	return out
}

// Stats returns a non-blocking immutable snapshot.
func (b *Batcher) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	var avg time.Duration
	if b.state.completedTasks > 0 {
		avg = b.state.totalResponseTime / time.Duration(b.state.completedTasks)
	}
	return Stats{
		CurrentBatchIndex:       b.state.currentBatchIndex,
		AvgResponseTime:         avg,
		CurrentDelay:            b.state.currentDelay,
		ConsecutiveFailures:     b.state.consecutiveFailures,
		CircuitBreakerThreshold: b.cfg.CircuitBreakerThreshold,
		BreakerState:            b.state.breakerState.String(),
		QueueDepth:              b.queue.len(),
		InFlight:                int(b.inFlight.Load()),
	}
}

func (b *Batcher) run() {
	defer b.finish()
	for {
		select {
		case <-b.stopCh:
			return
		default:
		}

		// Breaker gate: while open and inside the timeout no batch is drained.
		if wait := b.openWait(); wait > 0 {
			select {
			case <-time.After(wait):
			case <-b.stopCh:
				return
			}
			continue
		}

		batch, probe := b.nextBatch()
		if len(batch) == 0 {
			select {
			case <-b.wakeCh:
			case <-b.stopCh:
				return
			}
			continue
		}

		outcomes := b.executeBatch(batch)
		b.settleBatch(batch, outcomes, probe)

		select {
		case <-time.After(b.pacingDelay()):
		case <-b.stopCh:
			return
		}
	}
}

// openWait returns the remaining open-state deferral, zero when draining may proceed.
func (b *Batcher) openWait() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state.breakerState != BreakerOpen {
		return 0
	}
	return b.cfg.CircuitBreakerTimeout - time.Since(b.state.breakerOpenedAt)
}

// nextBatch drains up to BatchSize tasks. The first batch drained after the
// open timeout becomes the half-open probe.
func (b *Batcher) nextBatch() ([]*task, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	batch := b.queue.drain(b.cfg.BatchSize)
	if len(batch) == 0 {
		return nil, false
	}
	probe := false
	if b.state.breakerState != BreakerClosed {
		b.state.breakerState = BreakerHalfOpen
		probe = true
	}
	b.state.currentBatchIndex++
	return batch, probe
}

// executeBatch runs one batch with parallelism bounded by MaxConcurrent and
// waits for every task to complete.
func (b *Batcher) executeBatch(batch []*task) []taskOutcome {
	outcomes := make([]taskOutcome, len(batch))
	var wg sync.WaitGroup
	for i, t := range batch {
		wg.Add(1)
		go func(i int, t *task) {
			defer wg.Done()
			_ = b.slots.Acquire(context.Background(), 1) // never fails with a background ctx
			b.inFlight.Add(1)
			outcomes[i] = b.runTask(t)
			b.inFlight.Add(-1)
			b.slots.Release(1)
		}(i, t)
	}
	wg.Wait()
	return outcomes
}

// runTask executes the work, re-running it in the same slot until it succeeds
// or the internal retry budget is spent.
func (b *Batcher) runTask(t *task) taskOutcome {
	start := time.Now()
	var err error
	attempts := 0
	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		attempts++
		err = t.work(t.ctx)
		if err == nil {
			break
		}
	}
	return taskOutcome{err: err, attempts: attempts, duration: time.Since(start)}
}

// settleBatch applies all state transitions for one finished batch on the
// scheduling goroutine, then settles the futures.
func (b *Batcher) settleBatch(batch []*task, outcomes []taskOutcome, probe bool) {
	anyFailed := false
	for _, oc := range outcomes {
		if oc.err != nil {
			anyFailed = true
			break
		}
	}

	b.mu.Lock()
	for _, oc := range outcomes {
		b.state.completedTasks++
		b.state.totalResponseTime += oc.duration
		if oc.err != nil {
			b.state.consecutiveFailures++
		} else {
			b.state.consecutiveFailures = 0
		}
	}

	if anyFailed {
		grown := time.Duration(float64(b.state.currentDelay) * b.cfg.BackoffMultiplier)
		if grown > b.cfg.MaxDelay {
			grown = b.cfg.MaxDelay
		}
		b.state.currentDelay = grown
	} else {
		decayed := time.Duration(float64(b.state.currentDelay) / b.cfg.BackoffMultiplier)
		if decayed < b.cfg.MinDelay {
			decayed = b.cfg.MinDelay
		}
		b.state.currentDelay = decayed
	}

	switch {
	case probe && anyFailed:
		// Probe failed: reopen and restart the timer.
		b.state.breakerState = BreakerOpen
		b.state.breakerOpenedAt = time.Now()
	case probe:
		b.state.breakerState = BreakerClosed
		b.state.consecutiveFailures = 0
	case b.state.breakerState == BreakerClosed && b.state.consecutiveFailures >= b.cfg.CircuitBreakerThreshold:
		b.state.breakerState = BreakerOpen
		b.state.breakerOpenedAt = time.Now()
	}
	batchIndex := b.state.currentBatchIndex
	delay := b.state.currentDelay
	breaker := b.state.breakerState
	b.mu.Unlock()

	for i, t := range batch {
		oc := outcomes[i]
		t.out <- Outcome{Err: oc.err, Attempts: oc.attempts, Duration: oc.duration}
		close(t.out)
	}

	logging.Debugf(context.Background(), "[batcher] batch %d settled tasks=%d failed=%v delay=%s breaker=%s",
		batchIndex, len(batch), anyFailed, delay, breaker)
}

func (b *Batcher) pacingDelay() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.currentDelay
}

// finish closes intake and settles whatever is still queued.
func (b *Batcher) finish() {
	b.finishOnce.Do(func() {
		b.mu.Lock()
		b.stopped = true
		var orphans []*task
		for {
			t := b.queue.pop()
			if t == nil {
				break
			}
			orphans = append(orphans, t)
		}
		b.mu.Unlock()
		for _, t := range orphans {
			t.out <- Outcome{Err: ErrStopped}
			close(t.out)
		}
		close(b.doneCh)
	})
}
