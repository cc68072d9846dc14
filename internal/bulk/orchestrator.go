package bulk

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/grand-thief-cash/tvaccess/internal/application/components/logging"
	"github.com/grand-thief-cash/tvaccess/internal/batcher"
	"github.com/grand-thief-cash/tvaccess/internal/tvapi"
)

// 全局 provider 晚于 init 设置也没关系, otel 的全局 tracer 会延迟委派。
var tracer = otel.Tracer("tvaccess/bulk")

// Scheduler is the slice of the batcher the orchestrator needs. Satisfied by
// *batcher.Batcher; tests swap in counting stubs.
type Scheduler interface {
	Submit(ctx context.Context, work batcher.Work, opts batcher.SubmitOptions) <-chan batcher.Outcome
	Stats() batcher.Stats
}

// ProgressFunc 进度回调。processed 含成功与失败。
type ProgressFunc func(processed, total, successCount, errorCount int)

// RunOptions tunes a single RunBulk call.
type RunOptions struct {
	// OnProgress, when set, receives throttled progress plus one final
	// unconditional report.
	OnProgress ProgressFunc

	// SkipPreValidation bypasses the subject-exists phase. A single
	// subject skips it regardless.
	SkipPreValidation bool
}

// BulkResult is the immutable summary of one finished run.
type BulkResult struct {
	Total           int           `json:"total"`
	Success         int           `json:"success"`
	Errors          int           `json:"errors"`
	SkippedSubjects []string      `json:"skipped_subjects"`
	DurationMs      int64         `json:"duration_ms"`
	SuccessRate     float64       `json:"success_rate"`
	BatcherStats    batcher.Stats `json:"batcher_stats"`
}

// Orchestrator drives bulk access runs: pre-validation, cross-product
// expansion, per-operation outer retries on top of the batcher's internal
// ones, and result aggregation.
type Orchestrator struct {
	provider tvapi.AccessProvider
	sched    Scheduler
	cfg      Config
}

func NewOrchestrator(provider tvapi.AccessProvider, sched Scheduler, cfg Config) (*Orchestrator, error) {
	if provider == nil {
		return nil, errors.New("bulk: nil provider")
	}
	if sched == nil {
		return nil, errors.New("bulk: nil scheduler")
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Orchestrator{provider: provider, sched: sched, cfg: cfg}, nil
}

// RunBulk executes subjects × targets. Individual operation failures are
// counted, never returned; RunBulk itself errors only when the context dies
// during pre-validation.
func (o *Orchestrator) RunBulk(ctx context.Context, subjects, targets []string, durationSpec string, opts RunOptions) (BulkResult, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "bulk.run")
	defer span.End()

	valid := dedupe(subjects)
	skipped := []string{}
	if !opts.SkipPreValidation && len(valid) > 1 {
		pv, err := o.PreValidate(ctx, valid, o.cfg.PreValidateConcurrency)
		if err != nil {
			return BulkResult{}, err
		}
		valid, skipped = pv.Valid, pv.Invalid
	}

	targets = dedupe(targets)
	total := len(valid) * len(targets)
	if total == 0 {
		// 空操作集不触碰调度器。
		return BulkResult{
			SkippedSubjects: skipped,
			DurationMs:      time.Since(start).Milliseconds(),
		}, nil
	}

	span.SetAttributes(
		attribute.Int("bulk.subjects", len(valid)),
		attribute.Int("bulk.targets", len(targets)),
		attribute.Int("bulk.operations", total),
	)
	logging.Infof(ctx, "bulk run started: %d subjects x %d targets = %d operations", len(valid), len(targets), total)

	var processed, successCount, errorCount atomic.Int64
	var lastProgress atomic.Int64

	report := func() {
		if opts.OnProgress == nil {
			return
		}
		now := time.Now().UnixNano()
		last := lastProgress.Load()
		if now-last < int64(o.cfg.ProgressInterval) {
			return
		}
		if !lastProgress.CompareAndSwap(last, now) {
			return // another completion just reported
		}
		opts.OnProgress(int(processed.Load()), total, int(successCount.Load()), int(errorCount.Load()))
	}

	var wg sync.WaitGroup
	for _, subject := range valid {
		for _, target := range targets {
			wg.Add(1)
			go func(subject, target string) {
				defer wg.Done()
				if o.runOperation(ctx, subject, target, durationSpec) {
					successCount.Add(1)
				} else {
					errorCount.Add(1)
				}
				processed.Add(1)
				report()
			}(subject, target)
		}
	}
	wg.Wait()

	succ := int(successCount.Load())
	errs := int(errorCount.Load())
	if opts.OnProgress != nil {
		// Final report bypasses the throttle.
		opts.OnProgress(succ+errs, total, succ, errs)
	}

	res := BulkResult{
		Total:           total,
		Success:         succ,
		Errors:          errs,
		SkippedSubjects: skipped,
		DurationMs:      time.Since(start).Milliseconds(),
		SuccessRate:     float64(succ) / float64(total) * 100,
		BatcherStats:    o.sched.Stats(),
	}
	span.SetAttributes(attribute.Int("bulk.success", succ), attribute.Int("bulk.failed", errs))
	logging.Infof(ctx, "bulk run finished: total=%d success=%d errors=%d skipped=%d in %dms",
		res.Total, res.Success, res.Errors, len(res.SkippedSubjects), res.DurationMs)
	return res, nil
}

// runOperation drives one (subject, target) pair to a terminal state and
// reports whether it ended in success. Attempts are capped by
// MaxOperationRetries counting the first; each attempt resubmits at
// priority attempt-1 so retries drain ahead of first-timers.
func (o *Orchestrator) runOperation(ctx context.Context, subject, target, durationSpec string) (ok bool) {
	ctx, span := tracer.Start(ctx, "bulk.operation", trace.WithAttributes(
		attribute.String("bulk.subject", subject),
		attribute.String("bulk.target", target),
	))
	defer func() {
		if !ok {
			span.SetStatus(codes.Error, "operation failed")
		}
		span.End()
	}()

	statusLadder := newLadder(o.cfg.StatusRetryBase, o.cfg.StatusRetryCap)
	errorLadder := newLadder(o.cfg.ErrorRetryBase, o.cfg.ErrorRetryCap)

	for attempt := 1; attempt <= o.cfg.MaxOperationRetries; attempt++ {
		var res tvapi.OperationResult
		outcome := <-o.sched.Submit(ctx, func(ctx context.Context) error {
			r, err := o.provider.PerformOperation(ctx, subject, target, durationSpec)
			if err != nil {
				return err
			}
			res = r
			return nil
		}, batcher.SubmitOptions{Priority: attempt - 1, MaxRetries: o.cfg.SubmitMaxRetries})

		var wait time.Duration
		switch {
		case outcome.Err != nil:
			if errors.Is(outcome.Err, batcher.ErrStopped) {
				return false // scheduler gone, retrying cannot help
			}
			wait = errorLadder.NextBackOff()
			logging.Debugf(ctx, "operation %s/%s attempt %d errored: %v", subject, target, attempt, outcome.Err)
		case res.Status == tvapi.StatusSuccess:
			return true
		default:
			wait = statusLadder.NextBackOff()
			logging.Debugf(ctx, "operation %s/%s attempt %d status=%s", subject, target, attempt, res.Status)
		}

		if attempt == o.cfg.MaxOperationRetries {
			break
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
		}
	}
	return false
}

// newLadder builds one deterministic doubling ladder. Status failures and
// thrown errors advance separate ladders so one class never inflates the
// other's wait.
func newLadder(base, limit time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.MaxInterval = limit
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.Reset()
	return b
}
