package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/grand-thief-cash/tvaccess/internal/application/components/http_client"
	"github.com/grand-thief-cash/tvaccess/internal/application/components/logging"
	infraConsts "github.com/grand-thief-cash/tvaccess/internal/application/consts"
	"github.com/grand-thief-cash/tvaccess/internal/application/core"
	"github.com/grand-thief-cash/tvaccess/internal/batcher"
	"github.com/grand-thief-cash/tvaccess/internal/bulk"
	"github.com/grand-thief-cash/tvaccess/internal/config"
	bizConsts "github.com/grand-thief-cash/tvaccess/internal/consts"
	"github.com/grand-thief-cash/tvaccess/internal/dao"
	"github.com/grand-thief-cash/tvaccess/internal/model"
	"github.com/grand-thief-cash/tvaccess/internal/tvapi"
)

var (
	ErrNoSubjects  = errors.New("bulk_service: subjects required")
	ErrNoTargets   = errors.New("bulk_service: targets required")
	ErrRunNotFound = errors.New("bulk_service: run not found")
	ErrNotStarted  = errors.New("bulk_service: not started")
)

// 内存中最多保留的运行记录数，超出后按完成时间淘汰最旧的终态记录。
const maxRunsInMemory = 256

type BulkService interface {
	// Embed component so registry builders can return a BulkService where core.Component is required
	core.Component
	StartRun(ctx context.Context, subjects, targets []string, durationSpec string, skipPreValidation bool) (string, error)
	GetRun(ctx context.Context, id string) (*model.BulkRun, error)
	ListRuns(ctx context.Context, limit int) ([]*model.BulkRun, error)
	ValidateSubjects(ctx context.Context, subjects []string) (bulk.PreValidation, error)
	BatcherStats() batcher.Stats
}

type bulkServiceImpl struct {
	*core.BaseComponent
	HTTPCli  *http_client.HTTPClientsComponent `infra:"dep:http_clients"`
	RunDao   dao.BulkRunDao                    `infra:"dep:bulk_run_dao?"`
	Cache    dao.ValidationCache               `infra:"dep:validation_cache?"`
	Progress *RunProgressManager               `infra:"dep:run_progress_mgr"`

	cfg      *config.BizConfig
	batch    *batcher.Batcher
	orch     *bulk.Orchestrator
	provider tvapi.AccessProvider
	metrics  *runMetrics

	mu   sync.RWMutex
	runs map[string]*model.BulkRun
	wg   sync.WaitGroup
}

func NewBulkService(cfg *config.BizConfig) BulkService {
	return &bulkServiceImpl{
		BaseComponent: core.NewBaseComponent(bizConsts.COMP_SVC_BULK, infraConsts.COMPONENT_LOGGING),
		cfg:           cfg,
		runs:          make(map[string]*model.BulkRun),
	}
}

// Start wires the provider chain and boots the batcher. The chain is
// metered(cached(http)): metrics outermost, cache only when its component
// was registered.
func (s *bulkServiceImpl) Start(ctx context.Context) error {
	if s.IsActive() { // idempotent
		return nil
	}
	if err := s.BaseComponent.Start(ctx); err != nil {
		return err
	}

	cli, err := s.HTTPCli.Client(s.cfg.Provider.ClientName)
	if err != nil {
		return fmt.Errorf("bulk_service: resolve client %q: %w", s.cfg.Provider.ClientName, err)
	}
	s.metrics = newRunMetrics()

	var provider tvapi.AccessProvider = tvapi.NewHTTPProvider(cli, s.cfg.Provider.AccessPath, s.cfg.Provider.UserPathPrefix)
	if s.Cache != nil {
		provider = dao.NewCachedProvider(provider, s.Cache)
	}
	provider = newMeteredProvider(provider, s.metrics)
	s.provider = provider

	b, err := batcher.New(s.cfg.Batcher)
	if err != nil {
		return err
	}
	orch, err := bulk.NewOrchestrator(provider, b, s.cfg.Bulk)
	if err != nil {
		return err
	}
	b.Start(ctx)
	s.batch = b
	s.orch = orch
	return nil
}

// Stop closes batcher intake first so queued operations settle, then waits
// for outstanding run goroutines to record their results.
func (s *bulkServiceImpl) Stop(ctx context.Context) error {
	if !s.IsActive() {
		return nil
	}
	if s.batch != nil {
		if err := s.batch.Stop(ctx); err != nil {
			logging.Warnf(ctx, "batcher stop: %v", err)
		}
	}
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logging.Warn(ctx, "bulk_service stop timed out waiting for runs")
	}
	return s.BaseComponent.Stop(ctx)
}

func (s *bulkServiceImpl) StartRun(ctx context.Context, subjects, targets []string, durationSpec string, skipPreValidation bool) (string, error) {
	if !s.IsActive() {
		return "", ErrNotStarted
	}
	if len(subjects) == 0 {
		return "", ErrNoSubjects
	}
	if len(targets) == 0 {
		return "", ErrNoTargets
	}
	if durationSpec == "" {
		durationSpec = s.cfg.Provider.DefaultDuration
	}

	subJSON, _ := json.Marshal(subjects)
	tgtJSON, _ := json.Marshal(targets)
	run := &model.BulkRun{
		ID:           uuid.NewString(),
		Status:       bizConsts.RunPending,
		Subjects:     string(subJSON),
		Targets:      string(tgtJSON),
		DurationSpec: durationSpec,
		CreatedAt:    time.Now(),
	}

	s.mu.Lock()
	s.runs[run.ID] = run
	s.evictLocked()
	s.mu.Unlock()

	if s.RunDao != nil {
		// 历史落库失败不阻塞执行。
		if err := s.RunDao.Create(ctx, run); err != nil {
			logging.Warnf(ctx, "persist run %s failed: %v", run.ID, err)
		}
	}

	s.wg.Add(1)
	go s.executeRun(run, subjects, targets, durationSpec, skipPreValidation)
	logging.Infof(ctx, "bulk run %s accepted: %d subjects, %d targets, duration=%s", run.ID, len(subjects), len(targets), durationSpec)
	return run.ID, nil
}

// executeRun runs in the background; the request context is gone by now.
// run id 挂进 ctx, 没开 telemetry 时后台日志也能按运行串起来。
func (s *bulkServiceImpl) executeRun(run *model.BulkRun, subjects, targets []string, durationSpec string, skipPreValidation bool) {
	defer s.wg.Done()
	ctx := logging.WithTraceID(context.Background(), run.ID)

	started := time.Now()
	s.mu.Lock()
	run.Status = bizConsts.RunRunning
	run.StartedAt = &started
	s.mu.Unlock()
	if s.RunDao != nil {
		if err := s.RunDao.MarkRunning(ctx, run.ID); err != nil {
			logging.Warnf(ctx, "mark run %s running failed: %v", run.ID, err)
		}
	}

	res, err := s.orch.RunBulk(ctx, subjects, targets, durationSpec, bulk.RunOptions{
		SkipPreValidation: skipPreValidation,
		OnProgress: func(processed, total, success, errCount int) {
			s.Progress.Set(run.ID, processed, total, success, errCount)
		},
	})

	finished := time.Now()
	if err != nil {
		s.mu.Lock()
		run.Status = bizConsts.RunFailed
		run.ErrorMessage = err.Error()
		run.FinishedAt = &finished
		s.mu.Unlock()
		if s.RunDao != nil {
			if derr := s.RunDao.MarkFailed(ctx, run.ID, err.Error()); derr != nil {
				logging.Warnf(ctx, "mark run %s failed: %v", run.ID, derr)
			}
		}
		s.metrics.observeRun("failed")
		s.Progress.Clear(run.ID)
		logging.Errorf(ctx, "bulk run %s aborted: %v", run.ID, err)
		return
	}

	skippedJSON, _ := json.Marshal(res.SkippedSubjects)
	s.mu.Lock()
	run.Status = bizConsts.RunCompleted
	run.Total = res.Total
	run.Success = res.Success
	run.Errors = res.Errors
	run.SkippedSubjects = string(skippedJSON)
	run.DurationMs = res.DurationMs
	run.SuccessRate = res.SuccessRate
	run.FinishedAt = &finished
	s.mu.Unlock()
	if s.RunDao != nil {
		if derr := s.RunDao.MarkCompleted(ctx, run.ID, res.Total, res.Success, res.Errors, string(skippedJSON), res.DurationMs, res.SuccessRate); derr != nil {
			logging.Warnf(ctx, "mark run %s completed failed: %v", run.ID, derr)
		}
	}
	s.metrics.observeRun("completed")
	s.metrics.observeBatcher(res.BatcherStats)
	s.Progress.Clear(run.ID)
}

func (s *bulkServiceImpl) GetRun(ctx context.Context, id string) (*model.BulkRun, error) {
	s.mu.RLock()
	run, ok := s.runs[id]
	var cp model.BulkRun
	if ok {
		cp = *run
	}
	s.mu.RUnlock()
	if ok {
		return &cp, nil
	}
	if s.RunDao != nil {
		rec, err := s.RunDao.Get(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrRunNotFound
			}
			return nil, err
		}
		return rec, nil
	}
	return nil, ErrRunNotFound
}

func (s *bulkServiceImpl) ListRuns(ctx context.Context, limit int) ([]*model.BulkRun, error) {
	if s.RunDao != nil {
		return s.RunDao.ListRecent(ctx, limit)
	}
	s.mu.RLock()
	list := make([]*model.BulkRun, 0, len(s.runs))
	for _, run := range s.runs {
		cp := *run
		list = append(list, &cp)
	}
	s.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (s *bulkServiceImpl) ValidateSubjects(ctx context.Context, subjects []string) (bulk.PreValidation, error) {
	if !s.IsActive() {
		return bulk.PreValidation{}, ErrNotStarted
	}
	if len(subjects) == 0 {
		return bulk.PreValidation{}, ErrNoSubjects
	}
	return s.orch.PreValidate(ctx, subjects, s.cfg.Bulk.PreValidateConcurrency)
}

func (s *bulkServiceImpl) BatcherStats() batcher.Stats {
	if s.batch == nil {
		return batcher.Stats{}
	}
	st := s.batch.Stats()
	s.metrics.observeBatcher(st)
	return st
}

// evictLocked trims terminal runs beyond the in-memory cap, oldest first.
// Caller holds s.mu.
func (s *bulkServiceImpl) evictLocked() {
	if len(s.runs) <= maxRunsInMemory {
		return
	}
	type aged struct {
		id string
		at time.Time
	}
	var terminal []aged
	for id, run := range s.runs {
		if run.Status == bizConsts.RunCompleted || run.Status == bizConsts.RunFailed {
			terminal = append(terminal, aged{id: id, at: run.CreatedAt})
		}
	}
	sort.Slice(terminal, func(i, j int) bool { return terminal[i].at.Before(terminal[j].at) })
	for _, t := range terminal {
		if len(s.runs) <= maxRunsInMemory {
			return
		}
		delete(s.runs, t.id)
	}
}

// meteredProvider counts operations and their latency by result class.
type meteredProvider struct {
	tvapi.AccessProvider
	m *runMetrics
}

func newMeteredProvider(p tvapi.AccessProvider, m *runMetrics) *meteredProvider {
	return &meteredProvider{AccessProvider: p, m: m}
}

func (p *meteredProvider) PerformOperation(ctx context.Context, subject, target, durationSpec string) (tvapi.OperationResult, error) {
	start := time.Now()
	res, err := p.AccessProvider.PerformOperation(ctx, subject, target, durationSpec)
	elapsed := time.Since(start)
	if err != nil {
		p.m.observeOperation("error", elapsed)
	} else {
		p.m.observeOperation(res.Status.String(), elapsed)
	}
	return res, err
}
