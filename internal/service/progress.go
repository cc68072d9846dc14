package service

import (
	"context"
	"sync"
	"time"

	"github.com/grand-thief-cash/tvaccess/internal/application/core"
	bizConsts "github.com/grand-thief-cash/tvaccess/internal/consts"
)

// RunProgressManager stores ephemeral progress info per run. Finished runs
// are cleared by the caller; a janitor sweeps abandoned entries.
type RunProgressManager struct {
	*core.BaseComponent
	mu   sync.RWMutex
	data map[string]*RunProgress

	ttl  time.Duration
	done chan struct{}
}

type RunProgress struct {
	RunID     string    `json:"run_id"`
	Processed int       `json:"processed"`
	Total     int       `json:"total"`
	Success   int       `json:"success"`
	Errors    int       `json:"errors"`
	Percent   int       `json:"percent"`
	Updated   time.Time `json:"updated_at"`
}

func NewRunProgressManager(ttl time.Duration) *RunProgressManager {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RunProgressManager{
		BaseComponent: core.NewBaseComponent(bizConsts.COMP_SVC_RUN_PROGRESS),
		data:          make(map[string]*RunProgress),
		ttl:           ttl,
	}
}

func (rpm *RunProgressManager) Start(ctx context.Context) error {
	if err := rpm.BaseComponent.Start(ctx); err != nil {
		return err
	}
	rpm.done = make(chan struct{})
	go rpm.janitor()
	return nil
}

func (rpm *RunProgressManager) Stop(ctx context.Context) error {
	if rpm.done != nil {
		close(rpm.done)
		rpm.done = nil
	}
	return rpm.BaseComponent.Stop(ctx)
}

func (rpm *RunProgressManager) Set(runID string, processed, total, success, errCount int) {
	if total < 0 {
		total = 0
	}
	if processed < 0 {
		processed = 0
	}
	if total > 0 && processed > total {
		processed = total
	}
	percent := 0
	if total > 0 {
		percent = processed * 100 / total
	}
	rpm.mu.Lock()
	rpm.data[runID] = &RunProgress{
		RunID:     runID,
		Processed: processed,
		Total:     total,
		Success:   success,
		Errors:    errCount,
		Percent:   percent,
		Updated:   time.Now(),
	}
	rpm.mu.Unlock()
}

func (rpm *RunProgressManager) Get(runID string) *RunProgress {
	rpm.mu.RLock()
	defer rpm.mu.RUnlock()
	return rpm.data[runID]
}

// Clear removes progress for a finished run (should be called after terminal state)
func (rpm *RunProgressManager) Clear(runID string) {
	rpm.mu.Lock()
	delete(rpm.data, runID)
	rpm.mu.Unlock()
}

func (rpm *RunProgressManager) janitor() {
	t := time.NewTicker(rpm.ttl / 2)
	defer t.Stop()
	for {
		select {
		case <-rpm.done:
			return
		case <-t.C:
			rpm.sweep()
		}
	}
}

func (rpm *RunProgressManager) sweep() {
	now := time.Now()
	rpm.mu.Lock()
	for id, p := range rpm.data {
		if now.Sub(p.Updated) > rpm.ttl {
			delete(rpm.data, id)
		}
	}
	rpm.mu.Unlock()
}
