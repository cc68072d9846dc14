package bulk

import (
	"context"
	"sync"
	"time"

	"github.com/grand-thief-cash/tvaccess/internal/application/components/logging"
)

// PreValidation 预校验结果。Valid 与 Invalid 不相交，且并集覆盖去重后的全部输入。
type PreValidation struct {
	Valid   []string `json:"valid"`
	Invalid []string `json:"invalid"`
}

// PreValidate partitions subjects by asking the provider whether each one
// exists. Lookups run in groups of maxConcurrent with a fixed pacing sleep
// between groups so the remote side never sees an unbounded burst. A lookup
// that errors classifies its subject invalid; only a canceled context makes
// PreValidate itself fail.
func (o *Orchestrator) PreValidate(ctx context.Context, subjects []string, maxConcurrent int) (PreValidation, error) {
	if maxConcurrent <= 0 {
		maxConcurrent = o.cfg.PreValidateConcurrency
	}
	subjects = dedupe(subjects)
	valid := make([]bool, len(subjects))

	for start := 0; start < len(subjects); start += maxConcurrent {
		if start > 0 {
			select {
			case <-ctx.Done():
				return PreValidation{}, ctx.Err()
			case <-time.After(o.cfg.PreValidatePacing):
			}
		}
		end := start + maxConcurrent
		if end > len(subjects) {
			end = len(subjects)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				exists, err := o.provider.SubjectExists(ctx, subjects[idx])
				if err != nil {
					logging.Warnf(ctx, "subject %s validation failed, treating as invalid: %v", subjects[idx], err)
					return
				}
				valid[idx] = exists
			}(i)
		}
		wg.Wait()
	}

	pv := PreValidation{Valid: []string{}, Invalid: []string{}}
	for i, s := range subjects {
		if valid[i] {
			pv.Valid = append(pv.Valid, s)
		} else {
			pv.Invalid = append(pv.Invalid, s)
		}
	}
	logging.Infof(ctx, "pre-validation done: %d valid, %d invalid of %d subjects", len(pv.Valid), len(pv.Invalid), len(subjects))
	return pv, nil
}

// dedupe keeps first occurrence order. Inputs are conceptually sets; this is
// where list form gets normalized.
func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
