package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	prom "github.com/grand-thief-cash/tvaccess/internal/application/components/prometheus"
	"github.com/grand-thief-cash/tvaccess/internal/batcher"
)

// runMetrics 指标集合。prometheus 组件未启用时整体为 nil，全部方法空转。
type runMetrics struct {
	runs       *prometheus.CounterVec
	operations *prometheus.CounterVec
	opSeconds  *prometheus.HistogramVec
	delayGauge *prometheus.GaugeVec
	breaker    *prometheus.GaugeVec
}

func newRunMetrics() *runMetrics {
	c := prom.C()
	if c == nil {
		return nil
	}
	return &runMetrics{
		runs:       c.NewCounter("bulk_runs_total", "Bulk runs by terminal status.", []string{"status"}),
		operations: c.NewCounter("operations_total", "Access operations by result.", []string{"result"}),
		opSeconds:  c.NewHistogram("operation_seconds", "Access operation latency by result.", []string{"result"}, []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}),
		delayGauge: c.NewGauge("batcher_delay_seconds", "Current adaptive pacing delay.", nil),
		breaker:    c.NewGauge("batcher_breaker_state", "Breaker state: 0 closed, 1 open, 2 half-open.", nil),
	}
}

func (m *runMetrics) observeRun(status string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(status).Inc()
}

func (m *runMetrics) observeOperation(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(result).Inc()
	m.opSeconds.WithLabelValues(result).Observe(elapsed.Seconds())
}

func (m *runMetrics) observeBatcher(s batcher.Stats) {
	if m == nil {
		return
	}
	m.delayGauge.WithLabelValues().Set(s.CurrentDelay.Seconds())
	var state float64
	switch s.BreakerState {
	case batcher.BreakerOpen.String():
		state = 1
	case batcher.BreakerHalfOpen.String():
		state = 2
	}
	m.breaker.WithLabelValues().Set(state)
}
