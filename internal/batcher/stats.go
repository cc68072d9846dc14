package batcher

import "time"

// BreakerState is the circuit breaker position.
type BreakerState int32

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Stats is an immutable snapshot of the batcher's internal state.
// Observability only; callers must not derive control decisions from it.
type Stats struct {
	CurrentBatchIndex       int           `json:"current_batch_index"`
	AvgResponseTime         time.Duration `json:"avg_response_time"`
	CurrentDelay            time.Duration `json:"current_delay"`
	ConsecutiveFailures     int           `json:"consecutive_failures"`
	CircuitBreakerThreshold int           `json:"circuit_breaker_threshold"`
	BreakerState            string        `json:"breaker_state"`
	QueueDepth              int           `json:"queue_depth"`
	InFlight                int           `json:"in_flight"`
}
