package client

import (
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-lookup/internal/observability"
)

// BreakerConfig holds circuit breaker parameters for one upstream API.
type BreakerConfig struct {
	MaxRequests      uint32        // probes allowed while half-open
	Interval         time.Duration // closed-state counter reset period; 0 never resets
	Timeout          time.Duration // open duration before half-open
	FailureThreshold uint32        // consecutive failures that open the circuit
}

// NewBreaker builds a gobreaker circuit breaker for api. State changes are logged and
// exported on the circuitBreakerState gauge (0 closed, 1 half-open, 2 open).
func NewBreaker(api string, cfg BreakerConfig, logger *zap.Logger) *gobreaker.CircuitBreaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	threshold := cfg.FailureThreshold

	observability.CircuitBreakerState.WithLabelValues(api).Set(0)
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        api,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			observability.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
			logger.Warn("circuit breaker state change",
				zap.String("api", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
