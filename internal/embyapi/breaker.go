// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package embyapi

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/embysync/internal/config"
	"github.com/tomtom215/embysync/internal/logging"
	"github.com/tomtom215/embysync/internal/metrics"
)

// breakerMinRequests is the sample size below which the failure ratio is
// not trusted.
const breakerMinRequests = 10

// newBreaker builds the circuit breaker guarding one server.
//
// The circuit opens after five consecutive failures, or at a 60% failure
// rate over at least ten requests. Client errors such as 404 or 401 count
// as successes: the server answered.
func newBreaker(name string, cfg config.HTTPConfig) *gobreaker.CircuitBreaker[[]byte] {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)

	maxRequests := cfg.BreakerMaxRequests
	if maxRequests == 0 {
		maxRequests = 3
	}
	timeout := cfg.BreakerTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: maxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     timeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= 5 {
				logging.Warn().Str("breaker", name).Uint32("consecutive_failures", counts.ConsecutiveFailures).Msg("Opening circuit")
				return true
			}
			if counts.Requests < breakerMinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= 0.6 {
				logging.Warn().Str("breaker", name).Float64("failure_rate", ratio*100).Msg("Opening circuit")
				return true
			}
			return false
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", stateToString(from)).Str("to", stateToString(to)).Msg("Circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, stateToString(from), stateToString(to)).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},

		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			var se *StatusError
			if errors.As(err, &se) {
				return se.Status < 500 && !se.Retryable()
			}
			return false
		},
	})
}

// execute runs fn under the breaker and keeps the breaker metrics current.
func (c *Client) execute(fn func() ([]byte, error)) ([]byte, error) {
	body, err := c.breaker.Execute(fn)
	if err == nil {
		metrics.CircuitBreakerRequests.WithLabelValues(c.breakerName, "success").Inc()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(c.breakerName).Set(0)
		return body, nil
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.CircuitBreakerRequests.WithLabelValues(c.breakerName, "rejected").Inc()
		logging.Warn().Str("server", c.server.Key).Err(err).Msg("Request rejected by circuit breaker")
		return nil, errors.Join(ErrCircuitOpen, err)
	}

	metrics.CircuitBreakerRequests.WithLabelValues(c.breakerName, "failure").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(c.breakerName).Set(float64(c.breaker.Counts().ConsecutiveFailures))
	return nil, err
}

// BreakerState returns the breaker state as "closed", "half-open" or "open".
func (c *Client) BreakerState() string {
	return stateToString(c.breaker.State())
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
