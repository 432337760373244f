// SPDX-FileCopyrightText: 2026 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package castrasd

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// CircuitBreakerConfig configures the per-service circuit breakers of a
// CircuitBreakerLocator. Typically unmarshaled from "castra.circuitBreaker".
type CircuitBreakerConfig struct {
	// MaxRequests is the number of requests allowed through while half-open.
	MaxRequests uint32 `json:"maxRequests" yaml:"maxRequests" mapstructure:"maxRequests"`

	// Interval is the cyclic period in the closed state after which counts are cleared.
	Interval time.Duration `json:"interval" yaml:"interval" mapstructure:"interval"`

	// Timeout is how long the breaker stays open before going half-open.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// MinRequests is the number of requests needed before the failure ratio is considered.
	MinRequests uint32 `json:"minRequests" yaml:"minRequests" mapstructure:"minRequests"`

	// FailureThreshold is the failure ratio, in (0, 1], at which the breaker trips.
	FailureThreshold float64 `json:"failureThreshold" yaml:"failureThreshold" mapstructure:"failureThreshold"`
}

// DefaultCircuitBreakerConfig returns the configuration used for any zero fields.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxRequests:      1,
		Interval:         30 * time.Second,
		Timeout:          10 * time.Second,
		MinRequests:      5,
		FailureThreshold: 0.5,
	}
}

func (cbc CircuitBreakerConfig) withDefaults() CircuitBreakerConfig {
	d := DefaultCircuitBreakerConfig()
	if cbc.MaxRequests == 0 {
		cbc.MaxRequests = d.MaxRequests
	}

	if cbc.Interval <= 0 {
		cbc.Interval = d.Interval
	}

	if cbc.Timeout <= 0 {
		cbc.Timeout = d.Timeout
	}

	if cbc.MinRequests == 0 {
		cbc.MinRequests = d.MinRequests
	}

	if cbc.FailureThreshold <= 0 || cbc.FailureThreshold > 1 {
		cbc.FailureThreshold = d.FailureThreshold
	}

	return cbc
}

// CircuitBreakerLocator decorates a Locator so that DoWithService runs inside
// a circuit breaker, one per service name. Lookups themselves pass through.
type CircuitBreakerLocator struct {
	next   Locator
	cfg    CircuitBreakerConfig
	logger *zap.Logger

	lock     sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewCircuitBreakerLocator decorates next. A nil logger disables logging.
func NewCircuitBreakerLocator(next Locator, cfg CircuitBreakerConfig, logger *zap.Logger) *CircuitBreakerLocator {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CircuitBreakerLocator{
		next:     next,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// breaker returns the circuit breaker for name, creating it if necessary.
func (cbl *CircuitBreakerLocator) breaker(name string) *gobreaker.CircuitBreaker {
	defer cbl.lock.Unlock()
	cbl.lock.Lock()

	if cb, ok := cbl.breakers[name]; ok {
		return cb
	}

	cfg := cbl.cfg
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}

			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			cbl.logger.Warn(
				"circuit breaker state changed",
				zap.String("service", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})

	cbl.breakers[name] = cb
	return cb
}

// State returns the breaker state for a service. Services that have never been
// invoked report closed.
func (cbl *CircuitBreakerLocator) State(name string) gobreaker.State {
	return cbl.breaker(name).State()
}

func (cbl *CircuitBreakerLocator) Locate(ctx context.Context, name string, call Call) (*url.URL, error) {
	return cbl.next.Locate(ctx, name, call)
}

func (cbl *CircuitBreakerLocator) LocateAll(ctx context.Context, name string, call Call) ([]*url.URL, error) {
	return cbl.next.LocateAll(ctx, name, call)
}

// DoWithService locates the service and runs f inside that service's breaker.
// While the breaker is open, f is not invoked and gobreaker.ErrOpenState is returned.
// A service that cannot be found does not count against the breaker.
func (cbl *CircuitBreakerLocator) DoWithService(ctx context.Context, name string, call Call, f func(*url.URL) error) (bool, error) {
	u, err := cbl.next.Locate(ctx, name, call)
	if err != nil || u == nil {
		return false, err
	}

	_, err = cbl.breaker(name).Execute(func() (any, error) {
		return nil, f(u)
	})

	return true, err
}
