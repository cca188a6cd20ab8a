// Package circuitbreaker tracks per-service call outcomes and opens a
// circuit (refuses availability) when a service fails repeatedly.
package circuitbreaker

import (
	"sync"
	"time"
)

const (
	// DefaultHistorySize bounds how many recent outcomes are kept per
	// service.
	DefaultHistorySize = 20
	// DefaultFailureThreshold is how many consecutive failures (at the
	// tail of the history) trip the breaker open.
	DefaultFailureThreshold = 3
	// DefaultOpenDuration is how long a tripped breaker stays open before
	// it becomes available again.
	DefaultOpenDuration = 300 * time.Second
)

// Config controls breaker behavior. Zero-value fields fall back to the
// package defaults in New.
type Config struct {
	HistorySize      int
	FailureThreshold int
	OpenDuration      time.Duration
}

type outcome struct {
	at       time.Time
	success  bool
	duration time.Duration
}

// Status is a snapshot of one service's breaker state, for diagnostics.
type Status struct {
	Available       bool      `json:"available"`
	OpenUntil       time.Time `json:"open_until,omitzero"`
	RecentOutcomes  int       `json:"recent_outcomes"`
	RecentFailures  int       `json:"recent_failures"`
}

// CircuitBreaker tracks health per service name. The zero value is not
// usable; construct with New.
type CircuitBreaker struct {
	cfg Config

	mu        sync.Mutex
	history   map[string][]outcome
	openUntil map[string]time.Time

	metrics *Metrics
}

// WithMetrics attaches a Metrics reporter; every Record call afterwards
// also refreshes that service's Prometheus gauge.
func (c *CircuitBreaker) WithMetrics(m *Metrics) *CircuitBreaker {
	c.metrics = m
	return c
}

// New returns a CircuitBreaker with the given config; zero fields take the
// package defaults.
func New(cfg Config) *CircuitBreaker {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultHistorySize
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.OpenDuration <= 0 {
		cfg.OpenDuration = DefaultOpenDuration
	}
	return &CircuitBreaker{
		cfg:       cfg,
		history:   make(map[string][]outcome),
		openUntil: make(map[string]time.Time),
	}
}

// Record appends one outcome for service and, if the last FailureThreshold
// outcomes are all failures, opens the circuit for OpenDuration.
func (c *CircuitBreaker) Record(service string, success bool, duration time.Duration) {
	c.mu.Lock()
	h := append(c.history[service], outcome{at: time.Now(), success: success, duration: duration})
	if len(h) > c.cfg.HistorySize {
		h = h[len(h)-c.cfg.HistorySize:]
	}
	c.history[service] = h

	tripped := false
	if len(h) >= c.cfg.FailureThreshold {
		tail := h[len(h)-c.cfg.FailureThreshold:]
		tripped = true
		for _, o := range tail {
			if o.success {
				tripped = false
				break
			}
		}
		if tripped {
			c.openUntil[service] = time.Now().Add(c.cfg.OpenDuration)
		}
	}
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.Observe(c, service)
	}
}

// IsAvailable reports whether service may currently be called — false iff
// the breaker is open and its open-until deadline has not passed.
func (c *CircuitBreaker) IsAvailable(service string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	until, ok := c.openUntil[service]
	if !ok {
		return true
	}
	return !time.Now().Before(until)
}

// Reset clears any open state for service, forcing it available again.
func (c *CircuitBreaker) Reset(service string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.openUntil, service)
}

// GetStatus returns a diagnostic snapshot for service.
func (c *CircuitBreaker) GetStatus(service string) Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := c.history[service]
	failures := 0
	for _, o := range h {
		if !o.success {
			failures++
		}
	}

	until := c.openUntil[service]
	return Status{
		Available:      !until.After(time.Now()),
		OpenUntil:      until,
		RecentOutcomes: len(h),
		RecentFailures: failures,
	}
}
