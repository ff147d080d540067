package middleware

import (
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/tair/colporter/pkg/logger"
)

// CircuitState represents the state of a circuit breaker
type CircuitState string

const (
	StateClosed   CircuitState = "closed"
	StateOpen     CircuitState = "open"
	StateHalfOpen CircuitState = "half-open"
)

// ErrCircuitOpen is returned while a breaker rejects calls
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker opens after maxFailures consecutive upstream failures and
// lets a trial request through once timeout has elapsed
type CircuitBreaker struct {
	name             string
	maxFailures      int
	timeout          time.Duration
	halfOpenRequired int

	mu              sync.Mutex
	state           CircuitState
	failures        int
	successes       int
	lastStateChange time.Time
	now             func() time.Time
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(name string, maxFailures int, timeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		name:             name,
		maxFailures:      maxFailures,
		timeout:          timeout,
		halfOpenRequired: 3,
		state:            StateClosed,
		lastStateChange:  time.Now(),
		now:              time.Now,
	}
}

// Allow reports whether a call may proceed, moving an expired open
// breaker to half-open
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && cb.now().Sub(cb.lastStateChange) > cb.timeout {
		cb.transition(StateHalfOpen)
	}
	return cb.state != StateOpen
}

// Record feeds the outcome of a call back into the breaker
func (cb *CircuitBreaker) Record(failed bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if failed {
		cb.failures++
		if cb.state == StateHalfOpen || cb.failures >= cb.maxFailures {
			cb.transition(StateOpen)
		}
		return
	}

	switch cb.state {
	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.halfOpenRequired {
			cb.transition(StateClosed)
		}
	case StateClosed:
		cb.failures = 0
	}
}

func (cb *CircuitBreaker) transition(to CircuitState) {
	logger.Logger.Warn().
		Str("circuit", cb.name).
		Str("from", string(cb.state)).
		Str("to", string(to)).
		Int("failures", cb.failures).
		Msg("Circuit breaker state change")

	cb.state = to
	cb.lastStateChange = cb.now()
	cb.successes = 0
	if to == StateClosed {
		cb.failures = 0
	}
}

// State returns the current state
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns a snapshot for the gateway status endpoint
func (cb *CircuitBreaker) Stats() fiber.Map {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return fiber.Map{
		"name":              cb.name,
		"state":             cb.state,
		"failures":          cb.failures,
		"max_failures":      cb.maxFailures,
		"time_since_change": cb.now().Sub(cb.lastStateChange).Seconds(),
	}
}

// CircuitBreakerManager holds one breaker per backend service
type CircuitBreakerManager struct {
	maxFailures int
	timeout     time.Duration

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

// NewCircuitBreakerManager creates a new manager
func NewCircuitBreakerManager(maxFailures int, timeout time.Duration) *CircuitBreakerManager {
	return &CircuitBreakerManager{
		maxFailures: maxFailures,
		timeout:     timeout,
		breakers:    make(map[string]*CircuitBreaker),
	}
}

// GetOrCreate gets or creates a circuit breaker for a service
func (m *CircuitBreakerManager) GetOrCreate(serviceName string) *CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cb, ok := m.breakers[serviceName]; ok {
		return cb
	}
	cb := NewCircuitBreaker(serviceName, m.maxFailures, m.timeout)
	m.breakers[serviceName] = cb
	return cb
}

// AllStats returns stats for all circuit breakers
func (m *CircuitBreakerManager) AllStats() fiber.Map {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := fiber.Map{}
	for name, cb := range m.breakers {
		stats[name] = cb.Stats()
	}
	return stats
}

// Middleware wraps a proxied route. 5xx responses count as failures.
func (m *CircuitBreakerManager) Middleware(serviceName string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cb := m.GetOrCreate(serviceName)
		if !cb.Allow() {
			logger.Warn(c.UserContext()).
				Str("service", serviceName).
				Str("path", c.Path()).
				Msg("Circuit breaker is open - request blocked")

			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"success": false,
				"error":   "Service temporarily unavailable",
			})
		}

		err := c.Next()
		cb.Record(err != nil || c.Response().StatusCode() >= 500)
		return err
	}
}
