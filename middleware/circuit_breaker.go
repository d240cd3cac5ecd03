package middleware

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shrek82/leasedb/core"
	"github.com/shrek82/leasedb/logger"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "closed"
}

// CircuitBreakerMiddleware fails statements fast after Threshold consecutive
// driver failures. After ResetTimeout one trial statement is let through; its
// outcome closes or reopens the circuit. Statements are never retried.
type CircuitBreakerMiddleware struct {
	Threshold    int           // consecutive failures before opening
	ResetTimeout time.Duration // time to wait before half-open

	mu             sync.Mutex
	state          State
	failures       int
	lastFailure    time.Time
	halfOpenPassed bool
	logger         logger.Logger
}

func NewCircuitBreaker(threshold int, resetTimeout time.Duration) *CircuitBreakerMiddleware {
	return &CircuitBreakerMiddleware{
		Threshold:    threshold,
		ResetTimeout: resetTimeout,
		state:        StateClosed,
	}
}

func (m *CircuitBreakerMiddleware) Name() string {
	return "CircuitBreaker"
}

func (m *CircuitBreakerMiddleware) Init(db *core.DB) error {
	m.logger = db.Logger()
	return nil
}

func (m *CircuitBreakerMiddleware) Shutdown() error {
	return nil
}

// State returns the current breaker state.
func (m *CircuitBreakerMiddleware) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *CircuitBreakerMiddleware) Process(ctx context.Context, st *core.Statement, next core.StatementFunc) (res *core.Result, err error) {
	m.mu.Lock()
	switch m.state {
	case StateOpen:
		if time.Since(m.lastFailure) > m.ResetTimeout {
			m.state = StateHalfOpen
			m.halfOpenPassed = false
		} else {
			m.mu.Unlock()
			return nil, ErrCircuitOpen
		}
	case StateHalfOpen:
		// one trial at a time
		if m.halfOpenPassed {
			m.mu.Unlock()
			return nil, ErrCircuitOpen
		}
	}
	if m.state == StateHalfOpen {
		m.halfOpenPassed = true
	}
	m.mu.Unlock()

	completed := false
	defer func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		// a panicking statement counts as a failure
		if !completed || countsAsFailure(err) {
			m.recordFailure()
		} else {
			m.recordSuccess()
		}
	}()

	res, err = next(ctx, st)
	completed = true
	return res, err
}

// countsAsFailure ignores errors that say nothing about database health.
func countsAsFailure(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, core.ErrDecodeFailed) &&
		!errors.Is(err, core.ErrInvalidSQL) &&
		!errors.Is(err, context.Canceled)
}

func (m *CircuitBreakerMiddleware) recordFailure() {
	m.failures++
	m.lastFailure = time.Now()

	if m.state == StateClosed {
		if m.failures >= m.Threshold {
			m.state = StateOpen
			if m.logger != nil {
				m.logger.Warn("circuit breaker opened after %d consecutive failures", m.failures)
			}
		}
	} else if m.state == StateHalfOpen {
		m.state = StateOpen
		m.halfOpenPassed = false
	}
}

func (m *CircuitBreakerMiddleware) recordSuccess() {
	if m.state == StateHalfOpen {
		m.state = StateClosed
		m.failures = 0
		m.halfOpenPassed = false
	} else if m.state == StateClosed {
		// only consecutive failures count
		m.failures = 0
	}
}
