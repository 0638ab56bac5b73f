package journey

import (
	"sync"
	"time"

	pkgerrors "github.com/yungbote/journeys-backend/internal/pkg/errors"
)

type BreakerState struct {
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastFailureAt       time.Time `json:"last_failure_at,omitempty"`
	Open                bool      `json:"open"`
}

// CircuitBreaker trips after maxFailures consecutive failures and stays open
// until cooldown has passed since the last one.
type CircuitBreaker struct {
	mu            sync.Mutex
	maxFailures   int
	cooldown      time.Duration
	now           func() time.Time
	failures      int
	lastFailureAt time.Time
}

func NewCircuitBreaker(maxFailures int, cooldown time.Duration, now func() time.Time) *CircuitBreaker {
	if maxFailures <= 0 {
		maxFailures = 3
	}
	if now == nil {
		now = time.Now
	}
	return &CircuitBreaker{maxFailures: maxFailures, cooldown: cooldown, now: now}
}

// Allow returns pkgerrors.ErrServiceUnavailable while the breaker is open. Once
// the cooldown has elapsed the counters are reset and the call goes through.
func (b *CircuitBreaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures < b.maxFailures {
		return nil
	}
	if b.now().Sub(b.lastFailureAt) < b.cooldown {
		return pkgerrors.ErrServiceUnavailable
	}
	b.failures = 0
	b.lastFailureAt = time.Time{}
	return nil
}

func (b *CircuitBreaker) Success() {
	b.mu.Lock()
	b.failures = 0
	b.lastFailureAt = time.Time{}
	b.mu.Unlock()
}

func (b *CircuitBreaker) Failure() {
	b.mu.Lock()
	b.failures++
	b.lastFailureAt = b.now()
	b.mu.Unlock()
}

func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerState{
		ConsecutiveFailures: b.failures,
		LastFailureAt:       b.lastFailureAt,
		Open:                b.failures >= b.maxFailures && b.now().Sub(b.lastFailureAt) < b.cooldown,
	}
}
