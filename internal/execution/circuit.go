package execution

import (
	"sync"
	"time"
)

// CircuitState is the failure-containment state of the execution client.
type CircuitState string

const (
	CircuitClosed   CircuitState = "CLOSED"
	CircuitOpen     CircuitState = "OPEN"
	CircuitHalfOpen CircuitState = "HALF_OPEN"
)

// CircuitBreaker stops calling a failing exchange for a cool-down period.
// After the cool-down, exactly one trial request is allowed; its success
// closes the circuit, its failure reopens it and restarts the cool-down.
type CircuitBreaker struct {
	threshold int
	cooldown  time.Duration

	// OnStateChange, when set, is invoked (outside the lock) on every state
	// transition. Used to surface CircuitTripped notifications.
	OnStateChange func(from, to CircuitState)

	now func() time.Time // injectable clock for tests

	mu            sync.Mutex
	state         CircuitState
	failures      int // consecutive failures while closed
	openedAt      time.Time
	trialInFlight bool
}

// NewCircuitBreaker creates a closed breaker that opens after threshold
// consecutive failures and stays open for the cool-down duration.
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
		state:     CircuitClosed,
	}
}

// Allow reports whether a request may proceed. When the cool-down has
// elapsed it transitions OPEN -> HALF_OPEN and admits a single trial; all
// other callers fail fast until the trial settles.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()

	switch b.state {
	case CircuitClosed:
		b.mu.Unlock()
		return true

	case CircuitOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			b.mu.Unlock()
			return false
		}
		b.setStateLocked(CircuitHalfOpen)
		b.trialInFlight = true
		b.mu.Unlock()
		return true

	case CircuitHalfOpen:
		if b.trialInFlight {
			b.mu.Unlock()
			return false
		}
		b.trialInFlight = true
		b.mu.Unlock()
		return true
	}

	b.mu.Unlock()
	return false
}

// RecordSuccess notes a successful exchange call.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	b.failures = 0
	b.trialInFlight = false
	if b.state != CircuitClosed {
		b.setStateLocked(CircuitClosed)
	}
	b.mu.Unlock()
}

// RecordFailure notes a failed exchange call, tripping the breaker after
// the configured number of consecutive failures.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	switch b.state {
	case CircuitClosed:
		b.failures++
		if b.failures >= b.threshold {
			b.openedAt = b.now()
			b.setStateLocked(CircuitOpen)
		}
	case CircuitHalfOpen:
		// Failed trial: reopen and restart the cool-down.
		b.trialInFlight = false
		b.failures = b.threshold
		b.openedAt = b.now()
		b.setStateLocked(CircuitOpen)
	}
	b.mu.Unlock()
}

// State returns the current circuit state.
func (b *CircuitBreaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// setStateLocked assumes b.mu is held. The transition hook runs on a fresh
// goroutine so a slow observer never blocks execution.
func (b *CircuitBreaker) setStateLocked(to CircuitState) {
	from := b.state
	b.state = to
	if b.OnStateChange != nil && from != to {
		hook := b.OnStateChange
		go hook(from, to)
	}
}
