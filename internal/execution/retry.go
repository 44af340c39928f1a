package execution

import (
	"time"

	"github.com/jpillora/backoff"

	"cryptoSignalBot/internal/ports"
)

// RetryPolicy describes how transient execution failures are retried:
// attempt budget, backoff shape and the predicate deciding what counts as
// transient. It is a plain value, testable apart from any network call.
type RetryPolicy struct {
	MaxAttempts int
	BackoffMin  time.Duration
	BackoffMax  time.Duration
	// Retryable classifies errors; defaults to ports.IsTransient.
	Retryable func(error) bool
}

// DefaultRetryPolicy matches the configuration defaults: three attempts
// with exponential backoff between 250ms and 5s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BackoffMin:  250 * time.Millisecond,
		BackoffMax:  5 * time.Second,
	}
}

// newBackoff returns a fresh jittered exponential backoff for one execution.
// The backoff is stateful, so every Execute call gets its own.
func (p RetryPolicy) newBackoff() *backoff.Backoff {
	return &backoff.Backoff{
		Min:    p.BackoffMin,
		Max:    p.BackoffMax,
		Factor: 2,
		Jitter: true,
	}
}

func (p RetryPolicy) retryable(err error) bool {
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return ports.IsTransient(err)
}
