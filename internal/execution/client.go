package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cryptoSignalBot/internal/domain"
	"cryptoSignalBot/internal/ports"
)

// Config holds configuration for the execution client.
type Config struct {
	Exchange ports.ExchangeClient
	Policy   RetryPolicy
	Breaker  *CircuitBreaker
	Logger   ports.Logger
}

// Client submits admitted orders to the exchange. Transient failures are
// retried with exponential backoff under a stable client order ID, so a
// duplicate network send cannot double-fill (the exchange deduplicates by
// client order ID). A circuit breaker fails fast once the exchange looks
// down, without touching risk accounting.
type Client struct {
	exchange ports.ExchangeClient
	policy   RetryPolicy
	breaker  *CircuitBreaker
	logger   ports.Logger
}

// NewClient creates a new execution client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Exchange == nil {
		return nil, fmt.Errorf("exchange client is required for execution client")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for execution client")
	}
	if cfg.Breaker == nil {
		return nil, fmt.Errorf("circuit breaker is required for execution client")
	}
	if cfg.Policy.MaxAttempts <= 0 {
		cfg.Policy = DefaultRetryPolicy()
	}
	return &Client{
		exchange: cfg.Exchange,
		policy:   cfg.Policy,
		breaker:  cfg.Breaker,
		logger:   cfg.Logger,
	}, nil
}

// CircuitState returns the breaker's current state.
func (c *Client) CircuitState() CircuitState {
	return c.breaker.State()
}

// Execute submits the order request and returns its terminal outcome.
// The returned result always carries the client order ID that was used, so
// callers can reconcile an unknown outcome against the exchange later.
func (c *Client) Execute(ctx context.Context, req domain.OrderRequest) domain.OrderResult {
	op := "Execute"

	// The client order ID is generated once and reused on every retry.
	if req.ClientOrderID == "" {
		req.ClientOrderID = uuid.NewString()
	}
	result := domain.OrderResult{Request: req}

	if !c.breaker.Allow() {
		c.logger.Warn(ctx, op+": circuit open, failing fast", map[string]interface{}{"symbol": req.Symbol, "side": req.Side})
		result.Err = fmt.Errorf("%s %s %s: %w", op, req.Side, req.Symbol, ports.ErrCircuitOpen)
		return result
	}

	bo := c.policy.newBackoff()
	var lastErr error
	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		fill, err := c.exchange.SubmitOrder(ctx, req.ClientOrderID, req.Symbol, req.Side, req.Quantity)
		if err == nil {
			c.breaker.RecordSuccess()
			c.logger.Info(ctx, op+": order filled", map[string]interface{}{
				"symbol": req.Symbol, "side": req.Side, "quantity": req.Quantity,
				"price": fill.Price, "clientOrderID": req.ClientOrderID, "attempt": attempt,
			})
			result.Fill = fill
			return result
		}
		lastErr = err
		if errors.Is(err, ports.ErrContextCanceled) {
			// Cancellation says nothing about exchange health; it must not
			// count toward the breaker's failure threshold.
			result.Err = err
			return result
		}
		c.breaker.RecordFailure()

		if !c.policy.retryable(err) {
			c.logger.Error(ctx, err, op+": permanent failure, not retrying", map[string]interface{}{
				"symbol": req.Symbol, "side": req.Side, "attempt": attempt,
			})
			result.Err = err
			return result
		}
		if c.breaker.State() == CircuitOpen {
			// The breaker tripped under us; stop hammering a down exchange.
			c.logger.Warn(ctx, op+": circuit tripped during retries", map[string]interface{}{"symbol": req.Symbol})
			result.Err = fmt.Errorf("%s %s %s: %w", op, req.Side, req.Symbol, ports.ErrCircuitOpen)
			return result
		}
		if attempt == c.policy.MaxAttempts {
			break
		}

		delay := bo.Duration()
		c.logger.Warn(ctx, op+": transient failure, backing off", map[string]interface{}{
			"symbol": req.Symbol, "side": req.Side, "attempt": attempt, "delay": delay.String(),
		})
		select {
		case <-ctx.Done():
			result.Err = fmt.Errorf("%s %s %s: %w: %w", op, req.Side, req.Symbol, ports.ErrContextCanceled, ctx.Err())
			return result
		case <-time.After(delay):
		}
	}

	result.Err = fmt.Errorf("%s %s %s after %d attempts: %w: %w",
		op, req.Side, req.Symbol, c.policy.MaxAttempts, ports.ErrRetriesExhausted, lastErr)
	return result
}
