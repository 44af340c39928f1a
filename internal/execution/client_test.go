package execution

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptoSignalBot/internal/domain"
	"cryptoSignalBot/internal/ports"
)

// Mock implementations

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// mockExchange scripts SubmitOrder outcomes per attempt and records the
// client order IDs it was called with.
type mockExchange struct {
	submitErrs     []error // error per attempt, nil means fill
	calls          int
	clientOrderIDs []string
}

func (m *mockExchange) SubmitOrder(ctx context.Context, clientOrderID, symbol string, side domain.OrderSide, quantity float64) (*domain.Fill, error) {
	idx := m.calls
	m.calls++
	m.clientOrderIDs = append(m.clientOrderIDs, clientOrderID)
	if idx < len(m.submitErrs) && m.submitErrs[idx] != nil {
		return nil, m.submitErrs[idx]
	}
	return &domain.Fill{OrderID: 42, Price: 100, Quantity: quantity, Time: time.Now().UTC()}, nil
}

func (m *mockExchange) Ping(ctx context.Context) error                          { return nil }
func (m *mockExchange) GetServerTime(ctx context.Context) (time.Time, error)    { return time.Time{}, nil }
func (m *mockExchange) SetServerTime(ctx context.Context) error                 { return nil }
func (m *mockExchange) GetTickerPrice(ctx context.Context, s string) (float64, error) { return 0, nil }
func (m *mockExchange) GetAccountBalance(ctx context.Context, a string) (float64, error) {
	return 0, nil
}
func (m *mockExchange) ListOpenOrders(ctx context.Context, s string) ([]ports.OpenOrder, error) {
	return nil, nil
}

func fastPolicy(maxAttempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		BackoffMin:  time.Millisecond,
		BackoffMax:  2 * time.Millisecond,
	}
}

func newTestClient(t *testing.T, exchange *mockExchange, policy RetryPolicy, breaker *CircuitBreaker) *Client {
	t.Helper()
	if breaker == nil {
		breaker = NewCircuitBreaker(100, time.Minute)
	}
	c, err := NewClient(Config{
		Exchange: exchange,
		Policy:   policy,
		Breaker:  breaker,
		Logger:   &mockLogger{},
	})
	require.NoError(t, err)
	return c
}

func testRequest() domain.OrderRequest {
	return domain.OrderRequest{Symbol: "BTCUSDT", Side: domain.Buy, Quantity: 0.5}
}

func transientErr() error {
	return fmt.Errorf("submit: %w", ports.ErrExchangeUnavailable)
}

func TestExecuteSuccessFirstAttempt(t *testing.T) {
	exchange := &mockExchange{}
	c := newTestClient(t, exchange, fastPolicy(3), nil)

	res := c.Execute(context.Background(), testRequest())
	require.NoError(t, res.Err)
	require.NotNil(t, res.Fill)
	assert.Equal(t, 1, exchange.calls)
	assert.NotEmpty(t, res.Request.ClientOrderID, "result carries the generated client order ID")
}

func TestExecuteRetriesTransientFailures(t *testing.T) {
	exchange := &mockExchange{submitErrs: []error{transientErr(), transientErr(), nil}}
	c := newTestClient(t, exchange, fastPolicy(3), nil)

	res := c.Execute(context.Background(), testRequest())
	require.NoError(t, res.Err)
	assert.Equal(t, 3, exchange.calls)
}

func TestExecuteStableClientOrderIDAcrossRetries(t *testing.T) {
	exchange := &mockExchange{submitErrs: []error{transientErr(), transientErr(), nil}}
	c := newTestClient(t, exchange, fastPolicy(3), nil)

	res := c.Execute(context.Background(), testRequest())
	require.NoError(t, res.Err)
	require.Len(t, exchange.clientOrderIDs, 3)
	assert.Equal(t, exchange.clientOrderIDs[0], exchange.clientOrderIDs[1])
	assert.Equal(t, exchange.clientOrderIDs[0], exchange.clientOrderIDs[2])
	assert.Equal(t, exchange.clientOrderIDs[0], res.Request.ClientOrderID)
}

func TestExecuteDoesNotRetryPermanentFailures(t *testing.T) {
	permanent := fmt.Errorf("submit: %w", ports.ErrInsufficientFunds)
	exchange := &mockExchange{submitErrs: []error{permanent, nil}}
	c := newTestClient(t, exchange, fastPolicy(3), nil)

	res := c.Execute(context.Background(), testRequest())
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, ports.ErrInsufficientFunds)
	assert.Equal(t, 1, exchange.calls, "permanent failures must not be retried")
}

func TestExecuteExhaustsRetries(t *testing.T) {
	exchange := &mockExchange{submitErrs: []error{transientErr(), transientErr(), transientErr()}}
	c := newTestClient(t, exchange, fastPolicy(3), nil)

	res := c.Execute(context.Background(), testRequest())
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, ports.ErrRetriesExhausted)
	assert.ErrorIs(t, res.Err, ports.ErrExchangeUnavailable, "last cause is preserved")
	assert.Equal(t, 3, exchange.calls)
}

func TestExecuteFailsFastWhenCircuitOpen(t *testing.T) {
	breaker := NewCircuitBreaker(1, time.Hour)
	breaker.RecordFailure()
	require.Equal(t, CircuitOpen, breaker.State())

	exchange := &mockExchange{}
	c := newTestClient(t, exchange, fastPolicy(3), breaker)

	res := c.Execute(context.Background(), testRequest())
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, ports.ErrCircuitOpen)
	assert.Equal(t, 0, exchange.calls, "no exchange call while the circuit is open")
}

func TestExecuteStopsRetryingWhenCircuitTrips(t *testing.T) {
	// Threshold 2: the second failed attempt trips the breaker and the
	// remaining attempts are abandoned.
	breaker := NewCircuitBreaker(2, time.Hour)
	exchange := &mockExchange{submitErrs: []error{transientErr(), transientErr(), nil}}
	c := newTestClient(t, exchange, fastPolicy(5), breaker)

	res := c.Execute(context.Background(), testRequest())
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, ports.ErrCircuitOpen)
	assert.Equal(t, 2, exchange.calls)
}

func TestExecuteHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exchange := &mockExchange{submitErrs: []error{transientErr(), nil}}
	c := newTestClient(t, exchange, RetryPolicy{MaxAttempts: 3, BackoffMin: time.Hour, BackoffMax: time.Hour}, nil)

	res := c.Execute(ctx, testRequest())
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, ports.ErrContextCanceled)
	assert.Equal(t, 1, exchange.calls, "canceled before the second attempt")
}

func TestExecuteCancellationDoesNotCountTowardBreaker(t *testing.T) {
	// A drain cancels contexts across many symbols at once; those failures
	// say nothing about exchange health and must leave the breaker closed.
	breaker := NewCircuitBreaker(1, time.Hour)
	canceled := fmt.Errorf("submit: %w", ports.ErrContextCanceled)
	exchange := &mockExchange{submitErrs: []error{canceled}}
	c := newTestClient(t, exchange, fastPolicy(3), breaker)

	res := c.Execute(context.Background(), testRequest())
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, ports.ErrContextCanceled)
	assert.Equal(t, CircuitClosed, breaker.State())
	assert.Equal(t, 1, exchange.calls, "cancellation is terminal, no retry")
}

func TestExecutePreservesCallerClientOrderID(t *testing.T) {
	exchange := &mockExchange{}
	c := newTestClient(t, exchange, fastPolicy(1), nil)

	req := testRequest()
	req.ClientOrderID = "reconcile-me"
	res := c.Execute(context.Background(), req)
	require.NoError(t, res.Err)
	assert.Equal(t, []string{"reconcile-me"}, exchange.clientOrderIDs)
}
