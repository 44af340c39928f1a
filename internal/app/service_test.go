package app

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptoSignalBot/config"
	"cryptoSignalBot/internal/domain"
	"cryptoSignalBot/internal/ports"
)

// Mock implementations

type mockLogger struct {
	mu        sync.Mutex
	debugMsgs []string
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	m.debugMsgs = append(m.debugMsgs, msg)
	m.mu.Unlock()
}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	m.infoMsgs = append(m.infoMsgs, msg)
	m.mu.Unlock()
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	m.warnMsgs = append(m.warnMsgs, msg)
	m.mu.Unlock()
}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	m.errorMsgs = append(m.errorMsgs, msg)
	m.mu.Unlock()
}

type mockExchange struct {
	serverTimeErr error
	balance       float64
	openOrders    map[string][]ports.OpenOrder
}

func (m *mockExchange) Ping(ctx context.Context) error                       { return nil }
func (m *mockExchange) GetServerTime(ctx context.Context) (time.Time, error) { return time.Time{}, nil }
func (m *mockExchange) SetServerTime(ctx context.Context) error              { return m.serverTimeErr }
func (m *mockExchange) GetTickerPrice(ctx context.Context, symbol string) (float64, error) {
	return 100, nil
}
func (m *mockExchange) GetAccountBalance(ctx context.Context, asset string) (float64, error) {
	return m.balance, nil
}
func (m *mockExchange) SubmitOrder(ctx context.Context, clientOrderID, symbol string, side domain.OrderSide, quantity float64) (*domain.Fill, error) {
	return &domain.Fill{OrderID: 1, Price: 100, Quantity: quantity, Time: time.Now().UTC()}, nil
}
func (m *mockExchange) ListOpenOrders(ctx context.Context, symbol string) ([]ports.OpenOrder, error) {
	return m.openOrders[symbol], nil
}

type mockSource struct {
	mu       sync.Mutex
	obs      map[string]domain.Observation
	err      error
	observed []string
	block    chan struct{} // when set, Observe waits until closed
}

func (m *mockSource) Observe(ctx context.Context, symbol string) (domain.Observation, error) {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	m.observed = append(m.observed, symbol)
	m.mu.Unlock()
	if m.err != nil {
		return domain.Observation{}, m.err
	}
	return m.obs[symbol], nil
}

func (m *mockSource) observedSymbols() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.observed...)
}

type mockEvaluator struct {
	actions map[string]domain.SignalAction
}

func (m *mockEvaluator) Evaluate(cfg domain.SymbolConfig, obs domain.Observation) domain.Signal {
	action, ok := m.actions[obs.Symbol]
	if !ok {
		action = domain.ActionHold
	}
	return domain.Signal{Action: action, Symbol: obs.Symbol, Observation: obs}
}

type mockRisk struct {
	mu        sync.Mutex
	decisions map[string]ports.Decision
	confirmed []domain.OrderResult
	released  []domain.OrderResult
	pending   []string
	position  *domain.Position
}

func (m *mockRisk) Admit(ctx context.Context, sig domain.Signal) ports.Decision {
	return m.decisions[sig.Symbol]
}

func (m *mockRisk) Confirm(ctx context.Context, res domain.OrderResult) (*domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confirmed = append(m.confirmed, res)
	return m.position, nil
}

func (m *mockRisk) Release(ctx context.Context, res domain.OrderResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released = append(m.released, res)
	return nil
}

func (m *mockRisk) MarkPending(ctx context.Context, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, symbol)
	return nil
}

func (m *mockRisk) OpenCount() int { return 0 }

type mockExecutor struct {
	mu      sync.Mutex
	results map[string]domain.OrderResult
	calls   []domain.OrderRequest
}

func (m *mockExecutor) Execute(ctx context.Context, req domain.OrderRequest) domain.OrderResult {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	res, ok := m.results[req.Symbol]
	if !ok {
		return domain.OrderResult{Request: req, Fill: &domain.Fill{OrderID: 1, Price: 100, Quantity: req.Quantity, Time: time.Now().UTC()}}
	}
	res.Request = req
	return res
}

type mockNotifier struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (m *mockNotifier) Notify(ctx context.Context, event domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.err
}

func (m *mockNotifier) kinds() []domain.EventKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	kinds := make([]domain.EventKind, 0, len(m.events))
	for _, ev := range m.events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

func testConfig() *config.Config {
	return &config.Config{
		Trading: config.TradingConfig{
			Symbols: []domain.SymbolConfig{
				{Symbol: "BTCUSDT", RiskLevel: domain.RiskLow, Enabled: true},
				{Symbol: "ETHUSDT", RiskLevel: domain.RiskMedium, Enabled: true},
				{Symbol: "DOGEUSDT", RiskLevel: domain.RiskHigh, Enabled: false},
			},
			MaxPositions:  2,
			CycleInterval: 10 * time.Millisecond,
			MaxConcurrent: 2,
		},
	}
}

type testDeps struct {
	logger    *mockLogger
	exchange  *mockExchange
	source    *mockSource
	evaluator *mockEvaluator
	risk      *mockRisk
	executor  *mockExecutor
	notifier  *mockNotifier
}

func newTestService(t *testing.T, deps *testDeps) *TradingService {
	t.Helper()
	svc, err := NewTradingService(Config{
		Cfg:       testConfig(),
		Logger:    deps.logger,
		Exchange:  deps.exchange,
		Source:    deps.source,
		Evaluator: deps.evaluator,
		Risk:      deps.risk,
		Executor:  deps.executor,
		Notifier:  deps.notifier,
	})
	require.NoError(t, err)
	return svc
}

func defaultDeps() *testDeps {
	return &testDeps{
		logger:    &mockLogger{},
		exchange:  &mockExchange{balance: 1000},
		source:    &mockSource{obs: map[string]domain.Observation{"BTCUSDT": {Symbol: "BTCUSDT", Price: 100}, "ETHUSDT": {Symbol: "ETHUSDT", Price: 100}}},
		evaluator: &mockEvaluator{actions: map[string]domain.SignalAction{}},
		risk:      &mockRisk{decisions: map[string]ports.Decision{}},
		executor:  &mockExecutor{results: map[string]domain.OrderResult{}},
		notifier:  &mockNotifier{},
	}
}

func TestNewTradingService(t *testing.T) {
	deps := defaultDeps()

	t.Run("rejects missing dependencies", func(t *testing.T) {
		_, err := NewTradingService(Config{Cfg: testConfig(), Logger: deps.logger})
		assert.Error(t, err)
	})

	t.Run("rejects non-positive cycle interval", func(t *testing.T) {
		cfg := testConfig()
		cfg.Trading.CycleInterval = 0
		_, err := NewTradingService(Config{
			Cfg: cfg, Logger: deps.logger, Exchange: deps.exchange, Source: deps.source,
			Evaluator: deps.evaluator, Risk: deps.risk, Executor: deps.executor, Notifier: deps.notifier,
		})
		assert.Error(t, err)
	})
}

func TestProcessSymbolHoldDoesNothing(t *testing.T) {
	deps := defaultDeps()
	svc := newTestService(t, deps)

	svc.processSymbol(context.Background(), testConfig().Trading.Symbols[0])

	assert.Empty(t, deps.executor.calls)
	assert.Empty(t, deps.notifier.events)
}

func TestProcessSymbolExecutesAdmittedBuy(t *testing.T) {
	deps := defaultDeps()
	deps.evaluator.actions["BTCUSDT"] = domain.ActionBuy
	deps.risk.decisions["BTCUSDT"] = ports.Decision{
		Allowed: true,
		Request: domain.OrderRequest{Symbol: "BTCUSDT", Side: domain.Buy, Quantity: 0.5},
	}
	deps.risk.position = &domain.Position{Symbol: "BTCUSDT", Status: domain.StatusOpen}
	svc := newTestService(t, deps)

	svc.processSymbol(context.Background(), testConfig().Trading.Symbols[0])

	require.Len(t, deps.executor.calls, 1)
	require.Len(t, deps.risk.confirmed, 1)
	assert.Empty(t, deps.risk.released)
	require.Len(t, deps.notifier.events, 1)
	assert.Equal(t, domain.EventTradeExecuted, deps.notifier.events[0].Kind)
}

func TestProcessSymbolSellNotificationCarriesPNL(t *testing.T) {
	deps := defaultDeps()
	deps.evaluator.actions["BTCUSDT"] = domain.ActionSell
	deps.risk.decisions["BTCUSDT"] = ports.Decision{
		Allowed: true,
		Request: domain.OrderRequest{Symbol: "BTCUSDT", Side: domain.Sell, Quantity: 0.5},
	}
	deps.risk.position = &domain.Position{Symbol: "BTCUSDT", Status: domain.StatusClosed, PNL: 123.45}
	svc := newTestService(t, deps)

	svc.processSymbol(context.Background(), testConfig().Trading.Symbols[0])

	require.Len(t, deps.notifier.events, 1)
	assert.Equal(t, domain.EventTradeExecuted, deps.notifier.events[0].Kind)
	assert.Equal(t, 123.45, deps.notifier.events[0].PNL)
}

func TestProcessSymbolRejectionNotifiesWithoutExecuting(t *testing.T) {
	deps := defaultDeps()
	deps.evaluator.actions["BTCUSDT"] = domain.ActionBuy
	deps.risk.decisions["BTCUSDT"] = ports.Decision{Reason: domain.ReasonPositionLimit}
	svc := newTestService(t, deps)

	svc.processSymbol(context.Background(), testConfig().Trading.Symbols[0])

	assert.Empty(t, deps.executor.calls)
	require.Len(t, deps.notifier.events, 1)
	assert.Equal(t, domain.EventRiskRejected, deps.notifier.events[0].Kind)
	assert.Equal(t, domain.ReasonPositionLimit, deps.notifier.events[0].Reason)
}

func TestProcessSymbolFailedExecutionReleasesAndNotifies(t *testing.T) {
	deps := defaultDeps()
	deps.evaluator.actions["BTCUSDT"] = domain.ActionBuy
	deps.risk.decisions["BTCUSDT"] = ports.Decision{
		Allowed: true,
		Request: domain.OrderRequest{Symbol: "BTCUSDT", Side: domain.Buy, Quantity: 0.5},
	}
	deps.executor.results["BTCUSDT"] = domain.OrderResult{
		Err: fmt.Errorf("execute: %w", ports.ErrRetriesExhausted),
	}
	svc := newTestService(t, deps)

	svc.processSymbol(context.Background(), testConfig().Trading.Symbols[0])

	require.Len(t, deps.risk.released, 1)
	assert.Empty(t, deps.risk.confirmed)
	require.Len(t, deps.notifier.events, 1)
	assert.Equal(t, domain.EventTradeFailed, deps.notifier.events[0].Kind)
}

func TestProcessSymbolUnknownOutcomeMarksPending(t *testing.T) {
	deps := defaultDeps()
	deps.evaluator.actions["BTCUSDT"] = domain.ActionBuy
	deps.risk.decisions["BTCUSDT"] = ports.Decision{
		Allowed: true,
		Request: domain.OrderRequest{Symbol: "BTCUSDT", Side: domain.Buy, Quantity: 0.5},
	}
	deps.executor.results["BTCUSDT"] = domain.OrderResult{
		Err: fmt.Errorf("execute: %w", ports.ErrContextCanceled),
	}
	svc := newTestService(t, deps)

	svc.processSymbol(context.Background(), testConfig().Trading.Symbols[0])

	assert.Equal(t, []string{"BTCUSDT"}, deps.risk.pending)
	assert.Empty(t, deps.risk.released, "unknown outcome must not free the slot")
	assert.Empty(t, deps.risk.confirmed)
}

func TestProcessSymbolObservationFailureIsContained(t *testing.T) {
	deps := defaultDeps()
	deps.source.err = fmt.Errorf("observe: %w", ports.ErrNoPriceData)
	svc := newTestService(t, deps)

	svc.processSymbol(context.Background(), testConfig().Trading.Symbols[0])

	assert.Empty(t, deps.executor.calls)
	assert.NotEmpty(t, deps.logger.warnMsgs)
}

func TestProcessSymbolNotifierFailureDoesNotAffectTrading(t *testing.T) {
	deps := defaultDeps()
	deps.evaluator.actions["BTCUSDT"] = domain.ActionBuy
	deps.risk.decisions["BTCUSDT"] = ports.Decision{
		Allowed: true,
		Request: domain.OrderRequest{Symbol: "BTCUSDT", Side: domain.Buy, Quantity: 0.5},
	}
	deps.notifier.err = fmt.Errorf("send: %w", ports.ErrNotificationSend)
	svc := newTestService(t, deps)

	svc.processSymbol(context.Background(), testConfig().Trading.Symbols[0])

	require.Len(t, deps.risk.confirmed, 1, "fill settled despite notification failure")
	assert.NotEmpty(t, deps.logger.warnMsgs)
}

// One symbol's execution failure must not affect another symbol settled in
// the same cycle: the failed order is released, the filled one confirmed.
func TestRunCycleIsolatesFailuresAcrossSymbols(t *testing.T) {
	deps := defaultDeps()
	deps.evaluator.actions["BTCUSDT"] = domain.ActionBuy
	deps.evaluator.actions["ETHUSDT"] = domain.ActionBuy
	deps.risk.decisions["BTCUSDT"] = ports.Decision{
		Allowed: true,
		Request: domain.OrderRequest{Symbol: "BTCUSDT", Side: domain.Buy, Quantity: 0.5},
	}
	deps.risk.decisions["ETHUSDT"] = ports.Decision{
		Allowed: true,
		Request: domain.OrderRequest{Symbol: "ETHUSDT", Side: domain.Buy, Quantity: 0.25},
	}
	deps.executor.results["BTCUSDT"] = domain.OrderResult{
		Err: fmt.Errorf("execute: %w", ports.ErrRetriesExhausted),
	}
	svc := newTestService(t, deps)
	svc.state.Store(stateRunning)

	svc.runCycle(context.Background())
	svc.wg.Wait()

	require.Len(t, deps.risk.released, 1)
	assert.Equal(t, "BTCUSDT", deps.risk.released[0].Request.Symbol)
	require.Len(t, deps.risk.confirmed, 1)
	assert.Equal(t, "ETHUSDT", deps.risk.confirmed[0].Request.Symbol)
	assert.ElementsMatch(t, []domain.EventKind{domain.EventTradeFailed, domain.EventTradeExecuted}, deps.notifier.kinds())
}

func TestRunCycleSkipsDisabledSymbols(t *testing.T) {
	deps := defaultDeps()
	svc := newTestService(t, deps)
	svc.state.Store(stateRunning)

	svc.runCycle(context.Background())
	svc.wg.Wait()

	observed := deps.source.observedSymbols()
	assert.NotContains(t, observed, "DOGEUSDT")
	assert.ElementsMatch(t, []string{"BTCUSDT", "ETHUSDT"}, observed)
}

func TestRunCycleSkipsSymbolsStillInFlight(t *testing.T) {
	deps := defaultDeps()
	deps.source.block = make(chan struct{})
	svc := newTestService(t, deps)
	svc.state.Store(stateRunning)

	// First cycle blocks both symbols inside Observe.
	svc.runCycle(context.Background())
	// Second cycle must skip them instead of overlapping.
	svc.runCycle(context.Background())

	close(deps.source.block)
	svc.wg.Wait()

	assert.Len(t, deps.source.observedSymbols(), 2, "each symbol processed exactly once")
}

func TestRunCycleDoesNothingUnlessRunning(t *testing.T) {
	deps := defaultDeps()
	svc := newTestService(t, deps)

	svc.runCycle(context.Background()) // still stateInit
	svc.wg.Wait()
	assert.Empty(t, deps.source.observedSymbols())
}

func TestStartDrainsAndStops(t *testing.T) {
	deps := defaultDeps()
	deps.evaluator.actions["BTCUSDT"] = domain.ActionBuy
	deps.risk.decisions["BTCUSDT"] = ports.Decision{
		Allowed: true,
		Request: domain.OrderRequest{Symbol: "BTCUSDT", Side: domain.Buy, Quantity: 0.5},
	}
	svc := newTestService(t, deps)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Start(ctx) }()

	// Let a few cycles run, then shut down.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop after context cancellation")
	}
	assert.Equal(t, stateStopped, svc.state.Load())
	assert.False(t, svc.IsRunning())
}

func TestStartFailsWhenServerTimeSyncFails(t *testing.T) {
	deps := defaultDeps()
	deps.exchange.serverTimeErr = fmt.Errorf("sync: %w", ports.ErrConnectionFailed)
	svc := newTestService(t, deps)

	err := svc.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrConnectionFailed)
}

func TestStartLogsOrdersLeftFromPreviousRun(t *testing.T) {
	deps := defaultDeps()
	deps.exchange.openOrders = map[string][]ports.OpenOrder{
		"BTCUSDT": {{OrderID: 7, ClientOrderID: "stale", Symbol: "BTCUSDT", Side: domain.Buy, Quantity: 0.5}},
	}
	svc := newTestService(t, deps)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Start(ctx) }()
	time.Sleep(30 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	deps.logger.mu.Lock()
	defer deps.logger.mu.Unlock()
	assert.Contains(t, deps.logger.warnMsgs, "reconcileOpenOrders: order left from previous run")
}
