package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"cryptoSignalBot/config"
	"cryptoSignalBot/internal/domain"
	"cryptoSignalBot/internal/ports"
)

// Service lifecycle states.
const (
	stateInit int32 = iota
	stateRunning
	stateDraining
	stateStopped
)

const notifyTimeout = 5 * time.Second

// stateRestorer is implemented by risk managers that can rebuild their
// in-memory state from the position store on startup.
type stateRestorer interface {
	Restore(ctx context.Context) error
}

// TradingService orchestrates the signal pipeline: each cycle it observes
// every enabled symbol, evaluates signals, admits them through risk checks,
// executes admitted orders, and settles risk state from the outcomes.
type TradingService struct {
	cfg       *config.Config
	logger    ports.Logger
	exchange  ports.ExchangeClient
	source    ports.SignalSource
	evaluator ports.Evaluator
	risk      ports.RiskManager
	executor  ports.OrderExecutor
	notifier  ports.Notifier

	state atomic.Int32
	wg    sync.WaitGroup

	mu       sync.Mutex
	inFlight map[string]bool // symbols with a pipeline run still in progress
}

// Config holds the orchestrator's dependencies.
type Config struct {
	Cfg       *config.Config
	Logger    ports.Logger
	Exchange  ports.ExchangeClient
	Source    ports.SignalSource
	Evaluator ports.Evaluator
	Risk      ports.RiskManager
	Executor  ports.OrderExecutor
	Notifier  ports.Notifier
}

// NewTradingService creates a new application service instance.
func NewTradingService(cfg Config) (*TradingService, error) {
	if cfg.Cfg == nil || cfg.Logger == nil || cfg.Exchange == nil || cfg.Source == nil ||
		cfg.Evaluator == nil || cfg.Risk == nil || cfg.Executor == nil || cfg.Notifier == nil {
		return nil, fmt.Errorf("missing required dependencies for TradingService")
	}
	if cfg.Cfg.Trading.CycleInterval <= 0 {
		return nil, fmt.Errorf("configuration CycleInterval must be positive")
	}
	if cfg.Cfg.Trading.MaxConcurrent <= 0 {
		return nil, fmt.Errorf("configuration MaxConcurrent must be positive")
	}

	s := &TradingService{
		cfg:       cfg.Cfg,
		logger:    cfg.Logger,
		exchange:  cfg.Exchange,
		source:    cfg.Source,
		evaluator: cfg.Evaluator,
		risk:      cfg.Risk,
		executor:  cfg.Executor,
		notifier:  cfg.Notifier,
		inFlight:  make(map[string]bool),
	}
	s.state.Store(stateInit)
	return s, nil
}

// Start runs the trading loop until the context is canceled or a shutdown
// signal arrives. In-flight symbol runs are drained before it returns.
func (s *TradingService) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting Trading Service...")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		}
	}()

	// --- Initialization Steps ---
	// 1. Set server time (important for signed API calls)
	if err := s.exchange.SetServerTime(ctx); err != nil {
		s.logger.Error(ctx, err, "Failed to synchronize server time")
		return fmt.Errorf("failed to set server time: %w", err)
	}
	s.logger.Info(ctx, "Server time synchronized")

	// 2. Rebuild risk state from the position store
	if restorer, ok := s.risk.(stateRestorer); ok {
		if err := restorer.Restore(ctx); err != nil {
			s.logger.Error(ctx, err, "Failed to restore risk state")
			return fmt.Errorf("failed to restore risk state: %w", err)
		}
	}

	// 3. Reconcile against the exchange: orders left resting by a previous
	// run are surfaced for the operator, not acted on automatically.
	s.reconcileOpenOrders(ctx)

	// 4. Log the available balance as a startup sanity check
	if balance, err := s.exchange.GetAccountBalance(ctx, "USDT"); err != nil {
		s.logger.Warn(ctx, "Could not fetch account balance", map[string]interface{}{"error": err.Error()})
	} else {
		s.logger.Info(ctx, "Account balance", map[string]interface{}{"asset": "USDT", "available": balance})
	}

	s.state.Store(stateRunning)
	s.logger.Info(ctx, "Trading loop started", map[string]interface{}{
		"symbols":       len(s.cfg.Trading.Symbols),
		"cycleInterval": s.cfg.Trading.CycleInterval.String(),
		"maxPositions":  s.cfg.Trading.MaxPositions,
	})

	ticker := time.NewTicker(s.cfg.Trading.CycleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return nil
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// shutdown drains in-flight symbol runs and marks the service stopped.
func (s *TradingService) shutdown() {
	s.state.Store(stateDraining)
	s.logger.Info(context.Background(), "Draining in-flight pipeline runs...")
	s.wg.Wait()
	s.state.Store(stateStopped)
	s.logger.Info(context.Background(), "Trading Service stopped")
}

// IsRunning reports whether the service accepts new cycles.
func (s *TradingService) IsRunning() bool {
	return s.state.Load() == stateRunning
}

// reconcileOpenOrders logs orders still resting on the exchange for each
// enabled symbol so pending positions can be resolved by the operator.
func (s *TradingService) reconcileOpenOrders(ctx context.Context) {
	op := "reconcileOpenOrders"
	for _, sc := range s.cfg.Trading.Symbols {
		if !sc.Enabled {
			continue
		}
		orders, err := s.exchange.ListOpenOrders(ctx, sc.Symbol)
		if err != nil {
			s.logger.Warn(ctx, op+": could not list open orders", map[string]interface{}{"symbol": sc.Symbol, "error": err.Error()})
			continue
		}
		for _, o := range orders {
			s.logger.Warn(ctx, op+": order left from previous run", map[string]interface{}{
				"symbol": o.Symbol, "side": o.Side, "quantity": o.Quantity,
				"clientOrderID": o.ClientOrderID, "createdAt": o.CreatedAt,
			})
		}
	}
}

// runCycle dispatches one pipeline run per enabled symbol. A bounded worker
// pool caps exchange pressure, and symbols whose previous run has not
// finished are skipped rather than overlapped.
func (s *TradingService) runCycle(ctx context.Context) {
	if s.state.Load() != stateRunning {
		return
	}

	sem := make(chan struct{}, s.cfg.Trading.MaxConcurrent)
	for _, sc := range s.cfg.Trading.Symbols {
		if !sc.Enabled {
			continue
		}
		if !s.tryAcquire(sc.Symbol) {
			s.logger.Debug(ctx, "Previous run still in flight, skipping symbol", map[string]interface{}{"symbol": sc.Symbol})
			continue
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			s.release(sc.Symbol)
			return
		}

		s.wg.Add(1)
		go func(sc domain.SymbolConfig) {
			defer func() {
				<-sem
				s.release(sc.Symbol)
				s.wg.Done()
			}()
			s.processSymbol(ctx, sc)
		}(sc)
	}
}

// processSymbol runs the full pipeline for one symbol. Failures are logged
// and contained; they never affect other symbols or the cycle loop.
func (s *TradingService) processSymbol(ctx context.Context, sc domain.SymbolConfig) {
	op := "processSymbol"

	obs, err := s.source.Observe(ctx, sc.Symbol)
	if err != nil {
		s.logger.Warn(ctx, op+": observation failed, skipping symbol this cycle", map[string]interface{}{
			"symbol": sc.Symbol, "error": err.Error(),
		})
		return
	}

	sig := s.evaluator.Evaluate(sc, obs)
	s.logger.Debug(ctx, op+": signal evaluated", map[string]interface{}{
		"symbol": sc.Symbol, "action": sig.Action, "score": sig.Score,
	})
	if !sig.IsActionable() {
		return
	}

	decision := s.risk.Admit(ctx, sig)
	if !decision.Allowed {
		if decision.Reason != "" {
			s.logger.Info(ctx, op+": signal rejected by risk checks", map[string]interface{}{
				"symbol": sc.Symbol, "action": sig.Action, "reason": decision.Reason,
			})
			s.notify(domain.Event{
				Kind:   domain.EventRiskRejected,
				Symbol: sc.Symbol,
				Side:   sideForAction(sig.Action),
				Reason: decision.Reason,
				Time:   time.Now().UTC(),
			})
		}
		return
	}

	result := s.executor.Execute(ctx, decision.Request)
	s.settle(ctx, result)
}

// settle reconciles risk state with an execution outcome and emits the
// corresponding notification.
func (s *TradingService) settle(ctx context.Context, res domain.OrderResult) {
	op := "settle"
	req := res.Request

	if res.Filled() {
		pos, err := s.risk.Confirm(ctx, res)
		if err != nil {
			s.logger.Error(ctx, err, op+": failed to confirm fill", map[string]interface{}{"symbol": req.Symbol, "side": req.Side})
			return
		}
		ev := domain.Event{
			Kind:     domain.EventTradeExecuted,
			Symbol:   req.Symbol,
			Side:     req.Side,
			Quantity: res.Fill.Quantity,
			Price:    res.Fill.Price,
			Time:     res.Fill.Time,
		}
		if req.Side == domain.Sell && pos != nil {
			ev.PNL = pos.PNL
		}
		s.notify(ev)
		return
	}

	// Context cancellation mid-execution leaves the order outcome unknown:
	// the slot stays reserved as pending until the next startup reconciles
	// it against the exchange. Every other failure is definitive and the
	// reservation is rolled back.
	if errors.Is(res.Err, ports.ErrContextCanceled) {
		s.logger.Warn(ctx, op+": execution outcome unknown, marking pending", map[string]interface{}{
			"symbol": req.Symbol, "side": req.Side, "clientOrderID": req.ClientOrderID,
		})
		if err := s.risk.MarkPending(ctx, req.Symbol); err != nil {
			s.logger.Error(ctx, err, op+": failed to mark position pending", map[string]interface{}{"symbol": req.Symbol})
		}
		return
	}

	s.logger.Error(ctx, res.Err, op+": execution failed", map[string]interface{}{"symbol": req.Symbol, "side": req.Side})
	if err := s.risk.Release(ctx, res); err != nil {
		s.logger.Error(ctx, err, op+": failed to release reservation", map[string]interface{}{"symbol": req.Symbol})
	}
	s.notify(domain.Event{
		Kind:   domain.EventTradeFailed,
		Symbol: req.Symbol,
		Side:   req.Side,
		Err:    res.Err,
		Time:   time.Now().UTC(),
	})
}

// notify delivers an event on a detached context so shutdown cancellation
// cannot suppress terminal notifications. Failures are logged only.
func (s *TradingService) notify(ev domain.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := s.notifier.Notify(ctx, ev); err != nil {
		s.logger.Warn(ctx, "Notification delivery failed", map[string]interface{}{
			"kind": ev.Kind, "symbol": ev.Symbol, "error": err.Error(),
		})
	}
}

func (s *TradingService) tryAcquire(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[symbol] {
		return false
	}
	s.inFlight[symbol] = true
	return true
}

func (s *TradingService) release(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, symbol)
}

func sideForAction(a domain.SignalAction) domain.OrderSide {
	if a == domain.ActionSell {
		return domain.Sell
	}
	return domain.Buy
}
