package ports

import (
	"context"

	"cryptoSignalBot/internal/domain"
)

// SignalSource supplies a fresh market observation for a symbol.
type SignalSource interface {
	Observe(ctx context.Context, symbol string) (domain.Observation, error)
}

// Evaluator maps a symbol's configuration and current observation to a
// trade signal. Implementations must be pure: deterministic for identical
// inputs and free of side effects.
type Evaluator interface {
	Evaluate(cfg domain.SymbolConfig, obs domain.Observation) domain.Signal
}

// Decision is the risk manager's verdict on a signal.
type Decision struct {
	Allowed bool
	Request domain.OrderRequest // valid only when Allowed
	Reason  domain.RejectReason // valid only when rejected
}

// RiskManager gatekeeps signals against position and risk limits and owns
// all cross-cycle position state.
type RiskManager interface {
	// Admit decides whether a BUY/SELL signal may proceed to execution.
	// An allowed decision reserves risk state that must be settled by a
	// later Confirm or Release.
	Admit(ctx context.Context, sig domain.Signal) Decision
	// Confirm finalizes risk state after a confirmed fill and returns the
	// settled position (opened for BUY, closed with realized PNL for SELL).
	Confirm(ctx context.Context, res domain.OrderResult) (*domain.Position, error)
	// Release rolls back the reservation of a failed or abandoned order.
	Release(ctx context.Context, res domain.OrderResult) error
	// MarkPending parks a reservation whose execution outcome is unknown
	// (forced shutdown) for reconciliation on next startup.
	MarkPending(ctx context.Context, symbol string) error
	// OpenCount returns the number of occupied position slots, reservations
	// included.
	OpenCount() int
}

// OrderExecutor submits admitted orders to the exchange, handling retries
// and failure containment internally. The returned result is terminal.
type OrderExecutor interface {
	Execute(ctx context.Context, req domain.OrderRequest) domain.OrderResult
}

// PositionSizer translates a symbol's configuration and current price into
// an order quantity. The risk_level tag is interpreted here and nowhere else.
type PositionSizer interface {
	Quantity(cfg domain.SymbolConfig, price float64) float64
}

// Notifier delivers operator notifications. Best effort: errors are logged
// by callers and never affect trading decisions.
type Notifier interface {
	Notify(ctx context.Context, event domain.Event) error
}
