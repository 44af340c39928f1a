package domain

import "time"

// EventKind classifies operator notifications.
type EventKind string

const (
	EventTradeExecuted  EventKind = "TRADE_EXECUTED"
	EventTradeFailed    EventKind = "TRADE_FAILED"
	EventCircuitTripped EventKind = "CIRCUIT_TRIPPED"
	EventRiskRejected   EventKind = "RISK_REJECTED"
)

// Event is a human-readable notification about a terminal pipeline outcome.
// Delivery is best effort and never blocks a trading decision.
type Event struct {
	Kind     EventKind
	Symbol   string
	Side     OrderSide
	Quantity float64
	Price    float64
	PNL      float64      // set on closing TradeExecuted events
	Reason   RejectReason // set on RiskRejected events
	Err      error        // set on TradeFailed / CircuitTripped events
	Time     time.Time
}
