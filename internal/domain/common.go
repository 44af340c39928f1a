package domain

// OrderSide represents the side of an order (BUY or SELL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// SignalAction is the trade intent produced by strategy evaluation.
type SignalAction string

const (
	ActionBuy  SignalAction = "BUY"
	ActionSell SignalAction = "SELL"
	ActionHold SignalAction = "HOLD"
)

// PositionStatus represents the lifecycle state of a trading position.
type PositionStatus string

const (
	StatusOpen    PositionStatus = "open"
	StatusClosing PositionStatus = "closing" // SELL admitted, exit order not yet confirmed
	StatusClosed  PositionStatus = "closed"
	StatusPending PositionStatus = "pending" // outcome unknown at shutdown, needs reconciliation
)

// RiskLevel is an opaque per-symbol tag consumed by the position sizer.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// IsValid reports whether the risk level is one of the known tags.
func (r RiskLevel) IsValid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// RejectReason explains why the risk manager refused a signal.
type RejectReason string

const (
	ReasonPositionLimit   RejectReason = "POSITION_LIMIT"
	ReasonAlreadyOpen     RejectReason = "ALREADY_OPEN"
	ReasonNoPosition      RejectReason = "NO_POSITION"
	ReasonSymbolDisabled  RejectReason = "SYMBOL_DISABLED"
	ReasonInvalidQuantity RejectReason = "INVALID_QUANTITY"
)
