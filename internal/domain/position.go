package domain

import "time"

// Position represents an open holding of a symbol, tracked from BUY fill
// to SELL fill. Positions are owned exclusively by the risk manager; at
// most one position exists per symbol at any time.
type Position struct {
	ID         int64          // Unique identifier (assigned by the store)
	Symbol     string         // Trading symbol (e.g., "BTCUSDT")
	Quantity   float64        // Size of the position
	EntryPrice float64        // Fill price of the opening BUY
	ExitPrice  float64        // Fill price of the closing SELL (0 while open)
	OpenedAt   time.Time      // Timestamp of the opening fill
	ClosedAt   time.Time      // Timestamp of the closing fill (zero value while open)
	Status     PositionStatus // open, closing, closed or pending
	PNL        float64        // Realized profit and loss (set on close)

	// Client order ID of the opening BUY, kept for reconciliation against
	// the exchange after an unclean shutdown.
	EntryClientOrderID string
}

// IsOpen reports whether the position still occupies a risk slot.
func (p *Position) IsOpen() bool {
	return p.Status == StatusOpen || p.Status == StatusClosing || p.Status == StatusPending
}
