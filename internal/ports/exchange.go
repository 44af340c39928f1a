package ports

import (
	"context"
	"time"

	"cryptoSignalBot/internal/domain"
)

// OpenOrder describes an order resting on the exchange, as reported by the
// open-orders query used for startup reconciliation.
type OpenOrder struct {
	OrderID       int64
	ClientOrderID string
	Symbol        string
	Side          domain.OrderSide
	Price         float64
	Quantity      float64
	CreatedAt     time.Time
}

// ExchangeClient defines the interface for interacting with a cryptocurrency
// exchange. The exchange is required to deduplicate submissions by client
// order ID; retried sends with the same ID must not produce duplicate fills.
type ExchangeClient interface {
	// Ping checks the connectivity to the exchange API.
	Ping(ctx context.Context) error

	// GetServerTime retrieves the current server time from the exchange.
	GetServerTime(ctx context.Context) (time.Time, error)

	// SetServerTime synchronizes the client's time offset with the server.
	SetServerTime(ctx context.Context) error

	// GetTickerPrice retrieves the last ticker price for a given symbol.
	GetTickerPrice(ctx context.Context, symbol string) (float64, error)

	// GetAccountBalance retrieves the available balance for an asset (e.g., "USDT").
	GetAccountBalance(ctx context.Context, asset string) (float64, error)

	// SubmitOrder places a market order identified by a client-generated
	// order ID and returns the resulting fill.
	SubmitOrder(ctx context.Context, clientOrderID, symbol string, side domain.OrderSide, quantity float64) (*domain.Fill, error)

	// ListOpenOrders retrieves orders still resting on the exchange for a
	// symbol. Used to reconcile pending positions after a restart.
	ListOpenOrders(ctx context.Context, symbol string) ([]OpenOrder, error)
}

// SentimentProvider supplies a news-derived sentiment score for a symbol.
// A nil score with a nil error means no score is available; callers must
// tolerate absence.
type SentimentProvider interface {
	GetSentiment(ctx context.Context, symbol string, asOf time.Time) (*float64, error)
}
