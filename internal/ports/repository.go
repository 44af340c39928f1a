package ports

import (
	"context"

	"cryptoSignalBot/internal/domain"
)

// PositionRepository persists the position lifecycle so risk state survives
// restarts. The in-memory risk manager is authoritative during a run; the
// store is its durable mirror.
type PositionRepository interface {
	// Create saves a new position and returns its assigned ID.
	Create(ctx context.Context, pos *domain.Position) (int64, error)
	// Update modifies an existing position.
	Update(ctx context.Context, pos *domain.Position) error
	// FindActive retrieves all positions whose status is open, closing or
	// pending, i.e. everything that still occupies a risk slot.
	FindActive(ctx context.Context) ([]*domain.Position, error)
	// FindOpenBySymbol retrieves the active position for a symbol, if any.
	// Returns nil, nil when no active position exists.
	FindOpenBySymbol(ctx context.Context, symbol string) (*domain.Position, error)
	// GetRealizedPNL sums the PNL of all closed positions.
	GetRealizedPNL(ctx context.Context) (float64, error)
}
