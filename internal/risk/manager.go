package risk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cryptoSignalBot/internal/domain"
	"cryptoSignalBot/internal/ports"
)

// Config holds configuration for the risk manager.
type Config struct {
	MaxPositions int
	Symbols      []domain.SymbolConfig
	Sizer        ports.PositionSizer
	Repo         ports.PositionRepository
	Logger       ports.Logger
}

// Manager gatekeeps trade signals against position limits and owns all
// cross-cycle position state. Admission check and slot reservation happen
// inside one critical section, so no two concurrent admissions can both
// observe a free slot and both take it.
type Manager struct {
	cfg Config

	symbols map[string]domain.SymbolConfig

	mu        sync.Mutex
	positions map[string]*domain.Position // symbol -> active position
	reserved  map[string]struct{}         // symbols with an admitted BUY awaiting its fill
}

// NewManager creates a new risk manager instance.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for risk manager")
	}
	if cfg.Sizer == nil {
		return nil, fmt.Errorf("position sizer is required for risk manager")
	}
	if cfg.Repo == nil {
		return nil, fmt.Errorf("position repository is required for risk manager")
	}
	if cfg.MaxPositions <= 0 {
		return nil, fmt.Errorf("MaxPositions must be positive")
	}
	symbols := make(map[string]domain.SymbolConfig, len(cfg.Symbols))
	for _, sc := range cfg.Symbols {
		symbols[sc.Symbol] = sc
	}
	return &Manager{
		cfg:       cfg,
		symbols:   symbols,
		positions: make(map[string]*domain.Position),
		reserved:  make(map[string]struct{}),
	}, nil
}

// Restore loads active positions from the store so risk accounting survives
// restarts. Positions left in the closing state by an interrupted SELL are
// rolled back to open; pending positions keep occupying a slot until
// reconciled against the exchange.
func (m *Manager) Restore(ctx context.Context) error {
	active, err := m.cfg.Repo.FindActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to load active positions: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, pos := range active {
		if !pos.IsOpen() {
			continue
		}
		if _, dup := m.positions[pos.Symbol]; dup {
			return fmt.Errorf("%w: more than one active position for %s", ports.ErrPositionConflict, pos.Symbol)
		}
		if pos.Status == domain.StatusClosing {
			pos.Status = domain.StatusOpen
			if err := m.cfg.Repo.Update(ctx, pos); err != nil {
				m.cfg.Logger.Error(ctx, err, "Failed to roll back closing position on restore", map[string]interface{}{"symbol": pos.Symbol})
			}
		}
		if pos.Status == domain.StatusPending {
			m.cfg.Logger.Warn(ctx, "Restored position with unknown outcome, reconcile against exchange", map[string]interface{}{
				"symbol":        pos.Symbol,
				"clientOrderID": pos.EntryClientOrderID,
			})
		}
		m.positions[pos.Symbol] = pos
	}
	if len(m.positions) > m.cfg.MaxPositions {
		m.cfg.Logger.Warn(ctx, "Restored more positions than max_positions allows; no new entries until closed", map[string]interface{}{
			"restored":     len(m.positions),
			"maxPositions": m.cfg.MaxPositions,
		})
	}
	m.cfg.Logger.Info(ctx, "Risk state restored", map[string]interface{}{"activePositions": len(m.positions)})
	return nil
}

// Admit decides whether a signal may proceed to execution. An allowed BUY
// reserves a position slot; an allowed SELL flips the position to closing.
// Both reservations must be settled by Confirm or Release.
func (m *Manager) Admit(ctx context.Context, sig domain.Signal) ports.Decision {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch sig.Action {
	case domain.ActionBuy:
		return m.admitBuy(ctx, sig)
	case domain.ActionSell:
		return m.admitSell(ctx, sig)
	default:
		// HOLD never reaches execution; treat as a rejection without reason.
		return ports.Decision{}
	}
}

// admitBuy assumes m.mu is held.
func (m *Manager) admitBuy(ctx context.Context, sig domain.Signal) ports.Decision {
	symbol := sig.Symbol
	sc, known := m.symbols[symbol]
	if !known || !sc.Enabled {
		return reject(domain.ReasonSymbolDisabled)
	}
	if _, open := m.positions[symbol]; open {
		return reject(domain.ReasonAlreadyOpen)
	}
	if _, pending := m.reserved[symbol]; pending {
		return reject(domain.ReasonAlreadyOpen)
	}
	if m.openCountLocked() >= m.cfg.MaxPositions {
		return reject(domain.ReasonPositionLimit)
	}

	quantity := m.cfg.Sizer.Quantity(sc, sig.Observation.Price)
	if quantity <= 0 {
		m.cfg.Logger.Warn(ctx, "Sizer produced non-positive quantity, rejecting BUY", map[string]interface{}{"symbol": symbol, "price": sig.Observation.Price})
		return reject(domain.ReasonInvalidQuantity)
	}

	m.reserved[symbol] = struct{}{}
	m.cfg.Logger.Debug(ctx, "BUY admitted", map[string]interface{}{"symbol": symbol, "quantity": quantity, "openCount": m.openCountLocked()})
	return ports.Decision{
		Allowed: true,
		Request: domain.OrderRequest{Symbol: symbol, Side: domain.Buy, Quantity: quantity},
	}
}

// admitSell assumes m.mu is held.
func (m *Manager) admitSell(ctx context.Context, sig domain.Signal) ports.Decision {
	symbol := sig.Symbol
	pos, open := m.positions[symbol]
	if !open || pos.Status != domain.StatusOpen {
		// No position, or one already closing/pending: nothing to sell.
		return reject(domain.ReasonNoPosition)
	}

	// Optimistic reservation: flipping to closing here prevents a second
	// SELL admission for the same position in an overlapping cycle.
	pos.Status = domain.StatusClosing
	if err := m.cfg.Repo.Update(ctx, pos); err != nil {
		m.cfg.Logger.Error(ctx, err, "Failed to persist closing reservation", map[string]interface{}{"symbol": symbol})
	}
	m.cfg.Logger.Debug(ctx, "SELL admitted", map[string]interface{}{"symbol": symbol, "quantity": pos.Quantity})
	return ports.Decision{
		Allowed: true,
		Request: domain.OrderRequest{Symbol: symbol, Side: domain.Sell, Quantity: pos.Quantity},
	}
}

// Confirm finalizes risk state after a confirmed fill: a BUY fill creates
// the position, a SELL fill closes it and realizes PNL. The settled position
// is returned for notification purposes.
func (m *Manager) Confirm(ctx context.Context, res domain.OrderResult) (*domain.Position, error) {
	if !res.Filled() {
		return nil, fmt.Errorf("confirm called without a fill for %s", res.Request.Symbol)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	symbol := res.Request.Symbol
	switch res.Request.Side {
	case domain.Buy:
		if _, pending := m.reserved[symbol]; !pending {
			return nil, fmt.Errorf("%w: BUY fill for %s without reservation", ports.ErrPositionConflict, symbol)
		}
		delete(m.reserved, symbol)

		pos := &domain.Position{
			Symbol:             symbol,
			Quantity:           res.Fill.Quantity,
			EntryPrice:         res.Fill.Price,
			OpenedAt:           res.Fill.Time,
			Status:             domain.StatusOpen,
			EntryClientOrderID: res.Request.ClientOrderID,
		}
		m.positions[symbol] = pos
		if _, err := m.cfg.Repo.Create(ctx, pos); err != nil {
			m.cfg.Logger.Error(ctx, err, "Failed to persist opened position", map[string]interface{}{"symbol": symbol})
			return nil, err
		}
		m.cfg.Logger.Info(ctx, "Position opened", map[string]interface{}{
			"symbol": symbol, "entryPrice": pos.EntryPrice, "quantity": pos.Quantity, "openCount": m.openCountLocked(),
		})
		return pos, nil

	case domain.Sell:
		pos, open := m.positions[symbol]
		if !open || pos.Status != domain.StatusClosing {
			return nil, fmt.Errorf("%w: SELL fill for %s without closing position", ports.ErrPositionConflict, symbol)
		}
		pos.ExitPrice = res.Fill.Price
		pos.ClosedAt = res.Fill.Time
		pos.Status = domain.StatusClosed
		pos.PNL = (pos.ExitPrice - pos.EntryPrice) * pos.Quantity
		delete(m.positions, symbol)
		if err := m.cfg.Repo.Update(ctx, pos); err != nil {
			m.cfg.Logger.Error(ctx, err, "Failed to persist closed position", map[string]interface{}{"symbol": symbol})
			return nil, err
		}
		m.cfg.Logger.Info(ctx, "Position closed", map[string]interface{}{
			"symbol": symbol, "exitPrice": pos.ExitPrice, "pnl": pos.PNL, "openCount": m.openCountLocked(),
		})
		return pos, nil
	}
	return nil, fmt.Errorf("unknown order side %q", res.Request.Side)
}

// Release rolls back the reservation of an order that failed or was never
// executed, making the symbol eligible again next cycle.
func (m *Manager) Release(ctx context.Context, res domain.OrderResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	symbol := res.Request.Symbol
	switch res.Request.Side {
	case domain.Buy:
		if _, pending := m.reserved[symbol]; !pending {
			return nil // already settled, nothing to roll back
		}
		delete(m.reserved, symbol)
		m.cfg.Logger.Debug(ctx, "BUY reservation released", map[string]interface{}{"symbol": symbol})
		return nil

	case domain.Sell:
		pos, open := m.positions[symbol]
		if !open || pos.Status != domain.StatusClosing {
			return nil
		}
		pos.Status = domain.StatusOpen
		if err := m.cfg.Repo.Update(ctx, pos); err != nil {
			m.cfg.Logger.Error(ctx, err, "Failed to persist closing rollback", map[string]interface{}{"symbol": symbol})
			return err
		}
		m.cfg.Logger.Debug(ctx, "SELL reservation rolled back", map[string]interface{}{"symbol": symbol})
		return nil
	}
	return fmt.Errorf("unknown order side %q", res.Request.Side)
}

// MarkPending parks a symbol's reservation in the pending state when its
// execution outcome is unknown at shutdown. The slot stays occupied until
// the next startup reconciles it against the exchange.
func (m *Manager) MarkPending(ctx context.Context, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pos, open := m.positions[symbol]; open && pos.Status == domain.StatusClosing {
		pos.Status = domain.StatusPending
		if err := m.cfg.Repo.Update(ctx, pos); err != nil {
			m.cfg.Logger.Error(ctx, err, "Failed to persist pending position", map[string]interface{}{"symbol": symbol})
			return err
		}
		return nil
	}

	if _, pending := m.reserved[symbol]; pending {
		delete(m.reserved, symbol)
		pos := &domain.Position{
			Symbol:   symbol,
			OpenedAt: time.Now().UTC(),
			Status:   domain.StatusPending,
		}
		m.positions[symbol] = pos
		if _, err := m.cfg.Repo.Create(ctx, pos); err != nil {
			m.cfg.Logger.Error(ctx, err, "Failed to persist pending reservation", map[string]interface{}{"symbol": symbol})
			return err
		}
	}
	return nil
}

// OpenCount returns the number of occupied position slots, reservations
// included.
func (m *Manager) OpenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openCountLocked()
}

// openCountLocked assumes m.mu is held.
func (m *Manager) openCountLocked() int {
	return len(m.positions) + len(m.reserved)
}

func reject(reason domain.RejectReason) ports.Decision {
	return ports.Decision{Reason: reason}
}
