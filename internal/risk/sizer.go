package risk

import (
	"fmt"

	"cryptoSignalBot/internal/domain"
)

// FactorSizer sizes orders as a base quantity scaled by a per-risk-level
// factor. It is the default interpretation of the opaque risk_level tag;
// alternative sizing strategies plug in through ports.PositionSizer.
type FactorSizer struct {
	baseQuantity float64
	factors      map[domain.RiskLevel]float64
}

// NewFactorSizer creates a sizer with the given base quantity and factors.
// Levels without a configured factor size at the base quantity.
func NewFactorSizer(baseQuantity float64, factors map[domain.RiskLevel]float64) (*FactorSizer, error) {
	if baseQuantity <= 0 {
		return nil, fmt.Errorf("base quantity must be positive")
	}
	for level, factor := range factors {
		if factor <= 0 {
			return nil, fmt.Errorf("factor for risk level %s must be positive", level)
		}
	}
	return &FactorSizer{baseQuantity: baseQuantity, factors: factors}, nil
}

// Quantity returns the order quantity for a symbol at the given price.
func (s *FactorSizer) Quantity(cfg domain.SymbolConfig, price float64) float64 {
	if price <= 0 {
		return 0
	}
	factor, ok := s.factors[cfg.RiskLevel]
	if !ok {
		factor = 1.0
	}
	return s.baseQuantity * factor
}
