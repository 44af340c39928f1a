package domain

import "time"

// Thresholds holds the buy/sell score boundaries for a symbol.
// Both values are in [0,1] and Buy must be strictly greater than Sell.
type Thresholds struct {
	Buy  float64
	Sell float64
}

// SymbolConfig is the immutable per-symbol trading configuration,
// assembled and validated at load time.
type SymbolConfig struct {
	Symbol     string
	RiskLevel  RiskLevel
	Enabled    bool
	Thresholds Thresholds
}

// Observation is a point-in-time view of a symbol's market state.
// It is produced fresh each cycle and never retained past evaluation.
type Observation struct {
	Symbol    string
	Timestamp time.Time
	Price     float64
	PrevPrice float64  // last cycle's price, 0 if unknown
	Sentiment *float64 // news sentiment in [0,1], nil when unavailable
}

// HasSentiment reports whether a sentiment score was available.
func (o Observation) HasSentiment() bool {
	return o.Sentiment != nil
}
