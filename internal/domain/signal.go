package domain

// Signal is the evaluated trade intent for a symbol at a point in time.
// It is a pure derived value and is never mutated after creation.
type Signal struct {
	Action      SignalAction
	Symbol      string
	Observation Observation
	Score       float64    // combined score the thresholds were compared against
	Thresholds  Thresholds // thresholds in effect when the signal was produced
}

// IsActionable reports whether the signal requests an order.
func (s Signal) IsActionable() bool {
	return s.Action == ActionBuy || s.Action == ActionSell
}
