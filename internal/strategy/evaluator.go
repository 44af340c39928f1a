package strategy

import (
	"fmt"

	"cryptoSignalBot/internal/domain"
)

// Scorer maps an observation to a combined score in [0,1]. The second
// return value reports whether enough data was available to score at all.
type Scorer func(obs domain.Observation) (float64, bool)

// Config holds parameters for the threshold evaluator.
type Config struct {
	// DefaultThresholds apply when a symbol's own thresholds are unset and
	// to the price-only fallback when sentiment is missing.
	DefaultThresholds domain.Thresholds
	// Scorer computes the combined score. Defaults to SentimentScorer.
	Scorer Scorer
}

// Evaluator maps a symbol's configuration and current observation to a
// trade signal. Evaluate is a pure function: deterministic for identical
// inputs and free of side effects, so it is safe for unrestricted
// parallelism across symbols.
type Evaluator struct {
	cfg Config
}

// New creates a new Evaluator instance.
func New(cfg Config) (*Evaluator, error) {
	th := cfg.DefaultThresholds
	if th.Buy < 0 || th.Buy > 1 || th.Sell < 0 || th.Sell > 1 {
		return nil, fmt.Errorf("default thresholds must be within [0,1]")
	}
	if th.Buy <= th.Sell {
		return nil, fmt.Errorf("default buy threshold must be greater than sell threshold")
	}
	if cfg.Scorer == nil {
		cfg.Scorer = SentimentScorer
	}
	return &Evaluator{cfg: cfg}, nil
}

// Evaluate produces a BUY, SELL or HOLD signal for the observation.
//
// With a sentiment score present, the configured scorer's output is compared
// against the symbol's thresholds. Without one, evaluation degrades to a
// price-momentum comparison against the default thresholds, and to HOLD when
// not even a previous price is known. Evaluate never fails; bad input only
// degrades the signal.
func (e *Evaluator) Evaluate(cfg domain.SymbolConfig, obs domain.Observation) domain.Signal {
	sig := domain.Signal{
		Action:      domain.ActionHold,
		Symbol:      obs.Symbol,
		Observation: obs,
		Thresholds:  e.thresholdsFor(cfg),
	}

	if obs.Price <= 0 {
		// Malformed observation; skip this cycle.
		return sig
	}

	score, ok := e.cfg.Scorer(obs)
	if !ok {
		// No sentiment available: price-only fallback against the default
		// thresholds.
		score, ok = MomentumScorer(obs)
		if !ok {
			return sig
		}
		sig.Thresholds = e.cfg.DefaultThresholds
	}

	sig.Score = score
	switch {
	case score >= sig.Thresholds.Buy:
		sig.Action = domain.ActionBuy
	case score <= sig.Thresholds.Sell:
		sig.Action = domain.ActionSell
	}
	return sig
}

func (e *Evaluator) thresholdsFor(cfg domain.SymbolConfig) domain.Thresholds {
	th := cfg.Thresholds
	if th.Buy == 0 && th.Sell == 0 {
		return e.cfg.DefaultThresholds
	}
	return th
}

// SentimentScorer scores by the sentiment score alone.
func SentimentScorer(obs domain.Observation) (float64, bool) {
	if !obs.HasSentiment() {
		return 0, false
	}
	return clamp01(*obs.Sentiment), true
}

// BlendedScorer mixes sentiment with normalized price momentum. A weight of
// 0 reduces to SentimentScorer; a weight of 1 ignores sentiment entirely.
func BlendedScorer(momentumWeight float64) Scorer {
	return func(obs domain.Observation) (float64, bool) {
		sentiment, haveSentiment := SentimentScorer(obs)
		momentum, haveMomentum := MomentumScorer(obs)
		switch {
		case haveSentiment && haveMomentum:
			return clamp01(sentiment*(1-momentumWeight) + momentum*momentumWeight), true
		case haveSentiment:
			return sentiment, true
		default:
			return 0, false
		}
	}
}

// momentumFullScale is the relative price change mapped to a score of 0 or 1.
// A ±2% move between cycles saturates the momentum signal.
const momentumFullScale = 0.02

// MomentumScorer normalizes the relative price change since the previous
// cycle into [0,1], centered on 0.5 for an unchanged price.
func MomentumScorer(obs domain.Observation) (float64, bool) {
	if obs.Price <= 0 || obs.PrevPrice <= 0 {
		return 0, false
	}
	change := (obs.Price - obs.PrevPrice) / obs.PrevPrice
	return clamp01(0.5 + change/(2*momentumFullScale)), true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
