package signal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cryptoSignalBot/internal/domain"
	"cryptoSignalBot/internal/ports"
)

// MarketSource implements ports.SignalSource by combining the exchange
// ticker with the sentiment service. Price is mandatory; a missing sentiment
// score is tolerated and surfaced as a nil score on the observation.
type MarketSource struct {
	exchange  ports.ExchangeClient
	sentiment ports.SentimentProvider // optional
	logger    ports.Logger

	mu   sync.Mutex
	prev map[string]float64 // last observed price per symbol
}

// Config holds configuration for the market signal source.
type Config struct {
	Exchange  ports.ExchangeClient
	Sentiment ports.SentimentProvider
	Logger    ports.Logger
}

// NewMarketSource creates a new market-backed signal source.
func NewMarketSource(cfg Config) (*MarketSource, error) {
	if cfg.Exchange == nil {
		return nil, fmt.Errorf("exchange client is required for market source")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for market source")
	}
	return &MarketSource{
		exchange:  cfg.Exchange,
		sentiment: cfg.Sentiment,
		logger:    cfg.Logger,
		prev:      make(map[string]float64),
	}, nil
}

// Observe fetches the current price and sentiment for a symbol. The previous
// cycle's price rides along so the evaluator can compute momentum without
// holding market state of its own.
func (s *MarketSource) Observe(ctx context.Context, symbol string) (domain.Observation, error) {
	op := "Observe"

	price, err := s.exchange.GetTickerPrice(ctx, symbol)
	if err != nil {
		return domain.Observation{}, fmt.Errorf("%s %s: %w", op, symbol, err)
	}
	if price <= 0 {
		return domain.Observation{}, fmt.Errorf("%s %s: %w: price %f", op, symbol, ports.ErrNoPriceData, price)
	}

	obs := domain.Observation{
		Symbol:    symbol,
		Timestamp: time.Now().UTC(),
		Price:     price,
		PrevPrice: s.swapPrev(symbol, price),
	}

	if s.sentiment != nil {
		score, err := s.sentiment.GetSentiment(ctx, symbol, obs.Timestamp)
		if err != nil {
			// Sentiment is an enrichment, not a dependency. Log and move on.
			s.logger.Warn(ctx, op+": sentiment unavailable", map[string]interface{}{"symbol": symbol, "error": err.Error()})
		} else {
			obs.Sentiment = score
		}
	}

	s.logger.Debug(ctx, op+": observation ready", map[string]interface{}{
		"symbol": symbol, "price": price, "prevPrice": obs.PrevPrice, "hasSentiment": obs.HasSentiment(),
	})
	return obs, nil
}

// swapPrev records the new price and returns the one seen last cycle.
func (s *MarketSource) swapPrev(symbol string, price float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.prev[symbol]
	s.prev[symbol] = price
	return prev
}
