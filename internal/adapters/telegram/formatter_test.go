package telegram

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"cryptoSignalBot/internal/domain"
)

func TestFormatEvent(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)

	t.Run("buy execution", func(t *testing.T) {
		msg := FormatEvent(domain.Event{
			Kind: domain.EventTradeExecuted, Symbol: "BTCUSDT", Side: domain.Buy,
			Quantity: 0.5, Price: 50000, Time: at,
		})
		assert.Contains(t, msg, "✅ BUY BTCUSDT")
		assert.Contains(t, msg, "0.5000 @ 50000.0000")
		assert.Contains(t, msg, "2025-06-01 12:30:00 UTC")
		assert.NotContains(t, msg, "PnL", "entries have no realized PnL")
	})

	t.Run("sell execution includes signed pnl", func(t *testing.T) {
		msg := FormatEvent(domain.Event{
			Kind: domain.EventTradeExecuted, Symbol: "BTCUSDT", Side: domain.Sell,
			Quantity: 0.5, Price: 51000, PNL: 500, Time: at,
		})
		assert.Contains(t, msg, "✅ SELL BTCUSDT")
		assert.Contains(t, msg, "PnL: +500.00")

		msg = FormatEvent(domain.Event{
			Kind: domain.EventTradeExecuted, Symbol: "BTCUSDT", Side: domain.Sell,
			Quantity: 0.5, Price: 49000, PNL: -500, Time: at,
		})
		assert.Contains(t, msg, "PnL: -500.00")
	})

	t.Run("trade failure", func(t *testing.T) {
		msg := FormatEvent(domain.Event{
			Kind: domain.EventTradeFailed, Symbol: "ETHUSDT", Side: domain.Buy,
			Err: errors.New("retry attempts exhausted"), Time: at,
		})
		assert.Contains(t, msg, "❌ BUY ETHUSDT failed")
		assert.Contains(t, msg, "retry attempts exhausted")
	})

	t.Run("circuit tripped", func(t *testing.T) {
		msg := FormatEvent(domain.Event{Kind: domain.EventCircuitTripped, Time: at})
		assert.Contains(t, msg, "⛔")
		assert.Contains(t, msg, "circuit breaker")
	})

	t.Run("risk rejection", func(t *testing.T) {
		msg := FormatEvent(domain.Event{
			Kind: domain.EventRiskRejected, Symbol: "ETHUSDT", Side: domain.Buy,
			Reason: domain.ReasonPositionLimit, Time: at,
		})
		assert.Contains(t, msg, "🚧 BUY ETHUSDT rejected")
		assert.Contains(t, msg, "POSITION_LIMIT")
	})
}
