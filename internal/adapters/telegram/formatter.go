package telegram

import (
	"fmt"
	"strings"

	"cryptoSignalBot/internal/domain"
)

// FormatEvent renders an event as the human-readable message sent to the
// operator chat.
func FormatEvent(ev domain.Event) string {
	var sb strings.Builder

	switch ev.Kind {
	case domain.EventTradeExecuted:
		if ev.Side == domain.Sell {
			sb.WriteString(fmt.Sprintf("✅ SELL %s\n", ev.Symbol))
			sb.WriteString(fmt.Sprintf("Qty: %s @ %s\n", formatFloat(ev.Quantity), formatFloat(ev.Price)))
			sb.WriteString(fmt.Sprintf("PnL: %s", formatPNL(ev.PNL)))
		} else {
			sb.WriteString(fmt.Sprintf("✅ BUY %s\n", ev.Symbol))
			sb.WriteString(fmt.Sprintf("Qty: %s @ %s", formatFloat(ev.Quantity), formatFloat(ev.Price)))
		}

	case domain.EventTradeFailed:
		sb.WriteString(fmt.Sprintf("❌ %s %s failed\n", ev.Side, ev.Symbol))
		if ev.Err != nil {
			sb.WriteString(fmt.Sprintf("Reason: %v", ev.Err))
		}

	case domain.EventCircuitTripped:
		sb.WriteString("⛔ Execution circuit breaker tripped\n")
		sb.WriteString("Orders fail fast until the exchange recovers.")

	case domain.EventRiskRejected:
		sb.WriteString(fmt.Sprintf("🚧 %s %s rejected: %s", ev.Side, ev.Symbol, ev.Reason))

	default:
		sb.WriteString(fmt.Sprintf("%s %s", ev.Kind, ev.Symbol))
	}

	if !ev.Time.IsZero() {
		sb.WriteString(fmt.Sprintf("\n%s", ev.Time.UTC().Format("2006-01-02 15:04:05 UTC")))
	}
	return sb.String()
}

func formatFloat(v float64) string {
	return fmt.Sprintf("%.4f", v)
}

func formatPNL(pnl float64) string {
	if pnl >= 0 {
		return fmt.Sprintf("+%.2f", pnl)
	}
	return fmt.Sprintf("%.2f", pnl)
}
