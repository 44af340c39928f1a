// Command report prints a summary of the bot's position history: active
// positions, realized profit and anything waiting on reconciliation.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"cryptoSignalBot/internal/adapters/logger"
	"cryptoSignalBot/internal/adapters/sqlite"
	"cryptoSignalBot/internal/domain"
)

func main() {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./data/trading_bot.db"
	}

	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: dbPath,
		Logger: logger.NewStdLogger(logger.LevelError),
	})
	if err != nil {
		log.Fatalf("Error opening position store: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()

	active, err := repo.FindActive(ctx)
	if err != nil {
		log.Fatalf("Error loading active positions: %v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "ID\tSymbol\tStatus\tQty\tEntry\tOpenedAt\t")
	pending := 0
	for _, pos := range active {
		if pos.Status == domain.StatusPending {
			pending++
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%.4f\t%.2f\t%s\t\n",
			pos.ID, pos.Symbol, pos.Status, pos.Quantity, pos.EntryPrice,
			pos.OpenedAt.UTC().Format("2006-01-02 15:04:05"))
	}
	w.Flush()

	realized, err := repo.GetRealizedPNL(ctx)
	if err != nil {
		log.Fatalf("Error calculating realized PnL: %v", err)
	}

	fmt.Printf("\nActive positions: %d\n", len(active))
	fmt.Printf("Realized PnL: %.2f\n", realized)
	if pending > 0 {
		fmt.Printf("WARNING: %d position(s) pending reconciliation against the exchange\n", pending)
	}
}
