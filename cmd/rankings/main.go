package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/annealtrade/regimebot/internal/domain"
	"github.com/annealtrade/regimebot/internal/infrastructure/storage"
)

// Prints the current policy rankings per regime and the recent regime
// history from an existing ledger database.
func main() {
	dbPath := "regimebot.db"
	if len(os.Args) > 1 {
		dbPath = os.Args[1]
	}

	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		fmt.Printf("Failed to open %s: %v\n", dbPath, err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

	for _, r := range domain.TradableRegimes() {
		top, err := store.TopPerformance(ctx, r, 10, 1)
		if err != nil {
			fmt.Printf("Query failed for %s: %v\n", r, err)
			os.Exit(1)
		}
		if len(top) == 0 {
			continue
		}

		fmt.Printf("\n=== %s ===\n", r)
		fmt.Fprintln(w, "POLICY\tSCORE\tTRADES\tWIN RATE\tTOTAL PNL\tPROFIT FACTOR\tMAX DD")
		for _, p := range top {
			fmt.Fprintf(w, "%s\t%.1f\t%d\t%.0f%%\t%.2f\t%.2f\t%.2f\n",
				p.Policy, p.Score, p.TradeCount, p.WinRate*100, p.TotalPnL, p.ProfitFactor, p.MaxDrawdown)
		}
		w.Flush()
	}

	obs, err := store.RecentRegimeObservations(ctx, 20)
	if err != nil {
		fmt.Printf("Regime history query failed: %v\n", err)
		os.Exit(1)
	}
	if len(obs) > 0 {
		fmt.Println("\n=== Recent regime observations ===")
		fmt.Fprintln(w, "TIME\tSYMBOL\tREGIME\tCONFIDENCE\tADX\tVOL RANK")
		for _, o := range obs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%.0f\t%.1f\t%.0f\n",
				o.ObservedAt.Format("2006-01-02 15:04"), o.Symbol, o.Regime, o.Confidence, o.ADX, o.VolatilityRank)
		}
		w.Flush()
	}
}
