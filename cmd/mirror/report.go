package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/alejandrodnm/polymirror/internal/adapters/notify"
	"github.com/alejandrodnm/polymirror/internal/adapters/storage"
)

// historyLimit acota los reportes de historial a las últimas N filas.
const historyLimit = 50

func runHoldingsReport(ctx context.Context, store *storage.SQLiteLedger, console *notify.Console) {
	entries, err := store.Entries(ctx)
	if err != nil {
		slog.Error("failed to read holdings", "err", err)
		os.Exit(1)
	}
	console.PrintHoldings(entries)
}

func runHistoryReport(ctx context.Context, store *storage.SQLiteLedger, console *notify.Console) {
	records, err := store.GetMirrorRecords(ctx, historyLimit)
	if err != nil {
		slog.Error("failed to read mirror history", "err", err)
		os.Exit(1)
	}
	redemptions, err := store.GetRedemptions(ctx, historyLimit)
	if err != nil {
		slog.Error("failed to read redemption history", "err", err)
		os.Exit(1)
	}
	console.PrintHistory(records, redemptions)
}

func runClearHoldings(ctx context.Context, store *storage.SQLiteLedger) {
	entries, err := store.Entries(ctx)
	if err != nil {
		slog.Error("failed to read holdings", "err", err)
		os.Exit(1)
	}
	if len(entries) == 0 {
		fmt.Println("Holdings ledger is already empty.")
		return
	}

	fmt.Printf("About to delete %d tracked position(s). The venue positions themselves are NOT touched.\n", len(entries))
	fmt.Print("Type 'yes' to confirm: ")

	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	if strings.TrimSpace(line) != "yes" {
		fmt.Println("Aborted.")
		return
	}

	if err := store.Clear(ctx); err != nil {
		slog.Error("failed to clear holdings", "err", err)
		os.Exit(1)
	}
	fmt.Println("Holdings ledger cleared.")
}
