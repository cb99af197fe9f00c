package notify

import (
	"fmt"
	"io"
	"os"

	"github.com/alejandrodnm/polymirror/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console imprime los reportes de operador: holdings trackeados e historial
// de ejecuciones y redenciones.
type Console struct {
	out io.Writer
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// PrintHoldings imprime la tabla de posiciones trackeadas.
func (c *Console) PrintHoldings(entries []domain.HoldingsEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(c.out, "\n  No tracked holdings. The ledger is empty.")
		return
	}

	fmt.Fprintf(c.out, "\n── TRACKED HOLDINGS (%d positions) ──\n", len(entries))

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Market", "Token", "Quantity", "Source", "Updated")

	var total float64
	for i, e := range entries {
		total += e.Quantity
		table.Append(
			fmt.Sprintf("%d", i+1),
			idLabel(e.Key.MarketID),
			idLabel(e.Key.TokenID),
			fmt.Sprintf("%.4f", e.Quantity),
			sourceLabel(e.Estimated),
			e.UpdatedAt.Format("2006-01-02 15:04"),
		)
	}
	table.Render()

	fmt.Fprintf(c.out, "  Total: %.4f outcome tokens across %d positions\n", total, len(entries))
	fmt.Fprintln(c.out, "  Source: venue = fill reported by the CLOB | estimated = derived from observed price")
}

// PrintHistory imprime el historial de ejecuciones y redenciones, más
// recientes primero.
func (c *Console) PrintHistory(records []domain.MirrorRecord, redemptions []domain.RedeemResult) {
	fmt.Fprintf(c.out, "\n── MIRROR HISTORY (%d attempts) ──\n", len(records))
	if len(records) == 0 {
		fmt.Fprintln(c.out, "  (none)")
	} else {
		table := tablewriter.NewWriter(c.out)
		table.Header("Time", "Side", "Market", "Obs Px", "Amount", "Status", "Executed", "Detail")

		var mirrored, failed int
		for _, r := range records {
			if r.Status.Filled() {
				mirrored++
			} else {
				failed++
			}
			table.Append(
				r.ExecutedAt.Format("01-02 15:04"),
				string(r.Side),
				idLabel(r.MarketID),
				fmt.Sprintf("%.3f", r.ObservedPrice),
				fmt.Sprintf("%.4f", r.Amount),
				string(r.Status),
				executedLabel(r),
				detailLabel(r),
			)
		}
		table.Render()
		fmt.Fprintf(c.out, "  Mirrored: %d | Failed: %d\n", mirrored, failed)
		fmt.Fprintln(c.out, "  Amount = USDC on BUY, tokens on SELL | Executed = outcome tokens bought/sold")
	}

	fmt.Fprintf(c.out, "\n── REDEMPTIONS (%d attempts) ──\n", len(redemptions))
	if len(redemptions) == 0 {
		fmt.Fprintln(c.out, "  (none)")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Time", "Market", "Quantity", "Result", "Tx / Error")

	for _, r := range redemptions {
		table.Append(
			r.ExecutedAt.Format("01-02 15:04"),
			idLabel(r.Key.MarketID),
			fmt.Sprintf("%.4f", r.Quantity),
			redeemResultLabel(r),
			redeemDetailLabel(r),
		)
	}
	table.Render()
	fmt.Fprintln(c.out)
}

// --- helpers ---

func idLabel(id string) string {
	if len(id) > 14 {
		return id[:12] + "..."
	}
	return id
}

func sourceLabel(estimated bool) string {
	if estimated {
		return "estimated"
	}
	return "venue"
}

func executedLabel(r domain.MirrorRecord) string {
	if r.ExecutedQty <= 0 {
		return "-"
	}
	label := fmt.Sprintf("%.4f", r.ExecutedQty)
	if r.Estimated {
		label += " (est)"
	}
	return label
}

func detailLabel(r domain.MirrorRecord) string {
	if r.Status.Filled() {
		return idLabel(r.OrderID)
	}
	return truncate(r.Failure, 40)
}

func redeemResultLabel(r domain.RedeemResult) string {
	if r.Success {
		return "OK"
	}
	return "FAILED"
}

func redeemDetailLabel(r domain.RedeemResult) string {
	if r.Success {
		return idLabel(r.TxHash)
	}
	return truncate(r.Error, 40)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
