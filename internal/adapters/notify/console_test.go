package notify_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/alejandrodnm/polymirror/internal/adapters/notify"
	"github.com/alejandrodnm/polymirror/internal/domain"
	"github.com/stretchr/testify/assert"
)

func holdingsEntry(market string, qty float64, estimated bool) domain.HoldingsEntry {
	return domain.HoldingsEntry{
		Key:       domain.HoldingKey{MarketID: market, TokenID: "71321045679252212594626385"},
		Quantity:  qty,
		Estimated: estimated,
		UpdatedAt: time.Date(2025, 8, 20, 14, 30, 0, 0, time.UTC),
	}
}

func TestConsole_PrintHoldings(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	c.PrintHoldings([]domain.HoldingsEntry{
		holdingsEntry("0xaaaabbbbccccdddd", 8.06, true),
		holdingsEntry("0xeeeeffff00001111", 25, false),
	})

	out := buf.String()
	assert.Contains(t, out, "TRACKED HOLDINGS (2 positions)")
	assert.Contains(t, out, "0xaaaabbbbcc...")
	assert.Contains(t, out, "8.0600")
	assert.Contains(t, out, "estimated")
	assert.Contains(t, out, "venue")
	assert.Contains(t, out, "Total: 33.0600")
}

func TestConsole_PrintHoldings_Empty(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	c.PrintHoldings(nil)
	assert.Contains(t, buf.String(), "ledger is empty")
}

func TestConsole_PrintHistory(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	records := []domain.MirrorRecord{
		{
			ID:            "local-1",
			MarketID:      "0xaaaabbbbccccdddd",
			TokenID:       "123",
			Side:          domain.SideBuy,
			ObservedPrice: 0.62,
			ObservedSize:  50,
			Amount:        5,
			Status:        domain.StatusMatched,
			OrderID:       "0xorder1order1order1",
			ExecutedQty:   8.06,
			Estimated:     true,
			ExecutedAt:    time.Date(2025, 8, 20, 14, 30, 0, 0, time.UTC),
		},
		{
			ID:            "local-2",
			MarketID:      "0xaaaabbbbccccdddd",
			TokenID:       "123",
			Side:          domain.SideSell,
			ObservedPrice: 0.70,
			Amount:        8.06,
			Status:        domain.StatusRejected,
			Failure:       "insufficient balance or allowance on the venue: " + strings.Repeat("x", 60),
			ExecutedAt:    time.Date(2025, 8, 20, 15, 0, 0, 0, time.UTC),
		},
	}
	redemptions := []domain.RedeemResult{
		{
			Key:        domain.HoldingKey{MarketID: "0xaaaabbbbccccdddd", TokenID: "123"},
			Quantity:   8.06,
			TxHash:     "0xdeadbeefdeadbeef",
			Success:    true,
			ExecutedAt: time.Date(2025, 8, 21, 9, 0, 0, 0, time.UTC),
		},
		{
			Key:        domain.HoldingKey{MarketID: "0x2222333344445555", TokenID: "456"},
			Quantity:   3,
			Error:      "transaction reverted on-chain",
			ExecutedAt: time.Date(2025, 8, 21, 9, 5, 0, 0, time.UTC),
		},
	}

	c.PrintHistory(records, redemptions)

	out := buf.String()
	assert.Contains(t, out, "MIRROR HISTORY (2 attempts)")
	assert.Contains(t, out, "BUY")
	assert.Contains(t, out, "8.0600 (est)")
	assert.Contains(t, out, "0xorder1orde...")
	assert.Contains(t, out, "REJECTED")
	// El detalle de fallo largo se trunca
	assert.Contains(t, out, "...")
	assert.Contains(t, out, "Mirrored: 1 | Failed: 1")

	assert.Contains(t, out, "REDEMPTIONS (2 attempts)")
	assert.Contains(t, out, "OK")
	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "0xdeadbeefde...")
	assert.Contains(t, out, "transaction reverted on-chain")
}

func TestConsole_PrintHistory_Empty(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	c.PrintHistory(nil, nil)
	out := buf.String()
	assert.Contains(t, out, "MIRROR HISTORY (0 attempts)")
	assert.Contains(t, out, "(none)")
}
