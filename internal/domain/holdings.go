package domain

import "time"

// HoldingKey identifies a position: one outcome token in one market.
type HoldingKey struct {
	MarketID string
	TokenID  string
}

func (k HoldingKey) String() string {
	return k.MarketID + "/" + k.TokenID
}

// HoldingsEntry is a locally tracked position. Quantity is the number of
// outcome tokens believed owned and is never negative. Estimated marks
// entries that include at least one fill whose quantity was derived from
// price instead of reported by the venue.
type HoldingsEntry struct {
	Key       HoldingKey
	Quantity  float64
	Estimated bool
	UpdatedAt time.Time
}

// RedeemResult is the outcome of one on-chain redemption attempt.
type RedeemResult struct {
	Key        HoldingKey
	Quantity   float64
	TxHash     string
	Success    bool
	Error      string
	ExecutedAt time.Time
}
