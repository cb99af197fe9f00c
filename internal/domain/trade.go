package domain

import "time"

// Side of a trade or order, as reported by the activity feed.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderType controls how the CLOB treats partial fills.
type OrderType string

const (
	// OrderTypeFAK fills whatever crosses immediately and cancels the rest.
	OrderTypeFAK OrderType = "FAK"
	// OrderTypeFOK fills the full amount or nothing.
	OrderTypeFOK OrderType = "FOK"
)

// ObservedTrade is an immutable record of a trade made by the target wallet,
// as delivered by the activity feed.
type ObservedTrade struct {
	EventID   string // unique source event id, dedup key
	MarketID  string // condition id
	TokenID   string // outcome token id
	Side      Side
	Price     float64
	Size      float64 // tokens traded by the target
	Wallet    string  // wallet that traded
	Timestamp time.Time
}

// Key returns the holdings key this trade affects.
func (t ObservedTrade) Key() HoldingKey {
	return HoldingKey{MarketID: t.MarketID, TokenID: t.TokenID}
}

// OrderIntent is the bot's own order derived from an ObservedTrade and the
// sizing configuration. Amount is collateral (USDC) for BUY and tokens for
// SELL. Price is the observed price, carried for signing and fill estimation,
// never discovered.
type OrderIntent struct {
	MarketID  string
	TokenID   string
	Side      Side
	Amount    float64
	Price     float64
	OrderType OrderType
	TickSize  float64
	NegRisk   bool
}

// OrderStatus is the lifecycle of a mirrored order.
type OrderStatus string

const (
	StatusBuilt     OrderStatus = "BUILT"
	StatusSimulated OrderStatus = "SIMULATED"
	StatusSubmitted OrderStatus = "SUBMITTED"
	StatusFilled    OrderStatus = "FILLED"
	StatusPartial   OrderStatus = "PARTIALLY_FILLED"
	StatusMatched   OrderStatus = "MATCHED"
	StatusRejected  OrderStatus = "REJECTED"
	StatusErrored   OrderStatus = "ERRORED"
)

// Filled reports whether the status counts as a successful fill.
func (s OrderStatus) Filled() bool {
	return s == StatusFilled || s == StatusPartial || s == StatusMatched
}

// SignedOrder is an order ready for submission. Payload is the venue-specific
// signed body produced by the execution adapter; the pipeline never decodes
// it, only the adapter that created it does.
type SignedOrder struct {
	Intent  OrderIntent
	Payload any
}

// VenueResponse is the venue's answer to a submitted order. MakingAmount and
// TakingAmount are optional: an empty string means the venue did not report
// that amount and the caller must fall back to its documented estimate.
type VenueResponse struct {
	Success      bool
	OrderID      string
	Status       string
	MakingAmount float64 // maker-side units (USDC on BUY, tokens on SELL)
	TakingAmount float64 // taker-side units (tokens on BUY, USDC on SELL)
	HasMaking    bool
	HasTaking    bool
	ErrorMsg     string
}

// ExecutionResult is the terminal outcome of one pipeline run.
type ExecutionResult struct {
	ID            string // local correlation id
	Success       bool
	OrderID       string
	Status        OrderStatus
	ExecutedQty   float64 // tokens bought or sold
	Estimated     bool    // ExecutedQty derived from price, not venue-reported
	FailureReason string
}

// BalanceCheck is the Balance Guard's verdict for a requested BUY amount.
type BalanceCheck struct {
	Valid     bool
	Available float64
	Required  float64
}

// MirrorRecord is the audit row persisted for every execution attempt.
type MirrorRecord struct {
	ID            string
	MarketID      string
	TokenID       string
	Side          Side
	ObservedPrice float64
	ObservedSize  float64
	Amount        float64
	Status        OrderStatus
	OrderID       string
	ExecutedQty   float64
	Estimated     bool
	Failure       string
	ExecutedAt    time.Time
}
