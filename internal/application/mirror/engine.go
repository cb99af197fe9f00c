// Package mirror implements the copy-trading core: it consumes the target
// wallet's trades from the activity feed and replays them through the CLOB
// with local sizing, keeping a durable ledger of the positions acquired.
package mirror

import (
	"time"

	"github.com/alejandrodnm/polymirror/internal/ports"
)

const (
	dedupTTL       = 30 * time.Minute
	dedupPruneSize = 1024
	redeemSweepCap = 10
)

// redeemSpacing separates on-chain calls within a sweep. Variable so tests
// can shorten it.
var redeemSpacing = 5 * time.Second

// Config holds the runtime knobs for the mirror engine.
type Config struct {
	Enabled            bool
	SizeMultiplier     float64       // scale applied to the observed notional
	MaxOrderAmount     float64       // USDC ceiling per order; 0 = unlimited
	OrderType          string        // FAK | FOK
	TickSize           float64
	NegRisk            bool
	MaxTradeAge        time.Duration // events older than this are skipped; 0 = no limit
	PauseDefer         bool          // true: defer trades during a sweep; false: drop them
	RedemptionInterval time.Duration // 0 disables the redemption scheduler
}

// Engine mirrors the target wallet's trades on Polymarket.
type Engine struct {
	ledger    ports.HoldingsLedger
	history   ports.MirrorHistory
	executor  ports.OrderExecutor
	approvals ports.Approvals
	feed      ports.TradeFeed
	redeemer  ports.Redeemer
	cfg       Config

	session *Session
	stats   *consumerStats
}

// New creates a mirror engine over the given collaborators.
func New(
	ledger ports.HoldingsLedger,
	history ports.MirrorHistory,
	executor ports.OrderExecutor,
	approvals ports.Approvals,
	feed ports.TradeFeed,
	redeemer ports.Redeemer,
	cfg Config,
) *Engine {
	if cfg.SizeMultiplier <= 0 {
		cfg.SizeMultiplier = 1.0
	}
	if cfg.OrderType == "" {
		cfg.OrderType = "FAK"
	}
	if cfg.TickSize <= 0 {
		cfg.TickSize = 0.01
	}

	return &Engine{
		ledger:    ledger,
		history:   history,
		executor:  executor,
		approvals: approvals,
		feed:      feed,
		redeemer:  redeemer,
		cfg:       cfg,
		session:   newSession(),
		stats:     &consumerStats{},
	}
}

// shortID truncates market and token ids for log lines.
func shortID(s string) string {
	if len(s) <= 12 {
		return s
	}
	return s[:12] + "..."
}
