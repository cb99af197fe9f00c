// consumer.go — the trade feed consumer: dedup, staleness, the pause policy,
// and per-key dispatch into the execution pipeline.
package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/polymirror/internal/domain"
	"github.com/google/uuid"
)

// Run consumes the trade feed until ctx is cancelled or the feed closes.
// Duplicates and stale events are filtered here, on a single goroutine;
// everything that survives runs on its own goroutine, serialized per
// (market, token) key by the ledger's key locks.
func (e *Engine) Run(ctx context.Context) error {
	seen := make(map[string]time.Time)
	var workers sync.WaitGroup
	defer func() {
		workers.Wait()
		e.stats.log()
	}()

	slog.Info("mirror: consumer started",
		"enabled", e.cfg.Enabled,
		"multiplier", e.cfg.SizeMultiplier,
		"max_order", e.cfg.MaxOrderAmount,
		"defer_on_pause", e.cfg.PauseDefer,
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case trade, ok := <-e.feed.Events():
			if !ok {
				return fmt.Errorf("mirror.Run: trade feed closed")
			}

			now := time.Now()
			if len(seen) >= dedupPruneSize {
				pruneSeen(seen, now)
			}
			if _, dup := seen[trade.EventID]; dup {
				e.stats.record(skipReasonDuplicate)
				slog.Debug("mirror: duplicate event", "event", trade.EventID)
				continue
			}
			seen[trade.EventID] = now

			if !e.cfg.Enabled {
				e.stats.record(skipReasonDisabled)
				slog.Info("mirror: disabled — trade observed, not mirrored",
					"market", shortID(trade.MarketID),
					"side", trade.Side,
					"price", trade.Price,
					"size", trade.Size,
				)
				continue
			}

			if e.cfg.MaxTradeAge > 0 && now.Sub(trade.Timestamp) > e.cfg.MaxTradeAge {
				e.stats.record(skipReasonStale)
				slog.Warn("mirror: stale trade skipped",
					"event", trade.EventID,
					"age", now.Sub(trade.Timestamp).Round(time.Second),
				)
				continue
			}

			slog.Info("mirror: trade detected",
				"market", shortID(trade.MarketID),
				"token", shortID(trade.TokenID),
				"side", trade.Side,
				"price", trade.Price,
				"size", trade.Size,
			)

			workers.Add(1)
			go func(t domain.ObservedTrade) {
				defer workers.Done()
				e.mirrorOne(ctx, t)
			}(trade)
		}
	}
}

// mirrorOne runs the full per-trade sequence: pause gate, key lock, build,
// balance guard, pipeline.
func (e *Engine) mirrorOne(ctx context.Context, trade domain.ObservedTrade) {
	if !e.session.Enter(ctx, e.cfg.PauseDefer) {
		if ctx.Err() != nil {
			return
		}
		e.stats.record(skipReasonPaused)
		slog.Info("mirror: trade dropped during redemption pause",
			"event", trade.EventID, "side", trade.Side)
		return
	}
	defer e.session.Exit()

	unlock := e.ledger.LockKey(trade.Key())
	defer unlock()

	intent, reason, err := e.buildIntent(ctx, trade)
	if err != nil {
		slog.Warn("mirror: could not build order", "event", trade.EventID, "err", err)
		return
	}
	if intent == nil {
		e.stats.record(reason)
		switch reason {
		case skipReasonUntracked:
			slog.Info("mirror: sell for untracked position — skipping",
				"market", shortID(trade.MarketID), "token", shortID(trade.TokenID))
		case skipReasonZeroAmount:
			slog.Info("mirror: buy sized to zero — skipping",
				"market", shortID(trade.MarketID), "size", trade.Size, "price", trade.Price)
		}
		return
	}

	if intent.Side == domain.SideBuy {
		check, err := e.checkBuyBalance(ctx, intent.Amount)
		if err != nil {
			slog.Warn("mirror: balance check failed — skipping trade",
				"event", trade.EventID, "err", err)
			return
		}
		if check.Available <= 0 {
			e.stats.outcome(false)
			res := domain.ExecutionResult{
				ID:            uuid.New().String(),
				Status:        domain.StatusRejected,
				FailureReason: fmt.Sprintf("no collateral available on venue (balance $%.2f)", check.Available),
			}
			slog.Error("mirror: buy aborted — no available balance",
				"market", shortID(trade.MarketID),
				"required", fmt.Sprintf("$%.2f", check.Required),
			)
			e.saveRecord(ctx, res, *intent, trade)
			return
		}
		if !check.Valid {
			slog.Warn("mirror: shrinking buy to available balance",
				"requested", fmt.Sprintf("$%.2f", intent.Amount),
				"available", fmt.Sprintf("$%.2f", check.Available),
			)
			intent.Amount = check.Available
		}
	}

	res := e.execute(ctx, *intent, trade)
	e.stats.outcome(res.Success)

	if res.Success {
		slog.Info("mirror: trade mirrored",
			"market", shortID(trade.MarketID),
			"side", intent.Side,
			"amount", fmt.Sprintf("%.4f", intent.Amount),
			"executed_qty", fmt.Sprintf("%.4f", res.ExecutedQty),
			"estimated", res.Estimated,
			"order_id", res.OrderID,
			"status", res.Status,
		)
	} else {
		slog.Warn("mirror: trade not mirrored",
			"market", shortID(trade.MarketID),
			"side", intent.Side,
			"status", res.Status,
			"reason", res.FailureReason,
		)
	}
}

// pruneSeen drops dedup entries older than the TTL so the map stays bounded.
func pruneSeen(seen map[string]time.Time, now time.Time) {
	for id, at := range seen {
		if now.Sub(at) > dedupTTL {
			delete(seen, id)
		}
	}
}

type skipReason int

const (
	skipReasonDuplicate skipReason = iota
	skipReasonStale
	skipReasonDisabled
	skipReasonPaused
	skipReasonUntracked
	skipReasonZeroAmount
)

// consumerStats counts the funnel. Workers record concurrently, so the
// counters sit behind a mutex.
type consumerStats struct {
	mu         sync.Mutex
	duplicates int
	stale      int
	disabled   int
	paused     int
	untracked  int
	zeroAmount int
	mirrored   int
	failed     int
}

func (s *consumerStats) record(r skipReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch r {
	case skipReasonDuplicate:
		s.duplicates++
	case skipReasonStale:
		s.stale++
	case skipReasonDisabled:
		s.disabled++
	case skipReasonPaused:
		s.paused++
	case skipReasonUntracked:
		s.untracked++
	case skipReasonZeroAmount:
		s.zeroAmount++
	}
}

func (s *consumerStats) outcome(success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if success {
		s.mirrored++
	} else {
		s.failed++
	}
}

func (s *consumerStats) log() {
	s.mu.Lock()
	defer s.mu.Unlock()
	slog.Info("mirror: consumer stopped",
		"mirrored", s.mirrored,
		"failed", s.failed,
		"skip_duplicate", s.duplicates,
		"skip_stale", s.stale,
		"skip_disabled", s.disabled,
		"skip_paused", s.paused,
		"skip_untracked", s.untracked,
		"skip_zero", s.zeroAmount,
	)
}
