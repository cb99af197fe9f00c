// pipeline.go — the order state machine: sign, simulate once, submit, and
// settle the ledger from the venue's response.
package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alejandrodnm/polymirror/internal/domain"
	"github.com/google/uuid"
)

// execute drives one intent through BUILT → SIMULATED (first order of the
// process only) → SUBMITTED → terminal. Venue rejections come back as a
// structured failure, never as an error; the caller already holds the key
// lock, so ledger writes here are serialized per position.
func (e *Engine) execute(ctx context.Context, intent domain.OrderIntent, trade domain.ObservedTrade) domain.ExecutionResult {
	res := domain.ExecutionResult{ID: uuid.New().String(), Status: domain.StatusBuilt}

	// 1. One-time dry run. Failure is logged and never blocks the real order.
	if e.session.ClaimSimulation() {
		if err := e.executor.Simulate(ctx, intent); err != nil {
			slog.Warn("mirror: simulation failed — submitting anyway", "err", err)
		} else {
			slog.Info("mirror: simulation passed", "market", shortID(intent.MarketID), "side", intent.Side)
		}
		res.Status = domain.StatusSimulated
	}

	// 2. Sign.
	signed, err := e.executor.CreateOrder(ctx, intent)
	if err != nil {
		res.Status = domain.StatusErrored
		res.FailureReason = fmt.Sprintf("sign order: %v", err)
		e.saveRecord(ctx, res, intent, trade)
		return res
	}

	// 3. Submit.
	vr, err := e.executor.Submit(ctx, signed)
	if err != nil {
		res.Status = domain.StatusErrored
		res.FailureReason = fmt.Sprintf("submit order: %v", err)
		e.saveRecord(ctx, res, intent, trade)
		return res
	}
	res.Status = domain.StatusSubmitted

	// 4. Terminal classification: success needs a venue order id AND a
	// status from the fill set. Everything else is a rejection.
	venueStatus := domain.OrderStatus(vr.Status)
	if vr.OrderID != "" && venueStatus.Filled() {
		res.Success = true
		res.OrderID = vr.OrderID
		res.Status = venueStatus
		e.settleFill(ctx, intent, vr, &res)
	} else {
		kind, cause := classifyRejection(vr)
		res.Status = domain.StatusRejected
		res.OrderID = vr.OrderID
		res.FailureReason = cause
		slog.Warn("mirror: order rejected",
			"market", shortID(intent.MarketID),
			"side", intent.Side,
			"venue_status", vr.Status,
			"cause", cause,
		)
		if kind == rejectBalance {
			e.reapprove(ctx)
		}
	}

	e.saveRecord(ctx, res, intent, trade)
	return res
}

// settleFill applies a successful fill to the holdings ledger.
func (e *Engine) settleFill(ctx context.Context, intent domain.OrderIntent, vr domain.VenueResponse, res *domain.ExecutionResult) {
	key := domain.HoldingKey{MarketID: intent.MarketID, TokenID: intent.TokenID}

	switch intent.Side {
	case domain.SideBuy:
		tokens := vr.TakingAmount
		if !vr.HasTaking {
			// Venue omitted the fill size: estimate from the observed price
			// and mark the entry so reports show it is not venue-reported.
			tokens = intent.Amount / intent.Price
			res.Estimated = true
		}
		if tokens <= 0 {
			slog.Warn("mirror: buy fill with non-positive quantity — ledger untouched",
				"order_id", res.OrderID, "tokens", tokens)
			return
		}
		if err := e.ledger.Add(ctx, key, tokens, res.Estimated); err != nil {
			slog.Error("mirror: ledger add failed after buy fill",
				"key", key.String(), "tokens", tokens, "err", err)
		}
		res.ExecutedQty = tokens

		// Best effort: make the new tokens transferable for a later sell.
		if err := e.approvals.EnsureApproved(ctx); err != nil {
			slog.Warn("mirror: post-buy approval check failed", "err", err)
		}

	case domain.SideSell:
		tokens := vr.MakingAmount
		if !vr.HasMaking {
			tokens = intent.Amount
		}
		if tokens <= 0 {
			slog.Warn("mirror: sell fill with non-positive quantity — ledger untouched",
				"order_id", res.OrderID, "tokens", tokens)
			return
		}
		if _, err := e.ledger.Remove(ctx, key, tokens); err != nil {
			slog.Error("mirror: ledger remove failed after sell fill",
				"key", key.String(), "tokens", tokens, "err", err)
		}
		res.ExecutedQty = tokens
	}
}

// reapprove refreshes on-chain approvals and the venue's balance cache after
// a balance/allowance rejection. One shot; the order itself is not retried.
func (e *Engine) reapprove(ctx context.Context) {
	slog.Info("mirror: balance rejection — refreshing approvals and venue cache")
	if err := e.approvals.EnsureApproved(ctx); err != nil {
		slog.Warn("mirror: re-approval failed", "err", err)
	}
	if err := e.executor.UpdateBalanceAllowance(ctx); err != nil {
		slog.Warn("mirror: balance-allowance refresh failed", "err", err)
	}
}

// saveRecord persists the audit row for an execution attempt. Best effort.
func (e *Engine) saveRecord(ctx context.Context, res domain.ExecutionResult, intent domain.OrderIntent, trade domain.ObservedTrade) {
	rec := domain.MirrorRecord{
		ID:            res.ID,
		MarketID:      intent.MarketID,
		TokenID:       intent.TokenID,
		Side:          intent.Side,
		ObservedPrice: trade.Price,
		ObservedSize:  trade.Size,
		Amount:        intent.Amount,
		Status:        res.Status,
		OrderID:       res.OrderID,
		ExecutedQty:   res.ExecutedQty,
		Estimated:     res.Estimated,
		Failure:       res.FailureReason,
		ExecutedAt:    time.Now().UTC(),
	}
	if err := e.history.SaveMirrorRecord(ctx, rec); err != nil {
		slog.Warn("mirror: could not persist mirror record", "id", res.ID, "err", err)
	}
}

type rejectionKind int

const (
	rejectGeneric rejectionKind = iota
	rejectBalance
	rejectAuth
	rejectRegion
	rejectRateLimit
)

// classifyRejection maps the venue's error text to a human-readable cause.
func classifyRejection(vr domain.VenueResponse) (rejectionKind, string) {
	msg := strings.ToLower(vr.ErrorMsg)
	switch {
	case msg == "":
		if vr.OrderID == "" {
			return rejectGeneric, fmt.Sprintf("venue returned no order id (status %q)", vr.Status)
		}
		return rejectGeneric, fmt.Sprintf("order not filled (status %q)", vr.Status)
	case strings.Contains(msg, "balance") || strings.Contains(msg, "allowance"):
		return rejectBalance, "insufficient balance or allowance on the venue: " + vr.ErrorMsg
	case strings.Contains(msg, "unauthorized") || strings.Contains(msg, "api key") || strings.Contains(msg, "invalid signature"):
		return rejectAuth, "venue rejected credentials: " + vr.ErrorMsg
	case strings.Contains(msg, "region") || strings.Contains(msg, "blocked") || strings.Contains(msg, "restricted"):
		return rejectRegion, "trading blocked for this region: " + vr.ErrorMsg
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many"):
		return rejectRateLimit, "venue rate limit hit: " + vr.ErrorMsg
	default:
		return rejectGeneric, "venue rejected order: " + vr.ErrorMsg
	}
}
