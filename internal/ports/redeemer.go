package ports

import (
	"context"

	"github.com/alejandrodnm/polymirror/internal/domain"
)

// Redeemer checks market resolution and converts winning positions back to
// collateral on-chain.
type Redeemer interface {
	// ListResolved filters keys down to those whose market has resolved.
	ListResolved(ctx context.Context, keys []domain.HoldingKey) ([]domain.HoldingKey, error)

	// Redeem redeems one resolved position. The result carries success or a
	// per-entry failure; a failed redemption must not abort the sweep.
	Redeem(ctx context.Context, key domain.HoldingKey, qty float64) (domain.RedeemResult, error)
}
