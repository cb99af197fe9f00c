package ports

import (
	"context"

	"github.com/alejandrodnm/polymirror/internal/domain"
)

// OrderExecutor signs and submits orders on the CLOB and answers balance
// queries. All methods are fallible remote calls.
type OrderExecutor interface {
	// CreateOrder builds and signs an order for the given intent.
	CreateOrder(ctx context.Context, intent domain.OrderIntent) (domain.SignedOrder, error)

	// Submit posts a signed order with the intent's order type and returns
	// the venue's verdict. An ordinary venue rejection is reported inside
	// VenueResponse; errors are reserved for transport and auth failures.
	Submit(ctx context.Context, order domain.SignedOrder) (domain.VenueResponse, error)

	// GetBalance returns the available collateral on the venue, net of
	// open-order reservations.
	GetBalance(ctx context.Context) (float64, error)

	// UpdateBalanceAllowance refreshes the venue's cached view of the
	// wallet's balance and allowances.
	UpdateBalanceAllowance(ctx context.Context) error

	// Simulate is the one-time signing/connectivity dry run. Best effort:
	// the caller logs a failure and proceeds to submit anyway.
	Simulate(ctx context.Context, intent domain.OrderIntent) error
}

// Approvals makes outcome tokens and collateral transferable by the exchange
// contracts. Idempotent; safe to call after every BUY.
type Approvals interface {
	EnsureApproved(ctx context.Context) error
}
