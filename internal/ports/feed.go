package ports

import (
	"context"

	"github.com/alejandrodnm/polymirror/internal/domain"
)

// TradeFeed delivers the target wallet's trades as they happen. Event order
// and arrival timing are feed-controlled; reconnects may replay or reorder
// events, so consumers must deduplicate by event id.
type TradeFeed interface {
	// Events returns the bounded channel of observed trades. It is closed
	// when Run returns.
	Events() <-chan domain.ObservedTrade

	// Run maintains the subscription until ctx is cancelled, reconnecting
	// with backoff as needed. Blocks.
	Run(ctx context.Context) error
}
