package ports

import (
	"context"

	"github.com/alejandrodnm/polymirror/internal/domain"
)

// HoldingsLedger is the durable record of outcome tokens believed owned.
// It drives SELL sizing and redemption; the execution pipeline is its only
// writer. Every mutation is written durably before the call returns.
type HoldingsLedger interface {
	// Get returns the tracked quantity for a key, 0 if absent.
	Get(ctx context.Context, key domain.HoldingKey) (float64, error)

	// Add increments a key by qty, creating the entry if needed. estimated
	// marks the increment as derived rather than venue-reported.
	Add(ctx context.Context, key domain.HoldingKey, qty float64, estimated bool) error

	// Remove decrements a key by qty, clamping at zero, and returns the
	// quantity actually removed. A request beyond the stored quantity is a
	// ledger inconsistency: logged as a warning, never returned as an error.
	Remove(ctx context.Context, key domain.HoldingKey, qty float64) (float64, error)

	// Entries returns all tracked positions.
	Entries(ctx context.Context) ([]domain.HoldingsEntry, error)

	// Delete removes a key outright (redemption cleanup).
	Delete(ctx context.Context, key domain.HoldingKey) error

	// Clear wipes the ledger.
	Clear(ctx context.Context) error

	// LockKey serializes read-modify-write sequences on one key across the
	// buy, sell, and redemption paths. The returned func releases the lock.
	LockKey(key domain.HoldingKey) (unlock func())
}

// MirrorHistory persists execution and redemption audit rows. Writes are
// best-effort: callers log failures and continue.
type MirrorHistory interface {
	SaveMirrorRecord(ctx context.Context, r domain.MirrorRecord) error
	GetMirrorRecords(ctx context.Context, limit int) ([]domain.MirrorRecord, error)
	SaveRedemption(ctx context.Context, r domain.RedeemResult) error
	GetRedemptions(ctx context.Context, limit int) ([]domain.RedeemResult, error)
}
