package storage

// history.go — SQLite persistence for the mirror audit trail.
//
// Tables:
//   mirror_trades — one row per execution attempt, success or not
//   redemptions   — on-chain redemption attempts, success or not

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/alejandrodnm/polymirror/internal/domain"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS mirror_trades (
    id              TEXT PRIMARY KEY,   -- local UUID
    market_id       TEXT NOT NULL,
    token_id        TEXT NOT NULL,
    side            TEXT NOT NULL,      -- BUY / SELL
    observed_price  REAL NOT NULL,
    observed_size   REAL NOT NULL,
    amount          REAL NOT NULL,
    status          TEXT NOT NULL,
    order_id        TEXT NOT NULL DEFAULT '',
    executed_qty    REAL NOT NULL DEFAULT 0,
    estimated       INTEGER NOT NULL DEFAULT 0,
    failure         TEXT,
    executed_at     DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS mirror_trades_market ON mirror_trades(market_id);
CREATE INDEX IF NOT EXISTS mirror_trades_status ON mirror_trades(status);

CREATE TABLE IF NOT EXISTS redemptions (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    market_id       TEXT NOT NULL,
    token_id        TEXT NOT NULL,
    quantity        REAL NOT NULL,
    tx_hash         TEXT NOT NULL DEFAULT '',
    success         INTEGER NOT NULL DEFAULT 0,
    error           TEXT,
    executed_at     DATETIME NOT NULL
);
`

// ─── Mirror trades ───────────────────────────────────────────────────────────

// SaveMirrorRecord inserts one execution attempt.
func (s *SQLiteLedger) SaveMirrorRecord(ctx context.Context, r domain.MirrorRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO mirror_trades
		  (id, market_id, token_id, side, observed_price, observed_size, amount,
		   status, order_id, executed_qty, estimated, failure, executed_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		r.ID, r.MarketID, r.TokenID, string(r.Side), r.ObservedPrice, r.ObservedSize,
		r.Amount, string(r.Status), r.OrderID, r.ExecutedQty, boolToInt(r.Estimated),
		r.Failure, r.ExecutedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveMirrorRecord: %w", err)
	}
	return nil
}

// GetMirrorRecords returns execution attempts, newest first. A limit <= 0
// returns the full history.
func (s *SQLiteLedger) GetMirrorRecords(ctx context.Context, limit int) ([]domain.MirrorRecord, error) {
	if limit <= 0 {
		limit = -1 // SQLite: sin límite
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, market_id, token_id, side, observed_price, observed_size, amount,
		       status, order_id, executed_qty, estimated, failure, executed_at
		FROM mirror_trades ORDER BY executed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.GetMirrorRecords: query: %w", err)
	}
	defer rows.Close()

	var records []domain.MirrorRecord
	for rows.Next() {
		var r domain.MirrorRecord
		var side, status string
		var estimated int
		var failure sql.NullString
		if err := rows.Scan(&r.ID, &r.MarketID, &r.TokenID, &side, &r.ObservedPrice,
			&r.ObservedSize, &r.Amount, &status, &r.OrderID, &r.ExecutedQty,
			&estimated, &failure, &r.ExecutedAt); err != nil {
			return nil, fmt.Errorf("storage.GetMirrorRecords: scan: %w", err)
		}
		r.Side = domain.Side(side)
		r.Status = domain.OrderStatus(status)
		r.Estimated = estimated != 0
		r.Failure = failure.String
		records = append(records, r)
	}
	return records, rows.Err()
}

// ─── Redemptions ─────────────────────────────────────────────────────────────

// SaveRedemption records one redemption attempt.
func (s *SQLiteLedger) SaveRedemption(ctx context.Context, r domain.RedeemResult) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO redemptions
		  (market_id, token_id, quantity, tx_hash, success, error, executed_at)
		VALUES (?,?,?,?,?,?,?)`,
		r.Key.MarketID, r.Key.TokenID, r.Quantity, r.TxHash,
		boolToInt(r.Success), r.Error, r.ExecutedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveRedemption: %w", err)
	}
	return nil
}

// GetRedemptions returns redemption attempts, newest first. A limit <= 0
// returns the full history.
func (s *SQLiteLedger) GetRedemptions(ctx context.Context, limit int) ([]domain.RedeemResult, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT market_id, token_id, quantity, tx_hash, success, error, executed_at
		FROM redemptions ORDER BY executed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.GetRedemptions: query: %w", err)
	}
	defer rows.Close()

	var results []domain.RedeemResult
	for rows.Next() {
		var r domain.RedeemResult
		var success int
		var errStr sql.NullString
		if err := rows.Scan(&r.Key.MarketID, &r.Key.TokenID, &r.Quantity, &r.TxHash,
			&success, &errStr, &r.ExecutedAt); err != nil {
			return nil, fmt.Errorf("storage.GetRedemptions: scan: %w", err)
		}
		r.Success = success != 0
		r.Error = errStr.String
		results = append(results, r)
	}
	return results, rows.Err()
}
