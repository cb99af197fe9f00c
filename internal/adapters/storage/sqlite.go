package storage

// sqlite.go — ledger de holdings sobre SQLite (pure Go, sin CGo).
//
// Estrategia:
//   - `holdings`: UNA fila por (market, token), UPSERT atómico por key.
//   - Escrituras síncronas: cada mutación queda en disco antes de retornar.
//     La única ventana de pérdida es entre el fill y la escritura.
//   - Registro de mutex por key: los paths de compra/venta/redención
//     serializan sus read-modify-write sobre la misma key.

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/polymirror/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
-- Posiciones trackeadas localmente: tokens que el bot cree poseer
CREATE TABLE IF NOT EXISTS holdings (
    market_id  TEXT NOT NULL,
    token_id   TEXT NOT NULL,
    quantity   REAL NOT NULL DEFAULT 0,
    estimated  INTEGER NOT NULL DEFAULT 0,
    updated_at DATETIME NOT NULL,
    PRIMARY KEY (market_id, token_id)
);

CREATE INDEX IF NOT EXISTS idx_holdings_market ON holdings(market_id);
`

// SQLiteLedger implementa ports.HoldingsLedger usando SQLite.
type SQLiteLedger struct {
	db *sql.DB

	mu    sync.Mutex
	locks map[domain.HoldingKey]*sync.Mutex
}

// NewSQLiteLedger abre (o crea) la base de datos en la ruta dada y aplica
// el schema. Un solo proceso es dueño del ledger; la conexión única evita
// writers concurrentes a nivel de driver.
func NewSQLiteLedger(path string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteLedger: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteLedger: apply schema: %w", err)
	}
	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteLedger: apply history schema: %w", err)
	}

	return &SQLiteLedger{
		db:    db,
		locks: make(map[domain.HoldingKey]*sync.Mutex),
	}, nil
}

// Close cierra la base de datos.
func (s *SQLiteLedger) Close() error {
	return s.db.Close()
}

// LockKey devuelve el unlock del mutex asociado a la key. Los mutex se crean
// bajo demanda y viven lo que el proceso.
func (s *SQLiteLedger) LockKey(key domain.HoldingKey) func() {
	s.mu.Lock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// Get devuelve la cantidad trackeada para la key, 0 si no existe.
func (s *SQLiteLedger) Get(ctx context.Context, key domain.HoldingKey) (float64, error) {
	var qty float64
	err := s.db.QueryRowContext(ctx,
		`SELECT quantity FROM holdings WHERE market_id=? AND token_id=?`,
		key.MarketID, key.TokenID).Scan(&qty)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("storage.Get: %w", err)
	}
	return qty, nil
}

// Add incrementa la key en qty, creando la entrada si no existe. El flag
// estimated es pegajoso: una vez estimada, la entrada queda marcada.
func (s *SQLiteLedger) Add(ctx context.Context, key domain.HoldingKey, qty float64, estimated bool) error {
	if qty <= 0 {
		return fmt.Errorf("storage.Add: non-positive quantity %.6f for %s", qty, key)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO holdings (market_id, token_id, quantity, estimated, updated_at)
		VALUES (?,?,?,?,?)
		ON CONFLICT(market_id, token_id) DO UPDATE SET
		  quantity   = quantity + excluded.quantity,
		  estimated  = MAX(estimated, excluded.estimated),
		  updated_at = excluded.updated_at`,
		key.MarketID, key.TokenID, qty, boolToInt(estimated), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("storage.Add: upsert %s: %w", key, err)
	}
	return nil
}

// Remove decrementa la key en qty con clamp a 0 y devuelve la cantidad
// realmente removida. Pedir más de lo trackeado es una inconsistencia del
// ledger: se loggea como warning, nunca tira el proceso.
func (s *SQLiteLedger) Remove(ctx context.Context, key domain.HoldingKey, qty float64) (float64, error) {
	if qty <= 0 {
		return 0, fmt.Errorf("storage.Remove: non-positive quantity %.6f for %s", qty, key)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("storage.Remove: begin: %w", err)
	}
	defer tx.Rollback()

	var current float64
	err = tx.QueryRowContext(ctx,
		`SELECT quantity FROM holdings WHERE market_id=? AND token_id=?`,
		key.MarketID, key.TokenID).Scan(&current)
	if err == sql.ErrNoRows {
		slog.Warn("ledger: removal requested for untracked key",
			"key", key.String(), "requested", qty)
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("storage.Remove: read %s: %w", key, err)
	}

	removed := qty
	if qty > current {
		slog.Warn("ledger: removal exceeds tracked quantity — clamping",
			"key", key.String(), "requested", qty, "tracked", current)
		removed = current
	}

	remaining := current - removed
	if remaining <= 0 {
		_, err = tx.ExecContext(ctx,
			`DELETE FROM holdings WHERE market_id=? AND token_id=?`,
			key.MarketID, key.TokenID)
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE holdings SET quantity=?, updated_at=? WHERE market_id=? AND token_id=?`,
			remaining, time.Now().UTC(), key.MarketID, key.TokenID)
	}
	if err != nil {
		return 0, fmt.Errorf("storage.Remove: write %s: %w", key, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("storage.Remove: commit: %w", err)
	}
	return removed, nil
}

// Entries devuelve todas las posiciones trackeadas.
func (s *SQLiteLedger) Entries(ctx context.Context) ([]domain.HoldingsEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT market_id, token_id, quantity, estimated, updated_at
		FROM holdings ORDER BY market_id, token_id`)
	if err != nil {
		return nil, fmt.Errorf("storage.Entries: query: %w", err)
	}
	defer rows.Close()

	var entries []domain.HoldingsEntry
	for rows.Next() {
		var e domain.HoldingsEntry
		var estimated int
		if err := rows.Scan(&e.Key.MarketID, &e.Key.TokenID, &e.Quantity, &estimated, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("storage.Entries: scan: %w", err)
		}
		e.Estimated = estimated != 0
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete elimina la key del ledger (cleanup post-redención).
func (s *SQLiteLedger) Delete(ctx context.Context, key domain.HoldingKey) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM holdings WHERE market_id=? AND token_id=?`,
		key.MarketID, key.TokenID)
	if err != nil {
		return fmt.Errorf("storage.Delete: %s: %w", key, err)
	}
	return nil
}

// Clear vacía el ledger por completo.
func (s *SQLiteLedger) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM holdings`); err != nil {
		return fmt.Errorf("storage.Clear: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
