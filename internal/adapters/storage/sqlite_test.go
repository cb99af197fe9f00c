package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alejandrodnm/polymirror/internal/adapters/storage"
	"github.com/alejandrodnm/polymirror/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(market, token string) domain.HoldingKey {
	return domain.HoldingKey{MarketID: market, TokenID: token}
}

func TestSQLiteLedger_AddAccumulates(t *testing.T) {
	db, err := storage.NewSQLiteLedger(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	key := testKey("0xaaa", "123")

	require.NoError(t, db.Add(ctx, key, 10, false))
	require.NoError(t, db.Add(ctx, key, 2.5, false))

	qty, err := db.Get(ctx, key)
	require.NoError(t, err)
	assert.InDelta(t, 12.5, qty, 0.0001)
}

func TestSQLiteLedger_GetUntracked(t *testing.T) {
	db, err := storage.NewSQLiteLedger(":memory:")
	require.NoError(t, err)
	defer db.Close()

	qty, err := db.Get(context.Background(), testKey("0xaaa", "123"))
	require.NoError(t, err)
	assert.Zero(t, qty)
}

func TestSQLiteLedger_RemovePartial(t *testing.T) {
	db, err := storage.NewSQLiteLedger(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	key := testKey("0xaaa", "123")
	require.NoError(t, db.Add(ctx, key, 10, false))

	removed, err := db.Remove(ctx, key, 4)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, removed, 0.0001)

	qty, err := db.Get(ctx, key)
	require.NoError(t, err)
	assert.InDelta(t, 6.0, qty, 0.0001)
}

func TestSQLiteLedger_RemoveClampsAtZero(t *testing.T) {
	db, err := storage.NewSQLiteLedger(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	key := testKey("0xaaa", "123")
	require.NoError(t, db.Add(ctx, key, 5, false))

	// Pedir más de lo trackeado: clamp, nunca negativo
	removed, err := db.Remove(ctx, key, 8)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, removed, 0.0001)

	qty, err := db.Get(ctx, key)
	require.NoError(t, err)
	assert.Zero(t, qty)

	entries, err := db.Entries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSQLiteLedger_RemoveUntracked(t *testing.T) {
	db, err := storage.NewSQLiteLedger(":memory:")
	require.NoError(t, err)
	defer db.Close()

	removed, err := db.Remove(context.Background(), testKey("0xaaa", "123"), 3)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestSQLiteLedger_EstimatedIsSticky(t *testing.T) {
	db, err := storage.NewSQLiteLedger(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	key := testKey("0xaaa", "123")

	require.NoError(t, db.Add(ctx, key, 5, false))
	require.NoError(t, db.Add(ctx, key, 3, true))
	require.NoError(t, db.Add(ctx, key, 2, false))

	entries, err := db.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Estimated)
	assert.InDelta(t, 10.0, entries[0].Quantity, 0.0001)
}

func TestSQLiteLedger_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()
	key := testKey("0xaaa", "123")

	db, err := storage.NewSQLiteLedger(path)
	require.NoError(t, err)
	require.NoError(t, db.Add(ctx, key, 7.5, true))
	require.NoError(t, db.Close())

	// Reabrir: la posición tiene que seguir ahí
	db2, err := storage.NewSQLiteLedger(path)
	require.NoError(t, err)
	defer db2.Close()

	qty, err := db2.Get(ctx, key)
	require.NoError(t, err)
	assert.InDelta(t, 7.5, qty, 0.0001)

	entries, err := db2.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Estimated)
}

func TestSQLiteLedger_DeleteAndClear(t *testing.T) {
	db, err := storage.NewSQLiteLedger(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.Add(ctx, testKey("0xaaa", "1"), 1, false))
	require.NoError(t, db.Add(ctx, testKey("0xbbb", "2"), 2, false))

	require.NoError(t, db.Delete(ctx, testKey("0xaaa", "1")))
	entries, err := db.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "0xbbb", entries[0].Key.MarketID)

	require.NoError(t, db.Clear(ctx))
	entries, err = db.Entries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSQLiteLedger_LockKeySerializes(t *testing.T) {
	db, err := storage.NewSQLiteLedger(":memory:")
	require.NoError(t, err)
	defer db.Close()

	key := testKey("0xaaa", "123")
	unlock := db.LockKey(key)

	// Una key distinta no bloquea
	unlockOther := db.LockKey(testKey("0xbbb", "456"))
	unlockOther()

	acquired := make(chan struct{})
	go func() {
		u := db.LockKey(key)
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("second LockKey acquired while first still held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second LockKey never acquired after unlock")
	}
}

func TestSQLiteLedger_MirrorHistory(t *testing.T) {
	db, err := storage.NewSQLiteLedger(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	first := domain.MirrorRecord{
		ID:            "local-1",
		MarketID:      "0xaaa",
		TokenID:       "123",
		Side:          domain.SideBuy,
		ObservedPrice: 0.62,
		ObservedSize:  15,
		Amount:        5,
		Status:        domain.StatusMatched,
		OrderID:       "0xorder1",
		ExecutedQty:   8.06,
		Estimated:     true,
		ExecutedAt:    base,
	}
	second := first
	second.ID = "local-2"
	second.Side = domain.SideSell
	second.Status = domain.StatusRejected
	second.OrderID = ""
	second.Failure = "venue rejected: not enough balance"
	second.ExecutedAt = base.Add(time.Second)

	require.NoError(t, db.SaveMirrorRecord(ctx, first))
	require.NoError(t, db.SaveMirrorRecord(ctx, second))

	// Más recientes primero
	records, err := db.GetMirrorRecords(ctx, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "local-2", records[0].ID)
	assert.Equal(t, domain.StatusRejected, records[0].Status)
	assert.Equal(t, "venue rejected: not enough balance", records[0].Failure)

	all, err := db.GetMirrorRecords(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "local-1", all[1].ID)
	assert.True(t, all[1].Estimated)
	assert.InDelta(t, 8.06, all[1].ExecutedQty, 0.0001)
}

func TestSQLiteLedger_Redemptions(t *testing.T) {
	db, err := storage.NewSQLiteLedger(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	ok := domain.RedeemResult{
		Key:        testKey("0xaaa", "123"),
		Quantity:   12.5,
		TxHash:     "0xdeadbeef",
		Success:    true,
		ExecutedAt: time.Now().UTC(),
	}
	failed := domain.RedeemResult{
		Key:        testKey("0xbbb", "456"),
		Quantity:   3,
		Success:    false,
		Error:      "tx reverted",
		ExecutedAt: time.Now().UTC().Add(time.Second),
	}

	require.NoError(t, db.SaveRedemption(ctx, ok))
	require.NoError(t, db.SaveRedemption(ctx, failed))

	results, err := db.GetRedemptions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.False(t, results[0].Success)
	assert.Equal(t, "tx reverted", results[0].Error)
	assert.True(t, results[1].Success)
	assert.Equal(t, "0xdeadbeef", results[1].TxHash)
}
