package mirror

import (
	"context"
	"testing"
	"time"

	"github.com/alejandrodnm/polymirror/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runTrades empuja los eventos, cierra el feed y espera a que Run termine.
// Run espera a sus workers antes de devolver, así que al volver ya no hay
// ejecuciones en vuelo y los asserts son deterministas.
func runTrades(t *testing.T, env *testEnv, trades ...domain.ObservedTrade) {
	t.Helper()
	for _, tr := range trades {
		env.feed.events <- tr
	}
	close(env.feed.events)

	errCh := make(chan error, 1)
	go func() { errCh <- env.engine.Run(context.Background()) }()

	select {
	case err := <-errCh:
		require.ErrorContains(t, err, "trade feed closed")
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop after feed close")
	}
}

func TestRun_MirrorsObservedBuy(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.SizeMultiplier = 0.3
	cfg.MaxOrderAmount = 5
	env := newTestEnv(cfg)
	env.executor.submitResp = matchedResponse(8.06, 0, true, false)

	runTrades(t, env, observedTrade("ev-1", domain.SideBuy, 0.62, 50))

	submits := env.executor.submitted()
	require.Len(t, submits, 1)
	assert.Equal(t, domain.SideBuy, submits[0].Side)
	assert.InDelta(t, 5.0, submits[0].Amount, 1e-9) // 50 × 0.62 × 0.3 capeado a 5
	assert.InDelta(t, 8.06, env.ledger.quantity(testKey()), 1e-9)
}

func TestRun_DuplicateEventMirroredOnce(t *testing.T) {
	env := newTestEnv(defaultTestConfig())
	env.executor.submitResp = matchedResponse(8.06, 0, true, false)

	trade := observedTrade("ev-dup", domain.SideBuy, 0.62, 50)
	runTrades(t, env, trade, trade, trade)

	assert.Len(t, env.executor.submitted(), 1)
	assert.InDelta(t, 8.06, env.ledger.quantity(testKey()), 1e-9)
}

func TestRun_DisabledObservesWithoutMirroring(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.Enabled = false
	env := newTestEnv(cfg)

	runTrades(t, env, observedTrade("ev-1", domain.SideBuy, 0.62, 50))

	assert.Empty(t, env.executor.submitted())
	assert.Zero(t, env.ledger.quantity(testKey()))
}

func TestRun_StaleTradeSkipped(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.MaxTradeAge = 5 * time.Minute
	env := newTestEnv(cfg)

	old := observedTrade("ev-old", domain.SideBuy, 0.62, 50)
	old.Timestamp = time.Now().Add(-10 * time.Minute)
	runTrades(t, env, old)

	assert.Empty(t, env.executor.submitted())
}

func TestRun_SellWithoutPositionPlacesNoOrder(t *testing.T) {
	env := newTestEnv(defaultTestConfig())

	// El target vende pero nosotros no tenemos nada: nunca se abre un short.
	runTrades(t, env, observedTrade("ev-1", domain.SideSell, 0.62, 50))

	assert.Empty(t, env.executor.submitted())
	assert.Empty(t, env.history.mirrorRecords())
}

func TestRun_ShrinksBuyToAvailableBalance(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.SizeMultiplier = 0.3
	cfg.MaxOrderAmount = 5
	env := newTestEnv(cfg)
	env.executor.balance = 3.2
	env.executor.submitResp = matchedResponse(5.16, 0, true, false)

	runTrades(t, env, observedTrade("ev-1", domain.SideBuy, 0.62, 50))

	submits := env.executor.submitted()
	require.Len(t, submits, 1)
	assert.InDelta(t, 3.2, submits[0].Amount, 1e-9)
}

func TestRun_AbortsBuyWithoutBalance(t *testing.T) {
	env := newTestEnv(defaultTestConfig())
	env.executor.balance = 0

	runTrades(t, env, observedTrade("ev-1", domain.SideBuy, 0.62, 50))

	assert.Empty(t, env.executor.submitted())
	records := env.history.mirrorRecords()
	require.Len(t, records, 1)
	assert.Equal(t, domain.StatusRejected, records[0].Status)
	assert.Contains(t, records[0].Failure, "no collateral available")
}

func TestRun_BalanceQueryFailureSkipsTrade(t *testing.T) {
	env := newTestEnv(defaultTestConfig())
	env.executor.balanceErr = assert.AnError

	runTrades(t, env, observedTrade("ev-1", domain.SideBuy, 0.62, 50))

	assert.Empty(t, env.executor.submitted())
	assert.Empty(t, env.history.mirrorRecords())
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	env := newTestEnv(defaultTestConfig())
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- env.engine.Run(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop on cancel")
	}
}

func TestPruneSeen_DropsExpiredEntries(t *testing.T) {
	now := time.Now()
	seen := map[string]time.Time{
		"fresh":   now.Add(-time.Minute),
		"expired": now.Add(-dedupTTL - time.Minute),
	}

	pruneSeen(seen, now)

	assert.Contains(t, seen, "fresh")
	assert.NotContains(t, seen, "expired")
}
