// scheduler.go — barrido periódico de redenciones de posiciones resueltas.
package mirror

import (
	"context"
	"log/slog"
	"time"

	"github.com/alejandrodnm/polymirror/internal/domain"
)

// RunRedemptions ejecuta el barrido de redenciones en el intervalo
// configurado. Intervalo 0 deshabilita el scheduler por completo.
func (e *Engine) RunRedemptions(ctx context.Context) error {
	if e.cfg.RedemptionInterval <= 0 {
		slog.Info("redeem: scheduler disabled — no interval configured")
		return nil
	}

	slog.Info("redeem: scheduler started", "interval", e.cfg.RedemptionInterval)
	ticker := time.NewTicker(e.cfg.RedemptionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.sweepRedemptions(ctx)
		}
	}
}

// sweepRedemptions redime las posiciones cuyo mercado ya resolvió.
// Secuencia: pausar el consumer, drenar ejecuciones en vuelo, redimir con
// cap y espaciado entre transacciones, reanudar. El fallo de una entrada
// nunca aborta el resto del barrido.
func (e *Engine) sweepRedemptions(ctx context.Context) {
	// 1. Pausa: ningún trade nuevo mientras barremos.
	e.session.Pause()
	defer e.session.Resume()

	// 2. Drenar: esperar a que terminen las ejecuciones en vuelo.
	e.session.Drain()

	entries, err := e.ledger.Entries(ctx)
	if err != nil {
		slog.Warn("redeem: could not read ledger — skipping sweep", "err", err)
		return
	}
	if len(entries) == 0 {
		slog.Debug("redeem: nothing held — skipping sweep")
		return
	}

	// 3. Resolución: filtrar las posiciones cuyo mercado ya pagó.
	keys := make([]domain.HoldingKey, 0, len(entries))
	qtyByKey := make(map[domain.HoldingKey]float64, len(entries))
	for _, entry := range entries {
		keys = append(keys, entry.Key)
		qtyByKey[entry.Key] = entry.Quantity
	}

	resolved, err := e.redeemer.ListResolved(ctx, keys)
	if err != nil {
		slog.Warn("redeem: resolution check failed — skipping sweep", "err", err)
		return
	}
	if len(resolved) == 0 {
		slog.Debug("redeem: no resolved positions", "held", len(entries))
		return
	}
	if len(resolved) > redeemSweepCap {
		slog.Info("redeem: capping sweep", "resolved", len(resolved), "cap", redeemSweepCap)
		resolved = resolved[:redeemSweepCap]
	}

	// 4. Redimir una por una, con espaciado entre transacciones on-chain.
	var redeemed, failed int
	for i, key := range resolved {
		if i > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(redeemSpacing):
			}
		}

		unlock := e.ledger.LockKey(key)
		res, err := e.redeemer.Redeem(ctx, key, qtyByKey[key])
		if err != nil {
			failed++
			slog.Warn("redeem: redemption failed",
				"market", shortID(key.MarketID), "err", err)
		} else if res.Success {
			redeemed++
			if err := e.ledger.Delete(ctx, key); err != nil {
				slog.Warn("redeem: could not prune redeemed entry",
					"key", key.String(), "err", err)
			}
			slog.Info("redeem: position redeemed",
				"market", shortID(key.MarketID),
				"qty", res.Quantity,
				"tx", res.TxHash,
			)
		}
		unlock()

		if hErr := e.history.SaveRedemption(ctx, res); hErr != nil {
			slog.Warn("redeem: could not persist redemption record",
				"market", shortID(key.MarketID), "err", hErr)
		}
	}

	slog.Info("redeem: sweep complete",
		"held", len(entries),
		"resolved", len(resolved),
		"redeemed", redeemed,
		"failed", failed,
	)
}
