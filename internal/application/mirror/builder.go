// builder.go — construcción de la orden propia a partir del trade observado.
package mirror

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/polymirror/internal/domain"
)

// buildIntent deriva la orden a enviar. BUY escala el notional observado
// (size × price × multiplier) y aplica el techo configurado — techo, nunca
// piso. SELL ofrece la posición trackeada completa; sin posición no hay
// orden (nunca vender en corto). Un intent nil con error nil es un skip.
func (e *Engine) buildIntent(ctx context.Context, trade domain.ObservedTrade) (*domain.OrderIntent, skipReason, error) {
	intent := domain.OrderIntent{
		MarketID:  trade.MarketID,
		TokenID:   trade.TokenID,
		Side:      trade.Side,
		Price:     trade.Price,
		OrderType: domain.OrderType(e.cfg.OrderType),
		TickSize:  e.cfg.TickSize,
		NegRisk:   e.cfg.NegRisk,
	}

	switch trade.Side {
	case domain.SideBuy:
		amount := trade.Size * trade.Price * e.cfg.SizeMultiplier
		if e.cfg.MaxOrderAmount > 0 && amount > e.cfg.MaxOrderAmount {
			amount = e.cfg.MaxOrderAmount
		}
		if amount <= 0 {
			return nil, skipReasonZeroAmount, nil
		}
		intent.Amount = amount

	case domain.SideSell:
		held, err := e.ledger.Get(ctx, trade.Key())
		if err != nil {
			return nil, 0, fmt.Errorf("mirror.buildIntent: read ledger: %w", err)
		}
		if held <= 0 {
			return nil, skipReasonUntracked, nil
		}
		intent.Amount = held

	default:
		return nil, 0, fmt.Errorf("mirror.buildIntent: unknown side %q", trade.Side)
	}

	return &intent, 0, nil
}
