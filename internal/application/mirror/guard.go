// guard.go — chequeo de colateral para las compras.
package mirror

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/polymirror/internal/domain"
)

// checkBuyBalance consulta el colateral disponible en el venue (neto de
// reservas por órdenes abiertas) y emite el veredicto para una compra.
// Valid=false con Available>0 significa "encoger la orden al disponible";
// Available<=0 es el único caso que aborta.
func (e *Engine) checkBuyBalance(ctx context.Context, required float64) (domain.BalanceCheck, error) {
	available, err := e.executor.GetBalance(ctx)
	if err != nil {
		return domain.BalanceCheck{}, fmt.Errorf("mirror.checkBuyBalance: %w", err)
	}
	return domain.BalanceCheck{
		Valid:     available >= required,
		Available: available,
		Required:  required,
	}, nil
}
