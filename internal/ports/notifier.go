package ports

import (
	"context"

	"github.com/alejandrodnm/rsibot/internal/domain"
)

// Alerter envía avisos operativos fuera del proceso (Discord, etc.).
type Alerter interface {
	Alert(ctx context.Context, title, message string) error
}

// Observer recibe eventos del engine para métricas.
type Observer interface {
	OrderPlaced(asset string, dir domain.Direction, stake float64)
	OrderResolved(res domain.Resolution)
	Vetoed(reason string)
	Capital(amount float64)
	ActiveOrders(n int)
}
