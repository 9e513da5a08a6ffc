package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/rsibot/internal/domain"
)

// StateStore persiste el snapshot completo del engine entre reinicios.
type StateStore interface {
	// Load devuelve ok=false si todavía no existe ningún snapshot.
	Load(ctx context.Context) (domain.Snapshot, bool, error)
	Save(ctx context.Context, snap domain.Snapshot) error
}

// JournalTotals agrega el diario de liquidaciones.
type JournalTotals struct {
	Orders int
	Wins   int
	Losses int
	Ties   int
	Profit float64
	Staked float64
	First  time.Time
	Last   time.Time
}

// Journal es el histórico append-only de órdenes resueltas.
type Journal interface {
	// Record guarda la resolución. inserted=false si la orden ya estaba registrada.
	Record(ctx context.Context, order domain.Order, res domain.Resolution) (inserted bool, err error)
	ByID(ctx context.Context, orderID string) (domain.Order, domain.Resolution, bool, error)
	Recent(ctx context.Context, limit int) ([]domain.Resolution, error)
	Totals(ctx context.Context) (JournalTotals, error)
}
