package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/rsibot/internal/domain"
)

// InstrumentSource devuelve el catálogo de instrumentos abiertos del venue.
type InstrumentSource interface {
	OpenInstruments(ctx context.Context) (domain.OpenInstruments, error)
}

// BalanceSource devuelve el capital vivo de la cuenta.
type BalanceSource interface {
	Balance(ctx context.Context) (float64, error)
}

// Venue es el contrato completo con el broker de opciones binarias.
// Todas las llamadas pueden fallar o devolver datos parciales: la ausencia
// de datos significa "desconocido", nunca "win" ni "loss".
type Venue interface {
	InstrumentSource
	BalanceSource

	// Connect abre (o reabre) la sesión. Credenciales inválidas → domain.ErrAuth.
	Connect(ctx context.Context) error

	// Connected indica si la sesión sigue viva.
	Connected(ctx context.Context) bool

	// Candles devuelve hasta count velas de granularity terminando en end, la más reciente al final.
	Candles(ctx context.Context, instrument string, granularity time.Duration, count int, end time.Time) ([]domain.Bar, error)

	// PlaceOrder abre una opción. Un rechazo del venue NO es error: viene en PlacementResult.
	PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.PlacementResult, error)

	// Settlement devuelve el registro directo de liquidación de la sesión, si existe.
	Settlement(ctx context.Context, orderID string) (domain.SettlementRecord, bool, error)

	// SettlementFeed devuelve el feed secundario de liquidaciones recientes.
	SettlementFeed(ctx context.Context) ([]domain.SettlementRecord, error)

	// OrderStatus consulta el estado de una orden directamente al venue.
	OrderStatus(ctx context.Context, orderID string) (domain.SettlementRecord, bool, error)

	// History devuelve las últimas posiciones cerradas de la cuenta.
	History(ctx context.Context, limit int) ([]domain.SettlementRecord, error)
}
