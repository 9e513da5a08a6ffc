package storage

// journal.go: diario append-only de órdenes resueltas.
//
// Una fila por orden (order_id es PRIMARY KEY): un segundo Record de la misma
// orden se ignora, así una resolución nunca se contabiliza dos veces en disco.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrodnm/rsibot/internal/domain"
	"github.com/alejandrodnm/rsibot/internal/ports"
	_ "modernc.org/sqlite"
)

const journalSchema = `
CREATE TABLE IF NOT EXISTS settlements (
    order_id       TEXT PRIMARY KEY,
    asset          TEXT    NOT NULL,
    instrument     TEXT    NOT NULL,
    category       TEXT    NOT NULL,
    direction      TEXT    NOT NULL,
    stake          REAL    NOT NULL,
    rsi            REAL    NOT NULL DEFAULT 0,
    balance_before REAL    NOT NULL DEFAULT 0,
    entry_time     TEXT    NOT NULL,
    expiry_time    TEXT    NOT NULL,
    outcome        TEXT    NOT NULL,
    payout         REAL    NOT NULL DEFAULT 0,
    profit         REAL    NOT NULL DEFAULT 0,
    source         TEXT    NOT NULL,
    resolved_at    TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_settlements_resolved ON settlements(resolved_at DESC);
CREATE INDEX IF NOT EXISTS idx_settlements_asset    ON settlements(asset);
`

// Ancho fijo: el orden lexicográfico coincide con el cronológico.
const timeLayout = "2006-01-02T15:04:05.000Z"

// Journal implementa ports.Journal usando SQLite (pure Go, sin CGo).
type Journal struct {
	db *sql.DB
}

var _ ports.Journal = (*Journal)(nil)

// NewJournal abre (o crea) la base de datos en la ruta dada y aplica el schema.
func NewJournal(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewJournal: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(journalSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewJournal: apply schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Record inserta la resolución. inserted=false si la orden ya estaba en el diario.
func (j *Journal) Record(ctx context.Context, o domain.Order, res domain.Resolution) (bool, error) {
	r, err := j.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO settlements
			(order_id, asset, instrument, category, direction, stake, rsi, balance_before,
			 entry_time, expiry_time, outcome, payout, profit, source, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		o.ID, o.Asset, o.Instrument, string(o.Category), string(o.Direction),
		o.Stake, o.RSI, o.CapitalAtEntry,
		formatTime(o.EntryTime), formatTime(o.ExpiryTime),
		string(res.Outcome), res.Payout, res.Profit, string(res.Source), formatTime(res.ResolvedAt),
	)
	if err != nil {
		return false, fmt.Errorf("storage.Record: insert %s: %w", o.ID, err)
	}
	n, err := r.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("storage.Record: rows affected: %w", err)
	}
	return n == 1, nil
}

const selectSettlement = `
	SELECT order_id, asset, instrument, category, direction, stake, rsi, balance_before,
	       entry_time, expiry_time, outcome, payout, profit, source, resolved_at
	FROM settlements`

// ByID devuelve la orden y su resolución. ok=false si no está registrada.
func (j *Journal) ByID(ctx context.Context, orderID string) (domain.Order, domain.Resolution, bool, error) {
	rows, err := j.db.QueryContext(ctx, selectSettlement+` WHERE order_id = ?`, orderID)
	if err != nil {
		return domain.Order{}, domain.Resolution{}, false, fmt.Errorf("storage.ByID: query: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return domain.Order{}, domain.Resolution{}, false, rows.Err()
	}
	o, res, err := scanSettlement(rows)
	if err != nil {
		return domain.Order{}, domain.Resolution{}, false, fmt.Errorf("storage.ByID: %w", err)
	}
	return o, res, true, nil
}

// Recent devuelve las últimas resoluciones, la más reciente primero.
func (j *Journal) Recent(ctx context.Context, limit int) ([]domain.Resolution, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx, selectSettlement+` ORDER BY resolved_at DESC, order_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.Recent: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Resolution
	for rows.Next() {
		_, res, err := scanSettlement(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.Recent: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// Totals agrega todo el diario.
func (j *Journal) Totals(ctx context.Context) (ports.JournalTotals, error) {
	var (
		t           ports.JournalTotals
		first, last sql.NullString
	)
	err := j.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(outcome = 'win'), 0),
		       COALESCE(SUM(outcome = 'loss'), 0),
		       COALESCE(SUM(outcome = 'tie'), 0),
		       COALESCE(SUM(profit), 0),
		       COALESCE(SUM(stake), 0),
		       MIN(resolved_at),
		       MAX(resolved_at)
		FROM settlements
	`).Scan(&t.Orders, &t.Wins, &t.Losses, &t.Ties, &t.Profit, &t.Staked, &first, &last)
	if err != nil {
		return ports.JournalTotals{}, fmt.Errorf("storage.Totals: %w", err)
	}
	t.Profit = domain.RoundMoney(t.Profit)
	t.Staked = domain.RoundMoney(t.Staked)
	if first.Valid {
		t.First, _ = time.Parse(timeLayout, first.String)
	}
	if last.Valid {
		t.Last, _ = time.Parse(timeLayout, last.String)
	}
	return t, nil
}

// Close cierra la conexión a la base de datos.
func (j *Journal) Close() error {
	return j.db.Close()
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func scanSettlement(rows *sql.Rows) (domain.Order, domain.Resolution, error) {
	var (
		o                      domain.Order
		res                    domain.Resolution
		category, direction    string
		outcome, source        string
		entry, expiry, settled string
	)
	if err := rows.Scan(
		&o.ID, &o.Asset, &o.Instrument, &category, &direction,
		&o.Stake, &o.RSI, &o.CapitalAtEntry,
		&entry, &expiry,
		&outcome, &res.Payout, &res.Profit, &source, &settled,
	); err != nil {
		return o, res, fmt.Errorf("scan row: %w", err)
	}
	o.Category = domain.Category(category)
	o.Direction = domain.Direction(direction)

	var err error
	if o.EntryTime, err = parseTime(entry); err != nil {
		return o, res, err
	}
	if o.ExpiryTime, err = parseTime(expiry); err != nil {
		return o, res, err
	}

	res.OrderID = o.ID
	res.Asset = o.Asset
	res.Stake = o.Stake
	res.Outcome = domain.Outcome(outcome)
	res.Source = domain.Source(source)
	if res.ResolvedAt, err = parseTime(settled); err != nil {
		return o, res, err
	}
	return o, res, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}
