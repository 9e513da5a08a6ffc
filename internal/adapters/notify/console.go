package notify

import (
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/alejandrodnm/rsibot/internal/domain"
	"github.com/alejandrodnm/rsibot/internal/ports"
	"github.com/olekukonko/tablewriter"
)

// Console imprime informes legibles en la terminal.
type Console struct {
	out io.Writer
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// Report agrupa todo lo que se imprime en el resumen de cierre y en `report`.
type Report struct {
	Title        string
	Capital      float64
	CapitalKnown bool
	Snapshot     domain.Snapshot
	Journal      *ports.JournalTotals // nil si no hay diario
}

// PrintReport imprime estadísticas por activo, beneficios por periodo y estado del riesgo.
func (c *Console) PrintReport(in Report) {
	snap := in.Snapshot
	title := in.Title
	if title == "" {
		title = "STRATEGY REPORT"
	}
	fmt.Fprintf(c.out, "\n=== %s ===\n", title)

	wins, losses, ties := snap.Totals()
	fmt.Fprintf(c.out, "  Initial capital: $%.2f\n", snap.InitialCapital)
	if in.CapitalKnown {
		fmt.Fprintf(c.out, "  Current capital: $%.2f (%+.2f%%)\n", in.Capital, pct(in.Capital-snap.InitialCapital, snap.InitialCapital))
	} else {
		fmt.Fprintf(c.out, "  Current capital: unknown\n")
	}
	fmt.Fprintf(c.out, "  Min capital:     $%.2f\n", snap.MinCapital)
	fmt.Fprintf(c.out, "  Total profit:    $%+.2f | today $%+.2f\n", snap.TotalProfit, snap.DailyProfit)
	fmt.Fprintf(c.out, "  Trades:          %d (W:%d L:%d T:%d) win rate %.1f%%\n",
		wins+losses+ties, wins, losses, ties, snap.WinRate()*100)
	if n := countOrders(snap.ActiveOrders); n > 0 {
		fmt.Fprintf(c.out, "  Active orders:   %d\n", n)
	}

	c.printAssets(snap)
	c.printPeriods(snap)
	c.printRisk(snap)

	if j := in.Journal; j != nil && j.Orders > 0 {
		fmt.Fprintf(c.out, "\n── JOURNAL ──\n")
		fmt.Fprintf(c.out, "  %d orders %s → %s | staked $%.2f | net $%+.2f\n",
			j.Orders, j.First.Format("2006-01-02"), j.Last.Format("2006-01-02"), j.Staked, j.Profit)
	}
	fmt.Fprintln(c.out)
}

func (c *Console) printAssets(snap domain.Snapshot) {
	assets := make(map[string]bool)
	for _, m := range []map[string]int{snap.Wins, snap.Losses, snap.Ties} {
		for a := range m {
			assets[a] = true
		}
	}
	if len(assets) == 0 {
		fmt.Fprintf(c.out, "\n  (no trades yet)\n")
		return
	}

	fmt.Fprintln(c.out)
	table := tablewriter.NewWriter(c.out)
	table.Header("Asset", "Wins", "Losses", "Ties", "Win rate", "Loss streak")
	for _, a := range slices.Sorted(maps.Keys(assets)) {
		w, l, t := snap.Wins[a], snap.Losses[a], snap.Ties[a]
		rate := "-"
		if w+l > 0 {
			rate = fmt.Sprintf("%.1f%%", float64(w)/float64(w+l)*100)
		}
		table.Append(
			a,
			fmt.Sprintf("%d", w),
			fmt.Sprintf("%d", l),
			fmt.Sprintf("%d", t),
			rate,
			fmt.Sprintf("%d", snap.AssetConsecutiveLosses[a]),
		)
	}
	table.Render()
}

func (c *Console) printPeriods(snap domain.Snapshot) {
	periods := make(map[string]bool)
	for p := range snap.PeriodProfits {
		periods[p] = true
	}
	for p := range snap.PeriodStartCapital {
		periods[p] = true
	}
	if len(periods) == 0 {
		return
	}

	fmt.Fprintf(c.out, "\n── MONTHS ──\n")
	for _, p := range slices.Sorted(maps.Keys(periods)) {
		line := fmt.Sprintf("  %s  profit $%+.2f", p, snap.PeriodProfits[p])
		if start, ok := snap.PeriodStartCapital[p]; ok {
			line += fmt.Sprintf("  start $%.2f", start)
		}
		if snap.PeriodStopActive(p) {
			line += "  STOP-LOSS"
		}
		fmt.Fprintln(c.out, line)
	}
}

func (c *Console) printRisk(snap domain.Snapshot) {
	fmt.Fprintf(c.out, "\n── RISK ──\n")
	fmt.Fprintf(c.out, "  Absolute stop (%.0f%%, $%.2f): %s\n",
		snap.AbsoluteStopPct*100, snap.AbsoluteStopThreshold, flag(snap.AbsoluteStopTriggered))
	fmt.Fprintf(c.out, "  Monthly stop (%.0f%%):          %s\n",
		snap.PeriodStopPct*100, flag(snap.PeriodStopTriggered))
	profitLock := flag(snap.DailyProfitLock)
	if snap.DailyProfitLock {
		profitLock += fmt.Sprintf(" at $%.2f", snap.DailyProfitLockAmount)
	}
	fmt.Fprintf(c.out, "  Daily profit lock:            %s\n", profitLock)
	fmt.Fprintf(c.out, "  Daily loss lock:              %s (%d/%d losses)\n",
		flag(snap.DailyLossLock), snap.DailyConsecutiveLosses, snap.MaxDailyConsecutiveLosses)
}

// PrintInstruments imprime el catálogo de instrumentos abiertos.
func (c *Console) PrintInstruments(open domain.OpenInstruments) {
	fmt.Fprintf(c.out, "\n=== OPEN INSTRUMENTS (%d) ===\n", open.Count())
	table := tablewriter.NewWriter(c.out)
	table.Header("Category", "Instrument")
	for _, cat := range slices.Sorted(maps.Keys(open)) {
		for _, id := range slices.Sorted(maps.Keys(open[cat])) {
			if open[cat][id] {
				table.Append(string(cat), id)
			}
		}
	}
	table.Render()
}

// PrintBindings imprime cómo se resolvió cada activo configurado.
func (c *Console) PrintBindings(assets []string, bindings map[string]domain.AssetBinding) {
	fmt.Fprintf(c.out, "\n=== ASSETS (%d/%d tradable) ===\n", len(bindings), len(assets))
	table := tablewriter.NewWriter(c.out)
	table.Header("Asset", "Instrument", "Category", "Pinned")
	for _, a := range assets {
		b, ok := bindings[a]
		if !ok {
			table.Append(a, "-", "closed", "")
			continue
		}
		pinned := ""
		if b.Mapped {
			pinned = "yes"
		}
		table.Append(a, b.Instrument, string(b.Category), pinned)
	}
	table.Render()
}

// PrintSettlements imprime posiciones cerradas tal como las devuelve el venue.
func (c *Console) PrintSettlements(records []domain.SettlementRecord) {
	fmt.Fprintf(c.out, "\n=== VENUE HISTORY (%d) ===\n", len(records))
	if len(records) == 0 {
		fmt.Fprintln(c.out, "  (none)")
		return
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("ID", "Asset", "Dir", "Stake", "Result", "Win amount", "Closed")
	for _, r := range records {
		table.Append(
			r.OrderID,
			r.Asset,
			r.Direction.Label(),
			fmt.Sprintf("$%.2f", r.Stake),
			resultLabel(r.Result),
			optMoney(r.WinAmount),
			timeLabel(r.ClosedAt),
		)
	}
	table.Render()
}

// PrintResolutions imprime las últimas resoluciones del diario.
func (c *Console) PrintResolutions(res []domain.Resolution) {
	fmt.Fprintf(c.out, "\n=== JOURNAL (%d) ===\n", len(res))
	if len(res) == 0 {
		fmt.Fprintln(c.out, "  (none)")
		return
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("ID", "Asset", "Outcome", "Stake", "Profit", "Source", "Resolved")
	for _, r := range res {
		table.Append(
			r.OrderID,
			r.Asset,
			strings.ToUpper(string(r.Outcome)),
			fmt.Sprintf("$%.2f", r.Stake),
			fmt.Sprintf("$%+.2f", r.Profit),
			string(r.Source),
			timeLabel(r.ResolvedAt),
		)
	}
	table.Render()
}

// OrderLookup es lo que se sabe de una orden concreta.
type OrderLookup struct {
	ID          string
	Order       *domain.Order
	Resolution  *domain.Resolution
	Status      *domain.SettlementRecord
	StatusError error
}

// PrintOrder imprime el diario y el estado en el venue de una orden.
func (c *Console) PrintOrder(in OrderLookup) {
	fmt.Fprintf(c.out, "\n=== ORDER %s ===\n", in.ID)
	if o := in.Order; o != nil {
		fmt.Fprintf(c.out, "  Asset:      %s (%s, %s)\n", o.Asset, o.Instrument, o.Category)
		fmt.Fprintf(c.out, "  Direction:  %s  RSI %.2f\n", o.Direction.Label(), o.RSI)
		fmt.Fprintf(c.out, "  Stake:      $%.2f (capital $%.2f)\n", o.Stake, o.CapitalAtEntry)
		fmt.Fprintf(c.out, "  Entry:      %s  expiry %s\n", timeLabel(o.EntryTime), timeLabel(o.ExpiryTime))
	}
	if r := in.Resolution; r != nil {
		fmt.Fprintf(c.out, "  Journal:    %s via %s, payout $%.2f, profit $%+.2f at %s\n",
			strings.ToUpper(string(r.Outcome)), r.Source, r.Payout, r.Profit, timeLabel(r.ResolvedAt))
	} else {
		fmt.Fprintln(c.out, "  Journal:    not recorded")
	}
	switch {
	case in.StatusError != nil:
		fmt.Fprintf(c.out, "  Venue:      error: %v\n", in.StatusError)
	case in.Status != nil:
		s := in.Status
		fmt.Fprintf(c.out, "  Venue:      %s win_amount %s profit %s\n",
			resultLabel(s.Result), optMoney(s.WinAmount), optMoney(s.ProfitAmount))
	default:
		fmt.Fprintln(c.out, "  Venue:      no status")
	}
	fmt.Fprintln(c.out)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func countOrders(active map[string][]domain.Order) int {
	n := 0
	for _, orders := range active {
		n += len(orders)
	}
	return n
}

func pct(part, total float64) float64 {
	if total == 0 {
		return 0
	}
	return part / total * 100
}

func flag(on bool) string {
	if on {
		return "ACTIVE"
	}
	return "ok"
}

func resultLabel(r domain.SettlementResult) string {
	if r == domain.ResultUnknown {
		return "?"
	}
	return strings.ToUpper(string(r))
}

func optMoney(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("$%.2f", *v)
}

func timeLabel(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
