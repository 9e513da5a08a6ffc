package venue

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/rsibot/internal/domain"
)

// mapCandles convierte las velas del bridge a domain.Bar, la más reciente al final.
func mapCandles(raw []candleRaw) []domain.Bar {
	bars := make([]domain.Bar, 0, len(raw))
	for _, c := range raw {
		bars = append(bars, domain.Bar{
			From:   time.Unix(c.From, 0).UTC(),
			To:     time.Unix(c.To, 0).UTC(),
			Open:   num(c.Open),
			High:   num(c.Max),
			Low:    num(c.Min),
			Close:  num(c.Close),
			Volume: num(c.Volume),
		})
	}
	return bars
}

// mapOpenInstruments descarta instrumentos sin estado y normaliza categorías.
func mapOpenInstruments(raw openTimeResponse) domain.OpenInstruments {
	out := make(domain.OpenInstruments, len(raw))
	for cat, instruments := range raw {
		m := make(map[string]bool, len(instruments))
		for id, st := range instruments {
			m[id] = st.Open
		}
		out[domain.Category(strings.ToLower(cat))] = m
	}
	return out
}

// mapBuy traduce la respuesta de compra: un id en result si ok, un texto de error si no.
func mapBuy(raw buyResponse) domain.PlacementResult {
	text := rawString(raw.Result)
	if raw.OK && text != "" {
		return domain.PlacementResult{Accepted: true, OrderID: text}
	}
	if text == "" {
		text = "empty response"
	}
	return domain.PlacementResult{Reason: text}
}

// mapOrderBinary traduce el registro directo. Sin campo result el registro no dice nada.
func mapOrderBinary(raw orderBinaryRaw) domain.SettlementRecord {
	rec := domain.SettlementRecord{
		OrderID:   rawString(raw.ID),
		Asset:     raw.Active,
		Direction: domain.Direction(strings.ToLower(raw.Direction)),
		Stake:     num(raw.Amount),
		Result:    parseResult(raw.Result),
	}
	if raw.ProfitPercent != nil {
		if v, err := raw.ProfitPercent.Float64(); err == nil {
			rec.PayoutPct = &v
		}
	}
	if raw.Created > 0 {
		rec.OpenedAt = time.Unix(raw.Created, 0).UTC()
	}
	if raw.Expired > 0 {
		rec.ClosedAt = time.Unix(raw.Expired, 0).UTC()
	}
	return rec
}

// mapLooseRecord traduce los dicts sin esquema fijo del feed, del historial y de get_async_order.
func mapLooseRecord(m map[string]any) domain.SettlementRecord {
	rec := domain.SettlementRecord{
		OrderID: anyString(m["id"]),
		Asset:   anyString(m["active"]),
	}
	if rec.Asset == "" {
		rec.Asset = anyString(m["instrument_id"])
	}
	rec.Direction = domain.Direction(strings.ToLower(anyString(m["direction"])))
	if v, ok := anyFloat(m["amount"]); ok {
		rec.Stake = v
	}
	if w, present := m["win"]; present {
		rec.Result = parseResult(anyString(w))
		if rec.Result == domain.ResultUnknown && anyString(w) != "" {
			rec.Result = domain.ResultLoss
		}
	}
	if v, ok := anyFloat(m["win_amount"]); ok {
		rec.WinAmount = &v
	}
	if v, ok := anyFloat(m["profit_amount"]); ok {
		rec.ProfitAmount = &v
	}
	if v, ok := anyFloat(m["profit_percent"]); ok {
		rec.PayoutPct = &v
	}
	if v, ok := anyFloat(m["open_time"]); ok && v > 0 {
		rec.OpenedAt = unixAny(v)
	}
	if v, ok := anyFloat(m["close_time"]); ok && v > 0 {
		rec.ClosedAt = unixAny(v)
	}
	return rec
}

// parseResult reconoce las tres etiquetas del broker ("loose" incluido tal cual).
func parseResult(s string) domain.SettlementResult {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "win":
		return domain.ResultWin
	case "loose", "lose", "loss", "lost":
		return domain.ResultLoss
	case "equal", "tie", "draw":
		return domain.ResultTie
	default:
		return domain.ResultUnknown
	}
}

// unixAny acepta segundos o milisegundos.
func unixAny(v float64) time.Time {
	if v > 1e12 {
		return time.UnixMilli(int64(v)).UTC()
	}
	return time.Unix(int64(v), 0).UTC()
}

func num(n json.Number) float64 {
	v, _ := n.Float64()
	return v
}

func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return strings.Trim(string(raw), `"`)
}

func anyString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

func anyFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
