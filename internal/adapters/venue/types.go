package venue

import "encoding/json"

// DTOs raw del bridge del broker. Solo se usan dentro de este paquete.
// La conversión a domain se hace en mapping.go.
//
// El bridge reexpone la sesión del broker tal cual: muchos campos cambian de
// tipo según el endpoint (ids numéricos o string, "win" string o ausente).

// sessionRequest es el body de POST /session.
type sessionRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	AccountType string `json:"account_type"`
}

// sessionResponse es la respuesta de POST /session y GET /session.
type sessionResponse struct {
	OK        bool   `json:"ok"`
	Connected bool   `json:"connected"`
	Reason    string `json:"reason"`
}

// balanceResponse es la respuesta de GET /balance.
type balanceResponse struct {
	Balance json.Number `json:"balance"`
}

// candleRaw es una vela de GET /candles. min/max son low/high.
type candleRaw struct {
	ID     int64       `json:"id"`
	From   int64       `json:"from"`
	To     int64       `json:"to"`
	Open   json.Number `json:"open"`
	Close  json.Number `json:"close"`
	Min    json.Number `json:"min"`
	Max    json.Number `json:"max"`
	Volume json.Number `json:"volume"`
}

// buyRequest es el body de POST /orders.
type buyRequest struct {
	Price      float64 `json:"price"`
	Active     string  `json:"active"`
	OptionType string  `json:"option_type"`
	Direction  string  `json:"direction"`
	Expiration int     `json:"expiration"`
	ClientID   string  `json:"client_id,omitempty"`
}

// buyResponse: result es el id de la orden si ok, o el texto de error si no.
type buyResponse struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
}

// openTimeResponse es GET /instruments/open: categoría → instrumento → estado.
type openTimeResponse map[string]map[string]openState

type openState struct {
	Open bool `json:"open"`
}

// orderBinaryRaw es el registro de liquidación que la sesión guarda por orden.
type orderBinaryRaw struct {
	ID            json.RawMessage `json:"id"`
	Active        string          `json:"active"`
	Direction     string          `json:"direction"`
	Amount        json.Number     `json:"amount"`
	Result        string          `json:"result"`
	ProfitPercent *json.Number    `json:"profit_percent"`
	Created       int64           `json:"created"`
	Expired       int64           `json:"expired"`
}

// feedResponse es GET /settlements/feed: listas de posiciones cerradas agrupadas por canal.
type feedResponse map[string][]map[string]any

// historyResponse es GET /positions/history.
type historyResponse struct {
	Positions []map[string]any `json:"positions"`
}

// streamMessage es un frame del websocket de liquidaciones.
type streamMessage struct {
	Name string          `json:"name"`
	Msg  json.RawMessage `json:"msg"`
}
