// Package venue talks to the broker bridge: a sidecar process that owns the
// broker session and exposes it over HTTP and a settlement WebSocket.
package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/rsibot/internal/domain"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "http://127.0.0.1:8765"

	// El broker corta sesiones que superan ~5 req/s; nos quedamos en 4.
	requestsPerSec = 4
	requestBurst   = 4

	maxRetries    = 2
	baseRetryWait = 500 * time.Millisecond
)

// errNotFound is returned for 404 answers. Callers turn it into "no data".
var errNotFound = errors.New("not found")

// Credentials identify the broker account the bridge logs into.
type Credentials struct {
	Email       string
	Password    string
	AccountType string // PRACTICE | REAL
}

// Bridge implements ports.Venue over the bridge HTTP API.
type Bridge struct {
	http    *http.Client
	base    string
	creds   Credentials
	limiter *rate.Limiter
	stream  *Stream
}

// NewBridge creates a client for the bridge at baseURL. stream may be nil.
func NewBridge(baseURL string, creds Credentials, stream *Stream) *Bridge {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Bridge{
		http:    &http.Client{Timeout: 10 * time.Second},
		base:    strings.TrimRight(baseURL, "/"),
		creds:   creds,
		limiter: rate.NewLimiter(requestsPerSec, requestBurst),
		stream:  stream,
	}
}

// Connect opens the broker session. Credential problems are wrapped in domain.ErrAuth.
func (b *Bridge) Connect(ctx context.Context) error {
	var resp sessionResponse
	body := sessionRequest{Email: b.creds.Email, Password: b.creds.Password, AccountType: b.creds.AccountType}
	if err := b.do(ctx, http.MethodPost, "/session", nil, body, &resp); err != nil {
		return fmt.Errorf("venue.Connect: %w", err)
	}
	if !resp.OK {
		if isAuthFailure(resp.Reason) {
			return fmt.Errorf("venue.Connect: %s: %w", resp.Reason, domain.ErrAuth)
		}
		return fmt.Errorf("venue.Connect: %s", resp.Reason)
	}
	slog.Info("venue session open", "account", b.creds.AccountType)
	return nil
}

func isAuthFailure(reason string) bool {
	r := strings.ToLower(reason)
	for _, s := range []string{"invalid_credentials", "invalid credentials", "wrong password", "2fa", "unauthorized"} {
		if strings.Contains(r, s) {
			return true
		}
	}
	return false
}

// Connected reports whether the bridge still holds a live session.
func (b *Bridge) Connected(ctx context.Context) bool {
	var resp sessionResponse
	if err := b.do(ctx, http.MethodGet, "/session", nil, nil, &resp); err != nil {
		slog.Debug("session check failed", "err", err)
		return false
	}
	return resp.Connected
}

// Balance returns the live account balance.
func (b *Bridge) Balance(ctx context.Context) (float64, error) {
	var resp balanceResponse
	if err := b.do(ctx, http.MethodGet, "/balance", nil, nil, &resp); err != nil {
		return 0, fmt.Errorf("venue.Balance: %w", err)
	}
	v, err := resp.Balance.Float64()
	if err != nil {
		return 0, fmt.Errorf("venue.Balance: parse %q: %w", resp.Balance, err)
	}
	return v, nil
}

// Candles returns up to count bars of granularity ending at end, oldest first.
func (b *Bridge) Candles(ctx context.Context, instrument string, granularity time.Duration, count int, end time.Time) ([]domain.Bar, error) {
	q := url.Values{}
	q.Set("active", instrument)
	q.Set("size", strconv.Itoa(int(granularity.Seconds())))
	q.Set("count", strconv.Itoa(count))
	q.Set("to", strconv.FormatInt(end.Unix(), 10))

	var raw []candleRaw
	if err := b.do(ctx, http.MethodGet, "/candles", q, nil, &raw); err != nil {
		return nil, fmt.Errorf("venue.Candles %s: %w", instrument, err)
	}
	return mapCandles(raw), nil
}

// PlaceOrder buys one option. Broker rejections come back in the result, not as errors.
func (b *Bridge) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.PlacementResult, error) {
	body := buyRequest{
		Price:      req.Stake,
		Active:     req.Instrument,
		OptionType: string(req.Category),
		Direction:  string(req.Direction),
		Expiration: req.ExpiryMinutes,
		ClientID:   req.ClientID,
	}
	var resp buyResponse
	if err := b.do(ctx, http.MethodPost, "/orders", nil, body, &resp); err != nil {
		return domain.PlacementResult{}, fmt.Errorf("venue.PlaceOrder %s: %w", req.Instrument, err)
	}
	return mapBuy(resp), nil
}

// OpenInstruments returns the open/closed state of every instrument by category.
func (b *Bridge) OpenInstruments(ctx context.Context) (domain.OpenInstruments, error) {
	var raw openTimeResponse
	if err := b.do(ctx, http.MethodGet, "/instruments/open", nil, nil, &raw); err != nil {
		return nil, fmt.Errorf("venue.OpenInstruments: %w", err)
	}
	return mapOpenInstruments(raw), nil
}

// Settlement returns the session's own settlement record for orderID.
// The stream cache is checked first; the HTTP lookup is the fallback.
func (b *Bridge) Settlement(ctx context.Context, orderID string) (domain.SettlementRecord, bool, error) {
	if b.stream != nil {
		if rec, ok := b.stream.Direct(orderID); ok {
			return rec, true, nil
		}
	}
	var raw orderBinaryRaw
	err := b.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(orderID)+"/binary", nil, nil, &raw)
	if errors.Is(err, errNotFound) {
		return domain.SettlementRecord{}, false, nil
	}
	if err != nil {
		return domain.SettlementRecord{}, false, fmt.Errorf("venue.Settlement %s: %w", orderID, err)
	}
	rec := mapOrderBinary(raw)
	if rec.OrderID == "" {
		rec.OrderID = orderID
	}
	return rec, rec.Result != domain.ResultUnknown, nil
}

// SettlementFeed returns recently closed positions, from the stream when it has any.
func (b *Bridge) SettlementFeed(ctx context.Context) ([]domain.SettlementRecord, error) {
	if b.stream != nil {
		if feed := b.stream.Feed(); len(feed) > 0 {
			return feed, nil
		}
	}
	var raw feedResponse
	if err := b.do(ctx, http.MethodGet, "/settlements/feed", nil, nil, &raw); err != nil {
		return nil, fmt.Errorf("venue.SettlementFeed: %w", err)
	}
	var out []domain.SettlementRecord
	for _, items := range raw {
		for _, item := range items {
			out = append(out, mapLooseRecord(item))
		}
	}
	return out, nil
}

// OrderStatus asks the broker directly for the state of orderID.
func (b *Bridge) OrderStatus(ctx context.Context, orderID string) (domain.SettlementRecord, bool, error) {
	var raw map[string]any
	err := b.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(orderID), nil, nil, &raw)
	if errors.Is(err, errNotFound) || (err == nil && len(raw) == 0) {
		return domain.SettlementRecord{}, false, nil
	}
	if err != nil {
		return domain.SettlementRecord{}, false, fmt.Errorf("venue.OrderStatus %s: %w", orderID, err)
	}
	rec := mapLooseRecord(raw)
	if rec.OrderID == "" {
		rec.OrderID = orderID
	}
	return rec, true, nil
}

// History returns the last limit closed positions of the account.
func (b *Bridge) History(ctx context.Context, limit int) ([]domain.SettlementRecord, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	var raw historyResponse
	if err := b.do(ctx, http.MethodGet, "/positions/history", q, nil, &raw); err != nil {
		return nil, fmt.Errorf("venue.History: %w", err)
	}
	out := make([]domain.SettlementRecord, 0, len(raw.Positions))
	for _, p := range raw.Positions {
		out = append(out, mapLooseRecord(p))
	}
	return out, nil
}

// do hace la request con rate limiting y retries sobre errores de red y 5xx.
func (b *Bridge) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := b.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
	}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := b.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := b.http.Do(req)
		if err != nil {
			if attempt == maxRetries || ctx.Err() != nil {
				return fmt.Errorf("request failed after %d retries: %w", attempt, err)
			}
			b.sleep(ctx, attempt)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			resp.Body.Close()
			return errNotFound
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("bridge error %d after %d retries", resp.StatusCode, maxRetries)
			}
			slog.Warn("bridge busy, retrying", "status", resp.StatusCode, "attempt", attempt+1)
			b.sleep(ctx, attempt)
			continue
		case resp.StatusCode >= 400:
			msg, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("bridge error %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		}

		dec := json.NewDecoder(resp.Body)
		dec.UseNumber()
		err = dec.Decode(out)
		resp.Body.Close()
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep espera con backoff exponencial, respetando el contexto.
func (b *Bridge) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
