package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/rsibot/internal/domain"
	"github.com/gorilla/websocket"
)

const (
	streamReadTimeout  = 60 * time.Second
	streamWriteTimeout = 10 * time.Second
	streamPingInterval = 20 * time.Second
	streamReconnect    = 5 * time.Second
	streamReadLimit    = 1 << 20
	feedCapacity       = 500
)

// Frame names pushed by the bridge.
const (
	frameOrderBinary  = "order-binary"  // direct per-order settlement record
	frameOptionClosed = "option-closed" // one closed position
	frameListInfo     = "listinfodata"  // batch of closed positions
)

// Stream keeps the settlement frames pushed by the bridge in memory.
// Direct records are keyed by order id; feed records are a bounded ring.
type Stream struct {
	url    string
	dialer *websocket.Dialer

	mu     sync.RWMutex
	direct map[string]domain.SettlementRecord
	feed   []domain.SettlementRecord
}

// NewStream creates a stream for the bridge WebSocket at url (ws:// or wss://).
func NewStream(url string) *Stream {
	return &Stream{
		url:    url,
		dialer: websocket.DefaultDialer,
		direct: make(map[string]domain.SettlementRecord),
	}
}

// Run keeps the connection open until ctx ends, reconnecting after failures.
func (s *Stream) Run(ctx context.Context) {
	for {
		err := s.session(ctx)
		if ctx.Err() != nil {
			return
		}
		slog.Warn("settlement stream dropped, reconnecting", "err", err, "in", streamReconnect)
		select {
		case <-time.After(streamReconnect):
		case <-ctx.Done():
			return
		}
	}
}

func (s *Stream) session(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.url, err)
	}
	defer conn.Close()
	slog.Info("settlement stream connected", "url", s.url)

	conn.SetReadLimit(streamReadLimit)
	conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(streamPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(streamWriteTimeout))
				conn.Close()
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteTimeout)); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
		if err := s.handle(data); err != nil {
			slog.Debug("settlement frame skipped", "err", err)
		}
	}
}

func (s *Stream) handle(data []byte) error {
	var msg streamMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}

	switch msg.Name {
	case frameOrderBinary:
		var raw orderBinaryRaw
		if err := json.Unmarshal(msg.Msg, &raw); err != nil {
			return fmt.Errorf("decode %s: %w", msg.Name, err)
		}
		rec := mapOrderBinary(raw)
		if rec.OrderID == "" || rec.Result == domain.ResultUnknown {
			return nil
		}
		s.mu.Lock()
		s.direct[rec.OrderID] = rec
		s.mu.Unlock()
	case frameOptionClosed:
		item, err := decodeLoose(msg.Msg)
		if err != nil {
			return fmt.Errorf("decode %s: %w", msg.Name, err)
		}
		s.push(mapLooseRecord(item))
	case frameListInfo:
		var items []map[string]any
		dec := json.NewDecoder(bytes.NewReader(msg.Msg))
		dec.UseNumber()
		if err := dec.Decode(&items); err != nil {
			return fmt.Errorf("decode %s: %w", msg.Name, err)
		}
		for _, item := range items {
			s.push(mapLooseRecord(item))
		}
	}
	return nil
}

func (s *Stream) push(rec domain.SettlementRecord) {
	if rec.OrderID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feed = append(s.feed, rec)
	if len(s.feed) > feedCapacity {
		s.feed = s.feed[len(s.feed)-feedCapacity:]
	}
}

// Direct returns the settlement record pushed for orderID, if any.
func (s *Stream) Direct(orderID string) (domain.SettlementRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.direct[orderID]
	return rec, ok
}

// Feed returns a copy of the buffered closed positions, oldest first.
func (s *Stream) Feed() []domain.SettlementRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.SettlementRecord, len(s.feed))
	copy(out, s.feed)
	return out
}

func decodeLoose(raw json.RawMessage) (map[string]any, error) {
	var item map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&item); err != nil {
		return nil, err
	}
	return item, nil
}
