package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"tradebot/internal/exchange"
	"tradebot/internal/logger"
)

// TickerUpdate is one best bid/ask change pushed by the stream.
type TickerUpdate struct {
	Symbol string
	Book   exchange.BookTicker
}

// Stream maintains a combined bookTicker subscription over one websocket
// connection and republishes updates on Updates. It reconnects with
// exponential backoff until Close is called.
type Stream struct {
	baseURL string
	symbols []string
	log     *logger.Logger

	conn         *websocket.Conn
	updates      chan TickerUpdate
	stopCh       chan struct{}
	reconnectMin time.Duration
	reconnectMax time.Duration
}

type streamMessage struct {
	Stream string `json:"stream"`
	Data   struct {
		Symbol string `json:"s"`
		Bid    string `json:"b"`
		Ask    string `json:"a"`
	} `json:"data"`
}

func NewStream(baseURL string, symbols []string, log *logger.Logger) *Stream {
	return &Stream{
		baseURL:      baseURL,
		symbols:      symbols,
		log:          log,
		updates:      make(chan TickerUpdate, 100),
		stopCh:       make(chan struct{}),
		reconnectMin: 1 * time.Second,
		reconnectMax: 30 * time.Second,
	}
}

func (s *Stream) Connect(ctx context.Context) error {
	url := s.streamURL()
	s.logEntry().WithField("url", url).Info("connecting ticker stream")

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial ticker stream: %w", err)
	}

	s.conn = conn
	s.conn.SetReadLimit(2 << 20)

	go s.readLoop()

	return nil
}

func (s *Stream) Updates() <-chan TickerUpdate {
	return s.updates
}

func (s *Stream) Close() {
	close(s.stopCh)
	if s.conn != nil {
		_ = s.conn.Close()
	}
}

func (s *Stream) streamURL() string {
	topics := make([]string, 0, len(s.symbols))
	for _, sym := range s.symbols {
		topics = append(topics, strings.ToLower(sym)+"@bookTicker")
	}
	return s.baseURL + "/stream?streams=" + strings.Join(topics, "/")
}

func (s *Stream) readLoop() {
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.logEntry().WithError(err).Warn("ticker stream read failed")
			if !s.reconnect() {
				return
			}
			continue
		}

		var msg streamMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logEntry().WithError(err).Warn("unparseable stream message")
			continue
		}

		if msg.Data.Symbol == "" {
			continue
		}

		bid, err1 := strconv.ParseFloat(msg.Data.Bid, 64)
		ask, err2 := strconv.ParseFloat(msg.Data.Ask, 64)
		if err1 != nil || err2 != nil {
			continue
		}

		update := TickerUpdate{
			Symbol: msg.Data.Symbol,
			Book:   exchange.BookTicker{Bid: bid, Ask: ask},
		}

		select {
		case s.updates <- update:
		default:
			// Drop when the consumer lags; the next update supersedes it.
		}
	}
}

func (s *Stream) reconnect() bool {
	backoff := s.reconnectMin

	for {
		select {
		case <-s.stopCh:
			return false
		default:
		}

		s.logEntry().Info("reconnecting ticker stream")
		time.Sleep(backoff)

		conn, _, err := websocket.DefaultDialer.Dial(s.streamURL(), nil)
		if err != nil {
			s.logEntry().WithError(err).Warn("ticker stream reconnect failed")
			backoff = s.nextBackoff(backoff)
			continue
		}

		if s.conn != nil {
			_ = s.conn.Close()
		}

		s.conn = conn
		s.conn.SetReadLimit(2 << 20)

		s.logEntry().Info("ticker stream reconnected")
		return true
	}
}

func (s *Stream) nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > s.reconnectMax {
		return s.reconnectMax
	}
	return next
}

func (s *Stream) logEntry() *logrus.Entry {
	return s.log.WithComponent("ticker_stream")
}
