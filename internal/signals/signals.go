// Package signals delivers strategy snapshots to the trading engine.
// Scores and ATR are produced by an upstream strategy process and read
// from a JSON feed file; the price is taken from the exchange at tick
// time so decisions never run on a stale close.
package signals

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"sync"
	"time"

	"tradebot/internal/exchange"
	"tradebot/internal/exchange/binance"
	"tradebot/internal/logger"
	"tradebot/internal/models"
)

// MarketData is the price source used when no stream update has arrived
// for a symbol yet.
type MarketData interface {
	GetBestBidAsk(ctx context.Context, symbol string) (exchange.BookTicker, error)
}

// feedEntry is one upstream directive. A missing symbol or zero score
// means "no entry signal"; ATR still flows so open positions can trail.
type feedEntry struct {
	Side     string  `json:"side"`
	Score    float64 `json:"score"`
	MaxScore float64 `json:"max_score"`
	ATR      float64 `json:"atr"`
	StopLoss float64 `json:"stop_loss"`
	TakeProf float64 `json:"take_profit"`
}

type Provider struct {
	market   MarketData
	stream   *binance.Stream
	feedPath string
	log      *logger.Logger

	mu       sync.Mutex
	books    map[string]exchange.BookTicker
	feed     map[string]feedEntry
	feedTime time.Time
}

func New(market MarketData, stream *binance.Stream, feedPath string, log *logger.Logger) *Provider {
	return &Provider{
		market:   market,
		stream:   stream,
		feedPath: feedPath,
		log:      log,
		books:    make(map[string]exchange.BookTicker),
		feed:     make(map[string]feedEntry),
	}
}

// Run consumes stream updates until the context is canceled. Without it
// the provider falls back to REST lookups on every tick.
func (p *Provider) Run(ctx context.Context) {
	if p.stream == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-p.stream.Updates():
			if !ok {
				return
			}
			p.mu.Lock()
			p.books[update.Symbol] = update.Book
			p.mu.Unlock()
		}
	}
}

// Signal assembles the snapshot for one symbol.
func (p *Provider) Signal(ctx context.Context, symbol string) (models.Signal, error) {
	book, err := p.book(ctx, symbol)
	if err != nil {
		return models.Signal{}, err
	}

	entry := p.feedFor(symbol)

	maxScore := entry.MaxScore
	if maxScore <= 0 {
		maxScore = 1.0
	}

	return models.Signal{
		Symbol:   symbol,
		Side:     parseSide(entry.Side),
		Score:    entry.Score,
		MaxScore: maxScore,
		ATR:      entry.ATR,
		Close:    book.Mid(),
		StopLoss: entry.StopLoss,
		TakeProf: entry.TakeProf,
	}, nil
}

func (p *Provider) book(ctx context.Context, symbol string) (exchange.BookTicker, error) {
	p.mu.Lock()
	book, ok := p.books[symbol]
	p.mu.Unlock()
	if ok && book.Mid() > 0 {
		return book, nil
	}
	return p.market.GetBestBidAsk(ctx, symbol)
}

// feedFor returns the upstream directive for a symbol, reloading the
// feed file when its modification time changes.
func (p *Provider) feedFor(symbol string) feedEntry {
	info, err := os.Stat(p.feedPath)
	if err != nil {
		return feedEntry{}
	}

	p.mu.Lock()
	stale := info.ModTime().After(p.feedTime)
	p.mu.Unlock()

	if stale {
		data, err := os.ReadFile(p.feedPath)
		if err != nil {
			p.log.WithComponent("signals").WithError(err).Warn("signal feed unreadable")
			return p.cached(symbol)
		}

		parsed := make(map[string]feedEntry)
		if err := json.Unmarshal(data, &parsed); err != nil {
			p.log.WithComponent("signals").WithError(err).Warn("signal feed malformed, keeping previous")
			return p.cached(symbol)
		}

		p.mu.Lock()
		p.feed = parsed
		p.feedTime = info.ModTime()
		p.mu.Unlock()
	}

	return p.cached(symbol)
}

func (p *Provider) cached(symbol string) feedEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.feed[symbol]
}

func parseSide(s string) models.PositionSide {
	switch strings.ToUpper(s) {
	case "LONG":
		return models.PositionSideLong
	case "SHORT":
		return models.PositionSideShort
	}
	return ""
}
