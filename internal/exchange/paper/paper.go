// Package paper simulates the private side of an exchange. Market data
// comes from a real source; orders fill immediately at the touch with a
// configurable taker fee, and the same idempotency contract as the live
// adapter applies.
package paper

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"tradebot/internal/exchange"
	"tradebot/internal/logger"
	"tradebot/internal/models"
)

// MarketData is the public-endpoint subset of the exchange contract.
type MarketData interface {
	GetSymbolRules(ctx context.Context, symbol string) (exchange.SymbolRules, error)
	GetBestBidAsk(ctx context.Context, symbol string) (exchange.BookTicker, error)
}

type Client struct {
	market MarketData
	feeBps float64
	log    *logger.Logger

	mu     sync.Mutex
	orders map[string]models.OrderReport
	nextID int64
}

func New(market MarketData, feeBps float64, log *logger.Logger) *Client {
	return &Client{
		market: market,
		feeBps: feeBps,
		log:    log,
		orders: make(map[string]models.OrderReport),
	}
}

func (c *Client) GetSymbolRules(ctx context.Context, symbol string) (exchange.SymbolRules, error) {
	return c.market.GetSymbolRules(ctx, symbol)
}

func (c *Client) GetBestBidAsk(ctx context.Context, symbol string) (exchange.BookTicker, error) {
	return c.market.GetBestBidAsk(ctx, symbol)
}

func (c *Client) SubmitOrder(ctx context.Context, intent models.OrderIntent) (models.OrderReport, error) {
	c.mu.Lock()
	if _, ok := c.orders[intent.Token]; ok {
		c.mu.Unlock()
		return models.OrderReport{}, exchange.ErrDuplicateToken
	}
	c.mu.Unlock()

	book, err := c.market.GetBestBidAsk(ctx, intent.Symbol)
	if err != nil {
		return models.OrderReport{}, err
	}

	rules, err := c.market.GetSymbolRules(ctx, intent.Symbol)
	if err != nil {
		return models.OrderReport{}, err
	}

	// A buy lifts the ask, a sell hits the bid.
	price := book.Ask
	if intent.Side == models.OrderSideSell {
		price = book.Bid
	}
	if price <= 0 {
		return models.OrderReport{}, &exchange.RejectionError{Code: -1, Msg: "no liquidity"}
	}

	qty := intent.Quantity
	if qty <= 0 {
		qty = intent.Notional / price
	}
	if qty <= 0 {
		return models.OrderReport{}, &exchange.RejectionError{Code: -1, Msg: "zero quantity"}
	}

	fee := qty * price * c.feeBps / 10000

	c.mu.Lock()
	c.nextID++
	report := models.OrderReport{
		OrderID:       fmt.Sprintf("paper-%d", c.nextID),
		ClientOrderID: intent.Token,
		Symbol:        intent.Symbol,
		Side:          intent.Side,
		Status:        models.OrderStatusFilled,
		ExecutedQty:   qty,
		CumQuoteQty:   qty * price,
		Fills: []models.FillPart{{
			Price:    price,
			Qty:      qty,
			Fee:      fee,
			FeeAsset: rules.QuoteAsset,
		}},
	}
	c.orders[intent.Token] = report
	c.mu.Unlock()

	c.log.WithComponent("paper").WithFields(logrus.Fields{
		"symbol": intent.Symbol,
		"side":   intent.Side,
		"qty":    qty,
		"price":  price,
	}).Info("simulated fill")

	return report, nil
}

func (c *Client) GetOrderStatus(ctx context.Context, symbol, clientOrderID string) (models.OrderReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	report, ok := c.orders[clientOrderID]
	if !ok {
		return models.OrderReport{}, exchange.ErrOrderNotFound
	}
	return report, nil
}
