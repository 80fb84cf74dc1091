package exchange

import (
	"context"

	"tradebot/internal/models"
)

// SymbolRules are the exchange trading filters for one symbol. Read-mostly;
// safe to cache once populated.
type SymbolRules struct {
	StepSize    float64
	MinQty      float64
	MinNotional float64
	TickSize    float64
	BaseAsset   string
	QuoteAsset  string
}

// BookTicker is the current best bid/ask for one symbol.
type BookTicker struct {
	Bid float64
	Ask float64
}

// Mid is the bid/ask midpoint, 0 when either side is missing.
func (b BookTicker) Mid() float64 {
	if b.Bid <= 0 || b.Ask <= 0 {
		return 0
	}
	return (b.Bid + b.Ask) / 2
}

// SpreadBps is the spread expressed in basis points of the midpoint.
func (b BookTicker) SpreadBps() float64 {
	mid := b.Mid()
	if mid <= 0 {
		return 0
	}
	return (b.Ask - b.Bid) / mid * 10000
}

// Client is the narrow adapter contract the executor consumes. SubmitOrder
// carries the intent's token as the exchange-side client order id, so a
// retried submission cannot create a duplicate order; GetOrderStatus
// resolves the outcome of a submission whose response was lost.
type Client interface {
	GetSymbolRules(ctx context.Context, symbol string) (SymbolRules, error)
	GetBestBidAsk(ctx context.Context, symbol string) (BookTicker, error)
	SubmitOrder(ctx context.Context, intent models.OrderIntent) (models.OrderReport, error)
	GetOrderStatus(ctx context.Context, symbol, clientOrderID string) (models.OrderReport, error)
}
