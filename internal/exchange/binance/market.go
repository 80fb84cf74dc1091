package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"tradebot/internal/exchange"
)

func (c *Client) GetSymbolRules(ctx context.Context, symbol string) (exchange.SymbolRules, error) {
	c.rulesMu.Lock()
	if cached, ok := c.rules[symbol]; ok {
		c.rulesMu.Unlock()
		return cached, nil
	}
	c.rulesMu.Unlock()

	params := url.Values{}
	params.Set("symbol", symbol)

	var resp exchangeInfo

	if err := c.doRequest(ctx, http.MethodGet, "/api/v3/exchangeInfo", params, false, &resp); err != nil {
		return exchange.SymbolRules{}, err
	}

	if len(resp.Symbols) == 0 {
		return exchange.SymbolRules{}, fmt.Errorf("symbol not found: %s", symbol)
	}

	info := resp.Symbols[0]
	rules := exchange.SymbolRules{
		BaseAsset:  info.BaseAsset,
		QuoteAsset: info.QuoteAsset,
	}

	for _, f := range info.Filters {
		switch f.FilterType {
		case "PRICE_FILTER":
			tick, err := strconv.ParseFloat(f.TickSize, 64)
			if err != nil {
				return exchange.SymbolRules{}, fmt.Errorf("invalid tickSize=%q: %w", f.TickSize, err)
			}
			rules.TickSize = tick
		case "LOT_SIZE":
			step, err := strconv.ParseFloat(f.StepSize, 64)
			if err != nil {
				return exchange.SymbolRules{}, fmt.Errorf("invalid stepSize=%q: %w", f.StepSize, err)
			}
			minQty, err := strconv.ParseFloat(f.MinQty, 64)
			if err != nil {
				return exchange.SymbolRules{}, fmt.Errorf("invalid minQty=%q: %w", f.MinQty, err)
			}
			rules.StepSize = step
			rules.MinQty = minQty
		case "NOTIONAL", "MIN_NOTIONAL":
			minNotional, err := strconv.ParseFloat(f.MinNotional, 64)
			if err != nil {
				return exchange.SymbolRules{}, fmt.Errorf("invalid minNotional=%q: %w", f.MinNotional, err)
			}
			rules.MinNotional = minNotional
		}
	}

	if rules.StepSize == 0 {
		return exchange.SymbolRules{}, fmt.Errorf("no lot size filter for symbol: %s", symbol)
	}

	c.rulesMu.Lock()
	c.rules[symbol] = rules
	c.rulesMu.Unlock()

	return rules, nil
}

func (c *Client) GetBestBidAsk(ctx context.Context, symbol string) (exchange.BookTicker, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	var resp bookTickerResponse

	if err := c.doRequest(ctx, http.MethodGet, "/api/v3/ticker/bookTicker", params, false, &resp); err != nil {
		return exchange.BookTicker{}, err
	}

	bid, err := strconv.ParseFloat(resp.BidPrice, 64)
	if err != nil {
		return exchange.BookTicker{}, fmt.Errorf("invalid bidPrice=%q: %w", resp.BidPrice, err)
	}

	ask, err := strconv.ParseFloat(resp.AskPrice, 64)
	if err != nil {
		return exchange.BookTicker{}, fmt.Errorf("invalid askPrice=%q: %w", resp.AskPrice, err)
	}

	return exchange.BookTicker{Bid: bid, Ask: ask}, nil
}
