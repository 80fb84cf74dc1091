package binance

import (
	"net/http"
	"time"

	"tradebot/internal/exchange"
	"tradebot/internal/logger"
)

func New(baseURL, apiKey, secret string, log *logger.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		secret:  secret,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log:   log,
		rules: make(map[string]exchange.SymbolRules),
	}
}
