package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tradebot/internal/exchange"
)

func (c *Client) doRequest(ctx context.Context, method, path string, params url.Values, auth bool, out any) error {
	if params == nil {
		params = url.Values{}
	}

	if auth {
		params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
		params.Set("recvWindow", "5000")
		params.Set("signature", sign(c.secret, params.Encode()))
	}

	urlStr := c.baseURL + path
	if len(params) > 0 {
		urlStr += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	if auth {
		req.Header.Set("X-MBX-APIKEY", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return mapAPIError(data, resp.Status)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// mapAPIError translates the error envelope into the adapter contract.
// Anything outside the known codes stays a plain error and remains
// retryable by the caller.
func mapAPIError(data []byte, status string) error {
	var apiErr apiError
	if err := json.Unmarshal(data, &apiErr); err != nil || apiErr.Code == 0 {
		return fmt.Errorf("http status %s", status)
	}

	switch {
	case apiErr.Code == -2013:
		return exchange.ErrOrderNotFound
	case strings.Contains(apiErr.Msg, "Duplicate order"):
		return exchange.ErrDuplicateToken
	case apiErr.Code == -1013 || apiErr.Code == -2010:
		return &exchange.RejectionError{Code: apiErr.Code, Msg: apiErr.Msg}
	}

	return fmt.Errorf("api error: %s (code=%d)", apiErr.Msg, apiErr.Code)
}
