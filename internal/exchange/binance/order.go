package binance

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"tradebot/internal/models"
)

// SubmitOrder places a MARKET order with the intent token as the client
// order id, so a resubmission of the same intent cannot double-fill.
func (c *Client) SubmitOrder(ctx context.Context, intent models.OrderIntent) (models.OrderReport, error) {
	params := url.Values{}
	params.Set("symbol", intent.Symbol)
	params.Set("side", string(intent.Side))
	params.Set("type", string(models.OrderTypeMarket))
	params.Set("newClientOrderId", intent.Token)
	params.Set("newOrderRespType", "FULL")

	if intent.Quantity > 0 {
		rules, err := c.GetSymbolRules(ctx, intent.Symbol)
		if err != nil {
			return models.OrderReport{}, err
		}
		params.Set("quantity", formatWithStep(intent.Quantity, rules.StepSize))
	} else {
		params.Set("quoteOrderQty", strconv.FormatFloat(intent.Notional, 'f', 2, 64))
	}

	var resp orderResponse

	if err := c.doRequest(ctx, http.MethodPost, "/api/v3/order", params, true, &resp); err != nil {
		return models.OrderReport{}, err
	}

	return toReport(resp), nil
}

func (c *Client) GetOrderStatus(ctx context.Context, symbol, clientOrderID string) (models.OrderReport, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("origClientOrderId", clientOrderID)

	var resp orderResponse

	if err := c.doRequest(ctx, http.MethodGet, "/api/v3/order", params, true, &resp); err != nil {
		return models.OrderReport{}, err
	}

	return toReport(resp), nil
}

func toReport(resp orderResponse) models.OrderReport {
	executed, _ := strconv.ParseFloat(resp.ExecutedQty, 64)
	cumQuote, _ := strconv.ParseFloat(resp.CumQuoteQty, 64)

	report := models.OrderReport{
		OrderID:       strconv.FormatInt(resp.OrderID, 10),
		ClientOrderID: resp.ClientOrderID,
		Symbol:        resp.Symbol,
		Side:          models.OrderSide(resp.Side),
		Status:        models.OrderStatus(resp.Status),
		ExecutedQty:   executed,
		CumQuoteQty:   cumQuote,
	}

	for _, f := range resp.Fills {
		price, _ := strconv.ParseFloat(f.Price, 64)
		qty, _ := strconv.ParseFloat(f.Qty, 64)
		fee, _ := strconv.ParseFloat(f.Commission, 64)

		report.Fills = append(report.Fills, models.FillPart{
			Price:    price,
			Qty:      qty,
			Fee:      fee,
			FeeAsset: f.CommissionAsset,
		})
	}

	return report
}
