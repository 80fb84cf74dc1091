package models

type OrderSide string
type OrderType string
type OrderStatus string
type PositionSide string
type LegRole string
type FillStatus string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"

	OrderTypeMarket OrderType = "MARKET"

	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCanceled        OrderStatus = "CANCELED"
	OrderStatusRejected        OrderStatus = "REJECTED"

	PositionSideLong  PositionSide = "LONG"
	PositionSideShort PositionSide = "SHORT"

	LegRoleInitial     LegRole = "initial"
	LegRolePyramid     LegRole = "pyramid"
	LegRoleAverageDown LegRole = "average_down"

	FillStatusFilled                 FillStatus = "FILLED"
	FillStatusPartiallyFilledTimeout FillStatus = "PARTIALLY_FILLED_TIMEOUT"
	FillStatusRejected               FillStatus = "REJECTED"
	FillStatusBlocked                FillStatus = "BLOCKED"
)

// Block/reject reason codes carried on FillResult.
const (
	ReasonKillSwitch       = "kill_switch"
	ReasonSlippageExceeded = "slippage_exceeded"
	ReasonBelowMinNotional = "below_min_notional"
	ReasonExchangeRejected = "exchange_rejected"
	ReasonSubmitFailed     = "submit_failed"
)

// EntrySide maps a position side to the order side that grows it.
func (s PositionSide) EntrySide() OrderSide {
	if s == PositionSideShort {
		return OrderSideSell
	}
	return OrderSideBuy
}

// ExitSide maps a position side to the order side that reduces it.
func (s PositionSide) ExitSide() OrderSide {
	if s == PositionSideShort {
		return OrderSideBuy
	}
	return OrderSideSell
}

// Signal is the strategy's output for one evaluation tick. Indicator
// computation happens upstream; the engine never recomputes it.
type Signal struct {
	Symbol   string       `json:"symbol"`
	Side     PositionSide `json:"side"`
	Score    float64      `json:"score"`
	MaxScore float64      `json:"max_score"`
	ATR      float64      `json:"atr"`
	Close    float64      `json:"close"`
	StopLoss float64      `json:"stop_loss,omitempty"`
	TakeProf float64      `json:"take_profit,omitempty"`
}

// OrderIntent is the executor's input. Exactly one of Quantity (base units)
// or Notional (quote units) is set. Token is the client order id, stable
// across retries of the same logical order.
type OrderIntent struct {
	Symbol     string    `json:"symbol"`
	Side       OrderSide `json:"side"`
	Quantity   float64   `json:"quantity,omitempty"`
	Notional   float64   `json:"notional,omitempty"`
	Token      string    `json:"token"`
	ReduceOnly bool      `json:"reduce_only,omitempty"`
}

// FillResult is the aggregated outcome of submitting one OrderIntent.
type FillResult struct {
	Status   FillStatus `json:"status"`
	Reason   string     `json:"reason,omitempty"`
	OrderID  string     `json:"order_id,omitempty"`
	Token    string     `json:"token"`
	Qty      float64    `json:"qty"`
	AvgPrice float64    `json:"avg_price"`
	Fee      float64    `json:"fee"`
	FeeAsset string     `json:"fee_asset,omitempty"`
}

// Filled reports whether any quantity executed.
func (r FillResult) Filled() bool {
	return r.Qty > 0 && (r.Status == FillStatusFilled || r.Status == FillStatusPartiallyFilledTimeout)
}

// BracketLevels is the initial stop-loss / take-profit pair.
type BracketLevels struct {
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
}

// FillPart is one execution report line belonging to an order.
type FillPart struct {
	Price    float64 `json:"price"`
	Qty      float64 `json:"qty"`
	Fee      float64 `json:"fee"`
	FeeAsset string  `json:"fee_asset"`
}

// OrderReport is the exchange's view of one order, possibly spanning
// several fills that share the same client order id.
type OrderReport struct {
	OrderID       string      `json:"order_id"`
	ClientOrderID string      `json:"client_order_id"`
	Symbol        string      `json:"symbol"`
	Side          OrderSide   `json:"side"`
	Status        OrderStatus `json:"status"`
	ExecutedQty   float64     `json:"executed_qty"`
	CumQuoteQty   float64     `json:"cum_quote_qty"`
	Fills         []FillPart  `json:"fills,omitempty"`
}
