package models

import (
	"fmt"
	"math"
	"time"
)

// PositionLeg is one fill event contributing to a position. Legs are
// appended, never mutated.
type PositionLeg struct {
	Price     float64   `json:"price"`
	Qty       float64   `json:"qty"`
	Timestamp time.Time `json:"timestamp"`
	Role      LegRole   `json:"role"`
	OrderID   string    `json:"order_id,omitempty"`
}

// Position is an open holding for one symbol. Quantity and average entry
// price are derived from the legs so they cannot drift from the fill
// history.
type Position struct {
	Symbol          string       `json:"symbol"`
	Side            PositionSide `json:"side"`
	Legs            []PositionLeg `json:"legs"`
	StopPrice       float64      `json:"stop_price"`
	InitialStop     float64      `json:"initial_stop"`
	TakeProfit      float64      `json:"take_profit"`
	TriggeredLevels []float64    `json:"triggered_levels,omitempty"`
	HighWatermark   float64      `json:"high_watermark"`
	PyramidCount    int          `json:"pyramid_count"`
	AveragingCount  int          `json:"averaging_count"`
	LastLegAt       time.Time    `json:"last_leg_at"`
	OpenedAt        time.Time    `json:"opened_at"`
	ExitedQty       float64      `json:"exited_qty"`
}

// NewPosition opens a position from its initial fill.
func NewPosition(symbol string, side PositionSide, price, qty float64, bracket BracketLevels, ts time.Time) *Position {
	p := &Position{
		Symbol:        symbol,
		Side:          side,
		StopPrice:     bracket.StopLoss,
		InitialStop:   bracket.StopLoss,
		TakeProfit:    bracket.TakeProfit,
		HighWatermark: price,
		OpenedAt:      ts,
	}
	p.AddLeg(PositionLeg{Price: price, Qty: qty, Timestamp: ts, Role: LegRoleInitial})
	return p
}

// AddLeg appends a fill leg and advances the leg counters.
func (p *Position) AddLeg(leg PositionLeg) {
	p.Legs = append(p.Legs, leg)
	p.LastLegAt = leg.Timestamp
	switch leg.Role {
	case LegRolePyramid:
		p.PyramidCount++
	case LegRoleAverageDown:
		p.AveragingCount++
	}
}

// Qty is the remaining base quantity: everything bought minus everything
// shed through partial exits or a stop exit.
func (p *Position) Qty() float64 {
	var total float64
	for _, leg := range p.Legs {
		total += leg.Qty
	}
	return total - p.ExitedQty
}

// AvgEntryPrice is the quantity-weighted average entry price over all legs.
func (p *Position) AvgEntryPrice() float64 {
	var cost, qty float64
	for _, leg := range p.Legs {
		cost += leg.Price * leg.Qty
		qty += leg.Qty
	}
	if qty == 0 {
		return 0
	}
	return cost / qty
}

// Notional is the entry-priced quote value of the remaining quantity.
func (p *Position) Notional() float64 {
	return p.AvgEntryPrice() * p.Qty()
}

// UnrealizedPct is the signed unrealized return against the average entry
// price at the given price. Positive means the position is in profit for
// its side.
func (p *Position) UnrealizedPct(price float64) float64 {
	avg := p.AvgEntryPrice()
	if avg <= 0 {
		return 0
	}
	pct := (price - avg) / avg
	if p.Side == PositionSideShort {
		return -pct
	}
	return pct
}

// Reduce sheds quantity after an exit fill. It fails rather than let the
// position go negative.
func (p *Position) Reduce(qty float64) error {
	remaining := p.Qty()
	if qty > remaining+qtyEpsilon {
		return fmt.Errorf("reduce %f exceeds remaining %f for %s", qty, remaining, p.Symbol)
	}
	p.ExitedQty += qty
	return nil
}

// IsClosed reports whether the remaining quantity has reached zero.
func (p *Position) IsClosed() bool {
	return p.Qty() <= qtyEpsilon
}

// HasTriggeredLevel reports whether a partial-exit level already fired.
func (p *Position) HasTriggeredLevel(level float64) bool {
	for _, l := range p.TriggeredLevels {
		if math.Abs(l-level) < 1e-12 {
			return true
		}
	}
	return false
}

// MarkLevelTriggered records a fired partial-exit level. Idempotent.
func (p *Position) MarkLevelTriggered(level float64) {
	if p.HasTriggeredLevel(level) {
		return
	}
	p.TriggeredLevels = append(p.TriggeredLevels, level)
}

// LastLegQty is the quantity of the most recent entry-side leg.
func (p *Position) LastLegQty() float64 {
	if len(p.Legs) == 0 {
		return 0
	}
	return p.Legs[len(p.Legs)-1].Qty
}

// LastLegNotional is the quote value of the most recent entry-side leg.
func (p *Position) LastLegNotional() float64 {
	if len(p.Legs) == 0 {
		return 0
	}
	last := p.Legs[len(p.Legs)-1]
	return last.Price * last.Qty
}

// CheckAvgPrice verifies that the leg-derived average entry price agrees
// with an expected value within tolerance. Used by the coordinator to catch
// fill applications that would corrupt the position.
func (p *Position) CheckAvgPrice(expected, tolerance float64) error {
	avg := p.AvgEntryPrice()
	if expected <= 0 || avg <= 0 {
		return nil
	}
	if math.Abs(avg-expected)/expected > tolerance {
		return fmt.Errorf("avg entry %f diverges from expected %f beyond tolerance %f", avg, expected, tolerance)
	}
	return nil
}

const qtyEpsilon = 1e-9
