package executor

import (
	"github.com/shopspring/decimal"
)

// RoundToStep floors a quantity to the symbol's lot-size step. Computed in
// decimal so a step like 0.001 cannot round up through float drift.
func RoundToStep(value, step float64) float64 {
	if step <= 0 {
		return value
	}
	v := decimal.NewFromFloat(value)
	s := decimal.NewFromFloat(step)
	f, _ := v.Div(s).Floor().Mul(s).Float64()
	return f
}

// RoundToTick floors a price to the symbol's tick size.
func RoundToTick(price, tick float64) float64 {
	return RoundToStep(price, tick)
}
