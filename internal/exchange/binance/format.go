package binance

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// formatWithStep renders a value snapped down to the filter step, with
// exactly the number of decimals the step carries. The API rejects
// quantities with excess precision.
func formatWithStep(value, step float64) string {
	if step <= 0 {
		return strconv.FormatFloat(value, 'f', -1, 64)
	}

	v := decimal.NewFromFloat(value)
	s := decimal.NewFromFloat(step)
	snapped := v.Div(s).Floor().Mul(s)

	return snapped.StringFixed(int32(s.Exponent() * -1))
}
