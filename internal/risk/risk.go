package risk

import (
	"errors"
	"fmt"

	"tradebot/internal/models"
)

// ErrInvalidRiskParameters rejects a bracket computation whose inputs make
// no sense (non-positive ATR or stop multiplier).
var ErrInvalidRiskParameters = errors.New("invalid risk parameters")

// ComputeInitialBracket places the initial stop-loss/take-profit pair
// around the entry price using an ATR-scaled stop distance.
//
// Long:  SL = entry - kSl*atr, TP = entry + rr*kSl*atr.
// Short: mirrored.
func ComputeInitialBracket(entry, atr float64, side models.PositionSide, kSl, rr float64) (models.BracketLevels, error) {
	if atr <= 0 || kSl <= 0 {
		return models.BracketLevels{}, fmt.Errorf("%w: atr=%f kSl=%f", ErrInvalidRiskParameters, atr, kSl)
	}
	if entry <= 0 || rr <= 0 {
		return models.BracketLevels{}, fmt.Errorf("%w: entry=%f rr=%f", ErrInvalidRiskParameters, entry, rr)
	}

	distance := kSl * atr
	if side == models.PositionSideShort {
		return models.BracketLevels{
			StopLoss:   entry + distance,
			TakeProfit: entry - rr*distance,
		}, nil
	}
	return models.BracketLevels{
		StopLoss:   entry - distance,
		TakeProfit: entry + rr*distance,
	}, nil
}
