package position

import "tradebot/internal/models"

// TrailingConfig governs ATR-based stop raising.
type TrailingConfig struct {
	ActivationPct float64
	ATRMultiplier float64
}

// TrailingStopManager raises (never lowers, for a long) the protective stop
// once the position is sufficiently in profit. It touches only the
// stop-related fields of the position.
type TrailingStopManager struct {
	cfg TrailingConfig
}

func NewTrailingStopManager(cfg TrailingConfig) *TrailingStopManager {
	return &TrailingStopManager{cfg: cfg}
}

// Evaluate updates the favorable-price watermark and proposes a stop raise
// when the ATR-trailed candidate beats the stored stop. While unrealized
// return is below the activation threshold nothing is touched, so the stop
// can never drop below the initial bracket level.
func (t *TrailingStopManager) Evaluate(p *models.Position, price, atr float64) models.PositionAction {
	if p == nil || p.IsClosed() || price <= 0 || atr <= 0 {
		return models.NoAction()
	}
	if p.UnrealizedPct(price) < t.cfg.ActivationPct {
		return models.NoAction()
	}

	if p.Side == models.PositionSideShort {
		if p.HighWatermark == 0 || price < p.HighWatermark {
			p.HighWatermark = price
		}
		candidate := p.HighWatermark + t.cfg.ATRMultiplier*atr
		if p.StopPrice == 0 || candidate < p.StopPrice {
			return models.TrailUpdateAction(candidate)
		}
		return models.NoAction()
	}

	if price > p.HighWatermark {
		p.HighWatermark = price
	}
	candidate := p.HighWatermark - t.cfg.ATRMultiplier*atr
	if candidate > p.StopPrice {
		return models.TrailUpdateAction(candidate)
	}
	return models.NoAction()
}
