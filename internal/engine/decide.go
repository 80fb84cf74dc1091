package engine

import (
	"tradebot/internal/models"
	"tradebot/internal/risk"
)

// decide maps the current position and signal to at most one action.
// Capital protection outranks profit taking, profit taking outranks
// adding, and a trail adjustment only happens on an otherwise idle tick.
func (e *Engine) decide(p *models.Position, sig models.Signal) models.PositionAction {
	if p == nil || p.IsClosed() {
		return e.decideEntry(sig)
	}

	price := sig.Close

	if reason, hit := bracketHit(p, price); hit {
		return models.StopExitAction(reason)
	}

	if action := e.partials.Evaluate(p, price); action.Kind != models.ActionNone {
		return action
	}

	if action := e.pyramids.Evaluate(p, price, baseNotional(p)); action.Kind != models.ActionNone {
		return action
	}

	if action := e.trailing.Evaluate(p, price, sig.ATR); action.Kind != models.ActionNone {
		return action
	}

	return models.NoAction()
}

func (e *Engine) decideEntry(sig models.Signal) models.PositionAction {
	if sig.Score == 0 || sig.Side == "" || sig.ATR <= 0 {
		return models.NoAction()
	}

	params := e.sizer
	if sig.MaxScore > 0 {
		params.MaxScore = sig.MaxScore
	}

	notional := risk.KellyNotional(e.cfg.Trading.Capital, sig.Score, params)
	if notional <= 0 {
		return models.NoAction()
	}

	return models.OpenAction(notional)
}

// bracketHit reports whether the protective stop or the take profit is
// breached at the given price.
func bracketHit(p *models.Position, price float64) (string, bool) {
	if p.Side == models.PositionSideShort {
		if p.StopPrice > 0 && price >= p.StopPrice {
			return "stop_loss", true
		}
		if p.TakeProfit > 0 && price <= p.TakeProfit {
			return "take_profit", true
		}
		return "", false
	}

	if p.StopPrice > 0 && price <= p.StopPrice {
		return "stop_loss", true
	}
	if p.TakeProfit > 0 && price >= p.TakeProfit {
		return "take_profit", true
	}
	return "", false
}

// baseNotional is the quote value of the opening leg, the reference for
// add-on leg sizing.
func baseNotional(p *models.Position) float64 {
	if len(p.Legs) == 0 {
		return 0
	}
	first := p.Legs[0]
	return first.Price * first.Qty
}
