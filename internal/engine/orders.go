package engine

import (
	"context"

	"github.com/sirupsen/logrus"

	"tradebot/internal/journal"
	"tradebot/internal/models"
	"tradebot/internal/risk"
)

// execute turns one decided action into order flow and state mutation.
// Every mutation is persisted before the worker moves to its next tick.
func (e *Engine) execute(ctx context.Context, symbol string, p *models.Position, sig models.Signal, action models.PositionAction) {
	switch action.Kind {
	case models.ActionOpen:
		e.openPosition(ctx, symbol, sig, action)
	case models.ActionPyramid:
		e.addLeg(ctx, symbol, p, action, models.LegRolePyramid, "pyr")
	case models.ActionAverageDown:
		e.addLeg(ctx, symbol, p, action, models.LegRoleAverageDown, "avg")
	case models.ActionPartialExit:
		e.reducePosition(ctx, symbol, p, action.Fraction*p.Qty(), "exit", "partial_exit")
	case models.ActionStopExit:
		e.reducePosition(ctx, symbol, p, p.Qty(), "stop", action.Reason)
	case models.ActionTrailUpdate:
		e.raiseStop(symbol, p, action.NewStop)
	}
}

func (e *Engine) openPosition(ctx context.Context, symbol string, sig models.Signal, action models.PositionAction) {
	intent := models.OrderIntent{
		Symbol:   symbol,
		Side:     sig.Side.EntrySide(),
		Notional: action.Notional,
		Token:    e.nextToken(symbol, "entry"),
	}

	res, ok := e.submit(ctx, intent)
	if !ok {
		e.clearDeal(symbol)
		return
	}

	bracket, err := risk.ComputeInitialBracket(res.AvgPrice, sig.ATR, sig.Side, e.cfg.Risk.KSl, e.cfg.Risk.RR)
	if err != nil {
		// The fill landed; protect it with the signal's own levels
		// rather than holding an unbracketed position.
		e.logEntry(symbol).WithError(err).Error("bracket computation failed, using signal levels")
		bracket = models.BracketLevels{StopLoss: sig.StopLoss, TakeProfit: sig.TakeProf}
	}

	p := models.NewPosition(symbol, sig.Side, res.AvgPrice, res.Qty, bracket, e.now())
	p.Legs[0].OrderID = res.OrderID

	e.mu.Lock()
	e.entries[symbol] = &entryTally{cost: res.AvgPrice * res.Qty, qty: res.Qty}
	e.mu.Unlock()

	e.setPosition(symbol, p)
	e.persist(symbol, p)

	e.logEntry(symbol).WithFields(logrus.Fields{
		"qty":         res.Qty,
		"avg_price":   res.AvgPrice,
		"stop":        bracket.StopLoss,
		"take_profit": bracket.TakeProfit,
	}).Info("position opened")
}

func (e *Engine) addLeg(ctx context.Context, symbol string, p *models.Position, action models.PositionAction, role models.LegRole, kind string) {
	intent := models.OrderIntent{
		Symbol:   symbol,
		Side:     p.Side.EntrySide(),
		Notional: action.Notional,
		Token:    e.nextToken(symbol, kind),
	}

	res, ok := e.submit(ctx, intent)
	if !ok {
		return
	}

	e.mu.Lock()
	tally, ok := e.entries[symbol]
	if !ok {
		tally = &entryTally{}
		for _, leg := range p.Legs {
			tally.cost += leg.Price * leg.Qty
			tally.qty += leg.Qty
		}
		e.entries[symbol] = tally
	}
	tally.cost += res.AvgPrice * res.Qty
	tally.qty += res.Qty
	expected := tally.cost / tally.qty
	e.mu.Unlock()

	p.AddLeg(models.PositionLeg{
		Price:     res.AvgPrice,
		Qty:       res.Qty,
		Timestamp: e.now(),
		Role:      role,
		OrderID:   res.OrderID,
	})

	if err := p.CheckAvgPrice(expected, e.cfg.Risk.AvgPriceTolerance); err != nil {
		e.logEntry(symbol).WithError(err).Error("average entry diverged after leg fill, restoring persisted position")
		e.reload(symbol)
		return
	}

	e.persist(symbol, p)

	e.logEntry(symbol).WithFields(logrus.Fields{
		"role":      role,
		"qty":       res.Qty,
		"avg_price": p.AvgEntryPrice(),
	}).Info("leg added")
}

func (e *Engine) reducePosition(ctx context.Context, symbol string, p *models.Position, qty float64, kind, reason string) {
	if qty <= 0 {
		return
	}

	intent := models.OrderIntent{
		Symbol:     symbol,
		Side:       p.Side.ExitSide(),
		Quantity:   qty,
		Token:      e.nextToken(symbol, kind),
		ReduceOnly: true,
	}

	res, ok := e.submit(ctx, intent)
	if !ok {
		return
	}

	if err := p.Reduce(res.Qty); err != nil {
		e.logEntry(symbol).WithError(err).Error("exit fill exceeds position, restoring persisted position")
		e.reload(symbol)
		return
	}

	e.mu.Lock()
	tally, ok := e.exits[symbol]
	if !ok {
		tally = &exitTally{}
		e.exits[symbol] = tally
	}
	tally.quote += res.AvgPrice * res.Qty
	tally.qty += res.Qty
	tally.fees += res.Fee
	e.mu.Unlock()

	closed := p.IsClosed()
	if !closed {
		// Lot-size rounding can strand a remainder below the minimum
		// order quantity. It can never be sold, so the position counts
		// as closed.
		if rules, err := e.exec.Rules(ctx, symbol); err == nil && p.Qty() < rules.MinQty {
			closed = true
		}
	}
	if closed {
		e.closeOut(ctx, symbol, p, *tally, reason)
		return
	}

	e.persist(symbol, p)

	e.logEntry(symbol).WithFields(logrus.Fields{
		"qty":       res.Qty,
		"avg_price": res.AvgPrice,
		"remaining": p.Qty(),
		"reason":    reason,
	}).Info("position reduced")
}

func (e *Engine) closeOut(ctx context.Context, symbol string, p *models.Position, tally exitTally, reason string) {
	entryAvg := p.AvgEntryPrice()
	exitAvg := entryAvg
	if tally.qty > 0 {
		exitAvg = tally.quote / tally.qty
	}

	pnl := (exitAvg - entryAvg) * tally.qty
	pnlPct := 0.0
	if entryAvg > 0 {
		pnlPct = (exitAvg - entryAvg) / entryAvg
	}
	if p.Side == models.PositionSideShort {
		pnl = -pnl
		pnlPct = -pnlPct
	}
	pnl -= tally.fees

	trade := journal.ClosedTrade{
		Symbol:     symbol,
		Side:       p.Side,
		EntryPrice: entryAvg,
		ExitPrice:  exitAvg,
		Qty:        tally.qty,
		PnL:        pnl,
		PnLPct:     pnlPct,
		Reason:     reason,
		OpenedAt:   p.OpenedAt,
		ClosedAt:   e.now(),
	}

	if err := e.journal.Record(ctx, trade); err != nil {
		e.logEntry(symbol).WithError(err).Error("journal write failed")
	}

	e.setPosition(symbol, nil)
	e.persist(symbol, nil)
	e.clearDeal(symbol)

	e.mu.Lock()
	e.realized += pnl
	realized := e.realized
	e.mu.Unlock()
	e.metrics.Equity.Set(e.cfg.Trading.Capital + realized)

	e.emit(Event{Type: EventTradeClosed, Symbol: symbol, Trade: &trade, At: e.now()})

	e.logEntry(symbol).WithFields(logrus.Fields{
		"pnl":     pnl,
		"pnl_pct": pnlPct,
		"reason":  reason,
	}).Info("position closed")
}

func (e *Engine) raiseStop(symbol string, p *models.Position, newStop float64) {
	p.StopPrice = newStop
	e.persist(symbol, p)

	e.emit(Event{Type: EventStopMoved, Symbol: symbol, At: e.now()})
	e.logEntry(symbol).WithField("stop", newStop).Info("trailing stop moved")
}

// submit routes an intent through the executor and translates the result
// into metrics and events. The boolean reports whether any quantity
// filled and state should mutate.
func (e *Engine) submit(ctx context.Context, intent models.OrderIntent) (models.FillResult, bool) {
	res := e.exec.Execute(ctx, intent)
	e.metrics.Orders.WithLabelValues(string(intent.Side), string(res.Status)).Inc()

	switch res.Status {
	case models.FillStatusBlocked:
		e.metrics.Blocks.WithLabelValues(res.Reason).Inc()
		e.emit(Event{Type: EventOrderBlocked, Symbol: intent.Symbol, Fill: &res, At: e.now()})
		return res, false
	case models.FillStatusRejected:
		e.emit(Event{Type: EventOrderRejected, Symbol: intent.Symbol, Fill: &res, At: e.now()})
		return res, false
	}

	e.emit(Event{Type: EventOrderFilled, Symbol: intent.Symbol, Fill: &res, At: e.now()})
	return res, res.Filled()
}

func (e *Engine) persist(symbol string, p *models.Position) {
	if err := e.store.Upsert(symbol, p); err != nil {
		e.logEntry(symbol).WithError(err).Error("state persistence failed")
	}
}

// reload discards the in-memory position in favor of the last persisted
// snapshot. Used when a fill application fails its consistency check.
func (e *Engine) reload(symbol string) {
	positions, err := e.store.Load()
	if err != nil {
		e.logEntry(symbol).WithError(err).Error("state reload failed")
		return
	}
	e.setPosition(symbol, positions[symbol])
	e.resyncEntries(symbol, positions[symbol])
}

func (e *Engine) logEntry(symbol string) *logrus.Entry {
	return e.log.WithComponent("engine").WithField("symbol", symbol)
}
