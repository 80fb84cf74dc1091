package engine

import (
	"time"

	"tradebot/internal/journal"
	"tradebot/internal/models"
)

type EventType string

const (
	EventOrderFilled   EventType = "order_filled"
	EventOrderBlocked  EventType = "order_blocked"
	EventOrderRejected EventType = "order_rejected"
	EventStopMoved     EventType = "stop_moved"
	EventTradeClosed   EventType = "trade_closed"
)

// Event is one lifecycle notification. Fill is set for order outcomes,
// Trade for closes.
type Event struct {
	Type   EventType
	Symbol string
	Fill   *models.FillResult
	Trade  *journal.ClosedTrade
	At     time.Time
}

func (e *Engine) emit(ev Event) {
	select {
	case e.events <- ev:
	default:
		// Consumers are optional; trading never waits on them.
	}
}
