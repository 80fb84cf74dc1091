package engine

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// restore reloads persisted positions for the configured symbols. Each
// restored position gets a fresh deal id; its token sequence restarts,
// which is safe because client order ids only need to be unique, not
// contiguous.
func (e *Engine) restore() error {
	positions, err := e.store.Load()
	if err != nil {
		return fmt.Errorf("restore positions: %w", err)
	}

	configured := make(map[string]bool, len(e.cfg.Trading.Symbols))
	for _, symbol := range e.cfg.Trading.Symbols {
		configured[symbol] = true
	}

	restored := 0
	for symbol, p := range positions {
		if p == nil || p.IsClosed() {
			continue
		}
		if !configured[symbol] {
			e.logEntry(symbol).Warn("persisted position for unconfigured symbol, leaving untouched")
			continue
		}

		e.setPosition(symbol, p)
		e.resyncEntries(symbol, p)
		restored++

		e.logEntry(symbol).WithFields(logrus.Fields{
			"qty":       p.Qty(),
			"avg_price": p.AvgEntryPrice(),
			"stop":      p.StopPrice,
		}).Info("position restored")
	}

	if restored > 0 {
		e.log.WithComponent("engine").WithField("count", restored).Info("state restored")
	}

	return nil
}
