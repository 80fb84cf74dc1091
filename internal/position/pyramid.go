package position

import (
	"time"

	"tradebot/internal/models"
)

// PyramidConfig governs adding to a winning position.
type PyramidConfig struct {
	MinProfitPct    float64
	MaxLegs         int
	SizeProgression []float64
	MinInterval     time.Duration
}

// AveragingConfig governs adding to a losing position.
type AveragingConfig struct {
	MaxLossPct   float64
	MaxLegs      int
	SizeFraction float64
	// MaxAddedLoss caps the projected worst-case loss (in quote units) the
	// position may carry after the added leg, measured against the current
	// stop.
	MaxAddedLoss float64
}

// Manager decides pyramiding and averaging-down legs for an open position.
// Decision logic is pure; wall time is injected for testability.
type Manager struct {
	pyramid   PyramidConfig
	averaging AveragingConfig
	now       func() time.Time
}

func NewManager(pyramid PyramidConfig, averaging AveragingConfig) *Manager {
	return &Manager{pyramid: pyramid, averaging: averaging, now: time.Now}
}

// WithClock replaces the wall clock, for tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Evaluate produces PYRAMID, AVERAGE_DOWN or NONE for one tick.
// baseNotional is the quote size the position was opened with; leg sizes
// derive from it.
func (m *Manager) Evaluate(p *models.Position, price, baseNotional float64) models.PositionAction {
	if p == nil || p.IsClosed() || baseNotional <= 0 {
		return models.NoAction()
	}
	if !m.intervalElapsed(p) {
		return models.NoAction()
	}

	pct := p.UnrealizedPct(price)
	if pct >= m.pyramid.MinProfitPct {
		if size := m.pyramidSize(p, baseNotional); size > 0 {
			return models.PyramidAction(size)
		}
		return models.NoAction()
	}
	if pct <= m.averaging.MaxLossPct {
		if size := m.averagingSize(p, baseNotional); size > 0 {
			return models.AverageDownAction(size)
		}
	}
	return models.NoAction()
}

// intervalElapsed enforces the minimum spacing since the last leg of any
// role, so pyramiding and averaging cannot leapfrog each other.
func (m *Manager) intervalElapsed(p *models.Position) bool {
	if p.LastLegAt.IsZero() {
		return true
	}
	return m.now().Sub(p.LastLegAt) >= m.pyramid.MinInterval
}

// pyramidSize returns the next pyramid leg's quote size, progressively
// smaller and never larger than the previous leg.
func (m *Manager) pyramidSize(p *models.Position, baseNotional float64) float64 {
	if p.PyramidCount >= m.pyramid.MaxLegs {
		return 0
	}
	idx := p.PyramidCount
	if idx >= len(m.pyramid.SizeProgression) {
		return 0
	}
	size := baseNotional * m.pyramid.SizeProgression[idx]
	if prev := p.LastLegNotional(); prev > 0 && size > prev {
		size = prev
	}
	return size
}

// averagingSize returns the next averaging-down leg's quote size, or 0 when
// the leg cap or the worst-case-loss ceiling forbids it.
func (m *Manager) averagingSize(p *models.Position, baseNotional float64) float64 {
	if p.AveragingCount >= m.averaging.MaxLegs {
		return 0
	}
	size := baseNotional * m.averaging.SizeFraction
	if size <= 0 {
		return 0
	}
	if m.averaging.MaxAddedLoss > 0 {
		avg := p.AvgEntryPrice()
		stop := p.StopPrice
		if avg > 0 && stop > 0 {
			lossFrac := (avg - stop) / avg
			if p.Side == models.PositionSideShort {
				lossFrac = (stop - avg) / avg
			}
			if lossFrac > 0 {
				projected := (p.Notional() + size) * lossFrac
				if projected > m.averaging.MaxAddedLoss {
					return 0
				}
			}
		}
	}
	return size
}
