package position

import (
	"sort"

	"tradebot/internal/models"
)

// ExitLevel maps a profit threshold to the fraction of the remaining
// quantity to shed when it is first crossed.
type ExitLevel struct {
	ProfitPct float64
	Fraction  float64
}

// PartialExitManager fires staged profit-taking exits. Each level fires at
// most once per position; fractions apply to the quantity remaining at
// trigger time, so successive exits compound down.
type PartialExitManager struct {
	levels []ExitLevel
}

func NewPartialExitManager(levels []ExitLevel) *PartialExitManager {
	sorted := make([]ExitLevel, len(levels))
	copy(sorted, levels)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ProfitPct < sorted[j].ProfitPct })
	return &PartialExitManager{levels: sorted}
}

// Evaluate finds the highest untriggered level at or below the current
// unrealized return, marks it triggered, and produces PARTIAL_EXIT.
func (m *PartialExitManager) Evaluate(p *models.Position, price float64) models.PositionAction {
	if p == nil || p.IsClosed() || price <= 0 {
		return models.NoAction()
	}
	pct := p.UnrealizedPct(price)

	for i := len(m.levels) - 1; i >= 0; i-- {
		level := m.levels[i]
		if pct < level.ProfitPct {
			continue
		}
		if p.HasTriggeredLevel(level.ProfitPct) {
			continue
		}
		p.MarkLevelTriggered(level.ProfitPct)
		return models.PartialExitAction(level.ProfitPct, level.Fraction)
	}
	return models.NoAction()
}
