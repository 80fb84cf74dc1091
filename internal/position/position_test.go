package position

import (
	"testing"
	"time"

	"tradebot/internal/models"
)

func openLong(t *testing.T, entry, qty float64, openedAt time.Time) *models.Position {
	t.Helper()
	bracket := models.BracketLevels{StopLoss: entry * 0.97, TakeProfit: entry * 1.06}
	return models.NewPosition("BTCUSDT", models.PositionSideLong, entry, qty, bracket, openedAt)
}

func defaultManager() *Manager {
	return NewManager(
		PyramidConfig{
			MinProfitPct:    0.03,
			MaxLegs:         3,
			SizeProgression: []float64{1.0, 0.7, 0.5},
			MinInterval:     time.Hour,
		},
		AveragingConfig{
			MaxLossPct:   -0.05,
			MaxLegs:      2,
			SizeFraction: 0.5,
		},
	)
}

func TestPyramidIntervalGate(t *testing.T) {
	opened := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	pos := openLong(t, 100, 1, opened)

	m := defaultManager()

	// 30 minutes after the last leg: blocked regardless of profit.
	m.WithClock(func() time.Time { return opened.Add(30 * time.Minute) })
	if a := m.Evaluate(pos, 104, 100); a.Kind != models.ActionNone {
		t.Fatalf("30min spacing should block, got %v", a.Kind)
	}

	// 70 minutes after, +4% unrealized: permitted.
	m.WithClock(func() time.Time { return opened.Add(70 * time.Minute) })
	a := m.Evaluate(pos, 104, 100)
	if a.Kind != models.ActionPyramid {
		t.Fatalf("expected PYRAMID, got %v", a.Kind)
	}
	if a.Notional != 100 {
		t.Errorf("first pyramid leg = %f, want 100 (progression 1.0)", a.Notional)
	}
}

func TestPyramidLegCapAndProgression(t *testing.T) {
	opened := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	pos := openLong(t, 100, 1, opened)

	m := defaultManager()
	now := opened
	m.WithClock(func() time.Time { return now })

	sizes := []float64{}
	for i := 0; i < 5; i++ {
		now = now.Add(2 * time.Hour)
		a := m.Evaluate(pos, 110, 100)
		if a.Kind != models.ActionPyramid {
			break
		}
		sizes = append(sizes, a.Notional)
		qty := a.Notional / 110
		pos.AddLeg(models.PositionLeg{Price: 110, Qty: qty, Timestamp: now, Role: models.LegRolePyramid})
	}

	if len(sizes) != 3 {
		t.Fatalf("pyramid legs = %d, want exactly 3", len(sizes))
	}
	for i := 1; i < len(sizes); i++ {
		if sizes[i] > sizes[i-1] {
			t.Errorf("leg %d size %f exceeds prior %f", i, sizes[i], sizes[i-1])
		}
	}
	if a := m.Evaluate(pos, 120, 100); a.Kind != models.ActionNone {
		t.Errorf("fourth pyramid leg should be refused, got %v", a.Kind)
	}
}

func TestAverageDownActivationAndCap(t *testing.T) {
	opened := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	pos := openLong(t, 100, 1, opened)

	m := defaultManager()
	now := opened
	m.WithClock(func() time.Time { return now })

	// -3% is not enough.
	now = now.Add(2 * time.Hour)
	if a := m.Evaluate(pos, 97, 100); a.Kind != models.ActionNone {
		t.Fatalf("-3%% should not average down, got %v", a.Kind)
	}

	// -6% fires the first leg.
	a := m.Evaluate(pos, 94, 100)
	if a.Kind != models.ActionAverageDown {
		t.Fatalf("expected AVERAGE_DOWN at -6%%, got %v", a.Kind)
	}
	if a.Notional != 50 {
		t.Errorf("averaging leg = %f, want 50", a.Notional)
	}
	pos.AddLeg(models.PositionLeg{Price: 94, Qty: a.Notional / 94, Timestamp: now, Role: models.LegRoleAverageDown})
	now = now.Add(2 * time.Hour)

	// The leg pulled the average down to ~97.9, so the same price is
	// only -4% against it and must not trigger again.
	if a := m.Evaluate(pos, 94, 100); a.Kind != models.ActionNone {
		t.Fatalf("price unchanged after averaging should be NONE, got %v", a.Kind)
	}

	// A deeper drop past the threshold against the new average fires
	// the second leg.
	a = m.Evaluate(pos, 90, 100)
	if a.Kind != models.ActionAverageDown {
		t.Fatalf("expected second AVERAGE_DOWN at -8%%, got %v", a.Kind)
	}
	if a.Notional != 50 {
		t.Errorf("second averaging leg = %f, want 50", a.Notional)
	}
	pos.AddLeg(models.PositionLeg{Price: 90, Qty: a.Notional / 90, Timestamp: now, Role: models.LegRoleAverageDown})
	now = now.Add(2 * time.Hour)

	if a := m.Evaluate(pos, 85, 100); a.Kind != models.ActionNone {
		t.Errorf("third averaging leg should be refused, got %v", a.Kind)
	}
}

func TestAverageDownWorstCaseLossCeiling(t *testing.T) {
	opened := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	pos := openLong(t, 100, 1, opened) // stop at 97, loss fraction 3%

	m := NewManager(
		PyramidConfig{MinProfitPct: 0.03, MaxLegs: 3, SizeProgression: []float64{1.0, 0.7, 0.5}, MinInterval: time.Hour},
		AveragingConfig{MaxLossPct: -0.05, MaxLegs: 2, SizeFraction: 0.5, MaxAddedLoss: 4},
	).WithClock(func() time.Time { return opened.Add(2 * time.Hour) })

	// Projected loss: (100 + 50) * 3% = 4.5 > ceiling 4.
	if a := m.Evaluate(pos, 94, 100); a.Kind != models.ActionNone {
		t.Errorf("worst-case-loss ceiling should refuse the leg, got %v", a.Kind)
	}
}

func TestTrailingStopNeverRetreats(t *testing.T) {
	opened := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	pos := openLong(t, 100, 1, opened)
	initialStop := pos.StopPrice

	tr := NewTrailingStopManager(TrailingConfig{ActivationPct: 0.02, ATRMultiplier: 1.0})

	prices := []float64{101, 103, 106, 104, 108, 102, 110, 105}
	lastStop := pos.StopPrice
	for _, price := range prices {
		a := tr.Evaluate(pos, price, 2)
		if a.Kind == models.ActionTrailUpdate {
			if a.NewStop <= lastStop {
				t.Fatalf("stop did not raise: %f <= %f", a.NewStop, lastStop)
			}
			pos.StopPrice = a.NewStop
			lastStop = a.NewStop
		}
		if pos.StopPrice < initialStop {
			t.Fatalf("stop %f fell below initial %f", pos.StopPrice, initialStop)
		}
	}
	if lastStop <= initialStop {
		t.Error("rising price path should have raised the stop at least once")
	}
}

func TestTrailingStopInactiveBelowThreshold(t *testing.T) {
	opened := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	pos := openLong(t, 100, 1, opened)
	watermark := pos.HighWatermark

	tr := NewTrailingStopManager(TrailingConfig{ActivationPct: 0.02, ATRMultiplier: 1.0})

	// +1% and negative returns: no update, no watermark touch.
	for _, price := range []float64{101, 99, 95} {
		if a := tr.Evaluate(pos, price, 2); a.Kind != models.ActionNone {
			t.Fatalf("price %f below activation should produce NONE, got %v", price, a.Kind)
		}
	}
	if pos.HighWatermark != watermark {
		t.Errorf("watermark moved while inactive: %f -> %f", watermark, pos.HighWatermark)
	}
}

func TestPartialExitFiresOncePerLevel(t *testing.T) {
	opened := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	pos := openLong(t, 100, 10, opened)

	pm := NewPartialExitManager([]ExitLevel{
		{ProfitPct: 0.05, Fraction: 0.3},
		{ProfitPct: 0.10, Fraction: 0.3},
		{ProfitPct: 0.15, Fraction: 0.4},
		{ProfitPct: 0.20, Fraction: 0.3},
	})

	a := pm.Evaluate(pos, 106)
	if a.Kind != models.ActionPartialExit || a.Level != 0.05 {
		t.Fatalf("expected level 0.05 exit, got %+v", a)
	}
	if err := pos.Reduce(pos.Qty() * a.Fraction); err != nil {
		t.Fatal(err)
	}

	// Same price again: the 5% level must not re-fire.
	if a := pm.Evaluate(pos, 106); a.Kind != models.ActionNone {
		t.Fatalf("level re-fired: %+v", a)
	}

	// Jump past 10% and 15%: the highest untriggered level fires.
	a = pm.Evaluate(pos, 116)
	if a.Kind != models.ActionPartialExit || a.Level != 0.15 {
		t.Fatalf("expected level 0.15 exit, got %+v", a)
	}
}

func TestPartialExitCompoundsDown(t *testing.T) {
	opened := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	pos := openLong(t, 100, 10, opened)

	pm := NewPartialExitManager([]ExitLevel{
		{ProfitPct: 0.05, Fraction: 0.3},
		{ProfitPct: 0.10, Fraction: 0.3},
		{ProfitPct: 0.15, Fraction: 0.4},
		{ProfitPct: 0.20, Fraction: 0.3},
	})

	prices := []float64{106, 111, 116, 121}
	for _, price := range prices {
		a := pm.Evaluate(pos, price)
		if a.Kind != models.ActionPartialExit {
			t.Fatalf("price %f: expected PARTIAL_EXIT, got %v", price, a.Kind)
		}
		exitQty := pos.Qty() * a.Fraction
		if err := pos.Reduce(exitQty); err != nil {
			t.Fatalf("price %f: %v", price, err)
		}
		if pos.Qty() < 0 {
			t.Fatalf("position went negative at price %f", price)
		}
	}
	if pos.IsClosed() {
		t.Error("compounding fractional exits should leave a residual position")
	}
	// 10 * 0.7 * 0.7 * 0.6 * 0.7
	want := 10 * 0.7 * 0.7 * 0.6 * 0.7
	if diff := pos.Qty() - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("remaining qty = %f, want %f", pos.Qty(), want)
	}
}

func TestAvgEntryPriceFromLegs(t *testing.T) {
	opened := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	pos := openLong(t, 100, 1, opened)
	pos.AddLeg(models.PositionLeg{Price: 110, Qty: 1, Timestamp: opened.Add(2 * time.Hour), Role: models.LegRolePyramid})

	if avg := pos.AvgEntryPrice(); avg != 105 {
		t.Errorf("avg entry = %f, want 105", avg)
	}
	if err := pos.CheckAvgPrice(105, 1e-6); err != nil {
		t.Errorf("consistency check failed: %v", err)
	}
	if err := pos.CheckAvgPrice(106, 1e-6); err == nil {
		t.Error("divergent expected avg should fail the check")
	}
}
