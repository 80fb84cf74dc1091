package risk

import (
	"errors"
	"math"
	"testing"

	"tradebot/internal/models"
)

func TestComputeInitialBracketLong(t *testing.T) {
	b, err := ComputeInitialBracket(100, 2, models.PositionSideLong, 1.5, 2.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.StopLoss != 97.0 {
		t.Errorf("StopLoss = %f, want 97.0", b.StopLoss)
	}
	if b.TakeProfit != 106.0 {
		t.Errorf("TakeProfit = %f, want 106.0", b.TakeProfit)
	}
	if !(b.StopLoss < 100 && 100 < b.TakeProfit) {
		t.Errorf("ordering violated: SL=%f TP=%f", b.StopLoss, b.TakeProfit)
	}
}

func TestComputeInitialBracketShort(t *testing.T) {
	b, err := ComputeInitialBracket(100, 2, models.PositionSideShort, 1.5, 2.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.StopLoss != 103.0 {
		t.Errorf("StopLoss = %f, want 103.0", b.StopLoss)
	}
	if b.TakeProfit != 94.0 {
		t.Errorf("TakeProfit = %f, want 94.0", b.TakeProfit)
	}
	if !(b.TakeProfit < 100 && 100 < b.StopLoss) {
		t.Errorf("ordering violated: SL=%f TP=%f", b.StopLoss, b.TakeProfit)
	}
}

func TestComputeInitialBracketInvalid(t *testing.T) {
	cases := []struct {
		name      string
		entry     float64
		atr       float64
		kSl       float64
		rr        float64
	}{
		{"zero atr", 100, 0, 1.5, 2.0},
		{"negative atr", 100, -1, 1.5, 2.0},
		{"zero kSl", 100, 2, 0, 2.0},
		{"zero entry", 0, 2, 1.5, 2.0},
		{"zero rr", 100, 2, 1.5, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ComputeInitialBracket(tc.entry, tc.atr, models.PositionSideLong, tc.kSl, tc.rr)
			if !errors.Is(err, ErrInvalidRiskParameters) {
				t.Errorf("err = %v, want ErrInvalidRiskParameters", err)
			}
		})
	}
}

func TestKellyNotionalScenario(t *testing.T) {
	p := SizerParams{WinRate: 0.55, AvgWin: 1.2, AvgLoss: 1.0, MaxScore: 1.0, FMax: 0.2}
	got := KellyNotional(10000, 0.6, p)

	// b=1.2, f* = (1.2*0.55 - 0.45)/1.2 = 0.175, conf = 0.6
	want := 10000 * 0.175 * 0.6
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("notional = %f, want %f", got, want)
	}
}

func TestKellyNotionalMonotoneInScore(t *testing.T) {
	p := SizerParams{WinRate: 0.55, AvgWin: 1.2, AvgLoss: 1.0, MaxScore: 1.0, FMax: 0.2}
	prev := -1.0
	for score := 0.0; score <= 1.0; score += 0.05 {
		n := KellyNotional(10000, score, p)
		if n < prev {
			t.Fatalf("notional decreased at score %f: %f < %f", score, n, prev)
		}
		if n > 10000*p.FMax {
			t.Fatalf("notional %f exceeds capital*fMax", n)
		}
		prev = n
	}
	// Negative score carries the same confidence as its magnitude.
	if KellyNotional(10000, -0.6, p) != KellyNotional(10000, 0.6, p) {
		t.Error("sizing should depend on |score| only")
	}
}

func TestKellyNotionalDegenerate(t *testing.T) {
	cases := []struct {
		name    string
		capital float64
		score   float64
		params  SizerParams
	}{
		{"zero capital", 0, 0.5, SizerParams{WinRate: 0.55, AvgWin: 1, AvgLoss: 1, MaxScore: 1, FMax: 0.2}},
		{"zero avg loss", 10000, 0.5, SizerParams{WinRate: 0.55, AvgWin: 1, AvgLoss: 0, MaxScore: 1, FMax: 0.2}},
		{"zero avg win", 10000, 0.5, SizerParams{WinRate: 0.55, AvgWin: 0, AvgLoss: 1, MaxScore: 1, FMax: 0.2}},
		{"negative edge", 10000, 0.5, SizerParams{WinRate: 0.3, AvgWin: 1, AvgLoss: 1, MaxScore: 1, FMax: 0.2}},
		{"zero max score", 10000, 0.5, SizerParams{WinRate: 0.55, AvgWin: 1, AvgLoss: 1, MaxScore: 0, FMax: 0.2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if n := KellyNotional(tc.capital, tc.score, tc.params); n != 0 {
				t.Errorf("notional = %f, want 0", n)
			}
		})
	}
}

func TestKellyNotionalMinNotionalFloor(t *testing.T) {
	p := SizerParams{WinRate: 0.55, AvgWin: 1.2, AvgLoss: 1.0, MaxScore: 1.0, FMax: 0.2, MinNotional: 50}
	if n := KellyNotional(100, 0.1, p); n != 0 {
		t.Errorf("sub-minimum notional should degrade to 0, got %f", n)
	}
	if n := KellyNotional(10000, 0.6, p); n == 0 {
		t.Error("notional above minimum should pass through")
	}
}
