package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"tradebot/internal/models"
)

func TestJournalRecordAndList(t *testing.T) {
	j, err := Open(filepath.Join(t.TempDir(), "trades.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	ctx := context.Background()
	opened := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	trades := []ClosedTrade{
		{Symbol: "BTCUSDT", Side: models.PositionSideLong, EntryPrice: 100, ExitPrice: 95, Qty: 1, PnL: -5, PnLPct: -0.05, Reason: "stop_exit", OpenedAt: opened, ClosedAt: opened.Add(3 * time.Hour)},
		{Symbol: "ETHUSDT", Side: models.PositionSideLong, EntryPrice: 2000, ExitPrice: 2100, Qty: 0.5, PnL: 50, PnLPct: 0.05, Reason: "partial_exit", OpenedAt: opened, ClosedAt: opened.Add(5 * time.Hour)},
	}
	for _, tr := range trades {
		if err := j.Record(ctx, tr); err != nil {
			t.Fatal(err)
		}
	}

	all, err := j.List(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d trades, want 2", len(all))
	}
	// Newest first.
	if all[0].Symbol != "ETHUSDT" {
		t.Errorf("ordering wrong: first is %s", all[0].Symbol)
	}

	btc, err := j.List(ctx, "BTCUSDT")
	if err != nil {
		t.Fatal(err)
	}
	if len(btc) != 1 || btc[0].PnL != -5 || btc[0].Reason != "stop_exit" {
		t.Errorf("filtered list wrong: %+v", btc)
	}
	if !btc[0].OpenedAt.Equal(opened) {
		t.Errorf("opened_at drifted: %v", btc[0].OpenedAt)
	}
}
