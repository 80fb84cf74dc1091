package state

import (
	"path/filepath"
	"testing"
	"time"

	"tradebot/internal/models"
)

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "positions.json")
	store := NewStore(path)

	opened := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	pos := models.NewPosition("BTCUSDT", models.PositionSideLong, 100, 2,
		models.BracketLevels{StopLoss: 97, TakeProfit: 106}, opened)
	pos.AddLeg(models.PositionLeg{Price: 104, Qty: 1, Timestamp: opened.Add(2 * time.Hour), Role: models.LegRolePyramid})
	pos.MarkLevelTriggered(0.05)
	pos.HighWatermark = 105
	pos.StopPrice = 101

	if err := store.Upsert("BTCUSDT", pos); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	got, ok := loaded["BTCUSDT"]
	if !ok {
		t.Fatal("position missing after reload")
	}

	// The reloaded position must reproduce identical decisions.
	if got.Qty() != pos.Qty() {
		t.Errorf("qty = %f, want %f", got.Qty(), pos.Qty())
	}
	if got.AvgEntryPrice() != pos.AvgEntryPrice() {
		t.Errorf("avg = %f, want %f", got.AvgEntryPrice(), pos.AvgEntryPrice())
	}
	if got.StopPrice != 101 || got.HighWatermark != 105 {
		t.Errorf("stop fields lost: stop=%f watermark=%f", got.StopPrice, got.HighWatermark)
	}
	if !got.HasTriggeredLevel(0.05) {
		t.Error("triggered level lost in round trip")
	}
	if got.PyramidCount != 1 {
		t.Errorf("pyramid count = %d, want 1", got.PyramidCount)
	}
	if !got.LastLegAt.Equal(pos.LastLegAt) {
		t.Errorf("last leg timestamp drifted: %v vs %v", got.LastLegAt, pos.LastLegAt)
	}
}

func TestStoreUpsertNilRemoves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "positions.json")
	store := NewStore(path)

	opened := time.Now().UTC()
	pos := models.NewPosition("ETHUSDT", models.PositionSideLong, 2000, 1,
		models.BracketLevels{StopLoss: 1940, TakeProfit: 2120}, opened)
	if err := store.Upsert("ETHUSDT", pos); err != nil {
		t.Fatal(err)
	}
	if err := store.Upsert("ETHUSDT", nil); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 0 {
		t.Errorf("expected empty book, got %d positions", len(loaded))
	}
}

func TestStoreLoadMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nope.json"))
	loaded, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 0 {
		t.Errorf("missing file should yield empty book, got %d", len(loaded))
	}
}
