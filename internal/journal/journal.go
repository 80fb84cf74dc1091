package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"tradebot/internal/models"
)

// ClosedTrade is one finished position: full stop exit or the final
// partial exit that drained it.
type ClosedTrade struct {
	Symbol     string
	Side       models.PositionSide
	EntryPrice float64
	ExitPrice  float64
	Qty        float64
	PnL        float64
	PnLPct     float64
	Reason     string
	OpenedAt   time.Time
	ClosedAt   time.Time
}

// Journal records closed trades in SQLite for later analysis. It is a
// write-mostly sink; the engine never reads it on the hot path.
type Journal struct {
	db *sql.DB
}

func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open trade journal: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("set journal mode: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			entry_price REAL NOT NULL,
			exit_price REAL NOT NULL,
			qty REAL NOT NULL,
			pnl REAL NOT NULL,
			pnl_pct REAL NOT NULL,
			reason TEXT NOT NULL,
			opened_at INTEGER NOT NULL,
			closed_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("create trades table: %w", err)
	}
	return &Journal{db: db}, nil
}

// Record appends one closed trade.
func (j *Journal) Record(ctx context.Context, trade ClosedTrade) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO trades (symbol, side, entry_price, exit_price, qty, pnl, pnl_pct, reason, opened_at, closed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		trade.Symbol, string(trade.Side), trade.EntryPrice, trade.ExitPrice, trade.Qty,
		trade.PnL, trade.PnLPct, trade.Reason, trade.OpenedAt.UnixMilli(), trade.ClosedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record closed trade: %w", err)
	}
	return nil
}

// List returns recorded trades for a symbol, newest first. Empty symbol
// returns everything.
func (j *Journal) List(ctx context.Context, symbol string) ([]ClosedTrade, error) {
	query := `SELECT symbol, side, entry_price, exit_price, qty, pnl, pnl_pct, reason, opened_at, closed_at
		FROM trades`
	args := []any{}
	if symbol != "" {
		query += " WHERE symbol = ?"
		args = append(args, symbol)
	}
	query += " ORDER BY closed_at DESC"

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var trades []ClosedTrade
	for rows.Next() {
		var t ClosedTrade
		var side string
		var openedMs, closedMs int64
		if err := rows.Scan(&t.Symbol, &side, &t.EntryPrice, &t.ExitPrice, &t.Qty, &t.PnL, &t.PnLPct, &t.Reason, &openedMs, &closedMs); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.Side = models.PositionSide(side)
		t.OpenedAt = time.UnixMilli(openedMs).UTC()
		t.ClosedAt = time.UnixMilli(closedMs).UTC()
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func (j *Journal) Close() error {
	return j.db.Close()
}
