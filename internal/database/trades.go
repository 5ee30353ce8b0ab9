package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Alias1177/SignalEngine/internal/trading/risk"
	"github.com/Alias1177/SignalEngine/models"
)

// TradeRepository stores trades in PostgreSQL and satisfies portfolio.Store
type TradeRepository struct {
	db *DB
}

// NewTradeRepository wraps an open connection
func NewTradeRepository(db *DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// Save inserts the trade or updates its exit fields
func (r *TradeRepository) Save(ctx context.Context, t *models.Trade) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO trades (
			id, symbol, direction, entry_price, exit_price, size, stop_loss, take_profit,
			timeframe, timeframes, confidence, reasoning, opened_at, closed_at, pnl
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id)
		DO UPDATE SET
			exit_price = EXCLUDED.exit_price,
			closed_at = EXCLUDED.closed_at,
			pnl = EXCLUDED.pnl
	`,
		t.ID, t.Symbol, string(t.Direction), t.EntryPrice, nullFloat(t.ExitPrice), t.Size, t.StopLoss, t.TakeProfit,
		string(t.Timeframe), joinTimeframes(t.Timeframes), t.Confidence, strings.Join(t.Reasoning, "\n"),
		t.OpenedAt, nullTime(t.ClosedAt), nullFloat(t.PnL),
	)
	if err != nil {
		return fmt.Errorf("upsert trade %s: %w", t.ID, err)
	}
	return nil
}

// Get retrieves a trade by ID
func (r *TradeRepository) Get(ctx context.Context, id string) (*models.Trade, error) {
	row := r.db.QueryRowContext(ctx, selectTrades+` WHERE id = $1`, id)
	t, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrTradeNotFound
		}
		return nil, err
	}
	return t, nil
}

// List returns every trade ordered by open time
func (r *TradeRepository) List(ctx context.Context) ([]models.Trade, error) {
	rows, err := r.db.QueryContext(ctx, selectTrades+` ORDER BY opened_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var out []models.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

const selectTrades = `
	SELECT
		id, symbol, direction, entry_price, exit_price, size, stop_loss, take_profit,
		timeframe, timeframes, confidence, reasoning, opened_at, closed_at, pnl
	FROM trades`

type scanner interface {
	Scan(dest ...any) error
}

func scanTrade(s scanner) (*models.Trade, error) {
	var (
		t                     models.Trade
		direction, timeframe  string
		timeframes, reasoning string
		exitPrice, pnl        sql.NullFloat64
		closedAt              sql.NullTime
	)

	err := s.Scan(
		&t.ID, &t.Symbol, &direction, &t.EntryPrice, &exitPrice, &t.Size, &t.StopLoss, &t.TakeProfit,
		&timeframe, &timeframes, &t.Confidence, &reasoning, &t.OpenedAt, &closedAt, &pnl,
	)
	if err != nil {
		return nil, err
	}

	t.Direction = models.Direction(direction)
	t.Timeframe = models.Timeframe(timeframe)
	t.Timeframes = splitTimeframes(timeframes)
	if reasoning != "" {
		t.Reasoning = strings.Split(reasoning, "\n")
	}
	t.OpenedAt = t.OpenedAt.UTC()

	if exitPrice.Valid {
		v := exitPrice.Float64
		t.ExitPrice = &v
	}
	if closedAt.Valid {
		v := closedAt.Time.UTC()
		t.ClosedAt = &v
	}
	if pnl.Valid {
		v := pnl.Float64
		t.PnL = &v
	}

	return &t, nil
}

// SaveRiskState stores the latest risk snapshot
func (db *DB) SaveRiskState(ctx context.Context, st risk.State) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal risk state: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO risk_state (id, state, updated_at) VALUES (1, $1, $2)
		ON CONFLICT (id)
		DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at
	`, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save risk state: %w", err)
	}
	return nil
}

// LoadRiskState returns the stored snapshot, or false when none exists
func (db *DB) LoadRiskState(ctx context.Context) (risk.State, bool, error) {
	var payload []byte
	err := db.QueryRowContext(ctx, `SELECT state FROM risk_state WHERE id = 1`).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return risk.State{}, false, nil
		}
		return risk.State{}, false, fmt.Errorf("load risk state: %w", err)
	}

	var st risk.State
	if err := json.Unmarshal(payload, &st); err != nil {
		return risk.State{}, false, fmt.Errorf("decode risk state: %w", err)
	}
	return st, true, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}

func joinTimeframes(tfs []models.Timeframe) string {
	parts := make([]string, len(tfs))
	for i, tf := range tfs {
		parts[i] = string(tf)
	}
	return strings.Join(parts, ",")
}

func splitTimeframes(s string) []models.Timeframe {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]models.Timeframe, len(parts))
	for i, p := range parts {
		out[i] = models.Timeframe(p)
	}
	return out
}
