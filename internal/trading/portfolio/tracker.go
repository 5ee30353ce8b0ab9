package portfolio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/SignalEngine/models"
)

// Tracker records taken recommendations and derives performance from them
type Tracker struct {
	// mu serializes close operations so a trade cannot be closed twice
	mu              sync.Mutex
	store           Store
	clock           models.Clock
	startingBalance float64
	logger          zerolog.Logger
}

// NewTracker creates a tracker on top of store. startingBalance anchors the
// equity curve used for relative drawdown.
func NewTracker(store Store, clock models.Clock, startingBalance float64) *Tracker {
	if store == nil {
		store = NewMemoryStore()
	}
	if clock == nil {
		clock = models.SystemClock{}
	}
	return &Tracker{
		store:           store,
		clock:           clock,
		startingBalance: startingBalance,
		logger:          log.With().Str("component", "portfolio").Logger(),
	}
}

// OpenTrade records an accepted recommendation as an open trade
func (t *Tracker) OpenTrade(ctx context.Context, rec *models.Recommendation) (*models.Trade, error) {
	if rec == nil || rec.Signal.Direction == models.DirectionNeutral {
		return nil, models.ErrInvalidSignal
	}

	openedAt := rec.AcceptedAt
	if openedAt.IsZero() {
		openedAt = t.clock.Now()
	}

	sig := rec.Signal
	trade := &models.Trade{
		ID:         uuid.NewString(),
		Symbol:     sig.Symbol,
		Direction:  sig.Direction,
		EntryPrice: sig.EntryPrice,
		Size:       rec.Size,
		StopLoss:   sig.StopLoss,
		TakeProfit: sig.TakeProfit,
		Timeframe:  sig.DominantTimeframe,
		Timeframes: append([]models.Timeframe(nil), sig.SupportingTimeframes...),
		Confidence: sig.Confidence,
		Reasoning:  append([]string(nil), sig.Reasoning...),
		OpenedAt:   openedAt,
	}

	if err := t.store.Save(ctx, trade); err != nil {
		return nil, fmt.Errorf("save trade: %w", err)
	}

	t.logger.Info().
		Str("trade_id", trade.ID).
		Str("symbol", trade.Symbol).
		Str("direction", string(trade.Direction)).
		Float64("entry", trade.EntryPrice).
		Float64("size", trade.Size).
		Msg("Trade opened")

	return trade, nil
}

// CloseTrade records the exit of an open trade and computes its PnL.
// A zero closedAt means now.
func (t *Tracker) CloseTrade(ctx context.Context, id string, exitPrice float64, closedAt time.Time) (*models.Trade, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	trade, err := t.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !trade.IsOpen() {
		return nil, models.ErrAlreadyClosed
	}

	if closedAt.IsZero() {
		closedAt = t.clock.Now()
	}
	pnl := TradePnL(trade.Direction, trade.EntryPrice, exitPrice, trade.Size)

	trade.ExitPrice = &exitPrice
	trade.ClosedAt = &closedAt
	trade.PnL = &pnl

	if err := t.store.Save(ctx, trade); err != nil {
		return nil, fmt.Errorf("save trade: %w", err)
	}

	t.logger.Info().
		Str("trade_id", trade.ID).
		Str("symbol", trade.Symbol).
		Float64("exit", exitPrice).
		Float64("pnl", pnl).
		Msg("Trade closed")

	return trade, nil
}

// Get returns a single trade
func (t *Tracker) Get(ctx context.Context, id string) (*models.Trade, error) {
	return t.store.Get(ctx, id)
}

// Summarize computes performance over the trades matching filter
func (t *Tracker) Summarize(ctx context.Context, filter models.TradeFilter) (*models.PortfolioSummary, error) {
	trades, err := t.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}

	matched := trades[:0]
	for _, tr := range trades {
		if Matches(tr, filter) {
			matched = append(matched, tr)
		}
	}
	return Summarize(matched, t.startingBalance), nil
}

// TradePnL is (exit-entry)*size for BUY and (entry-exit)*size for SELL
func TradePnL(dir models.Direction, entry, exit, size float64) float64 {
	if dir == models.DirectionSell {
		return (entry - exit) * size
	}
	return (exit - entry) * size
}

// Matches applies a filter. Time bounds apply to the close time of closed
// trades and the open time of open ones; Until is exclusive.
func Matches(tr models.Trade, f models.TradeFilter) bool {
	if f.Symbol != "" && tr.Symbol != f.Symbol {
		return false
	}
	if f.Timeframe != "" && !hasTimeframe(tr, f.Timeframe) {
		return false
	}

	ref := tr.OpenedAt
	if tr.ClosedAt != nil {
		ref = *tr.ClosedAt
	}
	if !f.Since.IsZero() && ref.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !ref.Before(f.Until) {
		return false
	}
	return true
}

func hasTimeframe(tr models.Trade, tf models.Timeframe) bool {
	if tr.Timeframe == tf {
		return true
	}
	for _, t := range tr.Timeframes {
		if t == tf {
			return true
		}
	}
	return false
}
