package risk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/SignalEngine/models"
)

// Manager owns the process-wide risk state and serializes every change to it
type Manager struct {
	mu     sync.Mutex
	cfg    AccountConfig
	state  State
	clock  models.Clock
	store    StateStore
	exposure Exposure
	logger   zerolog.Logger
}

// StateStore persists risk snapshots across restarts
type StateStore interface {
	SaveRiskState(ctx context.Context, st State) error
}

// Exposure reports the amount currently at risk in open trades
type Exposure interface {
	OpenRisk(ctx context.Context) (float64, error)
}

// DailySummary reports today's signal budget and account health
type DailySummary struct {
	Day              time.Time `json:"day"`
	SignalsSent      int       `json:"signals_sent"`
	MaxDailySignals  int       `json:"max_daily_signals"`
	RemainingSignals int       `json:"remaining_signals"`
	MaxReached       bool      `json:"max_trades_reached"`
	AccountBalance   float64   `json:"account_balance"`
	CurrentDrawdown  float64   `json:"current_drawdown"`
	Halted           bool      `json:"halted"`
	RiskLevel        RiskLevel `json:"risk_level"`
}

// NewManager creates a manager with a fresh state for the current day
func NewManager(cfg AccountConfig, clock models.Clock) *Manager {
	if clock == nil {
		clock = models.SystemClock{}
	}
	return &Manager{
		cfg:    cfg,
		state:  NewState(cfg, clock.Now()),
		clock:  clock,
		logger: log.With().Str("component", "risk").Logger(),
	}
}

// SetStore enables persistence of every state change
func (m *Manager) SetStore(store StateStore) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store = store
}

// SetExposure feeds open trades into the portfolio heat check
func (m *Manager) SetExposure(e Exposure) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exposure = e
}

// persist must be called with mu held
func (m *Manager) persist() {
	if m.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.store.SaveRiskState(ctx, m.state.clone()); err != nil {
		m.logger.Error().Err(err).Msg("Failed to persist risk state")
	}
}

// Config returns the account policy
func (m *Manager) Config() AccountConfig {
	return m.cfg
}

// Evaluate runs the risk checks for sig and commits the resulting state.
// A cancelled context leaves the state untouched.
func (m *Manager) Evaluate(ctx context.Context, sig *models.CompositeSignal) (*models.Recommendation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var openRisk float64
	if m.exposure != nil {
		var err error
		if openRisk, err = m.exposure.OpenRisk(ctx); err != nil {
			return nil, fmt.Errorf("open exposure: %w", err)
		}
	}

	rec, next, err := Evaluate(sig, m.state, m.cfg, m.clock.Now(), openRisk)
	if errors.Is(err, models.ErrInvalidSignal) {
		return nil, err
	}
	m.state = next
	m.persist()

	if err != nil {
		m.logger.Warn().Err(err).Str("symbol", sig.Symbol).Msg("Signal rejected")
		return nil, err
	}

	m.logger.Info().
		Str("symbol", sig.Symbol).
		Str("direction", string(sig.Direction)).
		Float64("size", rec.Size).
		Float64("risk_amount", rec.RiskAmount).
		Int("risk_score", rec.RiskScore).
		Float64("heat", rec.PortfolioHeat).
		Int("daily_count", m.state.DailySignalCount).
		Msg("Signal accepted")

	return rec, nil
}

// Release returns the daily slot and cooldown taken by an accepted
// recommendation that was never acted on. It is a no-op once the day has
// rolled over or the symbol has signalled again.
func (m *Manager) Release(rec *models.Recommendation) {
	m.mu.Lock()
	defer m.mu.Unlock()

	symbol := rec.Signal.Symbol
	last, ok := m.state.LastSignalBySymbol[symbol]
	if !ok || !last.Equal(rec.AcceptedAt) {
		return
	}

	m.state = m.state.clone()
	delete(m.state.LastSignalBySymbol, symbol)
	if models.SameDayUTC(rec.AcceptedAt, m.state.Day) && m.state.DailySignalCount > 0 {
		m.state.DailySignalCount--
	}
	m.persist()
	m.logger.Info().Str("symbol", symbol).Int("daily_count", m.state.DailySignalCount).Msg("Signal slot released")
}

// ApplyPnL books a closed trade's result against the account
func (m *Manager) ApplyPnL(pnl float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wasHalted := m.state.Halted
	m.state = ApplyPnL(m.state, pnl, m.cfg)
	m.persist()

	switch {
	case !wasHalted && m.state.Halted:
		m.logger.Warn().Float64("drawdown", m.state.CurrentDrawdown).Msg("Drawdown ceiling exceeded, halting signals")
	case wasHalted && !m.state.Halted:
		m.logger.Info().Float64("drawdown", m.state.CurrentDrawdown).Msg("Drawdown recovered, resuming signals")
	}
}

// ResetDaily clears the daily counter; the scheduler calls it at 00:00 UTC
func (m *Manager) ResetDaily() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = ResetDaily(m.state, m.clock.Now())
	m.persist()
	m.logger.Info().Time("day", m.state.Day).Msg("Daily risk counters reset")
}

// Restore replaces the state, used when loading from persistence or in tests
func (m *Manager) Restore(st State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = st.clone()
	if m.state.LastSignalBySymbol == nil {
		m.state.LastSignalBySymbol = make(map[string]time.Time)
	}
}

// Snapshot returns a copy of the current state
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

// SymbolPhase reports whether the symbol is in cooldown right now
func (m *Manager) SymbolPhase(symbol string) Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Phase(symbol, m.clock.Now(), m.cfg.CooldownDuration)
}

// DailySummary reports today's usage, rolling the day over if needed
func (m *Manager) DailySummary() DailySummary {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.state.rollDay(m.clock.Now())
	remaining := m.cfg.MaxDailySignals - st.DailySignalCount
	if remaining < 0 {
		remaining = 0
	}

	return DailySummary{
		Day:              st.Day,
		SignalsSent:      st.DailySignalCount,
		MaxDailySignals:  m.cfg.MaxDailySignals,
		RemainingSignals: remaining,
		MaxReached:       st.DailySignalCount >= m.cfg.MaxDailySignals,
		AccountBalance:   st.AccountBalance,
		CurrentDrawdown:  st.CurrentDrawdown,
		Halted:           st.Halted,
		RiskLevel:        m.cfg.RiskLevel,
	}
}
