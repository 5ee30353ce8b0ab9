package risk

import (
	"time"

	"github.com/Alias1177/SignalEngine/models"
)

// AccountConfig is the account and rate-limit policy applied to signals
type AccountConfig struct {
	AccountBalance   float64       `yaml:"account_balance" default:"10000" validate:"gt=0"`
	RiskLevel        RiskLevel     `yaml:"risk_level" default:"MEDIUM" validate:"oneof=LOW MEDIUM HIGH"`
	MaxDailySignals  int           `yaml:"max_daily_signals" default:"50" validate:"gte=1"`
	CooldownDuration time.Duration `yaml:"cooldown" default:"15m" validate:"gte=0"`
	// DrawdownCeiling halts new signals once drawdown from peak exceeds it (0-1)
	DrawdownCeiling float64 `yaml:"drawdown_ceiling" default:"0.1" validate:"gt=0,lte=1"`
	// DrawdownResume lifts the halt once drawdown falls below it
	DrawdownResume  float64 `yaml:"drawdown_resume" default:"0.05" validate:"gte=0,ltefield=DrawdownCeiling"`
	MaxPositionSize float64 `yaml:"max_position_size" default:"0" validate:"gte=0"`
	// MaxPortfolioHeat caps total open risk as a share of balance, 0 disables
	MaxPortfolioHeat float64 `yaml:"max_portfolio_heat" default:"0.2" validate:"gte=0,lte=1"`
}

// Phase is the per-symbol cooldown state
type Phase string

const (
	PhaseIdle     Phase = "IDLE"
	PhaseCooldown Phase = "COOLDOWN"
)

// State is the mutable risk bookkeeping. It is only changed through
// Evaluate, ApplyPnL and ResetDaily, which all return a new value.
type State struct {
	Day                time.Time            `json:"day"`
	DailySignalCount   int                  `json:"daily_signal_count"`
	LastSignalBySymbol map[string]time.Time `json:"last_signal_by_symbol"`
	AccountBalance     float64              `json:"account_balance"`
	PeakBalance        float64              `json:"peak_balance"`
	CurrentDrawdown    float64              `json:"current_drawdown"`
	Halted             bool                 `json:"halted"`
}

// NewState starts a fresh day with the configured balance as the peak
func NewState(cfg AccountConfig, now time.Time) State {
	return State{
		Day:                models.StartOfDayUTC(now),
		LastSignalBySymbol: make(map[string]time.Time),
		AccountBalance:     cfg.AccountBalance,
		PeakBalance:        cfg.AccountBalance,
	}
}

// clone copies the state so callers never share the cooldown map
func (s State) clone() State {
	out := s
	out.LastSignalBySymbol = make(map[string]time.Time, len(s.LastSignalBySymbol))
	for k, v := range s.LastSignalBySymbol {
		out.LastSignalBySymbol[k] = v
	}
	return out
}

// rollDay resets the daily counter when now falls on a later UTC day
func (s State) rollDay(now time.Time) State {
	day := models.StartOfDayUTC(now)
	if day.After(s.Day) {
		s.Day = day
		s.DailySignalCount = 0
	}
	return s
}

// updateHalt applies the drawdown hysteresis
func (s State) updateHalt(cfg AccountConfig) State {
	switch {
	case !s.Halted && s.CurrentDrawdown > cfg.DrawdownCeiling:
		s.Halted = true
	case s.Halted && s.CurrentDrawdown < cfg.DrawdownResume:
		s.Halted = false
	}
	return s
}

// Phase reports whether the symbol is still cooling down at now
func (s State) Phase(symbol string, now time.Time, cooldown time.Duration) Phase {
	last, ok := s.LastSignalBySymbol[symbol]
	if ok && now.Sub(last) < cooldown {
		return PhaseCooldown
	}
	return PhaseIdle
}

// ApplyPnL books a realized result against the balance and recomputes drawdown
func ApplyPnL(st State, pnl float64, cfg AccountConfig) State {
	st = st.clone()
	st.AccountBalance += pnl
	if st.AccountBalance > st.PeakBalance {
		st.PeakBalance = st.AccountBalance
	}
	st.CurrentDrawdown = 0
	if st.PeakBalance > 0 {
		st.CurrentDrawdown = (st.PeakBalance - st.AccountBalance) / st.PeakBalance
	}
	return st.updateHalt(cfg)
}

// ResetDaily clears the daily counter for the day containing now
func ResetDaily(st State, now time.Time) State {
	st = st.clone()
	st.Day = models.StartOfDayUTC(now)
	st.DailySignalCount = 0
	return st
}
