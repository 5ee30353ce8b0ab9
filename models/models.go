package models

import (
	"time"
)

// Direction is the side a vote or signal points to
type Direction string

const (
	DirectionBuy     Direction = "BUY"
	DirectionSell    Direction = "SELL"
	DirectionNeutral Direction = "NEUTRAL"
)

// Opposite returns the other side; NEUTRAL stays NEUTRAL
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionBuy:
		return DirectionSell
	case DirectionSell:
		return DirectionBuy
	default:
		return DirectionNeutral
	}
}

// Candle represents a single price candle
type Candle struct {
	Timestamp time.Time `json:"datetime"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume,omitempty"`
}

// IndicatorKind enumerates every indicator the engine computes.
// Voting and weighting are keyed by this type, never by free-form names.
type IndicatorKind string

const (
	IndicatorRSI               IndicatorKind = "RSI"
	IndicatorMACD              IndicatorKind = "MACD"
	IndicatorBollinger         IndicatorKind = "BOLLINGER"
	IndicatorStochastic        IndicatorKind = "STOCHASTIC"
	IndicatorADX               IndicatorKind = "ADX"
	IndicatorWilliamsR         IndicatorKind = "WILLIAMS_R"
	IndicatorCCI               IndicatorKind = "CCI"
	IndicatorATR               IndicatorKind = "ATR"
	IndicatorSupportResistance IndicatorKind = "SUPPORT_RESISTANCE"
	IndicatorTrend             IndicatorKind = "TREND"
	IndicatorPattern           IndicatorKind = "PATTERN"
)

// AllIndicators lists the kinds in a stable order
var AllIndicators = []IndicatorKind{
	IndicatorRSI,
	IndicatorMACD,
	IndicatorBollinger,
	IndicatorStochastic,
	IndicatorADX,
	IndicatorWilliamsR,
	IndicatorCCI,
	IndicatorATR,
	IndicatorSupportResistance,
	IndicatorTrend,
	IndicatorPattern,
}

// MACDValue holds the MACD line, its signal line and the histogram.
// PrevHistogram is the histogram one bar earlier, used for crossover detection.
type MACDValue struct {
	Line          float64 `json:"macd"`
	Signal        float64 `json:"macd_signal"`
	Histogram     float64 `json:"macd_hist"`
	PrevHistogram float64 `json:"macd_prev_hist"`
}

// BullishCrossover reports a histogram transition from negative to positive
func (m MACDValue) BullishCrossover() bool {
	return m.PrevHistogram < 0 && m.Histogram > 0
}

// BearishCrossover reports a histogram transition from positive to negative
func (m MACDValue) BearishCrossover() bool {
	return m.PrevHistogram > 0 && m.Histogram < 0
}

// BollingerValue holds the three bands
type BollingerValue struct {
	Upper  float64 `json:"bb_upper"`
	Middle float64 `json:"bb_middle"`
	Lower  float64 `json:"bb_lower"`
}

// StochasticValue holds %K and its %D smoothing
type StochasticValue struct {
	K float64 `json:"stochastic"`
	D float64 `json:"stochastic_signal"`
}

// ADXValue holds trend strength and the directional indices
type ADXValue struct {
	ADX     float64 `json:"adx"`
	PlusDI  float64 `json:"plus_di"`
	MinusDI float64 `json:"minus_di"`
}

// Levels holds the nearest swing levels around the current price
type Levels struct {
	Support       float64 `json:"support,omitempty"`
	Resistance    float64 `json:"resistance,omitempty"`
	HasSupport    bool    `json:"has_support"`
	HasResistance bool    `json:"has_resistance"`
}

// TrendValue holds the moving-average pair used for trend alignment
type TrendValue struct {
	Fast float64 `json:"sma_fast"`
	Slow float64 `json:"sma_slow"`
}

// IndicatorSet holds all calculated technical indicators for one
// (symbol, timeframe, as-of) point. It is derived data and can always be
// recomputed from candles.
type IndicatorSet struct {
	Symbol     string          `json:"symbol"`
	Timeframe  Timeframe       `json:"timeframe"`
	AsOf       time.Time       `json:"as_of"`
	Price      float64         `json:"price"`
	RSI        float64         `json:"rsi"`
	MACD       MACDValue       `json:"macd"`
	Bollinger  BollingerValue  `json:"bollinger"`
	Stochastic StochasticValue `json:"stochastic"`
	ADX        ADXValue        `json:"adx"`
	WilliamsR  float64         `json:"williams_r"`
	CCI        float64         `json:"cci"`
	ATR        float64         `json:"atr"`
	Levels     Levels          `json:"levels"`
	Trend      TrendValue      `json:"trend"`
	Patterns   []string        `json:"patterns,omitempty"`

	// Insufficient names the indicators that did not have enough history
	Insufficient map[IndicatorKind]bool `json:"insufficient,omitempty"`
}

// Available reports whether the indicator was computed from enough data
func (s *IndicatorSet) Available(kind IndicatorKind) bool {
	if s == nil {
		return false
	}
	return !s.Insufficient[kind]
}

// Clone returns a deep copy of the set
func (s *IndicatorSet) Clone() *IndicatorSet {
	c := *s
	if s.Patterns != nil {
		c.Patterns = append([]string(nil), s.Patterns...)
	}
	if s.Insufficient != nil {
		c.Insufficient = make(map[IndicatorKind]bool, len(s.Insufficient))
		for k, v := range s.Insufficient {
			c.Insufficient[k] = v
		}
	}
	return &c
}

// MarkInsufficient flags an indicator as lacking history
func (s *IndicatorSet) MarkInsufficient(kind IndicatorKind) {
	if s.Insufficient == nil {
		s.Insufficient = make(map[IndicatorKind]bool)
	}
	s.Insufficient[kind] = true
}

// IndicatorVote is a single indicator's opinion inside a timeframe
type IndicatorVote struct {
	Indicator IndicatorKind `json:"indicator"`
	Direction Direction     `json:"direction"`
	Weight    float64       `json:"weight"`
	Reason    string        `json:"reason,omitempty"`
}

// TimeframeVote is the fused vote of one timeframe
type TimeframeVote struct {
	Timeframe  Timeframe       `json:"timeframe"`
	Direction  Direction       `json:"direction"`
	Confidence float64         `json:"confidence"` // 0-1
	Votes      []IndicatorVote `json:"votes"`      // contributing (non-neutral) indicators
	ATR        float64         `json:"atr"`
	Price      float64         `json:"price"`
}

// CompositeSignal is the fused recommendation across timeframes.
// It is created once per analysis cycle and never modified.
type CompositeSignal struct {
	Symbol               string      `json:"symbol"`
	Direction            Direction   `json:"direction"`
	Confidence           float64     `json:"confidence"`
	EntryPrice           float64     `json:"entry_price"`
	StopLoss             float64     `json:"stop_loss"`
	TakeProfit           float64     `json:"take_profit"`
	SupportingTimeframes []Timeframe `json:"supporting_timeframes"`
	DominantTimeframe    Timeframe   `json:"dominant_timeframe"`
	Reasoning            []string    `json:"reasoning"`
	CreatedAt            time.Time   `json:"created_at"`
}

// RiskDistance is the absolute distance between entry and stop
func (s *CompositeSignal) RiskDistance() float64 {
	d := s.EntryPrice - s.StopLoss
	if d < 0 {
		return -d
	}
	return d
}

// NoSignalReason explains why an analysis did not emit a signal
type NoSignalReason string

const (
	NoSignalNoVotes       NoSignalReason = "no-votes"
	NoSignalNeutral       NoSignalReason = "neutral"
	NoSignalUnconfirmed   NoSignalReason = "unconfirmed"
	NoSignalLowConfidence NoSignalReason = "low-confidence"
)

// AnalysisResult is the outcome of one analysis cycle for a symbol.
// Signal is nil when the cycle produced no signal; NoSignal says why.
type AnalysisResult struct {
	Symbol     string                      `json:"symbol"`
	Direction  Direction                   `json:"direction"`
	Confidence float64                     `json:"confidence"`
	Agreeing   int                         `json:"agreeing_timeframes"`
	Votes      map[Timeframe]TimeframeVote `json:"votes"`
	Signal     *CompositeSignal            `json:"signal,omitempty"`
	NoSignal   NoSignalReason              `json:"no_signal,omitempty"`
}

// HasSignal reports whether the cycle emitted a composite signal
func (r *AnalysisResult) HasSignal() bool {
	return r != nil && r.Signal != nil
}

// Recommendation is a composite signal accepted and sized by risk management
type Recommendation struct {
	Signal          CompositeSignal `json:"signal"`
	Size            float64         `json:"position_size"`
	RiskFraction    float64         `json:"risk_fraction"`
	RiskAmount      float64         `json:"risk_amount"`
	RiskRewardRatio float64         `json:"risk_reward_ratio"`
	AccountBalance  float64         `json:"account_balance"`
	AcceptedAt      time.Time       `json:"accepted_at"`

	RiskScore     int        `json:"risk_score"`
	RiskRating    RiskRating `json:"risk_rating"`
	PortfolioHeat float64    `json:"portfolio_heat"` // open risk incl. this trade over balance
	HeatStatus    HeatStatus `json:"heat_status"`
	Warnings      []string   `json:"warnings,omitempty"`
}

// RiskRating buckets a recommendation's risk score
type RiskRating string

const (
	RiskRatingVeryLow  RiskRating = "VERY_LOW"
	RiskRatingLow      RiskRating = "LOW"
	RiskRatingMedium   RiskRating = "MEDIUM"
	RiskRatingHigh     RiskRating = "HIGH"
	RiskRatingVeryHigh RiskRating = "VERY_HIGH"
)

// HeatStatus grades total open risk against the configured ceiling
type HeatStatus string

const (
	HeatSafe      HeatStatus = "SAFE"
	HeatCaution   HeatStatus = "CAUTION"
	HeatDangerous HeatStatus = "DANGEROUS"
)

// Trade is a recommendation that was taken, tracked until an exit is reported
type Trade struct {
	ID         string      `json:"id"`
	Symbol     string      `json:"symbol"`
	Direction  Direction   `json:"direction"`
	EntryPrice float64     `json:"entry_price"`
	ExitPrice  *float64    `json:"exit_price,omitempty"`
	Size       float64     `json:"size"`
	StopLoss   float64     `json:"stop_loss"`
	TakeProfit float64     `json:"take_profit"`
	Timeframe  Timeframe   `json:"timeframe"`  // dominant timeframe of the signal
	Timeframes []Timeframe `json:"timeframes"` // all supporting timeframes
	Confidence float64     `json:"confidence"`
	Reasoning  []string    `json:"reasoning,omitempty"`
	OpenedAt   time.Time   `json:"opened_at"`
	ClosedAt   *time.Time  `json:"closed_at,omitempty"`
	PnL        *float64    `json:"pnl,omitempty"`
}

// IsOpen reports whether no exit has been recorded yet
func (t *Trade) IsOpen() bool {
	return t.ClosedAt == nil
}

// TradeFilter narrows a portfolio summary. Zero values match everything.
type TradeFilter struct {
	Symbol    string    `json:"symbol,omitempty"`
	Timeframe Timeframe `json:"timeframe,omitempty"`
	Since     time.Time `json:"since,omitempty"`
	Until     time.Time `json:"until,omitempty"`
}

// ProfitFactorUnbounded is reported when there are winning trades but no losing ones
const ProfitFactorUnbounded = -1.0

// PortfolioSummary holds performance metrics over the filtered trades
type PortfolioSummary struct {
	TotalTrades       int               `json:"total_trades"`
	OpenTrades        int               `json:"open_trades"`
	ClosedTrades      int               `json:"closed_trades"`
	WinningTrades     int               `json:"winning_trades"`
	LosingTrades      int               `json:"losing_trades"`
	WinRate           float64           `json:"win_rate"` // 0-1
	ProfitFactor      float64           `json:"profit_factor"`
	TotalPnL          float64           `json:"total_pnl"`
	GrossProfit       float64           `json:"gross_profit"`
	GrossLoss         float64           `json:"gross_loss"`
	AverageWin        float64           `json:"average_win"`
	AverageLoss       float64           `json:"average_loss"`
	LargestWin        float64           `json:"largest_win"`
	LargestLoss       float64           `json:"largest_loss"`
	ConsecutiveWins   int               `json:"consecutive_wins"`
	ConsecutiveLosses int               `json:"consecutive_losses"`
	MaxDrawdown       float64           `json:"max_drawdown"`
	MaxDrawdownPct    float64           `json:"max_drawdown_pct"`
	AvgTradeDuration  time.Duration     `json:"avg_trade_duration"`
	CountsBySymbol    map[string]int    `json:"counts_by_symbol"`
	CountsByTimeframe map[Timeframe]int `json:"counts_by_timeframe"`
	EquityCurve       []float64         `json:"equity_curve,omitempty"`
}

