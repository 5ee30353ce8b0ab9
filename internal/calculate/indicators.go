package calculate

import (
	"fmt"
	"time"

	"github.com/Alias1177/SignalEngine/models"
)

// Windows holds the lookback periods of every indicator
type Windows struct {
	RSI          int     `yaml:"rsi" default:"14" validate:"gt=1"`
	MACDFast     int     `yaml:"macd_fast" default:"12" validate:"gt=0"`
	MACDSlow     int     `yaml:"macd_slow" default:"26" validate:"gtfield=MACDFast"`
	MACDSignal   int     `yaml:"macd_signal" default:"9" validate:"gt=0"`
	BBPeriod     int     `yaml:"bb_period" default:"20" validate:"gt=1"`
	BBStdDev     float64 `yaml:"bb_std_dev" default:"2" validate:"gt=0"`
	StochK       int     `yaml:"stoch_k" default:"14" validate:"gt=0"`
	StochD       int     `yaml:"stoch_d" default:"3" validate:"gt=0"`
	ADX          int     `yaml:"adx" default:"14" validate:"gt=0"`
	WilliamsR    int     `yaml:"williams_r" default:"14" validate:"gt=0"`
	CCI          int     `yaml:"cci" default:"20" validate:"gt=0"`
	ATR          int     `yaml:"atr" default:"14" validate:"gt=0"`
	Swing        int     `yaml:"swing" default:"2" validate:"gt=0"`
	LevelsWindow int     `yaml:"levels_window" default:"60" validate:"gte=0"`
	SMAFast      int     `yaml:"sma_fast" default:"20" validate:"gt=0"`
	SMASlow      int     `yaml:"sma_slow" default:"50" validate:"gtfield=SMAFast"`
}

// DefaultWindows returns the textbook periods
func DefaultWindows() Windows {
	return Windows{
		RSI:          14,
		MACDFast:     12,
		MACDSlow:     26,
		MACDSignal:   9,
		BBPeriod:     20,
		BBStdDev:     2,
		StochK:       14,
		StochD:       3,
		ADX:          14,
		WilliamsR:    14,
		CCI:          20,
		ATR:          14,
		Swing:        2,
		LevelsWindow: 60,
		SMAFast:      20,
		SMASlow:      50,
	}
}

// MaxLookback is the number of candles needed for every indicator to be available
func (w Windows) MaxLookback() int {
	need := []int{
		w.RSI + 1,
		w.MACDSlow + w.MACDSignal,
		w.BBPeriod,
		w.StochK + w.StochD - 1,
		w.ADX * 2,
		w.WilliamsR,
		w.CCI,
		w.ATR + 1,
		2*w.Swing + 1,
		w.SMASlow,
	}
	longest := 0
	for _, n := range need {
		if n > longest {
			longest = n
		}
	}
	return longest
}

// Compute calculates every indicator for the last candle of the series.
// Indicators without enough history are flagged in Insufficient; the rest
// are still computed. Candles must be ordered oldest first.
func Compute(candles []models.Candle, w Windows) *models.IndicatorSet {
	set := &models.IndicatorSet{}
	if len(candles) == 0 {
		for _, kind := range models.AllIndicators {
			set.MarkInsufficient(kind)
		}
		return set
	}

	last := candles[len(candles)-1]
	set.AsOf = last.Timestamp
	set.Price = last.Close

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	mark := func(kind models.IndicatorKind, ok bool) {
		if !ok {
			set.MarkInsufficient(kind)
		}
	}

	var ok bool

	set.RSI, ok = calculateRSI(closes, w.RSI)
	mark(models.IndicatorRSI, ok)

	set.MACD, ok = calculateMACD(closes, w.MACDFast, w.MACDSlow, w.MACDSignal)
	mark(models.IndicatorMACD, ok)

	set.Bollinger, ok = calculateBollingerBands(closes, w.BBPeriod, w.BBStdDev)
	mark(models.IndicatorBollinger, ok)

	set.Stochastic, ok = calculateStochastic(candles, w.StochK, w.StochD)
	mark(models.IndicatorStochastic, ok)

	set.ADX, ok = CalculateADX(candles, w.ADX)
	mark(models.IndicatorADX, ok)

	set.WilliamsR, ok = calculateWilliamsR(candles, w.WilliamsR)
	mark(models.IndicatorWilliamsR, ok)

	set.CCI, ok = calculateCCI(candles, w.CCI)
	mark(models.IndicatorCCI, ok)

	set.ATR, ok = CalculateATR(candles, w.ATR)
	mark(models.IndicatorATR, ok)

	set.Levels, ok = identifySupportResistance(candles, w.Swing, w.LevelsWindow)
	mark(models.IndicatorSupportResistance, ok)

	set.Trend, ok = calculateTrend(closes, w.SMAFast, w.SMASlow)
	mark(models.IndicatorTrend, ok)

	set.Patterns, ok = detectPatterns(candles)
	mark(models.IndicatorPattern, ok)

	return set
}

// CacheKey identifies an indicator set; the same key always yields the same set
func CacheKey(symbol string, tf models.Timeframe, lastCandle time.Time) string {
	return fmt.Sprintf("indicators:%s:%s:%d", symbol, tf, lastCandle.UTC().Unix())
}
