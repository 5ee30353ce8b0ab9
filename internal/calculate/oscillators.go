package calculate

import (
	"math"

	"github.com/Alias1177/SignalEngine/models"
)

// calculateWilliamsR returns Williams %R in [-100, 0]; a flat window gives -50
func calculateWilliamsR(candles []models.Candle, period int) (float64, bool) {
	if period <= 0 || len(candles) < period {
		return 0, false
	}
	window := candles[len(candles)-period:]
	highest, lowest := highLow(window)
	if highest-lowest <= 0 {
		return -50, true
	}
	latest := window[len(window)-1].Close
	return (highest - latest) / (highest - lowest) * -100, true
}

// cciConstant scales CCI so roughly 70-80% of values fall within ±100
const cciConstant = 0.015

// calculateCCI returns the commodity channel index on typical prices.
// Zero mean deviation yields 0.
func calculateCCI(candles []models.Candle, period int) (float64, bool) {
	if period <= 0 || len(candles) < period {
		return 0, false
	}

	typical := make([]float64, period)
	for i, c := range candles[len(candles)-period:] {
		typical[i] = (c.High + c.Low + c.Close) / 3
	}
	mean := average(typical)

	var meanDev float64
	for _, tp := range typical {
		meanDev += math.Abs(tp - mean)
	}
	meanDev /= float64(period)

	if meanDev == 0 {
		return 0, true
	}
	return (typical[period-1] - mean) / (cciConstant * meanDev), true
}

// calculateTrend returns the fast and slow simple moving averages of closes
func calculateTrend(closes []float64, fast, slow int) (models.TrendValue, bool) {
	f, ok := smaLast(closes, fast)
	if !ok {
		return models.TrendValue{}, false
	}
	s, ok := smaLast(closes, slow)
	if !ok {
		return models.TrendValue{}, false
	}
	return models.TrendValue{Fast: f, Slow: s}, true
}
