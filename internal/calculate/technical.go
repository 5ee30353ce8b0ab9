package calculate

import (
	"math"

	"github.com/Alias1177/SignalEngine/models"
)

// trueRanges returns the true range of every candle after the first
func trueRanges(candles []models.Candle) []float64 {
	if len(candles) < 2 {
		return nil
	}
	out := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		out = append(out, trueRange(candles[i], candles[i-1].Close))
	}
	return out
}

// trueRange is the greatest of high-low, |high-prevClose| and |low-prevClose|
func trueRange(c models.Candle, prevClose float64) float64 {
	highLow := c.High - c.Low
	highPrevClose := math.Abs(c.High - prevClose)
	lowPrevClose := math.Abs(c.Low - prevClose)
	return math.Max(highLow, math.Max(highPrevClose, lowPrevClose))
}

// CalculateATR returns Wilder's average true range. It needs period+1 candles.
func CalculateATR(candles []models.Candle, period int) (float64, bool) {
	if period <= 0 || len(candles) < period+1 {
		return 0, false
	}
	trs := trueRanges(candles)

	var sum float64
	for _, tr := range trs[:period] {
		sum += tr
	}
	atr := sum / float64(period)

	for _, tr := range trs[period:] {
		atr = (atr*float64(period-1) + tr) / float64(period)
	}
	return atr, true
}

// CalculateADX returns ADX, +DI and -DI with Wilder smoothing.
// It needs 2*period candles: period bars to seed the smoothed ranges and
// another period-1 DX values to seed the ADX average.
func CalculateADX(candles []models.Candle, period int) (models.ADXValue, bool) {
	if period <= 0 || len(candles) < period*2 {
		return models.ADXValue{}, false
	}

	n := len(candles) - 1
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	trs := make([]float64, n)

	for i := 1; i < len(candles); i++ {
		upMove := candles[i].High - candles[i-1].High
		downMove := candles[i-1].Low - candles[i].Low

		if upMove > downMove && upMove > 0 {
			plusDM[i-1] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i-1] = downMove
		}
		trs[i-1] = trueRange(candles[i], candles[i-1].Close)
	}

	var smoothedPlusDM, smoothedMinusDM, smoothedTR float64
	for i := 0; i < period; i++ {
		smoothedPlusDM += plusDM[i]
		smoothedMinusDM += minusDM[i]
		smoothedTR += trs[i]
	}

	plusDI, minusDI, dx := directional(smoothedPlusDM, smoothedMinusDM, smoothedTR)
	dxs := []float64{dx}

	var adx float64
	if period == 1 {
		adx = dx
	}
	p := float64(period)
	for i := period; i < n; i++ {
		smoothedPlusDM = smoothedPlusDM - smoothedPlusDM/p + plusDM[i]
		smoothedMinusDM = smoothedMinusDM - smoothedMinusDM/p + minusDM[i]
		smoothedTR = smoothedTR - smoothedTR/p + trs[i]

		plusDI, minusDI, dx = directional(smoothedPlusDM, smoothedMinusDM, smoothedTR)

		switch {
		case len(dxs) < period-1:
			dxs = append(dxs, dx)
		case len(dxs) == period-1:
			dxs = append(dxs, dx)
			adx = average(dxs)
		default:
			adx = (adx*(p-1) + dx) / p
		}
	}

	if len(dxs) < period {
		return models.ADXValue{}, false
	}

	return models.ADXValue{ADX: adx, PlusDI: plusDI, MinusDI: minusDI}, true
}

func directional(plusDM, minusDM, tr float64) (plusDI, minusDI, dx float64) {
	if tr <= 0 {
		return 0, 0, 0
	}
	plusDI = plusDM / tr * 100
	minusDI = minusDM / tr * 100
	if sum := plusDI + minusDI; sum > 0 {
		dx = math.Abs(plusDI-minusDI) / sum * 100
	}
	return plusDI, minusDI, dx
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
