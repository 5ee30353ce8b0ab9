package calculate

import "github.com/Alias1177/SignalEngine/models"

// calculateStochastic returns %K over kPeriod and %D as the SMA of the last
// dPeriod %K values. It needs kPeriod+dPeriod-1 candles.
func calculateStochastic(candles []models.Candle, kPeriod, dPeriod int) (models.StochasticValue, bool) {
	if kPeriod <= 0 || dPeriod <= 0 || len(candles) < kPeriod+dPeriod-1 {
		return models.StochasticValue{}, false
	}

	ks := make([]float64, 0, dPeriod)
	for end := len(candles) - dPeriod + 1; end <= len(candles); end++ {
		ks = append(ks, percentK(candles[end-kPeriod:end]))
	}

	d, _ := smaLast(ks, dPeriod)
	return models.StochasticValue{K: ks[len(ks)-1], D: d}, true
}

// percentK locates the last close within the window's range, 50 when flat
func percentK(window []models.Candle) float64 {
	highest, lowest := highLow(window)
	if highest-lowest <= 0 {
		return 50
	}
	latest := window[len(window)-1].Close
	return (latest - lowest) / (highest - lowest) * 100
}

func highLow(window []models.Candle) (float64, float64) {
	highest, lowest := window[0].High, window[0].Low
	for _, c := range window[1:] {
		if c.High > highest {
			highest = c.High
		}
		if c.Low < lowest {
			lowest = c.Low
		}
	}
	return highest, lowest
}
