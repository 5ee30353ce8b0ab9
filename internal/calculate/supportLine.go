package calculate

import "github.com/Alias1177/SignalEngine/models"

// identifySupportResistance scans the last lookback candles for swing highs
// and lows (an extreme over swing bars on each side) and returns the nearest
// level strictly below and strictly above the last close. Both swing highs
// and swing lows count as levels on either side of price.
func identifySupportResistance(candles []models.Candle, swing, lookback int) (models.Levels, bool) {
	if swing <= 0 || len(candles) < 2*swing+1 {
		return models.Levels{}, false
	}

	window := candles
	if lookback > 0 && len(window) > lookback {
		window = window[len(window)-lookback:]
	}
	if len(window) < 2*swing+1 {
		return models.Levels{}, false
	}

	price := candles[len(candles)-1].Close
	var levels models.Levels

	consider := func(level float64) {
		switch {
		case level < price:
			if !levels.HasSupport || level > levels.Support {
				levels.Support = level
				levels.HasSupport = true
			}
		case level > price:
			if !levels.HasResistance || level < levels.Resistance {
				levels.Resistance = level
				levels.HasResistance = true
			}
		}
	}

	for i := swing; i < len(window)-swing; i++ {
		if isSwingLow(window, i, swing) {
			consider(window[i].Low)
		}
		if isSwingHigh(window, i, swing) {
			consider(window[i].High)
		}
	}

	return levels, true
}

func isSwingLow(candles []models.Candle, i, swing int) bool {
	for j := 1; j <= swing; j++ {
		if candles[i].Low >= candles[i-j].Low || candles[i].Low >= candles[i+j].Low {
			return false
		}
	}
	return true
}

func isSwingHigh(candles []models.Candle, i, swing int) bool {
	for j := 1; j <= swing; j++ {
		if candles[i].High <= candles[i-j].High || candles[i].High <= candles[i+j].High {
			return false
		}
	}
	return true
}
