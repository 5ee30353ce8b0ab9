package calculate

import (
	"math"

	"github.com/Alias1177/SignalEngine/models"
)

// Candlestick pattern names reported in IndicatorSet.Patterns
const (
	PatternDoji             = "doji"
	PatternHammer           = "hammer"
	PatternShootingStar     = "shooting_star"
	PatternBullishEngulfing = "bullish_engulfing"
	PatternBearishEngulfing = "bearish_engulfing"
	PatternMorningStar      = "morning_star"
	PatternEveningStar      = "evening_star"
)

// PatternBias maps each pattern to the direction it suggests
var PatternBias = map[string]models.Direction{
	PatternDoji:             models.DirectionNeutral,
	PatternHammer:           models.DirectionBuy,
	PatternShootingStar:     models.DirectionSell,
	PatternBullishEngulfing: models.DirectionBuy,
	PatternBearishEngulfing: models.DirectionSell,
	PatternMorningStar:      models.DirectionBuy,
	PatternEveningStar:      models.DirectionSell,
}

// detectPatterns inspects the last three candles. It needs at least two.
func detectPatterns(candles []models.Candle) ([]string, bool) {
	if len(candles) < 2 {
		return nil, false
	}

	latest := candles[len(candles)-1]
	prev := candles[len(candles)-2]

	var found []string

	body := math.Abs(latest.Close - latest.Open)
	upperShadow := latest.High - math.Max(latest.Open, latest.Close)
	lowerShadow := math.Min(latest.Open, latest.Close) - latest.Low
	rng := latest.High - latest.Low

	if rng > 0 && body <= rng*0.1 {
		found = append(found, PatternDoji)
	}
	if body > 0 && lowerShadow >= 2*body && upperShadow <= body {
		found = append(found, PatternHammer)
	}
	if body > 0 && upperShadow >= 2*body && lowerShadow <= body {
		found = append(found, PatternShootingStar)
	}

	bullish := latest.Close > latest.Open
	bearish := latest.Close < latest.Open
	if bullish && prev.Close < prev.Open && latest.Open < prev.Close && latest.Close > prev.Open {
		found = append(found, PatternBullishEngulfing)
	}
	if bearish && prev.Close > prev.Open && latest.Open > prev.Close && latest.Close < prev.Open {
		found = append(found, PatternBearishEngulfing)
	}

	if len(candles) >= 3 {
		first := candles[len(candles)-3]
		second := prev
		smallMiddle := math.Abs(second.Open-second.Close) < body*0.5
		firstMid := (first.Open + first.Close) / 2

		if first.Close < first.Open && smallMiddle && bullish && latest.Close > firstMid {
			found = append(found, PatternMorningStar)
		}
		if first.Close > first.Open && smallMiddle && bearish && latest.Close < firstMid {
			found = append(found, PatternEveningStar)
		}
	}

	return found, true
}
