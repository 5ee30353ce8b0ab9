package analyze

import (
	"fmt"

	"github.com/Alias1177/SignalEngine/internal/calculate"
	"github.com/Alias1177/SignalEngine/models"
)

// Thresholds holds the fixed rule boundaries every indicator votes against
type Thresholds struct {
	RSIOversold        float64 `yaml:"rsi_oversold" default:"30"`
	RSIOverbought      float64 `yaml:"rsi_overbought" default:"70"`
	StochOversold      float64 `yaml:"stoch_oversold" default:"20"`
	StochOverbought    float64 `yaml:"stoch_overbought" default:"80"`
	WilliamsOversold   float64 `yaml:"williams_oversold" default:"-80"`
	WilliamsOverbought float64 `yaml:"williams_overbought" default:"-20"`
	CCIOversold        float64 `yaml:"cci_oversold" default:"-100"`
	CCIOverbought      float64 `yaml:"cci_overbought" default:"100"`
	ADXTrend           float64 `yaml:"adx_trend" default:"25"`
	// LevelProximityATR is how close, in ATRs, price must be to a level to vote
	LevelProximityATR float64 `yaml:"level_proximity_atr" default:"0.5"`
	// MACDCrossoverOnly disables the histogram-sign vote outside crossovers
	MACDCrossoverOnly bool `yaml:"macd_crossover_only"`
}

// ScoringConfig is the per-timeframe voting policy
type ScoringConfig struct {
	// Weights is the {indicator: weight} table. Missing or zero weights do not vote.
	// ATR never votes; it feeds stop distances and level proximity.
	Weights    map[models.IndicatorKind]float64 `yaml:"weights"`
	Thresholds Thresholds                       `yaml:"thresholds"`
}

// DefaultWeights returns the stock weight table
func DefaultWeights() map[models.IndicatorKind]float64 {
	return map[models.IndicatorKind]float64{
		models.IndicatorRSI:               1.0,
		models.IndicatorMACD:              1.2,
		models.IndicatorBollinger:         1.0,
		models.IndicatorStochastic:        0.8,
		models.IndicatorADX:               1.0,
		models.IndicatorWilliamsR:         0.6,
		models.IndicatorCCI:               0.6,
		models.IndicatorSupportResistance: 0.8,
		models.IndicatorTrend:             1.5,
		models.IndicatorPattern:           1.0,
	}
}

// DefaultThresholds returns the textbook levels
func DefaultThresholds() Thresholds {
	return Thresholds{
		RSIOversold:        30,
		RSIOverbought:      70,
		StochOversold:      20,
		StochOverbought:    80,
		WilliamsOversold:   -80,
		WilliamsOverbought: -20,
		CCIOversold:        -100,
		CCIOverbought:      100,
		ADXTrend:           25,
		LevelProximityATR:  0.5,
	}
}

// DefaultScoringConfig returns default weights and thresholds
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{Weights: DefaultWeights(), Thresholds: DefaultThresholds()}
}

// Score turns one timeframe's indicator set into a weighted vote.
// Confidence is the agreeing weight over all non-neutral weight; no votes
// or an exact tie yield NEUTRAL with zero confidence.
func Score(set *models.IndicatorSet, price float64, cfg ScoringConfig) models.TimeframeVote {
	vote := models.TimeframeVote{Direction: models.DirectionNeutral, Price: price}
	if set == nil {
		return vote
	}
	vote.Timeframe = set.Timeframe
	if set.Available(models.IndicatorATR) {
		vote.ATR = set.ATR
	}

	var buyWeight, sellWeight float64
	for _, kind := range models.AllIndicators {
		weight := cfg.Weights[kind]
		if weight <= 0 || !set.Available(kind) {
			continue
		}

		dir, reason := indicatorVote(kind, set, price, cfg.Thresholds)
		if dir == models.DirectionNeutral {
			continue
		}

		vote.Votes = append(vote.Votes, models.IndicatorVote{
			Indicator: kind,
			Direction: dir,
			Weight:    weight,
			Reason:    reason,
		})
		if dir == models.DirectionBuy {
			buyWeight += weight
		} else {
			sellWeight += weight
		}
	}

	total := buyWeight + sellWeight
	switch {
	case total == 0, buyWeight == sellWeight:
		return vote
	case buyWeight > sellWeight:
		vote.Direction = models.DirectionBuy
		vote.Confidence = buyWeight / total
	default:
		vote.Direction = models.DirectionSell
		vote.Confidence = sellWeight / total
	}
	return vote
}

// indicatorVote applies the fixed threshold rule of a single indicator
func indicatorVote(kind models.IndicatorKind, set *models.IndicatorSet, price float64, th Thresholds) (models.Direction, string) {
	switch kind {
	case models.IndicatorRSI:
		if set.RSI < th.RSIOversold {
			return models.DirectionBuy, fmt.Sprintf("RSI oversold (%.1f)", set.RSI)
		}
		if set.RSI > th.RSIOverbought {
			return models.DirectionSell, fmt.Sprintf("RSI overbought (%.1f)", set.RSI)
		}

	case models.IndicatorMACD:
		m := set.MACD
		switch {
		case m.BullishCrossover():
			return models.DirectionBuy, "MACD bullish crossover"
		case m.BearishCrossover():
			return models.DirectionSell, "MACD bearish crossover"
		case th.MACDCrossoverOnly:
		case m.Histogram > 0:
			return models.DirectionBuy, "MACD above signal"
		case m.Histogram < 0:
			return models.DirectionSell, "MACD below signal"
		}

	case models.IndicatorBollinger:
		bb := set.Bollinger
		if bb.Upper <= bb.Lower {
			break
		}
		if price <= bb.Lower {
			return models.DirectionBuy, "price at/below lower Bollinger band"
		}
		if price >= bb.Upper {
			return models.DirectionSell, "price at/above upper Bollinger band"
		}

	case models.IndicatorStochastic:
		s := set.Stochastic
		if s.K < th.StochOversold && s.D < th.StochOversold {
			return models.DirectionBuy, fmt.Sprintf("Stochastic oversold (%.1f/%.1f)", s.K, s.D)
		}
		if s.K > th.StochOverbought && s.D > th.StochOverbought {
			return models.DirectionSell, fmt.Sprintf("Stochastic overbought (%.1f/%.1f)", s.K, s.D)
		}

	case models.IndicatorADX:
		a := set.ADX
		if a.ADX < th.ADXTrend {
			break
		}
		if a.PlusDI > a.MinusDI {
			return models.DirectionBuy, fmt.Sprintf("strong uptrend (ADX %.1f)", a.ADX)
		}
		if a.MinusDI > a.PlusDI {
			return models.DirectionSell, fmt.Sprintf("strong downtrend (ADX %.1f)", a.ADX)
		}

	case models.IndicatorWilliamsR:
		if set.WilliamsR <= th.WilliamsOversold {
			return models.DirectionBuy, fmt.Sprintf("Williams %%R oversold (%.1f)", set.WilliamsR)
		}
		if set.WilliamsR >= th.WilliamsOverbought {
			return models.DirectionSell, fmt.Sprintf("Williams %%R overbought (%.1f)", set.WilliamsR)
		}

	case models.IndicatorCCI:
		if set.CCI <= th.CCIOversold {
			return models.DirectionBuy, fmt.Sprintf("CCI oversold (%.0f)", set.CCI)
		}
		if set.CCI >= th.CCIOverbought {
			return models.DirectionSell, fmt.Sprintf("CCI overbought (%.0f)", set.CCI)
		}

	case models.IndicatorSupportResistance:
		if !set.Available(models.IndicatorATR) || set.ATR <= 0 {
			break
		}
		band := th.LevelProximityATR * set.ATR
		lv := set.Levels
		nearSupport := lv.HasSupport && price-lv.Support <= band
		nearResistance := lv.HasResistance && lv.Resistance-price <= band
		if nearSupport && !nearResistance {
			return models.DirectionBuy, fmt.Sprintf("price near support %.5f", lv.Support)
		}
		if nearResistance && !nearSupport {
			return models.DirectionSell, fmt.Sprintf("price near resistance %.5f", lv.Resistance)
		}

	case models.IndicatorTrend:
		tr := set.Trend
		if price > tr.Fast && tr.Fast > tr.Slow {
			return models.DirectionBuy, "price above SMA fast > SMA slow"
		}
		if price < tr.Fast && tr.Fast < tr.Slow {
			return models.DirectionSell, "price below SMA fast < SMA slow"
		}

	case models.IndicatorPattern:
		net := 0
		var names []string
		for _, p := range set.Patterns {
			switch calculate.PatternBias[p] {
			case models.DirectionBuy:
				net++
				names = append(names, p)
			case models.DirectionSell:
				net--
				names = append(names, p)
			}
		}
		if net > 0 {
			return models.DirectionBuy, fmt.Sprintf("bullish patterns %v", names)
		}
		if net < 0 {
			return models.DirectionSell, fmt.Sprintf("bearish patterns %v", names)
		}
	}

	return models.DirectionNeutral, ""
}
