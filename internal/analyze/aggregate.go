package analyze

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Alias1177/SignalEngine/models"
)

// AggregatorConfig controls how timeframe votes are fused and filtered
type AggregatorConfig struct {
	// TimeframeWeights overrides the importance of individual timeframes
	TimeframeWeights    map[models.Timeframe]float64 `yaml:"timeframe_weights"`
	MinConfidence       float64                      `yaml:"min_confidence" default:"0.6" validate:"gte=0,lte=1"`
	MinConfirmations    int                          `yaml:"min_confirmations" default:"2" validate:"gte=1"`
	StopATRMultiplier   float64                      `yaml:"stop_atr_multiplier" default:"1.5" validate:"gt=0"`
	TargetATRMultiplier float64                      `yaml:"target_atr_multiplier" default:"2" validate:"gt=0"`
}

// defaultTimeframeWeights favours longer timeframes for trend durability
var defaultTimeframeWeights = map[models.Timeframe]float64{
	models.Timeframe1Min:  0.5,
	models.Timeframe5Min:  0.75,
	models.Timeframe15Min: 1.0,
	models.Timeframe30Min: 1.25,
	models.Timeframe45Min: 1.3,
	models.Timeframe1H:    1.5,
	models.Timeframe2H:    1.75,
	models.Timeframe4H:    2.0,
	models.Timeframe8H:    2.25,
	models.Timeframe1Day:  2.5,
	models.Timeframe1Week: 3.0,
}

// DefaultTimeframeWeights returns a copy of the stock importance table
func DefaultTimeframeWeights() map[models.Timeframe]float64 {
	out := make(map[models.Timeframe]float64, len(defaultTimeframeWeights))
	for tf, w := range defaultTimeframeWeights {
		out[tf] = w
	}
	return out
}

// DefaultAggregatorConfig returns a 0.6 confidence / 2 confirmation filter
// with a 1.5 ATR stop and a 2 ATR target
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		TimeframeWeights:    DefaultTimeframeWeights(),
		MinConfidence:       0.6,
		MinConfirmations:    2,
		StopATRMultiplier:   1.5,
		TargetATRMultiplier: 2,
	}
}

// TimeframeWeight returns the configured importance, falling back to the
// stock table and then to 1
func (c AggregatorConfig) TimeframeWeight(tf models.Timeframe) float64 {
	if w, ok := c.TimeframeWeights[tf]; ok && w > 0 {
		return w
	}
	if w, ok := defaultTimeframeWeights[tf]; ok {
		return w
	}
	return 1
}

// RiskReward is the target to stop distance ratio
func (c AggregatorConfig) RiskReward() float64 {
	if c.StopATRMultiplier == 0 {
		return 0
	}
	return c.TargetATRMultiplier / c.StopATRMultiplier
}

// Aggregate fuses per-timeframe votes into one analysis result. A composite
// signal is attached only when the weighted majority is directional, at
// least MinConfirmations timeframes agree and the confidence reaches
// MinConfidence. A non-positive price falls back to the dominant timeframe's
// last close.
func Aggregate(symbol string, votes map[models.Timeframe]models.TimeframeVote, price float64, now time.Time, cfg AggregatorConfig) *models.AnalysisResult {
	result := &models.AnalysisResult{
		Symbol:    symbol,
		Direction: models.DirectionNeutral,
		Votes:     make(map[models.Timeframe]models.TimeframeVote, len(votes)),
	}

	// Stable order: longest timeframe first
	tfs := make([]models.Timeframe, 0, len(votes))
	for tf, v := range votes {
		result.Votes[tf] = v
		tfs = append(tfs, tf)
	}
	sort.Slice(tfs, func(i, j int) bool {
		if tfs[i].Duration() != tfs[j].Duration() {
			return tfs[i].Longer(tfs[j])
		}
		return tfs[i] < tfs[j]
	})

	var buyPush, sellPush, directionalWeight float64
	for _, tf := range tfs {
		v := votes[tf]
		if v.Direction == models.DirectionNeutral {
			continue
		}
		w := cfg.TimeframeWeight(tf)
		directionalWeight += w
		if v.Direction == models.DirectionBuy {
			buyPush += w * v.Confidence
		} else {
			sellPush += w * v.Confidence
		}
	}

	switch {
	case directionalWeight == 0:
		result.NoSignal = models.NoSignalNoVotes
		return result
	case buyPush == sellPush:
		result.NoSignal = models.NoSignalNeutral
		return result
	case buyPush > sellPush:
		result.Direction = models.DirectionBuy
		result.Confidence = buyPush / directionalWeight
	default:
		result.Direction = models.DirectionSell
		result.Confidence = sellPush / directionalWeight
	}

	var (
		supporting []models.Timeframe
		dominant   models.Timeframe
		bestPush   = -1.0
	)
	for _, tf := range tfs {
		v := votes[tf]
		if v.Direction != result.Direction {
			continue
		}
		supporting = append(supporting, tf)
		// tfs is longest first, so a strict comparison keeps the longer one on ties
		if push := cfg.TimeframeWeight(tf) * v.Confidence; push > bestPush {
			bestPush = push
			dominant = tf
		}
	}
	result.Agreeing = len(supporting)

	if result.Agreeing < cfg.MinConfirmations {
		result.NoSignal = models.NoSignalUnconfirmed
		return result
	}
	if result.Confidence < cfg.MinConfidence {
		result.NoSignal = models.NoSignalLowConfidence
		return result
	}

	dom := votes[dominant]
	entry := price
	if entry <= 0 {
		entry = dom.Price
	}
	stopDist := cfg.StopATRMultiplier * dom.ATR
	targetDist := cfg.TargetATRMultiplier * dom.ATR

	sig := &models.CompositeSignal{
		Symbol:               symbol,
		Direction:            result.Direction,
		Confidence:           result.Confidence,
		EntryPrice:           entry,
		SupportingTimeframes: supporting,
		DominantTimeframe:    dominant,
		CreatedAt:            now,
	}
	if result.Direction == models.DirectionBuy {
		sig.StopLoss = entry - stopDist
		sig.TakeProfit = entry + targetDist
	} else {
		sig.StopLoss = entry + stopDist
		sig.TakeProfit = entry - targetDist
	}

	for _, tf := range supporting {
		sig.Reasoning = append(sig.Reasoning, describeVote(tf, votes[tf]))
	}
	against := result.Direction.Opposite()
	for _, tf := range tfs {
		if v := votes[tf]; v.Direction == against {
			sig.Reasoning = append(sig.Reasoning, fmt.Sprintf("%s against: %s (%.0f%%)", tf, v.Direction, v.Confidence*100))
		}
	}

	result.Signal = sig
	return result
}

// describeVote renders a timeframe vote as one reasoning line
func describeVote(tf models.Timeframe, v models.TimeframeVote) string {
	reasons := make([]string, 0, len(v.Votes))
	for _, iv := range v.Votes {
		if iv.Direction == v.Direction {
			reasons = append(reasons, iv.Reason)
		}
	}
	return fmt.Sprintf("%s %s (%.0f%%): %s", tf, v.Direction, v.Confidence*100, strings.Join(reasons, ", "))
}
