package risk

import (
	"math"

	"github.com/Alias1177/SignalEngine/models"
)

const (
	// maxRiskScore is the highest score a signal may carry and still be sent
	maxRiskScore = 4
	// minAssessConfidence rejects signals regardless of score below it
	minAssessConfidence = 0.2
	// heatCautionShare of the heat ceiling starts the CAUTION band
	heatCautionShare = 0.8
)

// Assessment scores a signal's trade geometry and conviction. Lower is safer.
type Assessment struct {
	Score           int
	Rating          models.RiskRating
	RiskRewardRatio float64
	StopPercent     float64
	Warnings        []string
}

// Rejected reports whether the signal is too risky to send
func (a Assessment) Rejected(confidence float64) bool {
	return a.Score > maxRiskScore || confidence < minAssessConfidence
}

// Assess grades a composite signal on risk/reward, stop distance relative to
// price and confidence.
func Assess(sig *models.CompositeSignal) Assessment {
	var a Assessment

	stopDist := math.Abs(sig.EntryPrice - sig.StopLoss)
	profitDist := sig.TakeProfit - sig.EntryPrice
	if sig.Direction == models.DirectionSell {
		profitDist = -profitDist
	}
	if stopDist > 0 {
		a.RiskRewardRatio = profitDist / stopDist
	}
	if sig.EntryPrice > 0 {
		a.StopPercent = stopDist / sig.EntryPrice * 100
	}

	switch {
	case a.RiskRewardRatio < 1:
		a.Score += 3
		a.Warnings = append(a.Warnings, "Poor risk-reward ratio")
	case a.RiskRewardRatio < 1.5:
		a.Score++
	default:
		a.Score--
	}

	switch {
	case a.StopPercent > 5:
		a.Score += 2
		a.Warnings = append(a.Warnings, "High stop loss percentage")
	case a.StopPercent < 0.1:
		a.Score++
		a.Warnings = append(a.Warnings, "Very tight stop loss")
	}

	switch {
	case sig.Confidence < 0.3:
		a.Score += 2
		a.Warnings = append(a.Warnings, "Low signal confidence")
	case sig.Confidence > 0.7:
		a.Score -= 2
	}

	a.Rating = rate(a.Score)
	return a
}

func rate(score int) models.RiskRating {
	switch {
	case score <= -2:
		return models.RiskRatingVeryLow
	case score <= 0:
		return models.RiskRatingLow
	case score <= 2:
		return models.RiskRatingMedium
	case score <= maxRiskScore:
		return models.RiskRatingHigh
	default:
		return models.RiskRatingVeryHigh
	}
}

// Heat is total open risk over the account balance
type Heat struct {
	OpenRisk float64
	Percent  float64 // 0-1
	Status   models.HeatStatus
}

// PortfolioHeat grades open risk plus the candidate trade's risk against
// ceiling. A non-positive ceiling disables the check.
func PortfolioHeat(openRisk, tradeRisk, balance, ceiling float64) Heat {
	h := Heat{OpenRisk: openRisk + tradeRisk, Status: models.HeatSafe}
	if balance > 0 {
		h.Percent = h.OpenRisk / balance
	}
	if ceiling <= 0 {
		return h
	}
	switch {
	case h.Percent > ceiling:
		h.Status = models.HeatDangerous
	case h.Percent > ceiling*heatCautionShare:
		h.Status = models.HeatCaution
	}
	return h
}
