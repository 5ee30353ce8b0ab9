package risk

import (
	"fmt"
	"math"
	"strings"
)

// RiskLevel selects the fraction of the account put at risk per trade
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

var riskFractions = map[RiskLevel]float64{
	RiskLow:    0.005,
	RiskMedium: 0.01,
	RiskHigh:   0.02,
}

// ParseRiskLevel accepts LOW, MEDIUM or HIGH in any case
func ParseRiskLevel(s string) (RiskLevel, error) {
	level := RiskLevel(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := riskFractions[level]; !ok {
		return "", fmt.Errorf("unknown risk level %q", s)
	}
	return level, nil
}

// Fraction returns the per-trade risk fraction, 0 for an unknown level
func (l RiskLevel) Fraction() float64 {
	return riskFractions[l]
}

// PositionSizingResult holds position sizing calculation results
type PositionSizingResult struct {
	PositionSize    float64 `json:"position_size"`
	RiskAmount      float64 `json:"risk_amount"`
	RiskRewardRatio float64 `json:"risk_reward_ratio"`
	AccountRisk     float64 `json:"account_risk"`
	Capped          bool    `json:"capped"`
}

// CalculatePositionSize sizes a position so that hitting the stop loses at
// most balance*riskFraction. maxSize caps the result when positive. The
// caller guarantees entry != stop.
func CalculatePositionSize(entry, stop, target, balance, riskFraction, maxSize float64) PositionSizingResult {
	distance := math.Abs(entry - stop)
	riskAmount := balance * riskFraction

	size := riskAmount / distance

	capped := false
	if maxSize > 0 && size > maxSize {
		size = maxSize
		capped = true
	}

	// Rounding in the division can overshoot the budget by an ulp
	for size > 0 && size*distance > riskAmount {
		size = math.Nextafter(size, 0)
	}
	if size < 0 {
		size = 0
	}

	rr := 0.0
	if target != 0 {
		rr = math.Abs(target-entry) / distance
	}

	return PositionSizingResult{
		PositionSize:    size,
		RiskAmount:      riskAmount,
		RiskRewardRatio: rr,
		AccountRisk:     riskFraction,
		Capped:          capped,
	}
}
