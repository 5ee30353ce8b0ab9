package risk

import (
	"math"
	"time"

	"github.com/Alias1177/SignalEngine/models"
)

// Evaluate decides whether a composite signal may be emitted and sizes it.
// Checks run in order: daily limit, drawdown halt, symbol cooldown, zero
// stop distance, portfolio heat and risk score. openRisk is the amount
// already at risk in open trades. Acceptance counts towards the daily limit
// and starts the symbol's cooldown. The returned state must replace st
// whether the signal was accepted or not, since day rollover and halt
// changes are applied on every call.
func Evaluate(sig *models.CompositeSignal, st State, cfg AccountConfig, now time.Time, openRisk float64) (*models.Recommendation, State, error) {
	if sig == nil || sig.Direction == models.DirectionNeutral {
		return nil, st, models.ErrInvalidSignal
	}
	if math.IsNaN(sig.EntryPrice) || math.IsNaN(sig.StopLoss) {
		return nil, st, models.ErrInvalidSignal
	}

	next := st.clone().rollDay(now).updateHalt(cfg)
	reject := func(reason models.RejectReason) (*models.Recommendation, State, error) {
		return nil, next, &models.RejectionError{Symbol: sig.Symbol, Reason: reason}
	}

	if next.DailySignalCount >= cfg.MaxDailySignals {
		return reject(models.RejectDailyLimit)
	}
	if next.Halted || next.AccountBalance <= 0 {
		return reject(models.RejectDrawdownHalt)
	}
	if next.Phase(sig.Symbol, now, cfg.CooldownDuration) == PhaseCooldown {
		return reject(models.RejectCooldown)
	}
	if sig.EntryPrice == sig.StopLoss {
		return reject(models.RejectZeroRiskDistance)
	}

	fraction := cfg.RiskLevel.Fraction()
	sizing := CalculatePositionSize(sig.EntryPrice, sig.StopLoss, sig.TakeProfit, next.AccountBalance, fraction, cfg.MaxPositionSize)

	heat := PortfolioHeat(openRisk, sizing.PositionSize*sig.RiskDistance(), next.AccountBalance, cfg.MaxPortfolioHeat)
	if heat.Status == models.HeatDangerous {
		return reject(models.RejectPortfolioHeat)
	}
	assessment := Assess(sig)
	if assessment.Rejected(sig.Confidence) {
		return reject(models.RejectRiskScore)
	}

	warnings := assessment.Warnings
	if heat.Status == models.HeatCaution {
		warnings = append(warnings, "High portfolio exposure")
	}

	next.DailySignalCount++
	next.LastSignalBySymbol[sig.Symbol] = now

	return &models.Recommendation{
		Signal:          *sig,
		Size:            sizing.PositionSize,
		RiskFraction:    fraction,
		RiskAmount:      sizing.RiskAmount,
		RiskRewardRatio: sizing.RiskRewardRatio,
		AccountBalance:  next.AccountBalance,
		AcceptedAt:      now,
		RiskScore:       assessment.Score,
		RiskRating:      assessment.Rating,
		PortfolioHeat:   heat.Percent,
		HeatStatus:      heat.Status,
		Warnings:        warnings,
	}, next, nil
}
