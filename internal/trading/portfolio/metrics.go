package portfolio

import (
	"math"
	"sort"
	"time"

	"github.com/Alias1177/SignalEngine/models"
)

// Summarize computes performance metrics over trades. Only closed trades
// contribute to PnL statistics; open trades are counted. Trades are
// replayed in close order to build the equity curve.
func Summarize(trades []models.Trade, startingBalance float64) *models.PortfolioSummary {
	s := &models.PortfolioSummary{
		TotalTrades:       len(trades),
		CountsBySymbol:    make(map[string]int),
		CountsByTimeframe: make(map[models.Timeframe]int),
	}

	var closed []models.Trade
	for _, tr := range trades {
		s.CountsBySymbol[tr.Symbol]++
		if tr.Timeframe != "" {
			s.CountsByTimeframe[tr.Timeframe]++
		}
		if tr.IsOpen() || tr.PnL == nil {
			s.OpenTrades++
			continue
		}
		closed = append(closed, tr)
	}
	s.ClosedTrades = len(closed)
	if len(closed) == 0 {
		return s
	}

	sort.SliceStable(closed, func(i, j int) bool {
		return closed[i].ClosedAt.Before(*closed[j].ClosedAt)
	})

	var totalDuration time.Duration
	for _, tr := range closed {
		pnl := *tr.PnL
		s.TotalPnL += pnl
		totalDuration += tr.ClosedAt.Sub(tr.OpenedAt)

		switch {
		case pnl > 0:
			s.WinningTrades++
			s.GrossProfit += pnl
			s.LargestWin = math.Max(s.LargestWin, pnl)
		case pnl < 0:
			s.LosingTrades++
			s.GrossLoss += -pnl
			s.LargestLoss = math.Min(s.LargestLoss, pnl)
		}
	}

	s.WinRate = float64(s.WinningTrades) / float64(len(closed))
	s.AvgTradeDuration = totalDuration / time.Duration(len(closed))

	if s.WinningTrades > 0 {
		s.AverageWin = s.GrossProfit / float64(s.WinningTrades)
	}
	if s.LosingTrades > 0 {
		s.AverageLoss = -s.GrossLoss / float64(s.LosingTrades)
	}

	switch {
	case s.GrossLoss > 0:
		s.ProfitFactor = s.GrossProfit / s.GrossLoss
	case s.GrossProfit > 0:
		s.ProfitFactor = models.ProfitFactorUnbounded
	}

	s.ConsecutiveWins, s.ConsecutiveLosses = currentStreaks(closed)
	s.EquityCurve = equityCurve(closed, startingBalance)
	s.MaxDrawdown, s.MaxDrawdownPct = maxDrawdown(s.EquityCurve)

	return s
}

// currentStreaks counts the run of wins or losses ending at the latest trade
func currentStreaks(closed []models.Trade) (wins, losses int) {
	for i := len(closed) - 1; i >= 0; i-- {
		if *closed[i].PnL > 0 {
			wins++
		} else {
			break
		}
	}
	for i := len(closed) - 1; i >= 0; i-- {
		if *closed[i].PnL < 0 {
			losses++
		} else {
			break
		}
	}
	return wins, losses
}

// equityCurve starts at the starting balance and adds each trade's PnL
func equityCurve(closed []models.Trade, startingBalance float64) []float64 {
	curve := make([]float64, 0, len(closed)+1)
	equity := startingBalance
	curve = append(curve, equity)
	for _, tr := range closed {
		equity += *tr.PnL
		curve = append(curve, equity)
	}
	return curve
}

// maxDrawdown returns the largest peak-to-trough decline of the curve, in
// absolute terms and as a fraction of the peak it fell from
func maxDrawdown(curve []float64) (float64, float64) {
	if len(curve) == 0 {
		return 0, 0
	}

	var maxAbs, maxPct float64
	peak := curve[0]
	for _, equity := range curve {
		if equity > peak {
			peak = equity
		}
		dd := peak - equity
		if dd > maxAbs {
			maxAbs = dd
		}
		if peak > 0 {
			if pct := dd / peak; pct > maxPct {
				maxPct = pct
			}
		}
	}
	return maxAbs, maxPct
}
