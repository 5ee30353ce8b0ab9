package notify

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/SignalEngine/models"
)

// Notifier delivers accepted recommendations to people
type Notifier interface {
	NotifySignal(ctx context.Context, rec *models.Recommendation) error
}

// Log writes recommendations to the application log
type Log struct{}

func (Log) NotifySignal(_ context.Context, rec *models.Recommendation) error {
	sig := rec.Signal
	log.Info().
		Str("component", "notify").
		Str("symbol", sig.Symbol).
		Str("direction", string(sig.Direction)).
		Float64("confidence", sig.Confidence).
		Float64("entry", sig.EntryPrice).
		Float64("stop_loss", sig.StopLoss).
		Float64("take_profit", sig.TakeProfit).
		Float64("size", rec.Size).
		Msg("Signal")
	return nil
}

// FormatSignal renders a recommendation as a Telegram Markdown message
func FormatSignal(rec *models.Recommendation) string {
	sig := rec.Signal

	icon := "🟢"
	if sig.Direction == models.DirectionSell {
		icon = "🔴"
	}

	tfs := make([]string, len(sig.SupportingTimeframes))
	for i, tf := range sig.SupportingTimeframes {
		tfs[i] = string(tf)
	}
	esc := func(text string) string { return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, text) }

	var b strings.Builder
	fmt.Fprintf(&b, "%s *%s %s*\n\n", icon, sig.Direction, esc(sig.Symbol))
	fmt.Fprintf(&b, "Confidence: %.0f%%\n", sig.Confidence*100)
	fmt.Fprintf(&b, "Entry: %.5f\n", sig.EntryPrice)
	fmt.Fprintf(&b, "Stop loss: %.5f\n", sig.StopLoss)
	fmt.Fprintf(&b, "Take profit: %.5f\n", sig.TakeProfit)
	fmt.Fprintf(&b, "Risk/reward: %.2f\n", rec.RiskRewardRatio)
	fmt.Fprintf(&b, "Size: %.2f (risk %.2f)\n", rec.Size, rec.RiskAmount)
	fmt.Fprintf(&b, "Timeframes: %s (dominant %s)\n", esc(strings.Join(tfs, ", ")), esc(string(sig.DominantTimeframe)))
	if rec.RiskRating != "" {
		fmt.Fprintf(&b, "Risk score: %d (%s), heat %.1f%%\n", rec.RiskScore, esc(string(rec.RiskRating)), rec.PortfolioHeat*100)
	}
	for _, w := range rec.Warnings {
		fmt.Fprintf(&b, "⚠️ %s\n", esc(w))
	}

	if len(sig.Reasoning) > 0 {
		b.WriteString("\n")
		for _, r := range sig.Reasoning {
			fmt.Fprintf(&b, "• %s\n", esc(r))
		}
	}
	return b.String()
}
