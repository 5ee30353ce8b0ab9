package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/Alias1177/SignalEngine/internal/api/twelvedata"
	"github.com/Alias1177/SignalEngine/internal/config"
	"github.com/Alias1177/SignalEngine/internal/engine"
	"github.com/Alias1177/SignalEngine/internal/platform/logging"
	"github.com/Alias1177/SignalEngine/internal/trading/portfolio"
	"github.com/Alias1177/SignalEngine/internal/trading/risk"
	"github.com/Alias1177/SignalEngine/models"
)

func main() {
	symbol := flag.String("symbol", "", "instrument to analyze, defaults to the first configured symbol")
	timeframes := flag.String("timeframes", "", "comma separated timeframes, e.g. 1h,4h")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// 2. Configure logging
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if *symbol == "" {
		*symbol = cfg.Symbols[0]
	}
	tfs := cfg.Timeframes
	if *timeframes != "" {
		if tfs, err = models.ParseTimeframes(*timeframes); err != nil {
			log.Fatal().Err(err).Msg("Invalid -timeframes")
		}
	}

	log.Info().
		Str("symbol", *symbol).
		Interface("timeframes", tfs).
		Str("risk_level", string(cfg.Account.RiskLevel)).
		Msg("Running one-shot analysis")

	// 3. Setup API client
	source := twelvedata.NewClient(twelvedata.ClientOptions{
		APIKey:         cfg.TwelveAPIKey,
		BaseURL:        cfg.TwelveBaseURL,
		RequestTimeout: cfg.FetchTimeout,
		RequestsPerSec: cfg.RequestsPerSec,
		MaxRetries:     cfg.MaxRetries,
	})

	clock := models.SystemClock{}
	eng := engine.New(cfg.EngineConfig(), source,
		risk.NewManager(cfg.Account, clock),
		portfolio.NewTracker(portfolio.NewMemoryStore(), clock, cfg.Account.AccountBalance),
		engine.WithClock(clock),
	)

	// 4. Analyze
	result, err := eng.Analyze(ctx, *symbol, tfs)
	if err != nil {
		log.Fatal().Err(err).Msg("Analysis failed")
	}
	printAnalysis(result)

	// 5. Risk check
	rec, err := eng.Recommend(ctx, result)
	var noSignal *models.NoSignalError
	var rejection *models.RejectionError
	switch {
	case errors.As(err, &noSignal):
		fmt.Printf("\nNo signal: %s\n\n", noSignal.Reason)
	case errors.As(err, &rejection):
		fmt.Printf("\nSignal rejected by risk management: %s\n\n", rejection.Reason)
	case err != nil:
		log.Fatal().Err(err).Msg("Recommendation failed")
	default:
		printRecommendation(rec)
	}
}

// printAnalysis outputs the per-timeframe votes and the fused direction
func printAnalysis(result *models.AnalysisResult) {
	fmt.Printf("\n===== ANALYSIS: %s =====\n", result.Symbol)

	tfs := make([]models.Timeframe, 0, len(result.Votes))
	for tf := range result.Votes {
		tfs = append(tfs, tf)
	}
	sort.Slice(tfs, func(i, j int) bool { return tfs[j].Longer(tfs[i]) })

	for _, tf := range tfs {
		vote := result.Votes[tf]
		fmt.Printf("\n[%s] %s | Confidence: %.2f | Price: %.5f | ATR: %.5f\n",
			tf, vote.Direction, vote.Confidence, vote.Price, vote.ATR)
		for _, v := range vote.Votes {
			fmt.Printf("- %s %s (w %.1f) %s\n", v.Indicator, v.Direction, v.Weight, v.Reason)
		}
	}

	fmt.Printf("\nDirection: %s | Confidence: %.2f | Agreeing timeframes: %d\n",
		result.Direction, result.Confidence, result.Agreeing)
}

// printRecommendation outputs the sized trade
func printRecommendation(rec *models.Recommendation) {
	s := rec.Signal
	fmt.Println("\n===== RECOMMENDATION =====")
	fmt.Printf("%s %s | Confidence: %.0f%%\n", s.Direction, s.Symbol, s.Confidence*100)
	fmt.Printf("Entry: %.5f | Stop: %.5f | Target: %.5f | R/R: %.2f\n",
		s.EntryPrice, s.StopLoss, s.TakeProfit, rec.RiskRewardRatio)
	fmt.Printf("Size: %.2f | Risk: %.2f (%.2f%% of %.2f)\n",
		rec.Size, rec.RiskAmount, rec.RiskFraction*100, rec.AccountBalance)
	fmt.Printf("Timeframes: %v (dominant %s)\n", s.SupportingTimeframes, s.DominantTimeframe)
	fmt.Printf("Risk score: %d (%s) | Portfolio heat: %.1f%% (%s)\n",
		rec.RiskScore, rec.RiskRating, rec.PortfolioHeat*100, rec.HeatStatus)
	for _, w := range rec.Warnings {
		fmt.Printf("Warning: %s\n", w)
	}

	fmt.Println("\nReasoning:")
	for _, r := range s.Reasoning {
		fmt.Printf("- %s\n", r)
	}
	fmt.Println()
}
