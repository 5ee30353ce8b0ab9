package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/SignalEngine/internal/api/twelvedata"
	"github.com/Alias1177/SignalEngine/internal/cache"
	"github.com/Alias1177/SignalEngine/internal/config"
	"github.com/Alias1177/SignalEngine/internal/database"
	"github.com/Alias1177/SignalEngine/internal/engine"
	"github.com/Alias1177/SignalEngine/internal/handler/api"
	"github.com/Alias1177/SignalEngine/internal/metrics"
	"github.com/Alias1177/SignalEngine/internal/notify"
	"github.com/Alias1177/SignalEngine/internal/platform/logging"
	"github.com/Alias1177/SignalEngine/internal/scheduler"
	"github.com/Alias1177/SignalEngine/internal/trading/portfolio"
	"github.com/Alias1177/SignalEngine/internal/trading/risk"
	"github.com/Alias1177/SignalEngine/models"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// 2. Configure logging
	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Strs("symbols", cfg.Symbols).
		Interface("timeframes", cfg.Timeframes).
		Dur("interval", cfg.AnalysisInterval).
		Str("risk_level", string(cfg.Account.RiskLevel)).
		Msg("Starting signal engine")

	if cfg.TwelveAPIKey == "" {
		log.Fatal().Msg("TWELVE_API_KEY is required")
	}

	// 3. Market data
	source := twelvedata.NewClient(twelvedata.ClientOptions{
		APIKey:         cfg.TwelveAPIKey,
		BaseURL:        cfg.TwelveBaseURL,
		RequestTimeout: cfg.FetchTimeout,
		RequestsPerSec: cfg.RequestsPerSec,
		MaxRetries:     cfg.MaxRetries,
	})

	// 4. Persistence
	clock := models.SystemClock{}
	riskManager := risk.NewManager(cfg.Account, clock)
	var store portfolio.Store = portfolio.NewMemoryStore()

	if cfg.Postgres.Enabled {
		db, err := database.New(ctx, cfg.Postgres.ConnectionParams)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer db.Close()

		store = database.NewTradeRepository(db)
		if st, ok, err := db.LoadRiskState(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to load risk state, starting fresh")
		} else if ok {
			riskManager.Restore(st)
			log.Info().Int("daily_count", st.DailySignalCount).Float64("balance", st.AccountBalance).Msg("Risk state restored")
		}
		riskManager.SetStore(db)
	}

	// 5. Indicator cache
	var indicatorCache cache.IndicatorCache = cache.NewMemory(clock)
	if cfg.Redis.Enabled {
		rc, err := cache.NewRedis(ctx, cfg.Redis.RedisConfig)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rc.Close()
		indicatorCache = rc
	}

	// 6. Engine
	recorder := metrics.New()
	tracker := portfolio.NewTracker(store, clock, cfg.Account.AccountBalance)
	eng := engine.New(cfg.EngineConfig(), source, riskManager, tracker,
		engine.WithCache(indicatorCache),
		engine.WithMetrics(recorder),
		engine.WithClock(clock),
	)

	// 7. Notifications
	var notifier notify.Notifier = notify.Log{}
	if cfg.Telegram.Token != "" {
		tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatIDs)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to start Telegram notifier")
		}
		notifier = tg
	}

	// 8. Scheduler
	sched := scheduler.New(ctx, eng, notifier, scheduler.Options{
		Symbols:    cfg.Symbols,
		Timeframes: cfg.Timeframes,
		Interval:   cfg.AnalysisInterval,
		AutoTrack:  cfg.AutoTrack,
	})
	if err := sched.Register(); err != nil {
		log.Fatal().Err(err).Msg("Failed to register jobs")
	}
	sched.Start()
	for _, symbol := range cfg.Symbols {
		go sched.RunNow(symbol)
	}

	// 9. HTTP API
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.ContextTimeout(2 * cfg.FetchTimeout))
	api.NewHandler(eng).RegisterRoutes(e, recorder.Handler())

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP API listening")
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutdown signal received, exiting...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown failed")
	}
	sched.Stop()
}
