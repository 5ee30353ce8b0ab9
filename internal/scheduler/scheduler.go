package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/SignalEngine/internal/notify"
	"github.com/Alias1177/SignalEngine/models"
)

// Engine is what the scheduler drives
type Engine interface {
	Analyze(ctx context.Context, symbol string, timeframes []models.Timeframe) (*models.AnalysisResult, error)
	Recommend(ctx context.Context, result *models.AnalysisResult) (*models.Recommendation, error)
	OpenTrade(ctx context.Context, rec *models.Recommendation) (*models.Trade, error)
	ResetDaily()
}

// Options configures the scheduler
type Options struct {
	Symbols    []string
	Timeframes []models.Timeframe
	Interval   time.Duration
	// AutoTrack opens a trade for every accepted signal
	AutoTrack bool
}

// Scheduler runs one analysis job per symbol plus the daily risk reset.
type Scheduler struct {
	cron     *cron.Cron
	engine   Engine
	notifier notify.Notifier
	opts     Options
	ctx      context.Context
	logger   zerolog.Logger

	mu       sync.Mutex
	inFlight map[string]bool
}

// New creates a scheduler. ctx bounds every job it runs.
func New(ctx context.Context, engine Engine, notifier notify.Notifier, opts Options) *Scheduler {
	if notifier == nil {
		notifier = notify.Log{}
	}
	logger := log.With().Str("component", "scheduler").Logger()

	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(time.UTC),
			cron.WithLogger(cronLogger{logger: logger}),
		),
		engine:   engine,
		notifier: notifier,
		opts:     opts,
		ctx:      ctx,
		logger:   logger,
		inFlight: make(map[string]bool),
	}
}

// Register adds the per-symbol analysis jobs and the midnight reset
func (s *Scheduler) Register() error {
	if s.opts.Interval <= 0 {
		return fmt.Errorf("analysis interval must be positive, got %s", s.opts.Interval)
	}

	for _, symbol := range s.opts.Symbols {
		symbol := symbol
		s.cron.Schedule(cron.Every(s.opts.Interval), cron.FuncJob(func() {
			s.RunNow(symbol)
		}))
	}

	if _, err := s.cron.AddFunc("0 0 0 * * *", s.resetDaily); err != nil {
		return fmt.Errorf("register daily reset: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().
		Strs("symbols", s.opts.Symbols).
		Dur("interval", s.opts.Interval).
		Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Scheduler stopped")
}

// RunNow runs one analysis cycle for symbol. It reports false when a cycle
// for the same symbol is still running and this one was skipped.
func (s *Scheduler) RunNow(symbol string) bool {
	if !s.acquire(symbol) {
		s.logger.Warn().Str("symbol", symbol).Msg("Previous cycle still running, skipping tick")
		return false
	}
	defer s.release(symbol)

	s.cycle(symbol)
	return true
}

func (s *Scheduler) cycle(symbol string) {
	logger := s.logger.With().Str("symbol", symbol).Logger()

	result, err := s.engine.Analyze(s.ctx, symbol, s.opts.Timeframes)
	if err != nil {
		if errors.Is(err, models.ErrDataUnavailable) {
			logger.Warn().Err(err).Msg("Market data unavailable, cycle skipped")
			return
		}
		logger.Error().Err(err).Msg("Analysis failed")
		return
	}

	rec, err := s.engine.Recommend(s.ctx, result)
	if err != nil {
		var noSignal *models.NoSignalError
		switch {
		case errors.As(err, &noSignal):
			logger.Debug().Str("reason", string(noSignal.Reason)).Msg("No signal")
		default:
			if reason, ok := models.IsRejection(err); ok {
				logger.Info().Str("reason", string(reason)).Msg("Signal rejected")
				return
			}
			logger.Error().Err(err).Msg("Recommendation failed")
		}
		return
	}

	if err := s.notifier.NotifySignal(s.ctx, rec); err != nil {
		logger.Error().Err(err).Msg("Notification failed")
	}

	if s.opts.AutoTrack {
		trade, err := s.engine.OpenTrade(s.ctx, rec)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to track trade")
			return
		}
		logger.Info().Str("trade_id", trade.ID).Msg("Trade tracked")
	}
}

func (s *Scheduler) resetDaily() {
	s.engine.ResetDaily()
}

func (s *Scheduler) acquire(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[symbol] {
		return false
	}
	s.inFlight[symbol] = true
	return true
}

func (s *Scheduler) release(symbol string) {
	s.mu.Lock()
	delete(s.inFlight, symbol)
	s.mu.Unlock()
}

// cronLogger adapts zerolog to cron.Logger
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
