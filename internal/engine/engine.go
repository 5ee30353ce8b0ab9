package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/SignalEngine/internal/analyze"
	"github.com/Alias1177/SignalEngine/internal/cache"
	"github.com/Alias1177/SignalEngine/internal/calculate"
	"github.com/Alias1177/SignalEngine/internal/metrics"
	"github.com/Alias1177/SignalEngine/internal/trading/portfolio"
	"github.com/Alias1177/SignalEngine/internal/trading/risk"
	"github.com/Alias1177/SignalEngine/models"
)

// Config holds the analysis pipeline settings
type Config struct {
	Timeframes   []models.Timeframe
	CandleCount  int
	FetchTimeout time.Duration
	CacheTTL     time.Duration
	Windows      calculate.Windows
	Scoring      analyze.ScoringConfig
	Aggregator   analyze.AggregatorConfig
}

// DefaultConfig analyzes 1h and 4h with stock indicator settings
func DefaultConfig() Config {
	return Config{
		Timeframes:   []models.Timeframe{models.Timeframe1H, models.Timeframe4H},
		CandleCount:  100,
		FetchTimeout: 10 * time.Second,
		CacheTTL:     time.Hour,
		Windows:      calculate.DefaultWindows(),
		Scoring:      analyze.DefaultScoringConfig(),
		Aggregator:   analyze.DefaultAggregatorConfig(),
	}
}

// Engine ties data fetching, scoring, aggregation, risk and portfolio together
type Engine struct {
	cfg       Config
	source    models.CandleSource
	risk      *risk.Manager
	portfolio *portfolio.Tracker
	cache     cache.IndicatorCache
	metrics   metrics.Metrics
	clock     models.Clock
	logger    zerolog.Logger
}

// Option customizes an Engine
type Option func(*Engine)

// WithCache enables indicator caching
func WithCache(c cache.IndicatorCache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithMetrics sets the metrics sink
func WithMetrics(m metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides the wall clock
func WithClock(c models.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// New creates an engine. The risk manager and tracker are shared with any
// other component that needs them; the tracker's open trades feed the risk
// manager's portfolio heat check.
func New(cfg Config, source models.CandleSource, riskManager *risk.Manager, tracker *portfolio.Tracker, opts ...Option) *Engine {
	e := &Engine{
		cfg:       cfg,
		source:    source,
		risk:      riskManager,
		portfolio: tracker,
		cache:     cache.Nop{},
		metrics:   metrics.Nop{},
		clock:     models.SystemClock{},
		logger:    log.With().Str("component", "engine").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	riskManager.SetExposure(tracker)
	if e.cfg.CandleCount < e.cfg.Windows.MaxLookback()+1 {
		e.logger.Warn().
			Int("candle_count", e.cfg.CandleCount).
			Int("max_lookback", e.cfg.Windows.MaxLookback()).
			Msg("Candle count below longest indicator window, some indicators will be insufficient")
	}
	return e
}

// Analyze fetches every timeframe in parallel, scores each and fuses the
// votes. Any failed or timed out fetch fails the whole analysis with a
// DataUnavailableError. Analysis never touches risk state.
func (e *Engine) Analyze(ctx context.Context, symbol string, timeframes []models.Timeframe) (*models.AnalysisResult, error) {
	start := time.Now()
	if len(timeframes) == 0 {
		timeframes = e.cfg.Timeframes
	}
	if symbol == "" || len(timeframes) == 0 {
		return nil, fmt.Errorf("symbol and at least one timeframe are required")
	}

	series, err := e.fetchAll(ctx, symbol, timeframes)
	if err != nil {
		return nil, err
	}

	votes := make(map[models.Timeframe]models.TimeframeVote, len(series))
	for tf, candles := range series {
		set := e.indicators(ctx, symbol, tf, candles)
		votes[tf] = analyze.Score(set, set.Price, e.cfg.Scoring)
	}

	result := analyze.Aggregate(symbol, votes, latestPrice(series), e.clock.Now(), e.cfg.Aggregator)

	e.metrics.RecordAnalysis(symbol, string(result.Direction), time.Since(start).Seconds())
	e.logger.Info().
		Str("symbol", symbol).
		Str("direction", string(result.Direction)).
		Float64("confidence", result.Confidence).
		Int("agreeing", result.Agreeing).
		Bool("signal", result.HasSignal()).
		Str("no_signal", string(result.NoSignal)).
		Msg("Analysis complete")

	return result, nil
}

// GetRecommendation analyzes the symbol on the configured timeframes and
// runs the resulting signal through the risk manager
func (e *Engine) GetRecommendation(ctx context.Context, symbol string) (*models.Recommendation, error) {
	result, err := e.Analyze(ctx, symbol, nil)
	if err != nil {
		return nil, err
	}
	return e.Recommend(ctx, result)
}

// Recommend applies risk checks to an analysis result. A result without a
// signal yields a NoSignalError; a cancelled context leaves risk state alone.
func (e *Engine) Recommend(ctx context.Context, result *models.AnalysisResult) (*models.Recommendation, error) {
	if !result.HasSignal() {
		reason := models.NoSignalNoVotes
		symbol := ""
		if result != nil {
			reason, symbol = result.NoSignal, result.Symbol
		}
		return nil, &models.NoSignalError{Symbol: symbol, Reason: reason}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec, err := e.risk.Evaluate(ctx, result.Signal)
	if err != nil {
		if reason, ok := models.IsRejection(err); ok {
			e.metrics.RecordSignalRejected(string(reason))
		}
		return nil, err
	}

	e.metrics.RecordSignalAccepted(rec.Signal.Symbol)
	return rec, nil
}

// OpenTrade records a taken recommendation
func (e *Engine) OpenTrade(ctx context.Context, rec *models.Recommendation) (*models.Trade, error) {
	return e.portfolio.OpenTrade(ctx, rec)
}

// TakeTrade gets a fresh recommendation for symbol and opens it. If the
// trade cannot be recorded the daily slot and cooldown are given back.
func (e *Engine) TakeTrade(ctx context.Context, symbol string) (*models.Trade, error) {
	rec, err := e.GetRecommendation(ctx, symbol)
	if err != nil {
		return nil, err
	}

	trade, err := e.portfolio.OpenTrade(ctx, rec)
	if err != nil {
		e.risk.Release(rec)
		return nil, err
	}
	return trade, nil
}

// ExportTrades writes the matching trades as CSV
func (e *Engine) ExportTrades(ctx context.Context, w io.Writer, filter models.TradeFilter) error {
	return e.portfolio.ExportCSV(ctx, w, filter)
}

// RecordTradeOutcome closes a trade and books its PnL against the account.
// A zero closedAt means now.
func (e *Engine) RecordTradeOutcome(ctx context.Context, tradeID string, exitPrice float64, closedAt time.Time) (*models.Trade, error) {
	trade, err := e.portfolio.CloseTrade(ctx, tradeID, exitPrice, closedAt)
	if err != nil {
		return nil, err
	}

	e.risk.ApplyPnL(*trade.PnL)
	e.metrics.RecordTradeClosed(trade.Symbol, *trade.PnL)
	e.metrics.SetDrawdown(e.risk.Snapshot().CurrentDrawdown)

	return trade, nil
}

// GetPortfolioSummary computes performance over the matching trades
func (e *Engine) GetPortfolioSummary(ctx context.Context, filter models.TradeFilter) (*models.PortfolioSummary, error) {
	return e.portfolio.Summarize(ctx, filter)
}

// DailySummary reports today's signal budget
func (e *Engine) DailySummary() risk.DailySummary {
	return e.risk.DailySummary()
}

// ResetDaily clears the daily risk counters
func (e *Engine) ResetDaily() {
	e.risk.ResetDaily()
}

// fetchAll loads all timeframes concurrently; the first error cancels the rest
func (e *Engine) fetchAll(ctx context.Context, symbol string, timeframes []models.Timeframe) (map[models.Timeframe][]models.Candle, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		series   = make(map[models.Timeframe][]models.Candle, len(timeframes))
	)

	for _, tf := range timeframes {
		wg.Add(1)
		go func(tf models.Timeframe) {
			defer wg.Done()

			candles, err := e.fetch(ctx, symbol, tf)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
					cancel()
				}
				return
			}
			series[tf] = candles
		}(tf)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return series, nil
}

func (e *Engine) fetch(ctx context.Context, symbol string, tf models.Timeframe) ([]models.Candle, error) {
	if e.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.FetchTimeout)
		defer cancel()
	}

	candles, err := e.source.FetchCandles(ctx, symbol, tf, e.cfg.CandleCount)
	if err == nil && len(candles) == 0 {
		err = errors.New("no candles returned")
	}
	if err != nil {
		e.metrics.RecordFetchError(symbol, string(tf))
		var dataErr *models.DataUnavailableError
		if errors.As(err, &dataErr) {
			return nil, err
		}
		return nil, &models.DataUnavailableError{Symbol: symbol, Timeframe: tf, Err: err}
	}
	return candles, nil
}

// indicators returns the cached set for the last candle or computes it
func (e *Engine) indicators(ctx context.Context, symbol string, tf models.Timeframe, candles []models.Candle) *models.IndicatorSet {
	key := calculate.CacheKey(symbol, tf, candles[len(candles)-1].Timestamp)

	if set, ok, err := e.cache.Get(ctx, key); err != nil {
		e.logger.Warn().Err(err).Str("key", key).Msg("Indicator cache read failed")
	} else if ok {
		e.metrics.RecordCache(true)
		return set
	}
	e.metrics.RecordCache(false)

	set := calculate.Compute(candles, e.cfg.Windows)
	set.Symbol = symbol
	set.Timeframe = tf

	if err := e.cache.Set(ctx, key, set, e.cfg.CacheTTL); err != nil {
		e.logger.Warn().Err(err).Str("key", key).Msg("Indicator cache write failed")
	}
	return set
}

// latestPrice is the last close of the shortest timeframe
func latestPrice(series map[models.Timeframe][]models.Candle) float64 {
	tfs := make([]models.Timeframe, 0, len(series))
	for tf := range series {
		tfs = append(tfs, tf)
	}
	sort.Slice(tfs, func(i, j int) bool { return tfs[j].Longer(tfs[i]) })

	for _, tf := range tfs {
		if c := series[tf]; len(c) > 0 {
			return c[len(c)-1].Close
		}
	}
	return 0
}
