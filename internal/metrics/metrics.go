package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is what the engine reports about its work
type Metrics interface {
	RecordAnalysis(symbol, direction string, seconds float64)
	RecordFetchError(symbol, timeframe string)
	RecordCache(hit bool)
	RecordSignalAccepted(symbol string)
	RecordSignalRejected(reason string)
	RecordTradeClosed(symbol string, pnl float64)
	SetDrawdown(drawdown float64)
}

// Recorder implements Metrics using Prometheus.
type Recorder struct {
	registry        *prometheus.Registry
	analyses        *prometheus.CounterVec
	analysisLatency prometheus.Histogram
	fetchErrors     *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	signalsAccepted *prometheus.CounterVec
	signalsRejected *prometheus.CounterVec
	tradesClosed    *prometheus.CounterVec
	realizedPnL     *prometheus.GaugeVec
	drawdown        prometheus.Gauge
}

// New creates a recorder on its own registry so several engines can coexist in tests.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		analyses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalengine_analyses_total",
				Help: "Total number of completed multi-timeframe analyses",
			},
			[]string{"symbol", "direction"},
		),
		analysisLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "signalengine_analysis_duration_seconds",
				Help:    "Duration of a full analysis in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		fetchErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalengine_fetch_errors_total",
				Help: "Total number of failed candle fetches",
			},
			[]string{"symbol", "timeframe"},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalengine_indicator_cache_lookups_total",
				Help: "Indicator cache lookups by result",
			},
			[]string{"result"},
		),
		signalsAccepted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalengine_signals_accepted_total",
				Help: "Signals accepted by the risk manager",
			},
			[]string{"symbol"},
		),
		signalsRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalengine_signals_rejected_total",
				Help: "Signals rejected by the risk manager",
			},
			[]string{"reason"},
		),
		tradesClosed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalengine_trades_closed_total",
				Help: "Closed trades by outcome",
			},
			[]string{"symbol", "outcome"},
		),
		realizedPnL: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "signalengine_realized_pnl",
				Help: "Cumulative realized PnL per symbol",
			},
			[]string{"symbol"},
		),
		drawdown: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "signalengine_account_drawdown_ratio",
				Help: "Current account drawdown from peak",
			},
		),
	}
}

// Handler serves the registry in the Prometheus text format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) RecordAnalysis(symbol, direction string, seconds float64) {
	r.analyses.WithLabelValues(symbol, direction).Inc()
	r.analysisLatency.Observe(seconds)
}

func (r *Recorder) RecordFetchError(symbol, timeframe string) {
	r.fetchErrors.WithLabelValues(symbol, timeframe).Inc()
}

func (r *Recorder) RecordCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(result).Inc()
}

func (r *Recorder) RecordSignalAccepted(symbol string) {
	r.signalsAccepted.WithLabelValues(symbol).Inc()
}

func (r *Recorder) RecordSignalRejected(reason string) {
	r.signalsRejected.WithLabelValues(reason).Inc()
}

func (r *Recorder) RecordTradeClosed(symbol string, pnl float64) {
	outcome := "breakeven"
	switch {
	case pnl > 0:
		outcome = "win"
	case pnl < 0:
		outcome = "loss"
	}
	r.tradesClosed.WithLabelValues(symbol, outcome).Inc()
	r.realizedPnL.WithLabelValues(symbol).Add(pnl)
}

func (r *Recorder) SetDrawdown(drawdown float64) {
	r.drawdown.Set(drawdown)
}

// Nop discards everything
type Nop struct{}

func (Nop) RecordAnalysis(string, string, float64) {}
func (Nop) RecordFetchError(string, string)        {}
func (Nop) RecordCache(bool)                       {}
func (Nop) RecordSignalAccepted(string)            {}
func (Nop) RecordSignalRejected(string)            {}
func (Nop) RecordTradeClosed(string, float64)      {}
func (Nop) SetDrawdown(float64)                    {}
