package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/SignalEngine/internal/trading/risk"
	"github.com/Alias1177/SignalEngine/models"
)

// Engine is the signal engine surface exposed over HTTP
type Engine interface {
	Analyze(ctx context.Context, symbol string, timeframes []models.Timeframe) (*models.AnalysisResult, error)
	GetRecommendation(ctx context.Context, symbol string) (*models.Recommendation, error)
	TakeTrade(ctx context.Context, symbol string) (*models.Trade, error)
	RecordTradeOutcome(ctx context.Context, tradeID string, exitPrice float64, closedAt time.Time) (*models.Trade, error)
	GetPortfolioSummary(ctx context.Context, filter models.TradeFilter) (*models.PortfolioSummary, error)
	ExportTrades(ctx context.Context, w io.Writer, filter models.TradeFilter) error
	DailySummary() risk.DailySummary
}

// Handler serves the engine's JSON API
type Handler struct {
	engine Engine
	logger zerolog.Logger
}

// NewHandler creates a handler over engine
func NewHandler(engine Engine) *Handler {
	return &Handler{
		engine: engine,
		logger: log.With().Str("component", "api").Logger(),
	}
}

// RegisterRoutes mounts the API. A nil metrics handler leaves /metrics unmounted.
func (h *Handler) RegisterRoutes(e *echo.Echo, metrics http.Handler) {
	e.GET("/healthz", h.Health)
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}

	g := e.Group("/api")
	g.GET("/analyze", h.Analyze)
	g.GET("/recommendation", h.Recommendation)
	g.GET("/risk/daily", h.DailySummary)
	g.POST("/trades", h.OpenTrade)
	g.POST("/trades/:id/close", h.CloseTrade)
	g.GET("/trades/export", h.ExportTrades)
	g.GET("/portfolio", h.Portfolio)
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Analyze(c echo.Context) error {
	req := &analyzeRequest{}
	if verrs := readAndValidate(c, req); verrs != nil {
		return badRequest(c, verrs)
	}

	var tfs []models.Timeframe
	if req.Timeframes != "" {
		parsed, err := models.ParseTimeframes(req.Timeframes)
		if err != nil {
			return badRequest(c, []ValidationError{{Field: "timeframes", Code: "ERR_TIMEFRAME", Message: err.Error()}})
		}
		tfs = parsed
	}

	result, err := h.engine.Analyze(c.Request().Context(), req.Symbol, tfs)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) Recommendation(c echo.Context) error {
	req := &recommendationRequest{}
	if verrs := readAndValidate(c, req); verrs != nil {
		return badRequest(c, verrs)
	}

	rec, err := h.engine.GetRecommendation(c.Request().Context(), req.Symbol)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) DailySummary(c echo.Context) error {
	return c.JSON(http.StatusOK, h.engine.DailySummary())
}

// OpenTrade asks for a fresh recommendation and records it as taken. The
// engine gives the risk slot back if the trade cannot be saved.
func (h *Handler) OpenTrade(c echo.Context) error {
	req := &openTradeRequest{}
	if verrs := readAndValidate(c, req); verrs != nil {
		return badRequest(c, verrs)
	}

	trade, err := h.engine.TakeTrade(c.Request().Context(), req.Symbol)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, trade)
}

func (h *Handler) CloseTrade(c echo.Context) error {
	req := &closeTradeRequest{}
	if verrs := readAndValidate(c, req); verrs != nil {
		return badRequest(c, verrs)
	}

	var closedAt time.Time
	if req.ClosedAt != nil {
		closedAt = req.ClosedAt.UTC()
	}

	trade, err := h.engine.RecordTradeOutcome(c.Request().Context(), req.ID, req.ExitPrice, closedAt)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, trade)
}

func (h *Handler) Portfolio(c echo.Context) error {
	req := &portfolioRequest{}
	if verrs := readAndValidate(c, req); verrs != nil {
		return badRequest(c, verrs)
	}
	filter, verrs := req.filter()
	if verrs != nil {
		return badRequest(c, verrs)
	}

	summary, err := h.engine.GetPortfolioSummary(c.Request().Context(), filter)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, summary)
}

// ExportTrades streams the filtered trade history as CSV
func (h *Handler) ExportTrades(c echo.Context) error {
	req := &portfolioRequest{}
	if verrs := readAndValidate(c, req); verrs != nil {
		return badRequest(c, verrs)
	}
	filter, verrs := req.filter()
	if verrs != nil {
		return badRequest(c, verrs)
	}

	var buf bytes.Buffer
	if err := h.engine.ExportTrades(c.Request().Context(), &buf, filter); err != nil {
		return h.errorResponse(c, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="trades.csv"`)
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

type errorBody struct {
	Error   string            `json:"error"`
	Reason  string            `json:"reason,omitempty"`
	Details []ValidationError `json:"details,omitempty"`
}

func badRequest(c echo.Context, verrs []ValidationError) error {
	return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request", Details: verrs})
}

// errorResponse maps domain errors to HTTP statuses
func (h *Handler) errorResponse(c echo.Context, err error) error {
	var (
		noSignal  *models.NoSignalError
		rejection *models.RejectionError
	)

	switch {
	case errors.As(err, &noSignal):
		return c.JSON(http.StatusOK, errorBody{Error: "no signal", Reason: string(noSignal.Reason)})
	case errors.As(err, &rejection):
		return c.JSON(http.StatusConflict, errorBody{Error: "signal rejected", Reason: string(rejection.Reason)})
	case errors.Is(err, models.ErrDataUnavailable):
		h.logger.Warn().Err(err).Msg("Market data unavailable")
		return c.JSON(http.StatusServiceUnavailable, errorBody{Error: models.ErrDataUnavailable.Error()})
	case errors.Is(err, models.ErrTradeNotFound):
		return c.JSON(http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, models.ErrAlreadyClosed):
		return c.JSON(http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, models.ErrInvalidSignal):
		return c.JSON(http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return c.JSON(http.StatusGatewayTimeout, errorBody{Error: "request timed out"})
	default:
		h.logger.Error().Err(err).Str("path", c.Path()).Msg("Request failed")
		return c.JSON(http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}
