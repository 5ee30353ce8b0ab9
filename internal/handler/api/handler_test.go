package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Alias1177/SignalEngine/internal/trading/risk"
	"github.com/Alias1177/SignalEngine/models"
)

type fakeEngine struct {
	recErr     error
	analyzeErr error
	closeErr   error

	gotTimeframes []models.Timeframe
	gotFilter     models.TradeFilter
	gotClosedAt   time.Time
	opened        int
}

func (f *fakeEngine) Analyze(_ context.Context, symbol string, tfs []models.Timeframe) (*models.AnalysisResult, error) {
	f.gotTimeframes = tfs
	if f.analyzeErr != nil {
		return nil, f.analyzeErr
	}
	return &models.AnalysisResult{Symbol: symbol, Direction: models.DirectionBuy, Confidence: 0.8}, nil
}

func (f *fakeEngine) GetRecommendation(_ context.Context, symbol string) (*models.Recommendation, error) {
	if f.recErr != nil {
		return nil, f.recErr
	}
	return &models.Recommendation{
		Signal: models.CompositeSignal{Symbol: symbol, Direction: models.DirectionBuy, EntryPrice: 1.1},
		Size:   1000,
	}, nil
}

func (f *fakeEngine) TakeTrade(ctx context.Context, symbol string) (*models.Trade, error) {
	rec, err := f.GetRecommendation(ctx, symbol)
	if err != nil {
		return nil, err
	}
	f.opened++
	return &models.Trade{ID: "trade-1", Symbol: rec.Signal.Symbol, Direction: rec.Signal.Direction}, nil
}

func (f *fakeEngine) RecordTradeOutcome(_ context.Context, id string, exit float64, closedAt time.Time) (*models.Trade, error) {
	f.gotClosedAt = closedAt
	if f.closeErr != nil {
		return nil, f.closeErr
	}
	pnl := 5.0
	return &models.Trade{ID: id, ExitPrice: &exit, PnL: &pnl}, nil
}

func (f *fakeEngine) GetPortfolioSummary(_ context.Context, filter models.TradeFilter) (*models.PortfolioSummary, error) {
	f.gotFilter = filter
	return &models.PortfolioSummary{TotalTrades: 3}, nil
}

func (f *fakeEngine) ExportTrades(_ context.Context, w io.Writer, filter models.TradeFilter) error {
	f.gotFilter = filter
	_, err := io.WriteString(w, "id,symbol\ntrade-1,EUR/USD\n")
	return err
}

func (f *fakeEngine) DailySummary() risk.DailySummary {
	return risk.DailySummary{SignalsSent: 2, MaxDailySignals: 50, RemainingSignals: 48}
}

func serve(t *testing.T, eng *fakeEngine, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	NewHandler(eng).RegisterRoutes(e, http.NotFoundHandler())

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAnalyze(t *testing.T) {
	eng := &fakeEngine{}
	rec := serve(t, eng, http.MethodGet, "/api/analyze?symbol=EUR/USD&timeframes=1h,4h", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if len(eng.gotTimeframes) != 2 || eng.gotTimeframes[1] != models.Timeframe4H {
		t.Errorf("timeframes = %v", eng.gotTimeframes)
	}

	var result models.AnalysisResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.Symbol != "EUR/USD" || result.Direction != models.DirectionBuy {
		t.Errorf("result = %+v", result)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		eng        *fakeEngine
		method     string
		target     string
		body       string
		wantStatus int
		wantReason string
	}{
		{
			name:       "нет символа",
			eng:        &fakeEngine{},
			method:     http.MethodGet,
			target:     "/api/recommendation",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "плохой таймфрейм",
			eng:        &fakeEngine{},
			method:     http.MethodGet,
			target:     "/api/analyze?symbol=EUR/USD&timeframes=3h",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "нет данных",
			eng:        &fakeEngine{analyzeErr: &models.DataUnavailableError{Symbol: "EUR/USD", Timeframe: models.Timeframe1H}},
			method:     http.MethodGet,
			target:     "/api/analyze?symbol=EUR/USD",
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "нет сигнала",
			eng:        &fakeEngine{recErr: &models.NoSignalError{Symbol: "EUR/USD", Reason: models.NoSignalUnconfirmed}},
			method:     http.MethodGet,
			target:     "/api/recommendation?symbol=EUR/USD",
			wantStatus: http.StatusOK,
			wantReason: string(models.NoSignalUnconfirmed),
		},
		{
			name:       "лимит на день",
			eng:        &fakeEngine{recErr: &models.RejectionError{Symbol: "EUR/USD", Reason: models.RejectDailyLimit}},
			method:     http.MethodPost,
			target:     "/api/trades",
			body:       `{"symbol":"EUR/USD"}`,
			wantStatus: http.StatusConflict,
			wantReason: string(models.RejectDailyLimit),
		},
		{
			name:       "сделка не найдена",
			eng:        &fakeEngine{closeErr: models.ErrTradeNotFound},
			method:     http.MethodPost,
			target:     "/api/trades/missing/close",
			body:       `{"exit_price":1.1}`,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "уже закрыта",
			eng:        &fakeEngine{closeErr: models.ErrAlreadyClosed},
			method:     http.MethodPost,
			target:     "/api/trades/t1/close",
			body:       `{"exit_price":1.1}`,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "нулевая цена выхода",
			eng:        &fakeEngine{},
			method:     http.MethodPost,
			target:     "/api/trades/t1/close",
			body:       `{"exit_price":0}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "кривая дата",
			eng:        &fakeEngine{},
			method:     http.MethodGet,
			target:     "/api/portfolio?since=yesterday",
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, tt.eng, tt.method, tt.target, tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body %s", rec.Code, tt.wantStatus, rec.Body)
			}
			if tt.wantReason != "" {
				var body errorBody
				if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
					t.Fatal(err)
				}
				if body.Reason != tt.wantReason {
					t.Errorf("reason = %q, want %q", body.Reason, tt.wantReason)
				}
			}
		})
	}
}

func TestDataUnavailableBodyIsGeneric(t *testing.T) {
	cause := errors.New(`Get "http://127.0.0.1:1/time_series?apikey=SECRET-KEY-123": connection refused`)
	eng := &fakeEngine{analyzeErr: &models.DataUnavailableError{Symbol: "EUR/USD", Timeframe: models.Timeframe1H, Err: cause}}

	rec := serve(t, eng, http.MethodGet, "/api/analyze?symbol=EUR/USD", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := rec.Body.String(); strings.Contains(body, "SECRET-KEY-123") || strings.Contains(body, "time_series") {
		t.Errorf("body leaks upstream error: %s", body)
	}
}

func TestOpenAndCloseTrade(t *testing.T) {
	eng := &fakeEngine{}

	rec := serve(t, eng, http.MethodPost, "/api/trades", `{"symbol":"EUR/USD"}`)
	if rec.Code != http.StatusCreated || eng.opened != 1 {
		t.Fatalf("open: status %d, opened %d", rec.Code, eng.opened)
	}

	rec = serve(t, eng, http.MethodPost, "/api/trades/trade-1/close", `{"exit_price":1.105,"closed_at":"2024-06-03T14:00:00+02:00"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("close: status %d, body %s", rec.Code, rec.Body)
	}
	if !eng.gotClosedAt.Equal(time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("closed at = %v", eng.gotClosedAt)
	}

	var trade models.Trade
	if err := json.Unmarshal(rec.Body.Bytes(), &trade); err != nil {
		t.Fatal(err)
	}
	if trade.ID != "trade-1" || trade.ExitPrice == nil || *trade.ExitPrice != 1.105 {
		t.Errorf("trade = %+v", trade)
	}
}

func TestPortfolioFilter(t *testing.T) {
	eng := &fakeEngine{}
	rec := serve(t, eng, http.MethodGet, "/api/portfolio?symbol=EUR/USD&timeframe=4h&since=2024-06-01T00:00:00Z", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	f := eng.gotFilter
	if f.Symbol != "EUR/USD" || f.Timeframe != models.Timeframe4H {
		t.Errorf("filter = %+v", f)
	}
	if !f.Since.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)) || !f.Until.IsZero() {
		t.Errorf("time bounds = %v / %v", f.Since, f.Until)
	}
}

func TestExportTrades(t *testing.T) {
	eng := &fakeEngine{}
	rec := serve(t, eng, http.MethodGet, "/api/trades/export?symbol=EUR/USD", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(rec.Header().Get(echo.HeaderContentDisposition), "trades.csv") {
		t.Errorf("content disposition = %q", rec.Header().Get(echo.HeaderContentDisposition))
	}
	if eng.gotFilter.Symbol != "EUR/USD" {
		t.Errorf("filter = %+v", eng.gotFilter)
	}
	if !strings.HasPrefix(rec.Body.String(), "id,symbol") {
		t.Errorf("body = %q", rec.Body)
	}
}

func TestHealthAndDailySummary(t *testing.T) {
	eng := &fakeEngine{}

	if rec := serve(t, eng, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rec.Code)
	}

	rec := serve(t, eng, http.MethodGet, "/api/risk/daily", "")
	var summary risk.DailySummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatal(err)
	}
	if summary.RemainingSignals != 48 {
		t.Errorf("summary = %+v", summary)
	}
}
