package risk

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/Alias1177/SignalEngine/models"
)

var day1 = time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC)

func testConfig() AccountConfig {
	return AccountConfig{
		AccountBalance:   10000,
		RiskLevel:        RiskMedium,
		MaxDailySignals:  3,
		CooldownDuration: 15 * time.Minute,
		DrawdownCeiling:  0.10,
		DrawdownResume:   0.05,
	}
}

func buySignal(symbol string) *models.CompositeSignal {
	return &models.CompositeSignal{
		Symbol:     symbol,
		Direction:  models.DirectionBuy,
		Confidence: 0.8,
		EntryPrice: 1.1000,
		StopLoss:   1.0970,
		TakeProfit: 1.1040,
	}
}

func rejectionReason(t *testing.T, err error) models.RejectReason {
	t.Helper()
	reason, ok := models.IsRejection(err)
	if !ok {
		t.Fatalf("expected rejection, got %v", err)
	}
	return reason
}

func TestEvaluateAccepts(t *testing.T) {
	cfg := testConfig()
	st := NewState(cfg, day1)

	rec, next, err := Evaluate(buySignal("EUR/USD"), st, cfg, day1, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 1% of 10000 over a 30 pip stop
	want := 100 / 0.0030
	if math.Abs(rec.Size-want) > 1e-6 {
		t.Errorf("size = %f, want ~%f", rec.Size, want)
	}
	if rec.RiskFraction != 0.01 || rec.RiskAmount != 100 {
		t.Errorf("unexpected risk fraction/amount %f/%f", rec.RiskFraction, rec.RiskAmount)
	}
	if next.DailySignalCount != 1 {
		t.Errorf("daily count = %d, want 1", next.DailySignalCount)
	}
	if next.Phase("EUR/USD", day1, cfg.CooldownDuration) != PhaseCooldown {
		t.Error("symbol should be cooling down after acceptance")
	}
	if len(st.LastSignalBySymbol) != 0 {
		t.Error("input state must not be mutated")
	}
}

func TestEvaluateRejections(t *testing.T) {
	cfg := testConfig()

	tests := []struct {
		name   string
		state  func() State
		signal *models.CompositeSignal
		want   models.RejectReason
	}{
		{
			name: "daily limit",
			state: func() State {
				st := NewState(cfg, day1)
				st.DailySignalCount = cfg.MaxDailySignals
				return st
			},
			signal: buySignal("EUR/USD"),
			want:   models.RejectDailyLimit,
		},
		{
			name: "drawdown halt",
			state: func() State {
				st := NewState(cfg, day1)
				return ApplyPnL(st, -1500, cfg)
			},
			signal: buySignal("EUR/USD"),
			want:   models.RejectDrawdownHalt,
		},
		{
			name: "cooldown",
			state: func() State {
				st := NewState(cfg, day1)
				st.LastSignalBySymbol["EUR/USD"] = day1.Add(-5 * time.Minute)
				return st
			},
			signal: buySignal("EUR/USD"),
			want:   models.RejectCooldown,
		},
		{
			name:  "zero risk distance",
			state: func() State { return NewState(cfg, day1) },
			signal: func() *models.CompositeSignal {
				s := buySignal("EUR/USD")
				s.StopLoss = s.EntryPrice
				return s
			}(),
			want: models.RejectZeroRiskDistance,
		},
		{
			name: "daily limit checked before cooldown",
			state: func() State {
				st := NewState(cfg, day1)
				st.DailySignalCount = cfg.MaxDailySignals
				st.LastSignalBySymbol["EUR/USD"] = day1
				return st
			},
			signal: buySignal("EUR/USD"),
			want:   models.RejectDailyLimit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := tt.state()
			rec, next, err := Evaluate(tt.signal, st, cfg, day1, 0)
			if rec != nil {
				t.Fatalf("unexpected recommendation %+v", rec)
			}
			if got := rejectionReason(t, err); got != tt.want {
				t.Errorf("reason = %s, want %s", got, tt.want)
			}
			if next.DailySignalCount != st.DailySignalCount {
				t.Errorf("rejection changed daily count %d -> %d", st.DailySignalCount, next.DailySignalCount)
			}
		})
	}
}

func TestEvaluateInvalidSignal(t *testing.T) {
	cfg := testConfig()
	st := NewState(cfg, day1)

	if _, _, err := Evaluate(nil, st, cfg, day1, 0); !errors.Is(err, models.ErrInvalidSignal) {
		t.Errorf("nil signal: got %v", err)
	}
	neutral := buySignal("EUR/USD")
	neutral.Direction = models.DirectionNeutral
	if _, _, err := Evaluate(neutral, st, cfg, day1, 0); !errors.Is(err, models.ErrInvalidSignal) {
		t.Errorf("neutral signal: got %v", err)
	}
}

func TestDailyLimitHoldsForRestOfDay(t *testing.T) {
	cfg := testConfig()
	cfg.CooldownDuration = 0
	st := NewState(cfg, day1)

	now := day1
	for i := 0; i < cfg.MaxDailySignals; i++ {
		var err error
		_, st, err = Evaluate(buySignal(fmt.Sprintf("SYM%d", i)), st, cfg, now, 0)
		if err != nil {
			t.Fatalf("signal %d rejected: %v", i, err)
		}
		now = now.Add(time.Minute)
	}

	for i := 0; i < 20; i++ {
		var err error
		_, st, err = Evaluate(buySignal(fmt.Sprintf("OTHER%d", i)), st, cfg, now, 0)
		if got := rejectionReason(t, err); got != models.RejectDailyLimit {
			t.Fatalf("call %d: reason = %s", i, got)
		}
		now = now.Add(30 * time.Minute)
		if !models.SameDayUTC(now, day1) {
			break
		}
	}

	// Next UTC day resets the counter
	nextDay := models.StartOfDayUTC(day1).Add(24*time.Hour + time.Second)
	if _, _, err := Evaluate(buySignal("EUR/USD"), st, cfg, nextDay, 0); err != nil {
		t.Errorf("expected acceptance on the next day, got %v", err)
	}
}

func TestCooldownExpires(t *testing.T) {
	cfg := testConfig()
	st := NewState(cfg, day1)

	_, st, err := Evaluate(buySignal("EUR/USD"), st, cfg, day1, 0)
	if err != nil {
		t.Fatal(err)
	}

	// Other symbols are unaffected
	if _, _, err := Evaluate(buySignal("GBP/USD"), st, cfg, day1.Add(time.Minute), 0); err != nil {
		t.Errorf("other symbol rejected: %v", err)
	}

	if _, _, err := Evaluate(buySignal("EUR/USD"), st, cfg, day1.Add(cfg.CooldownDuration-time.Second), 0); err == nil {
		t.Error("expected cooldown rejection")
	}
	if _, _, err := Evaluate(buySignal("EUR/USD"), st, cfg, day1.Add(cfg.CooldownDuration), 0); err != nil {
		t.Errorf("cooldown should have expired: %v", err)
	}
}

func TestDrawdownHysteresis(t *testing.T) {
	cfg := testConfig()
	st := NewState(cfg, day1)

	st = ApplyPnL(st, -1200, cfg) // 12% drawdown
	if !st.Halted {
		t.Fatal("expected halt above ceiling")
	}

	st = ApplyPnL(st, 500, cfg) // 7% drawdown, between resume and ceiling
	if !st.Halted {
		t.Error("halt must hold until drawdown drops below the resume threshold")
	}

	st = ApplyPnL(st, 400, cfg) // 3% drawdown
	if st.Halted {
		t.Error("expected resume below threshold")
	}

	st = ApplyPnL(st, -500, cfg) // 8% drawdown, below ceiling
	if st.Halted {
		t.Error("must not halt again until ceiling is exceeded")
	}
}

func TestPositionSizeNeverExceedsRiskBudget(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	levels := []RiskLevel{RiskLow, RiskMedium, RiskHigh}

	for i := 0; i < 5000; i++ {
		cfg := testConfig()
		cfg.RiskLevel = levels[rng.Intn(len(levels))]
		cfg.AccountBalance = 100 + rng.Float64()*1e6
		if rng.Intn(4) == 0 {
			cfg.MaxPositionSize = rng.Float64() * 1e5
		}

		entry := 0.5 + rng.Float64()*2000
		dist := entry * (1e-6 + rng.Float64()*0.05)
		sig := buySignal("X")
		sig.EntryPrice = entry
		if rng.Intn(2) == 0 {
			sig.Direction = models.DirectionSell
			sig.StopLoss = entry + dist
		} else {
			sig.StopLoss = entry - dist
		}

		st := NewState(cfg, day1)
		rec, _, err := Evaluate(sig, st, cfg, day1, 0)
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}

		budget := cfg.AccountBalance * cfg.RiskLevel.Fraction()
		actual := sig.EntryPrice - sig.StopLoss
		if actual < 0 {
			actual = -actual
		}
		if rec.Size*actual > budget {
			t.Fatalf("case %d: size %g * distance %g = %g exceeds budget %g", i, rec.Size, actual, rec.Size*actual, budget)
		}
		if cfg.MaxPositionSize > 0 && rec.Size > cfg.MaxPositionSize {
			t.Fatalf("case %d: size %g above cap %g", i, rec.Size, cfg.MaxPositionSize)
		}
	}
}

func TestManagerSerializesDailyLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxDailySignals = 5
	cfg.CooldownDuration = 0
	m := NewManager(cfg, models.FixedClock{T: day1})

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := m.Evaluate(context.Background(), buySignal(fmt.Sprintf("S%d", i))); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if accepted != cfg.MaxDailySignals {
		t.Errorf("accepted %d signals, want exactly %d", accepted, cfg.MaxDailySignals)
	}
	sum := m.DailySummary()
	if !sum.MaxReached || sum.RemainingSignals != 0 || sum.SignalsSent != 5 {
		t.Errorf("unexpected summary %+v", sum)
	}
}

func TestManagerCancelledContextLeavesState(t *testing.T) {
	m := NewManager(testConfig(), models.FixedClock{T: day1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := m.Evaluate(ctx, buySignal("EUR/USD")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if st := m.Snapshot(); st.DailySignalCount != 0 || len(st.LastSignalBySymbol) != 0 {
		t.Errorf("state mutated by cancelled evaluation: %+v", st)
	}
	if m.SymbolPhase("EUR/USD") != PhaseIdle {
		t.Error("symbol should stay idle")
	}
}

func TestManagerResetDaily(t *testing.T) {
	cfg := testConfig()
	m := NewManager(cfg, models.FixedClock{T: day1})

	st := m.Snapshot()
	st.DailySignalCount = cfg.MaxDailySignals
	m.Restore(st)

	if _, err := m.Evaluate(context.Background(), buySignal("EUR/USD")); err == nil {
		t.Fatal("expected daily limit rejection")
	}

	m.ResetDaily()
	if _, err := m.Evaluate(context.Background(), buySignal("EUR/USD")); err != nil {
		t.Errorf("expected acceptance after reset, got %v", err)
	}
}

func TestParseRiskLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    RiskLevel
		wantErr bool
	}{
		{"low", RiskLow, false},
		{"MEDIUM", RiskMedium, false},
		{" High ", RiskHigh, false},
		{"extreme", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRiskLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

type recordingStore struct {
	saved []State
}

func (s *recordingStore) SaveRiskState(_ context.Context, st State) error {
	s.saved = append(s.saved, st)
	return nil
}

func TestManagerPersistsChanges(t *testing.T) {
	store := &recordingStore{}
	m := NewManager(testConfig(), models.FixedClock{T: day1})
	m.SetStore(store)

	if _, err := m.Evaluate(context.Background(), buySignal("EUR/USD")); err != nil {
		t.Fatal(err)
	}
	m.ApplyPnL(-50)
	m.ResetDaily()

	if len(store.saved) != 3 {
		t.Fatalf("saved %d snapshots, want 3", len(store.saved))
	}
	if store.saved[0].DailySignalCount != 1 {
		t.Errorf("first snapshot count = %d", store.saved[0].DailySignalCount)
	}
	if store.saved[1].AccountBalance != 9950 {
		t.Errorf("balance after loss = %f", store.saved[1].AccountBalance)
	}
	if store.saved[2].DailySignalCount != 0 {
		t.Errorf("count after reset = %d", store.saved[2].DailySignalCount)
	}
}

func TestAssess(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(s *models.CompositeSignal)
		wantScore  int
		wantRating models.RiskRating
		wantWarn   string
		rejected   bool
	}{
		{
			name:       "уверенный сигнал",
			mutate:     func(s *models.CompositeSignal) {},
			wantScore:  -1,
			wantRating: models.RiskRatingLow,
		},
		{
			name: "хороший R/R",
			mutate: func(s *models.CompositeSignal) {
				s.TakeProfit = 1.1060
			},
			wantScore:  -3,
			wantRating: models.RiskRatingVeryLow,
		},
		{
			name: "цель против направления",
			mutate: func(s *models.CompositeSignal) {
				s.TakeProfit = 1.0990
				s.Confidence = 0.5
			},
			wantScore:  3,
			wantRating: models.RiskRatingHigh,
			wantWarn:   "Poor risk-reward ratio",
		},
		{
			name: "широкий стоп и слабая уверенность",
			mutate: func(s *models.CompositeSignal) {
				s.StopLoss = 1.0300
				s.TakeProfit = 1.1300
				s.Confidence = 0.25
			},
			wantScore:  7,
			wantRating: models.RiskRatingVeryHigh,
			wantWarn:   "High stop loss percentage",
			rejected:   true,
		},
		{
			name: "очень узкий стоп",
			mutate: func(s *models.CompositeSignal) {
				s.StopLoss = 1.0995
				s.TakeProfit = 1.1010
				s.Confidence = 0.5
			},
			wantScore:  0,
			wantRating: models.RiskRatingLow,
			wantWarn:   "Very tight stop loss",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := buySignal("EUR/USD")
			tt.mutate(sig)
			a := Assess(sig)

			if a.Score != tt.wantScore || a.Rating != tt.wantRating {
				t.Errorf("score/rating = %d/%s, want %d/%s", a.Score, a.Rating, tt.wantScore, tt.wantRating)
			}
			if tt.wantWarn != "" && !containsString(a.Warnings, tt.wantWarn) {
				t.Errorf("warnings %v missing %q", a.Warnings, tt.wantWarn)
			}
			if a.Rejected(sig.Confidence) != tt.rejected {
				t.Errorf("rejected = %v, want %v", !tt.rejected, tt.rejected)
			}
		})
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestEvaluateRiskScoreRejection(t *testing.T) {
	cfg := testConfig()
	st := NewState(cfg, day1)

	sig := buySignal("EUR/USD")
	sig.StopLoss = 1.0300
	sig.TakeProfit = 1.1300
	sig.Confidence = 0.25

	_, next, err := Evaluate(sig, st, cfg, day1, 0)
	if got := rejectionReason(t, err); got != models.RejectRiskScore {
		t.Errorf("reason = %s", got)
	}
	if next.DailySignalCount != 0 || next.Phase("EUR/USD", day1, cfg.CooldownDuration) != PhaseIdle {
		t.Error("risk score rejection must not consume a slot")
	}
}

func TestEvaluatePortfolioHeat(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPortfolioHeat = 0.05
	st := NewState(cfg, day1)

	tests := []struct {
		name       string
		openRisk   float64
		wantStatus models.HeatStatus
		wantReject bool
	}{
		{"без открытых сделок", 0, models.HeatSafe, false},
		{"зона осторожности", 320, models.HeatCaution, false},
		{"перегрев", 450, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _, err := Evaluate(buySignal("EUR/USD"), st, cfg, day1, tt.openRisk)
			if tt.wantReject {
				if got := rejectionReason(t, err); got != models.RejectPortfolioHeat {
					t.Errorf("reason = %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.HeatStatus != tt.wantStatus {
				t.Errorf("heat status = %s, want %s", rec.HeatStatus, tt.wantStatus)
			}
			// the new trade adds its 100 of risk
			if want := (tt.openRisk + 100) / 10000; math.Abs(rec.PortfolioHeat-want) > 1e-9 {
				t.Errorf("heat = %f, want %f", rec.PortfolioHeat, want)
			}
			if tt.wantStatus == models.HeatCaution && !containsString(rec.Warnings, "High portfolio exposure") {
				t.Errorf("warnings = %v", rec.Warnings)
			}
		})
	}
}

type fixedExposure struct {
	risk float64
	err  error
}

func (f fixedExposure) OpenRisk(context.Context) (float64, error) { return f.risk, f.err }

func TestManagerUsesExposure(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPortfolioHeat = 0.05
	m := NewManager(cfg, models.FixedClock{T: day1})

	m.SetExposure(fixedExposure{risk: 450})
	if _, err := m.Evaluate(context.Background(), buySignal("EUR/USD")); rejectionReason(t, err) != models.RejectPortfolioHeat {
		t.Errorf("expected heat rejection, got %v", err)
	}

	m.SetExposure(fixedExposure{err: errors.New("store down")})
	if _, err := m.Evaluate(context.Background(), buySignal("EUR/USD")); err == nil {
		t.Error("exposure failure must fail the evaluation")
	}
	if m.Snapshot().DailySignalCount != 0 {
		t.Error("no slot may be used")
	}
}

type movingClock struct {
	now time.Time
}

func (c *movingClock) Now() time.Time { return c.now }

func TestManagerRelease(t *testing.T) {
	cfg := testConfig()
	clock := &movingClock{now: day1}
	m := NewManager(cfg, clock)

	rec, err := m.Evaluate(context.Background(), buySignal("EUR/USD"))
	if err != nil {
		t.Fatal(err)
	}
	if m.SymbolPhase("EUR/USD") != PhaseCooldown {
		t.Fatal("expected cooldown after acceptance")
	}

	m.Release(rec)
	if st := m.Snapshot(); st.DailySignalCount != 0 {
		t.Errorf("daily count = %d after release", st.DailySignalCount)
	}
	if m.SymbolPhase("EUR/USD") != PhaseIdle {
		t.Error("cooldown should be lifted")
	}

	// releasing twice does nothing
	m.Release(rec)
	clock.now = day1.Add(time.Minute)
	if _, err := m.Evaluate(context.Background(), buySignal("EUR/USD")); err != nil {
		t.Errorf("slot should be usable again: %v", err)
	}
	m.Release(rec)
	if st := m.Snapshot(); st.DailySignalCount != 1 {
		t.Errorf("stale release changed count to %d", st.DailySignalCount)
	}
}
