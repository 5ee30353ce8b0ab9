package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Alias1177/SignalEngine/models"
)

type stepClock struct {
	now time.Time
}

func (c *stepClock) Now() time.Time { return c.now }

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	clock := &stepClock{now: time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)}
	c := NewMemory(clock)

	set := &models.IndicatorSet{Symbol: "EUR/USD", Timeframe: models.Timeframe1H, RSI: 42}
	if err := c.Set(ctx, "k", set, time.Minute); err != nil {
		t.Fatal(err)
	}

	got, ok, err := c.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("fresh entry missing: ok=%v err=%v", ok, err)
	}
	if got.RSI != 42 {
		t.Errorf("rsi = %f", got.RSI)
	}

	got.RSI = 0
	again, _, _ := c.Get(ctx, "k")
	if again.RSI != 42 {
		t.Error("cached value mutated through returned pointer")
	}

	clock.now = clock.now.Add(time.Minute)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("entry should expire at ttl")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry not evicted, len = %d", c.Len())
	}
}

func TestMemoryDeepCopies(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(&stepClock{now: time.Now()})

	set := &models.IndicatorSet{Patterns: []string{"hammer"}}
	set.MarkInsufficient(models.IndicatorADX)
	if err := c.Set(ctx, "k", set, 0); err != nil {
		t.Fatal(err)
	}
	set.Patterns[0] = "doji"
	set.MarkInsufficient(models.IndicatorRSI)

	got, _, _ := c.Get(ctx, "k")
	if got.Patterns[0] != "hammer" || !got.Available(models.IndicatorRSI) {
		t.Fatalf("stored set shares state with caller: %+v", got)
	}

	got.Patterns[0] = "doji"
	got.MarkInsufficient(models.IndicatorMACD)
	again, _, _ := c.Get(ctx, "k")
	if again.Patterns[0] != "hammer" || !again.Available(models.IndicatorMACD) {
		t.Errorf("cached set mutated through returned pointer: %+v", again)
	}
}

func TestMemoryKeepsRefreshedEntry(t *testing.T) {
	ctx := context.Background()
	clock := &stepClock{now: time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)}
	c := NewMemory(clock)

	c.Set(ctx, "k", &models.IndicatorSet{RSI: 1}, time.Minute)
	clock.now = clock.now.Add(2 * time.Minute)
	stale := c.entries["k"]

	// a refresh lands between the read and the eviction
	c.Set(ctx, "k", &models.IndicatorSet{RSI: 2}, time.Minute)
	if !c.expired(stale) {
		t.Fatal("old entry should be expired")
	}
	c.mu.Lock()
	if cur := c.entries["k"]; c.expired(cur) {
		t.Error("refreshed entry reported expired")
	}
	c.mu.Unlock()

	got, ok, _ := c.Get(ctx, "k")
	if !ok || got.RSI != 2 {
		t.Errorf("refreshed entry lost: ok=%v got=%+v", ok, got)
	}
}

func TestMemoryNoTTL(t *testing.T) {
	ctx := context.Background()
	clock := &stepClock{now: time.Now()}
	c := NewMemory(clock)

	if err := c.Set(ctx, "k", &models.IndicatorSet{Price: 1.1}, 0); err != nil {
		t.Fatal(err)
	}
	clock.now = clock.now.Add(24 * time.Hour)
	if _, ok, _ := c.Get(ctx, "k"); !ok {
		t.Error("entry without ttl should not expire")
	}
	if _, ok, _ := c.Get(ctx, "missing"); ok {
		t.Error("unexpected hit for missing key")
	}
}

func TestRedisRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}

	ctx := context.Background()
	r, err := NewRedis(ctx, RedisConfig{Addr: addr, Prefix: "signalengine-test"})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	set := &models.IndicatorSet{
		Symbol:       "EUR/USD",
		Timeframe:    models.Timeframe4H,
		RSI:          55,
		Insufficient: map[models.IndicatorKind]bool{models.IndicatorMACD: true},
	}
	if err := r.Set(ctx, "roundtrip", set, time.Minute); err != nil {
		t.Fatal(err)
	}
	got, ok, err := r.Get(ctx, "roundtrip")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.RSI != 55 || got.Available(models.IndicatorMACD) {
		t.Errorf("round trip mismatch: %+v", got)
	}
}
