package models

import (
	"context"
	"time"
)

// CandleSource supplies recent OHLCV history, oldest candle first
type CandleSource interface {
	FetchCandles(ctx context.Context, symbol string, tf Timeframe, lookback int) ([]Candle, error)
}

// Clock abstracts wall time so daily resets and cooldowns are testable
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real UTC time
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the same instant
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }
