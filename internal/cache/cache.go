package cache

import (
	"context"
	"time"

	"github.com/Alias1177/SignalEngine/models"
)

// IndicatorCache stores computed indicator sets keyed by symbol, timeframe
// and last candle timestamp
type IndicatorCache interface {
	Get(ctx context.Context, key string) (*models.IndicatorSet, bool, error)
	Set(ctx context.Context, key string, set *models.IndicatorSet, ttl time.Duration) error
}

// Nop never stores anything
type Nop struct{}

func (Nop) Get(context.Context, string) (*models.IndicatorSet, bool, error) { return nil, false, nil }

func (Nop) Set(context.Context, string, *models.IndicatorSet, time.Duration) error { return nil }
