package repository

import (
	"context"
	"testing"
	"time"

	"SignalFlow/internal/domain/models"
	domrepo "SignalFlow/internal/domain/repository"
	"SignalFlow/pkg/cache"
	"SignalFlow/pkg/logger"
)

type countingSource struct {
	calls int
	value models.IndicatorValue
	err   error
}

func (s *countingSource) GetLatestIndicator(context.Context, int64, domrepo.Timeframe, string) (models.IndicatorValue, error) {
	s.calls++
	if s.err != nil {
		return models.IndicatorValue{}, s.err
	}
	return s.value, nil
}

func TestCachedIndicatorSourceHitsCache(t *testing.T) {
	backing := &countingSource{value: models.IndicatorValue{
		SymbolID: 7, Timeframe: "1h", Kind: "rsi", RSI: 64.2,
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}}
	src := NewCachedIndicatorSource(backing, cache.NewMemoryCache(), logger.Nop())
	ctx := context.Background()

	first, err := src.GetLatestIndicator(ctx, 7, domrepo.TF1h, "rsi")
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	second, err := src.GetLatestIndicator(ctx, 7, domrepo.TF1h, "rsi")
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if backing.calls != 1 {
		t.Fatalf("expected one backing call, got %d", backing.calls)
	}
	if first.RSI != second.RSI || second.RSI != 64.2 {
		t.Fatalf("cached value mismatch: %+v vs %+v", first, second)
	}

	// a different key misses
	if _, err := src.GetLatestIndicator(ctx, 7, domrepo.TF4h, "rsi"); err != nil {
		t.Fatalf("other timeframe: %v", err)
	}
	if backing.calls != 2 {
		t.Fatalf("expected second backing call, got %d", backing.calls)
	}
}

func TestCachedIndicatorSourceDoesNotCacheErrors(t *testing.T) {
	backing := &countingSource{err: domrepo.ErrDataUnavailable}
	src := NewCachedIndicatorSource(backing, cache.NewMemoryCache(), logger.Nop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := src.GetLatestIndicator(ctx, 7, domrepo.TF1h, "macd"); err == nil {
			t.Fatalf("expected error")
		}
	}
	if backing.calls != 2 {
		t.Fatalf("errors must not be cached, got %d calls", backing.calls)
	}
}
