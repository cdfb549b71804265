package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SignalFlow/internal/domain/models"
	domrepo "SignalFlow/internal/domain/repository"
	"SignalFlow/pkg/cache"
	applogger "SignalFlow/pkg/logger"
)

// CachedIndicatorSource caches latest-indicator reads. Readings only change
// when a new bar closes, so the TTL is a fraction of the timeframe bucket;
// cache failures fall through to the backing source.
type CachedIndicatorSource struct {
	source domrepo.IndicatorSource
	cache  cache.Service
	l      *applogger.Logger
}

func NewCachedIndicatorSource(source domrepo.IndicatorSource, c cache.Service, l *applogger.Logger) *CachedIndicatorSource {
	return &CachedIndicatorSource{source: source, cache: c, l: l}
}

func (s *CachedIndicatorSource) GetLatestIndicator(ctx context.Context, symbolID int64, tf domrepo.Timeframe, kind string) (models.IndicatorValue, error) {
	key := fmt.Sprintf("indicator:%d:%s:%s", symbolID, tf, kind)

	var cached models.IndicatorValue
	err := s.cache.Get(ctx, key, &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) && s.l != nil {
		s.l.Warn("indicator cache read failed",
			applogger.String("key", key),
			applogger.Error(err))
	}

	iv, err := s.source.GetLatestIndicator(ctx, symbolID, tf, kind)
	if err != nil {
		return models.IndicatorValue{}, err
	}

	if err := s.cache.Set(ctx, key, iv, cacheTTL(tf)); err != nil && s.l != nil {
		s.l.Warn("indicator cache write failed",
			applogger.String("key", key),
			applogger.Error(err))
	}
	return iv, nil
}

func cacheTTL(tf domrepo.Timeframe) time.Duration {
	ttl := tf.Duration() / 10
	if ttl < 5*time.Second {
		ttl = 5 * time.Second
	}
	if ttl > time.Minute {
		ttl = time.Minute
	}
	return ttl
}
