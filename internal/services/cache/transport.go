package cache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/phambaophuc/smartmine-client/pkg/smartmine"
)

const noResize = "none"

// CachingTransport remembers dimension-check answers per service and
// source size. Every other call goes straight to the wrapped Transport.
type CachingTransport struct {
	smartmine.Transport
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachingTransport(next smartmine.Transport, cache Cache, ttl time.Duration, logger *zap.Logger) *CachingTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachingTransport{
		Transport: next,
		cache:     cache,
		ttl:       ttl,
		logger:    logger,
	}
}

func (t *CachingTransport) CheckDimensions(ctx context.Context, bearer string, service smartmine.ServiceName, size smartmine.Dimensions) (*smartmine.Dimensions, error) {
	key := DimensionKey(service, size)

	cached, found, err := t.cache.Get(ctx, key)
	if err != nil {
		t.logger.Warn("Dimension cache unavailable", zap.String("key", key), zap.Error(err))
	} else if found {
		if target, ok := decodeTarget(cached); ok {
			t.logger.Debug("Dimension cache hit", zap.String("key", key))
			return target, nil
		}
		t.logger.Warn("Ignoring malformed cache entry", zap.String("key", key), zap.String("value", cached))
	}

	target, err := t.Transport.CheckDimensions(ctx, bearer, service, size)
	if err != nil {
		return nil, err
	}

	if err := t.cache.Set(ctx, key, encodeTarget(target), t.ttl); err != nil {
		t.logger.Warn("Failed to cache dimension check", zap.String("key", key), zap.Error(err))
	}
	return target, nil
}

func DimensionKey(service smartmine.ServiceName, size smartmine.Dimensions) string {
	return fmt.Sprintf("dim_cache:%s:%dx%d", service, size.Width, size.Height)
}

func encodeTarget(target *smartmine.Dimensions) string {
	if target == nil {
		return noResize
	}
	return target.String()
}

func decodeTarget(value string) (*smartmine.Dimensions, bool) {
	if value == noResize {
		return nil, true
	}

	var d smartmine.Dimensions
	if _, err := fmt.Sscanf(value, "%dx%d", &d.Width, &d.Height); err != nil || !d.Valid() {
		return nil, false
	}
	return &d, true
}
