package embedkey

import (
	"context"
	"errors"
	"fmt"

	"bookingtms/internal/shared/constants"
	"bookingtms/internal/widgetconfig"
	"bookingtms/pkg/cache"
	"bookingtms/pkg/logger"
)

// Store looks widgets up by embed key
type Store interface {
	GetByEmbedKey(ctx context.Context, embedKey string) (*widgetconfig.Widget, error)
}

// Resolver maps embed keys to active widgets
type Resolver interface {
	Resolve(ctx context.Context, key string) (*widgetconfig.Widget, error)
}

type resolver struct {
	store Store
	cache cache.Service
}

// NewResolver creates a resolver. cacheService may be nil.
func NewResolver(store Store, cacheService cache.Service) Resolver {
	return &resolver{store: store, cache: cacheService}
}

// Resolve checks the key format before touching the cache or the store.
// Store failures other than not-found are returned wrapped, never reported as not-found.
func (r *resolver) Resolve(ctx context.Context, key string) (*widgetconfig.Widget, error) {
	if err := AssertValid(key); err != nil {
		return nil, err
	}

	cacheKey := constants.BuildWidgetByEmbedKey(key)
	if r.cache != nil {
		var cached widgetconfig.Widget
		if err := r.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			logger.GetDefault().WithError(err).Warn("embed key cache read failed", "embed_key", key)
		}
	}

	widget, err := r.store.GetByEmbedKey(ctx, key)
	if err != nil {
		if errors.Is(err, widgetconfig.ErrWidgetNotFound) {
			return nil, ErrEmbedKeyNotFound
		}
		return nil, fmt.Errorf("failed to resolve embed key: %w", err)
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, cacheKey, widget, constants.TTL_WIDGET_BY_EMBED_KEY); err != nil {
			logger.GetDefault().WithError(err).Warn("embed key cache write failed", "embed_key", key)
		}
	}
	return widget, nil
}
