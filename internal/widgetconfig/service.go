package widgetconfig

import (
	"context"
	"errors"
	"fmt"

	"bookingtms/internal/shared/constants"
	"bookingtms/pkg/cache"
	"bookingtms/pkg/logger"

	"github.com/google/uuid"
)

// ErrInvalidWidgetID is returned for ids that are not UUIDs
var ErrInvalidWidgetID = errors.New("invalid widget ID")

type Service interface {
	GetWidget(ctx context.Context, id string) (*Widget, error)
	ListWidgets(ctx context.Context, venueID string) ([]Widget, error)

	// GetConfig normalizes the stored raw configuration of the widget
	GetConfig(widget *Widget) (*WidgetConfig, error)
	GetPublicConfig(ctx context.Context, widget *Widget) (*PublicConfig, error)

	Validate(raw RawConfig) (*WidgetConfig, error)
	UpdateConfig(ctx context.Context, id string, raw RawConfig) (*Widget, error)
}

type service struct {
	repo  Repository
	cache cache.Service
}

// NewService creates the widget service. cacheService may be nil when Redis is not configured.
func NewService(repo Repository, cacheService cache.Service) Service {
	return &service{
		repo:  repo,
		cache: cacheService,
	}
}

func (s *service) GetWidget(ctx context.Context, id string) (*Widget, error) {
	widgetID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrInvalidWidgetID
	}
	return s.repo.GetByID(ctx, widgetID)
}

func (s *service) ListWidgets(ctx context.Context, venueID string) ([]Widget, error) {
	if venueID == "" {
		return s.repo.List(ctx, nil)
	}
	id, err := uuid.Parse(venueID)
	if err != nil {
		return nil, fmt.Errorf("invalid venue ID: %w", err)
	}
	return s.repo.List(ctx, &id)
}

func (s *service) GetConfig(widget *Widget) (*WidgetConfig, error) {
	return Normalize(widget.Config)
}

func (s *service) GetPublicConfig(ctx context.Context, widget *Widget) (*PublicConfig, error) {
	key := constants.BuildWidgetPublicKey(widget.ID.String(), widget.Config.Fingerprint())
	if s.cache != nil {
		var cached PublicConfig
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	cfg, err := Normalize(widget.Config)
	if err != nil {
		return nil, err
	}
	public := cfg.Public(widget.WidgetType)

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, public, constants.TTL_WIDGET_PUBLIC); err != nil {
			logger.GetDefault().WithError(err).Warn("failed to cache public widget config", "widget_id", widget.ID)
		}
	}
	return public, nil
}

func (s *service) Validate(raw RawConfig) (*WidgetConfig, error) {
	return Normalize(raw)
}

// UpdateConfig stores a new raw configuration. Invalid configurations are rejected
// with every field error and never reach the store.
func (s *service) UpdateConfig(ctx context.Context, id string, raw RawConfig) (*Widget, error) {
	widgetID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrInvalidWidgetID
	}

	if _, err := Normalize(raw); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateConfig(ctx, widgetID, raw); err != nil {
		return nil, err
	}

	widget, err := s.repo.GetByID(ctx, widgetID)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, widget)
	return widget, nil
}

func (s *service) invalidate(ctx context.Context, widget *Widget) {
	if s.cache == nil {
		return
	}
	if widget.EmbedKey != "" {
		if err := s.cache.Delete(ctx, constants.BuildWidgetByEmbedKey(widget.EmbedKey)); err != nil {
			logger.GetDefault().WithError(err).Warn("failed to invalidate widget cache", "widget_id", widget.ID)
		}
	}
	if err := s.cache.DeletePattern(ctx, constants.BuildWidgetPublicPattern(widget.ID.String())); err != nil {
		logger.GetDefault().WithError(err).Warn("failed to invalidate public config cache", "widget_id", widget.ID)
	}
}
