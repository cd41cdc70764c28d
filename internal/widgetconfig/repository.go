package widgetconfig

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrWidgetNotFound is returned when no widget row matches
var ErrWidgetNotFound = errors.New("widget not found")

// Repository interface for widget operations
type Repository interface {
	Create(ctx context.Context, widget *Widget) error
	GetByID(ctx context.Context, id uuid.UUID) (*Widget, error)
	GetByEmbedKey(ctx context.Context, embedKey string) (*Widget, error)
	List(ctx context.Context, venueID *uuid.UUID) ([]Widget, error)
	UpdateConfig(ctx context.Context, id uuid.UUID, raw RawConfig) error
}

// repository implements Repository interface
type repository struct {
	db *gorm.DB
}

// NewRepository creates a new widget repository
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// Create inserts the widget and reloads it so the trigger-issued embed key is populated
func (r *repository) Create(ctx context.Context, widget *Widget) error {
	if err := r.db.WithContext(ctx).Create(widget).Error; err != nil {
		return fmt.Errorf("failed to create widget: %w", err)
	}
	return r.db.WithContext(ctx).First(widget, "id = ?", widget.ID).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Widget, error) {
	var widget Widget
	err := r.db.WithContext(ctx).First(&widget, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWidgetNotFound
		}
		return nil, err
	}
	return &widget, nil
}

func (r *repository) GetByEmbedKey(ctx context.Context, embedKey string) (*Widget, error) {
	var widget Widget
	err := r.db.WithContext(ctx).
		Where("embed_key = ? AND active = ?", embedKey, true).
		First(&widget).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWidgetNotFound
		}
		return nil, err
	}
	return &widget, nil
}

func (r *repository) List(ctx context.Context, venueID *uuid.UUID) ([]Widget, error) {
	var widgets []Widget
	query := r.db.WithContext(ctx).Model(&Widget{})
	if venueID != nil {
		query = query.Where("venue_id = ?", *venueID)
	}
	if err := query.Order("created_at DESC").Find(&widgets).Error; err != nil {
		return nil, err
	}
	return widgets, nil
}

func (r *repository) UpdateConfig(ctx context.Context, id uuid.UUID, raw RawConfig) error {
	result := r.db.WithContext(ctx).
		Model(&Widget{}).
		Where("id = ?", id).
		Update("config", raw)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrWidgetNotFound
	}
	return nil
}
