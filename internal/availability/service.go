package availability

import (
	"context"
	"fmt"
	"time"

	"bookingtms/internal/widgetconfig"
	"bookingtms/pkg/logger"
)

type Service interface {
	// GetSlots returns the bookable slots of one date, memoized per snapshot version
	GetSlots(ctx context.Context, widget *widgetconfig.Widget, date widgetconfig.Date) (*DayAvailability, error)
	// FreshSlots recomputes slots from a fresh snapshot, bypassing memoization
	FreshSlots(ctx context.Context, widget *widgetconfig.Widget, cfg *widgetconfig.WidgetConfig, date widgetconfig.Date) ([]Slot, error)
	// Invalidate advances the snapshot version of (widget, date) after a booking write
	Invalidate(ctx context.Context, widget *widgetconfig.Widget, date widgetconfig.Date)
}

type service struct {
	engine *Engine
	reader SnapshotReader
	memo   Memo
	now    func() time.Time
}

// NewService creates the availability service. memo may be nil.
func NewService(engine *Engine, reader SnapshotReader, memo Memo) Service {
	return &service{
		engine: engine,
		reader: reader,
		memo:   memo,
		now:    time.Now,
	}
}

func (s *service) GetSlots(ctx context.Context, widget *widgetconfig.Widget, date widgetconfig.Date) (*DayAvailability, error) {
	cfg, err := widgetconfig.Normalize(widget.Config)
	if err != nil {
		return nil, err
	}

	widgetID := widget.ID.String()
	dateKey := date.String()
	fingerprint := widget.Config.Fingerprint()

	version := ""
	if s.memo != nil {
		if v, err := s.memo.Version(ctx, widgetID, dateKey); err == nil {
			version = v
			if slots, ok := s.memo.Load(ctx, widgetID, dateKey, fingerprint, version); ok {
				return s.dayAvailability(cfg, date, slots), nil
			}
		} else {
			logger.GetDefault().WithError(err).Warn("snapshot version unavailable, computing without memo", "widget_id", widgetID)
		}
	}

	snap, err := s.snapshot(ctx, widget, cfg, date)
	if err != nil {
		return nil, err
	}
	snap.Version = version

	slots := s.engine.BuildSlots(cfg, date, snap)

	if s.memo != nil && version != "" {
		if err := s.memo.Store(ctx, widgetID, dateKey, fingerprint, version, slots); err != nil {
			logger.GetDefault().WithError(err).Warn("failed to memoize slots", "widget_id", widgetID, "date", dateKey)
		}
	}

	return s.dayAvailability(cfg, date, slots), nil
}

func (s *service) FreshSlots(ctx context.Context, widget *widgetconfig.Widget, cfg *widgetconfig.WidgetConfig, date widgetconfig.Date) ([]Slot, error) {
	snap, err := s.snapshot(ctx, widget, cfg, date)
	if err != nil {
		return nil, err
	}
	return s.engine.ComputeSlots(cfg, date, snap, s.now()), nil
}

func (s *service) Invalidate(ctx context.Context, widget *widgetconfig.Widget, date widgetconfig.Date) {
	if s.memo == nil {
		return
	}
	if _, err := s.memo.Bump(ctx, widget.ID.String(), date.String()); err != nil {
		logger.GetDefault().WithError(err).Error("failed to bump snapshot version", "widget_id", widget.ID, "date", date.String())
	}
}

// snapshot reads the bookings overlapping the date, retrying once.
// A failed read is reported as ErrAvailabilityUnknown and never as an empty day.
func (s *service) snapshot(ctx context.Context, widget *widgetconfig.Widget, cfg *widgetconfig.WidgetConfig, date widgetconfig.Date) (Snapshot, error) {
	from, to := DayBounds(cfg, date)
	statuses := s.engine.Policy().CountedStatuses()

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		bookings, err := s.reader.ReadBookings(ctx, widget.ID, from, to, statuses)
		if err == nil {
			return Snapshot{Bookings: bookings}, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	logger.GetDefault().WithError(lastErr).Error("capacity snapshot read failed", "widget_id", widget.ID, "date", date.String())
	return Snapshot{}, fmt.Errorf("%w: %v", ErrAvailabilityUnknown, lastErr)
}

func (s *service) dayAvailability(cfg *widgetconfig.WidgetConfig, date widgetconfig.Date, slots []Slot) *DayAvailability {
	return &DayAvailability{
		Date:     date,
		Timezone: location(cfg).String(),
		Slots:    ApplyAdvanceWindow(cfg, date, slots, s.now()),
	}
}
