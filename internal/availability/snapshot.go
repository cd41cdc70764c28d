package availability

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SnapshotReader reads the bookings of a widget that overlap [from, to)
type SnapshotReader interface {
	ReadBookings(ctx context.Context, widgetID uuid.UUID, from, to time.Time, statuses []string) ([]BookedInterval, error)
}

type gormSnapshotReader struct {
	db *gorm.DB
}

// NewSnapshotReader creates a SnapshotReader over the bookings table
func NewSnapshotReader(db *gorm.DB) SnapshotReader {
	return &gormSnapshotReader{db: db}
}

type bookedRow struct {
	StartTime time.Time
	EndTime   time.Time
	Players   int
	Status    string
}

func (r *gormSnapshotReader) ReadBookings(ctx context.Context, widgetID uuid.UUID, from, to time.Time, statuses []string) ([]BookedInterval, error) {
	var rows []bookedRow
	err := r.db.WithContext(ctx).
		Table("bookings").
		Select("start_time, end_time, players, status").
		Where("widget_id = ? AND status IN ? AND start_time < ? AND end_time > ?", widgetID, statuses, to, from).
		Order("start_time ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]BookedInterval, 0, len(rows))
	for _, row := range rows {
		out = append(out, BookedInterval{
			Start:   row.StartTime,
			End:     row.EndTime,
			Players: row.Players,
			Status:  row.Status,
		})
	}
	return out, nil
}
