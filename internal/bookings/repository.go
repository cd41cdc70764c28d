package bookings

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"bookingtms/internal/payments"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StatusChange is a compare-and-set update of a booking's status
type StatusChange struct {
	From          Status
	To            Status
	PaymentStatus PaymentStatus // empty leaves the payment status unchanged
	PaymentRef    string
	CancelReason  string
	At            time.Time
}

// RefundUpdate records what the payment provider reported
type RefundUpdate struct {
	RefundID      string
	State         payments.RefundState
	PaymentStatus PaymentStatus // empty leaves the payment status unchanged
}

// CapacityCheck describes the limit enforced by CreateWithCapacityCheck
type CapacityCheck struct {
	Capacity        int
	CountedStatuses []string
}

type Repository interface {
	// CreateWithCapacityCheck inserts the booking only if the players already holding
	// overlapping bookings plus the new ones fit the capacity. The check and the insert
	// run in one transaction serialized per widget.
	CreateWithCapacityCheck(ctx context.Context, booking *Booking, check CapacityCheck) error
	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	GetByConfirmationCode(ctx context.Context, widgetID uuid.UUID, code string) (*Booking, error)
	ApplyStatusChange(ctx context.Context, id uuid.UUID, change StatusChange) error
	UpdateRefund(ctx context.Context, id uuid.UUID, update RefundUpdate) error
	List(ctx context.Context, query BookingListQuery) ([]Booking, int64, error)
	ListPendingRefunds(ctx context.Context, limit int) ([]Booking, error)
	ListEndedConfirmed(ctx context.Context, before time.Time, limit int) ([]Booking, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateWithCapacityCheck(ctx context.Context, booking *Booking, check CapacityCheck) error {
	if !booking.StartTime.Before(booking.EndTime) {
		return ErrInvalidSlotTime
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. Serialize writers of this widget until commit
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", booking.WidgetID.String()).Error; err != nil {
			return fmt.Errorf("failed to lock widget capacity: %w", err)
		}

		// 2. Re-read the players holding overlapping slots
		var used int
		err := tx.Model(&Booking{}).
			Select("COALESCE(SUM(players), 0)").
			Where("widget_id = ? AND status IN ? AND start_time < ? AND end_time > ?",
				booking.WidgetID, check.CountedStatuses, booking.EndTime, booking.StartTime).
			Scan(&used).Error
		if err != nil {
			return fmt.Errorf("failed to read slot capacity: %w", err)
		}

		// 3. Check capacity
		if used+booking.Players > check.Capacity {
			return ErrSlotFull
		}

		// 4. Create the booking
		if err := tx.Create(booking).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateCode
			}
			return fmt.Errorf("failed to create booking: %w", err)
		}
		return nil
	})
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	var booking Booking
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &booking, nil
}

func (r *repository) GetByConfirmationCode(ctx context.Context, widgetID uuid.UUID, code string) (*Booking, error) {
	var booking Booking
	err := r.db.WithContext(ctx).
		Where("widget_id = ? AND confirmation_code = ?", widgetID, code).
		First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &booking, nil
}

func (r *repository) ApplyStatusChange(ctx context.Context, id uuid.UUID, change StatusChange) error {
	updates := map[string]interface{}{
		"status":     change.To,
		"updated_at": change.At,
	}
	if change.PaymentStatus != "" {
		updates["payment_status"] = change.PaymentStatus
	}
	if change.PaymentRef != "" {
		updates["payment_ref"] = change.PaymentRef
	}
	switch change.To {
	case StatusCancelled:
		updates["cancelled_at"] = change.At
		updates["cancel_reason"] = change.CancelReason
	case StatusCompleted:
		updates["completed_at"] = change.At
	}

	result := r.db.WithContext(ctx).
		Model(&Booking{}).
		Where("id = ? AND status = ?", id, change.From).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// someone else moved the booking first
		return ErrInvalidTransition
	}
	return nil
}

func (r *repository) UpdateRefund(ctx context.Context, id uuid.UUID, update RefundUpdate) error {
	updates := map[string]interface{}{
		"refund_state": update.State,
		"updated_at":   time.Now(),
	}
	if update.RefundID != "" {
		updates["refund_id"] = update.RefundID
	}
	if update.PaymentStatus != "" {
		updates["payment_status"] = update.PaymentStatus
	}
	return r.db.WithContext(ctx).
		Model(&Booking{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) List(ctx context.Context, query BookingListQuery) ([]Booking, int64, error) {
	var bookings []Booking
	var totalCount int64

	// Set defaults
	if query.Page <= 0 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = 20
	}

	baseQuery := r.applyFilters(r.db.WithContext(ctx).Model(&Booking{}), query)

	if err := baseQuery.Count(&totalCount).Error; err != nil {
		return nil, 0, err
	}

	offset := (query.Page - 1) * query.Limit
	err := baseQuery.
		Order("start_time DESC").
		Offset(offset).
		Limit(query.Limit).
		Find(&bookings).Error

	return bookings, totalCount, err
}

func (r *repository) ListPendingRefunds(ctx context.Context, limit int) ([]Booking, error) {
	var bookings []Booking
	err := r.db.WithContext(ctx).
		Where("refund_id <> '' AND refund_state IN ?", []payments.RefundState{payments.RefundRequested, payments.RefundPending}).
		Order("updated_at ASC").
		Limit(limit).
		Find(&bookings).Error
	return bookings, err
}

func (r *repository) ListEndedConfirmed(ctx context.Context, before time.Time, limit int) ([]Booking, error) {
	var bookings []Booking
	err := r.db.WithContext(ctx).
		Where("status = ? AND end_time <= ?", StatusConfirmed, before).
		Order("end_time ASC").
		Limit(limit).
		Find(&bookings).Error
	return bookings, err
}

// applyFilters applies query filters to the GORM query
func (r *repository) applyFilters(query *gorm.DB, filters BookingListQuery) *gorm.DB {
	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}

	if filters.WidgetID != "" {
		if widgetID, err := uuid.Parse(filters.WidgetID); err == nil {
			query = query.Where("widget_id = ?", widgetID)
		}
	}

	if filters.DateFrom != "" {
		if dateFrom, err := time.Parse("2006-01-02", filters.DateFrom); err == nil {
			query = query.Where("start_time >= ?", dateFrom)
		}
	}

	if filters.DateTo != "" {
		if dateTo, err := time.Parse("2006-01-02", filters.DateTo); err == nil {
			query = query.Where("start_time < ?", dateTo.AddDate(0, 0, 1))
		}
	}

	return query
}

// CalculateTotalPages returns the number of pages for a result set
func CalculateTotalPages(totalCount int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int(math.Ceil(float64(totalCount) / float64(limit)))
}
