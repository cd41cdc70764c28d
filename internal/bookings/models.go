package bookings

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bookingtms/internal/payments"

	"github.com/google/uuid"
)

var (
	ErrBookingNotFound       = errors.New("booking not found")
	ErrInvalidBookingID      = errors.New("invalid booking id")
	ErrSlotFull              = errors.New("slot does not have enough capacity left")
	ErrSlotUnavailable       = errors.New("slot is not open for booking")
	ErrInvalidTransition     = errors.New("booking status does not allow this change")
	ErrPlayerCountOutOfRange = errors.New("player count is outside the allowed range")
	ErrUnknownTicketType     = errors.New("unknown ticket type")
	ErrInvalidAnswer         = errors.New("invalid answer to an additional question")
	ErrInvalidSlotTime       = errors.New("invalid slot date or start time")
	ErrTooEarly              = errors.New("slot has not reached the required time yet")
	ErrNoCapturedPayment     = errors.New("booking has no captured payment to refund")
	ErrNoRefund              = errors.New("no refund was issued for this booking")
	ErrRefundLookupFailed    = errors.New("payment provider did not return the refund")
	ErrDuplicateCode         = errors.New("confirmation code already in use")
)

// Booking is one reservation of a slot made through a widget
type Booking struct {
	ID               uuid.UUID            `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	WidgetID         uuid.UUID            `gorm:"type:uuid;not null;index:idx_bookings_widget_window,priority:1" json:"widget_id"`
	StartTime        time.Time            `gorm:"not null;index:idx_bookings_widget_window,priority:2" json:"start_time"`
	EndTime          time.Time            `gorm:"not null;index" json:"end_time"`
	Players          int                  `gorm:"not null" json:"players"`
	TotalPrice       float64              `gorm:"not null;default:0" json:"total_price"`
	Status           Status               `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	PaymentStatus    PaymentStatus        `gorm:"type:varchar(20);not null;default:'pending'" json:"payment_status"`
	ConfirmationCode string               `gorm:"type:varchar(16);uniqueIndex;not null;<-:create" json:"confirmation_code"`
	TicketSelections TicketSelections     `gorm:"type:jsonb;not null;default:'[]'" json:"ticket_selections"`
	Customer         CustomerInfo         `gorm:"type:jsonb;not null;default:'{}'" json:"customer"`
	Answers          Answers              `gorm:"type:jsonb;not null;default:'{}'" json:"answers,omitempty"`
	PaymentRef       string               `gorm:"type:varchar(255)" json:"payment_ref,omitempty"`
	RefundID         string               `gorm:"type:varchar(255)" json:"refund_id,omitempty"`
	RefundState      payments.RefundState `gorm:"type:varchar(20);index" json:"refund_state,omitempty"`
	CancelReason     string               `json:"cancel_reason,omitempty"`
	CancelledAt      *time.Time           `json:"cancelled_at,omitempty"`
	CompletedAt      *time.Time           `json:"completed_at,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

// TableName sets the table name for Booking
func (Booking) TableName() string {
	return "bookings"
}

// TicketSelection is the quantity chosen for one ticket type
type TicketSelection struct {
	TicketTypeID string  `json:"ticket_type_id" binding:"required"`
	Quantity     int     `json:"quantity" binding:"gte=0"`
	UnitPrice    float64 `json:"unit_price"`
}

// TicketSelections is stored as a JSONB array
type TicketSelections []TicketSelection

func (t TicketSelections) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	b, err := json.Marshal(t)
	return string(b), err
}

func (t *TicketSelections) Scan(value interface{}) error {
	return scanJSON(value, t)
}

// CustomerInfo identifies who made the booking
type CustomerInfo struct {
	Name  string `json:"name" binding:"required,max=200"`
	Email string `json:"email" binding:"required,email"`
	Phone string `json:"phone,omitempty" binding:"omitempty,max=40"`
}

func (c CustomerInfo) Value() (driver.Value, error) {
	b, err := json.Marshal(c)
	return string(b), err
}

func (c *CustomerInfo) Scan(value interface{}) error {
	return scanJSON(value, c)
}

// Answers maps additional question ids to the customer's answers
type Answers map[string]string

func (a Answers) Value() (driver.Value, error) {
	if a == nil {
		return "{}", nil
	}
	b, err := json.Marshal(a)
	return string(b), err
}

func (a *Answers) Scan(value interface{}) error {
	return scanJSON(value, a)
}

func scanJSON(value interface{}, dest interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("cannot scan %T into %T", value, dest)
	}
}

// IsCancelled reports whether the booking was cancelled
func (b *Booking) IsCancelled() bool {
	return b.Status == StatusCancelled
}

// HasPendingRefund reports whether a refund was issued but not yet settled
func (b *Booking) HasPendingRefund() bool {
	return b.RefundID != "" && b.RefundState != "" && !b.RefundState.IsFinal()
}
