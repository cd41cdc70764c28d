package bookings

import (
	"time"

	"bookingtms/internal/payments"
)

// BookingResponse is the customer-facing view of a booking
type BookingResponse struct {
	ConfirmationCode string            `json:"confirmation_code"`
	Status           Status            `json:"status"`
	PaymentStatus    PaymentStatus     `json:"payment_status"`
	StartTime        time.Time         `json:"start_time"`
	EndTime          time.Time         `json:"end_time"`
	Players          int               `json:"players"`
	TotalPrice       float64           `json:"total_price"`
	Tickets          []TicketSelection `json:"tickets"`
	CreatedAt        time.Time         `json:"created_at"`
}

// NewBookingResponse builds the customer view. Customer details and internal ids are left out.
func NewBookingResponse(b *Booking) BookingResponse {
	tickets := []TicketSelection(b.TicketSelections)
	if tickets == nil {
		tickets = []TicketSelection{}
	}
	return BookingResponse{
		ConfirmationCode: b.ConfirmationCode,
		Status:           b.Status,
		PaymentStatus:    b.PaymentStatus,
		StartTime:        b.StartTime,
		EndTime:          b.EndTime,
		Players:          b.Players,
		TotalPrice:       b.TotalPrice,
		Tickets:          tickets,
		CreatedAt:        b.CreatedAt,
	}
}

// CancelResult reports a cancellation and, separately, the refund outcome.
// A refund failure never undoes the cancellation.
type CancelResult struct {
	Booking     *Booking         `json:"booking"`
	Refund      *payments.Refund `json:"refund,omitempty"`
	RefundError error            `json:"-"`
}

// CancelResponse is the JSON form of CancelResult
type CancelResponse struct {
	Booking     *Booking         `json:"booking"`
	Refund      *payments.Refund `json:"refund,omitempty"`
	RefundError string           `json:"refund_error,omitempty"`
}

// BookingListResponse is a page of admin bookings
type BookingListResponse struct {
	Bookings   []Booking `json:"bookings"`
	TotalCount int64     `json:"total_count"`
	Page       int       `json:"page"`
	Limit      int       `json:"limit"`
	TotalPages int       `json:"total_pages"`
}
