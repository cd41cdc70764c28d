package notifications

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType names a booking lifecycle event on the topic
type EventType string

const (
	EventBookingCreated   EventType = "booking.created"
	EventBookingConfirmed EventType = "booking.confirmed"
	EventBookingCancelled EventType = "booking.cancelled"
	EventBookingCompleted EventType = "booking.completed"
	EventBookingNoShow    EventType = "booking.no_show"
	EventBookingRefund    EventType = "booking.refund"
)

// BookingEvent is the message published for every booking state change.
// Delivery to customers (email, SMS) is done by downstream consumers.
type BookingEvent struct {
	ID               uuid.UUID         `json:"id"`
	Type             EventType         `json:"type"`
	BookingID        uuid.UUID         `json:"booking_id"`
	WidgetID         uuid.UUID         `json:"widget_id"`
	ConfirmationCode string            `json:"confirmation_code"`
	Status           string            `json:"status"`
	PaymentStatus    string            `json:"payment_status"`
	StartTime        time.Time         `json:"start_time"`
	Players          int               `json:"players"`
	CustomerEmail    string            `json:"customer_email,omitempty"`
	RefundID         string            `json:"refund_id,omitempty"`
	RefundState      string            `json:"refund_state,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	OccurredAt       time.Time         `json:"occurred_at"`
}

// NewBookingEvent stamps a new event with an id and the current time
func NewBookingEvent(eventType EventType, bookingID uuid.UUID) *BookingEvent {
	return &BookingEvent{
		ID:         uuid.New(),
		Type:       eventType,
		BookingID:  bookingID,
		OccurredAt: time.Now().UTC(),
	}
}

// PartitionKey keeps all events of one booking in order on a single partition
func (e *BookingEvent) PartitionKey() string {
	return e.BookingID.String()
}

// ToJSON converts the event to JSON
func (e *BookingEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON decodes an event published by KafkaProducer
func FromJSON(data []byte) (*BookingEvent, error) {
	var e BookingEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
