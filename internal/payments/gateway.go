package payments

import (
	"context"
	"errors"
)

var (
	// ErrRefundFailed is reported when the payment provider rejects or fails a refund
	ErrRefundFailed = errors.New("refund failed")
	// ErrPaymentsDisabled is returned when no provider is configured
	ErrPaymentsDisabled = errors.New("payments are not configured")
)

// RefundState is the provider-reported refund lifecycle
type RefundState string

const (
	RefundRequested RefundState = "requested"
	RefundPending   RefundState = "pending"
	RefundSucceeded RefundState = "succeeded"
	RefundFailed    RefundState = "failed"
)

// IsFinal reports whether the provider will not change the state again
func (s RefundState) IsFinal() bool {
	return s == RefundSucceeded || s == RefundFailed
}

// RefundRequest asks the provider to return a captured payment.
// Amount is in minor currency units; zero refunds the full payment.
type RefundRequest struct {
	BookingID  string
	PaymentRef string
	Amount     int64
	Reason     string
}

// Refund is the provider's view of a refund
type Refund struct {
	ID            string      `json:"id"`
	BookingID     string      `json:"booking_id,omitempty"`
	State         RefundState `json:"state"`
	Amount        int64       `json:"amount"`
	FailureReason string      `json:"failure_reason,omitempty"`
}

// Gateway is the payment collaborator used by the booking lifecycle
type Gateway interface {
	// RequestRefund issues a refund. Repeating the call for the same booking
	// returns the refund created by the first call.
	RequestRefund(ctx context.Context, req RefundRequest) (*Refund, error)
	// RefundStatus re-reads a refund. It never issues a new one.
	RefundStatus(ctx context.Context, refundID string) (*Refund, error)
}

// DisabledGateway rejects every refund
type DisabledGateway struct{}

func (DisabledGateway) RequestRefund(ctx context.Context, req RefundRequest) (*Refund, error) {
	return nil, errors.Join(ErrRefundFailed, ErrPaymentsDisabled)
}

func (DisabledGateway) RefundStatus(ctx context.Context, refundID string) (*Refund, error) {
	return nil, ErrPaymentsDisabled
}
