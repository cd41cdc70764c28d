package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/refund"
)

// StripeGateway issues refunds through the Stripe API
type StripeGateway struct {
	client refund.Client
}

// NewStripeGateway creates a gateway using the default Stripe API backend
func NewStripeGateway(secretKey string) *StripeGateway {
	return NewStripeGatewayWithBackend(secretKey, stripe.GetBackend(stripe.APIBackend))
}

// NewStripeGatewayWithBackend creates a gateway on an explicit backend
func NewStripeGatewayWithBackend(secretKey string, backend stripe.Backend) *StripeGateway {
	return &StripeGateway{client: refund.Client{B: backend, Key: secretKey}}
}

// RequestRefund creates a refund keyed by the booking id so retries never double refund
func (g *StripeGateway) RequestRefund(ctx context.Context, req RefundRequest) (*Refund, error) {
	if req.PaymentRef == "" {
		return nil, fmt.Errorf("%w: booking %s has no payment reference", ErrRefundFailed, req.BookingID)
	}

	params := refundParams(req)
	params.Context = ctx

	r, err := g.client.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRefundFailed, describeStripeError(err))
	}

	result := fromStripe(r)
	result.BookingID = req.BookingID
	if result.State == RefundFailed {
		return result, fmt.Errorf("%w: %s", ErrRefundFailed, result.FailureReason)
	}
	return result, nil
}

// RefundStatus fetches the current state of a refund
func (g *StripeGateway) RefundStatus(ctx context.Context, refundID string) (*Refund, error) {
	if refundID == "" {
		return nil, errors.New("refund id is required")
	}
	params := &stripe.RefundParams{}
	params.Context = ctx

	r, err := g.client.Get(refundID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to get refund %s: %s", refundID, describeStripeError(err))
	}
	return fromStripe(r), nil
}

func refundParams(req RefundRequest) *stripe.RefundParams {
	params := &stripe.RefundParams{}
	switch {
	case strings.HasPrefix(req.PaymentRef, "ch_"):
		params.Charge = stripe.String(req.PaymentRef)
	default:
		params.PaymentIntent = stripe.String(req.PaymentRef)
	}
	if req.Amount > 0 {
		params.Amount = stripe.Int64(req.Amount)
	}
	params.Reason = stripe.String(string(stripe.RefundReasonRequestedByCustomer))
	params.AddMetadata("booking_id", req.BookingID)
	if req.Reason != "" {
		params.AddMetadata("cancel_reason", req.Reason)
	}
	params.SetIdempotencyKey("refund-" + req.BookingID)
	return params
}

func fromStripe(r *stripe.Refund) *Refund {
	out := &Refund{
		ID:     r.ID,
		State:  mapStripeStatus(r.Status),
		Amount: r.Amount,
	}
	if r.FailureReason != "" {
		out.FailureReason = string(r.FailureReason)
	}
	if r.Metadata != nil {
		out.BookingID = r.Metadata["booking_id"]
	}
	return out
}

func mapStripeStatus(status stripe.RefundStatus) RefundState {
	switch status {
	case stripe.RefundStatusSucceeded:
		return RefundSucceeded
	case stripe.RefundStatusFailed, stripe.RefundStatusCanceled:
		return RefundFailed
	case stripe.RefundStatusPending, stripe.RefundStatusRequiresAction:
		return RefundPending
	default:
		return RefundRequested
	}
}

func describeStripeError(err error) string {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.Msg != "" {
			return fmt.Sprintf("%s (%s)", stripeErr.Msg, stripeErr.Code)
		}
		return string(stripeErr.Type)
	}
	return err.Error()
}
