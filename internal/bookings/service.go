package bookings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bookingtms/internal/availability"
	"bookingtms/internal/notifications"
	"bookingtms/internal/payments"
	"bookingtms/internal/widgetconfig"
	"bookingtms/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const maxCodeAttempts = 3

// SlotSource recomputes slots from a fresh capacity snapshot and invalidates memoized ones
type SlotSource interface {
	FreshSlots(ctx context.Context, widget *widgetconfig.Widget, cfg *widgetconfig.WidgetConfig, date widgetconfig.Date) ([]availability.Slot, error)
	Invalidate(ctx context.Context, widget *widgetconfig.Widget, date widgetconfig.Date)
}

// WidgetLookup loads the widget a booking belongs to
type WidgetLookup interface {
	GetWidget(ctx context.Context, id string) (*widgetconfig.Widget, error)
}

// Service interface defines the contract for booking business logic
type Service interface {
	Submit(ctx context.Context, widget *widgetconfig.Widget, req SubmitRequest) (*Booking, error)
	Confirm(ctx context.Context, id uuid.UUID, req ConfirmRequest) (*Booking, error)
	Cancel(ctx context.Context, id uuid.UUID, reason string, issueRefund bool) (*CancelResult, error)
	Complete(ctx context.Context, id uuid.UUID) (*Booking, error)
	MarkNoShow(ctx context.Context, id uuid.UUID) (*Booking, error)
	RefundStatus(ctx context.Context, id uuid.UUID) (*payments.Refund, error)

	GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error)
	GetByConfirmationCode(ctx context.Context, widget *widgetconfig.Widget, code string) (*Booking, error)
	ListBookings(ctx context.Context, query BookingListQuery) (*BookingListResponse, error)

	// Background work
	ReconcileRefunds(ctx context.Context, limit int) (int, error)
	CompleteEnded(ctx context.Context, limit int) (int, error)
}

// Dependencies groups the collaborators of the booking service
type Dependencies struct {
	Repo      Repository
	Slots     SlotSource
	Widgets   WidgetLookup
	Payments  payments.Gateway
	Events    notifications.Producer
	Scheduler Scheduler
	Policy    availability.CapacityPolicy
}

type service struct {
	repo      Repository
	slots     SlotSource
	widgets   WidgetLookup
	payments  payments.Gateway
	events    notifications.Producer
	scheduler Scheduler
	policy    availability.CapacityPolicy
	validate  *validator.Validate
	now       func() time.Time
}

// NewService creates a new booking service instance
func NewService(deps Dependencies) Service {
	s := &service{
		repo:      deps.Repo,
		slots:     deps.Slots,
		widgets:   deps.Widgets,
		payments:  deps.Payments,
		events:    deps.Events,
		scheduler: deps.Scheduler,
		policy:    deps.Policy,
		validate:  validator.New(),
		now:       time.Now,
	}
	if s.payments == nil {
		s.payments = payments.DisabledGateway{}
	}
	if s.events == nil {
		s.events = notifications.NoopProducer{}
	}
	if s.scheduler == nil {
		s.scheduler = NoopScheduler{}
	}
	return s
}

// Submit books a slot. Capacity is checked against a fresh snapshot and again inside
// the insert transaction; a slot that filled up in between fails with ErrSlotFull.
func (s *service) Submit(ctx context.Context, widget *widgetconfig.Widget, req SubmitRequest) (*Booking, error) {
	cfg, err := widgetconfig.Normalize(widget.Config)
	if err != nil {
		return nil, err
	}

	date, start, err := slotStart(cfg, req.Date, req.StartTime)
	if err != nil {
		return nil, err
	}

	selections, players, total, err := price(cfg, req.Tickets)
	if err != nil {
		return nil, err
	}
	if players < cfg.MinPlayers || players > cfg.MaxPlayers {
		return nil, fmt.Errorf("%w: %d players, allowed %d to %d", ErrPlayerCountOutOfRange, players, cfg.MinPlayers, cfg.MaxPlayers)
	}

	answers, err := s.checkAnswers(cfg, req.Answers)
	if err != nil {
		return nil, err
	}

	slots, err := s.slots.FreshSlots(ctx, widget, cfg, date)
	if err != nil {
		return nil, err
	}
	slot, ok := availability.FindSlot(slots, start)
	if !ok {
		return nil, ErrSlotUnavailable
	}
	if slot.CapacityRemaining < players {
		return nil, ErrSlotFull
	}

	booking := &Booking{
		WidgetID:         widget.ID,
		StartTime:        slot.Start,
		EndTime:          slot.End,
		Players:          players,
		TotalPrice:       total,
		Status:           StatusPending,
		PaymentStatus:    PaymentPending,
		TicketSelections: selections,
		Customer:         req.Customer,
		Answers:          answers,
	}

	check := CapacityCheck{Capacity: cfg.MaxPlayers, CountedStatuses: s.policy.CountedStatuses()}
	for attempt := 1; ; attempt++ {
		code, err := NewConfirmationCode()
		if err != nil {
			return nil, fmt.Errorf("failed to generate confirmation code: %w", err)
		}
		booking.ConfirmationCode = code

		err = s.repo.CreateWithCapacityCheck(ctx, booking, check)
		if err == nil {
			break
		}
		if errors.Is(err, ErrDuplicateCode) && attempt < maxCodeAttempts {
			continue
		}
		return nil, err
	}

	s.slots.Invalidate(ctx, widget, date)
	logger.GetDefault().LogBookingCreated(ctx, booking.ID.String(), widget.ID.String(), booking.ConfirmationCode, booking.Players)
	s.publish(ctx, notifications.EventBookingCreated, booking, nil)

	if err := s.scheduler.ScheduleCompletion(ctx, booking); err != nil {
		logger.GetDefault().WithError(err).Warn("failed to schedule booking completion", "booking_id", booking.ID)
	}

	return booking, nil
}

// Confirm records a successful payment on a pending booking
func (s *service) Confirm(ctx context.Context, id uuid.UUID, req ConfirmRequest) (*Booking, error) {
	paymentStatus := PaymentPaid
	if req.Partial {
		paymentStatus = PaymentPartial
	}

	booking, err := s.transition(ctx, id, StatusConfirmed, func(b *Booking, change *StatusChange) error {
		change.PaymentStatus = paymentStatus
		change.PaymentRef = req.PaymentRef
		b.PaymentStatus = paymentStatus
		b.PaymentRef = req.PaymentRef
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, notifications.EventBookingConfirmed, booking, nil)
	return booking, nil
}

// Cancel cancels a pending or confirmed booking. The refund outcome is reported in the
// result; the payment status only becomes refunded once the provider confirms the refund.
func (s *service) Cancel(ctx context.Context, id uuid.UUID, reason string, issueRefund bool) (*CancelResult, error) {
	booking, err := s.transition(ctx, id, StatusCancelled, func(b *Booking, change *StatusChange) error {
		change.CancelReason = reason
		b.CancelReason = reason
		at := change.At
		b.CancelledAt = &at
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, booking)
	logger.GetDefault().LogBookingCancelled(ctx, booking.ID.String(), reason, issueRefund)
	s.publish(ctx, notifications.EventBookingCancelled, booking, nil)

	result := &CancelResult{Booking: booking}
	if !issueRefund {
		return result, nil
	}

	if !booking.PaymentStatus.IsCaptured() || booking.PaymentRef == "" {
		result.RefundError = ErrNoCapturedPayment
		return result, nil
	}

	refund, refundErr := s.payments.RequestRefund(ctx, payments.RefundRequest{
		BookingID:  booking.ID.String(),
		PaymentRef: booking.PaymentRef,
		Reason:     reason,
	})
	result.Refund = refund
	if refundErr != nil && !errors.Is(refundErr, payments.ErrRefundFailed) {
		refundErr = fmt.Errorf("%w: %v", payments.ErrRefundFailed, refundErr)
	}
	result.RefundError = refundErr

	refundID := ""
	if refund != nil {
		refundID = refund.ID
	}
	logger.GetDefault().LogRefundOutcome(ctx, booking.ID.String(), refundID, refundStateOf(refund), refundErr)

	if refund != nil {
		if err := s.recordRefund(ctx, booking, refund); err != nil {
			logger.GetDefault().WithError(err).Error("failed to record refund", "booking_id", booking.ID, "refund_id", refund.ID)
		}
	}
	return result, nil
}

// Complete closes a confirmed booking whose slot has ended
func (s *service) Complete(ctx context.Context, id uuid.UUID) (*Booking, error) {
	booking, err := s.transition(ctx, id, StatusCompleted, func(b *Booking, change *StatusChange) error {
		if change.At.Before(b.EndTime) {
			return ErrTooEarly
		}
		at := change.At
		b.CompletedAt = &at
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, notifications.EventBookingCompleted, booking, nil)
	return booking, nil
}

// MarkNoShow flags a confirmed booking whose customer did not arrive
func (s *service) MarkNoShow(ctx context.Context, id uuid.UUID) (*Booking, error) {
	booking, err := s.transition(ctx, id, StatusNoShow, func(b *Booking, change *StatusChange) error {
		if change.At.Before(b.StartTime) {
			return ErrTooEarly
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !s.policy.Counts(string(StatusNoShow)) {
		s.invalidate(ctx, booking)
	}
	s.publish(ctx, notifications.EventBookingNoShow, booking, nil)
	return booking, nil
}

// RefundStatus re-reads the refund from the provider. It never issues a refund.
func (s *service) RefundStatus(ctx context.Context, id uuid.UUID) (*payments.Refund, error) {
	booking, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.refreshRefund(ctx, booking)
}

func (s *service) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) GetByConfirmationCode(ctx context.Context, widget *widgetconfig.Widget, code string) (*Booking, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !IsConfirmationCode(code) {
		return nil, ErrBookingNotFound
	}
	return s.repo.GetByConfirmationCode(ctx, widget.ID, code)
}

func (s *service) ListBookings(ctx context.Context, query BookingListQuery) (*BookingListResponse, error) {
	if query.Page <= 0 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = 20
	}
	bookings, total, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	if bookings == nil {
		bookings = []Booking{}
	}
	return &BookingListResponse{
		Bookings:   bookings,
		TotalCount: total,
		Page:       query.Page,
		Limit:      query.Limit,
		TotalPages: CalculateTotalPages(total, query.Limit),
	}, nil
}

// ReconcileRefunds re-queries refunds still pending at the provider
func (s *service) ReconcileRefunds(ctx context.Context, limit int) (int, error) {
	pending, err := s.repo.ListPendingRefunds(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending refunds: %w", err)
	}

	settled := 0
	for i := range pending {
		refund, err := s.refreshRefund(ctx, &pending[i])
		if err != nil {
			logger.GetDefault().WithError(err).Warn("refund status check failed", "booking_id", pending[i].ID)
			continue
		}
		if refund.State.IsFinal() {
			settled++
		}
	}
	return settled, nil
}

// CompleteEnded completes confirmed bookings whose slot has ended
func (s *service) CompleteEnded(ctx context.Context, limit int) (int, error) {
	ended, err := s.repo.ListEndedConfirmed(ctx, s.now(), limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list ended bookings: %w", err)
	}

	completed := 0
	for _, b := range ended {
		if _, err := s.Complete(ctx, b.ID); err != nil {
			if !errors.Is(err, ErrInvalidTransition) {
				logger.GetDefault().WithError(err).Warn("failed to complete booking", "booking_id", b.ID)
			}
			continue
		}
		completed++
	}
	return completed, nil
}

// transition loads the booking, checks the lifecycle allows moving to next, lets mutate
// add fields to the change and applies it as a compare-and-set on the current status.
func (s *service) transition(ctx context.Context, id uuid.UUID, next Status, mutate func(*Booking, *StatusChange) error) (*Booking, error) {
	booking, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !booking.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, booking.Status, next)
	}

	change := StatusChange{From: booking.Status, To: next, At: s.now()}
	if mutate != nil {
		if err := mutate(booking, &change); err != nil {
			return nil, err
		}
	}

	if err := s.repo.ApplyStatusChange(ctx, id, change); err != nil {
		return nil, err
	}

	logger.GetDefault().LogBookingTransition(ctx, booking.ID.String(), string(change.From), string(next))
	booking.Status = next
	booking.UpdatedAt = change.At
	return booking, nil
}

func (s *service) refreshRefund(ctx context.Context, booking *Booking) (*payments.Refund, error) {
	if booking.RefundID == "" {
		return nil, ErrNoRefund
	}

	refund, err := s.payments.RefundStatus(ctx, booking.RefundID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRefundLookupFailed, err)
	}
	if refund.BookingID == "" {
		refund.BookingID = booking.ID.String()
	}

	changed := refund.State != booking.RefundState ||
		(refund.State == payments.RefundSucceeded && booking.PaymentStatus != PaymentRefunded)
	if changed {
		if err := s.recordRefund(ctx, booking, refund); err != nil {
			return nil, err
		}
		logger.GetDefault().LogRefundOutcome(ctx, booking.ID.String(), refund.ID, string(refund.State), nil)
	}
	return refund, nil
}

func (s *service) recordRefund(ctx context.Context, booking *Booking, refund *payments.Refund) error {
	update := RefundUpdate{RefundID: refund.ID, State: refund.State}
	if refund.State == payments.RefundSucceeded {
		update.PaymentStatus = PaymentRefunded
	}
	if err := s.repo.UpdateRefund(ctx, booking.ID, update); err != nil {
		return fmt.Errorf("failed to record refund: %w", err)
	}

	booking.RefundID = refund.ID
	booking.RefundState = refund.State
	if update.PaymentStatus != "" {
		booking.PaymentStatus = update.PaymentStatus
	}
	s.publish(ctx, notifications.EventBookingRefund, booking, refund)
	return nil
}

func (s *service) invalidate(ctx context.Context, booking *Booking) {
	if s.widgets == nil {
		return
	}
	widget, err := s.widgets.GetWidget(ctx, booking.WidgetID.String())
	if err != nil {
		logger.GetDefault().WithError(err).Warn("cannot invalidate availability: widget lookup failed", "booking_id", booking.ID)
		return
	}
	s.slots.Invalidate(ctx, widget, venueDate(widget, booking.StartTime))
}

func (s *service) publish(ctx context.Context, eventType notifications.EventType, b *Booking, refund *payments.Refund) {
	event := notifications.NewBookingEvent(eventType, b.ID)
	event.WidgetID = b.WidgetID
	event.ConfirmationCode = b.ConfirmationCode
	event.Status = string(b.Status)
	event.PaymentStatus = string(b.PaymentStatus)
	event.StartTime = b.StartTime
	event.Players = b.Players
	event.CustomerEmail = b.Customer.Email
	if refund != nil {
		event.RefundID = refund.ID
		event.RefundState = string(refund.State)
	}
	if err := s.events.Publish(ctx, event); err != nil {
		logger.GetDefault().WithError(err).Warn("failed to publish booking event", "booking_id", b.ID, "type", string(eventType))
	}
}

// slotStart resolves the requested date and start time to an instant in the venue's zone
func slotStart(cfg *widgetconfig.WidgetConfig, dateStr, startStr string) (widgetconfig.Date, time.Time, error) {
	date, err := widgetconfig.ParseDate(dateStr)
	if err != nil {
		return widgetconfig.Date{}, time.Time{}, fmt.Errorf("%w: %v", ErrInvalidSlotTime, err)
	}
	tod, err := widgetconfig.ParseTimeOfDay(startStr)
	if err != nil {
		return widgetconfig.Date{}, time.Time{}, fmt.Errorf("%w: %v", ErrInvalidSlotTime, err)
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return date, date.At(tod, loc), nil
}

// price resolves ticket selections against the configured ticket types.
// Zero quantities are dropped; repeated ticket types are merged.
func price(cfg *widgetconfig.WidgetConfig, tickets []TicketSelection) (TicketSelections, int, float64, error) {
	merged := make(map[string]int, len(tickets))
	order := make([]string, 0, len(tickets))
	for _, t := range tickets {
		if t.Quantity < 0 {
			return nil, 0, 0, fmt.Errorf("%w: negative quantity for %q", ErrPlayerCountOutOfRange, t.TicketTypeID)
		}
		if _, ok := cfg.TicketType(t.TicketTypeID); !ok {
			return nil, 0, 0, fmt.Errorf("%w: %q", ErrUnknownTicketType, t.TicketTypeID)
		}
		if _, seen := merged[t.TicketTypeID]; !seen {
			order = append(order, t.TicketTypeID)
		}
		merged[t.TicketTypeID] += t.Quantity
	}

	selections := make(TicketSelections, 0, len(order))
	players := 0
	total := 0.0
	for _, id := range order {
		qty := merged[id]
		if qty == 0 {
			continue
		}
		tt, _ := cfg.TicketType(id)
		selections = append(selections, TicketSelection{TicketTypeID: id, Quantity: qty, UnitPrice: tt.PricePerUnit})
		players += qty
		total += float64(qty) * tt.PricePerUnit
	}
	return selections, players, total, nil
}

// checkAnswers validates answers against the widget's additional questions
func (s *service) checkAnswers(cfg *widgetconfig.WidgetConfig, answers map[string]string) (Answers, error) {
	known := make(map[string]widgetconfig.FormField, len(cfg.AdditionalQuestions))
	for _, q := range cfg.AdditionalQuestions {
		known[q.ID] = q
	}
	for id := range answers {
		if _, ok := known[id]; !ok {
			return nil, fmt.Errorf("%w: unknown question %q", ErrInvalidAnswer, id)
		}
	}

	out := make(Answers, len(answers))
	for _, q := range cfg.AdditionalQuestions {
		answer := strings.TrimSpace(answers[q.ID])
		if answer == "" {
			if q.Required {
				return nil, fmt.Errorf("%w: %q is required", ErrInvalidAnswer, q.ID)
			}
			continue
		}
		if err := s.checkAnswer(q, answer); err != nil {
			return nil, fmt.Errorf("%w: %q %v", ErrInvalidAnswer, q.ID, err)
		}
		out[q.ID] = answer
	}
	return out, nil
}

func (s *service) checkAnswer(q widgetconfig.FormField, answer string) error {
	switch q.Type {
	case "select":
		for _, opt := range q.Options {
			if opt == answer {
				return nil
			}
		}
		return errors.New("is not one of the options")
	case "email":
		return s.validate.Var(answer, "email")
	case "number":
		return s.validate.Var(answer, "numeric")
	case "date":
		return s.validate.Var(answer, "datetime=2006-01-02")
	case "checkbox":
		return s.validate.Var(answer, "oneof=true false")
	default:
		return s.validate.Var(answer, "max=2000")
	}
}

func venueDate(widget *widgetconfig.Widget, t time.Time) widgetconfig.Date {
	loc := time.UTC
	if widget.Config.Timezone != "" {
		if l, err := time.LoadLocation(widget.Config.Timezone); err == nil {
			loc = l
		}
	}
	return widgetconfig.DateOf(t.In(loc))
}

func refundStateOf(r *payments.Refund) string {
	if r == nil {
		return ""
	}
	return string(r.State)
}
