package bookings

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"bookingtms/internal/availability"
	"bookingtms/internal/notifications"
	"bookingtms/internal/payments"
	"bookingtms/internal/widgetconfig"

	"github.com/google/uuid"
)

var (
	monday   = widgetconfig.Date{Year: 2030, Month: time.June, Day: 3}
	beforeIt = time.Date(2030, time.June, 1, 9, 0, 0, 0, time.UTC)
)

func intPtr(v int) *int { return &v }

func slotAt(hour int) time.Time {
	return time.Date(2030, time.June, 3, hour, 0, 0, 0, time.UTC)
}

func testWidget() *widgetconfig.Widget {
	return &widgetconfig.Widget{
		ID:         uuid.MustParse("7b0c9a52-3f0e-4c8e-9a51-2d4f5d1c0e11"),
		WidgetType: "farebook",
		EmbedKey:   "emb_a1b2c3d4e5f6",
		Active:     true,
		Config: widgetconfig.RawConfig{
			OperatingDays: []string{"monday"},
			StartTime:     "10:00",
			EndTime:       "12:00",
			MaxPlayers:    intPtr(6),
			TicketTypes: []widgetconfig.TicketType{
				{ID: "adult", Name: "Adult", PricePerUnit: 30},
				{ID: "child", Name: "Child", PricePerUnit: 20},
			},
			AdditionalQuestions: []widgetconfig.FormField{
				{ID: "experience", Label: "Played before?", Type: "select", Options: []string{"yes", "no"}, Required: true},
				{ID: "notes", Label: "Notes", Type: "textarea"},
			},
		},
	}
}

type testEnv struct {
	svc       *service
	repo      *fakeRepo
	slots     *fakeSlots
	gateway   *fakeGateway
	events    *fakeProducer
	scheduler *fakeScheduler
	widget    *widgetconfig.Widget
}

func newTestEnv(policy availability.CapacityPolicy) *testEnv {
	repo := newFakeRepo()
	env := &testEnv{
		repo:      repo,
		slots:     &fakeSlots{repo: repo, engine: availability.NewEngine(policy)},
		gateway:   &fakeGateway{},
		events:    &fakeProducer{},
		scheduler: &fakeScheduler{},
		widget:    testWidget(),
	}
	env.svc = NewService(Dependencies{
		Repo:      repo,
		Slots:     env.slots,
		Widgets:   &fakeWidgets{widget: env.widget},
		Payments:  env.gateway,
		Events:    env.events,
		Scheduler: env.scheduler,
		Policy:    policy,
	}).(*service)
	env.svc.now = func() time.Time { return beforeIt }
	return env
}

func (e *testEnv) seed(status Status, players, hour int) *Booking {
	return e.repo.put(Booking{
		WidgetID:         e.widget.ID,
		StartTime:        slotAt(hour),
		EndTime:          slotAt(hour + 1),
		Players:          players,
		Status:           status,
		PaymentStatus:    PaymentPending,
		ConfirmationCode: "BK-ABCDEFGHJK",
	})
}

func validRequest() SubmitRequest {
	return SubmitRequest{
		Date:      "2030-06-03",
		StartTime: "10:00",
		Tickets: []TicketSelection{
			{TicketTypeID: "adult", Quantity: 2},
			{TicketTypeID: "child", Quantity: 1},
		},
		Customer: CustomerInfo{Name: "Ada Lovelace", Email: "ada@example.com"},
		Answers:  map[string]string{"experience": "no"},
	}
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("createsPendingBooking", func(t *testing.T) {
		env := newTestEnv(availability.CapacityPolicy{})
		booking, err := env.svc.Submit(ctx, env.widget, validRequest())
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		if booking.Status != StatusPending || booking.PaymentStatus != PaymentPending {
			t.Errorf("status = %s/%s", booking.Status, booking.PaymentStatus)
		}
		if booking.Players != 3 || booking.TotalPrice != 80 {
			t.Errorf("players = %d total = %v, want 3 and 80", booking.Players, booking.TotalPrice)
		}
		if !booking.StartTime.Equal(slotAt(10)) || !booking.EndTime.Equal(slotAt(11)) {
			t.Errorf("slot = %s - %s", booking.StartTime, booking.EndTime)
		}
		if !IsConfirmationCode(booking.ConfirmationCode) {
			t.Errorf("confirmation code %q has the wrong shape", booking.ConfirmationCode)
		}
		if booking.TicketSelections[0].UnitPrice != 30 {
			t.Errorf("unit price not captured: %+v", booking.TicketSelections)
		}
		if !reflect.DeepEqual(env.slots.invalidated, []string{"2030-06-03"}) {
			t.Errorf("invalidated = %v", env.slots.invalidated)
		}
		if got := env.events.types(); !reflect.DeepEqual(got, []notifications.EventType{notifications.EventBookingCreated}) {
			t.Errorf("events = %v", got)
		}
		if len(env.scheduler.scheduled) != 1 || env.scheduler.scheduled[0] != booking.ID {
			t.Errorf("completion not scheduled: %v", env.scheduler.scheduled)
		}
	})

	t.Run("mergesRepeatedAndDropsZeroTickets", func(t *testing.T) {
		env := newTestEnv(availability.CapacityPolicy{})
		req := validRequest()
		req.Tickets = []TicketSelection{
			{TicketTypeID: "adult", Quantity: 1},
			{TicketTypeID: "child", Quantity: 0},
			{TicketTypeID: "adult", Quantity: 2},
		}
		booking, err := env.svc.Submit(ctx, env.widget, req)
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		want := TicketSelections{{TicketTypeID: "adult", Quantity: 3, UnitPrice: 30}}
		if !reflect.DeepEqual(booking.TicketSelections, want) {
			t.Errorf("selections = %+v", booking.TicketSelections)
		}
	})

	tests := []struct {
		name   string
		mutate func(*SubmitRequest)
		seed   func(*testEnv)
		want   error
	}{
		{
			name:   "unknownTicketType",
			mutate: func(r *SubmitRequest) { r.Tickets = []TicketSelection{{TicketTypeID: "vip", Quantity: 1}} },
			want:   ErrUnknownTicketType,
		},
		{
			name:   "tooManyPlayers",
			mutate: func(r *SubmitRequest) { r.Tickets = []TicketSelection{{TicketTypeID: "adult", Quantity: 7}} },
			want:   ErrPlayerCountOutOfRange,
		},
		{
			name:   "noPlayers",
			mutate: func(r *SubmitRequest) { r.Tickets = []TicketSelection{{TicketTypeID: "adult", Quantity: 0}} },
			want:   ErrPlayerCountOutOfRange,
		},
		{
			name:   "badDate",
			mutate: func(r *SubmitRequest) { r.Date = "03/06/2030" },
			want:   ErrInvalidSlotTime,
		},
		{
			name:   "badTime",
			mutate: func(r *SubmitRequest) { r.StartTime = "25:00" },
			want:   ErrInvalidSlotTime,
		},
		{
			name:   "offGridStart",
			mutate: func(r *SubmitRequest) { r.StartTime = "10:30" },
			want:   ErrSlotUnavailable,
		},
		{
			name:   "closedDay",
			mutate: func(r *SubmitRequest) { r.Date = "2030-06-04" },
			want:   ErrSlotUnavailable,
		},
		{
			name: "slotFull",
			seed: func(e *testEnv) { e.seed(StatusConfirmed, 4, 10) },
			want: ErrSlotFull,
		},
		{
			name:   "requiredAnswerMissing",
			mutate: func(r *SubmitRequest) { r.Answers = nil },
			want:   ErrInvalidAnswer,
		},
		{
			name:   "answerNotAnOption",
			mutate: func(r *SubmitRequest) { r.Answers["experience"] = "maybe" },
			want:   ErrInvalidAnswer,
		},
		{
			name:   "unknownQuestion",
			mutate: func(r *SubmitRequest) { r.Answers["shoe_size"] = "44" },
			want:   ErrInvalidAnswer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(availability.CapacityPolicy{})
			if tt.seed != nil {
				tt.seed(env)
			}
			req := validRequest()
			if tt.mutate != nil {
				tt.mutate(&req)
			}
			_, err := env.svc.Submit(ctx, env.widget, req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if len(env.events.types()) != 0 {
				t.Errorf("rejected booking published events")
			}
		})
	}

	t.Run("cancelledBookingsFreeCapacity", func(t *testing.T) {
		env := newTestEnv(availability.CapacityPolicy{})
		env.seed(StatusCancelled, 6, 10)
		if _, err := env.svc.Submit(ctx, env.widget, validRequest()); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	})

	t.Run("noShowsCountWhenConfigured", func(t *testing.T) {
		env := newTestEnv(availability.CapacityPolicy{CountNoShows: true})
		env.seed(StatusNoShow, 4, 10)
		_, err := env.svc.Submit(ctx, env.widget, validRequest())
		if !errors.Is(err, ErrSlotFull) {
			t.Fatalf("err = %v, want ErrSlotFull", err)
		}
	})

	t.Run("availabilityUnknown", func(t *testing.T) {
		env := newTestEnv(availability.CapacityPolicy{})
		env.slots.err = availability.ErrAvailabilityUnknown
		_, err := env.svc.Submit(ctx, env.widget, validRequest())
		if !errors.Is(err, availability.ErrAvailabilityUnknown) {
			t.Fatalf("err = %v, want ErrAvailabilityUnknown", err)
		}
	})

	t.Run("invalidConfig", func(t *testing.T) {
		env := newTestEnv(availability.CapacityPolicy{})
		env.widget.Config.StartTime = "13:00"
		_, err := env.svc.Submit(ctx, env.widget, validRequest())
		if !errors.Is(err, widgetconfig.ErrInvalidConfig) {
			t.Fatalf("err = %v, want ErrInvalidConfig", err)
		}
	})

	t.Run("duplicateCodeRetried", func(t *testing.T) {
		env := newTestEnv(availability.CapacityPolicy{})
		env.repo.dupFailures = 2
		if _, err := env.svc.Submit(ctx, env.widget, validRequest()); err != nil {
			t.Fatalf("Submit: %v", err)
		}
		if len(env.repo.codes) != 3 {
			t.Errorf("attempts = %d, want 3", len(env.repo.codes))
		}
	})

	t.Run("duplicateCodeGivesUp", func(t *testing.T) {
		env := newTestEnv(availability.CapacityPolicy{})
		env.repo.dupFailures = maxCodeAttempts
		_, err := env.svc.Submit(ctx, env.widget, validRequest())
		if !errors.Is(err, ErrDuplicateCode) {
			t.Fatalf("err = %v, want ErrDuplicateCode", err)
		}
	})
}

func TestSubmitLastSeatRace(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(availability.CapacityPolicy{})
	env.seed(StatusConfirmed, 3, 10)

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		full    int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.Submit(ctx, env.widget, validRequest())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errors.Is(err, ErrSlotFull):
				full++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if success != 1 || full != workers-1 {
		t.Fatalf("success = %d full = %d, want exactly one booking", success, full)
	}
}

func TestTransitions(t *testing.T) {
	ctx := context.Background()

	t.Run("confirmRecordsPayment", func(t *testing.T) {
		env := newTestEnv(availability.CapacityPolicy{})
		b := env.seed(StatusPending, 2, 10)
		got, err := env.svc.Confirm(ctx, b.ID, ConfirmRequest{PaymentRef: "pi_123"})
		if err != nil {
			t.Fatalf("Confirm: %v", err)
		}
		stored := env.repo.get(b.ID)
		if got.Status != StatusConfirmed || stored.Status != StatusConfirmed {
			t.Errorf("status = %s / %s", got.Status, stored.Status)
		}
		if stored.PaymentStatus != PaymentPaid || stored.PaymentRef != "pi_123" {
			t.Errorf("payment = %s %q", stored.PaymentStatus, stored.PaymentRef)
		}
	})

	t.Run("confirmPartialPayment", func(t *testing.T) {
		env := newTestEnv(availability.CapacityPolicy{})
		b := env.seed(StatusPending, 2, 10)
		if _, err := env.svc.Confirm(ctx, b.ID, ConfirmRequest{PaymentRef: "pi_1", Partial: true}); err != nil {
			t.Fatalf("Confirm: %v", err)
		}
		if got := env.repo.get(b.ID).PaymentStatus; got != PaymentPartial {
			t.Errorf("payment status = %s, want partial", got)
		}
	})

	t.Run("confirmTwiceRejected", func(t *testing.T) {
		env := newTestEnv(availability.CapacityPolicy{})
		b := env.seed(StatusConfirmed, 2, 10)
		_, err := env.svc.Confirm(ctx, b.ID, ConfirmRequest{PaymentRef: "pi_1"})
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("err = %v, want ErrInvalidTransition", err)
		}
	})

	t.Run("completeBeforeEndIsTooEarly", func(t *testing.T) {
		env := newTestEnv(availability.CapacityPolicy{})
		b := env.seed(StatusConfirmed, 2, 10)
		env.svc.now = func() time.Time { return slotAt(10).Add(30 * time.Minute) }
		_, err := env.svc.Complete(ctx, b.ID)
		if !errors.Is(err, ErrTooEarly) {
			t.Fatalf("err = %v, want ErrTooEarly", err)
		}
		if env.repo.get(b.ID).Status != StatusConfirmed {
			t.Errorf("booking changed despite rejection")
		}
	})

	t.Run("completeAfterEnd", func(t *testing.T) {
		env := newTestEnv(availability.CapacityPolicy{})
		b := env.seed(StatusConfirmed, 2, 10)
		env.svc.now = func() time.Time { return slotAt(11) }
		if _, err := env.svc.Complete(ctx, b.ID); err != nil {
			t.Fatalf("Complete: %v", err)
		}
		stored := env.repo.get(b.ID)
		if stored.Status != StatusCompleted || stored.CompletedAt == nil {
			t.Errorf("stored = %s completed_at=%v", stored.Status, stored.CompletedAt)
		}
	})

	t.Run("pendingCannotComplete", func(t *testing.T) {
		env := newTestEnv(availability.CapacityPolicy{})
		b := env.seed(StatusPending, 2, 10)
		env.svc.now = func() time.Time { return slotAt(12) }
		_, err := env.svc.Complete(ctx, b.ID)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("err = %v, want ErrInvalidTransition", err)
		}
	})

	t.Run("noShowBeforeStartIsTooEarly", func(t *testing.T) {
		env := newTestEnv(availability.CapacityPolicy{})
		b := env.seed(StatusConfirmed, 2, 10)
		_, err := env.svc.MarkNoShow(ctx, b.ID)
		if !errors.Is(err, ErrTooEarly) {
			t.Fatalf("err = %v, want ErrTooEarly", err)
		}
	})

	t.Run("noShowReleasesCapacityByDefault", func(t *testing.T) {
		env := newTestEnv(availability.CapacityPolicy{})
		b := env.seed(StatusConfirmed, 2, 10)
		env.svc.now = func() time.Time { return slotAt(10).Add(15 * time.Minute) }
		if _, err := env.svc.MarkNoShow(ctx, b.ID); err != nil {
			t.Fatalf("MarkNoShow: %v", err)
		}
		if len(env.slots.invalidated) != 1 {
			t.Errorf("invalidated = %v, want one", env.slots.invalidated)
		}
	})

	t.Run("noShowKeepsCapacityWhenCounted", func(t *testing.T) {
		env := newTestEnv(availability.CapacityPolicy{CountNoShows: true})
		b := env.seed(StatusConfirmed, 2, 10)
		env.svc.now = func() time.Time { return slotAt(10).Add(15 * time.Minute) }
		if _, err := env.svc.MarkNoShow(ctx, b.ID); err != nil {
			t.Fatalf("MarkNoShow: %v", err)
		}
		if len(env.slots.invalidated) != 0 {
			t.Errorf("invalidated = %v, want none", env.slots.invalidated)
		}
	})

	t.Run("terminalStatesRejectCancel", func(t *testing.T) {
		for _, status := range []Status{StatusCompleted, StatusCancelled, StatusNoShow} {
			env := newTestEnv(availability.CapacityPolicy{})
			b := env.seed(status, 2, 10)
			_, err := env.svc.Cancel(ctx, b.ID, "changed plans", false)
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("%s: err = %v, want ErrInvalidTransition", status, err)
			}
		}
	})

	t.Run("unknownBooking", func(t *testing.T) {
		env := newTestEnv(availability.CapacityPolicy{})
		_, err := env.svc.Confirm(ctx, uuid.New(), ConfirmRequest{PaymentRef: "pi_1"})
		if !errors.Is(err, ErrBookingNotFound) {
			t.Fatalf("err = %v, want ErrBookingNotFound", err)
		}
	})
}

func TestCancel(t *testing.T) {
	ctx := context.Background()

	paid := func(env *testEnv) *Booking {
		b := env.seed(StatusConfirmed, 2, 10)
		env.repo.mu.Lock()
		env.repo.bookings[b.ID].PaymentStatus = PaymentPaid
		env.repo.bookings[b.ID].PaymentRef = "pi_123"
		env.repo.mu.Unlock()
		return b
	}

	t.Run("withoutRefund", func(t *testing.T) {
		env := newTestEnv(availability.CapacityPolicy{})
		b := paid(env)
		result, err := env.svc.Cancel(ctx, b.ID, "changed plans", false)
		if err != nil {
			t.Fatalf("Cancel: %v", err)
		}
		if result.Refund != nil || result.RefundError != nil {
			t.Errorf("unexpected refund: %+v", result)
		}
		stored := env.repo.get(b.ID)
		if stored.Status != StatusCancelled || stored.CancelReason != "changed plans" || stored.CancelledAt == nil {
			t.Errorf("stored = %+v", stored)
		}
		if len(env.gateway.requests) != 0 {
			t.Errorf("gateway called without refund request")
		}
		if len(env.slots.invalidated) != 1 {
			t.Errorf("availability not invalidated")
		}
	})

	t.Run("refundSucceeded", func(t *testing.T) {
		env := newTestEnv(availability.CapacityPolicy{})
		env.gateway.refund = &payments.Refund{ID: "re_1", State: payments.RefundSucceeded}
		b := paid(env)
		result, err := env.svc.Cancel(ctx, b.ID, "changed plans", true)
		if err != nil {
			t.Fatalf("Cancel: %v", err)
		}
		if result.RefundError != nil {
			t.Fatalf("RefundError = %v", result.RefundError)
		}
		stored := env.repo.get(b.ID)
		if stored.PaymentStatus != PaymentRefunded || stored.RefundID != "re_1" {
			t.Errorf("stored payment = %s refund = %q", stored.PaymentStatus, stored.RefundID)
		}
		req := env.gateway.requests[0]
		if req.PaymentRef != "pi_123" || req.BookingID != b.ID.String() || req.Amount != 0 {
			t.Errorf("refund request = %+v", req)
		}
		want := []notifications.EventType{notifications.EventBookingCancelled, notifications.EventBookingRefund}
		if got := env.events.types(); !reflect.DeepEqual(got, want) {
			t.Errorf("events = %v", got)
		}
	})

	t.Run("refundPendingKeepsPaid", func(t *testing.T) {
		env := newTestEnv(availability.CapacityPolicy{})
		env.gateway.refund = &payments.Refund{ID: "re_2", State: payments.RefundPending}
		b := paid(env)
		result, err := env.svc.Cancel(ctx, b.ID, "changed plans", true)
		if err != nil {
			t.Fatalf("Cancel: %v", err)
		}
		stored := env.repo.get(b.ID)
		if stored.PaymentStatus != PaymentPaid || stored.RefundState != payments.RefundPending {
			t.Errorf("stored = %s / %s", stored.PaymentStatus, stored.RefundState)
		}
		if result.Refund == nil || result.Refund.State != payments.RefundPending {
			t.Errorf("refund = %+v", result.Refund)
		}
	})

	t.Run("refundFailureKeepsCancellation", func(t *testing.T) {
		env := newTestEnv(availability.CapacityPolicy{})
		env.gateway.err = errors.New("card_declined")
		b := paid(env)
		result, err := env.svc.Cancel(ctx, b.ID, "changed plans", true)
		if err != nil {
			t.Fatalf("Cancel: %v", err)
		}
		if !errors.Is(result.RefundError, payments.ErrRefundFailed) {
			t.Errorf("RefundError = %v, want ErrRefundFailed", result.RefundError)
		}
		stored := env.repo.get(b.ID)
		if stored.Status != StatusCancelled || stored.PaymentStatus != PaymentPaid {
			t.Errorf("stored = %s / %s", stored.Status, stored.PaymentStatus)
		}
	})

	t.Run("providerReportsFailedRefund", func(t *testing.T) {
		env := newTestEnv(availability.CapacityPolicy{})
		env.gateway.refund = &payments.Refund{ID: "re_3", State: payments.RefundFailed}
		env.gateway.err = payments.ErrRefundFailed
		b := paid(env)
		result, err := env.svc.Cancel(ctx, b.ID, "changed plans", true)
		if err != nil {
			t.Fatalf("Cancel: %v", err)
		}
		if !errors.Is(result.RefundError, payments.ErrRefundFailed) {
			t.Errorf("RefundError = %v", result.RefundError)
		}
		if got := env.repo.get(b.ID).RefundState; got != payments.RefundFailed {
			t.Errorf("refund state = %s, want failed", got)
		}
	})

	t.Run("nothingCaptured", func(t *testing.T) {
		env := newTestEnv(availability.CapacityPolicy{})
		b := env.seed(StatusPending, 2, 10)
		result, err := env.svc.Cancel(ctx, b.ID, "changed plans", true)
		if err != nil {
			t.Fatalf("Cancel: %v", err)
		}
		if !errors.Is(result.RefundError, ErrNoCapturedPayment) {
			t.Errorf("RefundError = %v, want ErrNoCapturedPayment", result.RefundError)
		}
		if len(env.gateway.requests) != 0 {
			t.Errorf("gateway called for uncaptured payment")
		}
	})
}

func TestRefundStatus(t *testing.T) {
	ctx := context.Background()

	pendingRefund := func(env *testEnv) *Booking {
		b := env.seed(StatusCancelled, 2, 10)
		env.repo.mu.Lock()
		stored := env.repo.bookings[b.ID]
		stored.PaymentStatus = PaymentPaid
		stored.RefundID = "re_9"
		stored.RefundState = payments.RefundPending
		env.repo.mu.Unlock()
		return b
	}

	t.Run("settlesWithoutReissuing", func(t *testing.T) {
		env := newTestEnv(availability.CapacityPolicy{})
		env.gateway.status = &payments.Refund{State: payments.RefundSucceeded}
		b := pendingRefund(env)

		refund, err := env.svc.RefundStatus(ctx, b.ID)
		if err != nil {
			t.Fatalf("RefundStatus: %v", err)
		}
		if refund.State != payments.RefundSucceeded {
			t.Errorf("state = %s", refund.State)
		}
		if len(env.gateway.requests) != 0 {
			t.Errorf("RefundStatus issued a refund")
		}
		if got := env.repo.get(b.ID).PaymentStatus; got != PaymentRefunded {
			t.Errorf("payment status = %s, want refunded", got)
		}
	})

	t.Run("unchangedIsNotRecorded", func(t *testing.T) {
		env := newTestEnv(availability.CapacityPolicy{})
		env.gateway.status = &payments.Refund{State: payments.RefundPending}
		b := pendingRefund(env)
		if _, err := env.svc.RefundStatus(ctx, b.ID); err != nil {
			t.Fatalf("RefundStatus: %v", err)
		}
		if len(env.repo.refundUpdates) != 0 {
			t.Errorf("updates = %+v, want none", env.repo.refundUpdates)
		}
	})

	t.Run("noRefund", func(t *testing.T) {
		env := newTestEnv(availability.CapacityPolicy{})
		b := env.seed(StatusCancelled, 2, 10)
		_, err := env.svc.RefundStatus(ctx, b.ID)
		if !errors.Is(err, ErrNoRefund) {
			t.Fatalf("err = %v, want ErrNoRefund", err)
		}
	})

	t.Run("providerFailure", func(t *testing.T) {
		env := newTestEnv(availability.CapacityPolicy{})
		env.gateway.statusErr = errors.New("stripe unreachable")
		b := pendingRefund(env)

		_, err := env.svc.RefundStatus(ctx, b.ID)
		if !errors.Is(err, ErrRefundLookupFailed) {
			t.Fatalf("err = %v, want ErrRefundLookupFailed", err)
		}
		if got := env.repo.get(b.ID).RefundState; got != payments.RefundPending {
			t.Errorf("refund state = %s, want pending", got)
		}
	})

	t.Run("reconcileSettlesPending", func(t *testing.T) {
		env := newTestEnv(availability.CapacityPolicy{})
		env.gateway.status = &payments.Refund{State: payments.RefundSucceeded}
		pendingRefund(env)
		pendingRefund(env)
		env.seed(StatusCancelled, 2, 11)

		settled, err := env.svc.ReconcileRefunds(ctx, 10)
		if err != nil {
			t.Fatalf("ReconcileRefunds: %v", err)
		}
		if settled != 2 || len(env.gateway.statusQueries) != 2 {
			t.Errorf("settled = %d queries = %d, want 2 and 2", settled, len(env.gateway.statusQueries))
		}
	})
}

func TestCompleteEnded(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(availability.CapacityPolicy{})
	ended := env.seed(StatusConfirmed, 2, 10)
	running := env.seed(StatusConfirmed, 2, 11)
	pending := env.seed(StatusPending, 2, 10)
	env.svc.now = func() time.Time { return slotAt(11).Add(30 * time.Minute) }

	completed, err := env.svc.CompleteEnded(ctx, 10)
	if err != nil {
		t.Fatalf("CompleteEnded: %v", err)
	}
	if completed != 1 {
		t.Fatalf("completed = %d, want 1", completed)
	}
	if env.repo.get(ended.ID).Status != StatusCompleted {
		t.Errorf("ended booking not completed")
	}
	if env.repo.get(running.ID).Status != StatusConfirmed {
		t.Errorf("running booking completed early")
	}
	if env.repo.get(pending.ID).Status != StatusPending {
		t.Errorf("pending booking auto-completed")
	}
}

func TestGetByConfirmationCode(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(availability.CapacityPolicy{})
	env.seed(StatusConfirmed, 2, 10)

	tests := []struct {
		name string
		code string
		want error
	}{
		{"exact", "BK-ABCDEFGHJK", nil},
		{"lowercaseAndSpaces", " bk-abcdefghjk ", nil},
		{"malformed", "BK-123", ErrBookingNotFound},
		{"unknown", "BK-ZZZZZZZZZZ", ErrBookingNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.GetByConfirmationCode(ctx, env.widget, tt.code)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}

	t.Run("otherWidget", func(t *testing.T) {
		other := testWidget()
		other.ID = uuid.New()
		_, err := env.svc.GetByConfirmationCode(ctx, other, "BK-ABCDEFGHJK")
		if !errors.Is(err, ErrBookingNotFound) {
			t.Fatalf("err = %v, want ErrBookingNotFound", err)
		}
	})
}

func TestListBookings(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(availability.CapacityPolicy{})
	for i := 0; i < 3; i++ {
		env.seed(StatusPending, 1, 10)
	}

	list, err := env.svc.ListBookings(ctx, BookingListQuery{Limit: 2})
	if err != nil {
		t.Fatalf("ListBookings: %v", err)
	}
	if list.Page != 1 || list.TotalCount != 3 || list.TotalPages != 2 || len(list.Bookings) != 2 {
		t.Errorf("list = page %d total %d pages %d len %d", list.Page, list.TotalCount, list.TotalPages, len(list.Bookings))
	}
}
