package bookings

import (
	"context"
	"sort"
	"sync"
	"time"

	"bookingtms/internal/availability"
	"bookingtms/internal/notifications"
	"bookingtms/internal/payments"
	"bookingtms/internal/widgetconfig"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// fakeRepo keeps bookings in memory and enforces capacity under one lock,
// the way the advisory lock serializes writers in Postgres.
type fakeRepo struct {
	mu            sync.Mutex
	bookings      map[uuid.UUID]*Booking
	dupFailures   int // inserts rejected as duplicate codes before succeeding
	codes         []string
	refundUpdates []RefundUpdate
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{bookings: make(map[uuid.UUID]*Booking)}
}

func (r *fakeRepo) put(b Booking) *Booking {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	stored := b
	r.bookings[b.ID] = &stored
	return &b
}

func (r *fakeRepo) get(id uuid.UUID) Booking {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.bookings[id]
}

func (r *fakeRepo) CreateWithCapacityCheck(ctx context.Context, booking *Booking, check CapacityCheck) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.codes = append(r.codes, booking.ConfirmationCode)
	if r.dupFailures > 0 {
		r.dupFailures--
		return ErrDuplicateCode
	}

	counted := make(map[Status]bool, len(check.CountedStatuses))
	for _, s := range check.CountedStatuses {
		counted[Status(s)] = true
	}
	used := 0
	for _, b := range r.bookings {
		if b.WidgetID == booking.WidgetID && counted[b.Status] &&
			b.StartTime.Before(booking.EndTime) && booking.StartTime.Before(b.EndTime) {
			used += b.Players
		}
	}
	if used+booking.Players > check.Capacity {
		return ErrSlotFull
	}

	booking.ID = uuid.New()
	booking.CreatedAt = time.Now()
	stored := *booking
	r.bookings[booking.ID] = &stored
	return nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	copied := *b
	return &copied, nil
}

func (r *fakeRepo) GetByConfirmationCode(ctx context.Context, widgetID uuid.UUID, code string) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bookings {
		if b.WidgetID == widgetID && b.ConfirmationCode == code {
			copied := *b
			return &copied, nil
		}
	}
	return nil, ErrBookingNotFound
}

func (r *fakeRepo) ApplyStatusChange(ctx context.Context, id uuid.UUID, change StatusChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return ErrBookingNotFound
	}
	if b.Status != change.From {
		return ErrInvalidTransition
	}
	b.Status = change.To
	b.UpdatedAt = change.At
	if change.PaymentStatus != "" {
		b.PaymentStatus = change.PaymentStatus
	}
	if change.PaymentRef != "" {
		b.PaymentRef = change.PaymentRef
	}
	at := change.At
	switch change.To {
	case StatusCancelled:
		b.CancelledAt = &at
		b.CancelReason = change.CancelReason
	case StatusCompleted:
		b.CompletedAt = &at
	}
	return nil
}

func (r *fakeRepo) UpdateRefund(ctx context.Context, id uuid.UUID, update RefundUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return ErrBookingNotFound
	}
	r.refundUpdates = append(r.refundUpdates, update)
	b.RefundState = update.State
	if update.RefundID != "" {
		b.RefundID = update.RefundID
	}
	if update.PaymentStatus != "" {
		b.PaymentStatus = update.PaymentStatus
	}
	return nil
}

func (r *fakeRepo) List(ctx context.Context, query BookingListQuery) ([]Booking, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Booking
	for _, b := range r.bookings {
		if query.Status != "" && string(b.Status) != query.Status {
			continue
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	total := int64(len(out))
	offset := (query.Page - 1) * query.Limit
	if offset >= len(out) {
		return nil, total, nil
	}
	end := offset + query.Limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], total, nil
}

func (r *fakeRepo) ListPendingRefunds(ctx context.Context, limit int) ([]Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Booking
	for _, b := range r.bookings {
		if b.IsCancelled() && b.HasPendingRefund() && len(out) < limit {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r *fakeRepo) ListEndedConfirmed(ctx context.Context, before time.Time, limit int) ([]Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Booking
	for _, b := range r.bookings {
		if b.Status == StatusConfirmed && !b.EndTime.After(before) && len(out) < limit {
			out = append(out, *b)
		}
	}
	return out, nil
}

// fakeSlots computes slots from the bookings currently held by the fake repo
type fakeSlots struct {
	repo        *fakeRepo
	engine      *availability.Engine
	err         error
	mu          sync.Mutex
	invalidated []string
}

func (s *fakeSlots) FreshSlots(ctx context.Context, widget *widgetconfig.Widget, cfg *widgetconfig.WidgetConfig, date widgetconfig.Date) ([]availability.Slot, error) {
	if s.err != nil {
		return nil, s.err
	}
	var snap availability.Snapshot
	s.repo.mu.Lock()
	for _, b := range s.repo.bookings {
		if b.WidgetID == widget.ID {
			snap.Bookings = append(snap.Bookings, availability.BookedInterval{
				Start: b.StartTime, End: b.EndTime, Players: b.Players, Status: string(b.Status),
			})
		}
	}
	s.repo.mu.Unlock()
	return s.engine.BuildSlots(cfg, date, snap), nil
}

func (s *fakeSlots) Invalidate(ctx context.Context, widget *widgetconfig.Widget, date widgetconfig.Date) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated = append(s.invalidated, date.String())
}

type fakeWidgets struct {
	widget *widgetconfig.Widget
}

func (f *fakeWidgets) GetWidget(ctx context.Context, id string) (*widgetconfig.Widget, error) {
	if f.widget == nil || f.widget.ID.String() != id {
		return nil, widgetconfig.ErrWidgetNotFound
	}
	return f.widget, nil
}

type fakeGateway struct {
	mu            sync.Mutex
	refund        *payments.Refund
	err           error
	status        *payments.Refund
	statusErr     error
	requests      []payments.RefundRequest
	statusQueries []string
}

func (g *fakeGateway) RequestRefund(ctx context.Context, req payments.RefundRequest) (*payments.Refund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.refund == nil {
		return nil, g.err
	}
	r := *g.refund
	r.BookingID = req.BookingID
	return &r, g.err
}

func (g *fakeGateway) RefundStatus(ctx context.Context, refundID string) (*payments.Refund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusQueries = append(g.statusQueries, refundID)
	if g.statusErr != nil {
		return nil, g.statusErr
	}
	r := *g.status
	r.ID = refundID
	return &r, nil
}

type fakeProducer struct {
	mu     sync.Mutex
	events []*notifications.BookingEvent
	err    error
}

func (p *fakeProducer) Publish(ctx context.Context, event *notifications.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *fakeProducer) Close() error { return nil }

func (p *fakeProducer) types() []notifications.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]notifications.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeScheduler struct {
	mu        sync.Mutex
	scheduled []uuid.UUID
}

func (s *fakeScheduler) ScheduleCompletion(ctx context.Context, booking *Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled = append(s.scheduled, booking.ID)
	return nil
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (e *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	e.tasks = append(e.tasks, task)
	e.opts = append(e.opts, opts)
	if e.err != nil {
		return nil, e.err
	}
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

// fakeService is the Service double used by controller and job tests
type fakeService struct {
	Service
	completeErr error
	completed   []uuid.UUID
	submitted   *Booking
	submitErr   error
	cancel      *CancelResult
	cancelErr   error
}

func (f *fakeService) Complete(ctx context.Context, id uuid.UUID) (*Booking, error) {
	f.completed = append(f.completed, id)
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	return &Booking{ID: id, Status: StatusCompleted}, nil
}

func (f *fakeService) Submit(ctx context.Context, widget *widgetconfig.Widget, req SubmitRequest) (*Booking, error) {
	return f.submitted, f.submitErr
}

func (f *fakeService) Cancel(ctx context.Context, id uuid.UUID, reason string, issueRefund bool) (*CancelResult, error) {
	return f.cancel, f.cancelErr
}
