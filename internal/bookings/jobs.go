package bookings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bookingtms/pkg/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// TypeCompleteBooking is the asynq task that completes a booking once its slot ends
const TypeCompleteBooking = "booking:complete"

// CompletionPayload is the body of a booking:complete task
type CompletionPayload struct {
	BookingID string `json:"booking_id"`
}

// NewCompletionTask builds the task completing bookingID at endsAt
func NewCompletionTask(bookingID uuid.UUID, endsAt time.Time) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(CompletionPayload{BookingID: bookingID.String()})
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeCompleteBooking, b)
	opts := []asynq.Option{
		asynq.ProcessAt(endsAt),
		asynq.TaskID("complete-" + bookingID.String()),
		asynq.MaxRetry(5),
	}
	return task, opts, nil
}

// Scheduler arranges the automatic completion of a booking
type Scheduler interface {
	ScheduleCompletion(ctx context.Context, booking *Booking) error
}

// TaskEnqueuer is the part of *asynq.Client used for scheduling
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqScheduler schedules completion tasks on an asynq queue
type AsynqScheduler struct {
	client TaskEnqueuer
}

func NewAsynqScheduler(client TaskEnqueuer) *AsynqScheduler {
	return &AsynqScheduler{client: client}
}

func (s *AsynqScheduler) ScheduleCompletion(ctx context.Context, booking *Booking) error {
	task, opts, err := NewCompletionTask(booking.ID, booking.EndTime)
	if err != nil {
		return fmt.Errorf("failed to build completion task: %w", err)
	}
	if _, err := s.client.EnqueueContext(ctx, task, opts...); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("failed to enqueue completion task: %w", err)
	}
	return nil
}

// NoopScheduler leaves completion to the periodic sweep
type NoopScheduler struct{}

func (NoopScheduler) ScheduleCompletion(ctx context.Context, booking *Booking) error { return nil }

// HandleCompletionTask completes the booking named in the task. Bookings that were
// cancelled or already completed are skipped without error.
func HandleCompletionTask(service Service) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p CompletionPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			return fmt.Errorf("invalid completion payload: %v: %w", err, asynq.SkipRetry)
		}
		id, err := uuid.Parse(p.BookingID)
		if err != nil {
			return fmt.Errorf("invalid booking id %q: %w", p.BookingID, asynq.SkipRetry)
		}

		_, err = service.Complete(ctx, id)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrBookingNotFound):
			logger.GetDefault().Debug("completion task skipped", "booking_id", p.BookingID, "reason", err.Error())
			return nil
		default:
			return err
		}
	}
}

// RegisterTaskHandlers registers the booking task handlers on mux
func RegisterTaskHandlers(mux *asynq.ServeMux, service Service) {
	mux.HandleFunc(TypeCompleteBooking, HandleCompletionTask(service))
}

// JobProcessor runs the periodic booking jobs
type JobProcessor struct {
	service Service
	config  *JobConfig
	done    chan struct{}
}

// JobConfig contains configuration for background jobs
type JobConfig struct {
	RefundReconcileInterval time.Duration
	CompletionSweepInterval time.Duration
	BatchSize               int
}

// DefaultJobConfig returns default job configuration
func DefaultJobConfig() *JobConfig {
	return &JobConfig{
		RefundReconcileInterval: 5 * time.Minute,
		CompletionSweepInterval: 15 * time.Minute,
		BatchSize:               100,
	}
}

// NewJobProcessor creates a new job processor
func NewJobProcessor(service Service, config *JobConfig) *JobProcessor {
	if config == nil {
		config = DefaultJobConfig()
	}

	return &JobProcessor{
		service: service,
		config:  config,
		done:    make(chan struct{}),
	}
}

// Start starts all background jobs
func (jp *JobProcessor) Start(ctx context.Context) {
	go jp.run(ctx, "refund reconciliation", jp.config.RefundReconcileInterval, jp.reconcileRefunds)
	go jp.run(ctx, "completion sweep", jp.config.CompletionSweepInterval, jp.completeEnded)
	logger.GetDefault().Info("Booking background jobs started")
}

// Stop stops all background jobs
func (jp *JobProcessor) Stop() {
	close(jp.done)
	logger.GetDefault().Info("Booking background jobs stopped")
}

func (jp *JobProcessor) run(ctx context.Context, name string, interval time.Duration, job func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.GetDefault().Info("Started booking job", "job", name, "interval", interval.String())

	for {
		select {
		case <-ticker.C:
			job(ctx)
		case <-jp.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (jp *JobProcessor) reconcileRefunds(ctx context.Context) {
	settled, err := jp.service.ReconcileRefunds(ctx, jp.config.BatchSize)
	if err != nil {
		logger.GetDefault().WithError(err).Error("Error reconciling refunds")
		return
	}
	if settled > 0 {
		logger.GetDefault().Info("Settled pending refunds", "count", settled)
	}
}

func (jp *JobProcessor) completeEnded(ctx context.Context) {
	completed, err := jp.service.CompleteEnded(ctx, jp.config.BatchSize)
	if err != nil {
		logger.GetDefault().WithError(err).Error("Error completing ended bookings")
		return
	}
	if completed > 0 {
		logger.GetDefault().Info("Completed ended bookings", "count", completed)
	}
}

// GetJobStatus returns the status of background jobs
func (jp *JobProcessor) GetJobStatus() map[string]interface{} {
	return map[string]interface{}{
		"refund_reconcile_interval": jp.config.RefundReconcileInterval.String(),
		"completion_sweep_interval": jp.config.CompletionSweepInterval.String(),
		"batch_size":                jp.config.BatchSize,
		"status":                    "running",
	}
}
