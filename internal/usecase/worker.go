package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"gitlab.com/servio/api/station-feedback-service/internal/config"
	"gitlab.com/servio/api/station-feedback-service/internal/model"
	"gitlab.com/servio/api/station-feedback-service/internal/observer"
	"gitlab.com/servio/api/station-feedback-service/pkg/logger"
	"gitlab.com/servio/api/station-feedback-service/pkg/utils"
)

// EventTaskData holds the data for one inbound event task.
type EventTaskData struct {
	Ctx   context.Context // Context derived for the task, NOT the original request context
	Event model.InboundEvent
}

// IEventWorker defines the interface for the inbound event worker pool.
type IEventWorker interface {
	SubmitEvent(taskData EventTaskData) error
	Stop()
}

// EventWorker runs conversation processing off the webhook request path on
// a bounded pool. The webhook handler acks immediately; this pool absorbs
// the actual work.
type EventWorker struct {
	pool       *ants.PoolWithFunc
	service    *ConversationService
	cfg        config.EventWorkerPoolConfig
	baseLogger *zap.Logger
}

// Ensure EventWorker implements IEventWorker
var _ IEventWorker = (*EventWorker)(nil)

// NewEventWorker creates and initializes the inbound event worker pool.
func NewEventWorker(cfg config.EventWorkerPoolConfig, service *ConversationService, baseLogger *zap.Logger) (*EventWorker, error) {
	worker := &EventWorker{
		service:    service,
		cfg:        cfg,
		baseLogger: baseLogger.Named("event_worker"),
	}

	pool, err := ants.NewPoolWithFunc(cfg.PoolSize, func(i interface{}) {
		taskData, ok := i.(EventTaskData)
		if !ok {
			worker.baseLogger.Error("Invalid task data type received", zap.Any("data", i))
			return
		}
		worker.processEventTask(taskData)
	},
		ants.WithExpiryDuration(cfg.ExpiryTime),
		ants.WithNonblocking(false),
		ants.WithMaxBlockingTasks(cfg.QueueSize),
		ants.WithPanicHandler(func(err interface{}) {
			worker.baseLogger.Error("Panic recovered in event worker", zap.Any("panic_error", err), zap.Stack("stack"))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create event worker pool: %w", err)
	}
	worker.pool = pool
	worker.baseLogger.Info("Event worker pool initialized",
		zap.Int("pool_size", cfg.PoolSize),
		zap.Int("queue_size", cfg.QueueSize),
		zap.Duration("expiry_time", cfg.ExpiryTime),
	)
	return worker, nil
}

// SubmitEvent queues an inbound event for processing.
func (w *EventWorker) SubmitEvent(taskData EventTaskData) error {
	start := time.Now()
	observer.IncWorkerTasksSubmitted()
	observer.SetWorkerQueueLength(w.pool.Waiting())

	err := w.pool.Invoke(taskData)
	duration := time.Since(start)

	if err != nil {
		w.baseLogger.Warn("Failed to submit event to pool",
			zap.String("phone", utils.MaskPhone(taskData.Event.Phone)),
			zap.Duration("submit_duration", duration),
			zap.Error(err),
		)
		observer.IncWorkerTasksProcessed("submit_error")
		if errors.Is(err, ants.ErrPoolOverload) {
			return fmt.Errorf("event pool overload: %w", err)
		}
		return fmt.Errorf("failed to invoke event task: %w", err)
	}

	w.baseLogger.Debug("Submitted event task",
		zap.String("phone", utils.MaskPhone(taskData.Event.Phone)),
		zap.Duration("submit_duration", duration),
	)
	return nil
}

// processEventTask runs inside a pool worker goroutine.
func (w *EventWorker) processEventTask(taskData EventTaskData) {
	log := logger.FromContextOr(taskData.Ctx, w.baseLogger)

	start := time.Now()
	status := "success"

	if err := w.service.ProcessEvent(taskData.Ctx, taskData.Event); err != nil {
		log.Error("Failed to process inbound event",
			zap.String("phone", utils.MaskPhone(taskData.Event.Phone)),
			zap.Error(err))
		status = "failure"
		observer.IncEventsFailed("whatsapp")
	} else {
		observer.IncEventsProcessed("whatsapp")
	}

	observer.IncWorkerTasksProcessed(status)
	observer.ObserveEventProcessingDuration("whatsapp", time.Since(start))
}

// Stop gracefully shuts down the worker pool, waiting for queued tasks.
func (w *EventWorker) Stop() {
	w.baseLogger.Info("Stopping event worker pool")
	w.pool.Release()
	w.baseLogger.Info("Event worker pool stopped")
}
