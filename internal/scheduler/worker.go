package scheduler

import (
	"context"
	"fmt"

	"fieldservice_backend/internal/dayplans/transport"
	"fieldservice_backend/platform/apperr"
	"fieldservice_backend/platform/config"
	"fieldservice_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// DayPlanOptimizer is the slice of the day plan service the worker needs.
type DayPlanOptimizer interface {
	OptimizeRoute(ctx context.Context, dayPlanID uuid.UUID, tenantID uuid.UUID, req transport.OptimizeRouteRequest) (*transport.DayPlanResponse, error)
}

// Worker consumes scheduled tasks from Redis.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	optimizer DayPlanOptimizer
	log       *logger.Logger
}

// NewWorker creates the asynq server and registers task handlers.
func NewWorker(cfg config.SchedulerConfig, optimizer DayPlanOptimizer, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:    server,
		mux:       mux,
		optimizer: optimizer,
		log:       log,
	}

	mux.HandleFunc(TaskDayPlanReoptimize, w.handleDayPlanReoptimize)

	return w, nil
}

func (w *Worker) handleDayPlanReoptimize(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseDayPlanReoptimizePayload(task)
	if err != nil {
		return err
	}

	dayPlanID, err := uuid.Parse(payload.DayPlanID)
	if err != nil {
		return err
	}
	tenantID, err := uuid.Parse(payload.TenantID)
	if err != nil {
		return err
	}

	_, err = w.optimizer.OptimizeRoute(ctx, dayPlanID, tenantID, transport.OptimizeRouteRequest{
		Trigger: transport.TriggerJobCompleted,
	})
	if err != nil {
		// Plans with nothing left to optimize are done, not failed.
		if apperr.Is(err, apperr.KindBadRequest) || apperr.Is(err, apperr.KindNotFound) {
			w.log.Info("reoptimization skipped",
				"day_plan_id", payload.DayPlanID,
				"reason", err.Error(),
			)
			return nil
		}
		return err
	}

	w.log.Info("day plan reoptimized", "day_plan_id", payload.DayPlanID)
	return nil
}

// Run blocks processing tasks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
