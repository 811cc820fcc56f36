package camunda

import (
	"context"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.uber.org/zap"
)

// JobHandler processes a single activated job and is responsible for completing or
// failing it.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

// JobRecorder receives per-job outcome metrics.
type JobRecorder interface {
	RecordJobProcessed(ctx context.Context, taskType, status string)
	RecordJobDuration(ctx context.Context, taskType string, duration time.Duration, status string)
}

type NoopRecorder struct{}

func (NoopRecorder) RecordJobProcessed(context.Context, string, string) {}

func (NoopRecorder) RecordJobDuration(context.Context, string, time.Duration, string) {}

type WorkerOptions struct {
	MaxJobsActive int
	Timeout       time.Duration
}

type CamundaWorker struct {
	client   zbc.Client
	handler  JobHandler
	options  WorkerOptions
	worker   worker.JobWorker
	logger   *zap.Logger
	taskType string
}

func NewWorker(
	client zbc.Client,
	taskType string,
	options WorkerOptions,
	handler JobHandler,
	logger *zap.Logger,
) *CamundaWorker {
	if options.MaxJobsActive <= 0 {
		options.MaxJobsActive = 5
	}
	if options.Timeout <= 0 {
		options.Timeout = 30 * time.Second
	}
	return &CamundaWorker{
		client:   client,
		handler:  handler,
		options:  options,
		logger:   logger,
		taskType: taskType,
	}
}

// Start opens the job worker. Handler panics are recovered and logged so one bad job
// does not stop the poller; the job times out and is reactivated by the broker.
func (w *CamundaWorker) Start() {
	w.worker = w.client.NewJobWorker().
		JobType(w.taskType).
		Handler(func(client worker.JobClient, job entities.Job) {
			defer func() {
				if r := recover(); r != nil {
					w.logger.Error("Handler panicked",
						zap.String("taskType", w.taskType),
						zap.Int64("jobKey", job.Key),
						zap.Any("panic", r))
				}
			}()
			w.handler.Handle(client, job)
		}).
		MaxJobsActive(w.options.MaxJobsActive).
		Timeout(w.options.Timeout).
		Name(fmt.Sprintf("%s-worker", w.taskType)).
		Open()

	w.logger.Info("worker started",
		zap.String("taskType", w.taskType),
		zap.Int("maxJobsActive", w.options.MaxJobsActive),
		zap.Duration("timeout", w.options.Timeout))
}

// Stop closes the job worker and waits for active handlers. The shared client is left open.
func (w *CamundaWorker) Stop() {
	if w.worker == nil {
		return
	}
	w.logger.Info("stopping worker", zap.String("taskType", w.taskType))
	w.worker.Close()
	w.worker.AwaitClose()
	w.worker = nil
}

func (w *CamundaWorker) TaskType() string {
	return w.taskType
}
