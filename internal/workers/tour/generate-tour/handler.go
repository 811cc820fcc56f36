// internal/workers/tour/generate-tour/handler.go
package generatetour

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	"museum-tour-workers/internal/common/camunda"
	"museum-tour-workers/internal/common/errors"
	"museum-tour-workers/internal/common/logger"
	"museum-tour-workers/internal/common/metrics"
	"museum-tour-workers/internal/common/validation"
	"museum-tour-workers/internal/models"
)

const (
	TaskType = "generate-tour"

	commandTimeout = 10 * time.Second
)

type TourGenerator interface {
	Generate(ctx context.Context, req models.TourRequest) (*models.Tour, error)
}

type Handler struct {
	config    *Config
	generator TourGenerator
	errors    *errors.ErrorHandler
	recorder  camunda.JobRecorder
	logger    logger.Logger
}

func NewHandler(config *Config, generator TourGenerator, recorder camunda.JobRecorder, log logger.Logger) *Handler {
	if recorder == nil {
		recorder = camunda.NoopRecorder{}
	}
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		generator: generator,
		errors:    errors.NewErrorHandler(l),
		recorder:  recorder,
		logger:    l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	input, err := ParseInput(job.Variables)
	if err != nil {
		h.failJob(client, job, err, start)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.failJob(client, job, err, start)
		return
	}

	h.completeJob(client, job, output, start)
}

// ParseInput validates the raw job variables against the input schema and decodes them.
func ParseInput(variables string) (*Input, error) {
	result, _, err := validation.ValidateJSON(variables, GetInputSchema())
	if err != nil {
		return nil, errors.NewPreferencesInvalidError(err.Error())
	}
	if !result.Valid {
		return nil, errors.NewPreferencesInvalidError(strings.Join(result.GetErrorMessages(), "; "))
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, errors.NewPreferencesInvalidError(err.Error())
	}
	return &input, nil
}

// Execute generates the tour. A request id is assigned here when absent so the caller
// receives it in the output.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	requestID := input.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	tour, err := h.generator.Generate(ctx, models.TourRequest{
		RequestID:   requestID,
		VisitorID:   input.VisitorID,
		Preferences: input.Preferences,
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info("tour generated", map[string]interface{}{
		"requestId": requestID,
		"tourId":    tour.ID,
		"stops":     len(tour.Stops),
	})

	return &Output{RequestID: requestID, Tour: tour}, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output, start time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		h.failJob(client, job, err, start)
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		h.record(ctx, start, "failed")
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	h.record(ctx, start, "success")
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, err error, start time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.CodeOf(err))).Inc()
	h.errors.HandleJobError(ctx, client, job, err)
	h.record(ctx, start, "failed")
}

func (h *Handler) record(ctx context.Context, start time.Time, status string) {
	elapsed := time.Since(start)
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(elapsed.Seconds())
	h.recorder.RecordJobProcessed(ctx, TaskType, status)
	h.recorder.RecordJobDuration(ctx, TaskType, elapsed, status)
}
