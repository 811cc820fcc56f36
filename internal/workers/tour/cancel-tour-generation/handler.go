// internal/workers/tour/cancel-tour-generation/handler.go
package canceltourgeneration

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"museum-tour-workers/internal/common/camunda"
	"museum-tour-workers/internal/common/errors"
	"museum-tour-workers/internal/common/logger"
	"museum-tour-workers/internal/common/metrics"
	"museum-tour-workers/internal/common/validation"
)

const (
	TaskType = "cancel-tour-generation"

	commandTimeout = 10 * time.Second

	ReasonNotFound        = "not_found"
	ReasonAlreadyFinished = "already_finished"
)

type GenerationCanceller interface {
	Cancel(ctx context.Context, requestID, visitorID string) error
}

type Handler struct {
	config    *Config
	canceller GenerationCanceller
	errors    *errors.ErrorHandler
	recorder  camunda.JobRecorder
	logger    logger.Logger
}

func NewHandler(config *Config, canceller GenerationCanceller, recorder camunda.JobRecorder, log logger.Logger) *Handler {
	if recorder == nil {
		recorder = camunda.NoopRecorder{}
	}
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		canceller: canceller,
		errors:    errors.NewErrorHandler(l),
		recorder:  recorder,
		logger:    l,
	}
}

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		"type":     "object",
		"required": []interface{}{"requestId", "visitorId"},
		"properties": map[string]interface{}{
			"requestId": map[string]interface{}{"type": "string", "minLength": 1},
			"visitorId": map[string]interface{}{"type": "string", "minLength": 1},
		},
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

func ParseInput(variables string) (*Input, error) {
	result, _, err := validation.ValidateJSON(variables, GetInputSchema())
	if err != nil {
		return nil, errors.NewValidationFailedError(err.Error())
	}
	if !result.Valid {
		return nil, errors.NewValidationFailedError(strings.Join(result.GetErrorMessages(), "; "))
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, errors.NewValidationFailedError(err.Error())
	}
	return &input, nil
}

// Execute cancels the generation. Unknown, foreign and already finished requests are
// reported as not cancelled; store failures are returned.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	err := h.canceller.Cancel(ctx, input.RequestID, input.VisitorID)
	switch {
	case err == nil:
		h.logger.Info("tour generation cancelled", map[string]interface{}{
			"requestId": input.RequestID,
		})
		return &Output{Cancelled: true}, nil
	case errors.HasCode(err, errors.ErrCodeProgressNotFound):
		return &Output{Cancelled: false, Reason: ReasonNotFound}, nil
	case errors.HasCode(err, errors.ErrCodeProgressTransitionInvalid):
		return &Output{Cancelled: false, Reason: ReasonAlreadyFinished}, nil
	default:
		return nil, err
	}
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
