package checkreadiness

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "center-onboarding/internal/common/errors"
	"center-onboarding/internal/common/logger"
	"center-onboarding/internal/common/metrics"
	"center-onboarding/internal/models"
	"center-onboarding/internal/store"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "check-readiness"

// ConversationReader is the slice of the record store this worker needs.
type ConversationReader interface {
	Get(ctx context.Context, id string) (*models.Conversation, error)
}

type Handler struct {
	config     *Config
	logger     logger.Logger
	store      ConversationReader
	errHandler *apperrors.ErrorHandler
}

func NewHandler(cfg *Config, conversations ConversationReader, log logger.Logger) (*Handler, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     cfg,
		logger:     scoped,
		store:      conversations,
		errHandler: apperrors.NewErrorHandler(scoped, apperrors.ErrCodeDatabaseError),
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.fail(ctx, client, job, apperrors.NewInputParsingFailedError(err))
		return
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

// Execute loads the conversation and runs the readiness gate over its record.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if strings.TrimSpace(input.ConversationID) == "" {
		return nil, apperrors.NewValidationFailedError("conversationId is required", nil)
	}

	conv, err := h.store.Get(ctx, input.ConversationID)
	if err != nil {
		return nil, store.AsStandardError(err, input.ConversationID)
	}

	result := Check(conv.Record)
	output := &Output{
		Ready:          result.Ready,
		Missing:        MissingNames(result.Missing),
		Confirmed:      conv.Record.Confirmed,
		ScheduleIssues: ScheduleIssues(conv.Record),
	}

	h.logger.Debug("readiness checked", map[string]interface{}{
		"conversationId": input.ConversationID,
		"ready":          output.Ready,
		"missing":        output.Missing,
	})
	return output, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := h.errHandler.HandleJobError(ctx, client, job, err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
}
