package resolvecity

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

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "resolve-city"

// CityResolver is implemented by *Resolver.
type CityResolver interface {
	Resolve(ctx context.Context, req Request) (*models.ResolvedCity, error)
}

type Handler struct {
	config     *Config
	logger     logger.Logger
	resolver   CityResolver
	errHandler *apperrors.ErrorHandler
}

func NewHandler(cfg *Config, resolver CityResolver, log logger.Logger) (*Handler, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if resolver == nil {
		return nil, fmt.Errorf("%s: resolver is required", TaskType)
	}
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     cfg,
		logger:     scoped,
		resolver:   resolver,
		errHandler: apperrors.NewErrorHandler(scoped, apperrors.ErrCodeCityResolutionFailed),
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

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if strings.TrimSpace(input.City) == "" && strings.TrimSpace(input.PlaceID) == "" {
		return nil, apperrors.NewValidationFailedError("city or placeId is required", nil)
	}

	resolved, err := h.resolver.Resolve(ctx, Request{
		City:        input.City,
		Province:    input.Province,
		CountryCode: input.CountryCode,
		PlaceID:     input.PlaceID,
	})
	if err != nil {
		return nil, apperrors.Classify(err, apperrors.ErrCodeCityResolutionFailed)
	}
	return &Output{ResolvedCity: *resolved}, nil
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
