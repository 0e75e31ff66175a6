package sendwelcomeemail

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	apperrors "center-onboarding/internal/common/errors"
	"center-onboarding/internal/common/logger"
	"center-onboarding/internal/common/metrics"
	"center-onboarding/internal/common/validation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const TaskType = "send-welcome-email"

// WelcomeSender is implemented by *Notifier.
type WelcomeSender interface {
	Send(ctx context.Context, adminEmail string, data map[string]interface{}) Result
}

type Handler struct {
	config     *Config
	logger     logger.Logger
	sender     WelcomeSender
	errHandler *apperrors.ErrorHandler
}

func NewHandler(cfg *Config, sender WelcomeSender, log logger.Logger) (*Handler, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if sender == nil {
		return nil, fmt.Errorf("%s: sender is required", TaskType)
	}
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     cfg,
		logger:     scoped,
		sender:     sender,
		errHandler: apperrors.NewErrorHandler(scoped, apperrors.ErrCodeNotificationSendFailed),
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

// Execute sends the welcome email. Delivery failures complete the job with
// success=false; only malformed input is an error.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if !validation.ValidateEmail(input.AdminEmail) {
		return nil, apperrors.NewValidationFailedError(fmt.Sprintf("invalid adminEmail %q", input.AdminEmail), nil)
	}
	if input.AdminLogin == "" {
		return nil, apperrors.NewValidationFailedError("adminLogin is required", nil)
	}

	result := h.sender.Send(ctx, input.AdminEmail, map[string]interface{}{
		KeyTenantName:    input.TenantName,
		KeyAdminName:     input.AdminName,
		KeyAdminLogin:    input.AdminLogin,
		KeyAdminPassword: input.AdminPassword,
	})
	if !result.Success {
		metrics.BestEffortFailures.WithLabelValues("welcome_email").Inc()
	}

	return &Output{Result: result, NotificationID: uuid.New().String()}, nil
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
