package applytoolcall

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "center-onboarding/internal/common/errors"
	"center-onboarding/internal/common/logger"
	"center-onboarding/internal/common/metrics"
	"center-onboarding/internal/models"
	"center-onboarding/internal/store"
	checkreadiness "center-onboarding/internal/workers/conversation/check-readiness"
	publishevent "center-onboarding/internal/workers/communication/publish-event"
	"center-onboarding/pkg/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "apply-tool-call"

// errNoChange aborts a merge whose call left the record untouched.
var errNoChange = errors.New("no change")

// EventEmitter records best-effort analytics events.
type EventEmitter interface {
	Emit(ctx context.Context, eventType, conversationID string, tenantID int64, payload map[string]interface{})
}

type Handler struct {
	config     *Config
	logger     logger.Logger
	store      store.ConversationStore
	registry   *registry.Registry
	events     EventEmitter
	errHandler *apperrors.ErrorHandler
	now        func() time.Time
}

type HandlerOptions struct {
	Config        *Config
	Conversations store.ConversationStore
	Registry      *registry.Registry
	Events        EventEmitter
	Logger        logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Conversations == nil {
		return nil, fmt.Errorf("%s: conversation store is required", TaskType)
	}

	reg := opts.Registry
	if reg == nil {
		var err error
		if reg, err = registry.Default(); err != nil {
			return nil, fmt.Errorf("%s: load tool registry: %w", TaskType, err)
		}
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json")
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})

	return &Handler{
		config:     cfg,
		logger:     log,
		store:      opts.Conversations,
		registry:   reg,
		events:     opts.Events,
		errHandler: apperrors.NewErrorHandler(log, apperrors.ErrCodeDatabaseError),
		now:        time.Now,
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.Key,
		"processInstanceKey": job.ProcessInstanceKey,
	})

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

// Execute applies one tool call to the conversation record.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if strings.TrimSpace(input.ConversationID) == "" {
		return nil, apperrors.NewValidationFailedError("conversationId is required", nil)
	}
	if strings.TrimSpace(input.ToolName) == "" {
		return nil, apperrors.NewValidationFailedError("toolName is required", nil)
	}

	conv, err := h.store.Get(ctx, input.ConversationID)
	if err != nil {
		return nil, store.AsStandardError(err, input.ConversationID)
	}
	if !conv.IsOpen() {
		return nil, apperrors.NewConversationClosedError(conv.ID, string(conv.Status))
	}

	call, err := ParseToolCall(h.registry, input.ToolName, input.Arguments)
	if err != nil {
		return nil, err
	}
	metrics.ToolCallsApplied.WithLabelValues(string(call.Kind())).Inc()

	switch c := call.(type) {
	case Unknown:
		h.logger.Warn("ignoring unknown tool call", map[string]interface{}{
			"conversationId": conv.ID,
			"toolName":       c.Name,
		})
		out := h.snapshot(conv, call.Kind())
		out.Warnings = []string{fmt.Sprintf("unknown tool %q ignored", c.Name)}
		return out, nil

	case CreateCenter:
		out := h.snapshot(conv, call.Kind())
		out.CreateRequested = true
		return out, nil

	case RestartConversation:
		if err := h.store.SetStatus(ctx, conv.ID, models.ConversationAbandoned); err != nil {
			return nil, store.AsStandardError(err, conv.ID)
		}
		h.logger.Info("conversation abandoned on restart", map[string]interface{}{
			"conversationId": conv.ID,
		})
		conv.Status = models.ConversationAbandoned
		out := h.snapshot(conv, call.Kind())
		out.Applied = true
		return out, nil
	}

	var outcome Outcome
	updated, err := h.store.MergeUpdate(ctx, conv.ID, func(rec models.StructuredRecord) (models.StructuredRecord, error) {
		next, o := Apply(rec, call, h.now())
		outcome = o
		if !o.Applied {
			return rec, errNoChange
		}
		return next, nil
	})
	switch {
	case errors.Is(err, errNoChange):
		updated = conv
	case err != nil:
		return nil, store.AsStandardError(err, conv.ID)
	}

	if len(outcome.Warnings) > 0 {
		h.logger.Warn("tool call applied with warnings", map[string]interface{}{
			"conversationId": conv.ID,
			"toolKind":       string(outcome.Kind),
			"warnings":       outcome.Warnings,
		})
	}

	if req, ok := call.(RequestHumanHelp); ok && h.events != nil {
		h.events.Emit(ctx, publishevent.EventHumanHelpRequested, conv.ID, 0, map[string]interface{}{
			"reason": req.Reason,
		})
	}

	out := h.snapshot(updated, outcome.Kind)
	out.Applied = outcome.Applied
	out.Warnings = outcome.Warnings
	for _, f := range outcome.Changed {
		out.Changed = append(out.Changed, string(f))
	}
	return out, nil
}

func (h *Handler) snapshot(conv *models.Conversation, kind Kind) *Output {
	gate := checkreadiness.Check(conv.Record)
	return &Output{
		Kind:      string(kind),
		Ready:     gate.Ready,
		Missing:   checkreadiness.MissingNames(gate.Missing),
		Confirmed: conv.Record.Confirmed,
		Escalated: conv.Record.Escalated != nil,
		Status:    string(conv.Status),
	}
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err,
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err,
		})
	}
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := h.errHandler.HandleJobError(ctx, client, job, err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
}
