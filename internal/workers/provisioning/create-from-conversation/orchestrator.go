package createfromconversation

import (
	"context"
	"strconv"
	"time"

	apperrors "center-onboarding/internal/common/errors"
	"center-onboarding/internal/common/logger"
	"center-onboarding/internal/common/metrics"
	"center-onboarding/internal/common/observability"
	"center-onboarding/internal/models"
	"center-onboarding/internal/store"
	publishevent "center-onboarding/internal/workers/communication/publish-event"
	sendwelcomeemail "center-onboarding/internal/workers/communication/send-welcome-email"
	resolvecity "center-onboarding/internal/workers/geography/resolve-city"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type CityResolver interface {
	Resolve(ctx context.Context, req resolvecity.Request) (*models.ResolvedCity, error)
}

// TenantProvisioner is implemented by *provisiontenant.Provisioner.
type TenantProvisioner interface {
	Create(ctx context.Context, req *models.ProvisioningRequest) (*models.ProvisioningResult, error)
	FindByReference(ctx context.Context, conversationID string) (*models.ProvisioningResult, error)
}

// Dependencies groups the collaborators of the Orchestrator. Emitter, Welcome
// and Observability may be nil.
type Dependencies struct {
	Conversations store.ConversationStore
	Summaries     store.TenantSummaryStore
	Cities        CityResolver
	Provisioner   TenantProvisioner
	Welcome       sendwelcomeemail.WelcomeSender
	Events        *publishevent.Emitter
	Observability *observability.Observability
}

// Orchestrator turns a confirmed conversation into a provisioned tenant.
type Orchestrator struct {
	deps   Dependencies
	config *Config
	logger logger.Logger
	now    func() time.Time
}

func NewOrchestrator(cfg *Config, deps Dependencies, log logger.Logger) *Orchestrator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Orchestrator{deps: deps, config: cfg, logger: log, now: time.Now}
}

// CreateFromConversation never returns an error: every failure is classified
// into Output.Error and recorded on the conversation when possible.
func (o *Orchestrator) CreateFromConversation(ctx context.Context, conversationID string) *Output {
	ctx, span := o.deps.Observability.StartSpan(ctx, "onboarding.create_from_conversation", map[string]string{
		"conversation.id": conversationID,
	})
	defer span.End()

	log := o.logger.WithFields(map[string]interface{}{"conversationId": conversationID})

	conv, err := o.deps.Conversations.Get(ctx, conversationID)
	if err != nil {
		return o.failed(ctx, span, log, nil, store.AsStandardError(err, conversationID))
	}

	if out, err := o.existing(ctx, conv); err != nil {
		return o.failed(ctx, span, log, conv, apperrors.Classify(err, apperrors.ErrCodeDatabaseError))
	} else if out != nil {
		log.Info("tenant already exists for conversation", map[string]interface{}{
			"tenantId": out.Tenant.TenantID,
		})
		return out
	}

	if conv.Status == models.ConversationAbandoned {
		return o.failed(ctx, span, log, conv, apperrors.NewConversationClosedError(conv.ID, string(conv.Status)))
	}
	if stdErr := validateRecord(conv); stdErr != nil {
		return o.failed(ctx, span, log, conv, stdErr)
	}

	cityName, provinceName := SplitCity(conv.Record.City)
	if provinceName == "" {
		provinceName = conv.Record.Province
	}
	city, err := o.resolveCity(ctx, conv, cityName, provinceName)
	if err != nil {
		return o.failed(ctx, span, log, conv, apperrors.Classify(err, apperrors.ErrCodeCityResolutionFailed))
	}

	req := buildRequest(conv, city, cityName, provinceName, o.config.DefaultCurrency)
	result, err := o.provision(ctx, req)
	if err != nil {
		return o.failed(ctx, span, log, conv, apperrors.Classify(err, apperrors.ErrCodeProvisioningFailed))
	}

	summary := &models.TenantSummary{
		ConversationID:   conv.ID,
		ExternalTenantID: result.TenantID,
		TenantName:       req.TenantName,
		City:             req.CityName,
		AdminName:        req.AdminName,
		AdminEmail:       req.AdminEmail,
		AdminLogin:       result.AdminLogin,
		FacilityCount:    len(req.Facilities),
		Identifiers:      result.ProvisionedIDs,
		CreatedAt:        o.now().UTC(),
	}
	o.complete(ctx, log, summary)

	tenant := tenantInfo(summary, result.AlreadyExisted)
	tenant.AdminPassword = result.AdminPassword
	if city != nil {
		tenant.CityCorrectedFrom = city.CorrectedFrom
	}

	if !result.AlreadyExisted {
		metrics.TenantsCreated.Inc()
		o.deps.Events.Emit(ctx, publishevent.EventTenantCreated, conv.ID, result.TenantID, map[string]interface{}{
			"tenantName":    summary.TenantName,
			"city":          summary.City,
			"cityCreated":   city != nil && city.WasCreated,
			"facilityCount": summary.FacilityCount,
		})
		o.deps.Events.TenantProvisioned(ctx, publishevent.TenantProvisioned{
			EventType:      publishevent.TopicTenantProvisioned,
			ConversationID: conv.ID,
			TenantID:       result.TenantID,
			TenantName:     summary.TenantName,
			City:           summary.City,
			AdminEmail:     summary.AdminEmail,
			FacilityCount:  summary.FacilityCount,
			ProvisionedAt:  summary.CreatedAt,
		})
	}
	if result.AdminPassword != "" {
		tenant.WelcomeEmailSent = o.sendWelcome(ctx, log, conv.ID, tenant)
	}

	span.SetStatus(codes.Ok, "")
	log.Info("tenant created from conversation", map[string]interface{}{
		"tenantId":       tenant.TenantID,
		"alreadyExisted": tenant.AlreadyExisted,
		"facilityCount":  tenant.FacilityCount,
	})
	return &Output{Success: true, Tenant: tenant}
}

// existing looks for a tenant created by an earlier call: first the local
// summary, then the provisioning store, healing a missing summary.
func (o *Orchestrator) existing(ctx context.Context, conv *models.Conversation) (*Output, error) {
	summary, err := o.deps.Summaries.FindByConversation(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	if summary != nil {
		return &Output{Success: true, Tenant: tenantInfo(summary, true)}, nil
	}

	provisioned, err := o.deps.Provisioner.FindByReference(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	if provisioned == nil {
		return nil, nil
	}

	cityName, _ := SplitCity(conv.Record.City)
	summary = &models.TenantSummary{
		ConversationID:   conv.ID,
		ExternalTenantID: provisioned.TenantID,
		TenantName:       conv.Record.TenantName,
		City:             cityName,
		AdminName:        conv.Record.AdminName,
		AdminEmail:       conv.Record.AdminEmail,
		AdminLogin:       provisioned.AdminLogin,
		FacilityCount:    len(conv.Record.Facilities),
		Identifiers:      provisioned.ProvisionedIDs,
		CreatedAt:        o.now().UTC(),
	}
	o.logger.Warn("tenant found without local summary, healing", map[string]interface{}{
		"conversationId": conv.ID,
		"tenantId":       provisioned.TenantID,
	})
	o.complete(ctx, o.logger, summary)
	return &Output{Success: true, Tenant: tenantInfo(summary, true)}, nil
}

func (o *Orchestrator) resolveCity(ctx context.Context, conv *models.Conversation, cityName, provinceName string) (*models.ResolvedCity, error) {
	ctx, span := o.deps.Observability.StartSpan(ctx, "onboarding.resolve_city", map[string]string{"city": cityName})
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, o.config.CityResolutionTimeout)
	defer cancel()

	city, err := o.deps.Cities.Resolve(ctx, resolvecity.Request{
		City:        cityName,
		Province:    provinceName,
		CountryCode: conv.Record.CountryCode,
		PlaceID:     conv.Record.PlaceResolutionHint,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "city resolution failed")
		return nil, err
	}
	return city, nil
}

func (o *Orchestrator) provision(ctx context.Context, req *models.ProvisioningRequest) (*models.ProvisioningResult, error) {
	ctx, span := o.deps.Observability.StartSpan(ctx, "onboarding.provision", map[string]string{
		"tenant.name": req.TenantName,
	})
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, o.config.ProvisioningTimeout)
	defer cancel()

	result, err := o.deps.Provisioner.Create(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "provisioning failed")
		return nil, err
	}
	return result, nil
}

// complete persists the summary and closes the conversation. Failures are
// logged only; the next call heals them from the provisioning store.
func (o *Orchestrator) complete(ctx context.Context, log logger.Logger, summary *models.TenantSummary) {
	if err := o.deps.Summaries.Save(ctx, summary); err != nil {
		log.Error("failed to save tenant summary", map[string]interface{}{
			"tenantId": summary.ExternalTenantID,
			"error":    err.Error(),
		})
		return
	}
	if err := o.deps.Conversations.SetStatus(ctx, summary.ConversationID, models.ConversationCompleted); err != nil {
		log.Error("failed to mark conversation completed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (o *Orchestrator) sendWelcome(ctx context.Context, log logger.Logger, conversationID string, tenant *TenantInfo) bool {
	if o.deps.Welcome == nil {
		return false
	}
	ctx, span := o.deps.Observability.StartSpan(ctx, "onboarding.welcome_email", nil)
	defer span.End()

	sendCtx, cancel := context.WithTimeout(ctx, o.config.NotificationTimeout)
	defer cancel()

	result := o.deps.Welcome.Send(sendCtx, tenant.AdminEmail, map[string]interface{}{
		sendwelcomeemail.KeyTenantName:    tenant.TenantName,
		sendwelcomeemail.KeyAdminName:     tenant.AdminName,
		sendwelcomeemail.KeyAdminLogin:    tenant.AdminLogin,
		sendwelcomeemail.KeyAdminPassword: tenant.AdminPassword,
	})
	if result.Success {
		return true
	}

	metrics.BestEffortFailures.WithLabelValues("welcome_email").Inc()
	span.SetStatus(codes.Error, result.Error)
	log.Warn("welcome email not delivered", map[string]interface{}{
		"tenantId": tenant.TenantID,
		"error":    result.Error,
	})
	o.deps.Events.Emit(ctx, publishevent.EventWelcomeEmailFailed, conversationID, tenant.TenantID, map[string]interface{}{
		"adminEmail": tenant.AdminEmail,
		"error":      result.Error,
	})
	return false
}

// failed records stdErr as the conversation's lastError (when the
// conversation exists) and converts it into the job output.
func (o *Orchestrator) failed(ctx context.Context, span trace.Span, log logger.Logger, conv *models.Conversation, stdErr *apperrors.StandardError) *Output {
	span.RecordError(stdErr)
	span.SetStatus(codes.Error, string(stdErr.Code))

	retryCount := 0
	if conv != nil {
		retryCount = o.recordFailure(ctx, log, conv.ID, stdErr)
	}

	metrics.TenantCreationFailures.WithLabelValues(string(stdErr.Code), strconv.FormatBool(stdErr.Retryable)).Inc()
	log.Warn("tenant creation failed", map[string]interface{}{
		"errorCode":  stdErr.Code,
		"retryable":  stdErr.Retryable,
		"details":    stdErr.Details,
		"retryCount": retryCount,
	})

	if conv != nil {
		o.deps.Events.Emit(ctx, publishevent.EventTenantCreationFailed, conv.ID, 0, map[string]interface{}{
			"code":       string(stdErr.Code),
			"retryable":  stdErr.Retryable,
			"retryCount": retryCount,
		})
	}

	return &Output{
		Success: false,
		Error: &Failure{
			Code:      string(stdErr.Code),
			Message:   stdErr.UserMessage(),
			Retryable: stdErr.Retryable,
		},
	}
}

func (o *Orchestrator) recordFailure(ctx context.Context, log logger.Logger, conversationID string, stdErr *apperrors.StandardError) int {
	retryCount := 0
	_, err := o.deps.Conversations.MergeUpdate(ctx, conversationID, func(rec models.StructuredRecord) (models.StructuredRecord, error) {
		retryCount = 1
		if rec.LastError != nil {
			retryCount = rec.LastError.RetryCount + 1
		}
		rec.LastError = &models.LastError{
			Code:         string(stdErr.Code),
			Message:      stdErr.UserMessage(),
			TimestampUTC: o.now().UTC(),
			RetryCount:   retryCount,
			Retryable:    stdErr.Retryable,
		}
		return rec, nil
	})
	if err != nil {
		log.Error("failed to record lastError", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return retryCount
}

func tenantInfo(summary *models.TenantSummary, alreadyExisted bool) *TenantInfo {
	ids := summary.Identifiers
	ids.TenantID = summary.ExternalTenantID
	return &TenantInfo{
		ProvisionedIDs: ids,
		TenantName:     summary.TenantName,
		City:           summary.City,
		AdminName:      summary.AdminName,
		AdminEmail:     summary.AdminEmail,
		AdminLogin:     summary.AdminLogin,
		FacilityCount:  summary.FacilityCount,
		AlreadyExisted: alreadyExisted,
	}
}
