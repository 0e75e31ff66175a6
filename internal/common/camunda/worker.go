package camunda

import (
	"context"
	"sync"
	"time"

	"center-onboarding/internal/common/config"
	"center-onboarding/internal/common/logger"
	"center-onboarding/internal/common/observability"
	"center-onboarding/pkg/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// JobHandler is implemented by every task handler.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

// Registration describes one job worker to open.
type Registration struct {
	TaskType      string
	Enabled       bool
	MaxJobsActive int
	Timeout       time.Duration
	Handler       JobHandler
}

// WorkerManager opens job workers for registered handlers and closes them together.
type WorkerManager struct {
	client     zbc.Client
	logger     logger.Logger
	activities *registry.ActivityRegistry
	obs        *observability.Observability

	mu      sync.Mutex
	workers map[string]worker.JobWorker
}

func NewWorkerManager(client zbc.Client, activities *registry.ActivityRegistry, obs *observability.Observability, log logger.Logger) *WorkerManager {
	return &WorkerManager{
		client:     client,
		logger:     log,
		activities: activities,
		obs:        obs,
		workers:    map[string]worker.JobWorker{},
	}
}

// RegistrationFor fills the worker settings for taskType from the workers section.
func RegistrationFor(cfg *config.Config, taskType string, handler JobHandler) Registration {
	wcfg := config.GetWorkerConfig(cfg, taskType)
	return Registration{
		TaskType:      taskType,
		Enabled:       wcfg.Enabled,
		MaxJobsActive: wcfg.MaxJobsActive,
		Timeout:       config.GetDuration(wcfg.Timeout),
		Handler:       handler,
	}
}

// Register opens a job worker for reg. Disabled registrations are logged and skipped.
func (m *WorkerManager) Register(reg Registration) {
	if !reg.Enabled {
		m.logger.Info("worker disabled", map[string]interface{}{"taskType": reg.TaskType})
		return
	}
	if m.activities != nil {
		if _, ok := m.activities.Find(reg.TaskType); !ok {
			m.logger.Warn("task type missing from activity registry", map[string]interface{}{
				"taskType": reg.TaskType,
			})
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.workers[reg.TaskType]; exists {
		m.logger.Warn("worker already registered", map[string]interface{}{"taskType": reg.TaskType})
		return
	}

	m.workers[reg.TaskType] = m.client.NewJobWorker().
		JobType(reg.TaskType).
		Handler(m.instrument(reg.TaskType, reg.Handler)).
		MaxJobsActive(reg.MaxJobsActive).
		Timeout(reg.Timeout).
		Open()

	m.logger.Info("worker started", map[string]interface{}{
		"taskType":      reg.TaskType,
		"maxJobsActive": reg.MaxJobsActive,
		"timeout":       reg.Timeout.String(),
	})
}

// instrument records otel job metrics around handler.
func (m *WorkerManager) instrument(taskType string, handler JobHandler) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		start := time.Now()
		handler.Handle(client, job)
		ctx := context.Background()
		m.obs.RecordJobProcessed(ctx, taskType, "handled")
		m.obs.RecordJobDuration(ctx, taskType, time.Since(start), "handled")
	}
}

// TaskTypes lists the open workers.
func (m *WorkerManager) TaskTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.workers))
	for t := range m.workers {
		out = append(out, t)
	}
	return out
}

// Close stops every worker, waiting for in-flight jobs.
func (m *WorkerManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for taskType, w := range m.workers {
		m.logger.Info("stopping worker", map[string]interface{}{"taskType": taskType})
		w.Close()
		w.AwaitClose()
	}
	m.workers = map[string]worker.JobWorker{}
}
