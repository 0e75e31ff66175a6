package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	ToolCallsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_tool_calls_total",
			Help: "Tool calls applied to conversation records, by kind",
		},
		[]string{"kind"},
	)

	CityResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_city_resolutions_total",
			Help: "City resolutions by outcome (exact, corrected, created, place_hint)",
		},
		[]string{"outcome"},
	)

	TenantsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "onboarding_tenants_created_total",
			Help: "Tenants provisioned successfully",
		},
	)

	TenantCreationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_tenant_creation_failures_total",
			Help: "Failed tenant creations by error code and retryability",
		},
		[]string{"error_code", "retryable"},
	)

	ProvisioningDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "onboarding_provisioning_duration_seconds",
			Help:    "Duration of the provisioning transaction",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)

	BestEffortFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_best_effort_failures_total",
			Help: "Failures of side effects that never affect the creation result",
		},
		[]string{"side_effect"},
	)
)
