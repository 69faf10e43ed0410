// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Job worker metrics
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
)

// Claim processing metrics
var (
	IntakeTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claims_intake_transitions_total",
			Help: "Accepted intake step transitions by source step",
		},
		[]string{"step"},
	)

	IntakeRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claims_intake_rejections_total",
			Help: "Rejected intake inputs by error code",
		},
		[]string{"step", "code"},
	)

	IntakeEnrichmentFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "claims_intake_enrichment_failures_total",
			Help: "Location enrichment calls that failed and were skipped",
		},
	)

	ClaimsFinalized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claims_finalized_total",
			Help: "Claims created by FNOL finalization",
		},
		[]string{"accident_type"},
	)

	ClaimsScored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claims_scored_total",
			Help: "Scoring runs by outcome (computed or cached)",
		},
		[]string{"outcome"},
	)

	ClaimsRouted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claims_routed_total",
			Help: "Claims routed by adjuster tier and straight-through eligibility",
		},
		[]string{"tier", "stp"},
	)

	ClaimsAssigned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claims_assigned_total",
			Help: "Claims assigned by adjuster tier",
		},
		[]string{"tier"},
	)

	ScoringDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "claims_scoring_duration_seconds",
			Help:    "Time spent computing and persisting claim scores",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
	)

	NotificationDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claims_notification_deliveries_total",
			Help: "Outbound notification deliveries by channel and status",
		},
		[]string{"channel", "status"},
	)
)

// HTTP API metrics
var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claims_http_requests_total",
			Help: "HTTP requests by route pattern, method and status code",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "claims_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
)
