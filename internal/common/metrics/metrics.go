// Package metrics holds the Prometheus collectors exposed on /metrics.
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
			Help: "Number of jobs currently being handled by worker",
		},
		[]string{"task_type"},
	)

	// TransitionsTotal counts transition attempts by target status and outcome
	// (ok, noop, or an error code).
	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifecycle_transitions_total",
			Help: "Status transition attempts by target status and outcome",
		},
		[]string{"to_status", "outcome"},
	)

	SyncResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifecycle_sync_results_total",
			Help: "CRM sync pushes by result",
		},
		[]string{"result"},
	)

	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lifecycle_sync_duration_seconds",
			Help:    "Duration of CRM sync pushes",
			Buckets: prometheus.DefBuckets,
		},
	)

	AuditFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lifecycle_audit_failures_total",
			Help: "Transitions rolled back because the audit entry could not be written",
		},
	)

	PurgedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retention_purged_total",
			Help: "Applications deleted by the purge sweep, by status at deletion",
		},
		[]string{"status"},
	)
)
