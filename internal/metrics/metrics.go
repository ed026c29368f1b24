// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

package metrics

import (
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for:
// - Backup coordinator passes and per-item uploads
// - Snapshot engine
// - Actor recovery saga steps
// - Change-event sequencing
// - Identity directory circuit breaker
// - Admin API latency

var (
	// Backup Coordinator Metrics
	BackupPassDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "backup_pass_duration_seconds",
			Help:    "Duration of backup coordinator passes in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	BackupPassesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "backup_passes_total",
			Help: "Total number of completed backup passes",
		},
	)

	BackupItemsUploaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backup_items_uploaded_total",
			Help: "Total number of items uploaded to object storage",
		},
		[]string{"kind"}, // "key", "database"
	)

	BackupItemFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backup_item_failures_total",
			Help: "Total number of per-item backup failures",
		},
		[]string{"kind", "stage"}, // stage: "snapshot", "upload", "record"
	)

	BackupTrackedItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "backup_tracked_items",
			Help: "Current number of items recorded as uploaded",
		},
		[]string{"kind"},
	)

	BackupStoresDiscovered = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "backup_stores_discovered",
			Help: "Number of actor stores found by the last discovery scan",
		},
	)

	BackupLastPassTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "backup_last_pass_timestamp",
			Help: "Unix timestamp of the last completed backup pass",
		},
	)

	// Snapshot Engine Metrics
	SnapshotDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "snapshot_duration_seconds",
			Help:    "Duration of point-in-time store snapshots in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	SnapshotFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "snapshot_failures_total",
			Help: "Total number of failed snapshot attempts",
		},
	)

	// Object Store Metrics
	UploadBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "objectstore_upload_bytes_total",
			Help: "Total bytes uploaded to object storage",
		},
	)

	UploadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "objectstore_upload_duration_seconds",
			Help:    "Duration of object storage uploads in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	// Recovery Saga Metrics
	RecoveryAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recovery_attempts_total",
			Help: "Total number of actor recovery attempts",
		},
	)

	RecoveryStepOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recovery_step_outcomes_total",
			Help: "Total number of recovery step outcomes",
		},
		[]string{"step", "outcome"}, // outcome: "ok", "failed", "skipped"
	)

	RecoveryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recovery_duration_seconds",
			Help:    "Duration of actor recovery sagas in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Change-Event Sequencer Metrics
	EventsSequenced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_sequenced_total",
			Help: "Total number of change events sequenced",
		},
		[]string{"kind"}, // "identity", "commit"
	)

	EventPublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "event_publish_failures_total",
			Help: "Total number of failed event publishes",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Admin API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of admin API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Admin API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// SetAppInfo records the build version and Go runtime once at startup
// and starts the uptime gauge ticking in the background.
func SetAppInfo(version string) {
	AppInfo.WithLabelValues(version, runtime.Version()).Set(1)

	start := time.Now()
	AppUptime.Set(0)
	go func() {
		for range time.Tick(15 * time.Second) {
			AppUptime.Set(time.Since(start).Seconds())
		}
	}()
}

// RecordBackupPass records a completed coordinator pass.
func RecordBackupPass(duration time.Duration, discovered int) {
	BackupPassDuration.Observe(duration.Seconds())
	BackupPassesTotal.Inc()
	BackupStoresDiscovered.Set(float64(discovered))
	BackupLastPassTimestamp.Set(float64(time.Now().Unix()))
}

// RecordUpload records a confirmed per-item upload.
func RecordUpload(kind string) {
	BackupItemsUploaded.WithLabelValues(kind).Inc()
}

// RecordItemFailure records a per-item backup failure at the given stage.
func RecordItemFailure(kind, stage string) {
	BackupItemFailures.WithLabelValues(kind, stage).Inc()
}

// SetTrackedItems updates the tracked-set size gauge for a kind.
func SetTrackedItems(kind string, n int) {
	BackupTrackedItems.WithLabelValues(kind).Set(float64(n))
}

// RecordSnapshot records a snapshot attempt.
func RecordSnapshot(duration time.Duration, err error) {
	SnapshotDuration.Observe(duration.Seconds())
	if err != nil {
		SnapshotFailures.Inc()
	}
}

// RecordRecoveryStep records the outcome of one saga step.
func RecordRecoveryStep(step int, outcome string) {
	RecoveryStepOutcomes.WithLabelValues(strconv.Itoa(step), outcome).Inc()
}

// RecordEventSequenced records a published change event.
func RecordEventSequenced(kind string) {
	EventsSequenced.WithLabelValues(kind).Inc()
}

// RecordAPIRequest records an admin API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
