// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

package metrics

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestRecordBackupPass tests coordinator pass metric recording
func TestRecordBackupPass(t *testing.T) {
	tests := []struct {
		name       string
		duration   time.Duration
		discovered int
	}{
		{
			name:       "fast pass with no stores",
			duration:   100 * time.Millisecond,
			discovered: 0,
		},
		{
			name:       "typical pass",
			duration:   5 * time.Second,
			discovered: 250,
		},
		{
			name:       "slow pass over many stores",
			duration:   8 * time.Minute,
			discovered: 10000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			RecordBackupPass(tt.duration, tt.discovered)

			if got := testutil.ToFloat64(BackupStoresDiscovered); got != float64(tt.discovered) {
				t.Errorf("BackupStoresDiscovered = %v, want %v", got, tt.discovered)
			}
			if got := testutil.ToFloat64(BackupLastPassTimestamp); got == 0 {
				t.Error("BackupLastPassTimestamp not set")
			}
		})
	}
}

// TestRecordUpload tests per-item upload counters
func TestRecordUpload(t *testing.T) {
	before := testutil.ToFloat64(BackupItemsUploaded.WithLabelValues("database"))

	RecordUpload("key")
	RecordUpload("database")
	RecordUpload("database")

	after := testutil.ToFloat64(BackupItemsUploaded.WithLabelValues("database"))
	if after != before+2 {
		t.Errorf("database uploads = %v, want %v", after, before+2)
	}
}

// TestRecordItemFailure tests per-item failure counters across stages
func TestRecordItemFailure(t *testing.T) {
	stages := []string{"snapshot", "upload", "record"}

	for _, stage := range stages {
		RecordItemFailure("database", stage)
		RecordItemFailure("key", stage)
	}
}

// TestSetTrackedItems tests the tracked-set size gauge
func TestSetTrackedItems(t *testing.T) {
	SetTrackedItems("key", 42)
	SetTrackedItems("database", 7)

	if got := testutil.ToFloat64(BackupTrackedItems.WithLabelValues("key")); got != 42 {
		t.Errorf("tracked keys = %v, want 42", got)
	}
	if got := testutil.ToFloat64(BackupTrackedItems.WithLabelValues("database")); got != 7 {
		t.Errorf("tracked databases = %v, want 7", got)
	}
}

// TestRecordSnapshot tests snapshot metric recording
func TestRecordSnapshot(t *testing.T) {
	before := testutil.ToFloat64(SnapshotFailures)

	RecordSnapshot(50*time.Millisecond, nil)
	RecordSnapshot(time.Second, errors.New("database is locked"))

	after := testutil.ToFloat64(SnapshotFailures)
	if after != before+1 {
		t.Errorf("SnapshotFailures = %v, want %v", after, before+1)
	}
}

// TestRecordRecoveryStep tests saga step outcome counters
func TestRecordRecoveryStep(t *testing.T) {
	for step := 1; step <= 7; step++ {
		RecordRecoveryStep(step, "ok")
	}
	RecordRecoveryStep(5, "skipped")
	RecordRecoveryStep(4, "failed")
}

// TestRecordEventSequenced tests change-event counters
func TestRecordEventSequenced(t *testing.T) {
	kinds := []string{"identity", "commit"}

	for _, kind := range kinds {
		RecordEventSequenced(kind)
	}
}

// TestRecordAPIRequest tests admin API request metrics
func TestRecordAPIRequest(t *testing.T) {
	RecordAPIRequest("GET", "/healthz", "200", 5*time.Millisecond)
	RecordAPIRequest("GET", "/api/backup/status", "200", 10*time.Millisecond)
	RecordAPIRequest("POST", "/api/recovery/{did}", "409", 2*time.Millisecond)
}

// TestAppMetrics tests application-level metrics
func TestAppMetrics(t *testing.T) {
	SetAppInfo("1.0-test")

	got := testutil.ToFloat64(AppInfo.WithLabelValues("1.0-test", runtime.Version()))
	if got != 1 {
		t.Errorf("app_info = %v, want 1", got)
	}

	// The uptime gauge starts at zero and is also settable directly.
	AppUptime.Set(3600)
	AppUptime.Add(60)
	if got := testutil.ToFloat64(AppUptime); got != 3660 {
		t.Errorf("app_uptime_seconds = %v, want 3660", got)
	}
}

// TestMetricsRegistration verifies all metrics are properly registered
func TestMetricsRegistration(t *testing.T) {
	metrics := []prometheus.Collector{
		BackupPassDuration,
		BackupPassesTotal,
		BackupItemsUploaded,
		BackupItemFailures,
		BackupTrackedItems,
		BackupStoresDiscovered,
		BackupLastPassTimestamp,
		SnapshotDuration,
		SnapshotFailures,
		UploadBytes,
		UploadDuration,
		RecoveryAttempts,
		RecoveryStepOutcomes,
		RecoveryDuration,
		EventsSequenced,
		EventPublishFailures,
		CircuitBreakerState,
		CircuitBreakerRequests,
		CircuitBreakerTransitions,
		APIRequestsTotal,
		APIRequestDuration,
		AppInfo,
		AppUptime,
	}

	// Verify each metric can be described
	for _, m := range metrics {
		ch := make(chan *prometheus.Desc, 10)
		m.Describe(ch)
		close(ch)

		count := 0
		for range ch {
			count++
		}
		if count == 0 {
			t.Errorf("Metric has no descriptors")
		}
	}
}

// TestMetricGathering tests that metrics can be gathered using testutil
func TestMetricGathering(t *testing.T) {
	RecordSnapshot(time.Millisecond, nil)
	RecordAPIRequest("GET", "/test", "200", time.Millisecond)

	problems, err := testutil.GatherAndLint(prometheus.DefaultGatherer)
	if err != nil {
		t.Logf("Lint errors (may be expected): %v", err)
	}
	for _, p := range problems {
		t.Logf("Metric lint problem: %s", p.Text)
	}
}
