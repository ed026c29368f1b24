// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

package api

import (
	"time"

	"github.com/actorvault/actorvault/internal/backup"
	"github.com/actorvault/actorvault/internal/recovery"
)

// APIResponse is the envelope every JSON endpoint returns.
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries response metadata.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
}

// APIError describes a failed request.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// HealthStatus reports process health and per-component availability.
type HealthStatus struct {
	Status        string            `json:"status"`
	Version       string            `json:"version,omitempty"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Components    map[string]string `json:"components"`
}

// BackupStatusData is the backup status payload. Enabled is false when the
// process runs without object storage credentials; the remaining fields are
// only meaningful when it is true.
type BackupStatusData struct {
	Enabled bool `json:"enabled"`
	backup.Status
}

// RecoveryRequest is the optional body of a recovery POST.
type RecoveryRequest struct {
	ReservedKeyID string `json:"reserved_key_id" validate:"omitempty,max=256"`
}

// RecoveryResponse wraps a recovery result, with a warning when the
// identity directory could not be updated.
type RecoveryResponse struct {
	*recovery.Result
	Warning string `json:"warning,omitempty"`
}
