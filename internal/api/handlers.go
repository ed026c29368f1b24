// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/actorvault/actorvault/internal/accounts"
	"github.com/actorvault/actorvault/internal/actorstore"
	"github.com/actorvault/actorvault/internal/backup"
	"github.com/actorvault/actorvault/internal/identity"
	"github.com/actorvault/actorvault/internal/logging"
	"github.com/actorvault/actorvault/internal/recovery"
)

// AccountsPinger checks that the account directory database is reachable.
type AccountsPinger interface {
	Ping(ctx context.Context) error
}

// BackupStatusSource exposes the coordinator's progress snapshot.
type BackupStatusSource interface {
	Status() backup.Status
}

// RecoveryRunner executes the actor recovery saga.
type RecoveryRunner interface {
	Run(ctx context.Context, did, reservedKeyID string) (*recovery.Result, error)
}

// EventsStatus reports whether the event plumbing is up.
type EventsStatus interface {
	IsRunning() bool
}

// HandlerConfig wires a Handler. Backup and Events may be nil when the
// corresponding subsystem is disabled.
type HandlerConfig struct {
	Accounts AccountsPinger
	Backup   BackupStatusSource
	Recovery RecoveryRunner
	Events   EventsStatus
	Version  string
}

// Handler implements the operator API endpoints.
type Handler struct {
	accounts  AccountsPinger
	backup    BackupStatusSource
	recovery  RecoveryRunner
	events    EventsStatus
	version   string
	startedAt time.Time

	// recoveryMu admits one recovery at a time across all identities.
	recoveryMu sync.Mutex
}

// NewHandler creates the operator API handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		accounts:  cfg.Accounts,
		backup:    cfg.Backup,
		recovery:  cfg.Recovery,
		events:    cfg.Events,
		version:   cfg.Version,
		startedAt: time.Now(),
	}
}

// Healthz reports liveness and per-component state. The accounts database
// is the only hard dependency; its failure degrades health to 503.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	components := make(map[string]string, 3)
	status := "healthy"
	httpStatus := http.StatusOK

	pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.accounts.Ping(pingCtx); err != nil {
		logging.Error().Err(err).Msg("Accounts database ping failed")
		components["accounts"] = "unavailable"
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	} else {
		components["accounts"] = "ok"
	}

	if h.backup != nil {
		components["backup"] = "running"
	} else {
		components["backup"] = "disabled"
	}

	switch {
	case h.events == nil:
		components["events"] = "disabled"
	case h.events.IsRunning():
		components["events"] = "running"
	default:
		components["events"] = "stopped"
	}

	respondSuccess(w, httpStatus, &HealthStatus{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		Components:    components,
	})
}

// BackupStatus returns the coordinator's latest pass summary, or an
// enabled=false payload when the process runs without object storage.
func (h *Handler) BackupStatus(w http.ResponseWriter, r *http.Request) {
	if h.backup == nil {
		respondSuccess(w, http.StatusOK, &BackupStatusData{Enabled: false})
		return
	}

	respondSuccess(w, http.StatusOK, &BackupStatusData{
		Enabled: true,
		Status:  h.backup.Status(),
	})
}

// Recover runs the recovery saga for the DID in the path. The body is
// optional; when present it may name a reserved keypair to install instead
// of generating a fresh one.
func (h *Handler) Recover(w http.ResponseWriter, r *http.Request) {
	did := chi.URLParam(r, "did")

	var req RecoveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed JSON body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	if h.recovery == nil {
		respondError(w, http.StatusServiceUnavailable, "RECOVERY_UNAVAILABLE", "recovery is not configured", nil)
		return
	}

	if !h.recoveryMu.TryLock() {
		respondError(w, http.StatusConflict, "RECOVERY_IN_PROGRESS", "another recovery is already running", nil)
		return
	}
	defer h.recoveryMu.Unlock()

	result, err := h.recovery.Run(r.Context(), did, req.ReservedKeyID)
	if err != nil {
		h.respondRecoveryError(w, did, err)
		return
	}

	resp := &RecoveryResponse{Result: result}
	if !result.DirectoryUpdated {
		resp.Warning = "identity directory was not updated; re-run the signing key rotation manually"
	}
	respondSuccess(w, http.StatusOK, resp)
}

// respondRecoveryError maps saga errors onto HTTP statuses: bad DIDs are
// the caller's fault, missing accounts and existing stores are state
// conflicts, and everything else is a failed step.
func (h *Handler) respondRecoveryError(w http.ResponseWriter, did string, err error) {
	switch {
	case errors.Is(err, identity.ErrInvalidDID):
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	case errors.Is(err, accounts.ErrAccountNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("no account for %s", sanitizeLogValue(did)), nil)
	case errors.Is(err, actorstore.ErrStoreExists):
		respondError(w, http.StatusConflict, "ALREADY_EXISTS", fmt.Sprintf("actor store for %s already exists", sanitizeLogValue(did)), nil)
	default:
		var serr *recovery.StepError
		if errors.As(err, &serr) {
			logging.Error().Err(err).Str("did", sanitizeLogValue(did)).Msg("Recovery failed")
			respondJSON(w, http.StatusInternalServerError, &APIResponse{
				Status:   "error",
				Metadata: Metadata{Timestamp: time.Now()},
				Error: &APIError{
					Code:    "RECOVERY_FAILED",
					Message: fmt.Sprintf("recovery step %d (%s) failed", serr.Step, serr.Name),
					Details: serr.State,
				},
			})
			return
		}
		respondError(w, http.StatusInternalServerError, "RECOVERY_FAILED", "recovery failed", err)
	}
}
