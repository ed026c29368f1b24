// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// TreeConfig controls restart behavior for every supervisor in the tree.
type TreeConfig struct {
	// FailureThreshold is the number of failures tolerated within the decay
	// window before the supervisor backs off.
	FailureThreshold float64

	// FailureDecay is the half-life in seconds of the failure counter.
	FailureDecay float64

	// FailureBackoff is how long the supervisor waits before resuming
	// restarts once the threshold is exceeded.
	FailureBackoff time.Duration

	// Timeout bounds how long a service may take to stop before it is
	// considered hung.
	Timeout time.Duration
}

// DefaultTreeConfig returns restart settings suited to long-running daemons:
// tolerate a handful of crashes, then back off rather than spin.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          30 * time.Second,
	}
}

// SupervisorTree arranges services into three layers:
//
//	actorvault (root)
//	├── data-layer    accounts database health
//	├── backup-layer  backup coordinator, event components
//	└── api-layer     HTTP server
//
// Each layer keeps its own failure budget. A crash loop in the backup layer
// exhausts that layer's threshold without touching the API layer, and the
// root only restarts a whole layer when the layer's supervisor gives up.
type SupervisorTree struct {
	root   *suture.Supervisor
	data   *suture.Supervisor
	backup *suture.Supervisor
	api    *suture.Supervisor

	tokens map[string]suture.ServiceToken
}

// NewSupervisorTree builds the three-layer tree. Supervisor lifecycle events
// are logged through the provided slog logger.
func NewSupervisorTree(logger *slog.Logger, cfg TreeConfig) *SupervisorTree {
	spec := suture.Spec{
		EventHook:        (&sutureslog.Handler{Logger: logger}).MustHook(),
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.Timeout,
	}

	t := &SupervisorTree{
		root:   suture.New("actorvault", spec),
		data:   suture.New("data-layer", spec),
		backup: suture.New("backup-layer", spec),
		api:    suture.New("api-layer", spec),
		tokens: make(map[string]suture.ServiceToken),
	}

	t.tokens["data-layer"] = t.root.Add(t.data)
	t.tokens["backup-layer"] = t.root.Add(t.backup)
	t.tokens["api-layer"] = t.root.Add(t.api)

	return t
}

// AddDataService registers a service on the data layer.
func (t *SupervisorTree) AddDataService(name string, svc suture.Service) {
	t.tokens[name] = t.data.Add(svc)
}

// AddBackupService registers a service on the backup layer.
func (t *SupervisorTree) AddBackupService(name string, svc suture.Service) {
	t.tokens[name] = t.backup.Add(svc)
}

// AddAPIService registers a service on the API layer.
func (t *SupervisorTree) AddAPIService(name string, svc suture.Service) {
	t.tokens[name] = t.api.Add(svc)
}

// HasService reports whether a service was registered under name.
func (t *SupervisorTree) HasService(name string) bool {
	_, ok := t.tokens[name]
	return ok
}

// Remove stops and unregisters a previously added service.
func (t *SupervisorTree) Remove(name string) error {
	token, ok := t.tokens[name]
	if !ok {
		return nil
	}
	delete(t.tokens, name)
	return t.root.RemoveAndWait(token, 0)
}

// Serve runs the tree until ctx is canceled. It blocks; use ServeBackground
// when the caller needs to keep control of the main goroutine.
func (t *SupervisorTree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground starts the tree and returns the channel that receives the
// tree's final error once ctx is canceled.
func (t *SupervisorTree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that failed to stop within the
// configured timeout during shutdown. Useful in the final log line.
func (t *SupervisorTree) UnstoppedServiceReport() (suture.UnstoppedServiceReport, error) {
	return t.root.UnstoppedServiceReport()
}
