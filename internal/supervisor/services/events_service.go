// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

package services

import (
	"context"
	"fmt"
	"time"
)

// EventComponentsRunner is implemented by the bundle of event plumbing the
// daemon owns: the embedded NATS server, the JetStream stream, and the
// publisher. Start must be idempotent so a supervisor restart of an
// already-running bundle is a no-op.
type EventComponentsRunner interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context)
	IsRunning() bool
}

// EventComponentsService supervises the event plumbing. Serve starts the
// components, blocks until the context is canceled, then shuts them down
// within a bounded window.
type EventComponentsService struct {
	runner          EventComponentsRunner
	name            string
	shutdownTimeout time.Duration
}

// NewEventComponentsService wraps runner for supervision under the given name.
func NewEventComponentsService(name string, runner EventComponentsRunner) *EventComponentsService {
	return &EventComponentsService{
		runner:          runner,
		name:            name,
		shutdownTimeout: 30 * time.Second,
	}
}

// WithShutdownTimeout overrides the default 30s shutdown window.
func (s *EventComponentsService) WithShutdownTimeout(d time.Duration) *EventComponentsService {
	s.shutdownTimeout = d
	return s
}

func (s *EventComponentsService) Serve(ctx context.Context) error {
	if err := s.runner.Start(ctx); err != nil {
		return fmt.Errorf("%s start: %w", s.name, err)
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	s.runner.Shutdown(shutdownCtx)

	return ctx.Err()
}

func (s *EventComponentsService) String() string { return s.name }
