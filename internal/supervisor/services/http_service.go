// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// HTTPServer is the subset of *http.Server this wrapper needs.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServerService runs an HTTP server under a supervisor. ListenAndServe
// blocks in its own goroutine; when the supervisor cancels the context the
// server gets a bounded graceful shutdown.
type HTTPServerService struct {
	server          HTTPServer
	name            string
	shutdownTimeout time.Duration
}

// NewHTTPServerService wraps server for supervision under the given name.
func NewHTTPServerService(name string, server HTTPServer) *HTTPServerService {
	return &HTTPServerService{
		server:          server,
		name:            name,
		shutdownTimeout: 30 * time.Second,
	}
}

// WithShutdownTimeout overrides the default 30s graceful shutdown window.
func (s *HTTPServerService) WithShutdownTimeout(d time.Duration) *HTTPServerService {
	s.shutdownTimeout = d
	return s
}

func (s *HTTPServerService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: %w", s.name, err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s shutdown: %w", s.name, err)
		}
		return ctx.Err()
	}
}

func (s *HTTPServerService) String() string { return s.name }
