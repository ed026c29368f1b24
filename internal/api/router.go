// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

// Package api provides the operator HTTP API: health, metrics, backup
// status, and actor recovery.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/actorvault/actorvault/internal/auth"
)

// RouterConfig configures the operator router.
type RouterConfig struct {
	// Auth guards the operator endpoints. When nil, only health and
	// metrics are mounted.
	Auth *auth.BasicAuthManager

	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitDisabled bool
}

// Router assembles the operator API routes.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
	authManager   *auth.BasicAuthManager
}

// NewRouter creates a router serving the given handler.
func NewRouter(handler *Handler, cfg RouterConfig) *Router {
	mwConfig := DefaultChiMiddlewareConfig()
	if cfg.RateLimitRequests > 0 {
		mwConfig.RateLimitRequests = cfg.RateLimitRequests
	}
	if cfg.RateLimitWindow > 0 {
		mwConfig.RateLimitWindow = cfg.RateLimitWindow
	}
	mwConfig.RateLimitDisabled = cfg.RateLimitDisabled

	return &Router{
		handler:       handler,
		chiMiddleware: NewChiMiddleware(mwConfig),
		authManager:   cfg.Auth,
	}
}

// Setup builds the route tree.
//
//	GET  /healthz                liveness and component health
//	GET  /metrics                Prometheus exposition
//	GET  /api/backup/status      coordinator progress        (basic auth)
//	POST /api/recovery/{did}     run the recovery saga       (basic auth)
//
// The /api subtree is only mounted when an auth manager is configured.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestLogging())

	r.Group(func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Get("/healthz", router.handler.Healthz)
	})

	r.Handle("/metrics", promhttp.Handler())

	if router.authManager != nil {
		r.Route("/api", func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimit())
			r.Use(APISecurityHeaders())
			r.Use(BasicAuth(router.authManager))

			r.Get("/backup/status", router.handler.BackupStatus)
			r.Post("/recovery/{did}", router.handler.Recover)
		})
	}

	return r
}
