// USA Band Track - Live Music Event Aggregation
// Copyright 2026 The USA Band Track Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Pradervand/USA-BAND-TRACK

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Pradervand/USA-BAND-TRACK/internal/middleware"
)

const (
	readRateLimit   = 300 // requests per minute per client
	healthRateLimit = 1000
)

// Router builds the chi route tree for a Handler.
type Router struct {
	handler *Handler
}

// NewRouter creates a router for h.
func NewRouter(h *Handler) *Router {
	return &Router{handler: h}
}

// SetupChi returns the root handler.
//
//	GET  /api/v1/health
//	GET  /api/v1/events?state=&source=&genre=
//	GET  /api/v1/stats
//	POST /api/v1/sync[?wait=true]
//	POST /api/v1/sync/{source}[?wait=true]
//	POST /api/v1/purge
//	GET  /api/v1/ws
//	GET  /metrics
func (router *Router) SetupChi() http.Handler {
	h := router.handler
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.AccessLog)
	r.Use(middleware.PrometheusMetrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         86400,
	}))

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		respondError(w, req, http.StatusNotFound, ErrCodeNotFound, "Not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		respondError(w, req, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed", nil)
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.SecurityHeaders)

		r.With(httprate.LimitByIP(healthRateLimit, time.Minute)).Get("/health", h.Health)

		// hijacked connection: keep it out of the compressed group
		r.Get("/ws", h.WebSocket)

		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Compress(5, "application/json"))
			r.Use(httprate.LimitByIP(readRateLimit, time.Minute))
			r.Get("/events", h.Events)
			r.Get("/stats", h.Stats)
		})

		r.Group(func(r chi.Router) {
			r.Use(router.triggerLimit())
			r.Post("/sync", h.TriggerSync)
			r.Post("/sync/{source}", h.TriggerSource)
			r.Post("/purge", h.Purge)
		})
	})

	return r
}

// triggerLimit bounds run triggers per client IP. A non-positive
// server.sync_rate_limit disables it.
func (router *Router) triggerLimit() func(http.Handler) http.Handler {
	n := router.handler.server.SyncRateLimit
	if n <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(n, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			respondError(w, r, http.StatusTooManyRequests, ErrCodeTooManyRequests, "Too many run triggers, try again later", nil)
		}),
	)
}
