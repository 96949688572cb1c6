// ReviewPulse - Adaptive Review Prompt Orchestration for the Mealprint shell
// Copyright 2026 Mealprint Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mealprint/reviewpulse

// Package api exposes the debug/admin HTTP surface: effective config
// and override management, user-action ingestion, forced evaluations,
// analytics export, health, and Prometheus metrics. The surface binds
// to localhost by default; it is an operator tool, not a product API.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mealprint/reviewpulse/internal/config"
	"github.com/mealprint/reviewpulse/internal/logging"
	"github.com/mealprint/reviewpulse/internal/metrics"
	"github.com/mealprint/reviewpulse/internal/review"
)

// NewRouter builds the admin router around one review manager.
func NewRouter(manager *review.Manager, cfg config.ServerConfig) chi.Router {
	h := &handlers{manager: manager, now: time.Now}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(correlationMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Timeout))
	r.Use(metricsMiddleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Correlation-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if cfg.RateLimitReqs > 0 {
		r.Use(httprate.LimitByIP(cfg.RateLimitReqs, cfg.RateLimitWindow))
	}

	r.Get("/healthz", h.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/review", func(r chi.Router) {
		r.Get("/debug", h.debugInfo)
		r.Post("/actions", h.recordAction)
		r.Post("/check", h.checkReview)
		r.Delete("/data", h.clearData)

		r.Route("/config", func(r chi.Router) {
			r.Post("/", h.updateConfig)
			r.Post("/reset", h.resetConfig)
			r.Get("/export", h.exportConfig)
			r.Post("/import", h.importConfig)
		})

		r.Route("/overrides", func(r chi.Router) {
			r.Put("/", h.setOverrides)
			r.Delete("/", h.clearOverrides)
		})

		r.Get("/analytics/export", h.exportAnalytics)
	})

	return r
}

// correlationMiddleware attaches a correlation id to the request
// context, reusing the caller's when present.
func correlationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Correlation-ID")
		if id == "" {
			id = logging.GenerateCorrelationID()
		}
		ctx := logging.ContextWithCorrelationID(r.Context(), id)
		w.Header().Set("X-Correlation-ID", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// metricsMiddleware counts requests by method, route pattern, and
// status code.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = "unmatched"
		}
		metrics.APIRequestsTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(ww.Status())).Inc()
	})
}
