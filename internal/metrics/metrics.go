// ReviewPulse - Adaptive Review Prompt Orchestration for the Mealprint shell
// Copyright 2026 Mealprint Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mealprint/reviewpulse

// Package metrics holds the Prometheus instrumentation for the review
// engine: trigger evaluation outcomes, gateway request outcomes and
// breaker state, store operation latency, and configuration updates.
// All collectors are registered via promauto at package load.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Trigger engine
	TriggerEvaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_trigger_evaluations_total",
			Help: "Total trigger evaluations by kind and verdict",
		},
		[]string{"trigger", "verdict"},
	)

	TriggerEvaluationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "review_trigger_evaluation_duration_seconds",
			Help:    "Duration of trigger evaluations in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		},
	)

	// Invocation gateway
	GatewayRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_gateway_requests_total",
			Help: "Total review requests by outcome",
		},
		[]string{"outcome"},
	)

	GatewayRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "review_gateway_retries_total",
			Help: "Total retry attempts against the rating surface",
		},
	)

	GatewayFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "review_gateway_store_fallbacks_total",
			Help: "Total fallbacks to the external store listing",
		},
	)

	GatewayErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_gateway_errors_total",
			Help: "Total categorized gateway errors",
		},
		[]string{"error_type"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "review_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_circuit_breaker_transitions_total",
			Help: "Total circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Metrics & settings store
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "review_store_operation_duration_seconds",
			Help:    "Duration of store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "record"},
	)

	StoreLoadFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_store_load_failures_total",
			Help: "Total degraded-to-default record loads",
		},
		[]string{"record"},
	)

	// Configuration manager
	ConfigUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_config_updates_total",
			Help: "Total configuration updates by source",
		},
		[]string{"source"},
	)

	ConfigListenerErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "review_config_listener_errors_total",
			Help: "Total listener failures during configuration change notification",
		},
	)

	// Orchestrator
	PromptsShown = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_prompts_shown_total",
			Help: "Total review prompts actually shown, by trigger kind",
		},
		[]string{"trigger"},
	)

	// Admin API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_api_requests_total",
			Help: "Total admin API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)
)
