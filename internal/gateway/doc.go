// ReviewPulse - Adaptive Review Prompt Orchestration for the Mealprint shell
// Copyright 2026 Mealprint Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mealprint/reviewpulse

// Package gateway wraps the platform rating surface with the
// resilience the native layer lacks: a TTL availability cache, a
// single-flight guard, a rate limiter, a circuit breaker, categorized
// errors with per-category retry policy, and a store-listing fallback.
//
// Retry policy: only PLAY_SERVICES_UNAVAILABLE and UNKNOWN_ERROR are
// retried within a session; NETWORK_ERROR and API_RATE_LIMIT surface
// immediately as ERROR since another attempt seconds later is unlikely
// to land. The fallback_on_all_errors knob widens the store-listing
// fallback to every category without changing the retry set.
package gateway
