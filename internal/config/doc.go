// ReviewPulse - Adaptive Review Prompt Orchestration for the Mealprint shell
// Copyright 2026 Mealprint Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mealprint/reviewpulse

// Package config owns two distinct configuration surfaces.
//
// The daemon configuration (Config, LoadWithKoanf) is the process-level
// settings block: listen address, data directory, bridge URL, gateway
// tuning, logging. It is loaded once at startup from layered sources
// (built-in defaults, optional YAML file, environment variables) and is
// immutable afterwards.
//
// The review configuration (Manager) is the runtime three-layer model
// that drives prompt decisions: shipped defaults, persisted settings,
// and unpersisted developer overrides. The effective configuration is
// recomputed from the three layers on every read, so clearing an
// override can never leave a stale merged value behind.
package config
