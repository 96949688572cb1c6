// ReviewPulse - Adaptive Review Prompt Orchestration for the Mealprint shell
// Copyright 2026 Mealprint Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mealprint/reviewpulse

// Package models defines the domain types shared across the review engine:
// trigger kinds, review actions, user engagement metrics, the two
// configuration representations (flat settings for storage, structured
// config for decision time), evaluation inputs and verdicts, categorized
// review errors, and the tagged user-action variants consumed by the
// trigger engine's metrics-update rules.
//
// Everything here is plain data. Behavior lives in the packages that
// consume these types (internal/store, internal/config, internal/trigger,
// internal/gateway, internal/review).
package models
