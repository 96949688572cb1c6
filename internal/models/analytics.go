// ReviewPulse - Adaptive Review Prompt Orchestration for the Mealprint shell
// Copyright 2026 Mealprint Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mealprint/reviewpulse

package models

import "time"

// AnalyticsEvent is one entry in the recorder's append-only log.
// Events are correlated by the recorder's per-instance session id.
type AnalyticsEvent struct {
	EventType string            `json:"event_type"`
	Timestamp time.Time         `json:"timestamp"`
	SessionID string            `json:"session_id"`
	Context   *ReviewContext    `json:"context,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}
