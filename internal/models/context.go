// ReviewPulse - Adaptive Review Prompt Orchestration for the Mealprint shell
// Copyright 2026 Mealprint Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mealprint/reviewpulse

package models

import "time"

// AppState is the shell's snapshot of what the user is looking at when a
// trigger fires. Constructed per evaluation, never persisted.
type AppState struct {
	IsLoading        bool      `json:"is_loading"`
	HasErrors        bool      `json:"has_errors"`
	CurrentScreen    string    `json:"current_screen"`
	SessionStartTime time.Time `json:"session_start_time"`
}

// ReviewContext is the full input to one trigger evaluation.
type ReviewContext struct {
	Trigger   TriggerKind `json:"trigger"`
	UserState UserMetrics `json:"user_state"`
	AppState  AppState    `json:"app_state"`
}

// TriggerResult is the typed verdict of one evaluation. NextEligibleTime
// is set only when the cooldown gate blocked the trigger.
type TriggerResult struct {
	ShouldTrigger    bool       `json:"should_trigger"`
	Reason           string     `json:"reason"`
	Confidence       float64    `json:"confidence"`
	NextEligibleTime *time.Time `json:"next_eligible_time,omitempty"`
}

// ReviewResult is the outcome of one gateway invocation. Err carries a
// message, and ErrorType its category, only when the invocation failed.
type ReviewResult struct {
	Success   bool         `json:"success"`
	Action    ReviewAction `json:"action"`
	ErrorType ErrorType    `json:"error_type,omitempty"`
	Err       string       `json:"error,omitempty"`
}
