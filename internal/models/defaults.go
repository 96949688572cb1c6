// ReviewPulse - Adaptive Review Prompt Orchestration for the Mealprint shell
// Copyright 2026 Mealprint Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mealprint/reviewpulse

package models

// Shipped defaults for the flat settings record. The store falls back
// to these when a persisted record is missing or unreadable, and the
// configuration manager uses them as the bottom layer of the merge.
const (
	DefaultMinimumAppOpens   = 10
	DefaultCooldownDays      = 30
	DefaultMaxPromptsPerUser = 3
)

// DefaultReviewSettings returns the shipped settings record with every
// trigger enabled.
func DefaultReviewSettings() ReviewSettings {
	return ReviewSettings{
		MinimumAppOpens:   DefaultMinimumAppOpens,
		CooldownDays:      DefaultCooldownDays,
		EnabledTriggers:   append([]TriggerKind(nil), AllTriggerKinds...),
		DebugMode:         false,
		MaxPromptsPerUser: DefaultMaxPromptsPerUser,
	}
}
