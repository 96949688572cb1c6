// ReviewPulse - Adaptive Review Prompt Orchestration for the Mealprint shell
// Copyright 2026 Mealprint Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mealprint/reviewpulse

package models

// TriggerKind names an occasion that may warrant asking the user for a
// review. Values are stored as strings in both durable records and
// analytics events, so they must remain stable.
type TriggerKind string

const (
	TriggerAppOpen           TriggerKind = "APP_OPEN"
	TriggerSuccessfulFoodLog TriggerKind = "SUCCESSFUL_FOOD_LOG"
	TriggerMilestoneAchieved TriggerKind = "MILESTONE_ACHIEVED"
	TriggerStreakMilestone   TriggerKind = "STREAK_MILESTONE"
	TriggerGoalCompleted     TriggerKind = "GOAL_COMPLETED"
)

// AllTriggerKinds lists every recognized trigger kind.
var AllTriggerKinds = []TriggerKind{
	TriggerAppOpen,
	TriggerSuccessfulFoodLog,
	TriggerMilestoneAchieved,
	TriggerStreakMilestone,
	TriggerGoalCompleted,
}

// Valid reports whether k is a recognized trigger kind.
func (k TriggerKind) Valid() bool {
	switch k {
	case TriggerAppOpen, TriggerSuccessfulFoodLog, TriggerMilestoneAchieved,
		TriggerStreakMilestone, TriggerGoalCompleted:
		return true
	default:
		return false
	}
}

// ReviewAction is the terminal outcome of a review request.
type ReviewAction string

const (
	ReviewCompleted    ReviewAction = "COMPLETED"
	ReviewDismissed    ReviewAction = "DISMISSED"
	ReviewError        ReviewAction = "ERROR"
	ReviewNotAvailable ReviewAction = "NOT_AVAILABLE"
)

// Valid reports whether a is a recognized review action.
func (a ReviewAction) Valid() bool {
	switch a {
	case ReviewCompleted, ReviewDismissed, ReviewError, ReviewNotAvailable:
		return true
	default:
		return false
	}
}

// ChangeSource identifies what initiated a configuration change.
type ChangeSource string

const (
	SourceUser        ChangeSource = "user"
	SourceSystem      ChangeSource = "system"
	SourceDevOverride ChangeSource = "dev_override"
	SourceReset       ChangeSource = "reset"
)
