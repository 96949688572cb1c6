// ReviewPulse - Adaptive Review Prompt Orchestration for the Mealprint shell
// Copyright 2026 Mealprint Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mealprint/reviewpulse

package models

import "time"

// UserAction is a closed set of recognized user actions. Each variant
// carries exactly the payload its metrics-update rule needs, which
// removes the stringly-typed metadata lookups the shell-side protocol
// uses. Unrecognized inbound actions map to Unrecognized, which is a
// guaranteed no-op for the trigger engine.
type UserAction interface {
	// ActionType returns the wire name of the action, used for
	// analytics and logging.
	ActionType() string

	isUserAction()
}

// AppOpened increments the app-open counter and stamps the last open.
type AppOpened struct {
	At time.Time
}

// FoodLogged increments the successful-food-log counter.
type FoodLogged struct{}

// MilestoneAchieved appends a milestone id; duplicates are a no-op with
// no store write.
type MilestoneAchieved struct {
	ID string
}

// StreakUpdated overwrites the current streak length.
type StreakUpdated struct {
	Days int
}

// ReviewPromptShown stamps the last review prompt time and bumps the
// prompt counter.
type ReviewPromptShown struct {
	At time.Time
}

// ReviewActionTaken records the user's response to the last prompt.
type ReviewActionTaken struct {
	Action ReviewAction
}

// SessionEnded adds the session length to the total session time.
type SessionEnded struct {
	Minutes int
}

// Unrecognized is any inbound action the engine does not know, or a
// known action missing its required metadata. It never writes.
type Unrecognized struct {
	Type string
}

func (AppOpened) ActionType() string         { return "app_open" }
func (FoodLogged) ActionType() string        { return "successful_food_log" }
func (MilestoneAchieved) ActionType() string { return "milestone_achieved" }
func (StreakUpdated) ActionType() string     { return "streak_updated" }
func (ReviewPromptShown) ActionType() string { return "review_prompt_shown" }
func (ReviewActionTaken) ActionType() string { return "review_action" }
func (SessionEnded) ActionType() string      { return "session_time" }
func (a Unrecognized) ActionType() string    { return a.Type }

func (AppOpened) isUserAction()         {}
func (FoodLogged) isUserAction()        {}
func (MilestoneAchieved) isUserAction() {}
func (StreakUpdated) isUserAction()     {}
func (ReviewPromptShown) isUserAction() {}
func (ReviewActionTaken) isUserAction() {}
func (SessionEnded) isUserAction()      {}
func (Unrecognized) isUserAction()      {}

// ParseUserAction maps the shell bridge's {type, timestamp, metadata}
// envelope onto a typed variant. A known type with missing or malformed
// required metadata degrades to Unrecognized rather than erroring: the
// caller recorded a user gesture, not a request that can fail.
func ParseUserAction(actionType string, at time.Time, metadata map[string]any) UserAction {
	if at.IsZero() {
		at = time.Now()
	}
	switch actionType {
	case "app_open":
		return AppOpened{At: at}
	case "successful_food_log":
		return FoodLogged{}
	case "milestone_achieved":
		id, ok := metadata["milestone_id"].(string)
		if !ok || id == "" {
			return Unrecognized{Type: actionType}
		}
		return MilestoneAchieved{ID: id}
	case "streak_updated":
		days, ok := metadataInt(metadata, "streak_days")
		if !ok || days < 0 {
			return Unrecognized{Type: actionType}
		}
		return StreakUpdated{Days: days}
	case "review_prompt_shown":
		return ReviewPromptShown{At: at}
	case "review_action":
		raw, _ := metadata["action"].(string)
		action := ReviewAction(raw)
		if !action.Valid() {
			return Unrecognized{Type: actionType}
		}
		return ReviewActionTaken{Action: action}
	case "session_time":
		minutes, ok := metadataInt(metadata, "minutes")
		if !ok || minutes < 0 {
			return Unrecognized{Type: actionType}
		}
		return SessionEnded{Minutes: minutes}
	default:
		return Unrecognized{Type: actionType}
	}
}

// metadataInt reads an integer out of decoded JSON metadata, where
// numbers arrive as float64.
func metadataInt(metadata map[string]any, key string) (int, bool) {
	switch v := metadata[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}
