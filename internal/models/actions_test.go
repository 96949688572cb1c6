// ReviewPulse - Adaptive Review Prompt Orchestration for the Mealprint shell
// Copyright 2026 Mealprint Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mealprint/reviewpulse

package models

import (
	"testing"
	"time"
)

func TestParseUserAction(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 8, 15, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name       string
		actionType string
		metadata   map[string]any
		want       UserAction
	}{
		{
			name:       "app open",
			actionType: "app_open",
			want:       AppOpened{At: at},
		},
		{
			name:       "food log",
			actionType: "successful_food_log",
			want:       FoodLogged{},
		},
		{
			name:       "milestone with id",
			actionType: "milestone_achieved",
			metadata:   map[string]any{"milestone_id": "first_week_complete"},
			want:       MilestoneAchieved{ID: "first_week_complete"},
		},
		{
			name:       "milestone without id degrades",
			actionType: "milestone_achieved",
			want:       Unrecognized{Type: "milestone_achieved"},
		},
		{
			name:       "streak from json number",
			actionType: "streak_updated",
			metadata:   map[string]any{"streak_days": float64(7)},
			want:       StreakUpdated{Days: 7},
		},
		{
			name:       "negative streak degrades",
			actionType: "streak_updated",
			metadata:   map[string]any{"streak_days": float64(-2)},
			want:       Unrecognized{Type: "streak_updated"},
		},
		{
			name:       "review action",
			actionType: "review_action",
			metadata:   map[string]any{"action": "DISMISSED"},
			want:       ReviewActionTaken{Action: ReviewDismissed},
		},
		{
			name:       "unknown review action degrades",
			actionType: "review_action",
			metadata:   map[string]any{"action": "SHRUGGED"},
			want:       Unrecognized{Type: "review_action"},
		},
		{
			name:       "session time",
			actionType: "session_time",
			metadata:   map[string]any{"minutes": float64(25)},
			want:       SessionEnded{Minutes: 25},
		},
		{
			name:       "unknown type",
			actionType: "screen_rotated",
			want:       Unrecognized{Type: "screen_rotated"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ParseUserAction(tt.actionType, at, tt.metadata)
			if got != tt.want {
				t.Errorf("ParseUserAction(%s) = %#v, want %#v", tt.actionType, got, tt.want)
			}
		})
	}
}

func TestParseUserActionZeroTimestamp(t *testing.T) {
	t.Parallel()

	got := ParseUserAction("app_open", time.Time{}, nil)
	opened, ok := got.(AppOpened)
	if !ok {
		t.Fatalf("ParseUserAction = %#v, want AppOpened", got)
	}
	if opened.At.IsZero() {
		t.Error("zero timestamp not replaced with now")
	}
}
