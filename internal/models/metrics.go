// ReviewPulse - Adaptive Review Prompt Orchestration for the Mealprint shell
// Copyright 2026 Mealprint Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mealprint/reviewpulse

package models

import "time"

// UserMetrics is the durable engagement record for a single user.
// All counters are non-negative; timestamps are serialized as RFC 3339.
// LastReviewPrompt is deliberately a pointer: "never prompted" and
// "prompted at the zero time" are different things, and trigger
// eligibility depends on the distinction.
type UserMetrics struct {
	AppOpenCount       int      `json:"app_open_count"`
	SuccessfulFoodLogs int      `json:"successful_food_logs"`
	StreakDays         int      `json:"streak_days"`
	TotalSessionTime   int      `json:"total_session_time"` // minutes
	PromptsShown       int      `json:"prompts_shown"`
	MilestonesAchieved []string `json:"milestones_achieved"`

	FirstAppOpen     time.Time    `json:"first_app_open"`
	LastAppOpen      time.Time    `json:"last_app_open"`
	LastReviewPrompt *time.Time   `json:"last_review_prompt,omitempty"`
	LastReviewAction ReviewAction `json:"last_review_action,omitempty"`
}

// NewUserMetrics returns a fully-defaulted record for a first-time user.
func NewUserMetrics(now time.Time) UserMetrics {
	return UserMetrics{
		MilestonesAchieved: []string{},
		FirstAppOpen:       now,
		LastAppOpen:        now,
	}
}

// HasMilestone reports whether the milestone id is already recorded.
func (m *UserMetrics) HasMilestone(id string) bool {
	for _, have := range m.MilestonesAchieved {
		if have == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy. Callers that hand metrics to external code
// must clone first so the cached record cannot be mutated behind the
// store's back.
func (m UserMetrics) Clone() UserMetrics {
	out := m
	out.MilestonesAchieved = append([]string(nil), m.MilestonesAchieved...)
	if m.LastReviewPrompt != nil {
		t := *m.LastReviewPrompt
		out.LastReviewPrompt = &t
	}
	return out
}

// MetricsPatch is a partial UserMetrics update. Nil fields are left
// untouched by the merge; AddMilestone appends rather than replaces.
type MetricsPatch struct {
	AppOpenCount       *int          `json:"app_open_count,omitempty"`
	SuccessfulFoodLogs *int          `json:"successful_food_logs,omitempty"`
	StreakDays         *int          `json:"streak_days,omitempty"`
	TotalSessionTime   *int          `json:"total_session_time,omitempty"`
	PromptsShown       *int          `json:"prompts_shown,omitempty"`
	AddMilestone       string        `json:"add_milestone,omitempty"`
	LastAppOpen        *time.Time    `json:"last_app_open,omitempty"`
	LastReviewPrompt   *time.Time    `json:"last_review_prompt,omitempty"`
	LastReviewAction   *ReviewAction `json:"last_review_action,omitempty"`
}

// Apply merges the patch onto m. Counters clamp at zero so a malformed
// patch can never produce a negative durable value.
func (p MetricsPatch) Apply(m *UserMetrics) {
	if p.AppOpenCount != nil {
		m.AppOpenCount = clampNonNegative(*p.AppOpenCount)
	}
	if p.SuccessfulFoodLogs != nil {
		m.SuccessfulFoodLogs = clampNonNegative(*p.SuccessfulFoodLogs)
	}
	if p.StreakDays != nil {
		m.StreakDays = clampNonNegative(*p.StreakDays)
	}
	if p.TotalSessionTime != nil {
		m.TotalSessionTime = clampNonNegative(*p.TotalSessionTime)
	}
	if p.PromptsShown != nil {
		m.PromptsShown = clampNonNegative(*p.PromptsShown)
	}
	if p.AddMilestone != "" && !m.HasMilestone(p.AddMilestone) {
		m.MilestonesAchieved = append(m.MilestonesAchieved, p.AddMilestone)
	}
	if p.LastAppOpen != nil {
		m.LastAppOpen = *p.LastAppOpen
	}
	if p.LastReviewPrompt != nil {
		t := *p.LastReviewPrompt
		m.LastReviewPrompt = &t
	}
	if p.LastReviewAction != nil {
		m.LastReviewAction = *p.LastReviewAction
	}
}

func clampNonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
