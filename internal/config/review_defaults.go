// ReviewPulse - Adaptive Review Prompt Orchestration for the Mealprint shell
// Copyright 2026 Mealprint Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mealprint/reviewpulse

package config

import (
	"time"

	"github.com/mealprint/reviewpulse/internal/models"
)

// Shipped per-trigger thresholds. These are the bottom layer of the
// three-layer model and never change at runtime.
var (
	defaultFoodLogMinimum = 5
	defaultMilestoneIDs   = []string{
		"first_week_complete",
		"first_month_complete",
		"goal_weight_reached",
		"hundred_meals_logged",
	}
	defaultStreakDays = []int{7, 30, 100}
)

// DefaultReviewConfig returns the shipped structured configuration with
// every trigger kind enabled.
func DefaultReviewConfig() models.ReviewConfig {
	return models.ReviewConfig{
		Triggers: map[models.TriggerKind]models.TriggerSettings{
			models.TriggerAppOpen: {
				MinimumCount: models.DefaultMinimumAppOpens,
			},
			models.TriggerSuccessfulFoodLog: {
				MinimumCount: defaultFoodLogMinimum,
			},
			models.TriggerMilestoneAchieved: {
				MilestoneIDs: append([]string(nil), defaultMilestoneIDs...),
			},
			models.TriggerStreakMilestone: {
				StreakDays: append([]int(nil), defaultStreakDays...),
			},
			models.TriggerGoalCompleted: {},
		},
		CooldownPeriod:    time.Duration(models.DefaultCooldownDays) * 24 * time.Hour,
		MaxPromptsPerUser: models.DefaultMaxPromptsPerUser,
		DebugMode:         false,
	}
}

// structuredFromFlat builds the decision-time ReviewConfig from a flat
// settings record. The conversion is lossy on purpose: the flat record
// carries only the APP_OPEN minimum, so the other kinds keep their
// shipped thresholds and the flat record decides which kinds exist at
// all.
func structuredFromFlat(s models.ReviewSettings) models.ReviewConfig {
	base := DefaultReviewConfig()

	out := models.ReviewConfig{
		Triggers:          make(map[models.TriggerKind]models.TriggerSettings, len(s.EnabledTriggers)),
		CooldownPeriod:    time.Duration(s.CooldownDays) * 24 * time.Hour,
		MaxPromptsPerUser: s.MaxPromptsPerUser,
		DebugMode:         s.DebugMode,
	}
	for _, kind := range s.EnabledTriggers {
		ts, ok := base.Triggers[kind]
		if !ok {
			continue
		}
		if kind == models.TriggerAppOpen {
			ts.MinimumCount = s.MinimumAppOpens
		}
		out.Triggers[kind] = ts.Clone()
	}
	return out
}

// flatFromStructured projects a structured configuration back onto the
// flat storage form.
func flatFromStructured(c models.ReviewConfig) models.ReviewSettings {
	enabled := make([]models.TriggerKind, 0, len(c.Triggers))
	for _, kind := range models.AllTriggerKinds {
		if _, ok := c.Triggers[kind]; ok {
			enabled = append(enabled, kind)
		}
	}

	minOpens := models.DefaultMinimumAppOpens
	if ts, ok := c.Triggers[models.TriggerAppOpen]; ok && ts.MinimumCount > 0 {
		minOpens = ts.MinimumCount
	}

	return models.ReviewSettings{
		MinimumAppOpens:   minOpens,
		CooldownDays:      int(c.CooldownPeriod / (24 * time.Hour)),
		EnabledTriggers:   enabled,
		DebugMode:         c.DebugMode,
		MaxPromptsPerUser: c.MaxPromptsPerUser,
	}
}
