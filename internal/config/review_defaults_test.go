// ReviewPulse - Adaptive Review Prompt Orchestration for the Mealprint shell
// Copyright 2026 Mealprint Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mealprint/reviewpulse

package config

import (
	"reflect"
	"testing"
	"time"

	"github.com/mealprint/reviewpulse/internal/models"
)

func TestDefaultFlatAndStructuredAgree(t *testing.T) {
	t.Parallel()

	flat := flatFromStructured(DefaultReviewConfig())
	want := models.DefaultReviewSettings()
	if !reflect.DeepEqual(flat, want) {
		t.Errorf("projected defaults = %+v, want %+v", flat, want)
	}
}

func TestFlatStructuredRoundTrip(t *testing.T) {
	t.Parallel()

	in := models.ReviewSettings{
		MinimumAppOpens:   12,
		CooldownDays:      21,
		EnabledTriggers:   []models.TriggerKind{models.TriggerAppOpen, models.TriggerStreakMilestone},
		DebugMode:         true,
		MaxPromptsPerUser: 2,
	}

	out := flatFromStructured(structuredFromFlat(in))
	if out.MinimumAppOpens != in.MinimumAppOpens {
		t.Errorf("MinimumAppOpens = %d, want %d", out.MinimumAppOpens, in.MinimumAppOpens)
	}
	if out.CooldownDays != in.CooldownDays {
		t.Errorf("CooldownDays = %d, want %d", out.CooldownDays, in.CooldownDays)
	}
	if !reflect.DeepEqual(out.EnabledTriggers, in.EnabledTriggers) {
		t.Errorf("EnabledTriggers = %v, want %v", out.EnabledTriggers, in.EnabledTriggers)
	}
	if out.DebugMode != in.DebugMode || out.MaxPromptsPerUser != in.MaxPromptsPerUser {
		t.Errorf("round trip changed flags: %+v", out)
	}
}

func TestStructuredFromFlatKeepsShippedThresholds(t *testing.T) {
	t.Parallel()

	flat := models.DefaultReviewSettings()
	flat.MinimumAppOpens = 3

	cfg := structuredFromFlat(flat)
	if cfg.Triggers[models.TriggerAppOpen].MinimumCount != 3 {
		t.Errorf("APP_OPEN minimum = %d, want 3", cfg.Triggers[models.TriggerAppOpen].MinimumCount)
	}
	if cfg.Triggers[models.TriggerSuccessfulFoodLog].MinimumCount != defaultFoodLogMinimum {
		t.Error("food-log threshold drifted from the shipped value")
	}
	if cfg.CooldownPeriod != time.Duration(flat.CooldownDays)*24*time.Hour {
		t.Errorf("CooldownPeriod = %v", cfg.CooldownPeriod)
	}
}
