// ReviewPulse - Adaptive Review Prompt Orchestration for the Mealprint shell
// Copyright 2026 Mealprint Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mealprint/reviewpulse

package store

import (
	"context"
	"math"
	"time"

	"github.com/goccy/go-json"

	"github.com/mealprint/reviewpulse/internal/logging"
	"github.com/mealprint/reviewpulse/internal/metrics"
	"github.com/mealprint/reviewpulse/internal/models"
)

// sanitizeMetrics turns a stored payload of unknown quality into a
// valid UserMetrics record. The payload may predate this engine or have
// been written by a buggy shell build, so every field is coerced
// individually rather than trusting the decoder.
func sanitizeMetrics(ctx context.Context, data []byte, now time.Time) models.UserMetrics {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		metrics.StoreLoadFailures.WithLabelValues("user_metrics").Inc()
		logging.Ctx(ctx).Warn().Err(err).Msg("User metrics payload unreadable, using defaults")
		return models.NewUserMetrics(now)
	}

	m := models.UserMetrics{
		AppOpenCount:       asCounter(raw["app_open_count"]),
		SuccessfulFoodLogs: asCounter(raw["successful_food_logs"]),
		StreakDays:         asCounter(raw["streak_days"]),
		TotalSessionTime:   asCounter(raw["total_session_time"]),
		PromptsShown:       asCounter(raw["prompts_shown"]),
		MilestonesAchieved: asStringSet(raw["milestones_achieved"]),

		// First/last open fall back to "now": a user whose record we
		// cannot date is treated as freshly seen.
		FirstAppOpen: asTime(raw["first_app_open"], now),
		LastAppOpen:  asTime(raw["last_app_open"], now),

		// The prompt timestamp falls back to "unset" instead: it gates
		// eligibility and must default to "never prompted".
		LastReviewPrompt: asTimePtr(raw["last_review_prompt"]),
		LastReviewAction: asReviewAction(raw["last_review_action"]),
	}
	return m
}

// sanitizeSettings turns a stored settings payload into a valid record.
// Unlike update-time validation (which clamps to a floor), read-time
// repair reverts invalid values to the shipped default: stored
// corruption means the original intent is unknowable.
func sanitizeSettings(ctx context.Context, data []byte) models.ReviewSettings {
	defaults := models.DefaultReviewSettings()

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		metrics.StoreLoadFailures.WithLabelValues("review_settings").Inc()
		logging.Ctx(ctx).Warn().Err(err).Msg("Review settings payload unreadable, using defaults")
		return defaults
	}

	out := models.ReviewSettings{
		MinimumAppOpens:   asPositiveOr(raw["minimum_app_opens"], defaults.MinimumAppOpens),
		CooldownDays:      asNonNegativeOr(raw["cooldown_days"], defaults.CooldownDays),
		EnabledTriggers:   asTriggerSet(raw["enabled_triggers"], defaults.EnabledTriggers),
		DebugMode:         asBool(raw["debug_mode"]),
		MaxPromptsPerUser: asPositiveOr(raw["max_prompts_per_user"], defaults.MaxPromptsPerUser),
	}
	return out
}

// asCounter coerces any JSON value to a non-negative int. Non-numeric
// values, NaN, and negatives become 0.
func asCounter(v any) int {
	f, ok := asFloat(v)
	if !ok || math.IsNaN(f) || f < 0 {
		return 0
	}
	return int(f)
}

// asPositiveOr coerces to an int >= 1, reverting to def otherwise.
func asPositiveOr(v any, def int) int {
	f, ok := asFloat(v)
	if !ok || math.IsNaN(f) || f < 1 {
		return def
	}
	return int(f)
}

// asNonNegativeOr coerces to an int >= 0, reverting to def otherwise.
func asNonNegativeOr(v any, def int) int {
	f, ok := asFloat(v)
	if !ok || math.IsNaN(f) || f < 0 {
		return def
	}
	return int(f)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

// asStringSet coerces to a duplicate-free string slice. A value that is
// not an array becomes empty.
func asStringSet(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(arr))
	seen := make(map[string]struct{}, len(arr))
	for _, el := range arr {
		s, ok := el.(string)
		if !ok || s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// asTriggerSet keeps only recognized trigger kinds. A missing or
// non-array field reverts to the shipped default set.
func asTriggerSet(v any, def []models.TriggerKind) []models.TriggerKind {
	arr, ok := v.([]any)
	if !ok {
		return append([]models.TriggerKind(nil), def...)
	}
	out := make([]models.TriggerKind, 0, len(arr))
	for _, el := range arr {
		s, ok := el.(string)
		if !ok {
			continue
		}
		kind := models.TriggerKind(s)
		if kind.Valid() {
			out = append(out, kind)
		}
	}
	return out
}

// asTime parses an RFC 3339 string, falling back to def.
func asTime(v any, def time.Time) time.Time {
	s, ok := v.(string)
	if !ok {
		return def
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return def
	}
	return t
}

// asTimePtr parses an RFC 3339 string, falling back to nil ("unset").
func asTimePtr(v any) *time.Time {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

// asReviewAction keeps only recognized actions; anything else is unset.
func asReviewAction(v any) models.ReviewAction {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	action := models.ReviewAction(s)
	if !action.Valid() {
		return ""
	}
	return action
}
