// ReviewPulse - Adaptive Review Prompt Orchestration for the Mealprint shell
// Copyright 2026 Mealprint Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mealprint/reviewpulse

package models

import "time"

// ReviewSettings is the flat configuration record used for storage.
// It is the persisted middle layer of the three-layer model
// (defaults, persisted settings, developer overrides).
type ReviewSettings struct {
	MinimumAppOpens   int           `json:"minimum_app_opens"`
	CooldownDays      int           `json:"cooldown_days"`
	EnabledTriggers   []TriggerKind `json:"enabled_triggers"`
	DebugMode         bool          `json:"debug_mode"`
	MaxPromptsPerUser int           `json:"max_prompts_per_user"`
}

// Clone returns a deep copy.
func (s ReviewSettings) Clone() ReviewSettings {
	out := s
	out.EnabledTriggers = append([]TriggerKind(nil), s.EnabledTriggers...)
	return out
}

// TriggerEnabled reports whether the kind is present in the enabled set.
func (s *ReviewSettings) TriggerEnabled(kind TriggerKind) bool {
	for _, k := range s.EnabledTriggers {
		if k == kind {
			return true
		}
	}
	return false
}

// SettingsPatch is a partial ReviewSettings update. Nil fields are left
// untouched. Numeric fields are clamped to their floor by the
// configuration manager before persisting, not rejected.
type SettingsPatch struct {
	MinimumAppOpens   *int           `json:"minimum_app_opens,omitempty"`
	CooldownDays      *int           `json:"cooldown_days,omitempty"`
	EnabledTriggers   *[]TriggerKind `json:"enabled_triggers,omitempty" validate:"omitempty,dive,triggerkind"`
	DebugMode         *bool          `json:"debug_mode,omitempty"`
	MaxPromptsPerUser *int           `json:"max_prompts_per_user,omitempty"`
}

// IsZero reports whether the patch changes nothing.
func (p SettingsPatch) IsZero() bool {
	return p.MinimumAppOpens == nil && p.CooldownDays == nil &&
		p.EnabledTriggers == nil && p.DebugMode == nil && p.MaxPromptsPerUser == nil
}

// TriggerSettings holds the kind-specific thresholds used at decision
// time. Only the fields relevant to a given kind are populated:
// MinimumCount for APP_OPEN and SUCCESSFUL_FOOD_LOG, MilestoneIDs for
// MILESTONE_ACHIEVED, StreakDays for STREAK_MILESTONE. GOAL_COMPLETED
// carries no thresholds.
type TriggerSettings struct {
	MinimumCount int      `json:"minimum_count,omitempty"`
	MilestoneIDs []string `json:"milestone_ids,omitempty"`
	StreakDays   []int    `json:"streak_days,omitempty"`
}

// Clone returns a deep copy.
func (t TriggerSettings) Clone() TriggerSettings {
	out := t
	out.MilestoneIDs = append([]string(nil), t.MilestoneIDs...)
	out.StreakDays = append([]int(nil), t.StreakDays...)
	return out
}

// TriggerSettingsPatch is a shallow partial update for one trigger's
// settings, used by developer overrides.
type TriggerSettingsPatch struct {
	MinimumCount *int      `json:"minimum_count,omitempty"`
	MilestoneIDs *[]string `json:"milestone_ids,omitempty"`
	StreakDays   *[]int    `json:"streak_days,omitempty"`
}

// Apply merges the patch onto t.
func (p TriggerSettingsPatch) Apply(t *TriggerSettings) {
	if p.MinimumCount != nil {
		t.MinimumCount = *p.MinimumCount
	}
	if p.MilestoneIDs != nil {
		t.MilestoneIDs = append([]string(nil), *p.MilestoneIDs...)
	}
	if p.StreakDays != nil {
		t.StreakDays = append([]int(nil), *p.StreakDays...)
	}
}

// ReviewConfig is the structured configuration record used at decision
// time. The configuration manager owns the lossy two-way conversion
// between ReviewConfig and ReviewSettings.
type ReviewConfig struct {
	Triggers          map[TriggerKind]TriggerSettings `json:"triggers"`
	CooldownPeriod    time.Duration                   `json:"cooldown_period"`
	MaxPromptsPerUser int                             `json:"max_prompts_per_user"`
	DebugMode         bool                            `json:"debug_mode"`
}

// Clone returns a deep copy.
func (c ReviewConfig) Clone() ReviewConfig {
	out := c
	out.Triggers = make(map[TriggerKind]TriggerSettings, len(c.Triggers))
	for k, v := range c.Triggers {
		out.Triggers[k] = v.Clone()
	}
	return out
}

// TriggerEnabled reports whether the kind has an entry in the trigger map.
func (c *ReviewConfig) TriggerEnabled(kind TriggerKind) bool {
	_, ok := c.Triggers[kind]
	return ok
}

// DevOverrides is the non-persisted, debug-only configuration layer.
// It takes precedence over persisted settings and is applied without a
// durable write.
type DevOverrides struct {
	ForceShow               bool                                 `json:"force_show,omitempty"`
	SkipCooldown            bool                                 `json:"skip_cooldown,omitempty"`
	OverrideMinimumAppOpens *int                                 `json:"override_minimum_app_opens,omitempty"`
	TriggerOverrides        map[TriggerKind]TriggerSettingsPatch `json:"trigger_overrides,omitempty" validate:"omitempty,dive,keys,triggerkind,endkeys"`
	VerboseLogging          bool                                 `json:"verbose_logging,omitempty"`
	SimulateErrors          bool                                 `json:"simulate_errors,omitempty"`
}

// ConfigHistoryEntry records one configuration change. The history is
// append-only and capped; oldest entries are dropped first.
type ConfigHistoryEntry struct {
	Timestamp time.Time     `json:"timestamp"`
	Changes   SettingsPatch `json:"changes"`
	Source    ChangeSource  `json:"source"`
	Reason    string        `json:"reason"`
}
