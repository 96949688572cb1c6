// ReviewPulse - Adaptive Review Prompt Orchestration for the Mealprint shell
// Copyright 2026 Mealprint Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mealprint/reviewpulse

package trigger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mealprint/reviewpulse/internal/config"
	"github.com/mealprint/reviewpulse/internal/logging"
	"github.com/mealprint/reviewpulse/internal/metrics"
	"github.com/mealprint/reviewpulse/internal/models"
	"github.com/mealprint/reviewpulse/internal/store"
)

// ErrNotInitialized is returned when Evaluate or Apply runs before a
// successful Initialize.
var ErrNotInitialized = errors.New("trigger engine not initialized")

// restrictedScreens lists screens where a review prompt must never
// interrupt the user.
var restrictedScreens = map[string]struct{}{
	"onboarding": {},
	"signup":     {},
	"error":      {},
	"paywall":    {},
}

// Engine evaluates review triggers against user metrics and the
// effective configuration.
type Engine struct {
	store *store.Store
	cfg   *config.Manager

	mu          sync.RWMutex
	initialized bool

	// now is swappable for tests.
	now func() time.Time
}

// New creates an uninitialized engine.
func New(s *store.Store, cfg *config.Manager) *Engine {
	return &Engine{store: s, cfg: cfg, now: time.Now}
}

// Initialize loads the durable records. Re-entrant calls are no-ops; a
// load failure leaves the engine uninitialized and is returned.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.initialized {
		return nil
	}
	if err := e.store.Load(ctx); err != nil {
		return fmt.Errorf("initialize trigger engine: %w", err)
	}
	e.initialized = true
	logging.Ctx(ctx).Info().Msg("Trigger engine initialized")
	return nil
}

// Initialized reports whether Initialize has succeeded.
func (e *Engine) Initialized() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.initialized
}

// Evaluate runs the gate sequence for one trigger occasion. The first
// failing gate determines the verdict; confidence is computed only when
// every gate passes.
func (e *Engine) Evaluate(ctx context.Context, rc models.ReviewContext) (models.TriggerResult, error) {
	start := e.now()
	defer func() {
		metrics.TriggerEvaluationDuration.Observe(e.now().Sub(start).Seconds())
	}()

	if !e.Initialized() {
		return models.TriggerResult{}, ErrNotInitialized
	}

	cfg := e.cfg.EffectiveConfig(ctx)
	overrides, hasOverrides := e.cfg.Overrides()

	result := e.evaluate(rc, cfg, overrides, hasOverrides)

	verdict := "blocked"
	if result.ShouldTrigger {
		verdict = "triggered"
	}
	metrics.TriggerEvaluations.WithLabelValues(string(rc.Trigger), verdict).Inc()
	logging.Ctx(ctx).Debug().
		Str("trigger", string(rc.Trigger)).
		Bool("should_trigger", result.ShouldTrigger).
		Str("reason", result.Reason).
		Float64("confidence", result.Confidence).
		Msg("Trigger evaluated")

	return result, nil
}

func (e *Engine) evaluate(rc models.ReviewContext, cfg models.ReviewConfig, o models.DevOverrides, hasOverrides bool) models.TriggerResult {
	if hasOverrides && o.ForceShow {
		return models.TriggerResult{
			ShouldTrigger: true,
			Reason:        "forced by developer override",
			Confidence:    1.0,
		}
	}

	m := &rc.UserState

	// Gate 1: trigger enabled.
	ts, enabled := cfg.Triggers[rc.Trigger]
	if !enabled {
		return blocked("trigger disabled")
	}

	// Gates 2-4: app state.
	if rc.AppState.IsLoading {
		return blocked("app is loading")
	}
	if rc.AppState.HasErrors {
		return blocked("app has active errors")
	}
	if _, restricted := restrictedScreens[rc.AppState.CurrentScreen]; restricted {
		return blocked(fmt.Sprintf("restricted screen: %s", rc.AppState.CurrentScreen))
	}

	// Gate 5: cooldown. A user never prompted always passes.
	skipCooldown := hasOverrides && o.SkipCooldown
	if !skipCooldown && m.LastReviewPrompt != nil {
		elapsed := e.now().Sub(*m.LastReviewPrompt)
		if elapsed < cfg.CooldownPeriod {
			next := m.LastReviewPrompt.Add(cfg.CooldownPeriod)
			out := blocked("cooldown period active")
			out.NextEligibleTime = &next
			return out
		}
	}

	// Gate 6: lifetime prompt cap.
	if cfg.MaxPromptsPerUser > 0 && m.PromptsShown >= cfg.MaxPromptsPerUser {
		return blocked("prompt limit reached")
	}

	// Gate 7: kind-specific thresholds.
	if res, ok := checkThreshold(rc.Trigger, ts, m); !ok {
		return res
	}

	return models.TriggerResult{
		ShouldTrigger: true,
		Reason:        "meets minimum requirement",
		Confidence:    confidence(rc.Trigger, m),
	}
}

// checkThreshold applies the kind-specific gate. ok is false when the
// gate blocks.
func checkThreshold(kind models.TriggerKind, ts models.TriggerSettings, m *models.UserMetrics) (models.TriggerResult, bool) {
	switch kind {
	case models.TriggerAppOpen:
		if m.AppOpenCount < ts.MinimumCount {
			return blocked(fmt.Sprintf("below minimum: %d of %d app opens", m.AppOpenCount, ts.MinimumCount)), false
		}
	case models.TriggerSuccessfulFoodLog:
		if m.SuccessfulFoodLogs < ts.MinimumCount {
			return blocked(fmt.Sprintf("below minimum: %d of %d food logs", m.SuccessfulFoodLogs, ts.MinimumCount)), false
		}
	case models.TriggerMilestoneAchieved:
		if !anyMilestoneMatch(m.MilestonesAchieved, ts.MilestoneIDs) {
			return blocked("no relevant milestone achieved"), false
		}
	case models.TriggerStreakMilestone:
		if !containsInt(ts.StreakDays, m.StreakDays) {
			return blocked(fmt.Sprintf("streak of %d days is not a milestone", m.StreakDays)), false
		}
	case models.TriggerGoalCompleted:
		// No thresholds: enabled means eligible.
	default:
		return blocked("unknown trigger kind"), false
	}
	return models.TriggerResult{}, true
}

// Confidence bases per trigger kind.
var confidenceBase = map[models.TriggerKind]float64{
	models.TriggerAppOpen:           0.6,
	models.TriggerSuccessfulFoodLog: 0.7,
	models.TriggerMilestoneAchieved: 0.8,
	models.TriggerGoalCompleted:     0.8,
	models.TriggerStreakMilestone:   0.9,
}

// confidence scores how well-timed the ask is. Highly engaged users get
// a boost that pushes low-base kinds above 0.8; a prior dismissal pulls
// the score below the kind's base even when the boost applies. Clamped
// to [0, 1].
func confidence(kind models.TriggerKind, m *models.UserMetrics) float64 {
	c := confidenceBase[kind]
	if highlyEngaged(m) {
		c += 0.25
	}
	if m.LastReviewAction == models.ReviewDismissed {
		c -= 0.35
	}
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return c
}

// highlyEngaged holds when at least three of the four engagement
// signals are strong.
func highlyEngaged(m *models.UserMetrics) bool {
	signals := 0
	if m.AppOpenCount >= 50 {
		signals++
	}
	if m.SuccessfulFoodLogs >= 25 {
		signals++
	}
	if m.StreakDays >= 14 {
		signals++
	}
	if len(m.MilestonesAchieved) >= 2 {
		signals++
	}
	return signals >= 3
}

// Apply maps a user action onto its metrics mutation and persists it.
// Unrecognized actions and duplicate milestones are no-ops with no
// store write. Returns the resulting metrics record.
func (e *Engine) Apply(ctx context.Context, action models.UserAction) (models.UserMetrics, error) {
	if !e.Initialized() {
		return models.UserMetrics{}, ErrNotInitialized
	}

	current := e.store.UserMetrics(ctx)

	var patch models.MetricsPatch
	switch a := action.(type) {
	case models.AppOpened:
		opens := current.AppOpenCount + 1
		at := a.At
		patch = models.MetricsPatch{AppOpenCount: &opens, LastAppOpen: &at}
	case models.FoodLogged:
		logs := current.SuccessfulFoodLogs + 1
		patch = models.MetricsPatch{SuccessfulFoodLogs: &logs}
	case models.MilestoneAchieved:
		if current.HasMilestone(a.ID) {
			logging.Ctx(ctx).Debug().Str("milestone", a.ID).Msg("Duplicate milestone ignored")
			return current, nil
		}
		patch = models.MetricsPatch{AddMilestone: a.ID}
	case models.StreakUpdated:
		days := a.Days
		patch = models.MetricsPatch{StreakDays: &days}
	case models.ReviewPromptShown:
		at := a.At
		shown := current.PromptsShown + 1
		patch = models.MetricsPatch{LastReviewPrompt: &at, PromptsShown: &shown}
	case models.ReviewActionTaken:
		taken := a.Action
		patch = models.MetricsPatch{LastReviewAction: &taken}
	case models.SessionEnded:
		total := current.TotalSessionTime + a.Minutes
		patch = models.MetricsPatch{TotalSessionTime: &total}
	case models.Unrecognized:
		logging.Ctx(ctx).Debug().Str("action_type", a.Type).Msg("Unrecognized user action ignored")
		return current, nil
	default:
		return current, nil
	}

	updated, err := e.store.UpdateUserMetrics(ctx, patch)
	if err != nil {
		return models.UserMetrics{}, fmt.Errorf("apply %s: %w", action.ActionType(), err)
	}
	return updated, nil
}

// NextEligibleTime returns when the cooldown next allows a prompt. Nil
// means eligible now (never prompted, or the cooldown has elapsed).
func (e *Engine) NextEligibleTime(ctx context.Context) *time.Time {
	m := e.store.UserMetrics(ctx)
	if m.LastReviewPrompt == nil {
		return nil
	}
	cfg := e.cfg.EffectiveConfig(ctx)
	next := m.LastReviewPrompt.Add(cfg.CooldownPeriod)
	if !next.After(e.now()) {
		return nil
	}
	return &next
}

func blocked(reason string) models.TriggerResult {
	return models.TriggerResult{ShouldTrigger: false, Reason: reason, Confidence: 0}
}

func anyMilestoneMatch(achieved []string, configured []string) bool {
	if len(achieved) == 0 || len(configured) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(configured))
	for _, id := range configured {
		set[id] = struct{}{}
	}
	for _, id := range achieved {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}

func containsInt(list []int, v int) bool {
	for _, n := range list {
		if n == v {
			return true
		}
	}
	return false
}
