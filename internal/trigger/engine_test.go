// ReviewPulse - Adaptive Review Prompt Orchestration for the Mealprint shell
// Copyright 2026 Mealprint Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mealprint/reviewpulse

package trigger

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mealprint/reviewpulse/internal/config"
	"github.com/mealprint/reviewpulse/internal/models"
	"github.com/mealprint/reviewpulse/internal/store"
)

var testNow = time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*Engine, *store.Store, *config.Manager) {
	t.Helper()
	s, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})

	cfg := config.NewManager(s)
	if err := cfg.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize config: %v", err)
	}

	e := New(s, cfg)
	e.now = func() time.Time { return testNow }
	if err := e.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize engine: %v", err)
	}
	return e, s, cfg
}

func eligibleMetrics() models.UserMetrics {
	m := models.NewUserMetrics(testNow.Add(-90 * 24 * time.Hour))
	m.AppOpenCount = 15
	m.SuccessfulFoodLogs = 10
	return m
}

func reviewContext(kind models.TriggerKind, m models.UserMetrics) models.ReviewContext {
	return models.ReviewContext{
		Trigger:   kind,
		UserState: m,
		AppState: models.AppState{
			CurrentScreen:    "dashboard",
			SessionStartTime: testNow.Add(-10 * time.Minute),
		},
	}
}

func evaluate(t *testing.T, e *Engine, rc models.ReviewContext) models.TriggerResult {
	t.Helper()
	res, err := e.Evaluate(context.Background(), rc)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	return res
}

func TestEvaluateRequiresInitialize(t *testing.T) {
	t.Parallel()

	s, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	e := New(s, config.NewManager(s))
	if _, err := e.Evaluate(context.Background(), reviewContext(models.TriggerAppOpen, eligibleMetrics())); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Evaluate error = %v, want ErrNotInitialized", err)
	}
	if _, err := e.Apply(context.Background(), models.FoodLogged{}); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Apply error = %v, want ErrNotInitialized", err)
	}
}

func TestEvaluateGates(t *testing.T) {
	t.Parallel()

	e, _, cfg := newTestEngine(t)
	ctx := context.Background()

	disabled := []models.TriggerKind{models.TriggerGoalCompleted}

	tests := []struct {
		name      string
		setup     func(t *testing.T)
		rc        models.ReviewContext
		wantShown bool
		wantWords string
	}{
		{
			name: "disabled trigger blocked",
			setup: func(t *testing.T) {
				t.Helper()
				if _, _, err := cfg.UpdateConfig(ctx, models.SettingsPatch{EnabledTriggers: &disabled}, models.SourceSystem, "test"); err != nil {
					t.Fatalf("disable triggers: %v", err)
				}
				t.Cleanup(func() {
					if _, _, err := cfg.ResetToDefaults(ctx, "restore"); err != nil {
						t.Fatalf("restore defaults: %v", err)
					}
				})
			},
			rc:        reviewContext(models.TriggerAppOpen, eligibleMetrics()),
			wantShown: false,
			wantWords: "disabled",
		},
		{
			name: "loading app blocked",
			rc: func() models.ReviewContext {
				rc := reviewContext(models.TriggerAppOpen, eligibleMetrics())
				rc.AppState.IsLoading = true
				return rc
			}(),
			wantShown: false,
			wantWords: "loading",
		},
		{
			name: "app errors blocked",
			rc: func() models.ReviewContext {
				rc := reviewContext(models.TriggerAppOpen, eligibleMetrics())
				rc.AppState.HasErrors = true
				return rc
			}(),
			wantShown: false,
			wantWords: "errors",
		},
		{
			name: "onboarding screen blocked",
			rc: func() models.ReviewContext {
				rc := reviewContext(models.TriggerAppOpen, eligibleMetrics())
				rc.AppState.CurrentScreen = "onboarding"
				return rc
			}(),
			wantShown: false,
			wantWords: "restricted",
		},
		{
			name:      "eligible user triggers",
			rc:        reviewContext(models.TriggerAppOpen, eligibleMetrics()),
			wantShown: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup(t)
			}
			res := evaluate(t, e, tt.rc)
			if res.ShouldTrigger != tt.wantShown {
				t.Errorf("ShouldTrigger = %v (%s), want %v", res.ShouldTrigger, res.Reason, tt.wantShown)
			}
			if tt.wantWords != "" && !containsFold(res.Reason, tt.wantWords) {
				t.Errorf("Reason = %q, want it to mention %q", res.Reason, tt.wantWords)
			}
		})
	}
}

func TestCooldownGate(t *testing.T) {
	t.Parallel()

	e, _, _ := newTestEngine(t)

	// Prompted 10 days ago with a 30 day cooldown: blocked, with the
	// next eligible instant 20 days out.
	m := eligibleMetrics()
	recent := testNow.Add(-10 * 24 * time.Hour)
	m.LastReviewPrompt = &recent

	res := evaluate(t, e, reviewContext(models.TriggerAppOpen, m))
	if res.ShouldTrigger {
		t.Fatal("trigger fired inside cooldown")
	}
	if res.NextEligibleTime == nil {
		t.Fatal("NextEligibleTime not set for cooldown block")
	}
	want := recent.Add(30 * 24 * time.Hour)
	if !res.NextEligibleTime.Equal(want) {
		t.Errorf("NextEligibleTime = %v, want %v", res.NextEligibleTime, want)
	}

	// Same prompt 40 days ago: cooldown elapsed.
	old := testNow.Add(-40 * 24 * time.Hour)
	m.LastReviewPrompt = &old
	res = evaluate(t, e, reviewContext(models.TriggerAppOpen, m))
	if !res.ShouldTrigger {
		t.Errorf("trigger blocked after cooldown elapsed: %s", res.Reason)
	}
}

func TestPromptLimitGate(t *testing.T) {
	t.Parallel()

	e, _, _ := newTestEngine(t)

	m := eligibleMetrics()
	m.PromptsShown = models.DefaultMaxPromptsPerUser

	res := evaluate(t, e, reviewContext(models.TriggerAppOpen, m))
	if res.ShouldTrigger {
		t.Error("trigger fired past the prompt limit")
	}
}

func TestKindThresholds(t *testing.T) {
	t.Parallel()

	e, _, _ := newTestEngine(t)

	tests := []struct {
		name      string
		rc        models.ReviewContext
		wantShown bool
	}{
		{
			name: "app opens below minimum",
			rc: func() models.ReviewContext {
				m := eligibleMetrics()
				m.AppOpenCount = 3
				return reviewContext(models.TriggerAppOpen, m)
			}(),
			wantShown: false,
		},
		{
			name: "app opens at minimum",
			rc: func() models.ReviewContext {
				m := eligibleMetrics()
				m.AppOpenCount = models.DefaultMinimumAppOpens
				return reviewContext(models.TriggerAppOpen, m)
			}(),
			wantShown: true,
		},
		{
			name: "relevant milestone",
			rc: func() models.ReviewContext {
				m := eligibleMetrics()
				m.MilestonesAchieved = []string{"first_week_complete"}
				return reviewContext(models.TriggerMilestoneAchieved, m)
			}(),
			wantShown: true,
		},
		{
			name: "irrelevant milestone",
			rc: func() models.ReviewContext {
				m := eligibleMetrics()
				m.MilestonesAchieved = []string{"logged_a_snack"}
				return reviewContext(models.TriggerMilestoneAchieved, m)
			}(),
			wantShown: false,
		},
		{
			name: "streak on a milestone day",
			rc: func() models.ReviewContext {
				m := eligibleMetrics()
				m.StreakDays = 7
				return reviewContext(models.TriggerStreakMilestone, m)
			}(),
			wantShown: true,
		},
		{
			name: "streak between milestones",
			rc: func() models.ReviewContext {
				m := eligibleMetrics()
				m.StreakDays = 8
				return reviewContext(models.TriggerStreakMilestone, m)
			}(),
			wantShown: false,
		},
		{
			name:      "goal completion has no threshold",
			rc:        reviewContext(models.TriggerGoalCompleted, eligibleMetrics()),
			wantShown: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := evaluate(t, e, tt.rc)
			if res.ShouldTrigger != tt.wantShown {
				t.Errorf("ShouldTrigger = %v (%s), want %v", res.ShouldTrigger, res.Reason, tt.wantShown)
			}
		})
	}
}

func TestConfidenceOrdering(t *testing.T) {
	t.Parallel()

	e, _, _ := newTestEngine(t)

	m := eligibleMetrics()
	m.StreakDays = 7

	appOpen := evaluate(t, e, reviewContext(models.TriggerAppOpen, m))
	streak := evaluate(t, e, reviewContext(models.TriggerStreakMilestone, m))
	if !appOpen.ShouldTrigger || !streak.ShouldTrigger {
		t.Fatal("expected both evaluations to trigger")
	}
	if streak.Confidence <= appOpen.Confidence {
		t.Errorf("streak confidence %.2f not above app-open confidence %.2f", streak.Confidence, appOpen.Confidence)
	}

	dismissed := m
	dismissed.LastReviewAction = models.ReviewDismissed
	after := evaluate(t, e, reviewContext(models.TriggerAppOpen, dismissed))
	if after.Confidence >= appOpen.Confidence {
		t.Errorf("confidence after dismissal %.2f not below %.2f", after.Confidence, appOpen.Confidence)
	}
}

func TestConfidenceEngagementBoost(t *testing.T) {
	t.Parallel()

	e, _, _ := newTestEngine(t)

	m := eligibleMetrics()
	m.AppOpenCount = 80
	m.SuccessfulFoodLogs = 40
	m.StreakDays = 21
	m.MilestonesAchieved = []string{"first_week_complete", "first_month_complete"}
	// Streak 21 is not a streak milestone, so use APP_OPEN (base 0.6).
	res := evaluate(t, e, reviewContext(models.TriggerAppOpen, m))
	if !res.ShouldTrigger {
		t.Fatalf("expected trigger: %s", res.Reason)
	}
	if res.Confidence <= 0.8 {
		t.Errorf("boosted confidence = %.2f, want above 0.8", res.Confidence)
	}
	if res.Confidence > 1.0 {
		t.Errorf("confidence %.2f outside [0,1]", res.Confidence)
	}
}

func TestForceShowAndSkipCooldownOverrides(t *testing.T) {
	t.Parallel()

	e, _, cfg := newTestEngine(t)
	ctx := context.Background()

	m := eligibleMetrics()
	m.AppOpenCount = 0 // would fail the threshold gate

	if _, err := cfg.SetDevOverrides(ctx, models.DevOverrides{ForceShow: true}); err != nil {
		t.Fatalf("set overrides: %v", err)
	}
	res := evaluate(t, e, reviewContext(models.TriggerAppOpen, m))
	if !res.ShouldTrigger || res.Confidence != 1.0 {
		t.Errorf("force-show result = %+v", res)
	}

	recent := testNow.Add(-time.Hour)
	m = eligibleMetrics()
	m.LastReviewPrompt = &recent
	if _, err := cfg.SetDevOverrides(ctx, models.DevOverrides{SkipCooldown: true}); err != nil {
		t.Fatalf("set overrides: %v", err)
	}
	res = evaluate(t, e, reviewContext(models.TriggerAppOpen, m))
	if !res.ShouldTrigger {
		t.Errorf("skip-cooldown ignored: %s", res.Reason)
	}
}

func TestApplyMetricsMutations(t *testing.T) {
	t.Parallel()

	e, s, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.Apply(ctx, models.AppOpened{At: testNow}); err != nil {
		t.Fatalf("apply app open: %v", err)
	}
	if _, err := e.Apply(ctx, models.FoodLogged{}); err != nil {
		t.Fatalf("apply food log: %v", err)
	}
	if _, err := e.Apply(ctx, models.StreakUpdated{Days: 5}); err != nil {
		t.Fatalf("apply streak: %v", err)
	}
	if _, err := e.Apply(ctx, models.SessionEnded{Minutes: 30}); err != nil {
		t.Fatalf("apply session: %v", err)
	}

	m := s.UserMetrics(ctx)
	if m.AppOpenCount != 1 || m.SuccessfulFoodLogs != 1 || m.StreakDays != 5 || m.TotalSessionTime != 30 {
		t.Errorf("metrics after mutations: %+v", m)
	}
	if !m.LastAppOpen.Equal(testNow) {
		t.Errorf("LastAppOpen = %v, want %v", m.LastAppOpen, testNow)
	}
}

func TestApplyDuplicateMilestoneNoWrite(t *testing.T) {
	t.Parallel()

	e, s, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.Apply(ctx, models.MilestoneAchieved{ID: "goal_weight_reached"}); err != nil {
		t.Fatalf("first milestone: %v", err)
	}

	first := s.UserMetrics(ctx)
	got, err := e.Apply(ctx, models.MilestoneAchieved{ID: "goal_weight_reached"})
	if err != nil {
		t.Fatalf("duplicate milestone errored: %v", err)
	}
	if len(got.MilestonesAchieved) != len(first.MilestonesAchieved) {
		t.Errorf("duplicate changed milestones: %v", got.MilestonesAchieved)
	}
}

func TestApplyUnrecognizedIsNoOp(t *testing.T) {
	t.Parallel()

	e, s, _ := newTestEngine(t)
	ctx := context.Background()

	before := s.UserMetrics(ctx)
	after, err := e.Apply(ctx, models.Unrecognized{Type: "screen_rotated"})
	if err != nil {
		t.Fatalf("unrecognized action errored: %v", err)
	}
	if after.AppOpenCount != before.AppOpenCount || len(after.MilestonesAchieved) != len(before.MilestonesAchieved) {
		t.Error("unrecognized action mutated metrics")
	}
}

func TestNextEligibleTime(t *testing.T) {
	t.Parallel()

	e, s, _ := newTestEngine(t)
	ctx := context.Background()

	if got := e.NextEligibleTime(ctx); got != nil {
		t.Errorf("NextEligibleTime = %v for never-prompted user, want nil", got)
	}

	recent := testNow.Add(-10 * 24 * time.Hour)
	if _, err := s.UpdateUserMetrics(ctx, models.MetricsPatch{LastReviewPrompt: &recent}); err != nil {
		t.Fatalf("seed prompt: %v", err)
	}
	got := e.NextEligibleTime(ctx)
	if got == nil {
		t.Fatal("NextEligibleTime = nil inside cooldown")
	}
	want := recent.Add(30 * 24 * time.Hour)
	if !got.Equal(want) {
		t.Errorf("NextEligibleTime = %v, want %v", got, want)
	}

	old := testNow.Add(-40 * 24 * time.Hour)
	if _, err := s.UpdateUserMetrics(ctx, models.MetricsPatch{LastReviewPrompt: &old}); err != nil {
		t.Fatalf("seed old prompt: %v", err)
	}
	if got := e.NextEligibleTime(ctx); got != nil {
		t.Errorf("NextEligibleTime = %v after elapsed cooldown, want nil", got)
	}
}

// containsFold reports a case-insensitive substring match.
func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
