// ReviewPulse - Adaptive Review Prompt Orchestration for the Mealprint shell
// Copyright 2026 Mealprint Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mealprint/reviewpulse

package review

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mealprint/reviewpulse/internal/analytics"
	"github.com/mealprint/reviewpulse/internal/config"
	"github.com/mealprint/reviewpulse/internal/gateway"
	"github.com/mealprint/reviewpulse/internal/models"
	"github.com/mealprint/reviewpulse/internal/store"
	"github.com/mealprint/reviewpulse/internal/trigger"
)

// stubSurface always answers the same way.
type stubSurface struct {
	available   bool
	action      models.ReviewAction
	reviewCalls int32
	storeCalls  int32
}

func (s *stubSurface) Available(context.Context) (bool, error) { return s.available, nil }

func (s *stubSurface) RequestReview(context.Context) (models.ReviewAction, error) {
	atomic.AddInt32(&s.reviewCalls, 1)
	return s.action, nil
}

func (s *stubSurface) OpenStoreListing(context.Context, string) error {
	atomic.AddInt32(&s.storeCalls, 1)
	return nil
}

func (s *stubSurface) ShowRateUsAlert(context.Context) error { return nil }

func newTestManager(t *testing.T, surface gateway.RatingSurface) (*Manager, *store.Store) {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	cfgMgr := config.NewManager(st)
	gw := gateway.New(surface, cfgMgr, gateway.Options{
		StoreURL:   "https://play.example/store",
		RetryDelay: time.Millisecond,
	})
	engine := trigger.New(st, cfgMgr)
	m := New(st, cfgMgr, engine, gw, analytics.New())
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize manager: %v", err)
	}
	return m, st
}

func eligibleContext() models.ReviewContext {
	m := models.NewUserMetrics(time.Now().Add(-60 * 24 * time.Hour))
	m.AppOpenCount = 20
	return models.ReviewContext{
		Trigger:   models.TriggerAppOpen,
		UserState: m,
		AppState:  models.AppState{CurrentScreen: "dashboard", SessionStartTime: time.Now()},
	}
}

func TestInitializeIsIdempotent(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, &stubSurface{available: true, action: models.ReviewCompleted})
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("second initialize: %v", err)
	}
	if !m.Initialized() {
		t.Error("manager not initialized")
	}
}

func TestRecordUserActionUpdatesMetricsAndAnalytics(t *testing.T) {
	t.Parallel()

	m, st := newTestManager(t, &stubSurface{available: true, action: models.ReviewCompleted})
	ctx := context.Background()

	updated, err := m.RecordUserAction(ctx, models.AppOpened{At: time.Now()})
	if err != nil {
		t.Fatalf("record action: %v", err)
	}
	if updated.AppOpenCount != 1 {
		t.Errorf("AppOpenCount = %d, want 1", updated.AppOpenCount)
	}
	if st.UserMetrics(ctx).AppOpenCount != 1 {
		t.Error("durable metrics not updated")
	}
	if len(m.Recorder().EventsByType(analytics.EventUserAction)) != 1 {
		t.Error("analytics event not recorded")
	}
}

func TestCheckAndTriggerShowsAndBookkeeps(t *testing.T) {
	t.Parallel()

	surface := &stubSurface{available: true, action: models.ReviewCompleted}
	m, st := newTestManager(t, surface)
	ctx := context.Background()

	shown, result, err := m.CheckAndTriggerReview(ctx, eligibleContext())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !shown || !result.ShouldTrigger {
		t.Fatalf("shown = %v, result = %+v", shown, result)
	}

	metrics := st.UserMetrics(ctx)
	if metrics.LastReviewPrompt == nil {
		t.Error("LastReviewPrompt not written")
	}
	if metrics.LastReviewAction != models.ReviewCompleted {
		t.Errorf("LastReviewAction = %s, want COMPLETED", metrics.LastReviewAction)
	}
	if metrics.PromptsShown != 1 {
		t.Errorf("PromptsShown = %d, want 1", metrics.PromptsShown)
	}
	if len(m.Recorder().EventsByType(analytics.EventPromptShown)) != 1 {
		t.Error("prompt-shown event not recorded")
	}
}

func TestNegativeVerdictNeverTouchesGateway(t *testing.T) {
	t.Parallel()

	surface := &stubSurface{available: true, action: models.ReviewCompleted}
	m, st := newTestManager(t, surface)
	ctx := context.Background()

	rc := eligibleContext()
	rc.UserState.AppOpenCount = 1 // below the minimum

	shown, result, err := m.CheckAndTriggerReview(ctx, rc)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if shown || result.ShouldTrigger {
		t.Fatalf("shown = %v for ineligible user", shown)
	}
	if atomic.LoadInt32(&surface.reviewCalls) != 0 {
		t.Error("gateway invoked on a negative verdict")
	}
	if st.UserMetrics(ctx).LastReviewPrompt != nil {
		t.Error("LastReviewPrompt written without a prompt")
	}
}

func TestUnavailableSurfaceFallsBackToStore(t *testing.T) {
	t.Parallel()

	surface := &stubSurface{available: false}
	m, st := newTestManager(t, surface)
	ctx := context.Background()

	shown, result, err := m.CheckAndTriggerReview(ctx, eligibleContext())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if shown {
		t.Error("shown = true with unavailable surface")
	}
	if !result.ShouldTrigger {
		t.Errorf("verdict should still be positive: %+v", result)
	}
	metrics := st.UserMetrics(ctx)
	if metrics.LastReviewPrompt != nil {
		t.Error("LastReviewPrompt written though nothing was shown")
	}
	if metrics.LastReviewAction != models.ReviewNotAvailable {
		t.Errorf("LastReviewAction = %s, want NOT_AVAILABLE", metrics.LastReviewAction)
	}
	if calls := atomic.LoadInt32(&surface.storeCalls); calls != 1 {
		t.Errorf("store listing opened %d times, want 1", calls)
	}
	if len(m.Recorder().EventsByType(analytics.EventStoreFallback)) != 1 {
		t.Error("store fallback event not recorded")
	}
	if atomic.LoadInt32(&surface.reviewCalls) != 0 {
		t.Error("native flow invoked despite unavailability")
	}
}

func TestConfigChangeFeedsAnalytics(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, &stubSurface{available: true, action: models.ReviewCompleted})
	ctx := context.Background()

	days := 7
	patch := models.SettingsPatch{CooldownDays: &days}
	if _, _, err := m.Config().UpdateConfig(ctx, patch, models.SourceUser, "shorter cooldown"); err != nil {
		t.Fatalf("update config: %v", err)
	}

	changed := m.Recorder().EventsByType(analytics.EventConfigChanged)
	if len(changed) != 1 {
		t.Fatalf("config-changed events = %d, want 1", len(changed))
	}
	if changed[0].Metadata["source"] != string(models.SourceUser) {
		t.Errorf("source = %s, want %s", changed[0].Metadata["source"], models.SourceUser)
	}

	found := false
	for _, s := range m.Recorder().Export().Perf {
		if s.Dimension == analytics.DimConfigUpdateMS {
			found = true
			break
		}
	}
	if !found {
		t.Error("no config-update duration sample recorded")
	}
}

func TestOverrideChangesAreTrackedSeparately(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, &stubSurface{available: true, action: models.ReviewCompleted})
	ctx := context.Background()

	if _, err := m.Config().SetDevOverrides(ctx, models.DevOverrides{ForceShow: true}); err != nil {
		t.Fatalf("set overrides: %v", err)
	}
	m.Config().ClearDevOverrides(ctx)

	if got := len(m.Recorder().EventsByType(analytics.EventOverridesChanged)); got != 2 {
		t.Errorf("override-changed events = %d, want 2", got)
	}
	if got := len(m.Recorder().EventsByType(analytics.EventConfigChanged)); got != 0 {
		t.Errorf("override changes must not count as config changes, got %d", got)
	}
}

func TestSimulatedErrorIsTrackedAsFailure(t *testing.T) {
	t.Parallel()

	surface := &stubSurface{available: true, action: models.ReviewCompleted}
	m, st := newTestManager(t, surface)
	ctx := context.Background()

	if _, err := m.Config().SetDevOverrides(ctx, models.DevOverrides{SimulateErrors: true}); err != nil {
		t.Fatalf("set overrides: %v", err)
	}

	shown, _, err := m.CheckAndTriggerReview(ctx, eligibleContext())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if shown {
		t.Error("shown = true with simulated errors")
	}
	failures := m.Recorder().EventsByType(analytics.EventReviewFailure)
	if len(failures) != 1 {
		t.Fatalf("failure events = %d, want 1", len(failures))
	}
	if failures[0].Metadata["error_type"] != string(models.ErrUnknown) {
		t.Errorf("error_type = %s, want %s", failures[0].Metadata["error_type"], models.ErrUnknown)
	}
	if st.UserMetrics(ctx).LastReviewAction != models.ReviewError {
		t.Error("LastReviewAction not ERROR after simulated failure")
	}
}

func TestDismissedCountsAsShown(t *testing.T) {
	t.Parallel()

	m, st := newTestManager(t, &stubSurface{available: true, action: models.ReviewDismissed})
	ctx := context.Background()

	shown, _, err := m.CheckAndTriggerReview(ctx, eligibleContext())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !shown {
		t.Error("a dismissed prompt still reached the user and must count as shown")
	}
	if st.UserMetrics(ctx).LastReviewAction != models.ReviewDismissed {
		t.Error("LastReviewAction not DISMISSED")
	}
}

func TestClearAllData(t *testing.T) {
	t.Parallel()

	m, st := newTestManager(t, &stubSurface{available: true, action: models.ReviewCompleted})
	ctx := context.Background()

	if _, err := m.RecordUserAction(ctx, models.FoodLogged{}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := m.ClearAllData(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if st.UserMetrics(ctx).SuccessfulFoodLogs != 0 {
		t.Error("metrics survived clear")
	}
	events := m.Recorder().Events()
	if len(events) != 1 || events[0].EventType != analytics.EventDataCleared {
		t.Errorf("events after clear = %v, want single cleared marker", events)
	}
}
