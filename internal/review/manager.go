// ReviewPulse - Adaptive Review Prompt Orchestration for the Mealprint shell
// Copyright 2026 Mealprint Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mealprint/reviewpulse

// Package review is the orchestrator façade over the store, the
// configuration manager, the trigger engine, the invocation gateway,
// and the analytics recorder. There is no package-level instance: the
// one long-lived Manager is constructed and held by the caller, and
// tests build fresh ones.
package review

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mealprint/reviewpulse/internal/analytics"
	"github.com/mealprint/reviewpulse/internal/config"
	"github.com/mealprint/reviewpulse/internal/gateway"
	"github.com/mealprint/reviewpulse/internal/logging"
	"github.com/mealprint/reviewpulse/internal/metrics"
	"github.com/mealprint/reviewpulse/internal/models"
	"github.com/mealprint/reviewpulse/internal/store"
	"github.com/mealprint/reviewpulse/internal/trigger"
)

// Manager wires the review subsystems together and owns the
// check-and-trigger flow.
type Manager struct {
	store    *store.Store
	cfg      *config.Manager
	engine   *trigger.Engine
	gateway  *gateway.Gateway
	recorder *analytics.Recorder

	mu          sync.Mutex
	initialized bool

	// now is swappable for tests.
	now func() time.Time
}

// New assembles a manager from explicitly constructed parts.
func New(s *store.Store, cfg *config.Manager, engine *trigger.Engine, gw *gateway.Gateway, recorder *analytics.Recorder) *Manager {
	return &Manager{
		store:    s,
		cfg:      cfg,
		engine:   engine,
		gateway:  gw,
		recorder: recorder,
		now:      time.Now,
	}
}

// Initialize brings up the configuration manager and the trigger
// engine exactly once. Idempotent; a failure leaves the manager
// uninitialized.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initialized {
		return nil
	}
	if err := m.cfg.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize review manager: %w", err)
	}
	if err := m.engine.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize review manager: %w", err)
	}

	m.cfg.Subscribe(func(cfg models.ReviewConfig) error {
		m.recorder.SetDebugMode(cfg.DebugMode)
		return nil
	})
	m.cfg.SetChangeHook(func(source models.ChangeSource, reason string, took time.Duration) {
		if source == models.SourceDevOverride {
			m.recorder.Track(analytics.EventOverridesChanged, map[string]string{"reason": reason})
			return
		}
		m.recorder.TrackConfigChange(source, reason, took)
	})
	m.recorder.SetDebugMode(m.cfg.EffectiveConfig(ctx).DebugMode)

	m.initialized = true
	logging.Ctx(ctx).Info().Str("session_id", m.recorder.SessionID()).Msg("Review manager initialized")
	return nil
}

// Initialized reports whether Initialize has succeeded.
func (m *Manager) Initialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initialized
}

// RecordUserAction forwards one user action to the trigger engine's
// metrics update and to the analytics recorder, independent of whether
// a review will ever be triggered.
func (m *Manager) RecordUserAction(ctx context.Context, action models.UserAction) (models.UserMetrics, error) {
	updated, err := m.engine.Apply(ctx, action)
	if err != nil {
		return models.UserMetrics{}, err
	}
	m.recorder.TrackUserAction(action)
	return updated, nil
}

// CheckAndTriggerReview evaluates the trigger and, only on a positive
// verdict, runs the gateway and writes the prompt bookkeeping back to
// the store. It returns whether a review flow was actually shown; the
// end user never sees a hard failure from this path.
func (m *Manager) CheckAndTriggerReview(ctx context.Context, rc models.ReviewContext) (bool, models.TriggerResult, error) {
	evalStart := m.now()
	result, err := m.engine.Evaluate(ctx, rc)
	if err != nil {
		return false, models.TriggerResult{}, err
	}
	m.recorder.TrackTriggerEvaluation(rc, result, m.now().Sub(evalStart))

	if !result.ShouldTrigger {
		return false, result, nil
	}

	promptStart := m.now()
	outcome := m.gateway.RequestReview(ctx)
	m.recorder.TrackReviewOutcome(outcome)

	shown := outcome.Action == models.ReviewCompleted || outcome.Action == models.ReviewDismissed
	if shown {
		metrics.PromptsShown.WithLabelValues(string(rc.Trigger)).Inc()
		m.recorder.TrackPromptShown(rc, m.now().Sub(promptStart))
		if _, err := m.engine.Apply(ctx, models.ReviewPromptShown{At: m.now()}); err != nil {
			logging.Ctx(ctx).Error().Err(err).Msg("Failed to record prompt timestamp")
		}
		if _, err := m.engine.Apply(ctx, models.ReviewActionTaken{Action: outcome.Action}); err != nil {
			logging.Ctx(ctx).Error().Err(err).Msg("Failed to record review action")
		}
		return true, result, nil
	}

	if outcome.Action == models.ReviewNotAvailable || outcome.Action == models.ReviewError {
		if _, err := m.engine.Apply(ctx, models.ReviewActionTaken{Action: outcome.Action}); err != nil {
			logging.Ctx(ctx).Error().Err(err).Msg("Failed to record review outcome")
		}
	}
	if outcome.Err != "" {
		m.recorder.TrackFailure(&models.ReviewFailure{
			Type:      outcome.ErrorType,
			Message:   outcome.Err,
			Context:   "checkAndTriggerReview",
			Timestamp: m.now(),
		})
		logging.Ctx(ctx).Warn().Str("error", outcome.Err).Str("trigger", string(rc.Trigger)).Msg("Review flow not shown")
	}

	// A bare NOT_AVAILABLE (no error attached) means the gateway
	// short-circuited before any invocation attempt, so no fallback has
	// run yet. Open the store listing directly.
	if outcome.Action == models.ReviewNotAvailable && outcome.Err == "" {
		m.recorder.Track(analytics.EventStoreFallback, map[string]string{"trigger": string(rc.Trigger)})
		if err := m.gateway.OpenStoreListing(ctx); err != nil {
			logging.Ctx(ctx).Error().Err(err).Msg("Store listing fallback failed")
		}
	}
	return false, result, nil
}

// NextEligibleTime exposes the trigger engine's cooldown computation.
func (m *Manager) NextEligibleTime(ctx context.Context) *time.Time {
	return m.engine.NextEligibleTime(ctx)
}

// ClearAllData wipes durable records and the analytics log, for the
// debug surface.
func (m *Manager) ClearAllData(ctx context.Context) error {
	if err := m.store.ClearAll(ctx); err != nil {
		return err
	}
	m.recorder.Clear()
	m.recorder.Track(analytics.EventDataCleared, nil)
	return nil
}

// Recorder exposes the analytics recorder for the debug surface.
func (m *Manager) Recorder() *analytics.Recorder { return m.recorder }

// Config exposes the configuration manager for the debug surface.
func (m *Manager) Config() *config.Manager { return m.cfg }

// Gateway exposes the invocation gateway for the debug surface.
func (m *Manager) Gateway() *gateway.Gateway { return m.gateway }

// Store exposes the metrics store for the debug surface.
func (m *Manager) Store() *store.Store { return m.store }
