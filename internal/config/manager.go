// ReviewPulse - Adaptive Review Prompt Orchestration for the Mealprint shell
// Copyright 2026 Mealprint Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mealprint/reviewpulse

package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mealprint/reviewpulse/internal/logging"
	"github.com/mealprint/reviewpulse/internal/metrics"
	"github.com/mealprint/reviewpulse/internal/models"
	"github.com/mealprint/reviewpulse/internal/store"
	"github.com/mealprint/reviewpulse/internal/validation"
)

// HistoryLimit caps the configuration change history; oldest entries
// are dropped first.
const HistoryLimit = 50

// Listener is notified after every successful configuration change with
// the new effective configuration. A listener error is collected and
// reported but never blocks the change or the other listeners.
type Listener func(cfg models.ReviewConfig) error

// ChangeHook observes every applied configuration change: persisted
// updates and override installs alike. took is the wall time the change
// needed.
type ChangeHook func(source models.ChangeSource, reason string, took time.Duration)

// Manager merges the three configuration layers (shipped defaults,
// persisted settings, developer overrides) into the effective review
// configuration. The merge is recomputed on every read.
type Manager struct {
	store *store.Store

	mu           sync.RWMutex
	initialized  bool
	overrides    models.DevOverrides
	hasOverrides bool
	version      int
	history      []models.ConfigHistoryEntry
	listeners    []Listener
	hook         ChangeHook
	updateCount  int
	updateTotal  time.Duration
	lastUpdate   time.Time

	// now is swappable for tests.
	now func() time.Time
}

// NewManager creates an uninitialized manager on top of the store.
func NewManager(s *store.Store) *Manager {
	return &Manager{store: s, now: time.Now}
}

// Initialize loads the persisted layer. Idempotent; a second call is a
// no-op. A storage failure leaves the manager uninitialized.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initialized {
		return nil
	}
	if err := m.store.Load(ctx); err != nil {
		return fmt.Errorf("initialize config manager: %w", err)
	}
	m.initialized = true
	logging.Ctx(ctx).Info().Msg("Configuration manager initialized")
	return nil
}

// Initialized reports whether Initialize has succeeded.
func (m *Manager) Initialized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initialized
}

// Subscribe registers a change listener.
func (m *Manager) Subscribe(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// SetChangeHook installs the single change observer. The review manager
// owns it and feeds the analytics recorder from it.
func (m *Manager) SetChangeHook(h ChangeHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hook = h
}

func (m *Manager) changeHook() ChangeHook {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hook
}

// EffectiveConfig returns the merged decision-time configuration:
// shipped defaults, overlaid by persisted settings, overlaid by any
// developer overrides.
func (m *Manager) EffectiveConfig(ctx context.Context) models.ReviewConfig {
	settings := m.store.ReviewSettings(ctx)
	cfg := structuredFromFlat(settings)

	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.hasOverrides {
		return cfg
	}
	return applyOverrides(cfg, m.overrides)
}

// Settings returns the persisted flat layer (defaults if nothing is
// stored yet).
func (m *Manager) Settings(ctx context.Context) models.ReviewSettings {
	return m.store.ReviewSettings(ctx)
}

// Overrides returns the current developer overrides and whether any are
// set.
func (m *Manager) Overrides() (models.DevOverrides, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.overrides, m.hasOverrides
}

// UpdateConfig validates and persists a partial settings change, then
// notifies listeners. Out-of-range numeric values are clamped to their
// floor rather than rejected; structurally invalid input (unknown
// trigger kinds) is rejected. Listener errors are collected into the
// returned slice and never fail the update itself.
func (m *Manager) UpdateConfig(ctx context.Context, patch models.SettingsPatch, source models.ChangeSource, reason string) (models.ReviewConfig, []error, error) {
	start := m.now()

	if patch.IsZero() {
		return m.EffectiveConfig(ctx), nil, nil
	}
	if err := validation.ValidateStruct(patch); err != nil {
		return models.ReviewConfig{}, nil, fmt.Errorf("invalid config update: %w", err)
	}
	clampPatch(&patch)

	if _, err := m.store.UpdateReviewSettings(ctx, patch); err != nil {
		return models.ReviewConfig{}, nil, fmt.Errorf("persist config update: %w", err)
	}

	took := m.now().Sub(start)

	m.mu.Lock()
	m.version++
	m.updateCount++
	m.updateTotal += took
	m.lastUpdate = m.now()
	m.history = append(m.history, models.ConfigHistoryEntry{
		Timestamp: m.lastUpdate,
		Changes:   patch,
		Source:    source,
		Reason:    reason,
	})
	if len(m.history) > HistoryLimit {
		m.history = m.history[len(m.history)-HistoryLimit:]
	}
	version := m.version
	m.mu.Unlock()

	metrics.ConfigUpdates.WithLabelValues(string(source)).Inc()
	logging.Ctx(ctx).Info().
		Str("source", string(source)).
		Str("reason", reason).
		Int("version", version).
		Dur("took", took).
		Msg("Review configuration updated")

	if hook := m.changeHook(); hook != nil {
		hook(source, reason, took)
	}

	effective := m.EffectiveConfig(ctx)
	return effective, m.notify(ctx, effective), nil
}

// ResetToDefaults replaces the persisted layer with the shipped
// defaults and clears developer overrides.
func (m *Manager) ResetToDefaults(ctx context.Context, reason string) (models.ReviewConfig, []error, error) {
	// Deriving the flat record from the structured default keeps the two
	// representations provably consistent.
	defaults := flatFromStructured(DefaultReviewConfig())
	patch := models.SettingsPatch{
		MinimumAppOpens:   &defaults.MinimumAppOpens,
		CooldownDays:      &defaults.CooldownDays,
		EnabledTriggers:   &defaults.EnabledTriggers,
		DebugMode:         &defaults.DebugMode,
		MaxPromptsPerUser: &defaults.MaxPromptsPerUser,
	}

	m.mu.Lock()
	m.overrides = models.DevOverrides{}
	m.hasOverrides = false
	m.mu.Unlock()

	return m.UpdateConfig(ctx, patch, models.SourceReset, reason)
}

// SetDevOverrides installs the debug-only override layer. Nothing is
// persisted; overrides vanish on restart. Listeners are notified with
// the new effective configuration.
func (m *Manager) SetDevOverrides(ctx context.Context, o models.DevOverrides) ([]error, error) {
	if err := validation.ValidateStruct(o); err != nil {
		return nil, fmt.Errorf("invalid dev overrides: %w", err)
	}

	m.mu.Lock()
	m.overrides = o
	m.hasOverrides = true
	m.mu.Unlock()

	metrics.ConfigUpdates.WithLabelValues(string(models.SourceDevOverride)).Inc()
	logging.Ctx(ctx).Info().
		Bool("force_show", o.ForceShow).
		Bool("skip_cooldown", o.SkipCooldown).
		Bool("simulate_errors", o.SimulateErrors).
		Msg("Developer overrides installed")

	if hook := m.changeHook(); hook != nil {
		hook(models.SourceDevOverride, "overrides installed", 0)
	}

	return m.notify(ctx, m.EffectiveConfig(ctx)), nil
}

// ClearDevOverrides removes the override layer and notifies listeners.
func (m *Manager) ClearDevOverrides(ctx context.Context) []error {
	m.mu.Lock()
	m.overrides = models.DevOverrides{}
	m.hasOverrides = false
	m.mu.Unlock()

	logging.Ctx(ctx).Info().Msg("Developer overrides cleared")

	if hook := m.changeHook(); hook != nil {
		hook(models.SourceDevOverride, "overrides cleared", 0)
	}

	return m.notify(ctx, m.EffectiveConfig(ctx))
}

// History returns a copy of the change history, oldest first.
func (m *Manager) History() []models.ConfigHistoryEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.ConfigHistoryEntry(nil), m.history...)
}

// Version returns the monotonically increasing configuration version.
// It starts at zero and bumps on every persisted change.
func (m *Manager) Version() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}

// DebugInfo is the admin snapshot of the configuration subsystem.
type DebugInfo struct {
	Initialized      bool                        `json:"initialized"`
	Version          int                         `json:"version"`
	Effective        models.ReviewConfig         `json:"effective_config"`
	Persisted        models.ReviewSettings       `json:"persisted_settings"`
	Overrides        *models.DevOverrides        `json:"dev_overrides,omitempty"`
	History          []models.ConfigHistoryEntry `json:"history"`
	StorageAvailable bool                        `json:"storage_available"`
	Performance      DebugPerformance            `json:"performance"`
	LastUpdate       *time.Time                  `json:"last_update,omitempty"`
}

// DebugPerformance is the performance block of the debug snapshot.
// Durations are milliseconds; zero means the operation has not run yet.
type DebugPerformance struct {
	LoadTimeMS      float64 `json:"load_time_ms"`
	SaveTimeMS      float64 `json:"save_time_ms"`
	UpdateCount     int     `json:"update_count"`
	AvgUpdateTimeMS float64 `json:"avg_update_time_ms"`
}

func durationMS(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}

// AdminDebugInfo assembles the full debug snapshot.
func (m *Manager) AdminDebugInfo(ctx context.Context) DebugInfo {
	effective := m.EffectiveConfig(ctx)
	persisted := m.store.ReviewSettings(ctx)
	available := m.store.IsAvailable(ctx)
	loadTook, saveTook := m.store.Timings()

	m.mu.RLock()
	defer m.mu.RUnlock()

	perf := DebugPerformance{
		LoadTimeMS:  durationMS(loadTook),
		SaveTimeMS:  durationMS(saveTook),
		UpdateCount: m.updateCount,
	}
	if m.updateCount > 0 {
		perf.AvgUpdateTimeMS = durationMS(m.updateTotal) / float64(m.updateCount)
	}

	info := DebugInfo{
		Initialized:      m.initialized,
		Version:          m.version,
		Effective:        effective,
		Persisted:        persisted,
		History:          append([]models.ConfigHistoryEntry(nil), m.history...),
		StorageAvailable: available,
		Performance:      perf,
	}
	if m.hasOverrides {
		o := m.overrides
		info.Overrides = &o
	}
	if !m.lastUpdate.IsZero() {
		t := m.lastUpdate
		info.LastUpdate = &t
	}
	return info
}

// ConfigSnapshot is the export/import form of the persisted layer.
// Overrides are deliberately excluded: they are debug state, not
// configuration.
type ConfigSnapshot struct {
	Version    int                   `json:"version"`
	ExportedAt time.Time             `json:"exported_at"`
	Settings   models.ReviewSettings `json:"settings"`
}

// ExportSnapshot captures the persisted settings for transfer.
func (m *Manager) ExportSnapshot(ctx context.Context) ConfigSnapshot {
	m.mu.RLock()
	version := m.version
	m.mu.RUnlock()
	return ConfigSnapshot{
		Version:    version,
		ExportedAt: m.now(),
		Settings:   m.store.ReviewSettings(ctx),
	}
}

// ImportSnapshot applies an exported snapshot as a full settings update.
// Export followed by Import on the same state is a no-op apart from the
// version bump.
func (m *Manager) ImportSnapshot(ctx context.Context, snap ConfigSnapshot, reason string) (models.ReviewConfig, []error, error) {
	s := snap.Settings
	invalid := 0
	kept := make([]models.TriggerKind, 0, len(s.EnabledTriggers))
	for _, k := range s.EnabledTriggers {
		if k.Valid() {
			kept = append(kept, k)
		} else {
			invalid++
		}
	}
	if invalid > 0 {
		return models.ReviewConfig{}, nil, fmt.Errorf("snapshot contains %d unknown trigger kinds", invalid)
	}

	patch := models.SettingsPatch{
		MinimumAppOpens:   &s.MinimumAppOpens,
		CooldownDays:      &s.CooldownDays,
		EnabledTriggers:   &kept,
		DebugMode:         &s.DebugMode,
		MaxPromptsPerUser: &s.MaxPromptsPerUser,
	}
	return m.UpdateConfig(ctx, patch, models.SourceSystem, reason)
}

// notify fans the new effective configuration out to all listeners and
// collects their errors. A panicking or failing listener never stops
// the others.
func (m *Manager) notify(ctx context.Context, cfg models.ReviewConfig) []error {
	m.mu.RLock()
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.RUnlock()

	var errs []error
	for i, l := range listeners {
		if err := safeNotify(l, cfg); err != nil {
			metrics.ConfigListenerErrors.Inc()
			logging.Ctx(ctx).Warn().Err(err).Int("listener", i).Msg("Config listener failed")
			errs = append(errs, fmt.Errorf("listener %d: %w", i, err))
		}
	}
	return errs
}

// safeNotify invokes one listener, converting a panic into an error.
func safeNotify(l Listener, cfg models.ReviewConfig) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panicked: %v", r)
		}
	}()
	return l(cfg.Clone())
}

// clampPatch pushes out-of-range numeric fields to their floor. Update
// time clamps instead of reverting to defaults: the caller's intent is
// preserved as far as it is legal.
func clampPatch(p *models.SettingsPatch) {
	if p.MinimumAppOpens != nil && *p.MinimumAppOpens < 1 {
		one := 1
		p.MinimumAppOpens = &one
	}
	if p.CooldownDays != nil && *p.CooldownDays < 0 {
		zero := 0
		p.CooldownDays = &zero
	}
	if p.MaxPromptsPerUser != nil && *p.MaxPromptsPerUser < 1 {
		one := 1
		p.MaxPromptsPerUser = &one
	}
}

// applyOverrides overlays developer overrides onto the merged config.
// ForceShow and SkipCooldown are consumed by the trigger engine via
// Overrides(); only the threshold-shaped overrides act here.
func applyOverrides(cfg models.ReviewConfig, o models.DevOverrides) models.ReviewConfig {
	out := cfg.Clone()

	if o.OverrideMinimumAppOpens != nil {
		ts := out.Triggers[models.TriggerAppOpen]
		ts.MinimumCount = *o.OverrideMinimumAppOpens
		if ts.MinimumCount < 1 {
			ts.MinimumCount = 1
		}
		out.Triggers[models.TriggerAppOpen] = ts
	}
	for kind, patch := range o.TriggerOverrides {
		ts, ok := out.Triggers[kind]
		if !ok {
			continue
		}
		patch.Apply(&ts)
		if ts.MinimumCount < 1 && (kind == models.TriggerAppOpen || kind == models.TriggerSuccessfulFoodLog) {
			ts.MinimumCount = 1
		}
		out.Triggers[kind] = ts
	}
	if o.VerboseLogging {
		out.DebugMode = true
	}
	return out
}
