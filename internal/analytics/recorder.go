// ReviewPulse - Adaptive Review Prompt Orchestration for the Mealprint shell
// Copyright 2026 Mealprint Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mealprint/reviewpulse

// Package analytics provides the append-only, bounded audit log for the
// review engine. Every tracked event is correlated by a per-instance
// session id; performance samples ride alongside the event log and are
// aggregated as arithmetic means. The log is purely in-memory: it backs
// the debug report surface, not a product analytics pipeline.
package analytics

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mealprint/reviewpulse/internal/logging"
	"github.com/mealprint/reviewpulse/internal/models"
)

// Event type names used by the recorder.
const (
	EventTriggerEvaluated  = "trigger_evaluated"
	EventPromptShown       = "review_prompt_shown"
	EventReviewOutcome     = "review_outcome"
	EventUserAction        = "user_action"
	EventReviewFailure     = "review_failure"
	EventConfigChanged     = "config_changed"
	EventOverridesChanged  = "dev_overrides_changed"
	EventDataCleared       = "data_cleared"
	EventStoreFallback     = "store_fallback"
	EventPerformanceSample = "performance_sample"
)

// Performance dimensions.
const (
	DimEvaluationMS   = "evaluation_ms"
	DimPromptMS       = "prompt_ms"
	DimConfigUpdateMS = "config_update_ms"
)

// DefaultMaxEvents caps the event log; the oldest entries are dropped
// first once the cap is exceeded.
const DefaultMaxEvents = 1000

// PerfSample is one recorded measurement of a tracked dimension.
type PerfSample struct {
	Dimension string    `json:"dimension"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is an immutable export of the recorder's state, suitable for
// bundling into a debug report.
type Snapshot struct {
	SessionID  string                  `json:"session_id"`
	ExportedAt time.Time               `json:"exported_at"`
	Events     []models.AnalyticsEvent `json:"events"`
	Perf       []PerfSample            `json:"performance_samples"`
	DebugLog   []string                `json:"debug_log"`
}

// Recorder is the append-only analytics/audit recorder. Safe for
// concurrent use.
type Recorder struct {
	mu        sync.Mutex
	sessionID string
	events    []models.AnalyticsEvent
	perf      []PerfSample
	debugLog  []string
	debugMode bool
	maxEvents int
	now       func() time.Time
}

// New creates a recorder with a fresh session id and the default cap.
func New() *Recorder {
	return NewWithCap(DefaultMaxEvents)
}

// NewWithCap creates a recorder with an explicit event cap.
func NewWithCap(maxEvents int) *Recorder {
	if maxEvents < 1 {
		maxEvents = DefaultMaxEvents
	}
	return &Recorder{
		sessionID: uuid.New().String(),
		maxEvents: maxEvents,
		now:       time.Now,
	}
}

// SessionID returns the per-instance session id.
func (r *Recorder) SessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessionID
}

// TrackTriggerEvaluation records one evaluation with its verdict and a
// correlated performance sample.
func (r *Recorder) TrackTriggerEvaluation(rc models.ReviewContext, res models.TriggerResult, took time.Duration) {
	snapshot := rc
	r.append(models.AnalyticsEvent{
		EventType: EventTriggerEvaluated,
		Context:   &snapshot,
		Metadata: map[string]string{
			"trigger":        string(rc.Trigger),
			"should_trigger": fmt.Sprintf("%t", res.ShouldTrigger),
			"reason":         res.Reason,
			"confidence":     fmt.Sprintf("%.2f", res.Confidence),
		},
	})
	r.sample(DimEvaluationMS, float64(took.Microseconds())/1000.0)
}

// TrackPromptShown records a prompt actually reaching the user, with a
// correlated latency sample.
func (r *Recorder) TrackPromptShown(rc models.ReviewContext, took time.Duration) {
	snapshot := rc
	r.append(models.AnalyticsEvent{
		EventType: EventPromptShown,
		Context:   &snapshot,
		Metadata:  map[string]string{"trigger": string(rc.Trigger)},
	})
	r.sample(DimPromptMS, float64(took.Milliseconds()))
}

// TrackReviewOutcome records the terminal result of one gateway call.
func (r *Recorder) TrackReviewOutcome(res models.ReviewResult) {
	metadata := map[string]string{
		"action":  string(res.Action),
		"success": fmt.Sprintf("%t", res.Success),
	}
	if res.Err != "" {
		metadata["error"] = res.Err
	}
	r.append(models.AnalyticsEvent{EventType: EventReviewOutcome, Metadata: metadata})
}

// TrackUserAction records an inbound user action by its wire name.
func (r *Recorder) TrackUserAction(action models.UserAction) {
	r.append(models.AnalyticsEvent{
		EventType: EventUserAction,
		Metadata:  map[string]string{"action_type": action.ActionType()},
	})
}

// TrackFailure records a categorized review failure.
func (r *Recorder) TrackFailure(failure *models.ReviewFailure) {
	if failure == nil {
		return
	}
	r.append(models.AnalyticsEvent{
		EventType: EventReviewFailure,
		Metadata: map[string]string{
			"error_type": string(failure.Type),
			"message":    failure.Message,
			"context":    failure.Context,
		},
	})
}

// TrackConfigChange records a configuration update with its source and
// a correlated update-duration sample.
func (r *Recorder) TrackConfigChange(source models.ChangeSource, reason string, took time.Duration) {
	r.append(models.AnalyticsEvent{
		EventType: EventConfigChanged,
		Metadata:  map[string]string{"source": string(source), "reason": reason},
	})
	r.sample(DimConfigUpdateMS, float64(took.Microseconds())/1000.0)
}

// Track appends a free-form event. The session id and timestamp are
// always the recorder's own.
func (r *Recorder) Track(eventType string, metadata map[string]string) {
	r.append(models.AnalyticsEvent{EventType: eventType, Metadata: metadata})
}

// Events returns a copy of the full event log, oldest first.
func (r *Recorder) Events() []models.AnalyticsEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.AnalyticsEvent(nil), r.events...)
}

// EventsByType returns the events matching the given type.
func (r *Recorder) EventsByType(eventType string) []models.AnalyticsEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.AnalyticsEvent, 0)
	for _, e := range r.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// EventsInRange returns the events with from <= timestamp <= to.
func (r *Recorder) EventsInRange(from, to time.Time) []models.AnalyticsEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.AnalyticsEvent, 0)
	for _, e := range r.events {
		if e.Timestamp.Before(from) || e.Timestamp.After(to) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// PerformanceStats returns the arithmetic mean of every tracked
// dimension. Dimensions with no samples report zero.
func (r *Recorder) PerformanceStats() map[string]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	sums := map[string]float64{DimEvaluationMS: 0, DimPromptMS: 0, DimConfigUpdateMS: 0}
	counts := make(map[string]int)
	for _, s := range r.perf {
		sums[s.Dimension] += s.Value
		counts[s.Dimension]++
	}

	out := make(map[string]float64, len(sums))
	for dim, sum := range sums {
		if counts[dim] == 0 {
			out[dim] = 0
			continue
		}
		out[dim] = sum / float64(counts[dim])
	}
	return out
}

// SetDebugMode toggles mirroring of tracked events to the diagnostic
// log channel.
func (r *Recorder) SetDebugMode(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.debugMode = enabled
}

// Clear empties the event log and resets the debug log to a single
// cleared marker. The session id is retained.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
	r.perf = nil
	r.debugLog = []string{fmt.Sprintf("analytics cleared at %s", r.now().Format(time.RFC3339))}
}

// Export returns an immutable snapshot of the recorder's state.
func (r *Recorder) Export() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		SessionID:  r.sessionID,
		ExportedAt: r.now(),
		Events:     append([]models.AnalyticsEvent(nil), r.events...),
		Perf:       append([]PerfSample(nil), r.perf...),
		DebugLog:   append([]string(nil), r.debugLog...),
	}
}

// append stamps and stores one event, trimming from the oldest end once
// the cap is exceeded.
func (r *Recorder) append(event models.AnalyticsEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	event.Timestamp = r.now()
	event.SessionID = r.sessionID
	r.events = append(r.events, event)
	if len(r.events) > r.maxEvents {
		r.events = r.events[len(r.events)-r.maxEvents:]
	}

	if r.debugMode {
		line := fmt.Sprintf("%s %s %v", event.Timestamp.Format(time.RFC3339), event.EventType, event.Metadata)
		r.debugLog = append(r.debugLog, line)
		logging.Debug().Str("event_type", event.EventType).Interface("metadata", event.Metadata).Msg("Analytics event")
	}
}

// sample records one performance measurement and mirrors it into the
// event log as a performance_sample event.
func (r *Recorder) sample(dimension string, value float64) {
	r.append(models.AnalyticsEvent{
		EventType: EventPerformanceSample,
		Metadata: map[string]string{
			"dimension": dimension,
			"value":     fmt.Sprintf("%.3f", value),
		},
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	r.perf = append(r.perf, PerfSample{Dimension: dimension, Value: value, Timestamp: r.now()})
	if len(r.perf) > r.maxEvents {
		r.perf = r.perf[len(r.perf)-r.maxEvents:]
	}
}
