// ReviewPulse - Adaptive Review Prompt Orchestration for the Mealprint shell
// Copyright 2026 Mealprint Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mealprint/reviewpulse

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/mealprint/reviewpulse/internal/config"
	"github.com/mealprint/reviewpulse/internal/logging"
	"github.com/mealprint/reviewpulse/internal/models"
	"github.com/mealprint/reviewpulse/internal/review"
	"github.com/mealprint/reviewpulse/internal/trigger"
	"github.com/mealprint/reviewpulse/internal/validation"
)

type handlers struct {
	manager *review.Manager
	now     func() time.Time
}

// updateConfigRequest is the inbound partial settings change.
type updateConfigRequest struct {
	MinimumAppOpens   *int                  `json:"minimum_app_opens,omitempty"`
	CooldownDays      *int                  `json:"cooldown_days,omitempty"`
	EnabledTriggers   *[]models.TriggerKind `json:"enabled_triggers,omitempty" validate:"omitempty,dive,triggerkind"`
	DebugMode         *bool                 `json:"debug_mode,omitempty"`
	MaxPromptsPerUser *int                  `json:"max_prompts_per_user,omitempty"`
	Reason            string                `json:"reason" validate:"required,max=256"`
}

// recordActionRequest is the shell's user-action envelope.
type recordActionRequest struct {
	Type      string         `json:"type" validate:"required,max=64"`
	Timestamp string         `json:"timestamp,omitempty" validate:"omitempty,rfc3339"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// checkReviewRequest carries the evaluation occasion and app state. The
// user state is always read from the store, never trusted from the
// caller.
type checkReviewRequest struct {
	Trigger  string `json:"trigger" validate:"required,triggerkind"`
	AppState struct {
		IsLoading        bool   `json:"is_loading"`
		HasErrors        bool   `json:"has_errors"`
		CurrentScreen    string `json:"current_screen" validate:"max=128"`
		SessionStartTime string `json:"session_start_time,omitempty" validate:"omitempty,rfc3339"`
	} `json:"app_state"`
}

type checkReviewResponse struct {
	Shown  bool                 `json:"shown"`
	Result models.TriggerResult `json:"result"`
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	if !h.manager.Store().IsAvailable(r.Context()) {
		respondError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) debugInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	info := struct {
		Config       config.DebugInfo   `json:"config"`
		UserMetrics  models.UserMetrics `json:"user_metrics"`
		NextEligible *time.Time         `json:"next_eligible_time,omitempty"`
		Performance  map[string]float64 `json:"performance"`
		SessionID    string             `json:"session_id"`
		LastRequest  *time.Time         `json:"last_gateway_request,omitempty"`
	}{
		Config:       h.manager.Config().AdminDebugInfo(ctx),
		UserMetrics:  h.manager.Store().UserMetrics(ctx),
		NextEligible: h.manager.NextEligibleTime(ctx),
		Performance:  h.manager.Recorder().PerformanceStats(),
		SessionID:    h.manager.Recorder().SessionID(),
	}
	if last := h.manager.Gateway().LastRequest(); !last.IsZero() {
		info.LastRequest = &last
	}
	respondJSON(w, http.StatusOK, info)
}

func (h *handlers) updateConfig(w http.ResponseWriter, r *http.Request) {
	var req updateConfigRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	patch := models.SettingsPatch{
		MinimumAppOpens:   req.MinimumAppOpens,
		CooldownDays:      req.CooldownDays,
		EnabledTriggers:   req.EnabledTriggers,
		DebugMode:         req.DebugMode,
		MaxPromptsPerUser: req.MaxPromptsPerUser,
	}

	effective, listenerErrs, err := h.manager.Config().UpdateConfig(r.Context(), patch, models.SourceUser, req.Reason)
	if err != nil {
		respondUpdateError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, configChangeResponse(effective, listenerErrs))
}

func (h *handlers) resetConfig(w http.ResponseWriter, r *http.Request) {
	effective, listenerErrs, err := h.manager.Config().ResetToDefaults(r.Context(), "admin reset")
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, configChangeResponse(effective, listenerErrs))
}

func (h *handlers) setOverrides(w http.ResponseWriter, r *http.Request) {
	var o models.DevOverrides
	if !decodeAndValidate(w, r, &o) {
		return
	}
	listenerErrs, err := h.manager.Config().SetDevOverrides(r.Context(), o)
	if err != nil {
		respondUpdateError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, configChangeResponse(h.manager.Config().EffectiveConfig(r.Context()), listenerErrs))
}

func (h *handlers) clearOverrides(w http.ResponseWriter, r *http.Request) {
	listenerErrs := h.manager.Config().ClearDevOverrides(r.Context())
	respondJSON(w, http.StatusOK, configChangeResponse(h.manager.Config().EffectiveConfig(r.Context()), listenerErrs))
}

func (h *handlers) recordAction(w http.ResponseWriter, r *http.Request) {
	var req recordActionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	at := h.now()
	if req.Timestamp != "" {
		// Already validated as RFC 3339.
		at, _ = time.Parse(time.RFC3339, req.Timestamp)
	}

	action := models.ParseUserAction(req.Type, at, req.Metadata)
	updated, err := h.manager.RecordUserAction(r.Context(), action)
	if err != nil {
		if errors.Is(err, trigger.ErrNotInitialized) {
			respondError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (h *handlers) checkReview(w http.ResponseWriter, r *http.Request) {
	var req checkReviewRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	ctx := r.Context()
	sessionStart := h.now()
	if req.AppState.SessionStartTime != "" {
		sessionStart, _ = time.Parse(time.RFC3339, req.AppState.SessionStartTime)
	}

	rc := models.ReviewContext{
		Trigger:   models.TriggerKind(req.Trigger),
		UserState: h.manager.Store().UserMetrics(ctx),
		AppState: models.AppState{
			IsLoading:        req.AppState.IsLoading,
			HasErrors:        req.AppState.HasErrors,
			CurrentScreen:    req.AppState.CurrentScreen,
			SessionStartTime: sessionStart,
		},
	}

	shown, result, err := h.manager.CheckAndTriggerReview(ctx, rc)
	if err != nil {
		if errors.Is(err, trigger.ErrNotInitialized) {
			respondError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, checkReviewResponse{Shown: shown, Result: result})
}

func (h *handlers) clearData(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.ClearAllData(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (h *handlers) exportAnalytics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.manager.Recorder().Export())
}

func (h *handlers) exportConfig(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.manager.Config().ExportSnapshot(r.Context()))
}

func (h *handlers) importConfig(w http.ResponseWriter, r *http.Request) {
	var snap config.ConfigSnapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	effective, listenerErrs, err := h.manager.Config().ImportSnapshot(r.Context(), snap, "admin import")
	if err != nil {
		respondUpdateError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, configChangeResponse(effective, listenerErrs))
}

// decodeAndValidate decodes the JSON body into dst and validates its
// struct tags, writing the error response itself on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	if err := validation.ValidateStruct(dst); err != nil {
		var verr *validation.RequestValidationError
		if errors.As(err, &verr) {
			respondJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": verr.Fields,
			})
			return false
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// respondUpdateError distinguishes validation rejections from storage
// failures.
func respondUpdateError(w http.ResponseWriter, err error) {
	var verr *validation.RequestValidationError
	if errors.As(err, &verr) {
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": verr.Fields,
		})
		return
	}
	respondError(w, http.StatusInternalServerError, err.Error())
}

func configChangeResponse(effective models.ReviewConfig, listenerErrs []error) map[string]any {
	out := map[string]any{"effective_config": effective}
	if len(listenerErrs) > 0 {
		msgs := make([]string, 0, len(listenerErrs))
		for _, e := range listenerErrs {
			msgs = append(msgs, e.Error())
		}
		out["listener_errors"] = msgs
	}
	return out
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Error().Err(err).Msg("Failed to encode API response")
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
