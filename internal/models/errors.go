// ReviewPulse - Adaptive Review Prompt Orchestration for the Mealprint shell
// Copyright 2026 Mealprint Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mealprint/reviewpulse

package models

import (
	"fmt"
	"time"
)

// ErrorType categorizes review delivery failures. Each category has a
// distinct retry/fallback policy in the invocation gateway.
type ErrorType string

const (
	ErrPlayServicesUnavailable ErrorType = "PLAY_SERVICES_UNAVAILABLE"
	ErrNetwork                 ErrorType = "NETWORK_ERROR"
	ErrStorage                 ErrorType = "STORAGE_ERROR"
	ErrAPIRateLimit            ErrorType = "API_RATE_LIMIT"
	ErrUnknown                 ErrorType = "UNKNOWN_ERROR"
)

// ReviewFailure is a categorized review delivery error.
type ReviewFailure struct {
	Type        ErrorType `json:"type"`
	Message     string    `json:"message"`
	OriginalErr error     `json:"-"`
	Context     string    `json:"context,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Error implements the error interface.
func (e *ReviewFailure) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Context)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *ReviewFailure) Unwrap() error {
	return e.OriginalErr
}

// Retryable reports whether the gateway should retry this category
// within the same session. Network and rate-limit failures are not
// retried: another attempt seconds later is unlikely to land.
func (e *ReviewFailure) Retryable() bool {
	return e.Type == ErrPlayServicesUnavailable || e.Type == ErrUnknown
}
