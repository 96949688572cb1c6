// ReviewPulse - Adaptive Review Prompt Orchestration for the Mealprint shell
// Copyright 2026 Mealprint Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mealprint/reviewpulse

// Package validation provides struct validation using go-playground/validator v10.
// It exposes a thread-safe singleton validator with custom rules for the
// review domain (trigger kinds, review actions, RFC 3339 timestamps).
package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mealprint/reviewpulse/internal/models"
)

// singleton validator instance
var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError describes a single field validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e FieldError) Error() string {
	return e.Message
}

// RequestValidationError aggregates field failures for one struct.
type RequestValidationError struct {
	Fields []FieldError `json:"fields"`
}

// Error implements the error interface.
func (e *RequestValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// instance returns the singleton validator, creating it on first use.
func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		registerCustomValidators(validate)
	})
	return validate
}

// registerCustomValidators adds domain-specific rules.
func registerCustomValidators(v *validator.Validate) {
	// triggerkind: value must be a recognized models.TriggerKind.
	mustRegister(v, "triggerkind", func(fl validator.FieldLevel) bool {
		return models.TriggerKind(fl.Field().String()).Valid()
	})

	// reviewaction: value must be a recognized models.ReviewAction.
	mustRegister(v, "reviewaction", func(fl validator.FieldLevel) bool {
		return models.ReviewAction(fl.Field().String()).Valid()
	})

	// rfc3339: value must parse as an RFC 3339 timestamp.
	mustRegister(v, "rfc3339", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(time.RFC3339, fl.Field().String())
		return err == nil
	})
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validation: register %s: %v", tag, err))
	}
}

// ValidateStruct validates s against its `validate` struct tags.
// Returns nil on success or a *RequestValidationError describing every
// failed field.
func ValidateStruct(s interface{}) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return fmt.Errorf("validation: invalid argument: %w", err)
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &RequestValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Message: fieldMessage(fe),
		})
	}
	return out
}

// fieldMessage renders a human-readable message for one failure.
func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "triggerkind":
		return fmt.Sprintf("%s is not a recognized trigger kind", fe.Field())
	case "reviewaction":
		return fmt.Sprintf("%s is not a recognized review action", fe.Field())
	case "rfc3339":
		return fmt.Sprintf("%s must be an RFC 3339 timestamp", fe.Field())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
