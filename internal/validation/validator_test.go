// ReviewPulse - Adaptive Review Prompt Orchestration for the Mealprint shell
// Copyright 2026 Mealprint Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mealprint/reviewpulse

package validation

import (
	"errors"
	"testing"
)

type sampleRequest struct {
	Trigger   string `validate:"required,triggerkind"`
	Action    string `validate:"omitempty,reviewaction"`
	Timestamp string `validate:"omitempty,rfc3339"`
	Note      string `validate:"max=8"`
}

func TestValidateStruct(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		req        sampleRequest
		wantFields []string
	}{
		{
			name: "valid request",
			req: sampleRequest{
				Trigger:   "APP_OPEN",
				Action:    "COMPLETED",
				Timestamp: "2026-08-01T12:00:00Z",
			},
		},
		{
			name:       "missing trigger",
			req:        sampleRequest{},
			wantFields: []string{"Trigger"},
		},
		{
			name:       "unknown trigger kind",
			req:        sampleRequest{Trigger: "NONSENSE"},
			wantFields: []string{"Trigger"},
		},
		{
			name:       "unknown review action",
			req:        sampleRequest{Trigger: "APP_OPEN", Action: "SHRUGGED"},
			wantFields: []string{"Action"},
		},
		{
			name:       "bad timestamp",
			req:        sampleRequest{Trigger: "APP_OPEN", Timestamp: "yesterday"},
			wantFields: []string{"Timestamp"},
		},
		{
			name:       "multiple failures reported together",
			req:        sampleRequest{Trigger: "NONSENSE", Note: "far too long a note"},
			wantFields: []string{"Trigger", "Note"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateStruct(tt.req)
			if len(tt.wantFields) == 0 {
				if err != nil {
					t.Fatalf("valid struct rejected: %v", err)
				}
				return
			}

			var verr *RequestValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error type = %T, want *RequestValidationError", err)
			}
			if len(verr.Fields) != len(tt.wantFields) {
				t.Fatalf("failed fields = %+v, want %v", verr.Fields, tt.wantFields)
			}
			for i, want := range tt.wantFields {
				if verr.Fields[i].Field != want {
					t.Errorf("field[%d] = %q, want %q", i, verr.Fields[i].Field, want)
				}
				if verr.Fields[i].Message == "" {
					t.Errorf("field[%d] has no message", i)
				}
			}
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	t.Parallel()

	err := ValidateStruct(sampleRequest{})
	var verr *RequestValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error type = %T", err)
	}
	if verr.Error() == "" {
		t.Error("empty aggregate message")
	}
}
