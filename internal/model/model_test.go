package model

import (
	"net/http"
	"strings"
	"testing"
)

func TestNewHTTPErrorWithBody_UsesBodyMessageAndCode(t *testing.T) {
	err := NewHTTPErrorWithBody(http.StatusUnprocessableEntity, map[string]any{
		"message": "Custom error with details",
		"code":    "CUSTOM_ERROR",
		"field":   "testField",
	})

	if err.Status != http.StatusUnprocessableEntity {
		t.Errorf("Status = %d, want %d", err.Status, http.StatusUnprocessableEntity)
	}
	if err.Message != "Custom error with details" {
		t.Errorf("Message = %q", err.Message)
	}
	if err.Code != "CUSTOM_ERROR" {
		t.Errorf("Code = %q, want %q", err.Code, "CUSTOM_ERROR")
	}
	if err.Details["field"] != "testField" {
		t.Errorf("Details[field] = %v", err.Details["field"])
	}
}

func TestNewHTTPErrorWithBody_FallsBackToStatusText(t *testing.T) {
	err := NewHTTPErrorWithBody(http.StatusConflict, map[string]any{"field": "email"})

	if err.Message != "Conflict" {
		t.Errorf("Message = %q, want %q", err.Message, "Conflict")
	}
	if err.Code != ErrCodeHTTP {
		t.Errorf("Code = %q, want %q", err.Code, ErrCodeHTTP)
	}
}

func TestNewHTTPError_HasNoDetails(t *testing.T) {
	err := NewHTTPError(http.StatusNotFound, "Test resource not found")

	if err.Details != nil {
		t.Errorf("Details = %v, want nil", err.Details)
	}
	if !strings.Contains(err.Error(), "Test resource not found") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestStandardConstructors_StatusCodes(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		want int
	}{
		{"bad request", NewBadRequestError("x"), http.StatusBadRequest},
		{"validation", NewValidationError("x", map[string]string{"f": "bad"}), http.StatusBadRequest},
		{"unauthorized", NewUnauthorizedError("x"), http.StatusUnauthorized},
		{"forbidden", NewForbiddenError("x"), http.StatusForbidden},
		{"not found", NewNotFoundError("x"), http.StatusNotFound},
		{"user not found", NewUserNotFoundError(), http.StatusNotFound},
		{"method not allowed", NewMethodNotAllowedError("PATCH", "/x"), http.StatusMethodNotAllowed},
		{"rate limit", NewRateLimitError(), http.StatusTooManyRequests},
		{"onboarding", NewOnboardingIncompleteError(OnboardingSteps{}), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Status != tt.want {
				t.Errorf("Status = %d, want %d", tt.err.Status, tt.want)
			}
			if tt.err.Details["statusCode"] != tt.want {
				t.Errorf("Details[statusCode] = %v, want %d", tt.err.Details["statusCode"], tt.want)
			}
		})
	}
}

func TestOnboardingSteps_AllCompleted(t *testing.T) {
	all := OnboardingSteps{ProfileCompleted: true, AcademicInfoCompleted: true, CareerGoalsSet: true, CVUploaded: true}
	if !all.AllCompleted() {
		t.Error("expected AllCompleted to be true when every step is done")
	}

	// 1つでも未達成ならfalse
	variants := []OnboardingSteps{
		{AcademicInfoCompleted: true, CareerGoalsSet: true, CVUploaded: true},
		{ProfileCompleted: true, CareerGoalsSet: true, CVUploaded: true},
		{ProfileCompleted: true, AcademicInfoCompleted: true, CVUploaded: true},
		{ProfileCompleted: true, AcademicInfoCompleted: true, CareerGoalsSet: true},
	}
	for i, v := range variants {
		if v.AllCompleted() {
			t.Errorf("variant %d: expected AllCompleted to be false", i)
		}
	}
}

func TestHasText(t *testing.T) {
	empty := ""
	blank := "   "
	name := "Ana"

	if HasText(nil) {
		t.Error("HasText(nil) should be false")
	}
	if HasText(&empty) {
		t.Error("HasText(\"\") should be false")
	}
	if HasText(&blank) {
		t.Error("HasText(blank) should be false")
	}
	if !HasText(&name) {
		t.Error("HasText(\"Ana\") should be true")
	}
}

func TestProfileUpdate_IsEmpty(t *testing.T) {
	if !(ProfileUpdate{}).IsEmpty() {
		t.Error("zero ProfileUpdate should be empty")
	}
	major := "CS"
	if (ProfileUpdate{Major: &major}).IsEmpty() {
		t.Error("ProfileUpdate with Major should not be empty")
	}
}
