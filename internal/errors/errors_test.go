package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestGetServiceError(t *testing.T) {
	cause := stderrors.New("connection refused")
	wrapped := fmt.Errorf("fetch tokens: %w", Upstream("Failed to fetch tokens", cause))

	se := GetServiceError(wrapped)
	if se == nil {
		t.Fatal("expected ServiceError in chain")
	}
	if se.HTTPStatus != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", se.HTTPStatus)
	}
	if !stderrors.Is(wrapped, cause) {
		t.Error("cause should be reachable through Unwrap")
	}
	if se.DetailString() != "connection refused" {
		t.Errorf("details = %q", se.DetailString())
	}
	if !Is(wrapped, CodeUpstream) || Is(wrapped, CodeInternal) {
		t.Error("Is() mismatch")
	}
	if GetServiceError(cause) != nil {
		t.Error("plain error should not be a ServiceError")
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		err    *ServiceError
		status int
	}{
		{BadRequest("bad"), http.StatusBadRequest},
		{Unauthorized(""), http.StatusUnauthorized},
		{InvalidToken("", nil), http.StatusUnauthorized},
		{NotFound("deployment"), http.StatusNotFound},
		{Internal("boom", nil), http.StatusInternalServerError},
		{RateLimitExceeded(20, "1s"), http.StatusTooManyRequests},
	}
	for _, tt := range tests {
		if tt.err.HTTPStatus != tt.status {
			t.Errorf("%s: status = %d, want %d", tt.err.Code, tt.err.HTTPStatus, tt.status)
		}
	}
	if got := Unauthorized("").Message; got != "Authentication required" {
		t.Errorf("default message = %q", got)
	}
	if got := InvalidToken("", nil).Message; got != "Invalid or expired token" {
		t.Errorf("default token message = %q", got)
	}
	if got := BadRequest("Invalid timestamp").WithCause(stderrors.New("bad layout")).DetailString(); got != "bad layout" {
		t.Errorf("cause detail = %q", got)
	}
	if got := RateLimitExceeded(20, "1s").Details["limit"]; got != 20 {
		t.Errorf("limit detail = %v", got)
	}
}
