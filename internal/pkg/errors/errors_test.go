package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "without wrapped error",
			err:  New("DEAL_NOT_FOUND", "deal not found", http.StatusNotFound),
			want: "DEAL_NOT_FOUND: deal not found",
		},
		{
			name: "with wrapped error",
			err:  Wrap(fmt.Errorf("db error"), "STORE_UNAVAILABLE", "store failure", http.StatusServiceUnavailable),
			want: "STORE_UNAVAILABLE: store failure: db error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap(inner, "CODE", "msg", 500)

	if !errors.Is(appErr, inner) {
		t.Error("errors.Is should match inner error")
	}
}

func TestIsAppError(t *testing.T) {
	appErr := NotFound(CodeDealNotFound, "deal not found")
	wrapped := fmt.Errorf("wrapped: %w", appErr)

	got, ok := IsAppError(wrapped)
	if !ok {
		t.Fatal("IsAppError should return true for wrapped AppError")
	}
	if got.Code != CodeDealNotFound {
		t.Errorf("Code = %q, want %q", got.Code, CodeDealNotFound)
	}
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		wantStatus int
	}{
		{"NotFound", NotFound("NF", "not found"), http.StatusNotFound},
		{"BadRequest", BadRequest("BR", "bad request"), http.StatusBadRequest},
		{"Unauthorized", Unauthorized("UA", "unauthorized"), http.StatusUnauthorized},
		{"Forbidden", Forbidden("FB", "forbidden"), http.StatusForbidden},
		{"Conflict", Conflict("CF", "conflict"), http.StatusConflict},
		{"Unavailable", Unavailable("UV", "unavailable"), http.StatusServiceUnavailable},
		{"Internal", Internal("IE", "internal"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.HTTPStatus != tt.wantStatus {
				t.Errorf("HTTPStatus = %d, want %d", tt.err.HTTPStatus, tt.wantStatus)
			}
		})
	}
}

func TestErrCapacityExceededf(t *testing.T) {
	err := ErrCapacityExceededf("Due Diligence", 8, 8)

	if err.Code != CodeCapacityExceeded {
		t.Errorf("Code = %q, want %q", err.Code, CodeCapacityExceeded)
	}
	if err.HTTPStatus != http.StatusConflict {
		t.Errorf("HTTPStatus = %d, want %d", err.HTTPStatus, http.StatusConflict)
	}
	want := "WIP limit of 8 reached for Due Diligence"
	if err.Message != want {
		t.Errorf("Message = %q, want %q", err.Message, want)
	}
	if err.Params["limit"] != 8 || err.Params["current"] != 8 {
		t.Errorf("Params = %v, want limit=8 current=8", err.Params)
	}
}

func TestErrValidationFailed(t *testing.T) {
	err := ErrValidationFailed([]string{"amount must be positive", "account reference required"})

	if err.Code != CodeValidationFailed {
		t.Errorf("Code = %q, want %q", err.Code, CodeValidationFailed)
	}
	if err.HTTPStatus != http.StatusBadRequest {
		t.Errorf("HTTPStatus = %d, want %d", err.HTTPStatus, http.StatusBadRequest)
	}
	if len(err.FieldErrors) != 2 {
		t.Errorf("FieldErrors len = %d, want 2", len(err.FieldErrors))
	}
}
