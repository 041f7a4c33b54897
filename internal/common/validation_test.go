package common

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestValidatorCollectsErrors(t *testing.T) {
	v := NewValidator().
		Field("last_name", "  ", Required).
		Field("birthday", strings.Repeat("x", 5), MaxLength(4)).
		Field("file", "card.pdf", AllowedExtension).
		Field("task_id", uuid.NewString(), UUID)

	if got := len(v.Errors()); got != 3 {
		t.Fatalf("expected 3 errors, got %d: %v", got, v.Errors())
	}
	err := v.Err()
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if HTTPStatus(err) != http.StatusBadRequest {
		t.Fatalf("validation should map to 400")
	}
	msg := v.ErrorMessage()
	for _, want := range []string{"last_name is required", "birthday must be at most 4 characters", "file must have one of the extensions: gif, jpeg, jpg, png"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message %q missing %q", msg, want)
		}
	}
}

func TestValidatorPasses(t *testing.T) {
	v := NewValidator().
		Field("last_name", "Doe", Required, MaxLength(256)).
		Field("file", "Card.JPG", AllowedExtension)
	if err := v.Err(); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{NewAppError("QUEUE_FULL", "full", ErrQueueFull), http.StatusServiceUnavailable},
		{NewAppError("SHUTTING_DOWN", "bye", ErrShuttingDown), http.StatusServiceUnavailable},
		{WrapError(ErrNotFound, "poll"), http.StatusNotFound},
		{ErrUnauthorized, http.StatusUnauthorized},
		{NewAppError("INTERNAL", "invalid outcome", ErrInternal), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
	if ErrorCode(errors.New("plain"), "FALLBACK") != "FALLBACK" {
		t.Fatal("expected fallback code")
	}
}
