package apperrors

import (
	"errors"
	"net/http"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "without underlying error",
			err:  New(NotFound, "policy not found"),
			want: "NOT_FOUND: policy not found",
		},
		{
			name: "with underlying error",
			err:  Wrap(TransientIO, "remediator call failed", errors.New("dial tcp: timeout")),
			want: "TRANSIENT_IO: remediator call failed: dial tcp: timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	underlying := errors.New("boom")
	err := Wrap(Internal, "invariant violated", underlying)

	if got := err.Unwrap(); got != underlying {
		t.Errorf("Unwrap() = %v, want %v", got, underlying)
	}
}

func TestError_HTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{Validation, http.StatusBadRequest},
		{NotFound, http.StatusNotFound},
		{Conflict, http.StatusConflict},
		{TransientIO, http.StatusServiceUnavailable},
		{PermanentIO, http.StatusBadGateway},
		{Internal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := New(tt.code, "x").HTTPStatus(); got != tt.want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestAsAndIs(t *testing.T) {
	err := Invalid("value out of range", "threshold")
	wrapped := errors.New("context: " + err.Error())

	if _, ok := As(wrapped); ok {
		t.Fatalf("As() should not unwrap a plain error")
	}
	if extracted, ok := As(err); !ok || extracted.Code != Validation {
		t.Fatalf("As() failed to extract *Error")
	}
	if !Is(err, Validation) {
		t.Fatalf("Is(err, Validation) = false, want true")
	}
	if Is(err, Conflict) {
		t.Fatalf("Is(err, Conflict) = true, want false")
	}
}

func TestHTTPStatusOf_PlainError(t *testing.T) {
	if got := HTTPStatusOf(errors.New("plain")); got != http.StatusInternalServerError {
		t.Errorf("HTTPStatusOf(plain) = %d, want %d", got, http.StatusInternalServerError)
	}
}
