package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error wins", New(ErrSourceNotFound, http.StatusServiceUnavailable, "no collector"), http.StatusServiceUnavailable},
		{"not found", ErrSourceNotFound, http.StatusNotFound},
		{"wrapped unsupported", fmt.Errorf("query: %w", ErrUnsupported), http.StatusBadRequest},
		{"invalid input", Newf(ErrInvalidInput, http.StatusBadRequest, "missing %s", "q"), http.StatusBadRequest},
		{"source failed", fmt.Errorf("%w: %w", ErrSourceFailed, errors.New("dial tcp")), http.StatusServiceUnavailable},
		{"deadline", fmt.Errorf("refresh: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := HTTPStatusCode(tt.err); got != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := Newf(ErrInvalidInput, http.StatusBadRequest, "missing %q", "q")
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("AppError must unwrap to its sentinel")
	}
	if got, want := err.Error(), `invalid input: missing "q"`; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
