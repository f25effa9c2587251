package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	cause := errors.New("disk full")
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"invalid argument", InvalidArgument("k must be positive, got %d", 0), http.StatusBadRequest},
		{"configuration", Configuration("overlap %d >= size %d", 400, 400), http.StatusUnprocessableEntity},
		{"not found", NotFound("ingestion %s", "abc"), http.StatusNotFound},
		{"store", StoreUnavailable("add", cause), http.StatusInternalServerError},
		{"provider", ProviderUnavailable("embed", cause), http.StatusInternalServerError},
		{"wrapped invalid", fmt.Errorf("search: %w", InvalidArgument("empty query")), http.StatusBadRequest},
		{"plain", cause, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestStoreUnavailable_keepsCause(t *testing.T) {
	cause := errors.New("locked")
	err := StoreUnavailable("add batch", cause)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Error("expected ErrStoreUnavailable")
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to be reachable")
	}
	if StoreUnavailable("noop", nil) != nil {
		t.Error("nil cause should yield nil")
	}
}
