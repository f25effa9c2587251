// Package apperr defines the error kinds shared across ragindex and their HTTP mapping.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel error kinds. Wrap them with the helpers below and test with errors.Is.
var (
	ErrConfiguration       = errors.New("configuration error")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrNotFound            = errors.New("not found")
	ErrStoreUnavailable    = errors.New("vector store unavailable")
	ErrProviderUnavailable = errors.New("embedding provider unavailable")
)

// Configuration returns an ErrConfiguration with a formatted detail.
func Configuration(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// InvalidArgument returns an ErrInvalidArgument with a formatted detail.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// NotFound returns an ErrNotFound with a formatted detail.
func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// StoreUnavailable wraps a store driver error. Both the kind and the cause stay reachable via errors.Is.
func StoreUnavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}

// ProviderUnavailable wraps an embedding provider error.
func ProviderUnavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrProviderUnavailable, op, err)
}

// HTTPStatus maps an error to the status code the API answers with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrConfiguration):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
