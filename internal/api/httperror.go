package api

import (
	"errors"
	"fmt"
	"net/http"

	"review_fetcher/internal/domain"
)

// HTTPError carries the status code and the message returned to the client.
type HTTPError struct {
	cause   error
	Code    int
	Message string
}

func (he *HTTPError) Error() string {
	return he.Message
}

func (he *HTTPError) Unwrap() error {
	return he.cause
}

func newHTTPError(code int, message string, cause error) *HTTPError {
	if message == "" {
		message = http.StatusText(code)
	}
	return &HTTPError{cause: cause, Code: code, Message: message}
}

func ErrBadRequest(message string) *HTTPError {
	return newHTTPError(http.StatusBadRequest, message, nil)
}

func ErrBadRequestWrap(message string, cause error) *HTTPError {
	return newHTTPError(http.StatusBadRequest, message, cause)
}

func ErrNotFound(message string) *HTTPError {
	return newHTTPError(http.StatusNotFound, message, nil)
}

func ErrUnauthorized(message string) *HTTPError {
	return newHTTPError(http.StatusUnauthorized, message, nil)
}

func ErrInternalServerWrap(message string, cause error) *HTTPError {
	return newHTTPError(http.StatusInternalServerError, "", fmt.Errorf("%s: %w", message, cause))
}

// toHTTPError maps domain failures onto status codes. Anything unknown is a 500.
func toHTTPError(err error) *HTTPError {
	var httpErr *HTTPError
	switch {
	case errors.As(err, &httpErr):
		return httpErr
	case errors.Is(err, domain.ErrAppNotFound):
		return newHTTPError(http.StatusNotFound, "app not found", err)
	case errors.Is(err, domain.ErrInvalidApp), errors.Is(err, domain.ErrInvalidPlatform):
		return newHTTPError(http.StatusBadRequest, err.Error(), err)
	case errors.Is(err, domain.ErrSchedulerStopped):
		return newHTTPError(http.StatusServiceUnavailable, "sync scheduler is shutting down", err)
	default:
		return newHTTPError(http.StatusInternalServerError, "", err)
	}
}
