package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/npezzotti/go-dm/internal/errs"
	"github.com/npezzotti/go-dm/internal/server"
)

type ApiError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

func (e *ApiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *ApiError) Unwrap() error {
	return e.Err
}

func lower(s string) string {
	return strings.ToLower(s)
}

func newApiError(code int, err error) *ApiError {
	return &ApiError{
		StatusCode: code,
		Message:    lower(http.StatusText(code)),
		Err:        err,
	}
}

func NewBadRequestError() *ApiError {
	return newApiError(http.StatusBadRequest, nil)
}

// NewValidationError reports err's text to the caller.
func NewValidationError(err error) *ApiError {
	return &ApiError{
		StatusCode: http.StatusBadRequest,
		Message:    err.Error(),
		Err:        err,
	}
}

func NewNotFoundError() *ApiError {
	return newApiError(http.StatusNotFound, nil)
}

func NewInternalServerError(err error) *ApiError {
	return newApiError(http.StatusInternalServerError, err)
}

func NewUnauthorizedError() *ApiError {
	return newApiError(http.StatusUnauthorized, nil)
}

func NewForbiddenError() *ApiError {
	return newApiError(http.StatusForbidden, nil)
}

func NewRequestTooLargeError() *ApiError {
	return newApiError(http.StatusRequestEntityTooLarge, nil)
}

func NewBadGatewayError(err error) *ApiError {
	return newApiError(http.StatusBadGateway, err)
}

func NewServiceUnavailableError() *ApiError {
	return newApiError(http.StatusServiceUnavailable, nil)
}

// errorFor classifies an error from the core into an API response.
func errorFor(err error) *ApiError {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return NewRequestTooLargeError()
	case errors.Is(err, errs.ErrValidation):
		return NewValidationError(err)
	case errors.Is(err, errs.ErrUnauthenticated):
		return NewUnauthorizedError()
	case errors.Is(err, errs.ErrAccessDenied):
		return NewForbiddenError()
	case errors.Is(err, errs.ErrNotFound):
		return NewNotFoundError()
	case errors.Is(err, errs.ErrUpload):
		return NewBadGatewayError(err)
	case errors.Is(err, server.ErrShuttingDown):
		return NewServiceUnavailableError()
	default:
		return NewInternalServerError(err)
	}
}
