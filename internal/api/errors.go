// errors.go - Structured error handling for API responses
package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/score-analyzer/webapp/internal/scoreapi"
)

// APIError represents a structured API error response
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error constructors for consistent error handling

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadRequest,
		Code:    "BAD_REQUEST",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewValidationError creates a 400 validation error
func NewValidationError(message string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "VALIDATION_ERROR",
		Message: message,
	}
}

// NewStateViolationError creates a 409 error for operations invoked in the
// wrong workspace state. These fail before any network call and surface as a
// lightweight warning, not a failure.
func NewStateViolationError(message string) *APIError {
	return &APIError{
		Status:  http.StatusConflict,
		Code:    "STATE_VIOLATION",
		Message: message,
	}
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(resource string, id string) *APIError {
	return &APIError{
		Status:  http.StatusNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL_ERROR",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewUpstreamError maps a backend client failure onto the response envelope.
// Timeouts get their own code so the UI can show a "may still be processing"
// advisory; structured rejections keep the backend's message verbatim.
func NewUpstreamError(err error) *APIError {
	switch {
	case scoreapi.IsTimeout(err):
		return &APIError{
			Status:  http.StatusGatewayTimeout,
			Code:    "UPSTREAM_TIMEOUT",
			Message: scoreapi.Message(err, "The backend did not respond in time and may still be processing."),
		}
	case scoreapi.IsRejected(err):
		return &APIError{
			Status:  http.StatusUnprocessableEntity,
			Code:    "UPSTREAM_REJECTED",
			Message: scoreapi.Message(err, "The backend rejected the request."),
		}
	default:
		return &APIError{
			Status:  http.StatusBadGateway,
			Code:    "UPSTREAM_UNREACHABLE",
			Message: "The backend could not be reached.",
			Details: err.Error(),
		}
	}
}

// ErrorHandler middleware for Echo
// Usage: e.HTTPErrorHandler = api.ErrorHandler
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *APIError

	switch e := err.(type) {
	case *APIError:
		apiErr = e
	case *echo.HTTPError:
		apiErr = &APIError{
			Status:  e.Code,
			Code:    "HTTP_ERROR",
			Message: fmt.Sprintf("%v", e.Message),
		}
	default:
		apiErr = &APIError{
			Status:  http.StatusInternalServerError,
			Code:    "UNKNOWN_ERROR",
			Message: "An unexpected error occurred",
			Details: err.Error(),
		}
	}

	// Send JSON response
	if !c.Response().Committed {
		c.JSON(apiErr.Status, apiErr)
	}
}

// RespondWithError is a helper to respond with an APIError
func RespondWithError(c echo.Context, err *APIError) error {
	return c.JSON(err.Status, err)
}
