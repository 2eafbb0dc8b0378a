package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/ordermonitor/internal/models"
)

// Error represents an API error. It is written as a failed PageResult
// envelope so loaders can read every response the same way.
type Error struct {
	Message    string
	StatusCode int
	Code       int
}

// Error implements the error interface
func (e *Error) Error() string {
	return e.Message
}

// Common API errors
var (
	ErrInvalidRequest     = &Error{Message: "Invalid request", StatusCode: http.StatusBadRequest, Code: models.CodeInvalidRequest}
	ErrNotFound           = &Error{Message: "Resource not found", StatusCode: http.StatusNotFound, Code: models.CodeNotFound}
	ErrInternalServer     = &Error{Message: "Internal server error", StatusCode: http.StatusInternalServerError, Code: models.CodeInternal}
	ErrTooManyRequests    = &Error{Message: "Too many requests", StatusCode: http.StatusTooManyRequests, Code: models.CodeRateLimited}
	ErrServiceUnavailable = &Error{Message: "Service unavailable", StatusCode: http.StatusServiceUnavailable, Code: http.StatusServiceUnavailable}
)

// NewValidationError creates a 400 error with a custom message
func NewValidationError(message string) *Error {
	return &Error{
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Code:       models.CodeInvalidRequest,
	}
}

// WriteError aborts the request with an error envelope
func WriteError(c *gin.Context, err error) {
	var apiError *Error
	if !errors.As(err, &apiError) {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Unhandled error")
		apiError = ErrInternalServer
	}
	c.AbortWithStatusJSON(apiError.StatusCode, models.NewErrorResult(apiError.Code, apiError.Message))
}
