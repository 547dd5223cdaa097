// internal/api/response_helpers.go
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/forgelab/scriptforge/internal/errors"
)

// APIResponse is the standard response envelope.
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// APIError is the standard error shape inside the envelope.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ResponseHelper builds envelope responses.
type ResponseHelper struct{}

// NewResponseHelper creates a ResponseHelper.
func NewResponseHelper() *ResponseHelper {
	return &ResponseHelper{}
}

// Success writes a 200 envelope.
func (rh *ResponseHelper) Success(c *gin.Context, data interface{}, message ...string) {
	response := &APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: rh.getRequestID(c),
	}

	if len(message) > 0 {
		response.Message = message[0]
	}

	c.JSON(http.StatusOK, response)
}

// Created writes a 201 envelope.
func (rh *ResponseHelper) Created(c *gin.Context, data interface{}, message ...string) {
	response := &APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: rh.getRequestID(c),
	}

	if len(message) > 0 {
		response.Message = message[0]
	} else {
		response.Message = "resource created"
	}

	c.JSON(http.StatusCreated, response)
}

// Error writes an error envelope with the given status.
func (rh *ResponseHelper) Error(c *gin.Context, statusCode int, errorCode, message string, details ...string) {
	apiError := &APIError{
		Code:    errorCode,
		Message: message,
	}

	if len(details) > 0 {
		apiError.Details = details[0]
	}

	response := &APIResponse{
		Success:   false,
		Error:     apiError,
		Timestamp: time.Now(),
		RequestID: rh.getRequestID(c),
	}

	c.JSON(statusCode, response)
}

// BadRequest writes a 400 envelope.
func (rh *ResponseHelper) BadRequest(c *gin.Context, message string, details ...string) {
	rh.Error(c, http.StatusBadRequest, ErrorBadRequest, message, details...)
}

// NotFound writes a 404 envelope.
func (rh *ResponseHelper) NotFound(c *gin.Context, message string, details ...string) {
	rh.Error(c, http.StatusNotFound, ErrorNotFound, message, details...)
}

// Conflict writes a 409 envelope.
func (rh *ResponseHelper) Conflict(c *gin.Context, message string, details ...string) {
	rh.Error(c, http.StatusConflict, ErrorConflict, message, details...)
}

// InternalError writes a 500 envelope.
func (rh *ResponseHelper) InternalError(c *gin.Context, message string, details ...string) {
	rh.Error(c, http.StatusInternalServerError, ErrorInternalError, message, details...)
}

// FromAppError maps an application error to the right HTTP status.
func (rh *ResponseHelper) FromAppError(c *gin.Context, err error, code string) {
	switch {
	case apperrors.IsValidationError(err):
		rh.Error(c, http.StatusBadRequest, code, err.Error())
	case apperrors.IsNotFoundError(err):
		rh.Error(c, http.StatusNotFound, code, err.Error())
	case apperrors.IsConflictError(err):
		rh.Error(c, http.StatusConflict, code, err.Error())
	case apperrors.IsUnavailableError(err):
		rh.Error(c, http.StatusServiceUnavailable, code, err.Error())
	default:
		rh.Error(c, http.StatusInternalServerError, code, err.Error())
	}
}

// getRequestID returns the request id set by the middleware, minting one for
// responses written before the middleware ran.
func (rh *ResponseHelper) getRequestID(c *gin.Context) string {
	if id, exists := c.Get("request_id"); exists {
		if requestID, ok := id.(string); ok {
			return requestID
		}
	}
	return uuid.NewString()
}
