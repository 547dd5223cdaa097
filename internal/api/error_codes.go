// internal/api/error_codes.go
package api

// API error code constants.
const (
	// Generic
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorConflict      = "CONFLICT"
	ErrorRateLimited   = "RATE_LIMITED"

	// Session errors
	ErrorSessionNotFound     = "SESSION_NOT_FOUND"
	ErrorSessionCreateFailed = "SESSION_CREATE_FAILED"

	// Workspace errors
	ErrorFileInvalid    = "FILE_INVALID"
	ErrorFileNotFound   = "FILE_NOT_FOUND"
	ErrorFileSaveFailed = "FILE_SAVE_FAILED"

	// Chat / LLM errors
	ErrorChatFailed            = "CHAT_FAILED"
	ErrorLLMServiceUnavailable = "LLM_SERVICE_UNAVAILABLE"
	ErrorLLMConfigInvalid      = "LLM_CONFIG_INVALID"
	ErrorConnectionFailed      = "CONNECTION_FAILED"

	// Preview errors
	ErrorPreviewStartFailed = "PREVIEW_START_FAILED"
	ErrorPreviewStopFailed  = "PREVIEW_STOP_FAILED"
)
