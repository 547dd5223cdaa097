// internal/api/handlers.go
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/forgelab/scriptforge/internal/errors"
	"github.com/forgelab/scriptforge/internal/services"
)

// Handler bundles the HTTP handlers and their service dependencies.
type Handler struct {
	WorkspaceService *services.WorkspaceService
	SessionService   *services.SessionService
	ChatService      *services.ChatService
	PreviewService   *services.PreviewService
	LLMService       *services.LLMService
	ConfigService    *services.ConfigService

	WSManager *WebSocketManager
	Response  *ResponseHelper
}

// NewHandler creates a Handler with the given services.
func NewHandler(
	workspaceService *services.WorkspaceService,
	sessionService *services.SessionService,
	chatService *services.ChatService,
	previewService *services.PreviewService,
	llmService *services.LLMService,
	configService *services.ConfigService,
	wsManager *WebSocketManager,
) *Handler {
	return &Handler{
		WorkspaceService: workspaceService,
		SessionService:   sessionService,
		ChatService:      chatService,
		PreviewService:   previewService,
		LLMService:       llmService,
		ConfigService:    configService,
		WSManager:        wsManager,
		Response:         NewResponseHelper(),
	}
}

// IndexPage renders the single-page UI.
func (h *Handler) IndexPage(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"title": "ScriptForge",
	})
}

// HealthCheck reports basic process health.
func (h *Handler) HealthCheck(c *gin.Context) {
	h.Response.Success(c, gin.H{
		"status":    "ok",
		"llm_ready": h.LLMService.IsReady(),
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// --- Sessions ---

// CreateSession creates a new empty conversation session.
func (h *Handler) CreateSession(c *gin.Context) {
	session, err := h.SessionService.Create()
	if err != nil {
		h.Response.Error(c, http.StatusInternalServerError, ErrorSessionCreateFailed, "failed to create session", err.Error())
		return
	}
	h.Response.Created(c, session)
}

// ListSessions returns summaries of all stored sessions.
func (h *Handler) ListSessions(c *gin.Context) {
	summaries, err := h.SessionService.List()
	if err != nil {
		h.Response.InternalError(c, "failed to list sessions", err.Error())
		return
	}
	h.Response.Success(c, gin.H{"sessions": summaries})
}

// GetSession returns one full session, transcript included.
func (h *Handler) GetSession(c *gin.Context) {
	session, err := h.SessionService.Get(c.Param("id"))
	if err != nil {
		h.Response.FromAppError(c, err, ErrorSessionNotFound)
		return
	}
	h.Response.Success(c, session)
}

// ChatRequest is the body of a chat turn.
type ChatRequest struct {
	Message string `json:"message" binding:"required"`
}

// Chat runs one conversation turn in a session.
func (h *Handler) Chat(c *gin.Context) {
	sessionID := c.Param("id")

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "message is required", err.Error())
		return
	}

	session, commands, err := h.ChatService.SendMessage(c.Request.Context(), sessionID, req.Message)
	if err != nil {
		if apperrors.IsNotFoundError(err) || apperrors.IsValidationError(err) {
			h.Response.FromAppError(c, err, ErrorSessionNotFound)
			return
		}
		h.Response.Error(c, http.StatusInternalServerError, ErrorChatFailed, "chat turn failed", err.Error())
		return
	}

	files, listErr := h.WorkspaceService.ListScripts()
	if listErr != nil {
		files = nil
	}

	h.WSManager.BroadcastToSession(sessionID, map[string]interface{}{
		"type":      "chat_turn",
		"commands":  commands,
		"files":     files,
		"timestamp": time.Now().Format(time.RFC3339),
	})

	h.Response.Success(c, gin.H{
		"session":  session,
		"commands": commands,
		"files":    files,
	})
}

// SelectFileRequest names the file shown in the session's editor.
type SelectFileRequest struct {
	Filename string `json:"filename"`
}

// SelectFile records which file a session is editing. An empty filename
// clears the selection.
func (h *Handler) SelectFile(c *gin.Context) {
	var req SelectFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "invalid request body", err.Error())
		return
	}

	if req.Filename != "" {
		if err := h.WorkspaceService.ValidateName(req.Filename); err != nil {
			h.Response.FromAppError(c, err, ErrorFileInvalid)
			return
		}
		if !h.WorkspaceService.ScriptExists(req.Filename) {
			h.Response.Error(c, http.StatusNotFound, ErrorFileNotFound, "file not found: "+req.Filename)
			return
		}
	}

	session, err := h.SessionService.SelectFile(c.Param("id"), req.Filename)
	if err != nil {
		h.Response.FromAppError(c, err, ErrorSessionNotFound)
		return
	}
	h.Response.Success(c, session)
}

// --- Workspace ---

// ListWorkspace returns the workspace file listing.
func (h *Handler) ListWorkspace(c *gin.Context) {
	files, err := h.WorkspaceService.ListScripts()
	if err != nil {
		h.Response.InternalError(c, "failed to list workspace", err.Error())
		return
	}
	h.Response.Success(c, gin.H{"files": files})
}

// GetFile returns the content of one workspace script.
func (h *Handler) GetFile(c *gin.Context) {
	filename := c.Param("name")

	content, err := h.WorkspaceService.ReadScript(filename)
	if err != nil {
		h.Response.FromAppError(c, err, ErrorFileNotFound)
		return
	}

	h.Response.Success(c, gin.H{
		"filename": filename,
		"content":  content,
	})
}

// SaveFileRequest carries the new content of a script.
type SaveFileRequest struct {
	Content string `json:"content"`
}

// SaveFile creates or overwrites a workspace script.
func (h *Handler) SaveFile(c *gin.Context) {
	filename := c.Param("name")

	var req SaveFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "invalid request body", err.Error())
		return
	}

	existed := h.WorkspaceService.ScriptExists(filename)

	if err := h.WorkspaceService.SaveScript(filename, req.Content); err != nil {
		h.Response.FromAppError(c, err, ErrorFileSaveFailed)
		return
	}

	h.WSManager.BroadcastAll(map[string]interface{}{
		"type":     "file_saved",
		"filename": filename,
	})

	if existed {
		h.Response.Success(c, gin.H{"filename": filename}, "file saved")
		return
	}
	h.Response.Created(c, gin.H{"filename": filename}, "file created")
}

// DeleteFile removes a workspace script. Delete hooks stop any preview of the
// file and clear stale session references.
func (h *Handler) DeleteFile(c *gin.Context) {
	filename := c.Param("name")

	if err := h.WorkspaceService.DeleteScript(filename); err != nil {
		h.Response.FromAppError(c, err, ErrorFileNotFound)
		return
	}

	h.WSManager.BroadcastAll(map[string]interface{}{
		"type":     "file_deleted",
		"filename": filename,
	})

	h.Response.Success(c, gin.H{"filename": filename}, "file deleted")
}

// --- Preview ---

// StartPreviewRequest names the script to preview and, optionally, the session
// whose preview snapshot should be updated.
type StartPreviewRequest struct {
	Filename  string `json:"filename" binding:"required"`
	SessionID string `json:"session_id"`
}

// StartPreview launches (or replaces) the preview process for a script.
func (h *Handler) StartPreview(c *gin.Context) {
	var req StartPreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "filename is required", err.Error())
		return
	}

	state, err := h.PreviewService.Start(req.Filename)
	if err != nil {
		h.Response.FromAppError(c, err, ErrorPreviewStartFailed)
		return
	}

	if req.SessionID != "" {
		if err := h.SessionService.SetPreview(req.SessionID, state); err != nil {
			// The preview is up, a stale snapshot is not worth failing over.
			h.Response.Success(c, state, "preview started, session snapshot not updated")
			return
		}
	}

	h.Response.Success(c, state, "preview started")
}

// StopPreviewRequest optionally names the session whose snapshot to clear.
type StopPreviewRequest struct {
	SessionID string `json:"session_id"`
}

// StopPreview terminates the running preview. Stopping when idle succeeds.
func (h *Handler) StopPreview(c *gin.Context) {
	var req StopPreviewRequest
	// Body is optional.
	_ = c.ShouldBindJSON(&req)

	if err := h.PreviewService.Stop(); err != nil {
		h.Response.Error(c, http.StatusInternalServerError, ErrorPreviewStopFailed, "failed to stop preview", err.Error())
		return
	}

	if req.SessionID != "" {
		_ = h.SessionService.SetPreview(req.SessionID, nil)
	}

	h.Response.Success(c, gin.H{"running": false}, "preview stopped")
}

// PreviewStatus reports the current preview state. A process that died on its
// own is reported once with running=false, then the slot reads as idle.
func (h *Handler) PreviewStatus(c *gin.Context) {
	state := h.PreviewService.Status()
	if state == nil {
		h.Response.Success(c, gin.H{"running": false})
		return
	}
	h.Response.Success(c, state)
}

// --- Settings / LLM ---

// GetSettings returns the current app configuration with the API key masked.
func (h *Handler) GetSettings(c *gin.Context) {
	cfg := h.ConfigService.GetCurrentConfig()
	if cfg == nil {
		h.Response.InternalError(c, "configuration unavailable")
		return
	}

	llmConfig := map[string]string{}
	for k, v := range cfg.LLMConfig {
		if k == "api_key" {
			v = maskSecret(v)
		}
		llmConfig[k] = v
	}

	h.Response.Success(c, gin.H{
		"port":           cfg.Port,
		"debug_mode":     cfg.DebugMode,
		"script_ext":     cfg.ScriptExt,
		"preview_runner": cfg.PreviewRunner,
		"llm_provider":   cfg.LLMProvider,
		"llm_config":     llmConfig,
		"llm_status":     h.LLMService.Status(),
	})
}

// UpdateSettingsRequest carries new LLM settings.
type UpdateSettingsRequest struct {
	Provider string            `json:"provider" binding:"required"`
	Config   map[string]string `json:"config"`
}

// UpdateSettings persists new LLM settings and hot-reloads the provider.
func (h *Handler) UpdateSettings(c *gin.Context) {
	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "provider is required", err.Error())
		return
	}

	if err := h.ConfigService.UpdateLLMConfig(req.Provider, req.Config); err != nil {
		h.Response.Error(c, http.StatusBadRequest, ErrorLLMConfigInvalid, "failed to update LLM settings", err.Error())
		return
	}

	h.Response.Success(c, gin.H{
		"provider":   req.Provider,
		"llm_status": h.LLMService.Status(),
	}, "settings updated")
}

// TestConnection verifies the active LLM configuration with a tiny completion.
func (h *Handler) TestConnection(c *gin.Context) {
	if err := h.LLMService.TestConnection(c.Request.Context()); err != nil {
		h.Response.Error(c, http.StatusBadGateway, ErrorConnectionFailed, "connection test failed", err.Error())
		return
	}
	h.Response.Success(c, gin.H{"connected": true}, "connection ok")
}

// LLMStatus reports whether the model backend is usable.
func (h *Handler) LLMStatus(c *gin.Context) {
	h.Response.Success(c, h.LLMService.Status())
}

// LLMModels lists registered providers and their supported models.
func (h *Handler) LLMModels(c *gin.Context) {
	h.Response.Success(c, gin.H{"providers": h.ConfigService.AvailableProviders()})
}

// --- WebSocket ---

// SessionWebSocket subscribes a client to a session's live events.
func (h *Handler) SessionWebSocket(c *gin.Context) {
	sessionID := c.Param("id")

	if _, err := h.SessionService.Get(sessionID); err != nil {
		h.Response.FromAppError(c, err, ErrorSessionNotFound)
		return
	}

	h.WSManager.ServeSession(c, sessionID)
}

// maskSecret hides all but the last 4 characters of a credential.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}
