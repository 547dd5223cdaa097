// internal/api/router.go
package api

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/forgelab/scriptforge/internal/config"
	"github.com/forgelab/scriptforge/internal/di"
	"github.com/forgelab/scriptforge/internal/services"
)

// SetupRouter builds the gin engine with all routes wired against the
// services registered in the DI container.
func SetupRouter() (*gin.Engine, error) {
	cfg := config.GetCurrentConfig()
	if cfg != nil && !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	container := di.GetContainer()

	workspaceService, ok := container.Get("workspace").(*services.WorkspaceService)
	if !ok {
		return nil, fmt.Errorf("workspace service not registered")
	}
	sessionService, ok := container.Get("session").(*services.SessionService)
	if !ok {
		return nil, fmt.Errorf("session service not registered")
	}
	chatService, ok := container.Get("chat").(*services.ChatService)
	if !ok {
		return nil, fmt.Errorf("chat service not registered")
	}
	previewService, ok := container.Get("preview").(*services.PreviewService)
	if !ok {
		return nil, fmt.Errorf("preview service not registered")
	}
	llmService, ok := container.Get("llm").(*services.LLMService)
	if !ok {
		return nil, fmt.Errorf("llm service not registered")
	}
	configService, ok := container.Get("config").(*services.ConfigService)
	if !ok {
		return nil, fmt.Errorf("config service not registered")
	}

	wsManager := NewWebSocketManager()
	previewService.SetNotifier(wsManager)

	handler := NewHandler(
		workspaceService,
		sessionService,
		chatService,
		previewService,
		llmService,
		configService,
		wsManager,
	)

	router := gin.Default()
	router.Use(corsMiddleware())
	router.Use(requestIDMiddleware())

	if cfg != nil {
		router.Static("/static", cfg.StaticDir)
		router.LoadHTMLGlob(filepath.Join(cfg.TemplatesDir, "*.html"))
	}

	router.GET("/", handler.IndexPage)
	router.GET("/health", handler.HealthCheck)

	rateLimiter := NewRateLimiter()

	apiGroup := router.Group("/api")
	{
		sessions := apiGroup.Group("/sessions")
		{
			sessions.POST("", handler.CreateSession)
			sessions.GET("", handler.ListSessions)
			sessions.GET("/:id", handler.GetSession)
			sessions.POST("/:id/chat",
				rateLimitMiddleware(rateLimiter, 20, time.Minute),
				handler.Chat)
			sessions.PUT("/:id/select", handler.SelectFile)
		}

		workspace := apiGroup.Group("/workspace")
		{
			workspace.GET("", handler.ListWorkspace)
			workspace.GET("/:name", handler.GetFile)
			workspace.PUT("/:name", handler.SaveFile)
			workspace.DELETE("/:name", handler.DeleteFile)
		}

		preview := apiGroup.Group("/preview")
		{
			preview.POST("", handler.StartPreview)
			preview.DELETE("", handler.StopPreview)
			preview.GET("", handler.PreviewStatus)
		}

		settings := apiGroup.Group("/settings")
		{
			settings.GET("", handler.GetSettings)
			settings.POST("", handler.UpdateSettings)
			settings.POST("/test-connection", handler.TestConnection)
		}

		llmGroup := apiGroup.Group("/llm")
		{
			llmGroup.GET("/status", handler.LLMStatus)
			llmGroup.GET("/models", handler.LLMModels)
		}
	}

	router.GET("/ws/sessions/:id", handler.SessionWebSocket)

	return router, nil
}
