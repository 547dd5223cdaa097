// internal/app/app.go
package app

import (
	"fmt"

	"github.com/forgelab/scriptforge/internal/config"
	"github.com/forgelab/scriptforge/internal/di"
	"github.com/forgelab/scriptforge/internal/executor"
	"github.com/forgelab/scriptforge/internal/services"
	"github.com/forgelab/scriptforge/internal/storage"
	"github.com/forgelab/scriptforge/internal/utils"

	// Register the LLM providers.
	_ "github.com/forgelab/scriptforge/internal/llm/providers/anthropic"
	_ "github.com/forgelab/scriptforge/internal/llm/providers/google"
	_ "github.com/forgelab/scriptforge/internal/llm/providers/openai"
)

// InitServices builds every service and registers it in the DI container.
// Called once at startup, after config.InitConfig.
func InitServices() error {
	logger := utils.GetLogger()
	container := di.GetContainer()

	cfg := config.GetCurrentConfig()
	if cfg == nil {
		return fmt.Errorf("configuration not initialized")
	}

	fileStorage, err := storage.NewFileStorage(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to initialize data storage: %w", err)
	}

	workspaceService, err := services.NewWorkspaceService(cfg.WorkspaceDir, cfg.ScriptExt)
	if err != nil {
		return fmt.Errorf("failed to initialize workspace: %w", err)
	}

	sessionService := services.NewSessionService(fileStorage)

	llmService, err := services.NewLLMService()
	if err != nil {
		return fmt.Errorf("failed to initialize LLM service: %w", err)
	}
	if !llmService.IsReady() {
		logger.Warnf("llm: starting without a usable provider (%s)", llmService.Status().State)
	}

	commandService := services.NewCommandService(workspaceService)
	chatService := services.NewChatService(llmService, workspaceService, sessionService, commandService)
	previewService := services.NewPreviewService(executor.Default(), workspaceService, cfg.PreviewRunner)

	configService := services.NewConfigService()
	configService.Subscribe(llmService)

	// Deleting a script tears down its preview and clears stale references in
	// stored sessions, whether the delete came from the UI or from the model.
	workspaceService.RegisterDeleteHook(previewService.StopIfFile)
	workspaceService.RegisterDeleteHook(sessionService.ClearFileReferences)

	container.Register("storage", fileStorage)
	container.Register("workspace", workspaceService)
	container.Register("session", sessionService)
	container.Register("llm", llmService)
	container.Register("command", commandService)
	container.Register("chat", chatService)
	container.Register("preview", previewService)
	container.Register("config", configService)

	logger.Infof("app: services initialized (%d registered)", len(container.GetNames()))
	return nil
}

// HealthCheck verifies the critical services are present in the container.
func HealthCheck() error {
	container := di.GetContainer()

	for _, name := range []string{"workspace", "session", "chat", "preview", "llm", "config"} {
		if !container.Has(name) {
			return fmt.Errorf("required service missing: %s", name)
		}
	}

	return nil
}
