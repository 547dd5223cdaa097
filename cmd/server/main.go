// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/forgelab/scriptforge/internal/api"
	"github.com/forgelab/scriptforge/internal/app"
	"github.com/forgelab/scriptforge/internal/config"
	"github.com/forgelab/scriptforge/internal/di"
	"github.com/forgelab/scriptforge/internal/utils"
)

func main() {
	log.Println("🚀 starting ScriptForge server...")

	// 1. Load the base configuration from the environment.
	baseConfig, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	log.Printf("✅ base configuration loaded, port: %s", baseConfig.Port)

	// 2. Create the directory layout.
	createDirectories(baseConfig)
	log.Println("✅ directory layout ready")

	// 3. Initialize the runtime configuration (merges saved settings).
	if err := config.InitConfig(baseConfig.DataDir); err != nil {
		log.Fatalf("failed to initialize configuration: %v", err)
	}
	log.Println("✅ configuration system initialized")

	// 4. Route logs to a file alongside stdout.
	if err := utils.InitLogger(filepath.Join(baseConfig.LogDir, "scriptforge.log")); err != nil {
		log.Printf("⚠️ file logging disabled: %v", err)
	}

	// 5. Initialize services into the DI container.
	container := di.GetContainer()
	if err := app.InitServices(); err != nil {
		log.Fatalf("failed to initialize services: %v", err)
	}
	log.Printf("✅ services initialized, registered: %d", len(container.GetNames()))

	// 6. Verify critical services and set up the router.
	if err := app.HealthCheck(); err != nil {
		log.Printf("⚠️ service health check warning: %v", err)
	}

	router, err := api.SetupRouter()
	if err != nil {
		log.Fatalf("❌ failed to set up routes: %v", err)
	}
	log.Println("✅ routes configured")

	// 7. Serve.
	log.Printf("🌐 server listening on port %s", baseConfig.Port)
	log.Printf("🔗 open http://localhost:%s", baseConfig.Port)

	setupGracefulShutdown(router, baseConfig.Port)
}

// setupGracefulShutdown runs the server and drains it on SIGINT/SIGTERM. The
// shutdown also stops any running preview via the preview service delete path.
func setupGracefulShutdown(router *gin.Engine, port string) {
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 shutting down server...")

	stopPreview()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("❌ forced server shutdown: %v", err)
	}

	log.Println("✅ server stopped cleanly")
}

// stopPreview tears down a running preview process so it does not outlive the
// server.
func stopPreview() {
	container := di.GetContainer()
	if previewService, ok := container.Get("preview").(interface{ Stop() error }); ok {
		if err := previewService.Stop(); err != nil {
			log.Printf("⚠️ failed to stop preview: %v", err)
		}
	}
}

// createDirectories creates the directories the application writes to.
func createDirectories(cfg *config.Config) {
	dirs := []string{
		cfg.DataDir,
		filepath.Join(cfg.DataDir, "sessions"),
		cfg.WorkspaceDir,
		cfg.LogDir,
		cfg.StaticDir,
		filepath.Join(cfg.StaticDir, "css"),
		filepath.Join(cfg.StaticDir, "js"),
		cfg.TemplatesDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("failed to create directory %s: %v", dir, err)
		}
	}
}
