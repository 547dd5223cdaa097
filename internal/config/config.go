// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"
)

var (
	currentConfig *AppConfig
	configMutex   sync.RWMutex
	configFile    string
)

// AppConfig holds the full application configuration, including the parts
// that can be changed at runtime from the settings page.
type AppConfig struct {
	Port         string `json:"port"`
	DataDir      string `json:"data_dir"`
	WorkspaceDir string `json:"workspace_dir"`
	StaticDir    string `json:"static_dir"`
	TemplatesDir string `json:"templates_dir"`
	LogDir       string `json:"log_dir"`
	DebugMode    bool   `json:"debug_mode"`

	// Workspace scripts and the command used to preview them.
	ScriptExt     string `json:"script_ext"`
	PreviewRunner string `json:"preview_runner"`

	// LLM settings
	LLMProvider string            `json:"llm_provider"`
	LLMConfig   map[string]string `json:"llm_config"`
}

// Config is the environment-derived base configuration.
type Config struct {
	Port          string
	GoogleAPIKey  string
	ModelOverride string
	DataDir       string
	WorkspaceDir  string
	StaticDir     string
	TemplatesDir  string
	LogDir        string
	DebugMode     bool
	ScriptExt     string
	PreviewRunner string
}

// Load reads configuration from the environment, optionally seeded by a
// .env file in the working directory.
func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		Port:          getEnv("PORT", "8080"),
		GoogleAPIKey:  getEnv("GOOGLE_API_KEY", ""),
		ModelOverride: getEnv("SCRIPTFORGE_MODEL", ""),
		DataDir:       getEnvPath("DATA_DIR", "data"),
		WorkspaceDir:  getEnvPath("WORKSPACE_DIR", "workspace"),
		StaticDir:     getEnvPath("STATIC_DIR", "web/static"),
		TemplatesDir:  getEnvPath("TEMPLATES_DIR", "web/templates"),
		LogDir:        getEnvPath("LOG_DIR", "logs"),
		DebugMode:     getEnvBool("DEBUG_MODE", true),
		ScriptExt:     getEnv("SCRIPT_EXT", ".py"),
		PreviewRunner: getEnv("PREVIEW_RUNNER", "streamlit"),
	}

	if config.GoogleAPIKey == "" {
		// Warn only; the key can be set later on the settings page.
		log.Println("warning: GOOGLE_API_KEY is not set, the AI assistant stays disabled until a key is configured")
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvPath resolves a directory from the environment and ensures it exists.
func getEnvPath(key, defaultValue string) string {
	path := getEnv(key, defaultValue)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0755); err != nil {
			fmt.Printf("warning: failed to create directory %s: %v\n", path, err)
		}
	}

	return path
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value == "true" || value == "1" || value == "yes"
}

// InitConfig initializes the runtime configuration singleton, merging any
// previously saved config.json from the data directory.
func InitConfig(dataDir string) error {
	configFile = filepath.Join(dataDir, "config.json")

	baseConfig, err := Load()
	if err != nil {
		return err
	}

	configMutex.Lock()
	defer configMutex.Unlock()

	defaultModel := baseConfig.ModelOverride
	if defaultModel == "" {
		defaultModel = "gemini-2.5-flash"
	}

	currentConfig = &AppConfig{
		Port:          baseConfig.Port,
		DataDir:       baseConfig.DataDir,
		WorkspaceDir:  baseConfig.WorkspaceDir,
		StaticDir:     baseConfig.StaticDir,
		TemplatesDir:  baseConfig.TemplatesDir,
		LogDir:        baseConfig.LogDir,
		DebugMode:     baseConfig.DebugMode,
		ScriptExt:     baseConfig.ScriptExt,
		PreviewRunner: baseConfig.PreviewRunner,
		LLMProvider:   "google",
		LLMConfig: map[string]string{
			"api_key":       baseConfig.GoogleAPIKey,
			"default_model": defaultModel,
		},
	}

	// Saved LLM settings win over defaults, base paths always come from the
	// environment so a moved installation keeps working.
	if _, err := os.Stat(configFile); !os.IsNotExist(err) {
		data, err := os.ReadFile(configFile)
		if err == nil {
			var savedConfig AppConfig
			if json.Unmarshal(data, &savedConfig) == nil {
				savedConfig.Port = baseConfig.Port
				savedConfig.DataDir = baseConfig.DataDir
				savedConfig.WorkspaceDir = baseConfig.WorkspaceDir
				savedConfig.StaticDir = baseConfig.StaticDir
				savedConfig.TemplatesDir = baseConfig.TemplatesDir
				savedConfig.LogDir = baseConfig.LogDir
				savedConfig.DebugMode = baseConfig.DebugMode
				if savedConfig.ScriptExt == "" {
					savedConfig.ScriptExt = baseConfig.ScriptExt
				}
				if savedConfig.PreviewRunner == "" {
					savedConfig.PreviewRunner = baseConfig.PreviewRunner
				}

				if savedConfig.LLMConfig != nil && savedConfig.LLMConfig["api_key"] == "" {
					savedConfig.LLMConfig["api_key"] = baseConfig.GoogleAPIKey
				}

				currentConfig = &savedConfig
			}
		}
	}

	return saveConfigLocked()
}

// GetCurrentConfig returns a copy of the current configuration.
func GetCurrentConfig() *AppConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if currentConfig == nil {
		baseConfig, _ := Load()
		return &AppConfig{
			Port:          baseConfig.Port,
			DataDir:       baseConfig.DataDir,
			WorkspaceDir:  baseConfig.WorkspaceDir,
			StaticDir:     baseConfig.StaticDir,
			TemplatesDir:  baseConfig.TemplatesDir,
			LogDir:        baseConfig.LogDir,
			DebugMode:     baseConfig.DebugMode,
			ScriptExt:     baseConfig.ScriptExt,
			PreviewRunner: baseConfig.PreviewRunner,
			LLMProvider:   "google",
			LLMConfig: map[string]string{
				"api_key": baseConfig.GoogleAPIKey,
			},
		}
	}

	configCopy := *currentConfig
	configCopy.LLMConfig = make(map[string]string, len(currentConfig.LLMConfig))
	for k, v := range currentConfig.LLMConfig {
		configCopy.LLMConfig[k] = v
	}
	return &configCopy
}

// UpdateLLMConfig replaces the LLM provider settings and persists them.
func UpdateLLMConfig(provider string, config map[string]string) error {
	configMutex.Lock()
	defer configMutex.Unlock()

	if currentConfig == nil {
		return fmt.Errorf("config system not initialized")
	}

	currentConfig.LLMProvider = provider
	currentConfig.LLMConfig = config

	return saveConfigLocked()
}

// SaveConfig persists the current configuration to the data directory.
func SaveConfig() error {
	configMutex.Lock()
	defer configMutex.Unlock()
	return saveConfigLocked()
}

func saveConfigLocked() error {
	if currentConfig == nil {
		return fmt.Errorf("no config to save")
	}

	dir := filepath.Dir(configFile)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(currentConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	return os.WriteFile(configFile, data, 0644)
}
