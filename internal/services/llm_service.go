// internal/services/llm_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/forgelab/scriptforge/internal/config"
	"github.com/forgelab/scriptforge/internal/llm"
	"github.com/forgelab/scriptforge/internal/utils"
)

var ErrLLMNotReady = errors.New("llm service not ready")

var providerDefaultModels = map[string]string{
	"google":    "gemini-2.5-flash",
	"anthropic": "claude-haiku-4-5",
	"openai":    "gpt-4o-mini",
}

// LLMService wraps the active LLM provider behind a single call surface and
// tracks whether the provider is usable at all (no key configured yet, bad
// key, and so on).
type LLMService struct {
	providerMutex      sync.RWMutex
	provider           llm.Provider
	providerName       string
	isReady            bool
	readyState         string
	activeDefaultModel string

	logger *utils.Logger
}

// LLMStatus describes the current provider state for the settings UI.
type LLMStatus struct {
	Ready        bool   `json:"ready"`
	Provider     string `json:"provider"`
	Model        string `json:"model,omitempty"`
	State        string `json:"state"`
	ProviderName string `json:"provider_name,omitempty"`
}

// NewLLMService creates an LLM service from the current configuration. A
// missing or invalid configuration yields a not-ready service, not an error,
// so the server can still start and be configured from the settings page.
func NewLLMService() (*LLMService, error) {
	service := createBaseLLMService()

	cfg := config.GetCurrentConfig()
	if cfg == nil {
		service.readyState = "failed to retrieve configuration"
		return service, nil
	}

	if cfg.LLMProvider == "" || (cfg.LLMConfig != nil && cfg.LLMConfig["api_key"] == "") {
		service.readyState = "API key not configured"
		return service, nil
	}

	if err := service.configure(cfg.LLMProvider, cfg.LLMConfig); err != nil {
		service.readyState = fmt.Sprintf("initialization failed: %v", err)
		return service, nil
	}

	return service, nil
}

// NewEmptyLLMService creates a not-ready LLM service placeholder.
func NewEmptyLLMService() *LLMService {
	service := createBaseLLMService()
	service.providerName = "empty"
	service.readyState = "standby mode, configure an API key in settings"
	return service
}

// NewLLMServiceWithProvider wraps an already initialized provider. Used by
// tests and by callers that manage provider construction themselves.
func NewLLMServiceWithProvider(name string, provider llm.Provider) *LLMService {
	service := createBaseLLMService()
	service.provider = provider
	service.providerName = name
	service.isReady = true
	service.readyState = "ready"
	return service
}

func createBaseLLMService() *LLMService {
	return &LLMService{
		readyState: "uninitialized",
		logger:     utils.GetLogger(),
	}
}

func (s *LLMService) configure(providerName string, providerConfig map[string]string) error {
	provider, err := llm.GetProvider(providerName, providerConfig)
	if err != nil {
		return err
	}

	s.providerMutex.Lock()
	defer s.providerMutex.Unlock()

	s.provider = provider
	s.providerName = providerName
	s.activeDefaultModel = extractDefaultModel(providerName, providerConfig)
	s.isReady = true
	s.readyState = "ready"

	return nil
}

// Reload re-initializes the service against a new provider configuration.
func (s *LLMService) Reload(providerName string, providerConfig map[string]string) error {
	if err := s.configure(providerName, providerConfig); err != nil {
		s.providerMutex.Lock()
		s.isReady = false
		s.readyState = fmt.Sprintf("initialization failed: %v", err)
		s.providerMutex.Unlock()
		return err
	}

	s.logger.Infof("llm: provider switched to %s", providerName)
	return nil
}

func extractDefaultModel(providerName string, providerConfig map[string]string) string {
	if model, ok := providerConfig["default_model"]; ok && model != "" {
		return model
	}
	if model, ok := providerDefaultModels[providerName]; ok {
		return model
	}
	return ""
}

// IsReady reports whether the service can serve completions.
func (s *LLMService) IsReady() bool {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.isReady
}

// Status returns a snapshot of the provider state.
func (s *LLMService) Status() LLMStatus {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()

	status := LLMStatus{
		Ready:    s.isReady,
		Provider: s.providerName,
		Model:    s.activeDefaultModel,
		State:    s.readyState,
	}
	if s.provider != nil {
		status.ProviderName = s.provider.GetName()
	}
	return status
}

// ChatCompletion runs a one-shot completion against the active provider.
func (s *LLMService) ChatCompletion(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.providerMutex.RLock()
	provider := s.provider
	ready := s.isReady
	defaultModel := s.activeDefaultModel
	s.providerMutex.RUnlock()

	if !ready || provider == nil {
		return nil, ErrLLMNotReady
	}

	if req.Model == "" {
		req.Model = defaultModel
	}

	start := time.Now()
	resp, err := provider.CompleteText(ctx, req)
	if err != nil {
		s.logger.Errorf("llm: completion failed after %s: %v", time.Since(start).Round(time.Millisecond), err)
		return nil, err
	}

	s.logger.Infof("llm: completion ok model=%s tokens=%d elapsed=%s",
		resp.ModelName, resp.TokensUsed, time.Since(start).Round(time.Millisecond))
	return resp, nil
}

// OnConfigChanged reloads the provider after a settings update. Implements
// ConfigChangeSubscriber.
func (s *LLMService) OnConfigChanged(_, newConfig *config.AppConfig) {
	if newConfig == nil {
		return
	}
	if err := s.Reload(newConfig.LLMProvider, newConfig.LLMConfig); err != nil {
		s.logger.Errorf("llm: reload after config change failed: %v", err)
	}
}

// TestConnection issues a minimal completion to verify the configuration.
func (s *LLMService) TestConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := s.ChatCompletion(ctx, llm.CompletionRequest{
		Prompt:    "Reply with the single word: ok",
		MaxTokens: 16,
	})
	return err
}
