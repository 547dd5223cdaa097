// internal/services/config_service.go
package services

import (
	"errors"
	"sync"
	"time"

	"github.com/forgelab/scriptforge/internal/config"
	"github.com/forgelab/scriptforge/internal/llm"
	"github.com/forgelab/scriptforge/internal/utils"
)

// ConfigChangeSubscriber is notified after the LLM settings change.
type ConfigChangeSubscriber interface {
	OnConfigChanged(oldConfig, newConfig *config.AppConfig)
}

// ConfigService mediates settings reads and runtime LLM reconfiguration.
type ConfigService struct {
	cachedConfig *config.AppConfig
	lastUpdated  time.Time
	subscribers  []ConfigChangeSubscriber

	mu sync.RWMutex

	logger *utils.Logger
}

// NewConfigService creates the service with the current config cached.
func NewConfigService() *ConfigService {
	return &ConfigService{
		cachedConfig: config.GetCurrentConfig(),
		lastUpdated:  time.Now(),
		logger:       utils.GetLogger(),
	}
}

// Subscribe registers a subscriber for config change notifications.
func (s *ConfigService) Subscribe(subscriber ConfigChangeSubscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, subscriber)
}

// GetCurrentConfig returns the cached configuration.
func (s *ConfigService) GetCurrentConfig() *config.AppConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cachedConfig == nil {
		return config.GetCurrentConfig()
	}
	return s.cachedConfig
}

// UpdateLLMConfig validates and persists new LLM settings, refreshes the
// cache and notifies subscribers.
func (s *ConfigService) UpdateLLMConfig(provider string, configMap map[string]string) error {
	if provider == "" {
		return errors.New("provider cannot be empty")
	}

	registered := false
	for _, name := range llm.ListProviders() {
		if name == provider {
			registered = true
			break
		}
	}
	if !registered {
		return llm.ErrUnknownProvider
	}

	if configMap == nil {
		configMap = map[string]string{}
	}
	if _, ok := configMap["api_key"]; !ok {
		s.logger.Warnf("config: LLM settings for %s are missing an api_key", provider)
	}
	if _, ok := configMap["default_model"]; !ok {
		if model, known := providerDefaultModels[provider]; known {
			configMap["default_model"] = model
		}
	}

	s.mu.Lock()
	oldConfig := s.cachedConfig
	s.mu.Unlock()

	if err := config.UpdateLLMConfig(provider, configMap); err != nil {
		return err
	}

	newConfig := config.GetCurrentConfig()

	s.mu.Lock()
	s.cachedConfig = newConfig
	s.lastUpdated = time.Now()
	subscribers := append([]ConfigChangeSubscriber(nil), s.subscribers...)
	s.mu.Unlock()

	for _, subscriber := range subscribers {
		subscriber.OnConfigChanged(oldConfig, newConfig)
	}

	s.logger.Infof("config: LLM provider set to %s", provider)
	return nil
}

// AvailableProviders lists registered LLM providers with their models.
func (s *ConfigService) AvailableProviders() map[string][]string {
	result := make(map[string][]string)
	for _, name := range llm.ListProviders() {
		result[name] = llm.GetSupportedModelsForProvider(name)
	}
	return result
}
