// internal/llm/interface_test.go
package llm

import (
	"context"
	"errors"
	"testing"
)

type registryProvider struct {
	initConfig map[string]string
	initErr    error
}

func (p *registryProvider) Initialize(config map[string]string) error {
	p.initConfig = config
	return p.initErr
}

func (p *registryProvider) GetName() string              { return "Registry" }
func (p *registryProvider) GetSupportedModels() []string { return []string{"r-1", "r-2"} }

func (p *registryProvider) CompleteText(context.Context, CompletionRequest) (*CompletionResponse, error) {
	return &CompletionResponse{Text: "ok"}, nil
}

func (p *registryProvider) StreamCompletion(context.Context, CompletionRequest) (<-chan StreamResponse, error) {
	return nil, errors.New("not implemented")
}

func TestGetProviderInitializes(t *testing.T) {
	var created *registryProvider
	Register("registry-test", func() Provider {
		created = &registryProvider{}
		return created
	})

	config := map[string]string{"api_key": "k"}
	provider, err := GetProvider("registry-test", config)
	if err != nil {
		t.Fatalf("GetProvider: %v", err)
	}
	if provider != created {
		t.Fatal("factory result not returned")
	}
	if created.initConfig["api_key"] != "k" {
		t.Fatalf("config not passed to Initialize: %v", created.initConfig)
	}
}

func TestGetProviderUnknown(t *testing.T) {
	if _, err := GetProvider("no-such-provider", nil); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestGetProviderInitializeFailure(t *testing.T) {
	Register("registry-fail", func() Provider {
		return &registryProvider{initErr: errors.New("missing api key")}
	})

	if _, err := GetProvider("registry-fail", nil); err == nil {
		t.Fatal("expected initialization error")
	}
}

func TestGetSupportedModelsForProvider(t *testing.T) {
	Register("registry-models", func() Provider { return &registryProvider{} })

	models := GetSupportedModelsForProvider("registry-models")
	if len(models) != 2 || models[0] != "r-1" {
		t.Fatalf("unexpected models: %v", models)
	}

	if got := GetSupportedModelsForProvider("no-such-provider"); len(got) != 0 {
		t.Fatalf("expected empty list, got %v", got)
	}
}
