// internal/llm/providers/anthropic/anthropic.go
package anthropic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/forgelab/scriptforge/internal/llm"
)

func init() {
	llm.Register("anthropic", func() llm.Provider {
		return &Provider{
			models: []string{
				"claude-sonnet-4-5",
				"claude-haiku-4-5",
				"claude-opus-4-1",
			},
			baseURL:    "https://api.anthropic.com",
			apiVersion: "2023-06-01",
		}
	})
}

// Provider talks to the Anthropic Messages API.
type Provider struct {
	apiKey       string
	baseURL      string
	apiVersion   string
	client       *http.Client
	defaultModel string
	models       []string
}

func (p *Provider) Initialize(config map[string]string) error {
	apiKey, exists := config["api_key"]
	if !exists || apiKey == "" {
		return errors.New("anthropic API key not provided")
	}

	p.apiKey = apiKey
	p.client = &http.Client{}

	if model, exists := config["default_model"]; exists && model != "" {
		p.defaultModel = model
	} else {
		p.defaultModel = "claude-haiku-4-5"
	}

	if baseURL, exists := config["base_url"]; exists && baseURL != "" {
		p.baseURL = baseURL
	}

	if apiVersion, exists := config["api_version"]; exists && apiVersion != "" {
		p.apiVersion = apiVersion
	}

	return nil
}

func (p *Provider) GetName() string {
	return "Anthropic Claude"
}

func (p *Provider) GetSupportedModels() []string {
	return p.models
}

func buildMessages(req llm.CompletionRequest) []map[string]interface{} {
	messages := make([]map[string]interface{}, 0, len(req.History)+1)

	for _, msg := range req.History {
		role := "user"
		if msg.Role == "assistant" {
			role = "assistant"
		}
		messages = append(messages, map[string]interface{}{
			"role":    role,
			"content": msg.Content,
		})
	}

	if req.Prompt != "" {
		messages = append(messages, map[string]interface{}{
			"role":    "user",
			"content": req.Prompt,
		})
	}

	return messages
}

func (p *Provider) buildRequestBody(req llm.CompletionRequest, model string, stream bool) map[string]interface{} {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		// The messages API requires max_tokens.
		maxTokens = 4096
	}

	requestBody := map[string]interface{}{
		"model":       model,
		"messages":    buildMessages(req),
		"max_tokens":  maxTokens,
		"temperature": req.Temperature,
	}

	if req.SystemPrompt != "" {
		requestBody["system"] = req.SystemPrompt
	}

	if req.TopP > 0 {
		requestBody["top_p"] = req.TopP
	}

	if len(req.StopWords) > 0 {
		requestBody["stop_sequences"] = req.StopWords
	}

	if stream {
		requestBody["stream"] = true
	}

	for k, v := range req.ExtraParams {
		requestBody[k] = v
	}

	return requestBody
}

func (p *Provider) newRequest(ctx context.Context, body map[string]interface{}) (*http.Request, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/v1/messages", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Api-Key", p.apiKey)
	httpReq.Header.Set("Anthropic-Version", p.apiVersion)

	return httpReq, nil
}

func (p *Provider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	httpReq, err := p.newRequest(ctx, p.buildRequestBody(req, model, false))
	if err != nil {
		return nil, err
	}

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(httpResp.Body)
		return nil, fmt.Errorf("anthropic API error (%d): %s", httpResp.StatusCode, string(body))
	}

	var response struct {
		ID         string `json:"id"`
		Model      string `json:"model"`
		StopReason string `json:"stop_reason"`
		Content    []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}

	if err := json.NewDecoder(httpResp.Body).Decode(&response); err != nil {
		return nil, err
	}

	var resultText string
	for _, block := range response.Content {
		if block.Type == "text" {
			resultText += block.Text
		}
	}

	return &llm.CompletionResponse{
		Text:         resultText,
		FinishReason: response.StopReason,
		TokensUsed:   response.Usage.InputTokens + response.Usage.OutputTokens,
		PromptTokens: response.Usage.InputTokens,
		OutputTokens: response.Usage.OutputTokens,
		ModelName:    model,
		ProviderName: p.GetName(),
	}, nil
}

// StreamCompletion streams server-sent events from the messages API.
func (p *Provider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	httpReq, err := p.newRequest(ctx, p.buildRequestBody(req, model, true))
	if err != nil {
		return nil, err
	}

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(httpResp.Body)
		httpResp.Body.Close()
		return nil, fmt.Errorf("anthropic API error (%d): %s", httpResp.StatusCode, string(body))
	}

	respChan := make(chan llm.StreamResponse)

	go func() {
		defer httpResp.Body.Close()
		defer close(respChan)

		scanner := bufio.NewScanner(httpResp.Body)
		var contentBuffer strings.Builder

		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			default:
			}

			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}

			payload := strings.TrimPrefix(line, "data: ")

			var event struct {
				Type  string `json:"type"`
				Delta struct {
					Type       string `json:"type"`
					Text       string `json:"text"`
					StopReason string `json:"stop_reason"`
				} `json:"delta"`
			}

			if err := json.Unmarshal([]byte(payload), &event); err != nil {
				continue
			}

			switch event.Type {
			case "content_block_delta":
				if event.Delta.Text != "" {
					contentBuffer.WriteString(event.Delta.Text)
					respChan <- llm.StreamResponse{
						Text: event.Delta.Text,
						Done: false,
					}
				}
			case "message_delta":
				if event.Delta.StopReason != "" {
					respChan <- llm.StreamResponse{
						Text:         contentBuffer.String(),
						FinishReason: event.Delta.StopReason,
						ModelName:    model,
						Done:         true,
					}
					return
				}
			case "message_stop":
				respChan <- llm.StreamResponse{
					Text:         contentBuffer.String(),
					FinishReason: "stop",
					ModelName:    model,
					Done:         true,
				}
				return
			}
		}
	}()

	return respChan, nil
}
