// internal/services/chat_service_test.go
package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/forgelab/scriptforge/internal/llm"
	"github.com/forgelab/scriptforge/internal/models"
)

// scriptedProvider returns canned responses and records the requests it saw.
type scriptedProvider struct {
	responses []string
	err       error
	requests  []llm.CompletionRequest
}

func (p *scriptedProvider) Initialize(map[string]string) error { return nil }
func (p *scriptedProvider) GetName() string                    { return "Scripted" }
func (p *scriptedProvider) GetSupportedModels() []string       { return []string{"scripted-1"} }

func (p *scriptedProvider) CompleteText(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}

	text := "[]"
	if len(p.responses) > 0 {
		text = p.responses[0]
		p.responses = p.responses[1:]
	}
	return &llm.CompletionResponse{Text: text, ModelName: "scripted-1"}, nil
}

func (p *scriptedProvider) StreamCompletion(context.Context, llm.CompletionRequest) (<-chan llm.StreamResponse, error) {
	return nil, errors.New("not implemented")
}

func newTestChat(t *testing.T, provider *scriptedProvider) (*ChatService, *WorkspaceService, *SessionService) {
	t.Helper()

	ws := newTestWorkspace(t)
	sessions := newTestSessions(t)
	llmService := NewLLMServiceWithProvider("scripted", provider)
	interpreter := NewCommandService(ws)

	return NewChatService(llmService, ws, sessions, interpreter), ws, sessions
}

func TestSendMessageAppliesCommands(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`[{"action": "create_update", "filename": "todo.py", "content": "import streamlit as st"},
		  {"action": "chat", "content": "Created a todo app."}]`,
	}}
	chat, ws, sessions := newTestChat(t, provider)

	session, err := sessions.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated, commands, err := chat.SendMessage(context.Background(), session.ID, "build a todo app")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if len(commands) != 2 {
		t.Fatalf("unexpected commands: %+v", commands)
	}
	if !ws.ScriptExists("todo.py") {
		t.Fatal("create_update was not applied")
	}

	if len(updated.Messages) != 2 {
		t.Fatalf("expected user+assistant messages, got %d", len(updated.Messages))
	}
	if updated.Messages[0].Role != models.RoleUser || updated.Messages[0].Content != "build a todo app" {
		t.Fatalf("user message wrong: %+v", updated.Messages[0])
	}
	if updated.Messages[1].Role != models.RoleAssistant || len(updated.Messages[1].Commands) != 2 {
		t.Fatalf("assistant message wrong: %+v", updated.Messages[1])
	}
}

func TestSendMessageRequestShape(t *testing.T) {
	provider := &scriptedProvider{}
	chat, ws, sessions := newTestChat(t, provider)

	if err := ws.SaveScript("existing.py", "pass"); err != nil {
		t.Fatalf("SaveScript: %v", err)
	}

	session, _ := sessions.Create()
	if _, _, err := chat.SendMessage(context.Background(), session.ID, "hello"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if len(provider.requests) != 1 {
		t.Fatalf("expected one provider call, got %d", len(provider.requests))
	}
	req := provider.requests[0]

	if req.Prompt != "hello" {
		t.Fatalf("prompt not forwarded: %q", req.Prompt)
	}
	if !strings.Contains(req.SystemPrompt, "existing.py") {
		t.Fatal("system prompt missing the workspace listing")
	}
	if len(req.History) == 0 || req.History[0].Role != models.RoleAssistant ||
		!strings.Contains(req.History[0].Content, "Understood") {
		t.Fatalf("primer turn missing from history: %+v", req.History)
	}
}

func TestSendMessageHistoryCarriesPriorTurns(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`[{"action": "create_update", "filename": "app.py", "content": "pass"}]`,
		`[{"action": "chat", "content": "done"}]`,
	}}
	chat, _, sessions := newTestChat(t, provider)

	session, _ := sessions.Create()
	if _, _, err := chat.SendMessage(context.Background(), session.ID, "first"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if _, _, err := chat.SendMessage(context.Background(), session.ID, "second"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	req := provider.requests[1]

	// Primer, first user turn, first assistant turn re-encoded as JSON.
	if len(req.History) != 3 {
		t.Fatalf("unexpected history length %d: %+v", len(req.History), req.History)
	}
	if req.History[1].Content != "first" {
		t.Fatalf("user turn missing: %+v", req.History[1])
	}
	if !strings.Contains(req.History[2].Content, `"create_update"`) {
		t.Fatalf("assistant turn not re-encoded as JSON: %+v", req.History[2])
	}
}

func TestSendMessageProviderErrorBecomesChatRecord(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("API key not valid. Please pass a valid API key.")}
	chat, _, sessions := newTestChat(t, provider)

	session, _ := sessions.Create()
	updated, commands, err := chat.SendMessage(context.Background(), session.ID, "hello")
	if err != nil {
		t.Fatalf("SendMessage must not fail on provider errors: %v", err)
	}

	if len(commands) != 1 || commands[0].Action != models.ActionChat {
		t.Fatalf("expected a single chat record, got %+v", commands)
	}
	if !strings.Contains(commands[0].Content, "invalid") {
		t.Fatalf("invalid key not classified: %q", commands[0].Content)
	}
	if len(updated.Messages) != 2 {
		t.Fatalf("error turn not persisted: %d messages", len(updated.Messages))
	}
}

func TestSendMessageQuotaError(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("googleapi: Error 429: Resource has been exhausted")}
	chat, _, sessions := newTestChat(t, provider)

	session, _ := sessions.Create()
	_, commands, err := chat.SendMessage(context.Background(), session.ID, "hello")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if !strings.Contains(commands[0].Content, "quota or rate limit") {
		t.Fatalf("quota error not classified: %q", commands[0].Content)
	}
}

func TestSendMessageLongErrorTruncated(t *testing.T) {
	provider := &scriptedProvider{err: errors.New(strings.Repeat("x", 400))}
	chat, _, sessions := newTestChat(t, provider)

	session, _ := sessions.Create()
	_, commands, err := chat.SendMessage(context.Background(), session.ID, "hello")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if len(commands[0].Content) > 200 {
		t.Fatalf("error message not truncated: %d chars", len(commands[0].Content))
	}
	if !strings.HasSuffix(commands[0].Content, "...") {
		t.Fatalf("truncation marker missing: %q", commands[0].Content)
	}
}

func TestSendMessageWithoutProvider(t *testing.T) {
	ws := newTestWorkspace(t)
	sessions := newTestSessions(t)
	chat := NewChatService(NewEmptyLLMService(), ws, sessions, NewCommandService(ws))

	session, _ := sessions.Create()
	_, commands, err := chat.SendMessage(context.Background(), session.ID, "hello")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if !strings.Contains(commands[0].Content, "no API key configured") {
		t.Fatalf("not-ready state not surfaced: %q", commands[0].Content)
	}
}

func TestSendMessageUnknownSession(t *testing.T) {
	provider := &scriptedProvider{}
	chat, _, _ := newTestChat(t, provider)

	if _, _, err := chat.SendMessage(context.Background(), "no-such-session", "hello"); err == nil {
		t.Fatal("expected error for unknown session")
	}
	if len(provider.requests) != 0 {
		t.Fatal("provider called for unknown session")
	}
}
