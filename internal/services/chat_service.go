// internal/services/chat_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/forgelab/scriptforge/internal/llm"
	"github.com/forgelab/scriptforge/internal/models"
	"github.com/forgelab/scriptforge/internal/utils"
)

// ChatService runs one conversation turn: persist the user message, ask the
// model, interpret the response into file commands and persist the result.
type ChatService struct {
	llm         *LLMService
	workspace   *WorkspaceService
	sessions    *SessionService
	interpreter *CommandService
	logger      *utils.Logger
}

// NewChatService wires the chat pipeline.
func NewChatService(llmService *LLMService, workspace *WorkspaceService, sessions *SessionService, interpreter *CommandService) *ChatService {
	return &ChatService{
		llm:         llmService,
		workspace:   workspace,
		sessions:    sessions,
		interpreter: interpreter,
		logger:      utils.GetLogger(),
	}
}

// SendMessage appends the user prompt to the session, queries the model with
// the full transcript and the live workspace listing, applies the returned
// commands and stores the assistant turn. Model failures do not fail the
// turn; they are folded into the transcript as chat records.
func (s *ChatService) SendMessage(ctx context.Context, sessionID, prompt string) (*models.Session, []models.Command, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, nil, err
	}

	userMessage := models.NewUserMessage(prompt)

	files, err := s.workspace.ListScripts()
	if err != nil {
		s.logger.Warnf("chat: failed to list workspace: %v", err)
		files = nil
	}

	history := buildProviderHistory(session.Messages)

	req := llm.CompletionRequest{
		Prompt:       prompt,
		SystemPrompt: BuildSystemPrompt(files, s.workspace.Ext),
		History:      history,
		Temperature:  0.2,
	}

	var commands []models.Command
	resp, err := s.llm.ChatCompletion(ctx, req)
	if err != nil {
		commands = []models.Command{{
			Action:  models.ActionChat,
			Content: friendlyLLMError(err),
		}}
	} else {
		commands = s.interpreter.Run(resp.Text)
	}

	session, err = s.sessions.AppendMessages(sessionID, userMessage, models.NewAssistantMessage(commands))
	if err != nil {
		return nil, nil, err
	}

	return session, commands, nil
}

// buildProviderHistory converts the stored transcript to provider turns. The
// primer turn comes first; assistant command lists are re-encoded as the JSON
// the model originally produced.
func buildProviderHistory(messages []models.ChatMessage) []llm.Message {
	history := make([]llm.Message, 0, len(messages)+1)
	history = append(history, llm.Message{
		Role:    models.RoleAssistant,
		Content: primerResponse,
	})

	for _, msg := range messages {
		content := msg.Content
		if msg.Role == models.RoleAssistant && len(msg.Commands) > 0 {
			if encoded, err := json.Marshal(msg.Commands); err == nil {
				content = string(encoded)
			} else {
				content = fmt.Sprintf("%v", msg.Commands)
			}
		}
		if content == "" {
			continue
		}
		history = append(history, llm.Message{
			Role:    msg.Role,
			Content: content,
		})
	}

	return history
}

// friendlyLLMError maps common provider failures to a short message for the
// transcript.
func friendlyLLMError(err error) string {
	if err == ErrLLMNotReady {
		return "AI error: no API key configured. Set one on the settings page."
	}

	msg := err.Error()
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "api key not valid"), strings.Contains(lower, "api_key_invalid"),
		strings.Contains(lower, "invalid x-api-key"):
		return "AI error: the configured API key is invalid."
	case strings.Contains(msg, "429"), strings.Contains(lower, "quota"),
		strings.Contains(lower, "resource has been exhausted"), strings.Contains(lower, "rate limit"):
		return "AI error: API quota or rate limit exceeded."
	}

	if len(msg) > 150 {
		msg = msg[:150] + "..."
	}
	return "AI error: " + msg
}
