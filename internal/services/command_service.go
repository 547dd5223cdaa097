// internal/services/command_service.go
package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/forgelab/scriptforge/internal/models"
	"github.com/forgelab/scriptforge/internal/utils"
)

// CommandService interprets the assistant's response: strips code fences,
// parses the JSON command array and applies each file command against the
// workspace. Commands are applied one by one; a failing command does not
// roll back the ones before it, the failure is surfaced as an extra chat
// record in the transcript instead.
type CommandService struct {
	workspace *WorkspaceService
	logger    *utils.Logger
}

// NewCommandService creates the interpreter over the given workspace.
func NewCommandService(workspace *WorkspaceService) *CommandService {
	return &CommandService{
		workspace: workspace,
		logger:    utils.GetLogger(),
	}
}

// CleanResponse removes surrounding ```json / ``` code fences if present.
func (s *CommandService) CleanResponse(raw string) string {
	text := strings.TrimSpace(raw)

	if strings.HasPrefix(text, "```json") && strings.HasSuffix(text, "```") && len(text) > 10 {
		return strings.TrimSpace(text[7 : len(text)-3])
	}
	if strings.HasPrefix(text, "```") && strings.HasSuffix(text, "```") && len(text) > 6 {
		return strings.TrimSpace(text[3 : len(text)-3])
	}
	return text
}

// ParseCommands decodes the assistant response into a command list. Invalid
// JSON or a non-array payload degrades into a single chat record carrying the
// raw response so the failure shows up in the conversation.
func (s *CommandService) ParseCommands(raw string) []models.Command {
	cleaned := s.CleanResponse(raw)

	var commands []models.Command
	if err := json.Unmarshal([]byte(cleaned), &commands); err != nil {
		s.logger.Warnf("interpreter: response is not a JSON command array: %v", err)
		return []models.Command{{
			Action:  models.ActionChat,
			Content: fmt.Sprintf("AI error: response was not a valid JSON command array. Response: %s", raw),
		}}
	}

	return commands
}

// ExecuteCommands applies each command against the workspace and returns the
// list for the transcript. Failures, unknown actions and records missing
// required fields are appended as chat entries after the offending command.
func (s *CommandService) ExecuteCommands(commands []models.Command) []models.Command {
	executed := make([]models.Command, 0, len(commands))

	for _, command := range commands {
		executed = append(executed, command)

		switch command.Action {
		case models.ActionCreateUpdate:
			if command.Filename == "" || command.Content == "" {
				executed = append(executed, chatRecord("AI warning: create_update is missing filename or content"))
				continue
			}
			if err := s.workspace.SaveScript(command.Filename, command.Content); err != nil {
				s.logger.Errorf("interpreter: create_update %s failed: %v", command.Filename, err)
				executed = append(executed, chatRecord(fmt.Sprintf("Error: failed saving %s", command.Filename)))
			}

		case models.ActionDelete:
			if command.Filename == "" {
				executed = append(executed, chatRecord("AI warning: delete is missing a filename"))
				continue
			}
			if err := s.workspace.DeleteScript(command.Filename); err != nil {
				s.logger.Errorf("interpreter: delete %s failed: %v", command.Filename, err)
				executed = append(executed, chatRecord(fmt.Sprintf("Error: failed deleting %s", command.Filename)))
			}

		case models.ActionChat:
			// Nothing to apply, the record itself is the message.

		default:
			s.logger.Warnf("interpreter: unknown action %q", command.Action)
			executed = append(executed, chatRecord(fmt.Sprintf("AI warning: unknown action %q", command.Action)))
		}
	}

	return executed
}

// Run is the full interpreter pipeline over a raw assistant response.
func (s *CommandService) Run(raw string) []models.Command {
	return s.ExecuteCommands(s.ParseCommands(raw))
}

func chatRecord(content string) models.Command {
	return models.Command{Action: models.ActionChat, Content: content}
}
