// internal/models/message.go
package models

import "time"

// Chat roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one entry in a session transcript. User messages carry plain
// text in Content; assistant messages carry the executed command list.
type ChatMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content,omitempty"`
	Commands  []Command `json:"commands,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewUserMessage creates a user transcript entry.
func NewUserMessage(content string) ChatMessage {
	return ChatMessage{
		Role:      RoleUser,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewAssistantMessage creates an assistant transcript entry from the
// commands the interpreter executed.
func NewAssistantMessage(commands []Command) ChatMessage {
	return ChatMessage{
		Role:      RoleAssistant,
		Commands:  commands,
		Timestamp: time.Now(),
	}
}
