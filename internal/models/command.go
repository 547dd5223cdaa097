// internal/models/command.go
package models

// Command actions the AI assistant may return.
const (
	ActionCreateUpdate = "create_update"
	ActionDelete       = "delete"
	ActionChat         = "chat"
)

// Command is one tagged record from the assistant's JSON command array.
type Command struct {
	Action   string `json:"action"`
	Filename string `json:"filename,omitempty"`
	Content  string `json:"content,omitempty"`
}

// IsFileAction reports whether the command touches the workspace.
func (c Command) IsFileAction() bool {
	return c.Action == ActionCreateUpdate || c.Action == ActionDelete
}

// CommandResult records the outcome of applying a single command.
type CommandResult struct {
	Command Command `json:"command"`
	Applied bool    `json:"applied"`
	Error   string  `json:"error,omitempty"`
}
