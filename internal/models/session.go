// internal/models/session.go
package models

import "time"

// Session is the per-conversation record: transcript, the file selected in
// the editor, and a snapshot of the preview if one is running.
type Session struct {
	ID           string        `json:"id"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	Messages     []ChatMessage `json:"messages"`
	SelectedFile string        `json:"selected_file,omitempty"`
	Preview      *PreviewState `json:"preview,omitempty"`
}

// PreviewState is a snapshot of the tracked preview process.
type PreviewState struct {
	File      string    `json:"file"`
	Port      int       `json:"port"`
	URL       string    `json:"url"`
	PID       int       `json:"pid,omitempty"`
	Running   bool      `json:"running"`
	StartedAt time.Time `json:"started_at"`
}

// AppendMessage adds a transcript entry and bumps the update time.
func (s *Session) AppendMessage(msg ChatMessage) {
	s.Messages = append(s.Messages, msg)
	s.UpdatedAt = time.Now()
}
