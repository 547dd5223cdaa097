// internal/services/session_service.go
package services

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/forgelab/scriptforge/internal/errors"
	"github.com/forgelab/scriptforge/internal/models"
	"github.com/forgelab/scriptforge/internal/storage"
	"github.com/forgelab/scriptforge/internal/utils"
)

const sessionsDir = "sessions"

// SessionService persists conversation sessions as JSON files under the data
// directory.
type SessionService struct {
	storage *storage.FileStorage
	logger  *utils.Logger

	// Serializes read-modify-write cycles on session files.
	mu sync.Mutex
}

// SessionSummary is the listing shape: the transcript is omitted.
type SessionSummary struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
	SelectedFile string    `json:"selected_file,omitempty"`
}

// NewSessionService creates a session store on top of fs.
func NewSessionService(fs *storage.FileStorage) *SessionService {
	return &SessionService{
		storage: fs,
		logger:  utils.GetLogger(),
	}
}

// Create makes a new empty session and persists it.
func (s *SessionService) Create() (*models.Session, error) {
	now := time.Now()
	session := &models.Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []models.ChatMessage{},
	}

	if err := s.save(session); err != nil {
		return nil, err
	}

	s.logger.Infof("session: created %s", session.ID)
	return session, nil
}

// Get loads a session by id.
func (s *SessionService) Get(id string) (*models.Session, error) {
	if id == "" || strings.ContainsAny(id, "/\\.") {
		return nil, apperrors.NewValidationError("invalid session id", nil)
	}

	if !s.storage.FileExists(sessionsDir, sessionFilename(id)) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("session not found: %s", id), nil)
	}

	var session models.Session
	if err := s.storage.LoadJSONFile(sessionsDir, sessionFilename(id), &session); err != nil {
		return nil, apperrors.NewProcessingError("failed to load session", err)
	}

	return &session, nil
}

// Save persists a session.
func (s *SessionService) Save(session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(session)
}

func (s *SessionService) save(session *models.Session) error {
	session.UpdatedAt = time.Now()
	if err := s.storage.SaveJSONFile(sessionsDir, sessionFilename(session.ID), session); err != nil {
		return apperrors.NewProcessingError("failed to save session", err)
	}
	return nil
}

// List returns summaries for every stored session.
func (s *SessionService) List() ([]SessionSummary, error) {
	names, err := s.storage.ListFiles(sessionsDir, ".json")
	if err != nil {
		return nil, apperrors.NewProcessingError("failed to list sessions", err)
	}

	summaries := make([]SessionSummary, 0, len(names))
	for _, name := range names {
		var session models.Session
		if err := s.storage.LoadJSONFile(sessionsDir, name, &session); err != nil {
			s.logger.Warnf("session: skipping unreadable file %s: %v", name, err)
			continue
		}
		summaries = append(summaries, SessionSummary{
			ID:           session.ID,
			CreatedAt:    session.CreatedAt,
			UpdatedAt:    session.UpdatedAt,
			MessageCount: len(session.Messages),
			SelectedFile: session.SelectedFile,
		})
	}

	return summaries, nil
}

// AppendMessages appends transcript entries to a session and persists it.
func (s *SessionService) AppendMessages(id string, messages ...models.ChatMessage) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	for _, msg := range messages {
		session.AppendMessage(msg)
	}

	if err := s.save(session); err != nil {
		return nil, err
	}
	return session, nil
}

// SelectFile records the file shown in the session's editor. An empty name
// clears the selection.
func (s *SessionService) SelectFile(id, filename string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	session.SelectedFile = filename
	if err := s.save(session); err != nil {
		return nil, err
	}
	return session, nil
}

// SetPreview stores (or clears, with nil) the preview snapshot on a session.
func (s *SessionService) SetPreview(id string, state *models.PreviewState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.Get(id)
	if err != nil {
		return err
	}

	session.Preview = state
	return s.save(session)
}

// ClearFileReferences drops selections and preview snapshots that point at a
// deleted workspace file. Wired as a workspace delete hook.
func (s *SessionService) ClearFileReferences(filename string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.storage.ListFiles(sessionsDir, ".json")
	if err != nil {
		s.logger.Warnf("session: failed to scan sessions for %s: %v", filename, err)
		return
	}

	for _, name := range names {
		var session models.Session
		if err := s.storage.LoadJSONFile(sessionsDir, name, &session); err != nil {
			continue
		}

		changed := false
		if session.SelectedFile == filename {
			session.SelectedFile = ""
			changed = true
		}
		if session.Preview != nil && session.Preview.File == filename {
			session.Preview = nil
			changed = true
		}

		if changed {
			if err := s.save(&session); err != nil {
				s.logger.Warnf("session: failed to update %s: %v", session.ID, err)
			}
		}
	}
}

func sessionFilename(id string) string {
	return id + ".json"
}
