// internal/services/workspace_service.go
package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	apperrors "github.com/forgelab/scriptforge/internal/errors"
	"github.com/forgelab/scriptforge/internal/storage"
	"github.com/forgelab/scriptforge/internal/utils"
)

// DeleteHook is invoked after a script has been removed from the workspace.
type DeleteHook func(filename string)

// WorkspaceService manages the flat directory of generated script files.
// Filenames are plain names inside the workspace; anything that could escape
// the directory is rejected before touching the filesystem.
type WorkspaceService struct {
	Dir string
	Ext string

	storage *storage.FileStorage
	logger  *utils.Logger

	hookMutex   sync.RWMutex
	deleteHooks []DeleteHook
}

// NewWorkspaceService creates a workspace rooted at dir holding files with
// the given extension (e.g. ".py").
func NewWorkspaceService(dir, ext string) (*WorkspaceService, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace directory: %w", err)
	}

	fs, err := storage.NewFileStorage(absDir)
	if err != nil {
		return nil, err
	}

	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	return &WorkspaceService{
		Dir:     absDir,
		Ext:     ext,
		storage: fs,
		logger:  utils.GetLogger(),
	}, nil
}

// RegisterDeleteHook adds a callback fired after every successful delete,
// both UI-driven and AI-driven. Used to stop a preview of a deleted file and
// to clear stale editor selections.
func (s *WorkspaceService) RegisterDeleteHook(hook DeleteHook) {
	s.hookMutex.Lock()
	defer s.hookMutex.Unlock()
	s.deleteHooks = append(s.deleteHooks, hook)
}

// ValidateName checks that filename is a plain workspace script name.
func (s *WorkspaceService) ValidateName(filename string) error {
	if filename == "" {
		return apperrors.NewValidationError("filename is empty", nil)
	}
	if strings.Contains(filename, "..") {
		return apperrors.NewValidationError(fmt.Sprintf("invalid file path: %s", filename), nil)
	}
	if strings.ContainsAny(filename, "/\\") || filepath.Base(filename) != filename {
		return apperrors.NewValidationError(fmt.Sprintf("invalid file path: %s", filename), nil)
	}
	if strings.HasPrefix(filename, ".") {
		return apperrors.NewValidationError(fmt.Sprintf("invalid file path: %s", filename), nil)
	}
	if s.Ext != "" && !strings.HasSuffix(filename, s.Ext) {
		return apperrors.NewValidationError(
			fmt.Sprintf("not a %s file: %s", s.Ext, filename), nil)
	}
	return nil
}

// ListScripts returns the sorted script filenames in the workspace.
func (s *WorkspaceService) ListScripts() ([]string, error) {
	return s.storage.ListFiles("", s.Ext)
}

// ReadScript returns the content of a workspace script.
func (s *WorkspaceService) ReadScript(filename string) (string, error) {
	if err := s.ValidateName(filename); err != nil {
		return "", err
	}

	if !s.storage.FileExists("", filename) {
		return "", apperrors.NewNotFoundError(fmt.Sprintf("file not found: %s", filename), nil)
	}

	content, err := s.storage.LoadTextFile("", filename)
	if err != nil {
		return "", apperrors.NewProcessingError(fmt.Sprintf("failed to read file %s", filename), err)
	}

	return string(content), nil
}

// SaveScript writes content to a workspace script, creating or overwriting it.
func (s *WorkspaceService) SaveScript(filename, content string) error {
	if err := s.ValidateName(filename); err != nil {
		return err
	}

	if err := s.storage.SaveTextFile("", filename, []byte(content)); err != nil {
		return apperrors.NewProcessingError(fmt.Sprintf("failed to save file %s", filename), err)
	}

	s.logger.Infof("workspace: saved %s (%d bytes)", filename, len(content))
	return nil
}

// DeleteScript removes a workspace script and fires the delete hooks.
func (s *WorkspaceService) DeleteScript(filename string) error {
	if err := s.ValidateName(filename); err != nil {
		return err
	}

	if !s.storage.FileExists("", filename) {
		return apperrors.NewNotFoundError(fmt.Sprintf("file not found: %s", filename), nil)
	}

	if err := s.storage.DeleteFile("", filename); err != nil {
		return apperrors.NewProcessingError(fmt.Sprintf("failed to delete file %s", filename), err)
	}

	s.logger.Infof("workspace: deleted %s", filename)

	s.hookMutex.RLock()
	hooks := append([]DeleteHook(nil), s.deleteHooks...)
	s.hookMutex.RUnlock()

	for _, hook := range hooks {
		hook(filename)
	}

	return nil
}

// ScriptExists reports whether the named script is present.
func (s *WorkspaceService) ScriptExists(filename string) bool {
	if s.ValidateName(filename) != nil {
		return false
	}
	return s.storage.FileExists("", filename)
}

// ScriptPath returns the absolute path of a workspace script. The file must
// exist; previews refuse to start for missing files.
func (s *WorkspaceService) ScriptPath(filename string) (string, error) {
	if err := s.ValidateName(filename); err != nil {
		return "", err
	}

	fullPath := filepath.Join(s.Dir, filename)
	info, err := os.Stat(fullPath)
	if err != nil || info.IsDir() {
		return "", apperrors.NewNotFoundError(fmt.Sprintf("file not found: %s", filename), err)
	}

	return fullPath, nil
}
