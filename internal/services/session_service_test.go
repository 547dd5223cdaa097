// internal/services/session_service_test.go
package services

import (
	"testing"
	"time"

	apperrors "github.com/forgelab/scriptforge/internal/errors"
	"github.com/forgelab/scriptforge/internal/models"
	"github.com/forgelab/scriptforge/internal/storage"
)

func newTestSessions(t *testing.T) *SessionService {
	t.Helper()

	fs, err := storage.NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStorage: %v", err)
	}
	return NewSessionService(fs)
}

func TestCreateAndGetSession(t *testing.T) {
	sessions := newTestSessions(t)

	created, err := sessions.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("session has no id")
	}

	loaded, err := sessions.Get(created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if loaded.ID != created.ID {
		t.Fatalf("id mismatch: %s != %s", loaded.ID, created.ID)
	}
	if len(loaded.Messages) != 0 {
		t.Fatalf("new session has messages: %+v", loaded.Messages)
	}
}

func TestGetSessionInvalidID(t *testing.T) {
	sessions := newTestSessions(t)

	for _, id := range []string{"", "../etc", "a/b", "x.json"} {
		if _, err := sessions.Get(id); !apperrors.IsValidationError(err) {
			t.Errorf("id %q: expected validation error, got %v", id, err)
		}
	}

	if _, err := sessions.Get("does-not-exist"); !apperrors.IsNotFoundError(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestAppendMessages(t *testing.T) {
	sessions := newTestSessions(t)

	session, err := sessions.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated, err := sessions.AppendMessages(session.ID,
		models.NewUserMessage("make me an app"),
		models.NewAssistantMessage([]models.Command{
			{Action: models.ActionCreateUpdate, Filename: "app.py", Content: "pass"},
		}),
	)
	if err != nil {
		t.Fatalf("AppendMessages: %v", err)
	}
	if len(updated.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(updated.Messages))
	}

	// The transcript must survive a reload.
	reloaded, err := sessions.Get(session.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(reloaded.Messages) != 2 {
		t.Fatalf("messages not persisted: %d", len(reloaded.Messages))
	}
	if reloaded.Messages[1].Commands[0].Filename != "app.py" {
		t.Fatalf("commands not persisted: %+v", reloaded.Messages[1])
	}
}

func TestListSessions(t *testing.T) {
	sessions := newTestSessions(t)

	first, _ := sessions.Create()
	if _, err := sessions.AppendMessages(first.ID, models.NewUserMessage("hi")); err != nil {
		t.Fatalf("AppendMessages: %v", err)
	}
	if _, err := sessions.Create(); err != nil {
		t.Fatalf("Create: %v", err)
	}

	summaries, err := sessions.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}

	for _, summary := range summaries {
		if summary.ID == first.ID && summary.MessageCount != 1 {
			t.Fatalf("wrong message count: %+v", summary)
		}
	}
}

func TestSelectFileAndSetPreview(t *testing.T) {
	sessions := newTestSessions(t)

	session, _ := sessions.Create()

	updated, err := sessions.SelectFile(session.ID, "app.py")
	if err != nil {
		t.Fatalf("SelectFile: %v", err)
	}
	if updated.SelectedFile != "app.py" {
		t.Fatalf("selection not stored: %q", updated.SelectedFile)
	}

	state := &models.PreviewState{
		File:      "app.py",
		Port:      8501,
		URL:       "http://localhost:8501",
		Running:   true,
		StartedAt: time.Now(),
	}
	if err := sessions.SetPreview(session.ID, state); err != nil {
		t.Fatalf("SetPreview: %v", err)
	}

	reloaded, _ := sessions.Get(session.ID)
	if reloaded.Preview == nil || reloaded.Preview.Port != 8501 {
		t.Fatalf("preview snapshot not persisted: %+v", reloaded.Preview)
	}

	// Clearing the selection with an empty name.
	cleared, err := sessions.SelectFile(session.ID, "")
	if err != nil {
		t.Fatalf("SelectFile (clear): %v", err)
	}
	if cleared.SelectedFile != "" {
		t.Fatalf("selection not cleared: %q", cleared.SelectedFile)
	}
}

func TestClearFileReferences(t *testing.T) {
	sessions := newTestSessions(t)

	affected, _ := sessions.Create()
	if _, err := sessions.SelectFile(affected.ID, "gone.py"); err != nil {
		t.Fatalf("SelectFile: %v", err)
	}
	if err := sessions.SetPreview(affected.ID, &models.PreviewState{File: "gone.py", Running: true}); err != nil {
		t.Fatalf("SetPreview: %v", err)
	}

	untouched, _ := sessions.Create()
	if _, err := sessions.SelectFile(untouched.ID, "keep.py"); err != nil {
		t.Fatalf("SelectFile: %v", err)
	}

	sessions.ClearFileReferences("gone.py")

	reloaded, _ := sessions.Get(affected.ID)
	if reloaded.SelectedFile != "" || reloaded.Preview != nil {
		t.Fatalf("references not cleared: %+v", reloaded)
	}

	other, _ := sessions.Get(untouched.ID)
	if other.SelectedFile != "keep.py" {
		t.Fatalf("unrelated session was touched: %+v", other)
	}
}
