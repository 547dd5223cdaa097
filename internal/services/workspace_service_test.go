// internal/services/workspace_service_test.go
package services

import (
	"testing"

	apperrors "github.com/forgelab/scriptforge/internal/errors"
)

func newTestWorkspace(t *testing.T) *WorkspaceService {
	t.Helper()

	ws, err := NewWorkspaceService(t.TempDir(), ".py")
	if err != nil {
		t.Fatalf("NewWorkspaceService: %v", err)
	}
	return ws
}

func TestValidateName(t *testing.T) {
	ws := newTestWorkspace(t)

	cases := []struct {
		name     string
		filename string
		valid    bool
	}{
		{"plain", "app.py", true},
		{"underscored", "my_app.py", true},
		{"empty", "", false},
		{"traversal", "../app.py", false},
		{"nested traversal", "a/../b.py", false},
		{"slash", "dir/app.py", false},
		{"backslash", "dir\\app.py", false},
		{"hidden", ".secret.py", false},
		{"wrong extension", "app.txt", false},
		{"no extension", "app", false},
	}

	for _, tc := range cases {
		err := ws.ValidateName(tc.filename)
		if tc.valid && err != nil {
			t.Errorf("%s: expected valid, got %v", tc.name, err)
		}
		if !tc.valid {
			if err == nil {
				t.Errorf("%s: expected rejection", tc.name)
			} else if !apperrors.IsValidationError(err) {
				t.Errorf("%s: expected validation error, got %v", tc.name, err)
			}
		}
	}
}

func TestSaveReadListScripts(t *testing.T) {
	ws := newTestWorkspace(t)

	if err := ws.SaveScript("app.py", "import streamlit as st"); err != nil {
		t.Fatalf("SaveScript: %v", err)
	}
	if err := ws.SaveScript("other.py", "pass"); err != nil {
		t.Fatalf("SaveScript: %v", err)
	}

	content, err := ws.ReadScript("app.py")
	if err != nil {
		t.Fatalf("ReadScript: %v", err)
	}
	if content != "import streamlit as st" {
		t.Fatalf("unexpected content: %q", content)
	}

	files, err := ws.ListScripts()
	if err != nil {
		t.Fatalf("ListScripts: %v", err)
	}
	if len(files) != 2 || files[0] != "app.py" || files[1] != "other.py" {
		t.Fatalf("unexpected listing: %v", files)
	}
}

func TestReadScriptMissing(t *testing.T) {
	ws := newTestWorkspace(t)

	_, err := ws.ReadScript("ghost.py")
	if !apperrors.IsNotFoundError(err) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestDeleteScriptFiresHooks(t *testing.T) {
	ws := newTestWorkspace(t)

	var hooked []string
	ws.RegisterDeleteHook(func(filename string) {
		hooked = append(hooked, filename)
	})

	if err := ws.SaveScript("doomed.py", "pass"); err != nil {
		t.Fatalf("SaveScript: %v", err)
	}
	if err := ws.DeleteScript("doomed.py"); err != nil {
		t.Fatalf("DeleteScript: %v", err)
	}

	if len(hooked) != 1 || hooked[0] != "doomed.py" {
		t.Fatalf("delete hooks not fired: %v", hooked)
	}
	if ws.ScriptExists("doomed.py") {
		t.Fatal("script still exists after delete")
	}
}

func TestDeleteScriptMissingDoesNotFireHooks(t *testing.T) {
	ws := newTestWorkspace(t)

	fired := false
	ws.RegisterDeleteHook(func(string) { fired = true })

	err := ws.DeleteScript("ghost.py")
	if !apperrors.IsNotFoundError(err) {
		t.Fatalf("expected not found error, got %v", err)
	}
	if fired {
		t.Fatal("hooks fired for failed delete")
	}
}

func TestScriptPath(t *testing.T) {
	ws := newTestWorkspace(t)

	if _, err := ws.ScriptPath("ghost.py"); !apperrors.IsNotFoundError(err) {
		t.Fatalf("expected not found for missing script, got %v", err)
	}

	if err := ws.SaveScript("app.py", "pass"); err != nil {
		t.Fatalf("SaveScript: %v", err)
	}

	path, err := ws.ScriptPath("app.py")
	if err != nil {
		t.Fatalf("ScriptPath: %v", err)
	}
	if path == "" || path == "app.py" {
		t.Fatalf("expected absolute path, got %q", path)
	}
}

func TestExtensionNormalization(t *testing.T) {
	ws, err := NewWorkspaceService(t.TempDir(), "py")
	if err != nil {
		t.Fatalf("NewWorkspaceService: %v", err)
	}
	if ws.Ext != ".py" {
		t.Fatalf("extension not normalized: %q", ws.Ext)
	}
}
