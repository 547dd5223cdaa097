// internal/storage/file_storage_test.go
package storage

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func newTestStorage(t *testing.T) *FileStorage {
	t.Helper()

	fs, err := NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStorage: %v", err)
	}
	return fs
}

func TestSaveAndLoadTextFile(t *testing.T) {
	fs := newTestStorage(t)

	if err := fs.SaveTextFile("scripts", "hello.py", []byte("print('hi')")); err != nil {
		t.Fatalf("SaveTextFile: %v", err)
	}

	content, err := fs.LoadTextFile("scripts", "hello.py")
	if err != nil {
		t.Fatalf("LoadTextFile: %v", err)
	}
	if string(content) != "print('hi')" {
		t.Fatalf("unexpected content: %q", content)
	}

	// Second load goes through the cache and must match.
	cached, err := fs.LoadTextFile("scripts", "hello.py")
	if err != nil {
		t.Fatalf("LoadTextFile (cached): %v", err)
	}
	if string(cached) != "print('hi')" {
		t.Fatalf("unexpected cached content: %q", cached)
	}
}

func TestSaveTextFileOverwrites(t *testing.T) {
	fs := newTestStorage(t)

	if err := fs.SaveTextFile("", "app.py", []byte("v1")); err != nil {
		t.Fatalf("SaveTextFile: %v", err)
	}
	if err := fs.SaveTextFile("", "app.py", []byte("v2")); err != nil {
		t.Fatalf("SaveTextFile (overwrite): %v", err)
	}

	content, err := fs.LoadTextFile("", "app.py")
	if err != nil {
		t.Fatalf("LoadTextFile: %v", err)
	}
	if string(content) != "v2" {
		t.Fatalf("expected overwritten content, got %q", content)
	}

	// No temp files may be left behind by the atomic write.
	entries, err := os.ReadDir(fs.BaseDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) == ".tmp" {
			t.Fatalf("leftover temp file: %s", entry.Name())
		}
	}
}

func TestSaveAndLoadJSONFile(t *testing.T) {
	fs := newTestStorage(t)

	type record struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	in := record{Name: "demo", Count: 3}
	if err := fs.SaveJSONFile("sessions", "demo.json", in); err != nil {
		t.Fatalf("SaveJSONFile: %v", err)
	}

	var out record
	if err := fs.LoadJSONFile("sessions", "demo.json", &out); err != nil {
		t.Fatalf("LoadJSONFile: %v", err)
	}
	if out != in {
		t.Fatalf("roundtrip mismatch: %+v != %+v", out, in)
	}
}

func TestFileExistsAndDelete(t *testing.T) {
	fs := newTestStorage(t)

	if fs.FileExists("", "ghost.py") {
		t.Fatal("FileExists on missing file")
	}

	if err := fs.SaveTextFile("", "real.py", []byte("x")); err != nil {
		t.Fatalf("SaveTextFile: %v", err)
	}
	if !fs.FileExists("", "real.py") {
		t.Fatal("FileExists false for saved file")
	}

	if err := fs.DeleteFile("", "real.py"); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if fs.FileExists("", "real.py") {
		t.Fatal("file still exists after delete")
	}
	if _, err := fs.LoadTextFile("", "real.py"); err == nil {
		t.Fatal("expected load of deleted file to fail")
	}
}

func TestListFiles(t *testing.T) {
	fs := newTestStorage(t)

	for _, name := range []string{"b.py", "a.py", "notes.txt"} {
		if err := fs.SaveTextFile("ws", name, []byte("x")); err != nil {
			t.Fatalf("SaveTextFile %s: %v", name, err)
		}
	}

	files, err := fs.ListFiles("ws", ".py")
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if !reflect.DeepEqual(files, []string{"a.py", "b.py"}) {
		t.Fatalf("unexpected listing: %v", files)
	}
}

func TestListFilesMissingDir(t *testing.T) {
	fs := newTestStorage(t)

	files, err := fs.ListFiles("nope", ".py")
	if err != nil {
		t.Fatalf("ListFiles on missing dir: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("expected empty listing, got %v", files)
	}
}
