// internal/services/preview_service_test.go
package services

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	apperrors "github.com/forgelab/scriptforge/internal/errors"
	"github.com/forgelab/scriptforge/internal/executor"
	"github.com/forgelab/scriptforge/internal/models"
)

// wellBehaved models a server that runs until it is told to stop.
func wellBehaved(term, kill <-chan struct{}, _, _ io.Writer, _ []string) int {
	select {
	case <-term:
		return 0
	case <-kill:
		return 137
	}
}

// stubborn models a server that ignores SIGTERM.
func stubborn(_, kill <-chan struct{}, _, _ io.Writer, _ []string) int {
	<-kill
	return 137
}

// crashOnStart models a server that fails immediately.
func crashOnStart(_, _ <-chan struct{}, _, stderr io.Writer, _ []string) int {
	fmt.Fprint(stderr, "ModuleNotFoundError: No module named 'pandas'")
	return 1
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) NotifyPreview(event string, _ *models.PreviewState) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) Events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

func newTestPreview(t *testing.T) (*PreviewService, *executor.FakeExecutor, *WorkspaceService) {
	t.Helper()

	ws := newTestWorkspace(t)
	if err := ws.SaveScript("app.py", "import streamlit as st"); err != nil {
		t.Fatalf("SaveScript: %v", err)
	}

	exec := executor.NewFakeExecutor()
	svc := NewPreviewService(exec, ws, "streamlit")
	svc.StartupDelay = 20 * time.Millisecond
	svc.TermTimeout = 50 * time.Millisecond
	svc.KillTimeout = 50 * time.Millisecond

	return svc, exec, ws
}

func TestStartPreview(t *testing.T) {
	svc, exec, _ := newTestPreview(t)
	exec.RegisterCommand("streamlit", wellBehaved)

	state, err := svc.Start("app.py")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if !state.Running || state.File != "app.py" {
		t.Fatalf("unexpected state: %+v", state)
	}
	if state.Port <= 0 {
		t.Fatalf("no port allocated: %+v", state)
	}
	if state.URL != fmt.Sprintf("http://localhost:%d", state.Port) {
		t.Fatalf("url does not match port: %+v", state)
	}

	started := exec.Started()
	if len(started) != 1 {
		t.Fatalf("expected one process, got %d", len(started))
	}

	args := started[0].Args
	if args[0] != "streamlit" || args[1] != "run" {
		t.Fatalf("unexpected command: %v", args)
	}
	if !strings.HasSuffix(args[2], "app.py") {
		t.Fatalf("command does not reference the script: %v", args)
	}

	joined := strings.Join(args, " ")
	for _, flag := range []string{
		"--server.port " + strconv.Itoa(state.Port),
		"--server.headless true",
		"--server.runOnSave false",
		"--server.fileWatcherType none",
	} {
		if !strings.Contains(joined, flag) {
			t.Fatalf("missing flag %q in %q", flag, joined)
		}
	}
}

func TestStartPreviewMissingFile(t *testing.T) {
	svc, exec, _ := newTestPreview(t)
	exec.RegisterCommand("streamlit", wellBehaved)

	if _, err := svc.Start("ghost.py"); !apperrors.IsNotFoundError(err) {
		t.Fatalf("expected not found error, got %v", err)
	}
	if len(exec.Started()) != 0 {
		t.Fatal("process spawned for missing file")
	}
}

func TestStartPreviewCrashDuringStartup(t *testing.T) {
	svc, exec, _ := newTestPreview(t)
	exec.RegisterCommand("streamlit", crashOnStart)

	_, err := svc.Start("app.py")
	if err == nil {
		t.Fatal("expected startup failure")
	}
	if !strings.Contains(err.Error(), "ModuleNotFoundError") {
		t.Fatalf("error does not carry the stderr tail: %v", err)
	}
	if svc.Running() {
		t.Fatal("supervisor still tracks the crashed process")
	}
}

func TestStartReplacesRunningPreview(t *testing.T) {
	svc, exec, ws := newTestPreview(t)
	exec.RegisterCommand("streamlit", wellBehaved)

	if err := ws.SaveScript("second.py", "pass"); err != nil {
		t.Fatalf("SaveScript: %v", err)
	}

	if _, err := svc.Start("app.py"); err != nil {
		t.Fatalf("Start first: %v", err)
	}
	state, err := svc.Start("second.py")
	if err != nil {
		t.Fatalf("Start second: %v", err)
	}
	if state.File != "second.py" {
		t.Fatalf("unexpected state: %+v", state)
	}

	started := exec.Started()
	if len(started) != 2 {
		t.Fatalf("expected two processes, got %d", len(started))
	}

	// The first process must have been terminated.
	select {
	case <-started[0].Done():
	case <-time.After(time.Second):
		t.Fatal("first process still running")
	}
	if got := started[0].Signals(); len(got) == 0 || got[0] != syscall.SIGTERM {
		t.Fatalf("first process not SIGTERMed: %v", got)
	}
}

func TestStopPreviewGraceful(t *testing.T) {
	svc, exec, _ := newTestPreview(t)
	exec.RegisterCommand("streamlit", wellBehaved)

	notifier := &recordingNotifier{}
	svc.SetNotifier(notifier)

	if _, err := svc.Start("app.py"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	proc := exec.Started()[0]
	signals := proc.Signals()
	if len(signals) != 1 || signals[0] != syscall.SIGTERM {
		t.Fatalf("expected a single SIGTERM, got %v", signals)
	}
	if svc.Status() != nil {
		t.Fatal("supervisor not idle after stop")
	}

	events := notifier.Events()
	if len(events) != 2 || events[0] != PreviewEventStarted || events[1] != PreviewEventStopped {
		t.Fatalf("unexpected events: %v", events)
	}
}

func TestStopPreviewEscalatesToKill(t *testing.T) {
	svc, exec, _ := newTestPreview(t)
	exec.RegisterCommand("streamlit", stubborn)

	if _, err := svc.Start("app.py"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	signals := exec.Started()[0].Signals()
	if len(signals) != 2 || signals[0] != syscall.SIGTERM || signals[1] != syscall.SIGKILL {
		t.Fatalf("expected SIGTERM then SIGKILL, got %v", signals)
	}
}

func TestStopIdleIsNoop(t *testing.T) {
	svc, _, _ := newTestPreview(t)

	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop on idle supervisor: %v", err)
	}
}

func TestStopIfFile(t *testing.T) {
	svc, exec, _ := newTestPreview(t)
	exec.RegisterCommand("streamlit", wellBehaved)

	if _, err := svc.Start("app.py"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	svc.StopIfFile("unrelated.py")
	if !svc.Running() {
		t.Fatal("preview stopped for unrelated file")
	}

	svc.StopIfFile("app.py")
	if svc.Running() {
		t.Fatal("preview still running after its file was deleted")
	}
}

func TestStatusReapsDeadProcess(t *testing.T) {
	svc, exec, _ := newTestPreview(t)

	die := make(chan struct{})
	exec.RegisterCommand("streamlit", func(term, kill <-chan struct{}, _, stderr io.Writer, _ []string) int {
		select {
		case <-die:
			fmt.Fprint(stderr, "segfault")
			return 139
		case <-term:
			return 0
		case <-kill:
			return 137
		}
	})

	notifier := &recordingNotifier{}
	svc.SetNotifier(notifier)

	if _, err := svc.Start("app.py"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	close(die)
	<-exec.Started()[0].Done()

	// First status call reports the death once.
	state := svc.Status()
	if state == nil || state.Running {
		t.Fatalf("expected terminal state, got %+v", state)
	}

	// Afterwards the supervisor is idle.
	if svc.Status() != nil {
		t.Fatal("dead process reported twice")
	}

	events := notifier.Events()
	if len(events) != 2 || events[1] != PreviewEventDied {
		t.Fatalf("unexpected events: %v", events)
	}
}
