// internal/services/preview_service.go
package services

import (
	"bytes"
	"fmt"
	"net"
	"strconv"
	"sync"
	"syscall"
	"time"

	apperrors "github.com/forgelab/scriptforge/internal/errors"
	"github.com/forgelab/scriptforge/internal/executor"
	"github.com/forgelab/scriptforge/internal/models"
	"github.com/forgelab/scriptforge/internal/utils"
)

// Preview lifecycle events pushed to websocket subscribers.
const (
	PreviewEventStarted = "preview_started"
	PreviewEventStopped = "preview_stopped"
	PreviewEventDied    = "preview_died"
)

// PreviewNotifier receives preview lifecycle events.
type PreviewNotifier interface {
	NotifyPreview(event string, state *models.PreviewState)
}

// PreviewService supervises at most one preview process at a time. A preview
// is a separately spawned HTTP server rendering one workspace script on an
// OS-assigned local port. There is no queueing and no retry: start replaces,
// stop tears down, a dead process is reaped on the next status check.
type PreviewService struct {
	mu sync.Mutex

	exec      executor.Executor
	workspace *WorkspaceService
	runner    string
	logger    *utils.Logger

	// Fixed wait budgets, shrunk by tests.
	StartupDelay time.Duration
	TermTimeout  time.Duration
	KillTimeout  time.Duration

	notifier PreviewNotifier

	current *trackedPreview
}

// trackedPreview is the single supervised process and its metadata.
type trackedPreview struct {
	proc      executor.Process
	state     models.PreviewState
	stderr    *tailBuffer
	stoppedCh chan struct{}
}

// NewPreviewService creates the supervisor. runner is the executable used to
// serve a script (e.g. "streamlit").
func NewPreviewService(exec executor.Executor, workspace *WorkspaceService, runner string) *PreviewService {
	return &PreviewService{
		exec:         exec,
		workspace:    workspace,
		runner:       runner,
		logger:       utils.GetLogger(),
		StartupDelay: 2500 * time.Millisecond,
		TermTimeout:  3 * time.Second,
		KillTimeout:  1 * time.Second,
	}
}

// SetNotifier registers the lifecycle event sink.
func (s *PreviewService) SetNotifier(notifier PreviewNotifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = notifier
}

// Start launches a preview for the given workspace script. Any preview
// already running is stopped first. The spawned process gets a fixed startup
// window; if it exits within that window the start fails and the process's
// stderr tail is reported.
func (s *PreviewService) Start(filename string) (*models.PreviewState, error) {
	path, err := s.workspace.ScriptPath(filename)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		s.logger.Infof("preview: stopping existing preview of %s first", s.current.state.File)
		s.stopLocked(PreviewEventStopped)
	}

	port, err := findFreePort()
	if err != nil {
		return nil, apperrors.NewProcessingError("failed to allocate preview port", err)
	}

	command := s.buildCommand(path, port)

	stderr := newTailBuffer(4096)
	proc, err := s.exec.Start(command, nil, stderr)
	if err != nil {
		return nil, apperrors.NewProcessingError(
			fmt.Sprintf("failed to start preview for %s", filename), err)
	}

	// Give the process a moment to come up or fail.
	select {
	case <-proc.Done():
		return nil, apperrors.NewProcessingError(
			fmt.Sprintf("preview for %s exited during startup (code %d): %s",
				filename, proc.ExitCode(), stderr.String()), nil)
	case <-time.After(s.StartupDelay):
	}

	state := models.PreviewState{
		File:      filename,
		Port:      port,
		URL:       fmt.Sprintf("http://localhost:%d", port),
		PID:       proc.Pid(),
		Running:   true,
		StartedAt: time.Now(),
	}

	s.current = &trackedPreview{
		proc:      proc,
		state:     state,
		stderr:    stderr,
		stoppedCh: make(chan struct{}),
	}

	s.logger.Infof("preview: started %s on port %d (pid %d)", filename, port, state.PID)
	s.notify(PreviewEventStarted, &state)

	stateCopy := state
	return &stateCopy, nil
}

// Stop terminates the running preview: SIGTERM, a grace period, then SIGKILL.
// Stopping an idle supervisor is a no-op. The tracked state is cleared even
// when signalling fails.
func (s *PreviewService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil
	}

	s.stopLocked(PreviewEventStopped)
	return nil
}

// StopIfFile stops the preview only when it is serving the named file. Wired
// as a workspace delete hook.
func (s *PreviewService) StopIfFile(filename string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil || s.current.state.File != filename {
		return
	}

	s.logger.Infof("preview: %s was deleted, stopping its preview", filename)
	s.stopLocked(PreviewEventStopped)
}

// stopLocked tears the current process down. Caller holds s.mu.
func (s *PreviewService) stopLocked(event string) {
	tracked := s.current
	s.current = nil

	state := tracked.state
	state.Running = false

	select {
	case <-tracked.proc.Done():
		// Already gone.
		s.logger.Infof("preview: process %d had already exited", state.PID)
		s.notify(event, &state)
		return
	default:
	}

	if err := tracked.proc.Signal(syscall.SIGTERM); err != nil {
		s.logger.Warnf("preview: SIGTERM to pid %d failed: %v", state.PID, err)
	}

	select {
	case <-tracked.proc.Done():
		s.logger.Infof("preview: process %d stopped", state.PID)
	case <-time.After(s.TermTimeout):
		s.logger.Warnf("preview: process %d did not stop in %s, killing", state.PID, s.TermTimeout)
		if err := tracked.proc.Kill(); err != nil {
			s.logger.Warnf("preview: SIGKILL to pid %d failed: %v", state.PID, err)
		}
		select {
		case <-tracked.proc.Done():
		case <-time.After(s.KillTimeout):
			s.logger.Errorf("preview: process %d survived SIGKILL wait", state.PID)
		}
	}

	s.notify(event, &state)
}

// Status returns the current preview state, or nil when idle. A process that
// exited on its own is reaped here: its terminal state (with the stderr tail)
// is returned once and the supervisor goes back to idle.
func (s *PreviewService) Status() *models.PreviewState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil
	}

	select {
	case <-s.current.proc.Done():
		tracked := s.current
		s.current = nil

		state := tracked.state
		state.Running = false

		s.logger.Warnf("preview: %s exited unexpectedly (code %d): %s",
			state.File, tracked.proc.ExitCode(), tracked.stderr.String())
		s.notify(PreviewEventDied, &state)

		return &state
	default:
	}

	stateCopy := s.current.state
	return &stateCopy
}

// Running reports whether a preview is currently tracked and alive.
func (s *PreviewService) Running() bool {
	state := s.Status()
	return state != nil && state.Running
}

func (s *PreviewService) notify(event string, state *models.PreviewState) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyPreview(event, state)
}

// buildCommand assembles the runner invocation for a script path and port.
func (s *PreviewService) buildCommand(path string, port int) []string {
	return []string{
		s.runner,
		"run",
		path,
		"--server.port", strconv.Itoa(port),
		"--server.headless", "true",
		"--server.runOnSave", "false",
		"--server.fileWatcherType", "none",
	}
}

// findFreePort asks the OS for an unused TCP port.
func findFreePort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer listener.Close()

	return listener.Addr().(*net.TCPAddr).Port, nil
}

// tailBuffer keeps the last max bytes written to it. Used to report the end
// of a failed preview's stderr.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf bytes.Buffer
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf.Write(p)
	if b.buf.Len() > b.max {
		data := b.buf.Bytes()
		trimmed := make([]byte, b.max)
		copy(trimmed, data[len(data)-b.max:])
		b.buf.Reset()
		b.buf.Write(trimmed)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
