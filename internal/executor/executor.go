// Package executor provides an abstraction for starting and supervising
// preview processes.
package executor

import (
	"io"
	"os/exec"
	"sync"
	"syscall"
)

// Process represents a started process.
type Process interface {
	// Pid returns the OS process id, or 0 when not applicable.
	Pid() int
	// Signal sends sig to the process.
	Signal(sig syscall.Signal) error
	// Kill sends SIGKILL to the process.
	Kill() error
	// Done is closed once the process has exited.
	Done() <-chan struct{}
	// ExitCode returns the exit code. Only meaningful after Done is closed.
	ExitCode() int
}

// Executor starts processes.
type Executor interface {
	// Start starts a command with stdout/stderr attached to the given writers.
	Start(cmd []string, stdout, stderr io.Writer) (Process, error)
}

// ExecExecutor is the default Executor backed by os/exec.
type ExecExecutor struct{}

// Default returns the default ExecExecutor.
func Default() Executor {
	return &ExecExecutor{}
}

type execProcess struct {
	cmd      *exec.Cmd
	done     chan struct{}
	mu       sync.Mutex
	exitCode int
}

func (p *execProcess) Pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *execProcess) Signal(sig syscall.Signal) error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Signal(sig)
}

func (p *execProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

func (p *execProcess) Done() <-chan struct{} {
	return p.done
}

func (p *execProcess) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

// Start implements Executor.Start using os/exec. A goroutine reaps the
// process so Done closes as soon as it exits.
func (e *ExecExecutor) Start(cmdArgs []string, stdout, stderr io.Writer) (Process, error) {
	cmd := exec.Command(cmdArgs[0], cmdArgs[1:]...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	proc := &execProcess{
		cmd:  cmd,
		done: make(chan struct{}),
	}

	go func() {
		err := cmd.Wait()
		code := 0
		if err != nil {
			if exitErr, ok := err.(*exec.ExitError); ok {
				code = exitErr.ExitCode()
			} else {
				code = 1
			}
		}
		proc.mu.Lock()
		proc.exitCode = code
		proc.mu.Unlock()
		close(proc.done)
	}()

	return proc, nil
}
