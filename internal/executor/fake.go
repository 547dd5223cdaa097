// internal/executor/fake.go
package executor

import (
	"fmt"
	"io"
	"sync"
	"syscall"
)

// FakeCommand simulates a command. term is signaled on SIGTERM and kill on
// SIGKILL; a handler that ignores term models a process that will not shut
// down gracefully. The returned value becomes the exit code.
type FakeCommand func(term, kill <-chan struct{}, stdout, stderr io.Writer, args []string) int

// FakeExecutor is a test Executor that runs registered fake commands.
type FakeExecutor struct {
	mu       sync.RWMutex
	commands map[string]FakeCommand
	started  []*FakeProcess
}

// NewFakeExecutor creates an empty FakeExecutor.
func NewFakeExecutor() *FakeExecutor {
	return &FakeExecutor{
		commands: make(map[string]FakeCommand),
	}
}

// RegisterCommand registers a fake command under the executable name, the
// first element of the command slice.
func (e *FakeExecutor) RegisterCommand(name string, handler FakeCommand) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commands[name] = handler
}

// Started returns every process this executor has started, in order.
func (e *FakeExecutor) Started() []*FakeProcess {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]*FakeProcess(nil), e.started...)
}

// FakeProcess implements Process for FakeExecutor.
type FakeProcess struct {
	Args []string

	term     chan struct{}
	kill     chan struct{}
	done     chan struct{}
	termOnce sync.Once
	killOnce sync.Once

	mu       sync.Mutex
	exitCode int
	signals  []syscall.Signal
}

func (p *FakeProcess) Pid() int { return 4242 }

func (p *FakeProcess) Signal(sig syscall.Signal) error {
	p.mu.Lock()
	p.signals = append(p.signals, sig)
	p.mu.Unlock()

	switch sig {
	case syscall.SIGTERM:
		p.termOnce.Do(func() { close(p.term) })
	case syscall.SIGKILL:
		p.killOnce.Do(func() { close(p.kill) })
	}
	return nil
}

func (p *FakeProcess) Kill() error {
	return p.Signal(syscall.SIGKILL)
}

func (p *FakeProcess) Done() <-chan struct{} {
	return p.done
}

func (p *FakeProcess) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

// Signals returns the signals delivered to the process so far.
func (p *FakeProcess) Signals() []syscall.Signal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]syscall.Signal(nil), p.signals...)
}

// Start implements Executor.Start for FakeExecutor.
func (e *FakeExecutor) Start(cmdArgs []string, stdout, stderr io.Writer) (Process, error) {
	if len(cmdArgs) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	e.mu.RLock()
	handler, ok := e.commands[cmdArgs[0]]
	e.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("executable %q not found", cmdArgs[0])
	}

	proc := &FakeProcess{
		Args: cmdArgs,
		term: make(chan struct{}),
		kill: make(chan struct{}),
		done: make(chan struct{}),
	}

	e.mu.Lock()
	e.started = append(e.started, proc)
	e.mu.Unlock()

	go func() {
		exitCode := handler(proc.term, proc.kill, stdout, stderr, cmdArgs)
		proc.mu.Lock()
		proc.exitCode = exitCode
		proc.mu.Unlock()
		close(proc.done)
	}()

	return proc, nil
}
