package supervisor

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/harshul/devmux/internal/ui"
)

// State tracks the shutdown state machine. Transitions are one-way:
// Running -> ShuttingDown -> Stopped.
type State int

const (
	Running State = iota
	ShuttingDown
	Stopped
)

// stopGrace is how long children get after a termination signal before they
// are killed outright.
const stopGrace = 5 * time.Second

// Child is one supervised process.
type Child struct {
	cmd      *exec.Cmd
	Label    string
	stopping bool
	waited   chan struct{}
}

// Pid returns the child's process id, or 0 before it started.
func (c *Child) Pid() int {
	if c.cmd.Process == nil {
		return 0
	}
	return c.cmd.Process.Pid
}

// Supervisor owns every supervised child and the shutdown sequence. All
// mutable state (the children list and the state flag) lives behind one
// mutex on this single instance; callbacks never touch package state.
type Supervisor struct {
	mu       sync.Mutex
	children []*Child
	state    State
	closers  []io.Closer
	exit     func(int)
	done     chan struct{}

	// OnStateChange, when set, is told about child lifecycle transitions.
	// failed is true only for an abnormal exit the supervisor did not ask
	// for. The dashboard hangs off this.
	OnStateChange func(label string, running, failed bool)
}

// New returns a supervisor in the Running state. exit is what the shutdown
// sequence calls last; pass nil for os.Exit.
func New(exit func(int)) *Supervisor {
	if exit == nil {
		exit = os.Exit
	}
	return &Supervisor{
		exit: exit,
		done: make(chan struct{}),
	}
}

// Start spawns a child with its output streams connected to the given
// writers (nil means the parent's own) and begins watching it. Developer
// output is never captured or buffered by the supervisor itself.
func (s *Supervisor) Start(exe string, args []string, dir, label string, stdout, stderr io.Writer) (*Child, error) {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	cmd := exec.Command(exe, args...)
	cmd.Dir = dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	s.mu.Lock()
	if s.state != Running {
		s.mu.Unlock()
		return nil, fmt.Errorf("supervisor is shutting down; refusing to start %s", label)
	}
	if err := cmd.Start(); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to start %s: %w", label, err)
	}
	child := &Child{cmd: cmd, Label: label, waited: make(chan struct{})}
	s.children = append(s.children, child)
	s.mu.Unlock()

	if s.OnStateChange != nil {
		s.OnStateChange(label, true, false)
	}
	go s.watch(child)
	return child, nil
}

// watch handles a single child's exit event. Exits caused by our own
// termination signal are no-ops: the shutdown that sent them is already in
// flight and must not recurse.
func (s *Supervisor) watch(child *Child) {
	err := child.cmd.Wait()
	close(child.waited)

	s.mu.Lock()
	skip := child.stopping || s.state != Running
	s.mu.Unlock()

	code := exitStatus(child.cmd, err)
	if s.OnStateChange != nil {
		s.OnStateChange(child.Label, false, !skip && code != 0)
	}
	if skip {
		return
	}
	if code == 0 {
		ui.Info(fmt.Sprintf("%s exited cleanly, stopping everything", child.Label))
	} else {
		ui.Error(fmt.Sprintf("%s exited with code %d, stopping everything", child.Label, code))
	}
	s.Shutdown(code)
}

// exitStatus maps a finished command to the orchestrator's exit code. A
// child killed by a signal we did not send counts as abnormal.
func exitStatus(cmd *exec.Cmd, err error) int {
	ps := cmd.ProcessState
	if ps == nil {
		if err != nil {
			return 1
		}
		return 0
	}
	if code := ps.ExitCode(); code >= 0 {
		return code
	}
	return 1
}

// RegisterCloser adds a resource (the proxy listener) to be closed during
// shutdown, before the process exits.
func (s *Supervisor) RegisterCloser(c io.Closer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closers = append(s.closers, c)
}

// HandleSignals installs interrupt/terminate handlers that run the same
// cascading shutdown with exit code 0.
func (s *Supervisor) HandleSignals() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ch
		ui.Info("received interrupt, shutting down")
		s.Shutdown(0)
	}()
}

// Shutdown runs the cascading shutdown exactly once: signal every tracked
// child, close registered closers, wait briefly for children, then exit
// with the given code. Later calls (from child exit events racing the
// teardown, or a second signal) are no-ops.
func (s *Supervisor) Shutdown(code int) {
	s.mu.Lock()
	if s.state != Running {
		s.mu.Unlock()
		return
	}
	s.state = ShuttingDown
	children := make([]*Child, len(s.children))
	copy(children, s.children)
	closers := make([]io.Closer, len(s.closers))
	copy(closers, s.closers)

	// Each outstanding child gets its termination signal exactly once.
	for _, child := range children {
		child.stopping = true
		terminate(child.cmd)
	}
	s.mu.Unlock()

	for _, c := range closers {
		if err := c.Close(); err != nil {
			ui.Warn(fmt.Sprintf("error closing listener: %v", err))
		}
	}

	// One absolute deadline shared by all children, re-armed per child so
	// a second stubborn child is still killed after the first one eats its
	// timer. Past the deadline time.Until goes negative and the kill fires
	// immediately.
	deadline := time.Now().Add(stopGrace)
	for _, child := range children {
		select {
		case <-child.waited:
		case <-time.After(time.Until(deadline)):
			ui.Warn(fmt.Sprintf("%s did not stop in time, killing", child.Label))
			child.cmd.Process.Kill()
			<-child.waited
		}
	}

	s.mu.Lock()
	s.state = Stopped
	s.mu.Unlock()

	close(s.done)
	s.exit(code)
}

// Done is closed once the shutdown sequence has finished, just before exit
// is called.
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// terminate sends the platform's stop request to a process. Windows has no
// SIGTERM delivery, so children are killed there.
func terminate(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	if runtime.GOOS == "windows" {
		cmd.Process.Kill()
		return
	}
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		cmd.Process.Kill()
	}
}
