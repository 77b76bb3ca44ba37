package process

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/giantswarm/pglitenv/internal/sentinel"
)

// ErrEmptyArgv is returned when Start is called without a command.
const ErrEmptyArgv = sentinel.Error("argv must not be empty")

// ErrEmptyDir is returned when Start is called without a working directory.
const ErrEmptyDir = sentinel.Error("working directory must not be empty")

// DefaultStopTimeout is the grace period Stop callers use when none is
// configured.
const DefaultStopTimeout = 5 * time.Second

// killDrainTimeout is the hard upper bound for waiting on the exit to be
// reaped after a kill has been sent. SIGKILL cannot be caught, so this only
// guards against cmd.Wait never returning.
const killDrainTimeout = 10 * time.Second

// Spec describes the child to launch.
type Spec struct {
	Argv []string // executable followed by its arguments
	Dir  string   // working directory
	Env  []string // complete environment, KEY=VALUE
	Name string   // label for logs and errors; defaults to Argv[0]
}

// Process is one running child. Output must be drained by the caller, since
// the child blocks once the pipe buffer is full.
type Process struct {
	cmd    *exec.Cmd
	name   string
	log    *slog.Logger
	output *os.File

	exited  chan struct{}
	waitErr error // written before exited is closed

	closeOutput sync.Once
	stopMu      sync.Mutex
}

// Start launches spec. The child's stdout and stderr share a single pipe
// so that their lines stay in emission order.
func Start(spec Spec, logger *slog.Logger) (*Process, error) {
	if len(spec.Argv) == 0 || spec.Argv[0] == "" {
		return nil, ErrEmptyArgv
	}
	if spec.Dir == "" {
		return nil, ErrEmptyDir
	}
	if logger == nil {
		logger = slog.Default()
	}
	name := spec.Name
	if name == "" {
		name = spec.Argv[0]
	}

	cmd := exec.Command(spec.Argv[0], spec.Argv[1:]...) //nolint:gosec // G204: argv comes from configured candidates
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	configureSysProcAttr(cmd)

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create output pipe for %s: %w", name, err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		_ = pr.Close()
		_ = pw.Close()
		return nil, fmt.Errorf("start %s: %w", name, err)
	}
	// The child holds its own copy of the write end; closing ours lets the
	// reader see EOF once the child exits.
	_ = pw.Close()

	p := &Process{
		cmd:    cmd,
		name:   name,
		log:    logger,
		output: pr,
		exited: make(chan struct{}),
	}

	// cmd.Wait must be called exactly once per process. The exited channel
	// is the broadcast every other observer selects on.
	go func() {
		p.waitErr = cmd.Wait()
		close(p.exited)
	}()

	return p, nil
}

// Name returns the label given at Start.
func (p *Process) Name() string {
	return p.name
}

// Pid returns the process ID of the child.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Output returns the read end of the combined stdout/stderr pipe.
func (p *Process) Output() io.Reader {
	return p.output
}

// CloseOutput closes the read end of the output pipe, unblocking a pending
// read. It is safe to call more than once.
func (p *Process) CloseOutput() {
	p.closeOutput.Do(func() {
		_ = p.output.Close()
	})
}

// Exited returns a channel that is closed when the process has exited and
// been reaped. It is safe to select on from any number of goroutines.
func (p *Process) Exited() <-chan struct{} {
	return p.exited
}

// Alive reports whether the process has not exited yet.
func (p *Process) Alive() bool {
	select {
	case <-p.exited:
		return false
	default:
		return true
	}
}

// ExitErr returns the cmd.Wait result. It is nil until the process exited.
func (p *Process) ExitErr() error {
	select {
	case <-p.exited:
		return p.waitErr
	default:
		return nil
	}
}

// ExitCode returns the exit code and whether the process has exited. A
// process terminated by a signal reports -1.
func (p *Process) ExitCode() (int, bool) {
	select {
	case <-p.exited:
		return p.cmd.ProcessState.ExitCode(), true
	default:
		return 0, false
	}
}

// Stop terminates the process: a graceful termination request first, then a
// kill once grace has elapsed. It waits for the exit to be reaped, for at
// most grace plus killDrainTimeout. Exits caused by the termination signals
// are not errors. Stop on an exited process only reports how it exited.
func (p *Process) Stop(grace time.Duration) error {
	p.stopMu.Lock()
	defer p.stopMu.Unlock()

	if !p.Alive() {
		return nil
	}

	if err := terminate(p.cmd.Process); err != nil {
		// Already exited; collect the status with a bounded wait.
		if !drainExited(p.exited, killDrainTimeout) {
			return fmt.Errorf("%s: timed out draining process after signal failure", p.name)
		}
		return expectSignalExit(p.waitErr, p.name)
	}

	if grace <= 0 {
		grace = DefaultStopTimeout
	}
	killTimer := time.AfterFunc(grace, func() {
		// Kill after exit returns "process already finished"; harmless.
		_ = p.cmd.Process.Kill()
	})
	defer killTimer.Stop()

	if !drainExited(p.exited, grace+killDrainTimeout) {
		p.log.Warn("process did not exit after kill; it may be orphaned", "process", p.name, "pid", p.Pid())
		return fmt.Errorf("%s: timed out waiting for process to exit after kill", p.name)
	}
	return expectSignalExit(p.waitErr, p.name)
}

// Kill force-kills the process and waits a bounded time for it to be reaped.
func (p *Process) Kill() error {
	p.stopMu.Lock()
	defer p.stopMu.Unlock()

	if !p.Alive() {
		return nil
	}
	_ = p.cmd.Process.Kill()
	if !drainExited(p.exited, killDrainTimeout) {
		return fmt.Errorf("%s: timed out waiting for process to exit after kill", p.name)
	}
	return expectSignalExit(p.waitErr, p.name)
}

// drainExited waits for exited to close, for at most timeout. Under normal
// conditions cmd.Wait returns right after the process exits, so the timeout
// only guards against a Wait that never returns.
func drainExited(exited <-chan struct{}, timeout time.Duration) bool {
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-exited:
		return true
	case <-t.C:
		return false
	}
}

// expectSignalExit interprets a cmd.Wait error after a termination request.
// Exits caused by SIGTERM or SIGKILL are expected and reported as nil.
func expectSignalExit(err error, name string) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			sig := status.Signal()
			if sig == syscall.SIGTERM || sig == syscall.SIGKILL {
				return nil
			}
		}
	}
	return fmt.Errorf("%s: %w", name, err)
}
