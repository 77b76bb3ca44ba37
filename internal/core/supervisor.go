package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/giantswarm/pglitenv/internal/command"
	"github.com/giantswarm/pglitenv/internal/fileutil"
	"github.com/giantswarm/pglitenv/internal/outputbuf"
	"github.com/giantswarm/pglitenv/internal/process"
	"github.com/giantswarm/pglitenv/internal/provision"
	"github.com/giantswarm/pglitenv/internal/readiness"
)

// exitDrainTimeout is how long an attempt whose child exited keeps waiting
// for the reader to capture the child's last lines.
const exitDrainTimeout = 250 * time.Millisecond

// handle is one spawned child together with its reader goroutine and its
// output buffer. Whoever swaps a handle out of Supervisor.handle owns its
// teardown.
type handle struct {
	proc       *process.Process
	readerDone chan struct{}
	output     *outputbuf.Buffer
}

// Supervisor runs one ephemeral engine.
//
// Synchronization strategy:
//   - state is an atomic State; every transition is a CompareAndSwap except
//     the Swap to StateClosed, so Closed is never left.
//   - handle is swapped atomically so a failing attempt and a concurrent
//     Close never both tear down the same child.
//   - startMu serializes Start; Close takes it only after it has cancelled
//     the in-flight start and killed its child.
//   - mu guards the remaining mutable fields.
type Supervisor struct {
	cfg  Config
	id   string
	log  *slog.Logger
	prov *provision.Provisioner

	state  atomic.Int32
	handle atomic.Pointer[handle]

	startMu sync.Mutex

	mu          sync.Mutex
	cancelStart context.CancelFunc
	workDir     string
	port        int
	portHeld    bool
	bundle      *provision.Bundle
	lastOutput  *outputbuf.Buffer
	lastErr     error
}

// New creates a Supervisor in StateNotStarted. Nothing is touched on disk or
// network until Start. New panics if cfg fails Validate, since invalid
// configuration is a programmer error.
func New(cfg Config) *Supervisor {
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("pglitenv: invalid supervisor config: %v", err))
	}

	id := ulid.Make().String()
	log := cfg.Logger
	if log == nil {
		log = Logger()
	}
	log = log.With("id", id)

	return &Supervisor{
		cfg: cfg,
		id:  id,
		log: log,
		prov: provision.New(provision.Config{
			Bundle:         cfg.Bundle,
			ArchiveName:    cfg.ArchiveName,
			URLTemplate:    cfg.DownloadURLTemplate,
			ExpectedDigest: cfg.ExpectedDigest,
			CacheDir:       cfg.CacheDir,
			Logger:         log,
		}),
	}
}

// ID returns the supervisor's unique identifier, also the name of its
// working directory.
func (s *Supervisor) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

// Err returns the error of the last failed Start, if any.
func (s *Supervisor) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// WorkDir returns the working directory, or "" before Start created it.
func (s *Supervisor) WorkDir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workDir
}

// Runtime returns the provisioned runtime, or nil when the engine runs on a
// PATH or override command.
func (s *Supervisor) Runtime() *provision.Bundle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bundle
}

// Output returns the captured output of the running child, or of the last
// attempt when no child is running.
func (s *Supervisor) Output() []string {
	if h := s.handle.Load(); h != nil {
		return h.output.Lines()
	}
	s.mu.Lock()
	buf := s.lastOutput
	s.mu.Unlock()
	if buf == nil {
		return nil
	}
	return buf.Lines()
}

// Endpoint returns the connection endpoint of the ready engine.
func (s *Supervisor) Endpoint() (Endpoint, error) {
	if st := s.State(); st != StateReady {
		return Endpoint{}, fmt.Errorf("%w: state %s", ErrNotReady, st)
	}
	s.mu.Lock()
	port := s.port
	s.mu.Unlock()
	return Endpoint{
		Host:        s.cfg.Host,
		Port:        port,
		Database:    s.cfg.Database,
		Params:      s.cfg.Params,
		Username:    s.cfg.Username,
		Credentials: credentials(s.cfg.Username, s.cfg.Password),
	}, nil
}

// Start launches the engine and blocks until a candidate is ready, every
// candidate failed, ctx is done, or Close is called.
//
// Start on a ready supervisor returns nil. Start after a failure returns the
// original error; a supervisor is not restarted. Start after Close returns
// ErrClosed.
func (s *Supervisor) Start(ctx context.Context) error {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	switch s.State() {
	case StateReady:
		return nil
	case StateFailed:
		return s.Err()
	case StateClosed:
		return ErrClosed
	case StateNotStarted, StateStarting:
	}
	if !s.state.CompareAndSwap(int32(StateNotStarted), int32(StateStarting)) {
		return ErrClosed
	}

	startTime := time.Now()
	s.log.Debug("starting engine")

	err := s.start(ctx)
	if err == nil {
		if s.state.CompareAndSwap(int32(StateStarting), int32(StateReady)) {
			s.mu.Lock()
			port := s.port
			s.mu.Unlock()
			s.log.Info("engine ready", "port", port, "elapsed", time.Since(startTime))
			return nil
		}
		err = ErrClosed
	}

	if s.State() == StateClosed && !errors.Is(err, ErrClosed) {
		err = fmt.Errorf("%w: start interrupted: %w", ErrClosed, err)
	}
	s.state.CompareAndSwap(int32(StateStarting), int32(StateFailed))
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	s.log.Debug("engine start failed", "error", err, "elapsed", time.Since(startTime))
	return err
}

func (s *Supervisor) start(parent context.Context) error {
	// Reject a malformed override before any file or process is touched.
	if _, err := command.ParseOverrides(s.cfg.CommandOverride); err != nil {
		return fmt.Errorf("%w: command override: %w", ErrConfiguration, err)
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	s.mu.Lock()
	s.cancelStart = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.cancelStart = nil
		s.mu.Unlock()
	}()

	port, err := s.reservePort()
	if err != nil {
		return err
	}

	workDir, err := s.prepareWorkDir()
	if err != nil {
		return err
	}

	script := s.cfg.EntryScript
	if !filepath.IsAbs(script) {
		script = filepath.Join(workDir, script)
	}
	if info, statErr := os.Stat(script); statErr != nil || !info.Mode().IsRegular() {
		return fmt.Errorf("%w: entry script %s not found", ErrConfiguration, script)
	}

	b, err := s.prov.Resolve(ctx, workDir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProvisioning, err)
	}
	resolved := ""
	if b != nil {
		resolved = b.Path
		s.mu.Lock()
		s.bundle = b
		s.mu.Unlock()
		s.log.Debug("runtime resolved", "path", b.Path, "origin", b.Origin)
	}

	candidates, err := command.Candidates(resolved, s.cfg.CommandOverride, s.cfg.pathNames(runtime.GOOS))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if len(candidates) == 0 {
		return fmt.Errorf("%w: no command candidates", ErrConfiguration)
	}

	env, err := childEnv(runtime.GOOS, os.Environ(), s.cfg, port)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	var attempts []Attempt
	for _, c := range candidates {
		attempt, err := s.attempt(ctx, c, script, workDir, port, env)
		if err == nil {
			if len(attempts) > 0 {
				s.log.Info("engine ready after fallback", "command", c.String(), "failed_candidates", len(attempts))
			}
			return nil
		}
		if ctx.Err() != nil {
			if s.State() == StateClosed {
				return ErrClosed
			}
			return fmt.Errorf("start aborted: %w", context.Cause(ctx))
		}
		s.log.Debug("command candidate failed", "command", c.String(), "error", attempt.Err)
		attempts = append(attempts, attempt)
	}
	return &StartError{Attempts: attempts}
}

// reservePort records the configured port, or allocates one, in the shared
// registry.
func (s *Supervisor) reservePort() (int, error) {
	port := s.cfg.Port
	if port != 0 {
		if err := s.cfg.Ports.Reserve(port); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
	} else {
		var err error
		if port, err = s.cfg.Ports.Allocate(s.cfg.Host); err != nil {
			return 0, fmt.Errorf("%w: allocate port: %w", ErrSpawn, err)
		}
	}
	s.mu.Lock()
	s.port = port
	s.portHeld = true
	s.mu.Unlock()
	return port, nil
}

// prepareWorkDir creates BaseDir/<id> and copies the bundle's helper files
// into it, leaving out the runtime archive.
func (s *Supervisor) prepareWorkDir() (string, error) {
	workDir := filepath.Join(s.cfg.BaseDir, s.id)
	if err := fileutil.EnsureDir(workDir); err != nil {
		return "", fmt.Errorf("%w: %w", ErrSpawn, err)
	}
	s.mu.Lock()
	s.workDir = workDir
	s.mu.Unlock()

	if s.cfg.Bundle != nil {
		archive := s.prov.ArchiveName()
		skip := func(name string) bool { return name == archive }
		if err := fileutil.CopyFS(s.cfg.Bundle, workDir, skip); err != nil {
			return "", fmt.Errorf("%w: copy bundle: %w", ErrConfiguration, err)
		}
	}
	return workDir, nil
}

// attempt runs one candidate. On success the child's handle stays installed
// and the returned error is nil. On failure the child has been killed and
// the Attempt describes why.
func (s *Supervisor) attempt(ctx context.Context, c command.Candidate, script, workDir string, port int, env []string) (Attempt, error) {
	rec := Attempt{Command: c.String()}
	buf := outputbuf.New(s.cfg.OutputLines)
	s.mu.Lock()
	s.lastOutput = buf
	s.mu.Unlock()

	proc, err := process.Start(process.Spec{
		Argv: c.Argv(script),
		Dir:  workDir,
		Env:  env,
		Name: c.String(),
	}, s.log)
	if err != nil {
		rec.Err = fmt.Errorf("%w: %w", ErrSpawn, err)
		return rec, rec.Err
	}

	log := s.log.With("command", c.String(), "pid", proc.Pid())
	gate := readiness.NewGate()
	h := &handle{proc: proc, readerDone: make(chan struct{}), output: buf}
	go func() {
		defer close(h.readerDone)
		readiness.Watch(proc.Output(), gate, buf, log)
	}()

	s.handle.Store(h)
	if s.State() == StateClosed {
		s.discard(h)
		rec.Err = ErrClosed
		return rec, rec.Err
	}

	rec.Err = s.awaitReady(ctx, h, gate, port, log)
	if rec.Err == nil {
		return rec, nil
	}
	s.discard(h)
	rec.Output = buf.Lines()
	return rec, rec.Err
}

// awaitReady blocks until the gate resolves, the child exits, the startup
// timeout elapses or ctx is done, and reports whether the child is usable.
func (s *Supervisor) awaitReady(ctx context.Context, h *handle, gate *readiness.Gate, port int, log *slog.Logger) error {
	timer := time.NewTimer(s.cfg.StartupTimeout)
	defer timer.Stop()

	select {
	case <-gate.Done():
	case <-h.proc.Exited():
		// Give the reader a moment to capture the last lines; a READY the
		// child printed just before exiting does not make it usable.
		select {
		case <-gate.Done():
		case <-time.After(exitDrainTimeout):
		}
		return s.exitedErr(h.proc)
	case <-timer.C:
		return fmt.Errorf("%w: no readiness signal within %s", ErrReadinessTimeout, s.cfg.StartupTimeout)
	case <-ctx.Done():
		return context.Cause(ctx)
	}

	res, _ := gate.Result()
	switch res.Outcome {
	case readiness.OutcomeReady:
		if !h.proc.Alive() {
			return s.exitedErr(h.proc)
		}
		log.Debug("readiness signal received", "line", res.Line)
		if s.cfg.EndpointProbe {
			return s.probe(ctx, h, port, log)
		}
		return nil
	case readiness.OutcomeFailed:
		return fmt.Errorf("%w: %s", ErrEngineError, describeEvent(res.Event))
	default:
		// End of output normally means the child is exiting; prefer its
		// exit status over the read error when it arrives promptly.
		select {
		case <-h.proc.Exited():
			return s.exitedErr(h.proc)
		case <-time.After(exitDrainTimeout):
		}
		return fmt.Errorf("%w: %w", ErrOutputRead, res.Err)
	}
}

// probe waits for the engine port to accept TCP connections within the
// startup timeout.
func (s *Supervisor) probe(ctx context.Context, h *handle, port int, log *slog.Logger) error {
	addr := net.JoinHostPort(s.cfg.probeHost(), strconv.Itoa(port))
	err := process.WaitReady(ctx, process.ProbeConfig{
		Addr:     addr,
		Interval: s.cfg.ProbeInterval,
		Timeout:  s.cfg.StartupTimeout,
		Logger:   log,
		Exited:   h.proc.Exited(),
	}, process.TCPCheck(addr, log))
	if err == nil {
		return nil
	}
	if errors.Is(err, process.ErrProcessExited) {
		return s.exitedErr(h.proc)
	}
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}
	return fmt.Errorf("%w: endpoint probe: %w", ErrReadinessTimeout, err)
}

// exitedErr describes a child that exited before it was accepted.
func (s *Supervisor) exitedErr(p *process.Process) error {
	code, _ := p.ExitCode()
	if code < 0 {
		return fmt.Errorf("%w: exited before readiness: %v", ErrSpawn, p.ExitErr())
	}
	return fmt.Errorf("%w: exited before readiness with code %d%s", ErrSpawn, code, exitHint(runtime.GOOS, code))
}

func describeEvent(ev readiness.Event) string {
	switch {
	case ev.Reason != "" && ev.Message != "":
		return ev.Reason + ": " + ev.Message
	case ev.Reason != "":
		return ev.Reason
	case ev.Message != "":
		return ev.Message
	default:
		return "ERROR event without details"
	}
}

// discard tears down h if it is still the installed handle. Failed attempts
// are killed outright.
func (s *Supervisor) discard(h *handle) {
	if s.handle.CompareAndSwap(h, nil) {
		s.teardown(h, 0)
	}
}

// teardown stops the child, with a graceful termination first when grace is
// positive, and joins the reader. The reader is waited for at most
// ReaderWaitTimeout; after that its pipe is closed to unblock it, which only
// matters when a grandchild inherited the write end.
func (s *Supervisor) teardown(h *handle, grace time.Duration) error {
	var err error
	if grace > 0 {
		err = h.proc.Stop(grace)
	} else {
		err = h.proc.Kill()
	}

	t := time.NewTimer(s.cfg.ReaderWaitTimeout)
	defer t.Stop()
	select {
	case <-h.readerDone:
	case <-t.C:
		s.log.Debug("output reader did not finish, closing pipe", "pid", h.proc.Pid())
	}
	h.proc.CloseOutput()
	return err
}

// Close stops the engine, deletes the working directory and releases the
// port. It may be called from any state and concurrently with Start; only
// the first call does any work. The returned error reports a child that
// could not be stopped. Failures to delete files are logged, not returned.
func (s *Supervisor) Close() error {
	prev := State(s.state.Swap(int32(StateClosed)))
	if prev == StateClosed {
		return nil
	}
	s.log.Debug("closing supervisor", "previous_state", prev)

	s.mu.Lock()
	cancel := s.cancelStart
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	var errs []error
	if h := s.handle.Swap(nil); h != nil {
		errs = append(errs, s.teardown(h, s.cfg.StopTimeout))
	}

	// Wait for an interrupted Start to unwind before touching its files.
	s.startMu.Lock()
	defer s.startMu.Unlock()
	if h := s.handle.Swap(nil); h != nil {
		errs = append(errs, s.teardown(h, s.cfg.StopTimeout))
	}

	s.mu.Lock()
	workDir, port, portHeld := s.workDir, s.port, s.portHeld
	s.portHeld = false
	s.mu.Unlock()

	if workDir != "" {
		if failed := fileutil.RemoveTree(s.log, workDir); failed > 0 {
			s.log.Warn("working directory not fully deleted", "path", workDir, "failed_entries", failed)
		}
	}
	if portHeld {
		s.cfg.Ports.Release(port)
	}

	err := errors.Join(errs...)
	if err != nil {
		s.log.Warn("engine stop failed; process may be orphaned", "error", err)
	}
	return err
}
