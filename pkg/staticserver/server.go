package staticserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/simonw/unused-port/pkg/port"
)

// httpServerModule is the Python module run with -m. Its positional port
// argument and --directory flag are the invocation contract external tooling
// relies on.
const httpServerModule = "http.server"

// The lifecycle delays are fixed. They are variables only so tests in this
// package can shorten them.
var (
	// startupDelay is how long Start waits after spawning before checking
	// whether the child already died (bad directory, port taken, ...).
	startupDelay = 100 * time.Millisecond

	// stopTimeout is how long Stop waits for a graceful exit after SIGTERM
	// before killing the child.
	stopTimeout = 5 * time.Second

	// readyPollInterval is the gap between dial probes in WaitReady.
	readyPollInterval = 25 * time.Millisecond

	// waitDelay bounds how long Wait keeps copying output after the child
	// exits, in case a grandchild inherited the pipes.
	waitDelay = time.Second
)

// ErrNotRunning is returned by operations that need a live child process.
var ErrNotRunning = errors.New("server is not running")

// StaticServer is a handle on at most one static file server child process
// listening on a fixed loopback port.
//
// The zero value is not usable; create handles with New.
type StaticServer struct {
	// port is fixed for the lifetime of the handle.
	port int

	// dir is the directory passed to the most recent successful Start.
	dir string

	// interpreter is the configured Python interpreter. Empty means
	// FindInterpreter is consulted on every Start.
	interpreter string

	// env holds extra KEY=VALUE entries appended to the child environment.
	env []string

	logger *slog.Logger

	// child is the running process, nil while Stopped.
	child *child

	// lastOutput keeps the output of the most recent child after Stop so it
	// can still be inspected.
	lastOutput *outputBuffer
}

// child bundles one spawned process with the channel that reports its exit.
type child struct {
	cmd    *exec.Cmd
	output *outputBuffer

	// done is closed once cmd.Wait returns. err is only valid after that.
	done chan struct{}
	err  error
}

// Option configures a StaticServer.
type Option func(*StaticServer)

// WithInterpreter sets the Python interpreter used to run http.server. An
// empty value keeps automatic discovery (see FindInterpreter).
func WithInterpreter(path string) Option {
	return func(s *StaticServer) {
		s.interpreter = path
	}
}

// WithLogger sets the logger for lifecycle events. By default nothing is
// logged.
func WithLogger(logger *slog.Logger) Option {
	return func(s *StaticServer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithEnv appends KEY=VALUE entries to the child process environment.
func WithEnv(env ...string) Option {
	return func(s *StaticServer) {
		s.env = append(s.env, env...)
	}
}

// New creates a stopped handle for a server on the given loopback port. The
// port is usually obtained from port.FindUnusedPort.
func New(p int, opts ...Option) *StaticServer {
	s := &StaticServer{
		port:   p,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start spawns the static file server rooted at dir and returns the handle
// itself so calls can be chained. An empty dir serves the current directory.
//
// After spawning, Start sleeps briefly and checks whether the child already
// exited. If it did, the captured output is returned in a *StartupError and
// the handle stays Stopped. Calling Start on a running handle returns
// ErrAlreadyRunning.
func (s *StaticServer) Start(dir string) (*StaticServer, error) {
	if s.child != nil {
		return nil, ErrAlreadyRunning
	}
	if dir == "" {
		dir = "."
	}
	if err := port.Validate(s.port); err != nil {
		return nil, fmt.Errorf("invalid server port: %w", err)
	}

	interpreter, err := s.resolveInterpreter()
	if err != nil {
		return nil, err
	}

	// #nosec G204 -- the interpreter comes from configuration, the rest of
	// the argument vector is fixed.
	cmd := exec.Command(interpreter, commandArgs(s.port, dir)...)
	cmd.Env = append(os.Environ(), s.env...)
	cmd.WaitDelay = waitDelay

	// Both streams go to one buffer so diagnostics keep their original
	// interleaving.
	output := &outputBuffer{}
	cmd.Stdout = output
	cmd.Stderr = output

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to spawn %s: %w", interpreter, err)
	}

	c := &child{cmd: cmd, output: output, done: make(chan struct{})}
	go func() {
		c.err = cmd.Wait()
		close(c.done)
	}()

	s.logger.Debug("spawned static server",
		"pid", cmd.Process.Pid, "port", s.port, "dir", dir, "interpreter", interpreter)

	time.Sleep(startupDelay)
	select {
	case <-c.done:
		s.lastOutput = output
		s.logger.Debug("static server exited during startup", "pid", cmd.Process.Pid, "err", c.err)
		return nil, &StartupError{Output: output.String(), Err: c.err}
	default:
	}

	s.child = c
	s.dir = dir
	s.lastOutput = output
	return s, nil
}

// Stop terminates the child process, if any, and returns the handle to the
// Stopped state. It is safe to call on a handle that was never started or
// is already stopped.
//
// The child gets SIGTERM and up to five seconds to exit; after that it is
// killed and Stop waits for it unconditionally. The timeout is not an error.
func (s *StaticServer) Stop() error {
	c := s.child
	if c == nil {
		return nil
	}
	s.child = nil

	pid := c.cmd.Process.Pid
	s.logger.Debug("stopping static server", "pid", pid, "port", s.port)

	if err := terminate(c.cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
		s.logger.Debug("terminate signal failed", "pid", pid, "err", err)
	}

	timer := time.NewTimer(stopTimeout)
	defer timer.Stop()

	select {
	case <-c.done:
		return nil
	case <-timer.C:
	}

	s.logger.Warn("static server ignored SIGTERM, killing", "pid", pid, "timeout", stopTimeout)
	if err := c.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to kill server process %d: %w", pid, err)
	}
	<-c.done
	return nil
}

// Run starts the server rooted at dir, calls fn with the running handle and
// stops the server when fn returns, whether it returned an error or
// panicked. An error from fn takes precedence over an error from Stop.
func (s *StaticServer) Run(dir string, fn func(*StaticServer) error) (err error) {
	if _, err := s.Start(dir); err != nil {
		return err
	}
	defer func() {
		if stopErr := s.Stop(); stopErr != nil && err == nil {
			err = stopErr
		}
	}()

	return fn(s)
}

// WaitReady blocks until the server accepts TCP connections on its port.
// It returns a *StartupError if the child exits first, and the context
// error if ctx is done first.
func (s *StaticServer) WaitReady(ctx context.Context) error {
	c := s.child
	if c == nil {
		return ErrNotRunning
	}

	scanner := port.NewScanner()
	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()

	for {
		if scanner.IsPortReachable(s.port) {
			return nil
		}
		select {
		case <-c.done:
			return &StartupError{Output: c.output.String(), Err: c.err}
		case <-ctx.Done():
			return fmt.Errorf("waiting for server on %s: %w", port.Address(s.port), ctx.Err())
		case <-ticker.C:
		}
	}
}

// Port returns the loopback port the server binds to.
func (s *StaticServer) Port() int {
	return s.port
}

// Directory returns the directory given to the most recent successful Start.
func (s *StaticServer) Directory() string {
	return s.dir
}

// URL returns the base URL of the server, e.g. http://127.0.0.1:8000.
func (s *StaticServer) URL() string {
	return "http://" + port.Address(s.port)
}

// State reports whether the handle currently owns a child process.
func (s *StaticServer) State() State {
	if s.child != nil {
		return StateRunning
	}
	return StateStopped
}

// Running is shorthand for State() == StateRunning.
func (s *StaticServer) Running() bool {
	return s.child != nil
}

// PID returns the child process ID, or 0 while Stopped.
func (s *StaticServer) PID() int {
	if s.child == nil {
		return 0
	}
	return s.child.cmd.Process.Pid
}

// Exited returns a channel that is closed when the running child exits,
// whether on its own or because of Stop. While Stopped it returns nil, which
// blocks forever in a select.
func (s *StaticServer) Exited() <-chan struct{} {
	if s.child == nil {
		return nil
	}
	return s.child.done
}

// Output returns everything the most recent child wrote to stdout and
// stderr so far.
func (s *StaticServer) Output() string {
	if s.lastOutput == nil {
		return ""
	}
	return s.lastOutput.String()
}

// commandArgs builds the interpreter arguments. The trailing --bind keeps
// the server off every interface except loopback.
func commandArgs(p int, dir string) []string {
	return []string{
		"-m", httpServerModule,
		strconv.Itoa(p),
		"--directory", dir,
		"--bind", port.LoopbackHost,
	}
}

// terminate asks the process to exit. Windows has no SIGTERM delivery for
// arbitrary processes, so it falls straight through to Kill.
func terminate(p *os.Process) error {
	if runtime.GOOS == "windows" {
		return p.Kill()
	}
	return p.Signal(syscall.SIGTERM)
}
