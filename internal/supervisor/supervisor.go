// Package supervisor launches and watches worker child processes. Each
// worker is handed, via environment, the unix socket path it must serve and
// an inherited pipe descriptor to write a single readiness byte to. The
// supervisor is the only owner of child state; everything else observes
// through its API or the exit hook.
package supervisor

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// Environment contract with the worker child.
const (
	EnvWorkerSocket = "DISPATCHD_WORKER_SOCKET"
	EnvReadyFD      = "DISPATCHD_READY_FD"
	EnvShmFD        = "DISPATCHD_SHM_FD"
)

const (
	defaultReadyTimeout = 10 * time.Second
	defaultStopTimeout  = 5 * time.Second
)

// State is the worker lifecycle: Spawning -> Ready -> Dead, with
// Spawning -> Dead on spawn failure.
type State int

const (
	StateSpawning State = iota
	StateReady
	StateDead
)

func (s State) String() string {
	switch s {
	case StateSpawning:
		return "spawning"
	case StateReady:
		return "ready"
	case StateDead:
		return "dead"
	default:
		return "unknown"
	}
}

// WorkerSpec describes one worker child to launch.
type WorkerSpec struct {
	// Name keys the worker inside the supervisor and names its socket file.
	Name    string
	Command string
	Args    []string
	// Shm optionally passes a shared-memory descriptor through to the child.
	Shm *os.File
}

// Config tunes supervisor behavior.
type Config struct {
	// SocketDir is where worker sockets live. Defaults to the system temp dir.
	SocketDir string
	// ReadyTimeout bounds the wait for the readiness byte (default 10s).
	ReadyTimeout time.Duration
	// StopTimeout bounds the graceful-termination wait before SIGKILL
	// (default 5s).
	StopTimeout time.Duration
}

// Handle is the supervisor-owned record of one child.
type Handle struct {
	spec       WorkerSpec
	socketPath string
	cmd        *exec.Cmd

	mu      sync.Mutex
	state   State
	stopped bool

	exited  chan struct{}
	exitErr error
}

// SocketPath returns the unix socket path assigned to the worker.
func (h *Handle) SocketPath() string { return h.socketPath }

// Endpoint returns the worker endpoint in registry form.
func (h *Handle) Endpoint() string { return "unix://" + h.socketPath }

// State returns the current lifecycle state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// IsAlive is a non-blocking check of child status.
func (h *Handle) IsAlive() bool {
	select {
	case <-h.exited:
		return false
	default:
	}
	return h.State() == StateReady
}

// Supervisor owns a set of worker children.
type Supervisor struct {
	cfg Config
	log zerolog.Logger

	mu      sync.Mutex
	workers map[string]*Handle

	// onExit is invoked (outside locks) with the worker endpoint whenever a
	// child that reached Ready exits without being stopped through Stop.
	// Wired to registry eviction.
	onExit func(endpoint string)
}

func New(cfg Config, log zerolog.Logger) *Supervisor {
	if cfg.SocketDir == "" {
		cfg.SocketDir = os.TempDir()
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = defaultReadyTimeout
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = defaultStopTimeout
	}
	return &Supervisor{cfg: cfg, workers: make(map[string]*Handle), log: log}
}

// SetExitHook installs the callback fired when a ready worker exits on its
// own; a deliberate Stop does not fire it.
func (s *Supervisor) SetExitHook(fn func(endpoint string)) {
	s.mu.Lock()
	s.onExit = fn
	s.mu.Unlock()
}

// Spawn launches the worker and blocks until it signals readiness or fails.
// The returned handle is Ready on success.
func (s *Supervisor) Spawn(spec WorkerSpec) (*Handle, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("supervisor: worker name is empty")
	}
	s.mu.Lock()
	if _, exists := s.workers[spec.Name]; exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("supervisor: worker %q already running", spec.Name)
	}
	s.mu.Unlock()

	if err := os.MkdirAll(s.cfg.SocketDir, 0o755); err != nil {
		return nil, fmt.Errorf("supervisor: socket dir: %w", err)
	}
	socketPath := filepath.Join(s.cfg.SocketDir, spec.Name+".sock")
	// Unlink any stale socket from a previous run; the worker binds fresh.
	_ = os.Remove(socketPath)

	readyR, readyW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("supervisor: readiness pipe: %w", err)
	}

	cmd := exec.Command(spec.Command, spec.Args...)
	// ExtraFiles[0] becomes fd 3 in the child; the env carries the number so
	// workers need not hardcode it.
	cmd.ExtraFiles = []*os.File{readyW}
	env := append(os.Environ(),
		EnvWorkerSocket+"="+socketPath,
		EnvReadyFD+"=3",
	)
	if spec.Shm != nil {
		cmd.ExtraFiles = append(cmd.ExtraFiles, spec.Shm)
		env = append(env, EnvShmFD+"=4")
	}
	cmd.Env = env
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		readyR.Close()
		readyW.Close()
		return nil, fmt.Errorf("supervisor: start %s: %w", spec.Command, err)
	}
	// The child inherited its copy of the write end; drop ours so EOF on the
	// read end tracks the child alone.
	readyW.Close()

	h := &Handle{
		spec:       spec,
		socketPath: socketPath,
		cmd:        cmd,
		state:      StateSpawning,
		exited:     make(chan struct{}),
	}
	s.mu.Lock()
	s.workers[spec.Name] = h
	s.mu.Unlock()

	s.log.Info().Str("worker", spec.Name).Int("pid", cmd.Process.Pid).
		Str("socket", socketPath).Msg("worker spawned")
	workerSpawnsTotal.Inc()

	go s.watch(h)

	readyCh := make(chan error, 1)
	go func() {
		buf := make([]byte, 1)
		_, rerr := readyR.Read(buf)
		readyR.Close()
		readyCh <- rerr
	}()

	select {
	case rerr := <-readyCh:
		if rerr != nil {
			// EOF without a byte: the child closed the pipe (or died) before
			// signalling.
			s.fail(h, fmt.Errorf("supervisor: readiness pipe closed early"))
			s.remove(spec.Name)
			return nil, fmt.Errorf("supervisor: worker %s closed readiness pipe before signalling (stderr: %s)",
				spec.Name, stderrTail(&stderr))
		}
		h.mu.Lock()
		alive := h.state == StateSpawning
		if alive {
			h.state = StateReady
		}
		h.mu.Unlock()
		if !alive {
			s.remove(spec.Name)
			return nil, fmt.Errorf("supervisor: worker %s died during spawn (stderr: %s)",
				spec.Name, stderrTail(&stderr))
		}
		s.log.Info().Str("worker", spec.Name).Msg("worker ready")
		return h, nil
	case <-h.exited:
		err := fmt.Errorf("supervisor: worker %s exited before ready: %v (stderr: %s)",
			spec.Name, h.exitError(), stderrTail(&stderr))
		s.remove(spec.Name)
		return nil, err
	case <-time.After(s.cfg.ReadyTimeout):
		s.fail(h, fmt.Errorf("supervisor: worker %s not ready within %s", spec.Name, s.cfg.ReadyTimeout))
		s.remove(spec.Name)
		return nil, fmt.Errorf("supervisor: worker %s not ready within %s", spec.Name, s.cfg.ReadyTimeout)
	}
}

// Stop gracefully terminates one worker: SIGTERM, bounded wait, SIGKILL.
func (s *Supervisor) Stop(name string) error {
	s.mu.Lock()
	h := s.workers[name]
	s.mu.Unlock()
	if h == nil {
		return nil
	}
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()

	select {
	case <-h.exited:
		s.remove(name)
		return nil
	default:
	}

	_ = h.cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-h.exited:
	case <-time.After(s.cfg.StopTimeout):
		s.log.Warn().Str("worker", name).Msg("worker ignored SIGTERM, killing")
		_ = h.cmd.Process.Kill()
		<-h.exited
	}
	s.remove(name)
	return nil
}

// StopAll terminates every worker. Called on dispatcher shutdown.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	names := make([]string, 0, len(s.workers))
	for name := range s.workers {
		names = append(names, name)
	}
	s.mu.Unlock()
	for _, name := range names {
		_ = s.Stop(name)
	}
}

// Workers snapshots the current handles.
func (s *Supervisor) Workers() []*Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Handle, 0, len(s.workers))
	for _, h := range s.workers {
		out = append(out, h)
	}
	return out
}

// watch reaps the child and runs eviction when a ready worker dies.
func (s *Supervisor) watch(h *Handle) {
	err := h.cmd.Wait()

	h.mu.Lock()
	wasReady := h.state == StateReady
	stopped := h.stopped
	h.state = StateDead
	if h.exitErr == nil {
		h.exitErr = err
	}
	h.mu.Unlock()
	close(h.exited)

	// The worker created the socket file; unlink it as a backstop.
	_ = os.Remove(h.socketPath)

	if stopped {
		s.log.Info().Str("worker", h.spec.Name).Msg("worker stopped")
		return
	}
	if err != nil {
		s.log.Error().Str("worker", h.spec.Name).Err(err).Msg("worker exited")
	} else {
		s.log.Info().Str("worker", h.spec.Name).Msg("worker exited")
	}
	workerExitsTotal.Inc()

	if wasReady {
		s.mu.Lock()
		onExit := s.onExit
		s.mu.Unlock()
		if onExit != nil {
			onExit(h.Endpoint())
		}
	}
}

// fail kills a child that never became ready and waits for the reaper.
func (s *Supervisor) fail(h *Handle, cause error) {
	h.mu.Lock()
	h.stopped = true
	if h.exitErr == nil {
		h.exitErr = cause
	}
	h.mu.Unlock()
	_ = h.cmd.Process.Kill()
	<-h.exited
}

func (s *Supervisor) remove(name string) {
	s.mu.Lock()
	delete(s.workers, name)
	s.mu.Unlock()
}

func (h *Handle) exitError() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitErr
}

// stderrTail returns the last chunk of captured stderr for error messages.
func stderrTail(buf *bytes.Buffer) string {
	const max = 4096
	s := buf.String()
	if len(s) > max {
		s = s[len(s)-max:]
	}
	if s == "" {
		return "<empty>"
	}
	return s
}
