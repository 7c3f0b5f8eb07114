package supervisor

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// shWorker builds a spec running a shell snippet. The snippet sees the
// readiness pipe on fd 3 per the environment contract.
func shWorker(name, script string) WorkerSpec {
	return WorkerSpec{Name: name, Command: "/bin/sh", Args: []string{"-c", script}}
}

func newTestSupervisor(t *testing.T, cfg Config) *Supervisor {
	t.Helper()
	cfg.SocketDir = t.TempDir()
	return New(cfg, zerolog.Nop())
}

func TestSpawnReady(t *testing.T) {
	s := newTestSupervisor(t, Config{})
	defer s.StopAll()

	h, err := s.Spawn(shWorker("w0", "printf r >&3; exec sleep 30"))
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if h.State() != StateReady {
		t.Fatalf("state = %s, want ready", h.State())
	}
	if !h.IsAlive() {
		t.Fatal("worker should be alive")
	}
}

func TestSpawnEarlyExit(t *testing.T) {
	s := newTestSupervisor(t, Config{})
	_, err := s.Spawn(shWorker("w0", "echo boom >&2; exit 3"))
	if err == nil {
		t.Fatal("expected spawn failure on early exit")
	}
	if len(s.Workers()) != 0 {
		t.Fatal("failed worker left in supervisor")
	}
}

func TestSpawnReadyTimeout(t *testing.T) {
	s := newTestSupervisor(t, Config{ReadyTimeout: 200 * time.Millisecond})
	start := time.Now()
	_, err := s.Spawn(shWorker("w0", "exec sleep 30"))
	if err == nil {
		t.Fatal("expected timeout failure")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("timeout took %v", elapsed)
	}
	if len(s.Workers()) != 0 {
		t.Fatal("timed-out worker left in supervisor")
	}
}

func TestStopTerminatesWorker(t *testing.T) {
	s := newTestSupervisor(t, Config{})
	h, err := s.Spawn(shWorker("w0", "printf r >&3; exec sleep 30"))
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if err := s.Stop("w0"); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if h.IsAlive() {
		t.Fatal("worker still alive after stop")
	}
	if h.State() != StateDead {
		t.Fatalf("state = %s, want dead", h.State())
	}
}

func TestExitHookFiresOnDeath(t *testing.T) {
	s := newTestSupervisor(t, Config{})
	var mu sync.Mutex
	var gone []string
	s.SetExitHook(func(endpoint string) {
		mu.Lock()
		gone = append(gone, endpoint)
		mu.Unlock()
	})

	h, err := s.Spawn(shWorker("w0", "printf r >&3; exit 0"))
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		mu.Lock()
		n := len(gone)
		mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("exit hook never fired")
		case <-time.After(10 * time.Millisecond):
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if gone[0] != h.Endpoint() {
		t.Fatalf("exit hook endpoint = %q, want %q", gone[0], h.Endpoint())
	}
}

func TestExitHookNotFiredOnStop(t *testing.T) {
	s := newTestSupervisor(t, Config{})
	var mu sync.Mutex
	fired := false
	s.SetExitHook(func(string) {
		mu.Lock()
		fired = true
		mu.Unlock()
	})
	if _, err := s.Spawn(shWorker("w0", "printf r >&3; exec sleep 30")); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if err := s.Stop("w0"); err != nil {
		t.Fatalf("stop: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if fired {
		t.Fatal("exit hook fired for a deliberate stop")
	}
}

func TestDuplicateNameRejected(t *testing.T) {
	s := newTestSupervisor(t, Config{})
	defer s.StopAll()
	if _, err := s.Spawn(shWorker("w0", "printf r >&3; exec sleep 30")); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if _, err := s.Spawn(shWorker("w0", "printf r >&3; exec sleep 30")); err == nil {
		t.Fatal("duplicate worker name accepted")
	}
}

func TestWorkerEnvContract(t *testing.T) {
	s := newTestSupervisor(t, Config{})
	defer s.StopAll()
	// The worker only signals ready if both env vars are present, so a
	// successful spawn proves the contract.
	script := `[ -n "$DISPATCHD_WORKER_SOCKET" ] || exit 1
[ "$DISPATCHD_READY_FD" = 3 ] || exit 1
printf r >&3
exec sleep 30`
	h, err := s.Spawn(WorkerSpec{Name: "w0", Command: "/bin/sh", Args: []string{"-c", script}})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if h.State() != StateReady {
		t.Fatalf("state = %s", h.State())
	}
}
