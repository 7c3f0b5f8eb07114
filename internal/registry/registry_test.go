package registry

import (
	"sort"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

func newTestRegistry() *Registry { return New(zerolog.Nop()) }

func TestModelKey(t *testing.T) {
	if got := ModelKey("add", ""); got != "add" {
		t.Fatalf("versionless key: %q", got)
	}
	if got := ModelKey("classifier", "v1"); got != "classifier:v1" {
		t.Fatalf("versioned key: %q", got)
	}
}

func TestLookupExact(t *testing.T) {
	r := newTestRegistry()
	r.Register("add", "", "unix:///tmp/w0.sock", "w0")
	ep, ok := r.Lookup("add", "")
	if !ok || ep != "unix:///tmp/w0.sock" {
		t.Fatalf("lookup: %q %v", ep, ok)
	}
}

func TestLookupFallbackToVersionless(t *testing.T) {
	r := newTestRegistry()
	r.Register("classifier", "", "unix:///tmp/w0.sock", "w0")
	ep, ok := r.Lookup("classifier", "v1")
	if !ok || ep != "unix:///tmp/w0.sock" {
		t.Fatalf("versioned lookup should fall back to versionless: %q %v", ep, ok)
	}
}

func TestLookupNoReverseFallback(t *testing.T) {
	r := newTestRegistry()
	r.Register("classifier", "v1", "unix:///tmp/w0.sock", "w0")
	// An empty-version query must not resolve to a specific version.
	if _, ok := r.Lookup("classifier", ""); ok {
		t.Fatal("empty-version lookup fell forward to a specific version")
	}
	// And the registered specific version still resolves via the exact key.
	if ep, ok := r.Lookup("classifier", "v1"); !ok || ep != "unix:///tmp/w0.sock" {
		t.Fatalf("exact versioned lookup: %q %v", ep, ok)
	}
}

func TestLookupAbsent(t *testing.T) {
	r := newTestRegistry()
	if _, ok := r.Lookup("missing", ""); ok {
		t.Fatal("expected not found")
	}
	if _, ok := r.Lookup("missing", "v9"); ok {
		t.Fatal("expected not found")
	}
}

func TestLastWriterWins(t *testing.T) {
	r := newTestRegistry()
	r.Register("add", "", "unix:///tmp/w0.sock", "w0")
	r.Register("add", "", "unix:///tmp/w1.sock", "w1")
	ep, ok := r.Lookup("add", "")
	if !ok || ep != "unix:///tmp/w1.sock" {
		t.Fatalf("expected last writer, got %q", ep)
	}
	// The displaced worker must not retain the key in its reverse set.
	if keys := r.ListModelsByWorker("w0"); len(keys) != 0 {
		t.Fatalf("w0 should own nothing, owns %v", keys)
	}
	if keys := r.ListModelsByWorker("w1"); len(keys) != 1 || keys[0] != "add" {
		t.Fatalf("w1 should own add, owns %v", keys)
	}
}

func TestUnregisterModel(t *testing.T) {
	r := newTestRegistry()
	r.Register("add", "", "unix:///tmp/w0.sock", "w0")
	r.Register("mul", "", "unix:///tmp/w0.sock", "w0")

	if !r.UnregisterModel("add", "", "w0") {
		t.Fatal("expected removal")
	}
	if r.UnregisterModel("add", "", "w0") {
		t.Fatal("second removal should report false")
	}
	if _, ok := r.Lookup("add", ""); ok {
		t.Fatal("add still resolvable")
	}
	// mul remains; worker records survive until the set empties.
	if _, ok := r.Lookup("mul", ""); !ok {
		t.Fatal("mul lost")
	}
	if !r.UnregisterModel("mul", "", "w0") {
		t.Fatal("expected removal of mul")
	}
	if keys := r.ListModelsByWorker("w0"); len(keys) != 0 {
		t.Fatalf("w0 reverse set should be gone, got %v", keys)
	}
}

func TestUnregisterWorker(t *testing.T) {
	r := newTestRegistry()
	r.Register("add", "", "unix:///tmp/w0.sock", "w0")
	r.Register("mul", "v2", "unix:///tmp/w0.sock", "w0")
	r.Register("echo", "", "unix:///tmp/w1.sock", "w1")

	if n := r.UnregisterWorker("w0"); n != 2 {
		t.Fatalf("expected 2 entries dropped, got %d", n)
	}
	if _, ok := r.Lookup("add", ""); ok {
		t.Fatal("add survived worker eviction")
	}
	if _, ok := r.Lookup("mul", "v2"); ok {
		t.Fatal("mul survived worker eviction")
	}
	// Other workers are untouched.
	if _, ok := r.Lookup("echo", ""); !ok {
		t.Fatal("echo lost")
	}
	if n := r.UnregisterWorker("w0"); n != 0 {
		t.Fatalf("second eviction should drop nothing, got %d", n)
	}
}

func TestUnregisterEndpoint(t *testing.T) {
	r := newTestRegistry()
	r.Register("add", "", "unix:///tmp/w0.sock", "w0")
	r.Register("echo", "", "unix:///tmp/w1.sock", "w1")

	if n := r.UnregisterEndpoint("unix:///tmp/w0.sock"); n != 1 {
		t.Fatalf("expected 1 entry dropped, got %d", n)
	}
	if _, ok := r.Lookup("add", ""); ok {
		t.Fatal("add survived endpoint eviction")
	}
	if _, ok := r.Lookup("echo", ""); !ok {
		t.Fatal("echo lost")
	}
}

func TestIndicesStayConsistent(t *testing.T) {
	r := newTestRegistry()
	r.Register("a", "", "unix:///tmp/w0.sock", "w0")
	r.Register("b", "v1", "unix:///tmp/w0.sock", "w0")
	r.Register("c", "", "unix:///tmp/w1.sock", "w1")
	r.Register("b", "v1", "unix:///tmp/w1.sock", "w1") // steal b:v1
	r.UnregisterModel("a", "", "w0")
	r.UnregisterWorker("w1")

	// After the dust settles every forward entry must be reachable through
	// exactly one reverse entry and vice versa.
	for _, e := range r.Snapshot() {
		keys := r.ListModelsByWorker(e.WorkerID)
		found := false
		for _, k := range keys {
			if k == ModelKey(e.Name, e.Version) {
				found = true
			}
		}
		if !found {
			t.Fatalf("forward entry %s not in reverse set of %s", ModelKey(e.Name, e.Version), e.WorkerID)
		}
	}
	for _, id := range []string{"w0", "w1"} {
		for _, key := range r.ListModelsByWorker(id) {
			models := r.ListModels()
			sort.Strings(models)
			i := sort.SearchStrings(models, key)
			if i >= len(models) || models[i] != key {
				t.Fatalf("reverse key %s of %s missing from forward index", key, id)
			}
		}
	}
}

func TestChangeHookFires(t *testing.T) {
	r := newTestRegistry()
	var mu sync.Mutex
	calls := 0
	r.SetChangeHook(func() {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	r.Register("add", "", "unix:///tmp/w0.sock", "w0")
	r.UnregisterModel("add", "", "w0")
	r.UnregisterModel("add", "", "w0") // no-op, must not fire
	mu.Lock()
	defer mu.Unlock()
	if calls != 2 {
		t.Fatalf("expected 2 hook calls, got %d", calls)
	}
}

func TestConcurrentMutations(t *testing.T) {
	r := newTestRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := string(rune('a' + n))
			for j := 0; j < 100; j++ {
				r.Register("model-"+id, "", "unix:///tmp/"+id+".sock", "worker-"+id)
				r.Lookup("model-"+id, "v1")
				r.UnregisterWorker("worker-" + id)
			}
		}(i)
	}
	wg.Wait()
	if n := len(r.Snapshot()); n != 0 {
		t.Fatalf("expected empty registry after balanced ops, got %d entries", n)
	}
}
