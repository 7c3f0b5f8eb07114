package directory

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"dispatchd/pkg/types"
)

func TestClientRoute(t *testing.T) {
	reg := NewCapabilityRegistry()
	reg.Register(types.ReplicaInfo{
		ReplicaID:    "replica-b",
		Endpoint:     "host-b:8001",
		Capabilities: []types.Capability{{"type": "embed"}},
	})
	srv := httptest.NewServer(NewServer(reg, 0, zerolog.Nop()).Handler())
	defer srv.Close()

	c := NewClient(srv.URL, zerolog.Nop())
	route, err := c.Route(context.Background(), types.Capability{"type": "embed"}, "")
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if route.Endpoint != "host-b:8001" || route.ReplicaID != "replica-b" {
		t.Fatalf("route: %+v", route)
	}

	_, err = c.Route(context.Background(), types.Capability{"type": "chat"}, "")
	if !IsNoRoute(err) {
		t.Fatalf("expected no-route, got %v", err)
	}

	_, err = c.Route(context.Background(), types.Capability{"type": "embed"}, "replica-b")
	if !IsNoRoute(err) {
		t.Fatalf("expected no-route with exclude, got %v", err)
	}
}

func TestClientRegistry(t *testing.T) {
	reg := NewCapabilityRegistry()
	reg.Register(types.ReplicaInfo{ReplicaID: "a", Endpoint: "x:1", Capabilities: []types.Capability{{"k": "v"}}})
	srv := httptest.NewServer(NewServer(reg, 0, zerolog.Nop()).Handler())
	defer srv.Close()

	c := NewClient(srv.URL, zerolog.Nop())
	replicas, err := c.Registry(context.Background())
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	if len(replicas) != 1 || replicas[0].ReplicaID != "a" {
		t.Fatalf("replicas: %+v", replicas)
	}
}

func TestAnnouncerKeepsEntryAlive(t *testing.T) {
	reg := NewCapabilityRegistry()
	srv := httptest.NewServer(NewServer(reg, 20*time.Millisecond, zerolog.Nop()).Handler())
	defer srv.Close()

	var mu sync.Mutex
	offers := []types.Capability{{"model": "add"}}
	a := NewAnnouncer(NewClient(srv.URL, zerolog.Nop()), "replica-a", "host-a:8001", func() []types.Capability {
		mu.Lock()
		defer mu.Unlock()
		out := make([]types.Capability, len(offers))
		copy(out, offers)
		return out
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() { a.Run(ctx); close(done) }()

	waitFor(t, func() bool {
		_, ok := reg.Lookup(types.Capability{"model": "add"}, "")
		return ok
	}, "initial registration")

	// Changing the offer set cycles the stream with fresh capabilities.
	mu.Lock()
	offers = []types.Capability{{"model": "add"}, {"model": "mul"}}
	mu.Unlock()
	a.Notify()

	waitFor(t, func() bool {
		_, ok := reg.Lookup(types.Capability{"model": "mul"}, "")
		return ok
	}, "re-registration after notify")

	// Stopping the announcer drops the stream and the entry.
	cancel()
	<-done
	waitFor(t, func() bool {
		_, ok := reg.Lookup(types.Capability{"model": "add"}, "")
		return !ok
	}, "deregistration after stop")
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		case <-time.After(10 * time.Millisecond):
		}
	}
}
