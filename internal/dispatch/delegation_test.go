package dispatch

import (
	"context"
	"net"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"dispatchd/internal/directory"
	"dispatchd/internal/pool"
	"dispatchd/internal/registry"
	"dispatchd/internal/workerclient"
	"dispatchd/pkg/types"
	"dispatchd/protobufs"
)

// startPeerDispatcher runs a dispatcher's inference service on a real TCP
// port, backed by its own registry, and returns its endpoint.
func startPeerDispatcher(t *testing.T, reg *registry.Registry) string {
	t.Helper()
	p := pool.New(pool.Config{MaxPerEndpoint: 2}, zerolog.Nop())
	t.Cleanup(p.Shutdown)
	svc := NewService(reg, workerclient.New(p, zerolog.Nop()), nil, "peer", "test", zerolog.Nop())

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := grpc.NewServer()
	protobufs.RegisterGRPCInferenceServiceServer(srv, svc)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)
	return lis.Addr().String()
}

func startDirectory(t *testing.T) (*directory.CapabilityRegistry, *directory.Client) {
	t.Helper()
	capReg := directory.NewCapabilityRegistry()
	srv := httptest.NewServer(directory.NewServer(capReg, 0, zerolog.Nop()).Handler())
	t.Cleanup(srv.Close)
	return capReg, directory.NewClient(srv.URL, zerolog.Nop())
}

func TestDelegationReachesPeer(t *testing.T) {
	// Peer B owns the "embed" model backed by a real worker socket.
	regB := registry.New(zerolog.Nop())
	endpoint, _ := startAddWorker(t)
	regB.Register("embed", "", endpoint, "wb")
	peerAddr := startPeerDispatcher(t, regB)

	capReg, dirClient := startDirectory(t)
	capReg.Register(types.ReplicaInfo{
		ReplicaID:    "replica-b",
		Endpoint:     peerAddr,
		Capabilities: []types.Capability{{"model": "embed"}},
	})

	// A owns nothing and delegates through the directory, excluding itself.
	svcA, _ := newTestService(t)
	svcA.SetDelegator(NewDirectoryDelegator(dirClient, "replica-a", zerolog.Nop()))

	resp, err := svcA.ModelInfer(context.Background(), inferRequest("embed", ""))
	if err != nil {
		t.Fatalf("delegated infer: %v", err)
	}
	got := resp.GetOutputs()[0].GetContents().GetIntContents()
	if len(got) != 3 || got[0] != 11 || got[1] != 22 || got[2] != 33 {
		t.Fatalf("unexpected delegated output: %v", got)
	}
}

func TestDelegationExcludesSelf(t *testing.T) {
	capReg, dirClient := startDirectory(t)
	// The directory only knows the requester itself.
	capReg.Register(types.ReplicaInfo{
		ReplicaID:    "replica-a",
		Endpoint:     "127.0.0.1:1",
		Capabilities: []types.Capability{{"model": "embed"}},
	})

	svcA, _ := newTestService(t)
	svcA.SetDelegator(NewDirectoryDelegator(dirClient, "replica-a", zerolog.Nop()))

	_, err := svcA.ModelInfer(context.Background(), inferRequest("embed", ""))
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound when only match is self, got %v", err)
	}
}

func TestSecondHopRejectedAcrossDispatchers(t *testing.T) {
	// Peer C has no models; a delegated request arriving there must fail
	// fast instead of hopping again.
	regC := registry.New(zerolog.Nop())
	peerAddr := startPeerDispatcher(t, regC)

	capReg, dirClient := startDirectory(t)
	capReg.Register(types.ReplicaInfo{
		ReplicaID:    "replica-c",
		Endpoint:     peerAddr,
		Capabilities: []types.Capability{{"model": "embed"}},
	})

	svcA, _ := newTestService(t)
	svcA.SetDelegator(NewDirectoryDelegator(dirClient, "replica-a", zerolog.Nop()))

	_, err := svcA.ModelInfer(context.Background(), inferRequest("embed", ""))
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound from hop-limited peer, got %v", err)
	}
}
