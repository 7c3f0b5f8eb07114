package dispatch

import (
	"context"
	"net"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/golang/protobuf/proto"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"dispatchd/internal/framing"
	"dispatchd/internal/pool"
	"dispatchd/internal/registry"
	"dispatchd/internal/workerclient"
	"dispatchd/protobufs"
)

// startAddWorker serves a unix socket speaking the framed worker protocol:
// it sums the int contents of the request's two input tensors elementwise.
// Returns the endpoint and a counter of accepted connections.
func startAddWorker(t *testing.T) (string, *atomic.Int64) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "w.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	var conns atomic.Int64
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conns.Add(1)
			go func(c net.Conn) {
				defer c.Close()
				for {
					reqBytes, err := framing.ReadMessage(c, 0)
					if err != nil {
						return
					}
					req := &protobufs.ModelInferRequest{}
					if err := proto.Unmarshal(reqBytes, req); err != nil {
						return
					}
					resp := &protobufs.ModelInferResponse{
						ModelName:    req.GetModelName(),
						ModelVersion: req.GetModelVersion(),
						Id:           req.GetId(),
					}
					if len(req.GetInputs()) == 2 {
						a := req.GetInputs()[0].GetContents().GetIntContents()
						b := req.GetInputs()[1].GetContents().GetIntContents()
						sum := make([]int32, len(a))
						for i := range a {
							sum[i] = a[i] + b[i]
						}
						resp.Outputs = []*protobufs.ModelInferResponse_InferOutputTensor{{
							Name:     "sum",
							Datatype: "INT32",
							Shape:    []int64{int64(len(sum))},
							Contents: &protobufs.InferTensorContents{IntContents: sum},
						}}
					}
					respBytes, err := proto.Marshal(resp)
					if err != nil {
						return
					}
					if err := framing.WriteMessage(c, respBytes); err != nil {
						return
					}
				}
			}(conn)
		}
	}()
	return "unix://" + path, &conns
}

func newTestService(t *testing.T) (*Service, *registry.Registry) {
	t.Helper()
	p := pool.New(pool.Config{MaxPerEndpoint: 2}, zerolog.Nop())
	t.Cleanup(p.Shutdown)
	reg := registry.New(zerolog.Nop())
	workers := workerclient.New(p, zerolog.Nop())
	svc := NewService(reg, workers, nil, "dispatchd", "0.1.0", zerolog.Nop())
	return svc, reg
}

func inferRequest(name, version string) *protobufs.ModelInferRequest {
	return &protobufs.ModelInferRequest{
		ModelName:    name,
		ModelVersion: version,
		Id:           "req-1",
		Inputs: []*protobufs.ModelInferRequest_InferInputTensor{
			{
				Name:     "a",
				Datatype: "INT32",
				Shape:    []int64{3},
				Contents: &protobufs.InferTensorContents{IntContents: []int32{1, 2, 3}},
			},
			{
				Name:     "b",
				Datatype: "INT32",
				Shape:    []int64{3},
				Contents: &protobufs.InferTensorContents{IntContents: []int32{10, 20, 30}},
			},
		},
	}
}

func TestModelInferDirectHit(t *testing.T) {
	svc, reg := newTestService(t)
	endpoint, _ := startAddWorker(t)
	reg.Register("add", "", endpoint, "w0")

	resp, err := svc.ModelInfer(context.Background(), inferRequest("add", ""))
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	if len(resp.GetOutputs()) != 1 {
		t.Fatalf("outputs: %d", len(resp.GetOutputs()))
	}
	got := resp.GetOutputs()[0].GetContents().GetIntContents()
	want := []int32{11, 22, 33}
	if len(got) != len(want) {
		t.Fatalf("output length: %d", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("output[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestModelInferEmptyVersionDoesNotFallForward(t *testing.T) {
	svc, reg := newTestService(t)
	endpoint, _ := startAddWorker(t)
	reg.Register("classifier", "v1", endpoint, "w0")

	_, err := svc.ModelInfer(context.Background(), inferRequest("classifier", ""))
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestModelInferVersionedFallsBackToVersionless(t *testing.T) {
	svc, reg := newTestService(t)
	endpoint, _ := startAddWorker(t)
	reg.Register("classifier", "", endpoint, "w0")

	resp, err := svc.ModelInfer(context.Background(), inferRequest("classifier", "v1"))
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	if resp.GetModelName() != "classifier" {
		t.Fatalf("model name: %q", resp.GetModelName())
	}
}

func TestModelInferFastReject(t *testing.T) {
	svc, reg := newTestService(t)
	endpoint, conns := startAddWorker(t)
	reg.Register("present", "", endpoint, "w0")

	_, err := svc.ModelInfer(context.Background(), inferRequest("missing", ""))
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if !strings.Contains(st.Message(), "missing") {
		t.Fatalf("error should name the model: %q", st.Message())
	}
	// Fast reject: no worker was contacted.
	if conns.Load() != 0 {
		t.Fatalf("reject contacted a worker (%d connections)", conns.Load())
	}
}

func TestModelInferAfterWorkerEviction(t *testing.T) {
	svc, reg := newTestService(t)
	endpoint, _ := startAddWorker(t)
	reg.Register("echo", "", endpoint, "w0")
	reg.UnregisterEndpoint(endpoint)

	_, err := svc.ModelInfer(context.Background(), inferRequest("echo", ""))
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound after eviction, got %v", err)
	}
}

func TestModelInferTransportFailure(t *testing.T) {
	svc, reg := newTestService(t)
	// Registered endpoint with nothing listening.
	reg.Register("dead", "", "unix://"+filepath.Join(t.TempDir(), "dead.sock"), "w0")

	_, err := svc.ModelInfer(context.Background(), inferRequest("dead", ""))
	if status.Code(err) != codes.Internal {
		t.Fatalf("expected Internal on transport failure, got %v", err)
	}
}

// fakeDelegator satisfies Delegator for tests.
type fakeDelegator struct {
	resp  *protobufs.ModelInferResponse
	err   error
	calls atomic.Int64
}

func (f *fakeDelegator) Delegate(ctx context.Context, req *protobufs.ModelInferRequest) (*protobufs.ModelInferResponse, error) {
	f.calls.Add(1)
	return f.resp, f.err
}

func TestModelInferDelegatesOnMiss(t *testing.T) {
	svc, _ := newTestService(t)
	d := &fakeDelegator{resp: &protobufs.ModelInferResponse{ModelName: "remote"}}
	svc.SetDelegator(d)

	resp, err := svc.ModelInfer(context.Background(), inferRequest("remote", ""))
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	if resp.GetModelName() != "remote" || d.calls.Load() != 1 {
		t.Fatalf("delegation not used: %v calls=%d", resp, d.calls.Load())
	}
}

func TestModelInferDelegationNoRouteYieldsNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	svc.SetDelegator(&fakeDelegator{err: noRouteError{query: "model=missing"}})

	_, err := svc.ModelInfer(context.Background(), inferRequest("missing", ""))
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestModelInferRefusesSecondHop(t *testing.T) {
	svc, _ := newTestService(t)
	d := &fakeDelegator{resp: &protobufs.ModelInferResponse{}}
	svc.SetDelegator(d)

	ctx := metadata.NewIncomingContext(context.Background(),
		metadata.Pairs(HopHeader, "1"))
	_, err := svc.ModelInfer(ctx, inferRequest("missing", ""))
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound at hop limit, got %v", err)
	}
	if d.calls.Load() != 0 {
		t.Fatal("delegated despite hop limit")
	}
}

func TestHealthSurface(t *testing.T) {
	svc, reg := newTestService(t)
	endpoint, _ := startAddWorker(t)
	reg.Register("add", "", endpoint, "w0")

	live, err := svc.ServerLive(context.Background(), &protobufs.ServerLiveRequest{})
	if err != nil || !live.GetLive() {
		t.Fatalf("ServerLive: %v %v", live, err)
	}
	ready, err := svc.ServerReady(context.Background(), &protobufs.ServerReadyRequest{})
	if err != nil || !ready.GetReady() {
		t.Fatalf("ServerReady: %v %v", ready, err)
	}
	mr, err := svc.ModelReady(context.Background(), &protobufs.ModelReadyRequest{Name: "add"})
	if err != nil || !mr.GetReady() {
		t.Fatalf("ModelReady(add): %v %v", mr, err)
	}
	mr, err = svc.ModelReady(context.Background(), &protobufs.ModelReadyRequest{Name: "nope"})
	if err != nil || mr.GetReady() {
		t.Fatalf("ModelReady(nope): %v %v", mr, err)
	}
	meta, err := svc.ServerMetadata(context.Background(), &protobufs.ServerMetadataRequest{})
	if err != nil || meta.GetName() != "dispatchd" {
		t.Fatalf("ServerMetadata: %v %v", meta, err)
	}
	mm, err := svc.ModelMetadata(context.Background(), &protobufs.ModelMetadataRequest{Name: "add"})
	if err != nil || mm.GetName() != "add" {
		t.Fatalf("ModelMetadata: %v %v", mm, err)
	}
}
