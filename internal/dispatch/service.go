// Package dispatch implements the client-facing KServe v2 inference service
// and the server wiring around it. Requests are routed through the local
// registry to worker sockets; misses may be delegated once through the
// cluster directory.
package dispatch

import (
	"context"
	"fmt"

	"github.com/golang/protobuf/proto"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"dispatchd/internal/registry"
	"dispatchd/internal/workerclient"
	"dispatchd/protobufs"
)

// HopHeader carries the delegation depth. Loop detection cannot rely on
// replica identity (it may be NATted), so the counter travels with the
// request.
const HopHeader = "x-dispatchd-hops"

// Delegator re-issues a request through the directory to a peer dispatcher.
type Delegator interface {
	Delegate(ctx context.Context, req *protobufs.ModelInferRequest) (*protobufs.ModelInferResponse, error)
}

// Service implements inference.GRPCInferenceService.
type Service struct {
	protobufs.UnimplementedGRPCInferenceServiceServer

	reg     *registry.Registry
	workers *workerclient.Client
	// delegate is nil when no directory is configured.
	delegate Delegator
	// ready reports whether the dispatcher is accepting requests.
	ready func() bool

	serverName    string
	serverVersion string
	log           zerolog.Logger
}

func NewService(reg *registry.Registry, workers *workerclient.Client, ready func() bool, serverName, serverVersion string, log zerolog.Logger) *Service {
	if ready == nil {
		ready = func() bool { return true }
	}
	return &Service{
		reg:           reg,
		workers:       workers,
		ready:         ready,
		serverName:    serverName,
		serverVersion: serverVersion,
		log:           log,
	}
}

// SetDelegator installs the directory-backed delegation path. Called during
// wiring, before the server starts accepting.
func (s *Service) SetDelegator(d Delegator) { s.delegate = d }

func (s *Service) ServerLive(ctx context.Context, req *protobufs.ServerLiveRequest) (*protobufs.ServerLiveResponse, error) {
	return &protobufs.ServerLiveResponse{Live: true}, nil
}

func (s *Service) ServerReady(ctx context.Context, req *protobufs.ServerReadyRequest) (*protobufs.ServerReadyResponse, error) {
	return &protobufs.ServerReadyResponse{Ready: s.ready()}, nil
}

func (s *Service) ModelReady(ctx context.Context, req *protobufs.ModelReadyRequest) (*protobufs.ModelReadyResponse, error) {
	_, ok := s.reg.Lookup(req.GetName(), req.GetVersion())
	return &protobufs.ModelReadyResponse{Ready: ok}, nil
}

func (s *Service) ServerMetadata(ctx context.Context, req *protobufs.ServerMetadataRequest) (*protobufs.ServerMetadataResponse, error) {
	return &protobufs.ServerMetadataResponse{
		Name:    s.serverName,
		Version: s.serverVersion,
	}, nil
}

func (s *Service) ModelMetadata(ctx context.Context, req *protobufs.ModelMetadataRequest) (*protobufs.ModelMetadataResponse, error) {
	return &protobufs.ModelMetadataResponse{
		Name:     req.GetName(),
		Platform: "dispatchd",
	}, nil
}

func (s *Service) ModelInfer(ctx context.Context, req *protobufs.ModelInferRequest) (*protobufs.ModelInferResponse, error) {
	name := req.GetModelName()
	version := req.GetModelVersion()
	key := registry.ModelKey(name, version)

	endpoint, ok := s.reg.Lookup(name, version)
	if !ok {
		if hopDepth(ctx) > 0 {
			// Already delegated once; never hop again.
			delegationsTotal.WithLabelValues("refused").Inc()
			return nil, status.Errorf(codes.NotFound, "model '%s' not found", key)
		}
		if s.delegate != nil {
			resp, err := s.delegate.Delegate(ctx, req)
			switch {
			case err == nil:
				delegationsTotal.WithLabelValues("ok").Inc()
				return resp, nil
			case IsNoRoute(err) || status.Code(err) == codes.NotFound:
				// No peer serves it, or the peer itself (already at the hop
				// limit) reported not found. Either way the capability does
				// not exist in the cluster.
				delegationsTotal.WithLabelValues("no_route").Inc()
			default:
				delegationsTotal.WithLabelValues("error").Inc()
				s.log.Warn().Str("model", key).Err(err).Msg("delegation failed")
				return nil, status.Errorf(codes.Internal, "delegation for model '%s' failed", key)
			}
		}
		return nil, status.Errorf(codes.NotFound, "model '%s' not found", key)
	}

	payload, err := proto.Marshal(req)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "serialize request: %v", err)
	}

	respBytes, err := s.workers.Forward(ctx, endpoint, payload)
	if err != nil {
		// A single model key maps to a single endpoint; there is no second
		// worker to retry against.
		s.log.Error().Str("model", key).Str("endpoint", endpoint).Err(err).Msg("worker forward failed")
		return nil, status.Errorf(codes.Internal, "failed to forward request for model '%s'", key)
	}

	resp := &protobufs.ModelInferResponse{}
	if err := proto.Unmarshal(respBytes, resp); err != nil {
		s.log.Error().Str("model", key).Err(err).Msg("unparseable worker response")
		return nil, status.Errorf(codes.Internal, "malformed response from worker for model '%s'", key)
	}
	return resp, nil
}

// hopDepth reads the delegation counter from incoming metadata. Absent or
// malformed means depth zero.
func hopDepth(ctx context.Context) int {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return 0
	}
	vals := md.Get(HopHeader)
	if len(vals) == 0 {
		return 0
	}
	var depth int
	if _, err := fmt.Sscanf(vals[0], "%d", &depth); err != nil || depth < 0 {
		return 0
	}
	return depth
}
