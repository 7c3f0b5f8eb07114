package dispatch

import (
	"context"
	"net"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	"dispatchd/internal/mgmt"
	"dispatchd/internal/pool"
	"dispatchd/internal/registry"
	"dispatchd/internal/workerclient"
	"dispatchd/protobufs"
)

// Config holds the dispatcher's listening surface.
type Config struct {
	// InferAddr is the client-facing KServe port, e.g. ":8001".
	InferAddr string
	// ManagementAddr is the private worker-facing port, e.g. "127.0.0.1:8002".
	ManagementAddr string
	ServerName     string
	ServerVersion  string
}

// Server runs the two gRPC listeners of one dispatcher: the inference surface
// and the worker management surface.
type Server struct {
	cfg Config
	log zerolog.Logger

	svc      *Service
	pool     *pool.Pool
	inferSrv *grpc.Server
	mgmtSrv  *grpc.Server
	ready    atomic.Bool

	// Bound addresses, available once Ready reports true. Useful when the
	// config asked for port 0.
	inferAddr atomic.Value
	mgmtAddr  atomic.Value
}

// InferAddr returns the bound inference address, or "" before Run.
func (s *Server) InferAddr() string {
	if v, ok := s.inferAddr.Load().(string); ok {
		return v
	}
	return ""
}

// ManagementAddr returns the bound management address, or "" before Run.
func (s *Server) ManagementAddr() string {
	if v, ok := s.mgmtAddr.Load().(string); ok {
		return v
	}
	return ""
}

func NewServer(cfg Config, reg *registry.Registry, p *pool.Pool, workers *workerclient.Client, log zerolog.Logger) *Server {
	s := &Server{cfg: cfg, pool: p, log: log}
	s.svc = NewService(reg, workers, s.Ready, cfg.ServerName, cfg.ServerVersion, log)

	s.inferSrv = grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(grpcMetrics.StreamServerInterceptor()),
	)
	protobufs.RegisterGRPCInferenceServiceServer(s.inferSrv, s.svc)

	s.mgmtSrv = grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(grpcMetrics.StreamServerInterceptor()),
	)
	protobufs.RegisterWorkerManagementServer(s.mgmtSrv, mgmt.NewService(reg, log))

	grpcMetrics.InitializeMetrics(s.inferSrv)
	grpcMetrics.InitializeMetrics(s.mgmtSrv)
	return s
}

// Service exposes the inference service for delegation wiring.
func (s *Server) Service() *Service { return s.svc }

// Ready reports whether the dispatcher is accepting requests: true once both
// listeners are up, false again as soon as shutdown begins.
func (s *Server) Ready() bool { return s.ready.Load() }

// Run binds both ports and serves until ctx is canceled or a listener fails.
// On return the servers are stopped and the pool is closed.
func (s *Server) Run(ctx context.Context) error {
	inferLis, err := net.Listen("tcp", s.cfg.InferAddr)
	if err != nil {
		return errors.Wrap(err, "bind inference port")
	}
	mgmtLis, err := net.Listen("tcp", s.cfg.ManagementAddr)
	if err != nil {
		inferLis.Close()
		return errors.Wrap(err, "bind management port")
	}

	s.inferAddr.Store(inferLis.Addr().String())
	s.mgmtAddr.Store(mgmtLis.Addr().String())

	errCh := make(chan error, 2)
	go func() {
		s.log.Info().Str("addr", inferLis.Addr().String()).Msg("inference server listening")
		errCh <- s.inferSrv.Serve(inferLis)
	}()
	go func() {
		s.log.Info().Str("addr", mgmtLis.Addr().String()).Msg("management server listening")
		errCh <- s.mgmtSrv.Serve(mgmtLis)
	}()
	s.ready.Store(true)

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}
	s.ready.Store(false)
	s.inferSrv.GracefulStop()
	s.mgmtSrv.GracefulStop()
	s.pool.Shutdown()
	return errors.Wrap(serveErr, "grpc serve")
}
